package macro

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Summary is one entry in a recording listing.
type Summary struct {
	Name    string  `json:"name"`
	Slug    string  `json:"slug"`
	Created float64 `json:"created"`
}

// Storage persists recordings as individual versioned JSON documents in a
// single directory, one file per recording keyed by slug.
type Storage struct {
	root string
}

// NewStorage creates the storage rooted at dir, creating it if needed.
func NewStorage(dir string) (*Storage, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create recordings dir: %w", err)
	}
	return &Storage{root: dir}, nil
}

// Root returns the storage directory.
func (s *Storage) Root() string { return s.root }

// Slugify reduces a free-form name to a filesystem-safe slug.
func Slugify(name string) string {
	var b strings.Builder
	for _, ch := range strings.ToLower(strings.TrimSpace(name)) {
		if (ch >= 'a' && ch <= 'z') || (ch >= '0' && ch <= '9') {
			b.WriteRune(ch)
		} else {
			b.WriteRune('-')
		}
	}
	parts := strings.FieldsFunc(b.String(), func(r rune) bool { return r == '-' })
	slug := strings.Join(parts, "-")
	if slug == "" {
		return "macro"
	}
	return slug
}

// List returns summaries for every readable recording file, sorted by slug.
// Unreadable files are skipped, not fatal.
func (s *Storage) List() []Summary {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil
	}
	var out []Summary
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		slug := strings.TrimSuffix(entry.Name(), ".json")
		data, err := os.ReadFile(filepath.Join(s.root, entry.Name()))
		if err != nil {
			continue
		}
		var header struct {
			Name      string  `json:"name"`
			CreatedAt float64 `json:"created_at"`
		}
		if err := json.Unmarshal(data, &header); err != nil {
			continue
		}
		name := header.Name
		if name == "" {
			name = slug
		}
		out = append(out, Summary{Name: name, Slug: slug, Created: header.CreatedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out
}

// Save writes the recording under the given name (or its own name when
// empty) and returns the file path.
func (s *Storage) Save(rec *Recording, name string) (string, error) {
	if name == "" {
		name = rec.Name
	} else {
		rec.Name = name
	}
	rec.Version = FormatVersion
	path := filepath.Join(s.root, Slugify(name)+".json")
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write recording: %w", err)
	}
	return path, nil
}

// Load reads and validates a recording by slug. A recording whose segment
// indices do not resolve to matching discrete events fails here with
// ErrCorruptRecording; nothing of it is ever played.
func (s *Storage) Load(slug string) (*Recording, error) {
	path := filepath.Join(s.root, slug+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read recording %q: %w", slug, err)
	}
	var rec Recording
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrCorruptRecording, slug, err)
	}
	if rec.Version > FormatVersion {
		return nil, fmt.Errorf("%w: %q has version %d, newest supported is %d",
			ErrCorruptRecording, slug, rec.Version, FormatVersion)
	}
	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("%q: %w", slug, err)
	}
	return &rec, nil
}

// Delete removes a recording by slug. Deleting a missing slug is a no-op.
func (s *Storage) Delete(slug string) error {
	err := os.Remove(filepath.Join(s.root, slug+".json"))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
