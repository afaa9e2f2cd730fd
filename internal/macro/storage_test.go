package macro

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func sampleRecording() *Recording {
	return &Recording{
		Name:      "test run",
		CreatedAt: 1700000000,
		Events: []Event{
			{Type: EventMousePress, Timestamp: 0.1, Data: map[string]any{"button": "right"}},
			{Type: EventMouseRelease, Timestamp: 0.5, Data: map[string]any{"button": "right"}},
			{Type: EventKeyPress, Timestamp: 0.6, Data: map[string]any{"key": 65}},
		},
		CameraSegments: []CameraSegment{
			{
				PressEventIndex:   0,
				ReleaseEventIndex: 1,
				PressTimestamp:    0.1,
				ReleaseTimestamp:  0.5,
				Samples: []RawSample{
					{Timestamp: 0.2, AngleDX: 1.5, AngleDY: -0.5, RawDX: 18.75, RawDY: -6.25},
				},
			},
		},
	}
}

// TestSaveLoadRoundTrip verifies a recording survives the disk format.
func TestSaveLoadRoundTrip(t *testing.T) {
	store, err := NewStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewStorage failed: %v", err)
	}

	rec := sampleRecording()
	path, err := store.Save(rec, "My Macro!")
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if filepath.Base(path) != "my-macro.json" {
		t.Errorf("Unexpected file name %s", filepath.Base(path))
	}

	loaded, err := store.Load("my-macro")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Name != "My Macro!" {
		t.Errorf("Name %q, want %q", loaded.Name, "My Macro!")
	}
	if loaded.Version != FormatVersion {
		t.Errorf("Version %d, want %d", loaded.Version, FormatVersion)
	}
	if len(loaded.Events) != 3 || len(loaded.CameraSegments) != 1 {
		t.Errorf("Got %d events, %d segments", len(loaded.Events), len(loaded.CameraSegments))
	}
	if loaded.Events[2].Int("key") != 65 {
		t.Errorf("Key code %d after round trip, want 65", loaded.Events[2].Int("key"))
	}
	seg := loaded.CameraSegments[0]
	if seg.Samples[0].AngleDX != 1.5 {
		t.Errorf("Sample AngleDX %f, want 1.5", seg.Samples[0].AngleDX)
	}
}

// TestLoadCorruptIndices verifies bad segment references fail fast.
func TestLoadCorruptIndices(t *testing.T) {
	store, _ := NewStorage(t.TempDir())

	rec := sampleRecording()
	rec.CameraSegments[0].PressEventIndex = 99
	if _, err := store.Save(rec, "broken"); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	_, err := store.Load("broken")
	if !errors.Is(err, ErrCorruptRecording) {
		t.Errorf("Expected ErrCorruptRecording, got %v", err)
	}
}

// TestLoadWrongEventType verifies a segment pointing at a non-press event
// is rejected.
func TestLoadWrongEventType(t *testing.T) {
	store, _ := NewStorage(t.TempDir())

	rec := sampleRecording()
	rec.CameraSegments[0].PressEventIndex = 2 // the key event
	store.Save(rec, "mismatched")

	if _, err := store.Load("mismatched"); !errors.Is(err, ErrCorruptRecording) {
		t.Errorf("Expected ErrCorruptRecording, got %v", err)
	}
}

// TestLoadFutureVersion verifies newer format versions are refused.
func TestLoadFutureVersion(t *testing.T) {
	dir := t.TempDir()
	store, _ := NewStorage(dir)
	rec := sampleRecording()
	path, _ := store.Save(rec, "future")

	data, _ := os.ReadFile(path)
	patched := strings.Replace(string(data), "\"version\": 3", "\"version\": 99", 1)
	os.WriteFile(path, []byte(patched), 0644)

	if _, err := store.Load("future"); !errors.Is(err, ErrCorruptRecording) {
		t.Errorf("Expected ErrCorruptRecording for future version, got %v", err)
	}
}

// TestListAndDelete verifies listing skips garbage and delete is
// idempotent.
func TestListAndDelete(t *testing.T) {
	dir := t.TempDir()
	store, _ := NewStorage(dir)
	store.Save(sampleRecording(), "alpha")
	store.Save(sampleRecording(), "beta")
	os.WriteFile(filepath.Join(dir, "junk.json"), []byte("{not json"), 0644)
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore"), 0644)

	list := store.List()
	if len(list) != 2 {
		t.Fatalf("Listed %d recordings, want 2", len(list))
	}
	if list[0].Slug != "alpha" || list[1].Slug != "beta" {
		t.Errorf("Unexpected order: %v", list)
	}

	if err := store.Delete("alpha"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := store.Delete("alpha"); err != nil {
		t.Errorf("Deleting a missing slug should be a no-op, got %v", err)
	}
	if got := store.List(); len(got) != 1 {
		t.Errorf("Listed %d after delete, want 1", len(got))
	}
}

// TestSlugify verifies name normalization.
func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"My Macro!":      "my-macro",
		"  spaced out  ": "spaced-out",
		"UPPER_case-123": "upper-case-123",
		"???":            "macro",
		"":               "macro",
	}
	for in, want := range cases {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}
