// Package config provides settings and calibration management for macrocam.
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sync"
)

// Settings contains the playback/recording tuning knobs.
//
// Every field is clamped to a valid range whenever a Settings value is
// loaded or updated; invalid input is coerced, never rejected.
type Settings struct {
	// CameraGain is the global gain multiplier applied at playback time
	CameraGain float64 `json:"camera_gain"`

	// GainX and GainY are per-axis gain multipliers
	GainX float64 `json:"gain_x"`
	GainY float64 `json:"gain_y"`

	// InvertX and InvertY flip the sign of the corresponding axis
	InvertX bool `json:"invert_x"`
	InvertY bool `json:"invert_y"`

	// TargetRateHz is the resample rate for camera playback (90-960 Hz)
	TargetRateHz float64 `json:"target_rate_hz"`

	// SenderMaxStep bounds the magnitude of a single injected step (>= 1)
	SenderMaxStep int `json:"sender_max_step"`

	// SenderDelayMs is the delay between consecutive injected sub-steps
	SenderDelayMs float64 `json:"sender_delay_ms"`

	// DeadzoneThreshold is the minimum motion magnitude in raw counts
	DeadzoneThreshold float64 `json:"deadzone_threshold"`

	// ReverseWindowMs is the time window for tiny-reversal suppression
	ReverseWindowMs float64 `json:"reverse_window_ms"`

	// ReverseTinyRatio is the relative magnitude below which a reversal
	// is treated as sensor jitter (0-1)
	ReverseTinyRatio float64 `json:"reverse_tiny_ratio"`

	// StrictMode disables motion filtering entirely
	StrictMode bool `json:"strict_mode"`
}

// Calibration maps raw device counts to camera rotation degrees for one
// sensitivity configuration. Immutable after creation; replaced wholesale
// on update.
type Calibration struct {
	Name             string  `json:"name"`
	DPI              int     `json:"dpi"`
	Sensitivity      float64 `json:"sensitivity"`
	CountsPerDegreeX float64 `json:"counts_per_degree_x"`
	CountsPerDegreeY float64 `json:"counts_per_degree_y"`
	CaptureFPS       float64 `json:"fps"`
	PointerPrecision bool    `json:"pointer_precision"`
	Notes            string  `json:"notes"`
}

// Bundle is the persisted settings document: the tuning knobs plus a named
// map of calibration profiles and the active profile's name.
type Bundle struct {
	Settings          Settings               `json:"settings"`
	Calibrations      map[string]Calibration `json:"calibrations"`
	ActiveCalibration string                 `json:"active_calibration"`
	PlatformInfo      string                 `json:"platform_info,omitempty"`
}

func clampFloat(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// Sanitize coerces every field into its valid range.
func (s Settings) Sanitize() Settings {
	maxStep := s.SenderMaxStep
	if maxStep < 1 {
		maxStep = 1
	}
	return Settings{
		CameraGain:        clampFloat(s.CameraGain, 0.25, 3.0),
		GainX:             clampFloat(s.GainX, 0.25, 4.0),
		GainY:             clampFloat(s.GainY, 0.25, 4.0),
		InvertX:           s.InvertX,
		InvertY:           s.InvertY,
		TargetRateHz:      clampFloat(s.TargetRateHz, 90.0, 960.0),
		SenderMaxStep:     maxStep,
		SenderDelayMs:     clampFloat(s.SenderDelayMs, 0.0, 4.0),
		DeadzoneThreshold: clampFloat(s.DeadzoneThreshold, 0.0, 2.5),
		ReverseWindowMs:   clampFloat(s.ReverseWindowMs, 5.0, 120.0),
		ReverseTinyRatio:  clampFloat(s.ReverseTinyRatio, 0.0, 1.0),
		StrictMode:        s.StrictMode,
	}
}

// Sanitize enforces the calibration invariants, most importantly
// counts-per-degree > 0 on both axes.
func (c Calibration) Sanitize() Calibration {
	name := c.Name
	if name == "" {
		name = "calibration"
	}
	dpi := c.DPI
	if dpi < 50 {
		dpi = 50
	}
	countsX := c.CountsPerDegreeX
	if countsX < 0.1 {
		countsX = 0.1
	}
	countsY := c.CountsPerDegreeY
	if countsY < 0.1 {
		countsY = 0.1
	}
	return Calibration{
		Name:             name,
		DPI:              dpi,
		Sensitivity:      c.Sensitivity,
		CountsPerDegreeX: countsX,
		CountsPerDegreeY: countsY,
		CaptureFPS:       clampFloat(c.CaptureFPS, 30.0, 360.0),
		PointerPrecision: c.PointerPrecision,
		Notes:            c.Notes,
	}
}

// DefaultSettings returns the sanitized default tuning knobs.
func DefaultSettings() Settings {
	return Settings{
		CameraGain:        1.0,
		GainX:             1.0,
		GainY:             1.0,
		TargetRateHz:      480.0,
		SenderMaxStep:     1,
		SenderDelayMs:     1.5,
		DeadzoneThreshold: 0.35,
		ReverseWindowMs:   30.0,
		ReverseTinyRatio:  0.08,
	}.Sanitize()
}

// DefaultCalibration returns the built-in calibration profile.
func DefaultCalibration() Calibration {
	return Calibration{
		Name:             "default",
		DPI:              800,
		Sensitivity:      0.2,
		CountsPerDegreeX: 12.5,
		CountsPerDegreeY: 12.5,
		CaptureFPS:       120.0,
		Notes:            "standard sensitivity",
	}.Sanitize()
}

// DefaultBundle returns a new Bundle with sensible defaults.
func DefaultBundle() *Bundle {
	cal := DefaultCalibration()
	return &Bundle{
		Settings:          DefaultSettings(),
		Calibrations:      map[string]Calibration{cal.Name: cal},
		ActiveCalibration: cal.Name,
		PlatformInfo:      runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// ResolveCalibration returns the named calibration, the active one if the
// name is empty or unknown, or any remaining profile as a last resort.
func (b *Bundle) ResolveCalibration(name string) Calibration {
	if name != "" {
		if cal, ok := b.Calibrations[name]; ok {
			return cal
		}
	}
	if cal, ok := b.Calibrations[b.ActiveCalibration]; ok {
		return cal
	}
	for _, cal := range b.Calibrations {
		return cal.Sanitize()
	}
	return DefaultCalibration()
}

func (b *Bundle) sanitize() {
	b.Settings = b.Settings.Sanitize()
	if len(b.Calibrations) == 0 {
		cal := DefaultCalibration()
		b.Calibrations = map[string]Calibration{cal.Name: cal}
	}
	cleaned := make(map[string]Calibration, len(b.Calibrations))
	for name, cal := range b.Calibrations {
		if cal.Name == "" {
			cal.Name = name
		}
		cleaned[name] = cal.Sanitize()
	}
	b.Calibrations = cleaned
	if _, ok := b.Calibrations[b.ActiveCalibration]; !ok {
		for name := range b.Calibrations {
			b.ActiveCalibration = name
			break
		}
	}
}

// Manager handles loading and saving the settings bundle.
type Manager struct {
	mu     sync.Mutex
	path   string
	bundle *Bundle
}

// NewManager creates a configuration manager rooted in the platform's
// per-user config directory.
func NewManager() (*Manager, error) {
	path, err := settingsPath()
	if err != nil {
		return nil, err
	}
	return &Manager{path: path, bundle: DefaultBundle()}, nil
}

// NewManagerAt creates a configuration manager backed by an explicit file.
func NewManagerAt(path string) *Manager {
	return &Manager{path: path, bundle: DefaultBundle()}
}

// ConfigDir returns (and creates) the per-user macrocam directory.
func ConfigDir() (string, error) {
	var dir string
	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, "Library", "Application Support", "macrocam")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		dir = filepath.Join(appData, "macrocam")
	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dir = filepath.Join(home, ".config", "macrocam")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

func settingsPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "settings.json"), nil
}

// Load reads the bundle from disk. A missing file leaves the defaults in
// place; a malformed file is coerced field by field via sanitize.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}

	bundle := DefaultBundle()
	if err := json.Unmarshal(data, bundle); err != nil {
		log.Printf("Config: malformed settings file, keeping defaults: %v", err)
		return nil
	}
	bundle.sanitize()
	m.bundle = bundle
	return nil
}

// Save writes the bundle to disk.
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked()
}

func (m *Manager) saveLocked() error {
	data, err := json.MarshalIndent(m.bundle, "", "  ")
	if err != nil {
		return err
	}
	log.Printf("Config: saving settings to %s (%d bytes)", m.path, len(data))
	return os.WriteFile(m.path, data, 0644)
}

// Settings returns the current sanitized settings value.
func (m *Manager) Settings() Settings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bundle.Settings
}

// ActiveCalibration returns the currently active calibration profile and
// its name.
func (m *Manager) ActiveCalibration() (string, Calibration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cal := m.bundle.ResolveCalibration("")
	return cal.Name, cal
}

// UpdateSettings replaces the settings with a sanitized copy of the given
// value and persists the bundle. Settings are immutable values: sessions
// holding the previous value are unaffected.
func (m *Manager) UpdateSettings(s Settings) (Settings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bundle.Settings = s.Sanitize()
	if err := m.saveLocked(); err != nil {
		return m.bundle.Settings, err
	}
	return m.bundle.Settings, nil
}

// UpsertCalibration adds or replaces a calibration profile.
func (m *Manager) UpsertCalibration(cal Calibration, makeActive bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cal = cal.Sanitize()
	m.bundle.Calibrations[cal.Name] = cal
	if makeActive {
		m.bundle.ActiveCalibration = cal.Name
	}
	return m.saveLocked()
}

// SetActiveCalibration switches the active profile by name.
func (m *Manager) SetActiveCalibration(name string) (Calibration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cal, ok := m.bundle.Calibrations[name]
	if !ok {
		return Calibration{}, fmt.Errorf("calibration %q not found", name)
	}
	m.bundle.ActiveCalibration = name
	if err := m.saveLocked(); err != nil {
		return cal, err
	}
	return cal, nil
}

// Bundle returns a copy of the current bundle.
func (m *Manager) Bundle() Bundle {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := *m.bundle
	out.Calibrations = make(map[string]Calibration, len(m.bundle.Calibrations))
	for name, cal := range m.bundle.Calibrations {
		out.Calibrations[name] = cal
	}
	return out
}
