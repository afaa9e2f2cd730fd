// Package hotkey registers global hotkeys for the record/playback kill
// switch and toggles.
package hotkey

import (
	"fmt"
	"strings"
)

// Modifier bits, matching the Win32 MOD_* values.
const (
	ModAlt     = 0x0001
	ModControl = 0x0002
	ModShift   = 0x0004
	ModWin     = 0x0008
)

// Combo is a parsed hotkey combination.
type Combo struct {
	Modifiers uint32
	KeyCode   uint32
	Label     string
}

var namedKeys = map[string]uint32{
	"esc":    0x1B,
	"escape": 0x1B,
	"space":  0x20,
	"f1":     0x70, "f2": 0x71, "f3": 0x72, "f4": 0x73,
	"f5": 0x74, "f6": 0x75, "f7": 0x76, "f8": 0x77,
	"f9": 0x78, "f10": 0x79, "f11": 0x7A, "f12": 0x7B,
}

// Parse turns a string like "Ctrl+Alt+F9" into a Combo.
func Parse(spec string) (Combo, error) {
	combo := Combo{Label: spec}
	parts := strings.Split(spec, "+")
	if len(parts) == 0 {
		return combo, fmt.Errorf("empty hotkey spec")
	}
	for _, part := range parts[:len(parts)-1] {
		switch strings.ToLower(strings.TrimSpace(part)) {
		case "ctrl", "control":
			combo.Modifiers |= ModControl
		case "alt":
			combo.Modifiers |= ModAlt
		case "shift":
			combo.Modifiers |= ModShift
		case "win", "super":
			combo.Modifiers |= ModWin
		default:
			return combo, fmt.Errorf("unknown modifier %q in %q", part, spec)
		}
	}
	key := strings.ToLower(strings.TrimSpace(parts[len(parts)-1]))
	if code, ok := namedKeys[key]; ok {
		combo.KeyCode = code
		return combo, nil
	}
	if len(key) == 1 {
		ch := key[0]
		if ch >= 'a' && ch <= 'z' {
			combo.KeyCode = uint32(ch - 'a' + 'A')
			return combo, nil
		}
		if ch >= '0' && ch <= '9' {
			combo.KeyCode = uint32(ch)
			return combo, nil
		}
	}
	return combo, fmt.Errorf("unknown key %q in %q", key, spec)
}
