//go:build !windows

package hotkey

import "log"

// Listener is the no-op hotkey listener for platforms without a global
// hotkey backend.
type Listener struct{}

// NewListener returns the stub listener.
func NewListener() *Listener { return &Listener{} }

// Bind is accepted but never fires.
func (l *Listener) Bind(combo Combo, callback func()) {
	log.Printf("Hotkey: %s not available on this platform", combo.Label)
}

// Start is a no-op.
func (l *Listener) Start() error { return nil }

// Stop is a no-op.
func (l *Listener) Stop() {}
