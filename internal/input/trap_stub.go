//go:build !windows

package input

import "fmt"

// Trap is the capture stub for platforms without a capture backend.
type Trap struct{}

// NewTrap returns the stub capture.
func NewTrap() *Trap { return &Trap{} }

// Start always fails on this platform.
func (t *Trap) Start() error {
	return fmt.Errorf("input capture is not supported on this platform")
}

// Stop is a no-op.
func (t *Trap) Stop() error { return nil }

// Events returns nil; no events are ever produced.
func (t *Trap) Events() <-chan Event { return nil }

// Packets returns nil; no relative motion is available.
func (t *Trap) Packets() <-chan RawPacket { return nil }
