// Package input provides cross-platform input capture and injection.
// Capture implementations deliver discrete events and, where the platform
// supports it, high-rate relative motion packets. Injector implementations
// synthesize pointer and keyboard input.
package input

import (
	"errors"
	"time"
)

// ErrRawInputUnavailable is returned when the platform cannot deliver
// hardware-relative pointer motion. Callers fall back to absolute cursor
// position sampling.
var ErrRawInputUnavailable = errors.New("raw input unavailable")

// ErrAllBackendsFailed is returned when every injection backend rejected
// an event.
var ErrAllBackendsFailed = errors.New("all injection backends failed")

// RawPacket is one hardware-relative motion report. DX/DY are device
// counts, not screen pixels. Button edges and wheel ticks ride along so
// the consumer sees them in device order relative to the motion stream.
type RawPacket struct {
	DX, DY    int
	Wheel     int
	RightDown bool
	RightUp   bool
	At        time.Time
}

// Event is a discrete input event: button transitions, key transitions,
// wheel ticks and absolute cursor positions.
type Event struct {
	Type    string // "mouse_move", "mouse_btn", "key", "wheel"
	X, Y    int    // absolute cursor position for mouse_move
	Button  int    // 1=left, 2=right, 3=middle
	Pressed bool
	KeyCode uint16
	Wheel   int
	At      time.Time
}

// Capture captures system-wide input.
type Capture interface {
	Start() error
	Stop() error
	// Events delivers discrete events.
	Events() <-chan Event
	// Packets delivers relative motion packets. It returns nil when the
	// platform only supports absolute cursor sampling.
	Packets() <-chan RawPacket
}

// Injector synthesizes input events.
type Injector interface {
	MoveRelative(dx, dy int) error
	MoveAbsolute(x, y int) error
	Button(button int, pressed bool) error
	Key(keyCode uint16, pressed bool) error
	Scroll(delta int) error
}
