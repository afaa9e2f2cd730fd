// Package macro defines the recording data model: discrete input events,
// raw camera samples, camera segments and the versioned on-disk schema.
package macro

import (
	"errors"
	"fmt"
	"math"
)

// FormatVersion is the persisted recording schema version.
const FormatVersion = 3

// Event types produced by the recorder.
const (
	EventMouseMove    = "mouse_move"
	EventMousePress   = "mouse_press"
	EventMouseRelease = "mouse_release"
	EventMouseScroll  = "mouse_scroll"
	EventKeyPress     = "key_press"
	EventKeyRelease   = "key_release"
)

// ButtonRight is the camera-drag button name used in event data.
const ButtonRight = "right"

// ErrCorruptRecording reports a loaded recording whose camera segments do
// not resolve to matching discrete events. No repair is attempted: silently
// reinterpreting a malformed recording risks injecting physically wrong
// motion.
var ErrCorruptRecording = errors.New("corrupt recording")

// Event is a discrete timestamped action outside camera segments: button
// press/release, key press/release, scroll or absolute pointer move.
// Timestamps are monotonic seconds relative to recording start.
type Event struct {
	Type      string         `json:"type"`
	Timestamp float64        `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// Int reads an integer field from the event data, zero when absent. JSON
// numbers decode as float64, so both representations are accepted.
func (e Event) Int(key string) int {
	switch v := e.Data[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

// Str reads a string field from the event data.
func (e Event) Str(key string) string {
	if v, ok := e.Data[key].(string); ok {
		return v
	}
	return ""
}

// IsRightButton reports whether the event is a press/release of the
// camera-drag button.
func (e Event) IsRightButton() bool {
	return (e.Type == EventMousePress || e.Type == EventMouseRelease) &&
		e.Str("button") == ButtonRight
}

// RawSample is one calibrated motion sample inside a camera segment.
// AngleDX/AngleDY are degrees with calibration applied but gain NOT
// applied: gain is a playback-time parameter, so recordings stay reusable
// across sensitivity changes.
type RawSample struct {
	Timestamp float64 `json:"timestamp"`
	AngleDX   float64 `json:"angle_dx"`
	AngleDY   float64 `json:"angle_dy"`
	RawDX     float64 `json:"raw_dx"`
	RawDY     float64 `json:"raw_dy"`
}

// CameraSegment is the motion captured while the camera-drag button was
// held. Samples are ordered by timestamp and confined to
// [PressTimestamp, ReleaseTimestamp]. Once closed, a segment is immutable.
type CameraSegment struct {
	PressEventIndex   int            `json:"press_event_index"`
	ReleaseEventIndex int            `json:"release_event_index"`
	PressTimestamp    float64        `json:"press_timestamp"`
	ReleaseTimestamp  float64        `json:"release_timestamp"`
	Samples           []RawSample    `json:"samples"`
	Metadata          map[string]any `json:"metadata,omitempty"`
}

// Duration returns the segment length in seconds, never negative.
func (s CameraSegment) Duration() float64 {
	if d := s.ReleaseTimestamp - s.PressTimestamp; d > 0 {
		return d
	}
	return 0
}

// SumAngles returns the segment's net angular displacement in degrees.
func (s CameraSegment) SumAngles() (float64, float64) {
	var totalX, totalY float64
	for _, sample := range s.Samples {
		totalX += sample.AngleDX
		totalY += sample.AngleDY
	}
	return totalX, totalY
}

// Recording is an ordered discrete event list plus the camera segments
// captured between matching right-button press/release events.
type Recording struct {
	Version        int             `json:"version"`
	Name           string          `json:"name"`
	CreatedAt      float64         `json:"created_at"`
	Events         []Event         `json:"events"`
	CameraSegments []CameraSegment `json:"camera_segments"`
	Metadata       map[string]any  `json:"metadata,omitempty"`
}

// Validate checks the segment/event invariants: every segment's press and
// release indices must reference existing right-button press/release
// events, segments must be ordered and non-overlapping, and release must
// not precede press. Violations fail fast with ErrCorruptRecording.
func (r *Recording) Validate() error {
	prevRelease := math.Inf(-1)
	for i, seg := range r.CameraSegments {
		if seg.PressEventIndex < 0 || seg.PressEventIndex >= len(r.Events) {
			return fmt.Errorf("%w: segment %d press index %d out of range", ErrCorruptRecording, i, seg.PressEventIndex)
		}
		if seg.ReleaseEventIndex < 0 || seg.ReleaseEventIndex >= len(r.Events) {
			return fmt.Errorf("%w: segment %d release index %d out of range", ErrCorruptRecording, i, seg.ReleaseEventIndex)
		}
		press := r.Events[seg.PressEventIndex]
		if press.Type != EventMousePress || press.Str("button") != ButtonRight {
			return fmt.Errorf("%w: segment %d press index %d is not a right-button press", ErrCorruptRecording, i, seg.PressEventIndex)
		}
		release := r.Events[seg.ReleaseEventIndex]
		if release.Type != EventMouseRelease || release.Str("button") != ButtonRight {
			return fmt.Errorf("%w: segment %d release index %d is not a right-button release", ErrCorruptRecording, i, seg.ReleaseEventIndex)
		}
		if seg.ReleaseTimestamp < seg.PressTimestamp {
			return fmt.Errorf("%w: segment %d release precedes press", ErrCorruptRecording, i)
		}
		if seg.PressTimestamp < prevRelease {
			return fmt.Errorf("%w: segment %d overlaps previous segment", ErrCorruptRecording, i)
		}
		prevRelease = seg.ReleaseTimestamp
	}
	return nil
}

// SegmentsByPressIndex maps each segment by its press event index.
func (r *Recording) SegmentsByPressIndex() map[int]CameraSegment {
	out := make(map[int]CameraSegment, len(r.CameraSegments))
	for _, seg := range r.CameraSegments {
		out[seg.PressEventIndex] = seg
	}
	return out
}

// Describe returns a short summary used in listings and logs.
func (r *Recording) Describe() string {
	var dx, dy float64
	for _, seg := range r.CameraSegments {
		sx, sy := seg.SumAngles()
		dx += sx
		dy += sy
	}
	return fmt.Sprintf("%d events, %d camera segments, camera total (%.2f, %.2f) deg",
		len(r.Events), len(r.CameraSegments), dx, dy)
}
