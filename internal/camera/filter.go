package camera

import (
	"math"

	"macrocam/internal/config"
)

type filterEntry struct {
	timestamp float64
	dx, dy    float64
}

// MotionFilter suppresses sensor noise in a stream of angle deltas. It is
// stateful per segment: it keeps a time-bounded window of previously
// accepted samples and rejects sub-deadzone motion and tiny single-sample
// direction reversals. Raw HID deltas contain direction flips from optical
// noise that, replayed literally, produce jitter absent from the human
// gesture.
type MotionFilter struct {
	deadzoneDeg   float64
	reverseWindow float64
	tinyRatio     float64
	strict        bool
	history       []filterEntry
}

// NewMotionFilter builds a fresh filter for one segment.
func NewMotionFilter(set config.Settings, cal config.Calibration) *MotionFilter {
	deadzone := 0.0
	if set.DeadzoneThreshold > 0 {
		deadzone = set.DeadzoneThreshold / cal.CountsPerDegreeX
	}
	return &MotionFilter{
		deadzoneDeg:   deadzone,
		reverseWindow: set.ReverseWindowMs / 1000.0,
		tinyRatio:     set.ReverseTinyRatio,
		strict:        set.StrictMode,
	}
}

// Apply filters one angle-delta sample. It returns the sample unchanged
// when accepted and (0, 0) when rejected. In strict mode both checks are
// bypassed and Apply is the identity function.
func (f *MotionFilter) Apply(dx, dy, timestamp float64) (float64, float64) {
	if f.strict {
		return dx, dy
	}
	magnitude := math.Hypot(dx, dy)
	if magnitude < f.deadzoneDeg {
		return 0, 0
	}
	if len(f.history) == 0 {
		f.history = append(f.history, filterEntry{timestamp, dx, dy})
		return dx, dy
	}
	last := f.history[len(f.history)-1]
	if timestamp-last.timestamp <= f.reverseWindow {
		lastMag := math.Hypot(last.dx, last.dy)
		ratio := math.Max(0, f.tinyRatio)
		if lastMag > 0 && magnitude < lastMag*ratio {
			reversedX := dx != 0 && math.Signbit(dx) != math.Signbit(last.dx)
			reversedY := dy != 0 && math.Signbit(dy) != math.Signbit(last.dy)
			if reversedX || reversedY {
				return 0, 0
			}
		}
	}
	f.history = append(f.history, filterEntry{timestamp, dx, dy})
	evict := 0
	for evict < len(f.history) && timestamp-f.history[evict].timestamp > f.reverseWindow {
		evict++
	}
	if evict > 0 {
		f.history = f.history[evict:]
	}
	return dx, dy
}
