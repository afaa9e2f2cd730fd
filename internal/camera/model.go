// Package camera implements the camera-drag pipeline: the calibration
// model, motion filter, trajectory resampler, sub-pixel accumulator and
// the playback diagnostics derived from them.
package camera

import (
	"macrocam/internal/config"
)

// Model converts between raw device counts and camera rotation degrees
// under one calibration and one settings value. All methods are pure; a
// Model is safe to share across goroutines.
type Model struct {
	cal config.Calibration
	set config.Settings

	// deadzone converted to degree space once, so hot loops avoid
	// a division per sample
	deadzoneDeg float64
}

// NewModel builds a conversion model from a calibration and settings pair.
func NewModel(cal config.Calibration, set config.Settings) Model {
	m := Model{cal: cal, set: set}
	if set.DeadzoneThreshold > 0 {
		m.deadzoneDeg = set.DeadzoneThreshold / cal.CountsPerDegreeX
	}
	return m
}

// GainX returns the effective horizontal gain (global times per-axis).
func (m Model) GainX() float64 { return m.set.CameraGain * m.set.GainX }

// GainY returns the effective vertical gain.
func (m Model) GainY() float64 { return m.set.CameraGain * m.set.GainY }

// CountsToAngles converts raw counts to degrees, optionally applying gain,
// then applying axis inversion.
func (m Model) CountsToAngles(dx, dy float64, applyGain bool) (float64, float64) {
	angleX := dx / m.cal.CountsPerDegreeX
	angleY := dy / m.cal.CountsPerDegreeY
	if applyGain {
		angleX *= m.GainX()
		angleY *= m.GainY()
	}
	if m.set.InvertX {
		angleX = -angleX
	}
	if m.set.InvertY {
		angleY = -angleY
	}
	return angleX, angleY
}

// AnglesToCounts is the inverse conversion, used when re-quantizing
// degrees back into injectable counts.
func (m Model) AnglesToCounts(angleDX, angleDY float64, includeGain bool) (float64, float64) {
	dx := angleDX
	dy := angleDY
	if includeGain {
		dx *= m.GainX()
		dy *= m.GainY()
	}
	if m.set.InvertX {
		dx = -dx
	}
	if m.set.InvertY {
		dy = -dy
	}
	return dx * m.cal.CountsPerDegreeX, dy * m.cal.CountsPerDegreeY
}

// DeadzoneDeg returns the deadzone threshold converted to degrees.
func (m Model) DeadzoneDeg() float64 { return m.deadzoneDeg }
