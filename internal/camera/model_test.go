package camera

import (
	"math"
	"testing"

	"macrocam/internal/config"
)

func testCalibration() config.Calibration {
	return config.Calibration{
		Name:             "test",
		DPI:              800,
		CountsPerDegreeX: 12.5,
		CountsPerDegreeY: 10.0,
		CaptureFPS:       120,
	}.Sanitize()
}

func testSettings() config.Settings {
	return config.DefaultSettings()
}

func approx(a, b, eps float64) bool {
	return math.Abs(a-b) <= eps
}

// TestCountsToAngles verifies the basic counts/degree conversion.
func TestCountsToAngles(t *testing.T) {
	m := NewModel(testCalibration(), testSettings())

	ax, ay := m.CountsToAngles(25, -20, false)
	if !approx(ax, 2.0, 1e-12) {
		t.Errorf("Expected 2.0 deg on X, got %f", ax)
	}
	if !approx(ay, -2.0, 1e-12) {
		t.Errorf("Expected -2.0 deg on Y, got %f", ay)
	}
}

// TestAnglesToCountsRoundTrip verifies the conversions are inverses.
func TestAnglesToCountsRoundTrip(t *testing.T) {
	set := testSettings()
	set.CameraGain = 1.5
	set.GainX = 2.0
	set.InvertY = true
	m := NewModel(testCalibration(), set.Sanitize())

	cx, cy := m.AnglesToCounts(3.0, -1.25, true)
	ax, ay := m.CountsToAngles(cx, cy, false)
	// dividing out the gain should recover the original angles
	if !approx(ax/m.GainX(), 3.0, 1e-9) {
		t.Errorf("X round trip: got %f, want 3.0 after gain correction", ax/m.GainX())
	}
	if !approx(ay/m.GainY(), -1.25, 1e-9) {
		t.Errorf("Y round trip: got %f, want -1.25 after gain correction", ay/m.GainY())
	}
}

// TestGainCombination verifies the global and per-axis gains multiply.
func TestGainCombination(t *testing.T) {
	set := testSettings()
	set.CameraGain = 2.0
	set.GainX = 1.5
	set.GainY = 0.5
	m := NewModel(testCalibration(), set.Sanitize())

	if !approx(m.GainX(), 3.0, 1e-12) {
		t.Errorf("Expected effective X gain 3.0, got %f", m.GainX())
	}
	if !approx(m.GainY(), 1.0, 1e-12) {
		t.Errorf("Expected effective Y gain 1.0, got %f", m.GainY())
	}
}

// TestInversion verifies axis inversion flips signs in both directions.
func TestInversion(t *testing.T) {
	set := testSettings()
	set.InvertX = true
	m := NewModel(testCalibration(), set)

	ax, ay := m.CountsToAngles(12.5, 10.0, false)
	if ax >= 0 {
		t.Errorf("Expected negative X after inversion, got %f", ax)
	}
	if ay <= 0 {
		t.Errorf("Expected positive Y, got %f", ay)
	}
}

// TestDeadzoneDeg verifies the counts threshold converts to degrees once.
func TestDeadzoneDeg(t *testing.T) {
	set := testSettings()
	set.DeadzoneThreshold = 0.5
	m := NewModel(testCalibration(), set)
	if !approx(m.DeadzoneDeg(), 0.5/12.5, 1e-12) {
		t.Errorf("Expected deadzone %f deg, got %f", 0.5/12.5, m.DeadzoneDeg())
	}
}
