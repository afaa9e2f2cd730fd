package camera

import (
	"testing"

	"macrocam/internal/config"
)

func filterSettings() config.Settings {
	set := config.DefaultSettings()
	set.DeadzoneThreshold = 0.35
	set.ReverseWindowMs = 30
	set.ReverseTinyRatio = 0.08
	return set
}

// TestFilterDeadzone verifies sub-deadzone motion is zeroed and larger
// motion passes.
func TestFilterDeadzone(t *testing.T) {
	cal := testCalibration()
	f := NewMotionFilter(filterSettings(), cal)

	// 0.2 counts worth of motion is below the 0.35 counts threshold
	small := 0.2 / cal.CountsPerDegreeX
	dx, dy := f.Apply(small, 0, 0.0)
	if dx != 0 || dy != 0 {
		t.Errorf("Expected sub-deadzone motion rejected, got (%f, %f)", dx, dy)
	}

	large := 0.6 / cal.CountsPerDegreeX
	dx, dy = f.Apply(large, 0, 0.001)
	if dx != large || dy != 0 {
		t.Errorf("Expected above-deadzone motion passed, got (%f, %f)", dx, dy)
	}
}

// TestFilterTinyReversal verifies a tiny opposite-sign sample within the
// window is suppressed while a large reversal passes.
func TestFilterTinyReversal(t *testing.T) {
	cal := testCalibration()
	f := NewMotionFilter(filterSettings(), cal)

	big := 2.0 // degrees
	if dx, _ := f.Apply(big, 0, 0.0); dx != big {
		t.Fatalf("Expected first sample accepted, got %f", dx)
	}

	// opposite sign, well under tiny_ratio * last magnitude, 5ms later
	tiny := -big * 0.01
	if dx, _ := f.Apply(tiny, 0, 0.005); dx != 0 {
		t.Errorf("Expected tiny reversal suppressed, got %f", dx)
	}

	// a real direction change of comparable magnitude passes
	if dx, _ := f.Apply(-big, 0, 0.010); dx != -big {
		t.Errorf("Expected large reversal passed, got %f", dx)
	}
}

// TestFilterReversalOutsideWindow verifies the window bounds suppression.
func TestFilterReversalOutsideWindow(t *testing.T) {
	cal := testCalibration()
	f := NewMotionFilter(filterSettings(), cal)

	f.Apply(2.0, 0, 0.0)
	// same tiny reversal but 100ms later, outside the 30ms window
	if dx, _ := f.Apply(-0.02, 0, 0.100); dx != -0.02 {
		t.Errorf("Expected reversal outside window passed, got %f", dx)
	}
}

// TestFilterStrictMode verifies strict mode is the identity function.
func TestFilterStrictMode(t *testing.T) {
	set := filterSettings()
	set.StrictMode = true
	f := NewMotionFilter(set, testCalibration())

	cases := [][3]float64{
		{0.001, -0.001, 0.0},
		{2.0, 0, 0.001},
		{-0.02, 0, 0.002},
	}
	for _, c := range cases {
		dx, dy := f.Apply(c[0], c[1], c[2])
		if dx != c[0] || dy != c[1] {
			t.Errorf("Strict mode altered (%f, %f) to (%f, %f)", c[0], c[1], dx, dy)
		}
	}
}
