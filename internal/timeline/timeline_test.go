package timeline

import (
	"testing"
	"time"
)

// TestSleepUntilNeverEarly verifies waits never return before the target.
func TestSleepUntilNeverEarly(t *testing.T) {
	c := NewController()
	c.Reset()

	offsets := []float64{0.002, 0.005, 0.008, 0.012}
	for _, offset := range offsets {
		c.SleepUntil(offset)
		if got := c.Elapsed(); got < offset {
			t.Errorf("SleepUntil(%f) returned at %f, before the target", offset, got)
		}
	}
}

// TestSleepUntilPastDeadline verifies an already-passed offset returns
// immediately instead of compensating.
func TestSleepUntilPastDeadline(t *testing.T) {
	c := NewController()
	c.Reset()
	time.Sleep(5 * time.Millisecond)

	start := time.Now()
	c.SleepUntil(0.001)
	if waited := time.Since(start); waited > 2*time.Millisecond {
		t.Errorf("Past deadline still waited %v", waited)
	}
}

// TestSleepUntilOvershoot verifies waits land reasonably close to the
// target. The bound is generous; CI schedulers jitter.
func TestSleepUntilOvershoot(t *testing.T) {
	c := NewController()

	var worst time.Duration
	for i := 1; i <= 20; i++ {
		c.Reset()
		target := float64(i%5+1) * 0.002
		before := time.Now()
		c.SleepUntil(target)
		overshoot := time.Since(before) - time.Duration(target*float64(time.Second))
		if overshoot > worst {
			worst = overshoot
		}
	}
	if worst > 10*time.Millisecond {
		t.Errorf("Worst overshoot %v exceeds 10ms", worst)
	}
}

// TestImplicitReset verifies the first wait anchors an unset controller.
func TestImplicitReset(t *testing.T) {
	c := NewController()
	start := time.Now()
	c.SleepUntil(0.003)
	if waited := time.Since(start); waited < 3*time.Millisecond {
		t.Errorf("Implicit reset waited only %v", waited)
	}
}
