package camera

import (
	"math"
	"math/rand"
	"testing"
)

// TestAccumulatorStepCap verifies emitted steps never exceed max_step and
// sum to the integer part of the fed motion.
func TestAccumulatorStepCap(t *testing.T) {
	acc := NewSubPixelAccumulator(2)

	steps := acc.Feed(3.6, 0)
	var sum int
	for _, s := range steps {
		if s.DX > 2 || s.DX < -2 {
			t.Errorf("Step %d exceeds max_step 2", s.DX)
		}
		sum += s.DX
	}
	if sum != 3 {
		t.Errorf("Emitted %d, want 3 from 3.6 counts", sum)
	}

	// remaining 0.6 rounds up on flush
	flushed := acc.Flush()
	if len(flushed) != 1 || flushed[0].DX != 1 {
		t.Errorf("Expected flush step of 1, got %+v", flushed)
	}
	if again := acc.Flush(); again != nil {
		t.Errorf("Second flush should be empty, got %+v", again)
	}
}

// TestAccumulatorCarriesFraction verifies sub-unit feeds accumulate
// instead of being dropped.
func TestAccumulatorCarriesFraction(t *testing.T) {
	acc := NewSubPixelAccumulator(1)
	var total int
	for i := 0; i < 10; i++ {
		for _, s := range acc.Feed(0.3, 0) {
			total += s.DX
		}
	}
	// 10 x 0.3 = 3.0 counts; exactly 3 must have been emitted
	if total != 3 {
		t.Errorf("Emitted %d from ten 0.3 feeds, want 3", total)
	}
}

// TestAccumulatorNoDrift verifies total emitted plus flushed displacement
// matches the rounded input regardless of partitioning.
func TestAccumulatorNoDrift(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	acc := NewSubPixelAccumulator(3)

	var fedX, fedY float64
	var sentX, sentY int
	for i := 0; i < 5000; i++ {
		dx := (rng.Float64() - 0.5) * 4
		dy := (rng.Float64() - 0.5) * 4
		fedX += dx
		fedY += dy
		for _, s := range acc.Feed(dx, dy) {
			sentX += s.DX
			sentY += s.DY
		}
	}
	for _, s := range acc.Flush() {
		sentX += s.DX
		sentY += s.DY
	}

	if math.Abs(float64(sentX)-fedX) > 1.0 {
		t.Errorf("X drift: sent %d, fed %f", sentX, fedX)
	}
	if math.Abs(float64(sentY)-fedY) > 1.0 {
		t.Errorf("Y drift: sent %d, fed %f", sentY, fedY)
	}
}

// TestAccumulatorNegative verifies symmetric behavior for negative motion.
func TestAccumulatorNegative(t *testing.T) {
	acc := NewSubPixelAccumulator(1)
	steps := acc.Feed(-2.4, 1.4)
	var dx, dy int
	for _, s := range steps {
		dx += s.DX
		dy += s.DY
	}
	if dx != -2 || dy != 1 {
		t.Errorf("Got (%d, %d), want (-2, 1)", dx, dy)
	}
}
