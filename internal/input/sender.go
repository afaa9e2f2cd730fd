package input

import (
	"fmt"
	"time"
)

// SplitMove breaks a relative move into sub-steps whose per-axis magnitude
// never exceeds maxStep. The sub-steps sum exactly to (dx, dy).
func SplitMove(dx, dy, maxStep int) [][2]int {
	if maxStep < 1 {
		maxStep = 1
	}
	var out [][2]int
	for dx != 0 || dy != 0 {
		sx := clampStep(dx, maxStep)
		sy := clampStep(dy, maxStep)
		dx -= sx
		dy -= sy
		out = append(out, [2]int{sx, sy})
	}
	return out
}

func clampStep(v, maxStep int) int {
	if v > maxStep {
		return maxStep
	}
	if v < -maxStep {
		return -maxStep
	}
	return v
}

// Sender wraps an Injector with step splitting and inter-step pacing.
// Large relative moves arrive at the injector as a burst of small steps
// separated by the configured delay, which keeps game input handlers from
// coalescing or discarding them.
type Sender struct {
	inj     Injector
	maxStep int
	delay   time.Duration
}

// NewSender builds a sender. delayMs may be fractional.
func NewSender(inj Injector, maxStep int, delayMs float64) *Sender {
	if maxStep < 1 {
		maxStep = 1
	}
	if delayMs < 0 {
		delayMs = 0
	}
	return &Sender{
		inj:     inj,
		maxStep: maxStep,
		delay:   time.Duration(delayMs * float64(time.Millisecond)),
	}
}

// SendRelative injects (dx, dy) as paced sub-steps.
func (s *Sender) SendRelative(dx, dy int) error {
	steps := SplitMove(dx, dy, s.maxStep)
	for i, step := range steps {
		if i > 0 && s.delay > 0 {
			time.Sleep(s.delay)
		}
		if err := s.inj.MoveRelative(step[0], step[1]); err != nil {
			return fmt.Errorf("relative move (%d, %d) step %d/%d: %w", dx, dy, i+1, len(steps), err)
		}
	}
	return nil
}
