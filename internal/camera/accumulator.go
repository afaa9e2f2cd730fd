package camera

import "math"

// Step is one atomic integer injection: a single relative pointer move.
type Step struct {
	DX int
	DY int
}

// SubPixelAccumulator quantizes continuous motion into bounded integer
// steps without losing fractional displacement. Per-axis float remainders
// carry across feeds, so total emitted plus flushed displacement equals
// round(total fed) within one unit per axis regardless of how the input
// was partitioned.
type SubPixelAccumulator struct {
	maxStep int
	bufX    float64
	bufY    float64
}

// NewSubPixelAccumulator creates an accumulator with the given per-step
// magnitude cap (minimum 1).
func NewSubPixelAccumulator(maxStep int) *SubPixelAccumulator {
	if maxStep < 1 {
		maxStep = 1
	}
	return &SubPixelAccumulator{maxStep: maxStep}
}

func (a *SubPixelAccumulator) drainAxis(buf *float64) int {
	if math.Abs(*buf) < 1.0 {
		return 0
	}
	magnitude := int(math.Abs(*buf))
	if magnitude > a.maxStep {
		magnitude = a.maxStep
	}
	if magnitude == 0 {
		magnitude = 1
	}
	step := magnitude
	if *buf < 0 {
		step = -magnitude
	}
	*buf -= float64(step)
	return step
}

// Feed adds continuous counts to the buffers and emits integer steps while
// either buffer's magnitude is at least one, each step capped at maxStep
// per axis.
func (a *SubPixelAccumulator) Feed(countsX, countsY float64) []Step {
	a.bufX += countsX
	a.bufY += countsY
	var emitted []Step
	for {
		step := Step{DX: a.drainAxis(&a.bufX), DY: a.drainAxis(&a.bufY)}
		if step.DX == 0 && step.DY == 0 {
			break
		}
		emitted = append(emitted, step)
	}
	return emitted
}

// Flush rounds any remaining fractional buffer to the nearest integer and
// emits it once if non-zero, zeroing the buffers.
func (a *SubPixelAccumulator) Flush() []Step {
	if a.bufX == 0 && a.bufY == 0 {
		return nil
	}
	remX := int(math.Round(a.bufX))
	remY := int(math.Round(a.bufY))
	a.bufX -= float64(remX)
	a.bufY -= float64(remY)
	if remX == 0 && remY == 0 {
		return nil
	}
	return []Step{{DX: remX, DY: remY}}
}
