// Package timeline provides the high-resolution playback scheduler. A
// Controller anchors a monotonic base time and sleeps until offsets from
// that base with sub-millisecond accuracy, using a coarse sleep followed
// by a fine wait for the last stretch.
package timeline

import "time"

const (
	// coarse sleeps stop this far before the target; the fine phase
	// covers the remainder
	coarseMargin = 1500 * time.Microsecond
	fineStep     = 50 * time.Microsecond
)

// Controller schedules waits against a single monotonic anchor. It is not
// safe for concurrent use; each playback runner owns its own Controller.
type Controller struct {
	base time.Time
}

// NewController returns a controller with no anchor set. The first wait
// anchors it implicitly.
func NewController() *Controller {
	return &Controller{}
}

// Reset anchors the timeline at the current monotonic instant. Offsets
// passed to SleepUntil are measured from this point.
func (c *Controller) Reset() {
	c.base = time.Now()
}

// Elapsed returns seconds since the anchor.
func (c *Controller) Elapsed() float64 {
	return time.Since(c.base).Seconds()
}

// SleepUntil blocks until offset seconds have elapsed since the anchor.
// It returns immediately when the deadline already passed: playback never
// pauses to compensate for accumulated lag, it lets the next delta carry
// the catch-up. Waits use time.Sleep until roughly a millisecond remains,
// then short fixed sleeps down to the deadline.
func (c *Controller) SleepUntil(offset float64) {
	if c.base.IsZero() {
		c.Reset()
	}
	deadline := c.base.Add(time.Duration(offset * float64(time.Second)))
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return
		}
		if remaining > coarseMargin {
			time.Sleep(remaining - coarseMargin)
			continue
		}
		if remaining > fineStep {
			time.Sleep(fineStep)
			continue
		}
		time.Sleep(remaining)
	}
}
