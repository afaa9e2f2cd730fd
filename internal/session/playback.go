// Package session implements the recording and playback sessions that tie
// capture, the camera pipeline, the scheduler and injection together.
package session

import (
	"errors"
	"fmt"
	"log"
	"math"

	"macrocam/internal/camera"
	"macrocam/internal/config"
	"macrocam/internal/input"
	"macrocam/internal/macro"
	"macrocam/internal/osutils"
	"macrocam/internal/timeline"
)

// ErrCancelled reports cooperative playback cancellation. The pointer is
// left wherever the last injected step put it.
var ErrCancelled = errors.New("playback cancelled")

// action is one scheduled camera injection: integer steps due at an
// absolute recording-relative timestamp.
type action struct {
	at    float64
	dx    int
	dy    int
	angle [2]float64 // gain-corrected angle equivalent of (dx, dy)
}

// Runner replays one camera segment. The full action timeline is computed
// eagerly before the first injection so the hot loop does no filtering or
// resampling, only waiting and injecting. Two runs over the same segment
// and settings produce identical timelines.
type Runner struct {
	segment macro.CameraSegment
	cal     config.Calibration
	actions []action
	next    int
	played  []macro.RawSample
	sender  *input.Sender
	tl      *timeline.Controller
}

// NewRunner precomputes the action timeline for a segment: resample to the
// target rate, filter, convert angles to gained counts, quantize through
// the sub-pixel accumulator.
func NewRunner(segment macro.CameraSegment, set config.Settings, cal config.Calibration, sender *input.Sender, tl *timeline.Controller) *Runner {
	r := &Runner{segment: segment, cal: cal, sender: sender, tl: tl}

	model := camera.NewModel(cal, set)
	filter := camera.NewMotionFilter(set, cal)
	acc := camera.NewSubPixelAccumulator(set.SenderMaxStep)
	trajectory := camera.NewTrajectory(segment, cal)

	invX, invY := 1.0, 1.0
	if set.InvertX {
		invX = -1
	}
	if set.InvertY {
		invY = -1
	}
	appendSteps := func(at float64, steps []camera.Step) {
		for _, step := range steps {
			ax := invX * float64(step.DX) / (cal.CountsPerDegreeX * model.GainX())
			ay := invY * float64(step.DY) / (cal.CountsPerDegreeY * model.GainY())
			r.actions = append(r.actions, action{at: at, dx: step.DX, dy: step.DY, angle: [2]float64{ax, ay}})
		}
	}

	for _, sample := range trajectory.Resample(set.TargetRateHz) {
		dxDeg, dyDeg := filter.Apply(sample.AngleDX, sample.AngleDY, sample.Timestamp)
		if dxDeg == 0 && dyDeg == 0 {
			continue
		}
		countsX, countsY := model.AnglesToCounts(dxDeg, dyDeg, true)
		appendSteps(sample.Timestamp, acc.Feed(countsX, countsY))
	}
	appendSteps(segment.ReleaseTimestamp, acc.Flush())
	return r
}

// DrainUntil plays every pending action scheduled at or before limit.
// cancelled is polled before each action. An injection failure abandons
// the rest of the segment timeline.
func (r *Runner) DrainUntil(limit float64, cancelled func() bool) error {
	for r.next < len(r.actions) && r.actions[r.next].at <= limit {
		if cancelled() {
			return ErrCancelled
		}
		act := r.actions[r.next]
		r.tl.SleepUntil(act.at)
		if err := r.sender.SendRelative(act.dx, act.dy); err != nil {
			r.next = len(r.actions)
			return fmt.Errorf("camera step at %.4fs: %w", act.at, err)
		}
		r.played = append(r.played, macro.RawSample{
			Timestamp: act.at,
			AngleDX:   act.angle[0],
			AngleDY:   act.angle[1],
			RawDX:     float64(act.dx),
			RawDY:     float64(act.dy),
		})
		r.next++
	}
	return nil
}

// Finalize drains the rest of the timeline and returns the accuracy
// diagnostics for whatever was actually injected.
func (r *Runner) Finalize(cancelled func() bool) (camera.PlaybackDiagnostics, error) {
	err := r.DrainUntil(math.Inf(1), cancelled)
	return r.Diagnostics(), err
}

// Diagnostics summarizes the steps injected so far against the recorded
// trajectory. Valid mid-run; used for partial reports after abandonment.
func (r *Runner) Diagnostics() camera.PlaybackDiagnostics {
	return camera.SummarizePlayback(r.segment, r.played, r.cal)
}

// PlaybackResult is the outcome of replaying one recording.
type PlaybackResult struct {
	Diagnostics []camera.PlaybackDiagnostics
	MaxErrorDeg float64
	AvgErrorDeg float64
	Segments    int
	Cancelled   bool
}

// Play replays a recording. Discrete events are interleaved with camera
// segment timelines on a single scheduler, so ordering between the two
// streams matches the recording. stop requests cooperative cancellation.
func Play(rec *macro.Recording, set config.Settings, cal config.Calibration, inj input.Injector, stop <-chan struct{}) (*PlaybackResult, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	set = set.Sanitize()
	cal = cal.Sanitize()

	release, err := osutils.HighPriorityContext()
	if err != nil {
		log.Printf("Playback: high priority unavailable: %v", err)
		release = func() {}
	}
	defer release()

	cancelled := func() bool {
		select {
		case <-stop:
			return true
		default:
			return false
		}
	}

	sender := input.NewSender(inj, set.SenderMaxStep, set.SenderDelayMs)
	tl := timeline.NewController()
	tl.Reset()
	segments := rec.SegmentsByPressIndex()
	result := &PlaybackResult{}

	var runner *Runner
	abandonOrFail := func(err error) (bool, error) {
		// injection failure abandons the current segment but keeps the
		// partial diagnostics; anything else aborts the whole playback
		if errors.Is(err, ErrCancelled) {
			result.Cancelled = true
			if runner != nil {
				result.Diagnostics = append(result.Diagnostics, runner.Diagnostics())
				runner = nil
			}
			return true, nil
		}
		if errors.Is(err, input.ErrAllBackendsFailed) {
			log.Printf("Playback: abandoning segment timeline: %v", err)
			result.Diagnostics = append(result.Diagnostics, runner.Diagnostics())
			runner = nil
			return false, nil
		}
		return true, err
	}

	for idx, ev := range rec.Events {
		if cancelled() {
			result.Cancelled = true
			break
		}
		if runner != nil {
			if err := runner.DrainUntil(ev.Timestamp, cancelled); err != nil {
				if done, ferr := abandonOrFail(err); done {
					if ferr != nil {
						return nil, ferr
					}
					break
				}
			}
		}
		tl.SleepUntil(ev.Timestamp)

		switch ev.Type {
		case macro.EventMousePress:
			button := buttonNumber(ev.Str("button"))
			if seg, ok := segments[idx]; ok && ev.IsRightButton() {
				if runner != nil {
					log.Printf("Playback: nested camera segment at event %d ignored", idx)
				} else {
					runner = NewRunner(seg, set, cal, sender, tl)
					result.Segments++
				}
			}
			if err := inj.Button(button, true); err != nil {
				log.Printf("Playback: button press failed: %v", err)
			}
		case macro.EventMouseRelease:
			button := buttonNumber(ev.Str("button"))
			if runner != nil && ev.IsRightButton() {
				diag, err := runner.Finalize(cancelled)
				result.Diagnostics = append(result.Diagnostics, diag)
				runner = nil
				if err != nil {
					if errors.Is(err, ErrCancelled) {
						result.Cancelled = true
					} else if !errors.Is(err, input.ErrAllBackendsFailed) {
						return nil, err
					} else {
						log.Printf("Playback: segment finalize degraded: %v", err)
					}
				}
				log.Printf("Playback: %s", diag)
			}
			if err := inj.Button(button, false); err != nil {
				log.Printf("Playback: button release failed: %v", err)
			}
		case macro.EventMouseMove:
			if runner != nil {
				// absolute moves recorded inside a camera segment would
				// fight the relative stream; log and skip
				log.Printf("Playback: skipping absolute move during camera segment")
				break
			}
			if err := inj.MoveAbsolute(ev.Int("x"), ev.Int("y")); err != nil {
				log.Printf("Playback: absolute move failed: %v", err)
			}
		case macro.EventKeyPress:
			if err := inj.Key(uint16(ev.Int("key")), true); err != nil {
				log.Printf("Playback: key press failed: %v", err)
			}
		case macro.EventKeyRelease:
			if err := inj.Key(uint16(ev.Int("key")), false); err != nil {
				log.Printf("Playback: key release failed: %v", err)
			}
		case macro.EventMouseScroll:
			if err := inj.Scroll(ev.Int("delta")); err != nil {
				log.Printf("Playback: scroll failed: %v", err)
			}
		}
		if result.Cancelled {
			break
		}
	}

	if runner != nil {
		if result.Cancelled {
			result.Diagnostics = append(result.Diagnostics, runner.Diagnostics())
		} else {
			diag, err := runner.Finalize(cancelled)
			result.Diagnostics = append(result.Diagnostics, diag)
			if errors.Is(err, ErrCancelled) {
				result.Cancelled = true
			} else if err != nil && !errors.Is(err, input.ErrAllBackendsFailed) {
				return nil, err
			}
		}
	}

	var sum float64
	for _, d := range result.Diagnostics {
		sum += d.MeanErrorDeg
		if d.MaxErrorDeg > result.MaxErrorDeg {
			result.MaxErrorDeg = d.MaxErrorDeg
		}
	}
	if len(result.Diagnostics) > 0 {
		result.AvgErrorDeg = sum / float64(len(result.Diagnostics))
	}
	return result, nil
}

func buttonNumber(name string) int {
	switch name {
	case "left":
		return 1
	case macro.ButtonRight:
		return 2
	case "middle":
		return 3
	}
	return 1
}
