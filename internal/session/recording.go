package session

import (
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"macrocam/internal/camera"
	"macrocam/internal/config"
	"macrocam/internal/input"
	"macrocam/internal/macro"
	"macrocam/internal/osutils"
)

// Recorder captures one recording. A single collector goroutine owns the
// in-progress Recording and is the only writer: capture channels and the
// stop request are serialized through its select loop, so a button event
// racing the stop request cannot corrupt the segment lifecycle.
type Recorder struct {
	cap     input.Capture
	set     config.Settings
	cal     config.Calibration
	calName string

	mu      sync.Mutex
	running bool
	stopReq chan chan *macro.Recording
}

// NewRecorder builds a recorder bound to a capture backend and the
// settings and calibration to snapshot into the recording metadata.
func NewRecorder(cap input.Capture, set config.Settings, cal config.Calibration, calName string) *Recorder {
	return &Recorder{
		cap:     cap,
		set:     set.Sanitize(),
		cal:     cal.Sanitize(),
		calName: calName,
		stopReq: make(chan chan *macro.Recording),
	}
}

// Start begins capture and the collector loop.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return fmt.Errorf("recorder already running")
	}
	if err := r.cap.Start(); err != nil {
		return fmt.Errorf("start capture: %w", err)
	}
	r.running = true
	go r.collect(r.cap.Events(), r.cap.Packets(), time.Now())
	return nil
}

// Stop ends the recording and returns it. An open camera segment is
// closed with a synthesized release at the stop instant.
func (r *Recorder) Stop() (*macro.Recording, error) {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil, fmt.Errorf("recorder not running")
	}
	r.running = false
	r.mu.Unlock()

	reply := make(chan *macro.Recording)
	r.stopReq <- reply
	rec := <-reply
	if err := r.cap.Stop(); err != nil {
		log.Printf("Recorder: capture stop: %v", err)
	}
	return rec, nil
}

type openSegment struct {
	pressIndex int
	pressAt    float64
	samples    []macro.RawSample
}

func (r *Recorder) collect(events <-chan input.Event, packets <-chan input.RawPacket, start time.Time) {
	rawMode := packets != nil
	model := camera.NewModel(r.cal, r.set)
	rec := &macro.Recording{
		Version:   macro.FormatVersion,
		CreatedAt: float64(time.Now().UnixNano()) / float64(time.Second),
	}
	rel := func(t time.Time) float64 { return t.Sub(start).Seconds() }

	var open *openSegment
	var lastX, lastY int
	haveLast := false

	closeSegment := func(releaseIndex int, releaseAt float64) {
		if open == nil {
			return
		}
		seg := macro.CameraSegment{
			PressEventIndex:   open.pressIndex,
			ReleaseEventIndex: releaseIndex,
			PressTimestamp:    open.pressAt,
			ReleaseTimestamp:  releaseAt,
			Samples:           open.samples,
		}
		open = nil
		sumX, sumY := seg.SumAngles()
		if len(seg.Samples) == 0 || math.Abs(sumX)+math.Abs(sumY) < 1e-9 {
			// a click without drag carries no camera motion; keep the
			// button events, drop the segment
			log.Printf("Recorder: pruning zero-motion camera segment at event %d", seg.PressEventIndex)
			return
		}
		rec.CameraSegments = append(rec.CameraSegments, seg)
		log.Printf("Recorder: camera segment closed (%d samples, %.3fs)", len(seg.Samples), seg.Duration())
	}

	handleEvent := func(ev input.Event) {
		ts := rel(ev.At)
		switch ev.Type {
		case "mouse_move":
			rec.Events = append(rec.Events, macro.Event{
				Type:      macro.EventMouseMove,
				Timestamp: ts,
				Data:      map[string]any{"x": ev.X, "y": ev.Y},
			})
			if !rawMode && open != nil {
				if haveLast {
					dx := float64(ev.X - lastX)
					dy := float64(ev.Y - lastY)
					ax, ay := model.CountsToAngles(dx, dy, false)
					open.samples = append(open.samples, macro.RawSample{
						Timestamp: ts, AngleDX: ax, AngleDY: ay, RawDX: dx, RawDY: dy,
					})
				}
			}
			lastX, lastY = ev.X, ev.Y
			haveLast = true
		case "mouse_btn":
			name := buttonName(ev.Button)
			if ev.Pressed {
				rec.Events = append(rec.Events, macro.Event{
					Type:      macro.EventMousePress,
					Timestamp: ts,
					Data:      map[string]any{"button": name},
				})
				if name == macro.ButtonRight && open == nil {
					open = &openSegment{pressIndex: len(rec.Events) - 1, pressAt: ts}
				}
			} else {
				rec.Events = append(rec.Events, macro.Event{
					Type:      macro.EventMouseRelease,
					Timestamp: ts,
					Data:      map[string]any{"button": name},
				})
				if name == macro.ButtonRight {
					closeSegment(len(rec.Events)-1, ts)
				}
			}
		case "key":
			typ := macro.EventKeyPress
			if !ev.Pressed {
				typ = macro.EventKeyRelease
			}
			rec.Events = append(rec.Events, macro.Event{
				Type:      typ,
				Timestamp: ts,
				Data:      map[string]any{"key": int(ev.KeyCode)},
			})
		case "wheel":
			rec.Events = append(rec.Events, macro.Event{
				Type:      macro.EventMouseScroll,
				Timestamp: ts,
				Data:      map[string]any{"delta": ev.Wheel},
			})
		}
	}

	handlePacket := func(pkt input.RawPacket) {
		if open == nil || (pkt.DX == 0 && pkt.DY == 0) {
			return
		}
		ax, ay := model.CountsToAngles(float64(pkt.DX), float64(pkt.DY), false)
		open.samples = append(open.samples, macro.RawSample{
			Timestamp: rel(pkt.At),
			AngleDX:   ax,
			AngleDY:   ay,
			RawDX:     float64(pkt.DX),
			RawDY:     float64(pkt.DY),
		})
	}

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			handleEvent(ev)
		case pkt, ok := <-packets:
			if !ok {
				packets = nil
				continue
			}
			handlePacket(pkt)
		case reply := <-r.stopReq:
			now := rel(time.Now())
			if open != nil {
				rec.Events = append(rec.Events, macro.Event{
					Type:      macro.EventMouseRelease,
					Timestamp: now,
					Data:      map[string]any{"button": macro.ButtonRight, "synthesized": true},
				})
				closeSegment(len(rec.Events)-1, now)
			}
			rec.Metadata = map[string]any{
				"settings":    r.set,
				"calibration": r.calName,
				"platform":    osutils.PlatformInfo(),
				"raw_input":   rawMode,
				"created_at":  rec.CreatedAt,
			}
			reply <- rec
			return
		}
	}
}

func buttonName(button int) string {
	switch button {
	case 1:
		return "left"
	case 2:
		return macro.ButtonRight
	case 3:
		return "middle"
	}
	return "left"
}
