package session

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"macrocam/internal/config"
	"macrocam/internal/input"
	"macrocam/internal/macro"
)

type fakeInjector struct {
	mu        sync.Mutex
	log       []string
	moves     [][2]int
	failAfter int // relative moves before failure; <0 never fails
}

func newFakeInjector() *fakeInjector {
	return &fakeInjector{failAfter: -1}
}

func (f *fakeInjector) MoveRelative(dx, dy int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAfter == 0 {
		return input.ErrAllBackendsFailed
	}
	if f.failAfter > 0 {
		f.failAfter--
	}
	f.moves = append(f.moves, [2]int{dx, dy})
	f.log = append(f.log, fmt.Sprintf("move %d,%d", dx, dy))
	return nil
}

func (f *fakeInjector) MoveAbsolute(x, y int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log = append(f.log, fmt.Sprintf("abs %d,%d", x, y))
	return nil
}

func (f *fakeInjector) Button(button int, pressed bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log = append(f.log, fmt.Sprintf("btn %d %v", button, pressed))
	return nil
}

func (f *fakeInjector) Key(code uint16, pressed bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log = append(f.log, fmt.Sprintf("key %d %v", code, pressed))
	return nil
}

func (f *fakeInjector) Scroll(delta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log = append(f.log, fmt.Sprintf("scroll %d", delta))
	return nil
}

func playbackSettings() config.Settings {
	set := config.DefaultSettings()
	set.StrictMode = true // deterministic totals without filtering
	set.SenderDelayMs = 0
	set.TargetRateHz = 480
	return set.Sanitize()
}

func playbackCalibration() config.Calibration {
	return config.Calibration{
		Name:             "test",
		DPI:              800,
		CountsPerDegreeX: 12.5,
		CountsPerDegreeY: 12.5,
		CaptureFPS:       120,
	}.Sanitize()
}

// dragRecording builds a recording with one camera segment and a trailing
// key tap.
func dragRecording() *macro.Recording {
	return &macro.Recording{
		Version: macro.FormatVersion,
		Name:    "drag",
		Events: []macro.Event{
			{Type: macro.EventMousePress, Timestamp: 0.010, Data: map[string]any{"button": "right"}},
			{Type: macro.EventMouseRelease, Timestamp: 0.080, Data: map[string]any{"button": "right"}},
			{Type: macro.EventKeyPress, Timestamp: 0.090, Data: map[string]any{"key": 65}},
			{Type: macro.EventKeyRelease, Timestamp: 0.100, Data: map[string]any{"key": 65}},
		},
		CameraSegments: []macro.CameraSegment{
			{
				PressEventIndex:   0,
				ReleaseEventIndex: 1,
				PressTimestamp:    0.010,
				ReleaseTimestamp:  0.080,
				Samples: []macro.RawSample{
					{Timestamp: 0.020, AngleDX: 0.8, AngleDY: 0.2, RawDX: 10, RawDY: 2.5},
					{Timestamp: 0.040, AngleDX: 1.2, AngleDY: -0.4, RawDX: 15, RawDY: -5},
					{Timestamp: 0.060, AngleDX: 0.4, AngleDY: 0.2, RawDX: 5, RawDY: 2.5},
				},
			},
		},
	}
}

// TestPlaybackTotals verifies emitted counts match the recorded motion
// within one count per axis.
func TestPlaybackTotals(t *testing.T) {
	rec := dragRecording()
	inj := newFakeInjector()

	result, err := Play(rec, playbackSettings(), playbackCalibration(), inj, nil)
	if err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if result.Segments != 1 {
		t.Fatalf("Segments %d, want 1", result.Segments)
	}

	var dx, dy int
	for _, m := range inj.moves {
		dx += m[0]
		dy += m[1]
	}
	// recorded totals: 2.4 deg * 12.5 = 30 counts X, 0 deg Y
	if dx < 29 || dx > 31 {
		t.Errorf("Total X counts %d, want ~30", dx)
	}
	if dy != 0 {
		t.Errorf("Total Y counts %d, want 0", dy)
	}
	if result.MaxErrorDeg > 0.25 {
		t.Errorf("Max error %f deg too large", result.MaxErrorDeg)
	}
}

// TestPlaybackDeterminism verifies two runs of the same recording inject
// identical step sequences.
func TestPlaybackDeterminism(t *testing.T) {
	rec := dragRecording()
	set := playbackSettings()
	cal := playbackCalibration()

	first := newFakeInjector()
	if _, err := Play(rec, set, cal, first, nil); err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	second := newFakeInjector()
	if _, err := Play(rec, set, cal, second, nil); err != nil {
		t.Fatalf("Second run failed: %v", err)
	}

	if len(first.moves) != len(second.moves) {
		t.Fatalf("Run lengths differ: %d vs %d", len(first.moves), len(second.moves))
	}
	for i := range first.moves {
		if first.moves[i] != second.moves[i] {
			t.Fatalf("Step %d differs: %v vs %v", i, first.moves[i], second.moves[i])
		}
	}
}

// TestPlaybackInterleaving verifies camera steps and discrete events keep
// recording order on the shared timeline.
func TestPlaybackInterleaving(t *testing.T) {
	rec := dragRecording()
	// tap a key mid-segment
	rec.Events = []macro.Event{
		rec.Events[0],
		{Type: macro.EventKeyPress, Timestamp: 0.050, Data: map[string]any{"key": 87}},
		rec.Events[1],
		rec.Events[2],
		rec.Events[3],
	}
	rec.CameraSegments[0].ReleaseEventIndex = 2

	inj := newFakeInjector()
	if _, err := Play(rec, playbackSettings(), playbackCalibration(), inj, nil); err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	keyIdx := -1
	lastMoveBefore, firstMoveAfter := -1, -1
	for i, line := range inj.log {
		if line == "key 87 true" {
			keyIdx = i
			continue
		}
		if strings.HasPrefix(line, "move ") {
			if keyIdx < 0 {
				lastMoveBefore = i
			} else if firstMoveAfter < 0 {
				firstMoveAfter = i
			}
		}
	}
	if keyIdx < 0 {
		t.Fatal("Mid-segment key press never injected")
	}
	if lastMoveBefore < 0 || firstMoveAfter < 0 {
		t.Fatalf("Expected camera steps on both sides of the key press, log: %v", inj.log)
	}
	if inj.log[0] != "btn 2 true" {
		t.Errorf("First injection %q, want the right-button press", inj.log[0])
	}
	if last := inj.log[len(inj.log)-1]; last != "key 65 false" {
		t.Errorf("Last injection %q, want the trailing key release", last)
	}
}

// TestPlaybackCancellation verifies the stop channel ends playback
// cooperatively with partial diagnostics.
func TestPlaybackCancellation(t *testing.T) {
	rec := dragRecording()
	stop := make(chan struct{})
	close(stop)

	inj := newFakeInjector()
	result, err := Play(rec, playbackSettings(), playbackCalibration(), inj, stop)
	if err != nil {
		t.Fatalf("Cancelled play returned error: %v", err)
	}
	if !result.Cancelled {
		t.Error("Expected Cancelled result")
	}
	if len(inj.moves) != 0 {
		t.Errorf("Pre-cancelled playback still injected %d moves", len(inj.moves))
	}
}

// TestPlaybackInjectionFailure verifies a dead injector abandons the
// segment timeline but reports partial diagnostics.
func TestPlaybackInjectionFailure(t *testing.T) {
	rec := dragRecording()
	inj := newFakeInjector()
	inj.failAfter = 3

	result, err := Play(rec, playbackSettings(), playbackCalibration(), inj, nil)
	if err != nil {
		t.Fatalf("Play should degrade, not fail: %v", err)
	}
	if len(inj.moves) != 3 {
		t.Errorf("Injected %d moves before failure, want 3", len(inj.moves))
	}
	if len(result.Diagnostics) != 1 {
		t.Fatalf("Expected partial diagnostics for the abandoned segment, got %d", len(result.Diagnostics))
	}
	if result.Diagnostics[0].SentSamples != 3 {
		t.Errorf("Partial diagnostics cover %d samples, want 3", result.Diagnostics[0].SentSamples)
	}
}

// TestPlaybackRejectsCorrupt verifies validation happens before any
// injection.
func TestPlaybackRejectsCorrupt(t *testing.T) {
	rec := dragRecording()
	rec.CameraSegments[0].PressEventIndex = 42

	inj := newFakeInjector()
	if _, err := Play(rec, playbackSettings(), playbackCalibration(), inj, nil); err == nil {
		t.Fatal("Expected error for corrupt recording")
	}
	if len(inj.log) != 0 {
		t.Errorf("Corrupt recording still injected: %v", inj.log)
	}
}

// TestRunnerGainScaling verifies playback gain scales the emitted counts.
func TestRunnerGainScaling(t *testing.T) {
	rec := dragRecording()
	set := playbackSettings()
	set.CameraGain = 2.0
	set = set.Sanitize()

	inj := newFakeInjector()
	if _, err := Play(rec, set, playbackCalibration(), inj, nil); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	var dx int
	for _, m := range inj.moves {
		dx += m[0]
	}
	// 2.4 deg * 12.5 counts/deg * gain 2.0 = 60 counts
	if dx < 59 || dx > 61 {
		t.Errorf("Gained X total %d, want ~60", dx)
	}
}
