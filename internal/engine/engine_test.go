package engine

import (
	"sync"
	"testing"
	"time"

	"macrocam/internal/config"
	"macrocam/internal/input"
	"macrocam/internal/macro"
	"macrocam/internal/protocol"
)

type nullInjector struct{}

func (nullInjector) MoveRelative(dx, dy int) error { return nil }
func (nullInjector) MoveAbsolute(x, y int) error { return nil }
func (nullInjector) Button(button int, p bool) error { return nil }
func (nullInjector) Key(code uint16, p bool) error { return nil }
func (nullInjector) Scroll(delta int) error { return nil }

type scriptedCapture struct {
	events  chan input.Event
	packets chan input.RawPacket
}

func newScriptedCapture() *scriptedCapture {
	return &scriptedCapture{
		events:  make(chan input.Event, 64),
		packets: make(chan input.RawPacket, 64),
	}
}

func (s *scriptedCapture) Start() error { return nil }
func (s *scriptedCapture) Stop() error { return nil }
func (s *scriptedCapture) Events() <-chan input.Event { return s.events }
func (s *scriptedCapture) Packets() <-chan input.RawPacket { return s.packets }

type memoryNotifier struct {
	mu     sync.Mutex
	states []string
	diags  []protocol.DiagnosticsPayload
}

func (m *memoryNotifier) State(mode string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = append(m.states, mode)
}

func (m *memoryNotifier) Log(string) {}

func (m *memoryNotifier) Diagnostics(p protocol.DiagnosticsPayload) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.diags = append(m.diags, p)
}

func testEngine(t *testing.T) (*Engine, *scriptedCapture, *memoryNotifier) {
	t.Helper()
	store, err := macro.NewStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewStorage failed: %v", err)
	}
	cap := newScriptedCapture()
	eng := New(config.NewManagerAt(t.TempDir()+"/settings.json"), store, func() input.Capture { return cap }, nullInjector{})
	n := &memoryNotifier{}
	eng.SetNotifier(n)
	return eng, cap, n
}

func waitIdle(t *testing.T, eng *Engine) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for eng.Mode() != ModeIdle {
		if time.Now().After(deadline) {
			t.Fatal("Engine never returned to idle")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// TestEngineRecordPlayCycle runs a scripted recording through storage and
// plays it back.
func TestEngineRecordPlayCycle(t *testing.T) {
	eng, cap, n := testEngine(t)

	if err := eng.StartRecording(); err != nil {
		t.Fatalf("StartRecording failed: %v", err)
	}
	if eng.Mode() != ModeRecording {
		t.Fatalf("Mode %s, want recording", eng.Mode())
	}

	base := time.Now()
	cap.events <- input.Event{Type: "mouse_btn", Button: 2, Pressed: true, At: base}
	time.Sleep(20 * time.Millisecond)
	cap.packets <- input.RawPacket{DX: 30, DY: 10, At: base.Add(20 * time.Millisecond)}
	time.Sleep(20 * time.Millisecond)
	cap.events <- input.Event{Type: "mouse_btn", Button: 2, Pressed: false, At: base.Add(40 * time.Millisecond)}
	time.Sleep(20 * time.Millisecond)

	path, err := eng.StopRecording("cycle")
	if err != nil {
		t.Fatalf("StopRecording failed: %v", err)
	}
	if path == "" {
		t.Fatal("StopRecording returned empty path")
	}
	if got := eng.List(); len(got) != 1 || got[0].Slug != "cycle" {
		t.Fatalf("Stored list %v, want one entry named cycle", got)
	}

	if err := eng.Play("cycle"); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if eng.Mode() != ModePlayback {
		t.Errorf("Mode %s during playback, want playback", eng.Mode())
	}
	waitIdle(t, eng)

	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.diags) != 1 {
		t.Fatalf("Got %d diagnostics payloads, want 1", len(n.diags))
	}
	if n.diags[0].Macro != "cycle" || n.diags[0].Segments != 1 {
		t.Errorf("Diagnostics %+v, want macro cycle with one segment", n.diags[0])
	}
}

// TestEngineModeGuards verifies conflicting operations are rejected.
func TestEngineModeGuards(t *testing.T) {
	eng, _, _ := testEngine(t)

	if err := eng.StartRecording(); err != nil {
		t.Fatalf("StartRecording failed: %v", err)
	}
	if err := eng.StartRecording(); err == nil {
		t.Error("Second StartRecording should fail")
	}
	if err := eng.Play("anything"); err == nil {
		t.Error("Play during recording should fail")
	}
	if _, err := eng.StopRecording(""); err != nil {
		t.Fatalf("StopRecording failed: %v", err)
	}
	if _, err := eng.StopRecording(""); err == nil {
		t.Error("StopRecording while idle should fail")
	}
	if err := eng.Play("missing"); err == nil {
		t.Error("Play of unknown slug should fail")
	}
}

// TestEnginePlayLast verifies the fallback to the newest stored macro.
func TestEnginePlayLast(t *testing.T) {
	eng, cap, _ := testEngine(t)

	if err := eng.PlayLast(); err == nil {
		t.Error("PlayLast with empty storage should fail")
	}

	if err := eng.StartRecording(); err != nil {
		t.Fatalf("StartRecording failed: %v", err)
	}
	base := time.Now()
	cap.events <- input.Event{Type: "key", KeyCode: 65, Pressed: true, At: base}
	cap.events <- input.Event{Type: "key", KeyCode: 65, Pressed: false, At: base.Add(10 * time.Millisecond)}
	time.Sleep(20 * time.Millisecond)
	if _, err := eng.StopRecording("tap"); err != nil {
		t.Fatalf("StopRecording failed: %v", err)
	}

	if err := eng.PlayLast(); err != nil {
		t.Fatalf("PlayLast failed: %v", err)
	}
	waitIdle(t, eng)
}
