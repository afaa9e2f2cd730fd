// Package engine exposes the record/replay control surface consumed by
// the HTTP API, the tray menu, hotkeys and the CLI. It owns the mode
// state machine: exactly one recording or one playback runs at a time.
package engine

import (
	"fmt"
	"log"
	"sync"
	"time"

	"macrocam/internal/config"
	"macrocam/internal/input"
	"macrocam/internal/macro"
	"macrocam/internal/protocol"
	"macrocam/internal/session"
)

// Mode is the engine state.
type Mode string

const (
	ModeIdle      Mode = "idle"
	ModeRecording Mode = "recording"
	ModePlayback  Mode = "playback"
)

// Notifier receives engine events for fan-out to clients. Implementations
// must not block.
type Notifier interface {
	State(mode string)
	Log(line string)
	Diagnostics(p protocol.DiagnosticsPayload)
}

type noopNotifier struct{}

func (noopNotifier) State(string)                            {}
func (noopNotifier) Log(string)                              {}
func (noopNotifier) Diagnostics(protocol.DiagnosticsPayload) {}

// Engine coordinates recording, playback and storage.
type Engine struct {
	mu         sync.Mutex
	mode       Mode
	cfg        *config.Manager
	store      *macro.Storage
	newCapture func() input.Capture
	injector   input.Injector
	notifier   Notifier

	recorder   *session.Recorder
	stopPlay   chan struct{}
	lastPlayed string
}

// New builds an engine. newCapture is called once per recording so each
// session gets a fresh trap.
func New(cfg *config.Manager, store *macro.Storage, newCapture func() input.Capture, injector input.Injector) *Engine {
	return &Engine{
		mode:       ModeIdle,
		cfg:        cfg,
		store:      store,
		newCapture: newCapture,
		injector:   injector,
		notifier:   noopNotifier{},
	}
}

// SetNotifier installs the event sink. Pass nil to silence events.
func (e *Engine) SetNotifier(n Notifier) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if n == nil {
		n = noopNotifier{}
	}
	e.notifier = n
}

// Mode returns the current engine mode.
func (e *Engine) Mode() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// StartRecording begins a new recording session.
func (e *Engine) StartRecording() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mode != ModeIdle {
		return fmt.Errorf("cannot record while %s", e.mode)
	}
	set := e.cfg.Settings()
	calName, cal := e.cfg.ActiveCalibration()
	rec := session.NewRecorder(e.newCapture(), set, cal, calName)
	if err := rec.Start(); err != nil {
		return err
	}
	e.recorder = rec
	e.mode = ModeRecording
	e.notifier.State(string(e.mode))
	e.notifier.Log("recording started")
	log.Printf("Engine: recording started (calibration %q)", calName)
	return nil
}

// StopRecording finishes the active recording and stores it under name.
// An empty name gets a timestamped default. It returns the storage path.
func (e *Engine) StopRecording(name string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mode != ModeRecording {
		return "", fmt.Errorf("not recording")
	}
	rec, err := e.recorder.Stop()
	e.recorder = nil
	e.mode = ModeIdle
	e.notifier.State(string(e.mode))
	if err != nil {
		return "", err
	}
	if name == "" {
		name = "macro_" + time.Now().Format("20060102_150405")
	}
	path, err := e.store.Save(rec, name)
	if err != nil {
		return "", fmt.Errorf("store recording: %w", err)
	}
	e.notifier.Log(fmt.Sprintf("recording %q saved (%s)", name, rec.Describe()))
	log.Printf("Engine: recording %q saved to %s", name, path)
	return path, nil
}

// Play replays a stored recording asynchronously. The engine returns to
// idle when the worker finishes.
func (e *Engine) Play(slug string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mode != ModeIdle {
		return fmt.Errorf("cannot play while %s", e.mode)
	}
	rec, err := e.store.Load(slug)
	if err != nil {
		return err
	}
	set := e.cfg.Settings()
	_, cal := e.cfg.ActiveCalibration()
	stop := make(chan struct{})
	e.stopPlay = stop
	e.mode = ModePlayback
	e.lastPlayed = slug
	e.notifier.State(string(e.mode))
	e.notifier.Log(fmt.Sprintf("playing %q", slug))
	log.Printf("Engine: playback of %q started", slug)

	go e.playWorker(slug, rec, set, cal, stop)
	return nil
}

func (e *Engine) playWorker(slug string, rec *macro.Recording, set config.Settings, cal config.Calibration, stop <-chan struct{}) {
	result, err := session.Play(rec, set, cal, e.injector, stop)

	e.mu.Lock()
	e.mode = ModeIdle
	e.stopPlay = nil
	notifier := e.notifier
	e.mu.Unlock()

	notifier.State(string(ModeIdle))
	if err != nil {
		notifier.Log(fmt.Sprintf("playback of %q failed: %v", slug, err))
		log.Printf("Engine: playback of %q failed: %v", slug, err)
		return
	}
	payload := protocol.DiagnosticsPayload{
		Macro:       slug,
		Segments:    result.Segments,
		MaxErrorDeg: result.MaxErrorDeg,
		AvgErrorDeg: result.AvgErrorDeg,
		Cancelled:   result.Cancelled,
	}
	for _, d := range result.Diagnostics {
		payload.Lines = append(payload.Lines, d.String())
	}
	notifier.Diagnostics(payload)
	if result.Cancelled {
		notifier.Log(fmt.Sprintf("playback of %q cancelled", slug))
	} else {
		notifier.Log(fmt.Sprintf("playback of %q finished (max error %.3f deg)", slug, result.MaxErrorDeg))
	}
	log.Printf("Engine: playback of %q done (cancelled=%v)", slug, result.Cancelled)
}

// StopPlayback requests cooperative cancellation of the active playback.
func (e *Engine) StopPlayback() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopPlay != nil {
		close(e.stopPlay)
		e.stopPlay = nil
		log.Printf("Engine: playback cancellation requested")
	}
}

// PlayLast replays the most recently played or saved recording.
func (e *Engine) PlayLast() error {
	e.mu.Lock()
	slug := e.lastPlayed
	e.mu.Unlock()
	if slug == "" {
		list := e.store.List()
		if len(list) == 0 {
			return fmt.Errorf("no recording to play")
		}
		slug = list[len(list)-1].Slug
	}
	return e.Play(slug)
}

// List returns stored recording summaries.
func (e *Engine) List() []macro.Summary {
	return e.store.List()
}

// Delete removes a stored recording.
func (e *Engine) Delete(slug string) error {
	return e.store.Delete(slug)
}

// Analyze loads a recording and produces the offline diagnosis report.
func (e *Engine) Analyze(slug string) (macro.Diagnosis, error) {
	rec, err := e.store.Load(slug)
	if err != nil {
		return macro.Diagnosis{}, err
	}
	return macro.Analyze(rec), nil
}
