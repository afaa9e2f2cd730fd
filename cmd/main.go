// MacroCam - pointer/keyboard macro recorder with calibrated camera replay
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"macrocam/internal/api"
	"macrocam/internal/config"
	"macrocam/internal/engine"
	"macrocam/internal/hotkey"
	"macrocam/internal/input"
	"macrocam/internal/macro"
	"macrocam/internal/osutils"
	"macrocam/internal/protocol"
	"macrocam/internal/tray"
)

var (
	version     = "0.3.0"
	listMacros  = flag.Bool("list", false, "List stored recordings")
	playSlug    = flag.String("play", "", "Replay the named recording and exit")
	record      = flag.Bool("record", false, "Record until interrupted, then save")
	recordName  = flag.String("name", "", "Name for the recording saved by -record")
	analyzeSlug = flag.String("analyze", "", "Print the offline analysis of a recording and exit")
	deleteSlug  = flag.String("delete", "", "Delete the named recording and exit")
	apiPort     = flag.Int("port", 8787, "Control API port")
	apiToken    = flag.String("token", "", "Bearer token for the control API (empty disables auth)")
	showVer     = flag.Bool("version", false, "Show version")
)

func main() {
	flag.Parse()

	if *showVer {
		fmt.Printf("macrocam version %s\n", version)
		return
	}

	cfgMgr, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}
	if err := cfgMgr.Load(); err != nil {
		log.Printf("Warning: failed to load config: %v", err)
	}

	dir, err := config.ConfigDir()
	if err != nil {
		log.Fatalf("Failed to resolve config dir: %v", err)
	}
	store, err := macro.NewStorage(filepath.Join(dir, "recordings"))
	if err != nil {
		log.Fatalf("Failed to open recording storage: %v", err)
	}

	eng := engine.New(cfgMgr, store,
		func() input.Capture { return input.NewTrap() },
		input.NewInjector())

	switch {
	case *listMacros:
		listRecordings(store)
	case *analyzeSlug != "":
		analyzeRecording(eng, *analyzeSlug)
	case *deleteSlug != "":
		if err := eng.Delete(*deleteSlug); err != nil {
			log.Fatalf("Failed to delete %q: %v", *deleteSlug, err)
		}
		fmt.Printf("Deleted %s\n", *deleteSlug)
	case *playSlug != "":
		playOnce(eng, *playSlug)
	case *record:
		recordOnce(eng, *recordName)
	default:
		runService(cfgMgr, eng)
	}
}

func listRecordings(store *macro.Storage) {
	summaries := store.List()
	if len(summaries) == 0 {
		fmt.Println("No recordings stored.")
		return
	}
	fmt.Println("Stored recordings:")
	fmt.Println("------------------")
	for _, s := range summaries {
		created := ""
		if s.Created > 0 {
			created = time.Unix(int64(s.Created), 0).Format("2006-01-02 15:04:05")
		}
		fmt.Printf("%-24s %s  %s\n", s.Slug, created, s.Name)
	}
}

func analyzeRecording(eng *engine.Engine, slug string) {
	diag, err := eng.Analyze(slug)
	if err != nil {
		log.Fatalf("Failed to analyze %q: %v", slug, err)
	}
	fmt.Print(diag.Report)
}

// playOnce replays one recording synchronously; Ctrl+C cancels.
func playOnce(eng *engine.Engine, slug string) {
	done := make(chan struct{})
	eng.SetNotifier(&cliNotifier{done: done})
	if err := eng.Play(slug); err != nil {
		log.Fatalf("Failed to play %q: %v", slug, err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		log.Println("Interrupt received, cancelling playback...")
		eng.StopPlayback()
		<-done
	case <-done:
	}
}

// recordOnce records until Ctrl+C, then saves under name.
func recordOnce(eng *engine.Engine, name string) {
	if runtime.GOOS == "windows" && !osutils.IsAdmin() {
		log.Println("Note: raw input capture of elevated windows requires administrator privileges")
	}
	if err := eng.StartRecording(); err != nil {
		log.Fatalf("Failed to start recording: %v", err)
	}
	log.Println("Recording... press Ctrl+C to stop and save.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	path, err := eng.StopRecording(name)
	if err != nil {
		log.Fatalf("Failed to stop recording: %v", err)
	}
	fmt.Printf("Saved %s\n", path)
}

// cliNotifier prints engine events and signals when playback returns to
// idle.
type cliNotifier struct {
	done   chan struct{}
	closed bool
}

func (n *cliNotifier) State(mode string) {
	if mode == string(engine.ModeIdle) && !n.closed {
		n.closed = true
		close(n.done)
	}
}

func (n *cliNotifier) Log(line string) { log.Printf("Engine: %s", line) }

func (n *cliNotifier) Diagnostics(p protocol.DiagnosticsPayload) {
	for _, line := range p.Lines {
		fmt.Println(line)
	}
	fmt.Printf("segments: %d, max error %.3f deg, avg error %.3f deg\n",
		p.Segments, p.MaxErrorDeg, p.AvgErrorDeg)
}

func runService(cfgMgr *config.Manager, eng *engine.Engine) {
	log.Println("MacroCam service starting...")

	server := api.NewServer(cfgMgr, eng, *apiToken)
	eng.SetNotifier(server.Notifier())
	go func() {
		if err := server.Start(*apiPort); err != nil {
			log.Printf("API server error: %v", err)
		}
	}()

	hk := hotkey.NewListener()
	if combo, err := hotkey.Parse("Ctrl+Alt+F9"); err == nil {
		hk.Bind(combo, func() {
			if eng.Mode() == engine.ModeRecording {
				if _, err := eng.StopRecording(""); err != nil {
					log.Printf("Hotkey: stop recording failed: %v", err)
				}
			} else if err := eng.StartRecording(); err != nil {
				log.Printf("Hotkey: start recording failed: %v", err)
			}
		})
	}
	if combo, err := hotkey.Parse("Ctrl+Alt+F10"); err == nil {
		hk.Bind(combo, func() {
			if eng.Mode() == engine.ModePlayback {
				eng.StopPlayback()
			} else if err := eng.PlayLast(); err != nil {
				log.Printf("Hotkey: play failed: %v", err)
			}
		})
	}
	if combo, err := hotkey.Parse("Ctrl+Alt+Esc"); err == nil {
		hk.Bind(combo, func() {
			log.Println("Kill switch pressed, stopping all activity")
			eng.StopPlayback()
			if eng.Mode() == engine.ModeRecording {
				if _, err := eng.StopRecording(""); err != nil {
					log.Printf("Kill switch: stop recording failed: %v", err)
				}
			}
		})
	}
	if err := hk.Start(); err != nil {
		log.Printf("Warning: hotkeys unavailable: %v", err)
	}

	t := tray.New("MacroCam - macro recorder")
	t.AddMenuItem("Start recording", func() {
		if err := eng.StartRecording(); err != nil {
			log.Printf("Tray: %v", err)
		}
	})
	t.AddMenuItem("Stop recording", func() {
		if _, err := eng.StopRecording(""); err != nil {
			log.Printf("Tray: %v", err)
		}
	})
	t.AddSeparator()
	t.AddMenuItem("Play last recording", func() {
		if err := eng.PlayLast(); err != nil {
			log.Printf("Tray: %v", err)
		}
	})
	t.AddMenuItem("Stop playback", func() {
		eng.StopPlayback()
	})
	t.AddSeparator()
	t.AddMenuItem("Quit", func() {
		t.Stop()
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutting down...")
		hk.Stop()
		t.Stop()
	}()

	log.Printf("MacroCam service running on port %d. Press Ctrl+C to stop.", *apiPort)
	t.Run()
}
