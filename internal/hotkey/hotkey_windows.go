//go:build windows

package hotkey

import (
	"fmt"
	"log"
	"runtime"
	"unsafe"

	"golang.org/x/sys/windows"
)

const wmHotkey = 0x0312

var (
	user32               = windows.NewLazySystemDLL("user32.dll")
	procRegisterHotKey   = user32.NewProc("RegisterHotKey")
	procUnregisterHotKey = user32.NewProc("UnregisterHotKey")
	procGetMessage       = user32.NewProc("GetMessageW")
	procPostThreadMsg    = user32.NewProc("PostThreadMessageW")
	kernel32             = windows.NewLazySystemDLL("kernel32.dll")
	procCurrentThreadID  = kernel32.NewProc("GetCurrentThreadId")
)

type message struct {
	Hwnd    uintptr
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	PtX     int32
	PtY     int32
}

// Listener binds hotkey combos to callbacks on a dedicated message
// thread. RegisterHotKey ties registrations to the calling thread, so
// registration and the message pump run on the same locked goroutine.
type Listener struct {
	combos    []Combo
	callbacks []func()
	threadID  uint32
	stopped   chan struct{}
}

// NewListener returns an empty listener.
func NewListener() *Listener {
	return &Listener{stopped: make(chan struct{})}
}

// Bind adds a combo/callback pair. Must be called before Start.
func (l *Listener) Bind(combo Combo, callback func()) {
	l.combos = append(l.combos, combo)
	l.callbacks = append(l.callbacks, callback)
}

// Start registers the hotkeys and pumps messages until Stop.
func (l *Listener) Start() error {
	ready := make(chan error, 1)
	go l.loop(ready)
	return <-ready
}

func (l *Listener) loop(ready chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	tid, _, _ := procCurrentThreadID.Call()
	l.threadID = uint32(tid)

	for i, combo := range l.combos {
		ret, _, err := procRegisterHotKey.Call(0, uintptr(i+1), uintptr(combo.Modifiers), uintptr(combo.KeyCode))
		if ret == 0 {
			for j := 0; j < i; j++ {
				procUnregisterHotKey.Call(0, uintptr(j+1))
			}
			ready <- fmt.Errorf("register hotkey %q: %v", combo.Label, err)
			return
		}
		log.Printf("Hotkey: registered %s", combo.Label)
	}
	ready <- nil

	var m message
	for {
		ret, _, _ := procGetMessage.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
		if int32(ret) <= 0 {
			break
		}
		if m.Message == wmHotkey {
			id := int(m.WParam) - 1
			if id >= 0 && id < len(l.callbacks) {
				go l.callbacks[id]()
			}
		}
	}
	for i := range l.combos {
		procUnregisterHotKey.Call(0, uintptr(i+1))
	}
	close(l.stopped)
}

// Stop unregisters the hotkeys and ends the message loop.
func (l *Listener) Stop() {
	if l.threadID != 0 {
		procPostThreadMsg.Call(uintptr(l.threadID), 0x0012, 0, 0) // WM_QUIT
		<-l.stopped
	}
}
