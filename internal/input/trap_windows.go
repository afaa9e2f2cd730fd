//go:build windows

package input

import (
	"fmt"
	"log"
	"runtime"
	"sync"
	"syscall"
	"time"
	"unsafe"
)

// Windows capture built on the Raw Input API. A hidden message-only window
// registers for generic mouse and keyboard usages and a dedicated locked
// OS thread pumps messages. Relative motion reports become RawPackets;
// button, key and wheel transitions become Events. When raw registration
// fails the trap degrades to polling the cursor position, Packets()
// returns nil and recordings fall back to absolute sampling.

const (
	wmInput  = 0x00FF
	wmQuit   = 0x0012
	wmClose  = 0x0010
	riWheel  = 0x0400 // RI_MOUSE_WHEEL button flag
	ridInput = 0x10000003

	rimTypeMouse    = 0
	rimTypeKeyboard = 1

	ridevInputSink = 0x00000100

	riLeftDown   = 0x0001
	riLeftUp     = 0x0002
	riRightDown  = 0x0004
	riRightUp    = 0x0008
	riMiddleDown = 0x0010
	riMiddleUp   = 0x0020

	riKeyBreak = 0x0001

	hwndMessage = ^uintptr(2) // HWND_MESSAGE
)

var (
	user32   = syscall.NewLazyDLL("user32.dll")
	kernel32 = syscall.NewLazyDLL("kernel32.dll")

	procRegisterRawInputDevices = user32.NewProc("RegisterRawInputDevices")
	procGetRawInputData         = user32.NewProc("GetRawInputData")
	procRegisterClassEx         = user32.NewProc("RegisterClassExW")
	procCreateWindowEx          = user32.NewProc("CreateWindowExW")
	procDestroyWindow           = user32.NewProc("DestroyWindow")
	procDefWindowProc           = user32.NewProc("DefWindowProcW")
	procGetMessage              = user32.NewProc("GetMessageW")
	procTranslateMessage        = user32.NewProc("TranslateMessage")
	procDispatchMessage         = user32.NewProc("DispatchMessageW")
	procPostMessage             = user32.NewProc("PostMessageW")
	procGetCursorPos            = user32.NewProc("GetCursorPos")
	procGetModuleHandle         = kernel32.NewProc("GetModuleHandleW")
)

type wndClassEx struct {
	CbSize        uint32
	Style         uint32
	LpfnWndProc   uintptr
	CbClsExtra    int32
	CbWndExtra    int32
	HInstance     syscall.Handle
	HIcon         syscall.Handle
	HCursor       syscall.Handle
	HbrBackground syscall.Handle
	LpszMenuName  *uint16
	LpszClassName *uint16
	HIconSm       syscall.Handle
}

type point struct {
	X, Y int32
}

type msg struct {
	Hwnd    syscall.Handle
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	Pt      point
}

type rawInputDevice struct {
	UsUsagePage uint16
	UsUsage     uint16
	DwFlags     uint32
	HwndTarget  syscall.Handle
}

type rawInputHeader struct {
	DwType  uint32
	DwSize  uint32
	HDevice syscall.Handle
	WParam  uintptr
}

type rawMouse struct {
	UsFlags            uint16
	UlButtons          uint32
	UsButtonFlags      uint16
	UsButtonData       uint16
	UlRawButtons       uint32
	LLastX             int32
	LLastY             int32
	UlExtraInformation uint32
}

type rawKeyboard struct {
	MakeCode         uint16
	Flags            uint16
	Reserved         uint16
	VKey             uint16
	Message          uint32
	ExtraInformation uint32
}

type rawInput struct {
	Header rawInputHeader
	Mouse  rawMouse // union head; keyboard data overlays it
}

// Trap is the Windows input capture.
type Trap struct {
	mu      sync.Mutex
	hwnd    syscall.Handle
	events  chan Event
	packets chan RawPacket
	running bool
	rawOK   bool
	done    chan struct{}
}

// NewTrap creates a stopped trap.
func NewTrap() *Trap {
	return &Trap{
		events:  make(chan Event, 1024),
		packets: make(chan RawPacket, 4096),
	}
}

// Start creates the message window, registers raw devices and starts the
// message loop. On raw registration failure it starts the polling
// fallback instead and logs the degradation.
func (t *Trap) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return fmt.Errorf("trap already running")
	}
	t.done = make(chan struct{})
	t.running = true

	ready := make(chan error, 1)
	go t.messageLoop(ready)
	if err := <-ready; err != nil {
		log.Printf("Input: raw capture unavailable (%v), falling back to cursor polling", err)
		t.rawOK = false
		go t.pollLoop()
		return nil
	}
	t.rawOK = true
	return nil
}

// Stop tears down the capture. Channels are closed once the loop exits.
func (t *Trap) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.running {
		return nil
	}
	t.running = false
	if t.hwnd != 0 {
		procPostMessage.Call(uintptr(t.hwnd), wmClose, 0, 0)
	}
	close(t.done)
	return nil
}

// Events returns the discrete event stream.
func (t *Trap) Events() <-chan Event { return t.events }

// Packets returns the relative motion stream, nil in fallback mode.
func (t *Trap) Packets() <-chan RawPacket {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.rawOK {
		return nil
	}
	return t.packets
}

// messageLoop owns the window. Raw Input delivers WM_INPUT to the thread
// that created the target window, so creation and the pump share one
// locked thread.
func (t *Trap) messageLoop(ready chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := t.createWindow(); err != nil {
		ready <- err
		return
	}
	if err := t.registerRawInput(); err != nil {
		procDestroyWindow.Call(uintptr(t.hwnd))
		t.hwnd = 0
		ready <- err
		return
	}
	ready <- nil
	log.Printf("Input: raw input capture started")

	var m msg
	for {
		ret, _, _ := procGetMessage.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
		if int32(ret) <= 0 {
			break
		}
		if m.Message == wmClose || m.Message == wmQuit {
			break
		}
		procTranslateMessage.Call(uintptr(unsafe.Pointer(&m)))
		procDispatchMessage.Call(uintptr(unsafe.Pointer(&m)))
	}
	procDestroyWindow.Call(uintptr(t.hwnd))
	log.Printf("Input: raw input capture stopped")
}

func (t *Trap) createWindow() error {
	className, err := syscall.UTF16PtrFromString("MacroCamTrap")
	if err != nil {
		return err
	}
	hInstance, _, _ := procGetModuleHandle.Call(0)
	wc := wndClassEx{
		CbSize:        uint32(unsafe.Sizeof(wndClassEx{})),
		LpfnWndProc:   syscall.NewCallback(t.windowProc),
		HInstance:     syscall.Handle(hInstance),
		LpszClassName: className,
	}
	if ret, _, err := procRegisterClassEx.Call(uintptr(unsafe.Pointer(&wc))); ret == 0 {
		return fmt.Errorf("RegisterClassEx: %v", err)
	}
	hwnd, _, err2 := procCreateWindowEx.Call(
		0,
		uintptr(unsafe.Pointer(className)),
		0,
		0,
		0, 0, 0, 0,
		hwndMessage, 0, hInstance, 0,
	)
	if hwnd == 0 {
		return fmt.Errorf("CreateWindowEx: %v", err2)
	}
	t.hwnd = syscall.Handle(hwnd)
	return nil
}

func (t *Trap) registerRawInput() error {
	devices := []rawInputDevice{
		{UsUsagePage: 0x01, UsUsage: 0x02, DwFlags: ridevInputSink, HwndTarget: t.hwnd}, // mouse
		{UsUsagePage: 0x01, UsUsage: 0x06, DwFlags: ridevInputSink, HwndTarget: t.hwnd}, // keyboard
	}
	ret, _, err := procRegisterRawInputDevices.Call(
		uintptr(unsafe.Pointer(&devices[0])),
		uintptr(len(devices)),
		unsafe.Sizeof(devices[0]),
	)
	if ret == 0 {
		return fmt.Errorf("RegisterRawInputDevices: %v: %w", err, ErrRawInputUnavailable)
	}
	return nil
}

func (t *Trap) windowProc(hwnd syscall.Handle, message uint32, wparam, lparam uintptr) uintptr {
	if message == wmInput {
		t.handleRawInput(lparam)
		return 0
	}
	ret, _, _ := procDefWindowProc.Call(uintptr(hwnd), uintptr(message), wparam, lparam)
	return ret
}

func (t *Trap) handleRawInput(lparam uintptr) {
	var size uint32
	procGetRawInputData.Call(lparam, ridInput, 0,
		uintptr(unsafe.Pointer(&size)), unsafe.Sizeof(rawInputHeader{}))
	if size == 0 {
		return
	}
	buf := make([]byte, size)
	ret, _, _ := procGetRawInputData.Call(lparam, ridInput,
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(unsafe.Pointer(&size)), unsafe.Sizeof(rawInputHeader{}))
	if ret == 0 || ret == 0xFFFFFFFF {
		return
	}
	ri := (*rawInput)(unsafe.Pointer(&buf[0]))
	switch ri.Header.DwType {
	case rimTypeMouse:
		t.handleMouse(&ri.Mouse)
	case rimTypeKeyboard:
		t.handleKeyboard((*rawKeyboard)(unsafe.Pointer(&ri.Mouse)))
	}
}

func (t *Trap) handleMouse(m *rawMouse) {
	now := time.Now()
	if m.LLastX != 0 || m.LLastY != 0 || m.UsButtonFlags&(riRightDown|riRightUp|riWheel) != 0 {
		pkt := RawPacket{
			DX:        int(m.LLastX),
			DY:        int(m.LLastY),
			RightDown: m.UsButtonFlags&riRightDown != 0,
			RightUp:   m.UsButtonFlags&riRightUp != 0,
			At:        now,
		}
		if m.UsButtonFlags&riWheel != 0 {
			pkt.Wheel = int(int16(m.UsButtonData))
		}
		select {
		case t.packets <- pkt:
		default:
			// full buffer means the consumer stalled; dropping beats blocking
			// the message pump
		}
	}

	if m.LLastX != 0 || m.LLastY != 0 {
		var pt point
		procGetCursorPos.Call(uintptr(unsafe.Pointer(&pt)))
		t.emit(Event{Type: "mouse_move", X: int(pt.X), Y: int(pt.Y), At: now})
	}
	switch {
	case m.UsButtonFlags&riLeftDown != 0:
		t.emit(Event{Type: "mouse_btn", Button: 1, Pressed: true, At: now})
	case m.UsButtonFlags&riLeftUp != 0:
		t.emit(Event{Type: "mouse_btn", Button: 1, Pressed: false, At: now})
	case m.UsButtonFlags&riRightDown != 0:
		t.emit(Event{Type: "mouse_btn", Button: 2, Pressed: true, At: now})
	case m.UsButtonFlags&riRightUp != 0:
		t.emit(Event{Type: "mouse_btn", Button: 2, Pressed: false, At: now})
	case m.UsButtonFlags&riMiddleDown != 0:
		t.emit(Event{Type: "mouse_btn", Button: 3, Pressed: true, At: now})
	case m.UsButtonFlags&riMiddleUp != 0:
		t.emit(Event{Type: "mouse_btn", Button: 3, Pressed: false, At: now})
	}
	if m.UsButtonFlags&riWheel != 0 {
		t.emit(Event{Type: "wheel", Wheel: int(int16(m.UsButtonData)), At: now})
	}
}

func (t *Trap) handleKeyboard(k *rawKeyboard) {
	t.emit(Event{
		Type:    "key",
		KeyCode: k.VKey,
		Pressed: k.Flags&riKeyBreak == 0,
		At:      time.Now(),
	})
}

func (t *Trap) emit(ev Event) {
	select {
	case t.events <- ev:
	default:
	}
}

// pollLoop is the degraded capture: sample the cursor at a fixed rate and
// emit absolute positions. Button and key transitions are not observable
// in this mode.
func (t *Trap) pollLoop() {
	ticker := time.NewTicker(8 * time.Millisecond)
	defer ticker.Stop()
	var lastX, lastY int32 = -1, -1
	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			var pt point
			if ret, _, _ := procGetCursorPos.Call(uintptr(unsafe.Pointer(&pt))); ret == 0 {
				continue
			}
			if pt.X != lastX || pt.Y != lastY {
				lastX, lastY = pt.X, pt.Y
				t.emit(Event{Type: "mouse_move", X: int(pt.X), Y: int(pt.Y), At: time.Now()})
			}
		}
	}
}
