//go:build windows

package input

import (
	"fmt"
	"log"
	"sync"
	"unsafe"
)

// Windows injection. SendInput is the primary backend; the legacy
// mouse_event/keybd_event pair is the fallback for environments where
// SendInput is filtered. Backends are tried in order per call and a
// backend that succeeds is remembered until it fails again.

const (
	inputMouse    = 0
	inputKeyboard = 1

	mouseeventfMove        = 0x0001
	mouseeventfLeftDown    = 0x0002
	mouseeventfLeftUp      = 0x0004
	mouseeventfRightDown   = 0x0008
	mouseeventfRightUp     = 0x0010
	mouseeventfMiddleDown  = 0x0020
	mouseeventfMiddleUp    = 0x0040
	mouseeventfWheel       = 0x0800
	mouseeventfAbsolute    = 0x8000
	mouseeventfMoveNoCoal  = 0x2000
	mouseeventfVirtualDesk = 0x4000

	keyeventfKeyUp = 0x0002

	smXVirtualScreen  = 76
	smYVirtualScreen  = 77
	smCXVirtualScreen = 78
	smCYVirtualScreen = 79
)

var (
	procSendInput        = user32.NewProc("SendInput")
	procMouseEvent       = user32.NewProc("mouse_event")
	procKeybdEvent       = user32.NewProc("keybd_event")
	procGetSystemMetrics = user32.NewProc("GetSystemMetrics")
)

type mouseInput struct {
	Dx          int32
	Dy          int32
	MouseData   uint32
	DwFlags     uint32
	Time        uint32
	DwExtraInfo uintptr
}

type keybdInput struct {
	WVk         uint16
	WScan       uint16
	DwFlags     uint32
	Time        uint32
	DwExtraInfo uintptr
	_           [8]byte // pad to the size of the INPUT union
}

type inputUnion struct {
	Type uint32
	_    [4]byte // alignment on 64-bit
	Mi   mouseInput
}

type keyInputUnion struct {
	Type uint32
	_    [4]byte
	Ki   keybdInput
}

// WinInjector injects input through the Win32 synthesis APIs.
type WinInjector struct {
	mu      sync.Mutex
	backend int // 0 = SendInput, 1 = mouse_event
}

// NewInjector returns the platform injector.
func NewInjector() *WinInjector {
	return &WinInjector{}
}

func (w *WinInjector) sendMouse(flags uint32, dx, dy int32, data uint32) error {
	in := inputUnion{
		Type: inputMouse,
		Mi:   mouseInput{Dx: dx, Dy: dy, MouseData: data, DwFlags: flags},
	}
	ret, _, err := procSendInput.Call(1, uintptr(unsafe.Pointer(&in)), unsafe.Sizeof(in))
	if ret != 1 {
		return fmt.Errorf("SendInput: %v", err)
	}
	return nil
}

func (w *WinInjector) mouseEvent(flags uint32, dx, dy int32, data uint32) error {
	ret, _, err := procMouseEvent.Call(uintptr(flags), uintptr(dx), uintptr(dy), uintptr(data), 0)
	// mouse_event reports no failure code; a panicking proc is the only
	// observable error
	_ = ret
	_ = err
	return nil
}

// mouseWithFallback tries the preferred backend first, then the other.
func (w *WinInjector) mouseWithFallback(flags uint32, dx, dy int32, data uint32) error {
	w.mu.Lock()
	preferred := w.backend
	w.mu.Unlock()

	backends := []func(uint32, int32, int32, uint32) error{w.sendMouse, w.mouseEvent}
	order := []int{preferred, 1 - preferred}
	var firstErr error
	for _, idx := range order {
		err := backends[idx](flags, dx, dy, data)
		if err == nil {
			if idx != preferred {
				log.Printf("Input: injection backend %d failed, switched to backend %d", preferred, idx)
				w.mu.Lock()
				w.backend = idx
				w.mu.Unlock()
			}
			return nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return fmt.Errorf("%w: %v", ErrAllBackendsFailed, firstErr)
}

// MoveRelative injects one relative pointer step. NOCOALESCE keeps the
// compositor from merging consecutive small steps into one jump.
func (w *WinInjector) MoveRelative(dx, dy int) error {
	return w.mouseWithFallback(mouseeventfMove|mouseeventfMoveNoCoal, int32(dx), int32(dy), 0)
}

// MoveAbsolute moves the cursor to a virtual-desktop coordinate.
func (w *WinInjector) MoveAbsolute(x, y int) error {
	left, _, _ := procGetSystemMetrics.Call(smXVirtualScreen)
	top, _, _ := procGetSystemMetrics.Call(smYVirtualScreen)
	width, _, _ := procGetSystemMetrics.Call(smCXVirtualScreen)
	height, _, _ := procGetSystemMetrics.Call(smCYVirtualScreen)
	if width == 0 || height == 0 {
		return fmt.Errorf("virtual screen metrics unavailable")
	}
	nx := int32((int64(x-int(int32(left))) * 65535) / int64(int32(width)))
	ny := int32((int64(y-int(int32(top))) * 65535) / int64(int32(height)))
	return w.mouseWithFallback(mouseeventfMove|mouseeventfAbsolute|mouseeventfVirtualDesk, nx, ny, 0)
}

// Button injects a button transition.
func (w *WinInjector) Button(button int, pressed bool) error {
	var flags uint32
	switch button {
	case 1:
		flags = mouseeventfLeftDown
		if !pressed {
			flags = mouseeventfLeftUp
		}
	case 2:
		flags = mouseeventfRightDown
		if !pressed {
			flags = mouseeventfRightUp
		}
	case 3:
		flags = mouseeventfMiddleDown
		if !pressed {
			flags = mouseeventfMiddleUp
		}
	default:
		return fmt.Errorf("unknown button %d", button)
	}
	return w.mouseWithFallback(flags, 0, 0, 0)
}

// Key injects a key transition.
func (w *WinInjector) Key(keyCode uint16, pressed bool) error {
	in := keyInputUnion{
		Type: inputKeyboard,
		Ki:   keybdInput{WVk: keyCode},
	}
	if !pressed {
		in.Ki.DwFlags = keyeventfKeyUp
	}
	ret, _, err := procSendInput.Call(1, uintptr(unsafe.Pointer(&in)), unsafe.Sizeof(inputUnion{}))
	if ret == 1 {
		return nil
	}
	var flags uintptr
	if !pressed {
		flags = keyeventfKeyUp
	}
	procKeybdEvent.Call(uintptr(keyCode), 0, flags, 0)
	_ = err
	return nil
}

// Scroll injects wheel ticks. delta is in WHEEL_DELTA units as captured.
func (w *WinInjector) Scroll(delta int) error {
	return w.mouseWithFallback(mouseeventfWheel, 0, 0, uint32(int32(delta)))
}
