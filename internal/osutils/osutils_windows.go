//go:build windows

package osutils

import (
	"fmt"
	"log"

	"golang.org/x/sys/windows"
)

var (
	winmm             = windows.NewLazySystemDLL("winmm.dll")
	kernel32          = windows.NewLazySystemDLL("kernel32.dll")
	procTimeBegin     = winmm.NewProc("timeBeginPeriod")
	procTimeEnd       = winmm.NewProc("timeEndPeriod")
	procSetThreadPrio = kernel32.NewProc("SetThreadPriority")
	procCurrentThread = kernel32.NewProc("GetCurrentThread")
)

const threadPriorityHighest = 2

// HighPriorityContext raises the system timer resolution to 1 ms and the
// calling thread's priority for the duration of a playback run. The
// returned release function restores both. Without the 1 ms timer,
// time.Sleep granularity is ~15.6 ms and sub-millisecond scheduling is
// impossible.
func HighPriorityContext() (release func(), err error) {
	if ret, _, _ := procTimeBegin.Call(1); ret != 0 {
		return func() {}, fmt.Errorf("timeBeginPeriod(1) returned %d", ret)
	}
	thread, _, _ := procCurrentThread.Call()
	if ret, _, callErr := procSetThreadPrio.Call(thread, threadPriorityHighest); ret == 0 {
		log.Printf("Priority: SetThreadPriority failed: %v", callErr)
	}
	return func() {
		procTimeEnd.Call(1)
	}, nil
}

// IsAdmin reports whether the process token is in the Administrators
// group. Raw Input capture of some elevated windows requires elevation.
func IsAdmin() bool {
	var token windows.Token
	h, _ := windows.GetCurrentProcess()
	if err := windows.OpenProcessToken(h, windows.TOKEN_QUERY, &token); err != nil {
		return false
	}
	defer token.Close()

	var sid *windows.SID
	err := windows.AllocateAndInitializeSid(
		&windows.SECURITY_NT_AUTHORITY,
		2,
		windows.SECURITY_BUILTIN_DOMAIN_RID,
		windows.DOMAIN_ALIAS_RID_ADMINS,
		0, 0, 0, 0, 0, 0,
		&sid,
	)
	if err != nil {
		return false
	}
	defer windows.FreeSid(sid)

	member, err := token.IsMember(sid)
	return err == nil && member
}

// PlatformInfo names the capture backend for recording metadata.
func PlatformInfo() string {
	return "windows/rawinput"
}
