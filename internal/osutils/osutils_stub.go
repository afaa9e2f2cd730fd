//go:build !windows

package osutils

// HighPriorityContext is a no-op outside Windows; stock timer resolution
// is already fine enough there.
func HighPriorityContext() (release func(), err error) {
	return func() {}, nil
}

// IsAdmin always reports true where elevation is not a capture concern.
func IsAdmin() bool { return true }

// PlatformInfo names the capture backend for recording metadata.
func PlatformInfo() string {
	return "unsupported"
}
