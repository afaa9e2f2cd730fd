//go:build !windows

package input

import "fmt"

// StubInjector is the injection stub for platforms without a backend.
type StubInjector struct{}

// NewInjector returns the stub injector.
func NewInjector() *StubInjector { return &StubInjector{} }

func (s *StubInjector) MoveRelative(dx, dy int) error {
	return fmt.Errorf("input injection is not supported on this platform")
}

func (s *StubInjector) MoveAbsolute(x, y int) error {
	return fmt.Errorf("input injection is not supported on this platform")
}

func (s *StubInjector) Button(button int, pressed bool) error {
	return fmt.Errorf("input injection is not supported on this platform")
}

func (s *StubInjector) Key(keyCode uint16, pressed bool) error {
	return fmt.Errorf("input injection is not supported on this platform")
}

func (s *StubInjector) Scroll(delta int) error {
	return fmt.Errorf("input injection is not supported on this platform")
}
