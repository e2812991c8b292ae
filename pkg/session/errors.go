package session

import (
	"errors"
	"fmt"

	"shutter-cam/pkg/camera"
)

var (
	ErrUnbound         = errors.New("no session bound")
	ErrUseCaseNotBound = errors.New("use-case not bound")
	ErrRecordingActive = errors.New("recording already active")
	ErrStreamLost      = errors.New("camera stream ended")
)

// BindError is returned when a session could not be bound. Nothing is bound
// after it.
type BindError struct {
	Selector camera.Selector
	UseCases camera.UseCaseSet
	Err      error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bind %s camera with %s: %s", e.Selector, e.UseCases, e.Err)
}

func (e *BindError) Unwrap() error {
	return e.Err
}
