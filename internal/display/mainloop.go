package display

import (
	"time"

	"github.com/diamondburned/gotk4/pkg/glib/v2"
)

// mainLoopTimeout bounds how long a provider call waits for the GTK main loop.
const mainLoopTimeout = 2 * time.Second

// DisplayError represents a display-related error.
type DisplayError struct {
	Message string
	Cause   error
}

func (e *DisplayError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *DisplayError) Unwrap() error {
	return e.Cause
}

// onMainThread runs fn on the GTK main loop and waits for its result.
func onMainThread(fn func() error) error {
	done := make(chan error, 1)
	glib.IdleAdd(func() {
		done <- fn()
	})

	select {
	case err := <-done:
		return err
	case <-time.After(mainLoopTimeout):
		return &DisplayError{Message: "gtk main loop did not respond"}
	}
}
