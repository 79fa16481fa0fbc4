package app

import (
	"errors"
	"fmt"
)

// Keyboard errors.
var (
	// ErrAlreadyRunning indicates Run was called on a running keyboard.
	ErrAlreadyRunning = errors.New("keyboard already running")

	// ErrMatrixMismatch indicates the scanner and the layout disagree on
	// matrix size.
	ErrMatrixMismatch = errors.New("scanner does not match layout dimensions")

	// ErrNoHost indicates Run was given no transport for the selected mode.
	ErrNoHost = errors.New("no transport for mode")
)

// InitError reports a component that failed to start.
type InitError struct {
	Component string
	Err       error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("init %s: %v", e.Component, e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// RemapError reports a rejected remap command.
type RemapError struct {
	Remap fmt.Stringer
	Err   error
}

func (e *RemapError) Error() string {
	return fmt.Sprintf("remap %s: %v", e.Remap, e.Err)
}

func (e *RemapError) Unwrap() error {
	return e.Err
}
