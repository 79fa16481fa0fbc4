package config

import (
	"errors"
	"fmt"
)

// Errors returned by configuration operations.
var (
	// ErrFileNotFound indicates the configuration file doesn't exist.
	ErrFileNotFound = errors.New("config file not found")

	// ErrInvalid is wrapped by every *Error.
	ErrInvalid = errors.New("invalid configuration")
)

// Error describes a problem with one configuration field.
type Error struct {
	// Field is the dotted path of the offending setting, e.g. "matrix.rows"
	// or "macros[2].lua".
	Field string
	// Msg describes the problem.
	Msg string
	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("config: %s: %s: %v", e.Field, e.Msg, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("config: %s: %v", e.Field, e.Err)
	default:
		return fmt.Sprintf("config: %s: %s", e.Field, e.Msg)
	}
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports ErrInvalid for every configuration error.
func (e *Error) Is(target error) bool {
	return target == ErrInvalid
}

func fieldError(field, format string, args ...any) *Error {
	return &Error{Field: field, Msg: fmt.Sprintf(format, args...)}
}

func wrapField(field string, err error) *Error {
	return &Error{Field: field, Err: err}
}
