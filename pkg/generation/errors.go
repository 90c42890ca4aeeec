package generation

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable indicates the generation backend could not be reached
	// or answered with a server error. The failure is transient; callers
	// decide whether to retry, degrade, or block.
	ErrUnavailable = errors.New("generation service unavailable")

	// ErrMalformedResponse indicates the backend answered with a payload
	// that does not match the expected shape.
	ErrMalformedResponse = errors.New("malformed generation response")
)

// Error wraps a generation failure with the operation that produced it.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("generation %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a generation error for the given operation.
func NewError(op string, err error) *Error {
	return &Error{Op: op, Err: err}
}

// IsUnavailable checks whether the error marks a transient backend failure.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
