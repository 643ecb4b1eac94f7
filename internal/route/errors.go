package route

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is matched by every construction-time validation failure.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrAlreadyRun is returned by a second call to Run on the same instance.
	ErrAlreadyRun = errors.New("algorithm already run")
	// ErrUnknownAlgorithm is returned by New for names not in the registry.
	ErrUnknownAlgorithm = errors.New("unknown algorithm")
)

// ArgumentError names the offending field.
type ArgumentError struct {
	Field  string
	Reason string
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid argument %s: %s", e.Field, e.Reason)
}

func (e *ArgumentError) Unwrap() error { return ErrInvalidArgument }

func invalid(field, format string, args ...any) error {
	return &ArgumentError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
