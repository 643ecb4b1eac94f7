package distance

import (
	"errors"
	"fmt"
	"strings"

	"jumpnav/internal/geom"
)

// ErrComputation is matched by every error returned when no candidate could
// produce a distance.
var ErrComputation = errors.New("distance computation failed")

// ComputationError carries the pair that could not be measured and the
// failure reported by each candidate, in the order they were tried.
type ComputationError struct {
	A, B   geom.Vector3
	Causes []error
}

func (e *ComputationError) Error() string {
	parts := make([]string, 0, len(e.Causes))
	for _, c := range e.Causes {
		parts = append(parts, c.Error())
	}
	return fmt.Sprintf("distance %v -> %v: all candidates failed: %s", e.A, e.B, strings.Join(parts, "; "))
}

func (e *ComputationError) Unwrap() []error {
	return append([]error{ErrComputation}, e.Causes...)
}

// CandidateError is one candidate's failure.
type CandidateError struct {
	Name string
	Err  error
}

func (e *CandidateError) Error() string { return e.Name + ": " + e.Err.Error() }
func (e *CandidateError) Unwrap() error { return e.Err }
