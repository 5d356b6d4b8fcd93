package warp

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by this package wraps exactly one of
// these; use errors.Is to classify.
var (
	// ErrInput covers missing or unreadable files, wrong column counts and
	// malformed values.
	ErrInput = errors.New("input error")

	// ErrCardinality is returned when the left and right control sets differ in size.
	ErrCardinality = errors.New("cardinality error")

	// ErrNumerical covers non-finite matrices, singular or rank-deficient
	// factorizations and unrecoverable kernel values.
	ErrNumerical = errors.New("numerical error")

	// ErrOutput is returned when the destination cannot be written.
	ErrOutput = errors.New("output error")
)

// StageError reports the pipeline stage that failed and why.
type StageError struct {
	Stage State
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("warp failed at %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Kind returns the sentinel an error was classified under, or nil if it
// carries none of them.
func Kind(err error) error {
	for _, k := range []error{ErrInput, ErrCardinality, ErrNumerical, ErrOutput} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
