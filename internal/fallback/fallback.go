// Package fallback implements the sequential "first success" strategy shared
// by every trial chain in the pipeline: fronts, mirror URLs and releases.
//
// Candidates are tried strictly one after the other in the given order. The
// first candidate whose attempt returns a nil error wins and the remaining
// candidates are never attempted.
package fallback

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoCandidates indicates that First was called with an empty list.
var ErrNoCandidates = errors.New("fallback: no candidates")

// ErrExhausted indicates that every candidate failed. The error returned by
// First wraps both ErrExhausted and each per-candidate error.
var ErrExhausted = errors.New("fallback: all candidates failed")

// AttemptError records the failure of a single candidate.
type AttemptError struct {
	Index int
	Err   error
}

func (e *AttemptError) Error() string {
	return fmt.Sprintf("candidate #%d: %v", e.Index, e.Err)
}

func (e *AttemptError) Unwrap() error {
	return e.Err
}

// First calls attempt for each candidate in order and returns the output and
// index of the first one that succeeds.
//
// A cancelled context stops the chain before the next attempt; the context
// error is then part of the returned error.
func First[C, T any](ctx context.Context, candidates []C, attempt func(ctx context.Context, idx int, c C) (T, error)) (T, int, error) {
	var zero T
	if len(candidates) == 0 {
		return zero, -1, ErrNoCandidates
	}

	errs := []error{ErrExhausted}
	for idx, c := range candidates {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		out, err := attempt(ctx, idx, c)
		if err == nil {
			return out, idx, nil
		}
		errs = append(errs, &AttemptError{Index: idx, Err: err})
	}

	return zero, -1, errors.Join(errs...)
}
