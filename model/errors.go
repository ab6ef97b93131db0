package model

import (
	"errors"
	"fmt"
)

var (
	// ErrDimensionMismatch is returned when a vector's length does not match the
	// dimension of the store or of the other operand.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrDegenerateVector is returned when a zero-magnitude vector is used with
	// the cosine metric.
	ErrDegenerateVector = errors.New("degenerate vector: zero magnitude")

	// ErrNotFound is returned when an id is absent.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument is returned for malformed arguments such as k <= 0.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrProviderUnavailable is returned when the embedding provider cannot be reached
	// or fails on its side. Callers may retry.
	ErrProviderUnavailable = errors.New("embedding provider unavailable")

	// ErrRateLimited is returned when the embedding provider (or the client-side
	// limiter in front of it) refuses the request. Callers may retry later.
	ErrRateLimited = errors.New("embedding provider rate limited")
)

// DimensionMismatchError carries the expected and actual vector lengths.
//
// It matches ErrDimensionMismatch with errors.Is.
type DimensionMismatchError struct {
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Is reports whether target is ErrDimensionMismatch.
func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrDimensionMismatch
}

// NewDimensionMismatch returns a *DimensionMismatchError.
func NewDimensionMismatch(expected, actual int) error {
	return &DimensionMismatchError{Expected: expected, Actual: actual}
}

// NotFoundError names the id that could not be resolved.
//
// It matches ErrNotFound with errors.Is.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("id %q not found", e.ID)
}

// Is reports whether target is ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// InvalidArgument wraps ErrInvalidArgument with a formatted reason.
func InvalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
