package vecsim

import "github.com/hupe1980/vecsim/model"

var (
	// ErrDimensionMismatch is returned when a vector's length does not match the
	// engine dimension. The concrete error is a *DimensionMismatchError.
	ErrDimensionMismatch = model.ErrDimensionMismatch

	// ErrDegenerateVector is returned when a zero vector is compared under the
	// cosine metric.
	ErrDegenerateVector = model.ErrDegenerateVector

	// ErrNotFound is returned when SimilarTo names an absent id.
	ErrNotFound = model.ErrNotFound

	// ErrInvalidArgument is returned for malformed arguments such as k <= 0.
	ErrInvalidArgument = model.ErrInvalidArgument

	// ErrProviderUnavailable is returned by embedding providers that cannot be
	// reached.
	ErrProviderUnavailable = model.ErrProviderUnavailable

	// ErrRateLimited is returned by embedding providers that refuse a request.
	ErrRateLimited = model.ErrRateLimited
)

type (
	// DimensionMismatchError carries the expected and actual vector lengths.
	DimensionMismatchError = model.DimensionMismatchError

	// NotFoundError names the id that could not be resolved.
	NotFoundError = model.NotFoundError
)
