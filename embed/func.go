package embed

import (
	"context"
)

// Func adapts a plain function to [Provider].
//
// Returned vectors are checked against the dimension when it is positive.
type Func struct {
	Dim int
	Fn  func(ctx context.Context, text string) ([]float64, error)
}

var _ Provider = Func{}

// Embed implements Provider.
func (f Func) Embed(ctx context.Context, text string) ([]float64, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v, err := f.Fn(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := checkDimension(f.Dim, v); err != nil {
		return nil, err
	}
	return v, nil
}

// Dimension implements Provider.
func (f Func) Dimension() int { return f.Dim }
