package embed

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// Limited puts a client-side token bucket in front of a Provider.
//
// A call waits for a token as long as the wait fits into the context
// deadline. When it would not, or when the limiter cannot admit the request
// at all, the call fails with ErrRateLimited instead of blocking.
type Limited struct {
	p       Provider
	limiter *rate.Limiter
}

var _ BatchProvider = (*Limited)(nil)

// NewLimited allows rps requests per second with the given burst.
func NewLimited(p Provider, rps float64, burst int) *Limited {
	return &Limited{
		p:       p,
		limiter: rate.NewLimiter(rate.Limit(rps), max(burst, 1)),
	}
}

func (l *Limited) wait(ctx context.Context, n int) error {
	r := l.limiter.ReserveN(time.Now(), n)
	if !r.OK() {
		return fmt.Errorf("%w: batch of %d exceeds burst %d", ErrRateLimited, n, l.limiter.Burst())
	}

	delay := r.Delay()
	if delay == 0 {
		return nil
	}
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < delay {
		r.Cancel()
		return fmt.Errorf("%w: next token in %s", ErrRateLimited, delay)
	}

	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	}
}

// Embed implements Provider.
func (l *Limited) Embed(ctx context.Context, text string) ([]float64, error) {
	if err := l.wait(ctx, 1); err != nil {
		return nil, err
	}
	return l.p.Embed(ctx, text)
}

// EmbedBatch implements BatchProvider. A batch request consumes one token when
// the wrapped provider embeds batches natively and one token per text
// otherwise.
func (l *Limited) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if bp, ok := l.p.(BatchProvider); ok {
		if err := l.wait(ctx, 1); err != nil {
			return nil, err
		}
		return bp.EmbedBatch(ctx, texts)
	}

	out := make([][]float64, len(texts))
	for i, t := range texts {
		v, err := l.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Dimension implements Provider.
func (l *Limited) Dimension() int { return l.p.Dimension() }
