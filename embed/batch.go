package embed

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// DefaultBatchSize is the number of texts sent per request by Batch.
const DefaultBatchSize = 100

// Batch embeds texts with at most concurrency requests in flight and returns
// the vectors in input order.
//
// Providers implementing BatchProvider receive chunks of batchSize texts;
// others are called once per text. The first error cancels the remaining
// requests and is returned.
func Batch(ctx context.Context, p Provider, texts []string, batchSize, concurrency int) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	out := make([][]float64, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))

	bp, native := p.(BatchProvider)
	if !native {
		batchSize = 1
	}

	for lo := 0; lo < len(texts); lo += batchSize {
		hi := min(lo+batchSize, len(texts))
		g.Go(func() error {
			if native {
				vecs, err := bp.EmbedBatch(gctx, texts[lo:hi])
				if err != nil {
					return err
				}
				copy(out[lo:hi], vecs)
				return nil
			}
			v, err := p.Embed(gctx, texts[lo])
			if err != nil {
				return err
			}
			out[lo] = v
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
