package hnsw

import (
	"context"
	"errors"
	"iter"

	"github.com/hupe1980/vecsim/distance"
	"github.com/hupe1980/vecsim/model"
)

// Build constructs a fresh graph from rows.
//
// Rows whose vector is degenerate for the metric (zero vectors under cosine)
// are skipped; any other vector error aborts the build. Build checks ctx
// between inserts and returns the context error on expiry, so callers keep
// their previous graph. The returned graph has zero staleness.
func Build(ctx context.Context, dim int, metric distance.Metric, rows iter.Seq2[model.Row, []float64], optFns ...func(o *Options)) (*Graph, error) {
	g, err := New(dim, metric, optFns...)
	if err != nil {
		return nil, err
	}

	n := 0
	for row, vec := range rows {
		if n%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		n++

		v, err := g.prepare(vec)
		if errors.Is(err, model.ErrDegenerateVector) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if g.Contains(row) {
			g.unlink(row)
		}
		g.insert(row, v, g.randomLevel())
	}

	g.staleness = 0
	return g, nil
}
