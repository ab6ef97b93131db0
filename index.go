package vecsim

import (
	"context"
	"time"

	"github.com/hupe1980/vecsim/distance"
	"github.com/hupe1980/vecsim/hnsw"
	"github.com/hupe1980/vecsim/store"
)

// stalenessThreshold returns the number of incremental graph mutations that
// triggers a rebuild.
func (e *Engine) stalenessThreshold() int {
	if e.opts.stalenessThreshold > 0 {
		return e.opts.stalenessThreshold
	}
	return max(MinAdaptiveStaleness, e.store.Len())
}

func (e *Engine) graphOptions(o *hnsw.Options) {
	*o = e.opts.hnsw
	o.RandomSeed = e.opts.seed
}

// needsMaintenanceLocked reports whether answering from the graph of metric
// requires the write lock first.
func (e *Engine) needsMaintenanceLocked(metric distance.Metric) bool {
	if e.store.Dimension() == 0 {
		return false
	}
	if e.store.Pending() > 0 {
		return true
	}
	g, ok := e.graphs[metric]
	return !ok || g.Staleness() > e.stalenessThreshold()
}

// maintainLocked brings the graph of metric up to date: pending mutations are
// applied, a missing graph is built and a stale one rebuilt. A failed rebuild
// leaves the previous graph in place.
func (e *Engine) maintainLocked(ctx context.Context, metric distance.Metric) {
	e.flushLocked(ctx)
	if e.store.Dimension() == 0 {
		return
	}

	g, ok := e.graphs[metric]
	if ok && g.Staleness() <= e.stalenessThreshold() {
		return
	}
	// Errors are logged and recorded by rebuildLocked; queries fall back to
	// the previous graph or to an exact scan.
	_ = e.rebuildLocked(ctx, metric)
}

// flushLocked drains the store's pending mutations into every graph. The
// default metric's graph is created on the first flush after the dimension is
// known.
func (e *Engine) flushLocked(ctx context.Context) {
	if e.store.Pending() == 0 {
		return
	}
	start := time.Now()
	muts := e.store.Drain()

	for _, g := range e.graphs {
		e.apply(g, muts)
	}

	if _, ok := e.graphs[e.opts.metric]; !ok && e.store.Dimension() > 0 {
		// A write must not fail because of the caller's deadline; the initial
		// build runs to completion.
		_ = e.rebuildLocked(context.WithoutCancel(ctx), e.opts.metric)
	}

	e.opts.logger.LogFlush(ctx, len(muts))
	e.opts.metricsCollector.RecordFlush(len(muts), time.Since(start))
}

func (e *Engine) apply(g *hnsw.Graph, muts []store.Mutation) {
	for _, m := range muts {
		switch m.Op {
		case store.OpUpsert:
			vec, ok := e.store.VectorAt(m.Row)
			if !ok {
				g.Remove(m.Row)
				continue
			}
			if err := g.Insert(m.Row, vec); err != nil {
				// Zero vectors are not indexed under cosine.
				g.Remove(m.Row)
			}
		case store.OpDelete:
			g.Remove(m.Row)
		}
	}
}

// rebuildLocked replaces the graph of metric with one built from the store.
func (e *Engine) rebuildLocked(ctx context.Context, metric distance.Metric) error {
	start := time.Now()

	staleness := 0
	if old, ok := e.graphs[metric]; ok {
		staleness = old.Staleness()
	}

	g, err := hnsw.Build(ctx, e.store.Dimension(), metric, e.store.Rows(), e.graphOptions)

	nodes := 0
	if g != nil {
		nodes = g.Len()
	}
	e.opts.logger.LogRebuild(ctx, metric.String(), nodes, staleness, time.Since(start), err)
	e.opts.metricsCollector.RecordRebuild(metric.String(), nodes, time.Since(start), err)
	if err != nil {
		return err
	}

	e.graphs[metric] = g
	e.rebuilds++
	return nil
}
