package vecsim

import (
	"context"
	"iter"
	"slices"
	"sync"
	"time"

	"github.com/hupe1980/vecsim/distance"
	"github.com/hupe1980/vecsim/hnsw"
	"github.com/hupe1980/vecsim/metadata"
	"github.com/hupe1980/vecsim/model"
	"github.com/hupe1980/vecsim/store"
)

type (
	// Record is a stored vector with its id and metadata.
	Record = model.Record

	// Neighbor is a single ranked search result.
	Neighbor = model.Neighbor

	// FilterSet is a conjunction of metadata filters.
	FilterSet = metadata.FilterSet
)

// Search strategies reported to loggers and metrics collectors.
const (
	StrategyIndex      = "index"
	StrategyBruteForce = "brute_force"
)

// Engine is an in-process vector similarity search engine.
//
// It owns a record store and one HNSW graph per metric in use. Reads share a
// read lock; Put, Delete and index maintenance take the write lock.
type Engine struct {
	mu sync.RWMutex

	opts   options
	store  *store.Store
	graphs map[distance.Metric]*hnsw.Graph

	rebuilds int
}

// New creates an empty engine.
//
// It fails with ErrInvalidArgument for a negative dimension or an unsupported
// metric.
func New(optFns ...Option) (*Engine, error) {
	opts := applyOptions(optFns)

	if opts.dimension < 0 {
		return nil, model.InvalidArgument("dimension must not be negative, got %d", opts.dimension)
	}
	if !opts.metric.Valid() {
		return nil, model.InvalidArgument("unsupported metric %v", opts.metric)
	}
	if opts.bruteForceThreshold < 0 {
		opts.bruteForceThreshold = 0
	}

	return &Engine{
		opts:   opts,
		store:  store.New(opts.dimension),
		graphs: make(map[distance.Metric]*hnsw.Graph),
	}, nil
}

// Dimension returns the vector dimension, or 0 while it is not yet established.
func (e *Engine) Dimension() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.Dimension()
}

// Metric returns the default metric.
func (e *Engine) Metric() distance.Metric { return e.opts.metric }

// Len returns the number of records.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.Len()
}

// Put inserts or replaces the record for id.
//
// It fails with ErrDimensionMismatch when len(vec) differs from the engine
// dimension and with ErrInvalidArgument for an empty id or vector.
func (e *Engine) Put(ctx context.Context, id string, vec []float64, md map[string]string) error {
	start := time.Now()

	e.mu.Lock()
	defer e.mu.Unlock()

	_, err := e.store.Put(id, vec, md)
	if err == nil && !e.opts.deferredIndexing {
		e.flushLocked(ctx)
	}

	e.opts.logger.LogPut(ctx, id, len(vec), err)
	e.opts.metricsCollector.RecordPut(time.Since(start), err)
	return err
}

// Get returns a copy of the record for id.
func (e *Engine) Get(id string) (Record, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.Get(id)
}

// Delete removes id and reports whether it existed.
func (e *Engine) Delete(ctx context.Context, id string) bool {
	start := time.Now()

	e.mu.Lock()
	defer e.mu.Unlock()

	existed := e.store.Delete(id)
	if existed && !e.opts.deferredIndexing {
		e.flushLocked(ctx)
	}

	e.opts.logger.LogDelete(ctx, id, existed)
	e.opts.metricsCollector.RecordDelete(time.Since(start))
	return existed
}

// AllIDs returns every id in ascending order.
//
// The sequence is lazy and restartable. Each iteration sees the ids present
// when it starts; the engine is not locked while the caller consumes it.
func (e *Engine) AllIDs() iter.Seq[string] {
	return func(yield func(string) bool) {
		e.mu.RLock()
		ids := slices.Collect(e.store.AllIDs())
		e.mu.RUnlock()

		for _, id := range ids {
			if !yield(id) {
				return
			}
		}
	}
}

// Flush applies pending mutations to every graph.
// It is only needed with WithDeferredIndexing; queries flush on their own.
func (e *Engine) Flush(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.flushLocked(ctx)
}

// Rebuild rebuilds every graph from the store.
//
// The write lock is held for the duration. When ctx expires the rebuild stops
// and the previous graphs stay in place.
func (e *Engine) Rebuild(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.flushLocked(ctx)
	if e.store.Dimension() == 0 {
		return nil
	}

	metrics := []distance.Metric{e.opts.metric}
	for m := range e.graphs {
		if m != e.opts.metric {
			metrics = append(metrics, m)
		}
	}
	for _, m := range metrics {
		if err := e.rebuildLocked(ctx, m); err != nil {
			return err
		}
	}
	return nil
}
