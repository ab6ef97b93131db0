package vecsim

import (
	"context"
	"maps"
	"slices"
	"time"

	"github.com/hupe1980/vecsim/distance"
	"github.com/hupe1980/vecsim/flat"
	"github.com/hupe1980/vecsim/metadata"
	"github.com/hupe1980/vecsim/model"
)

// SimilarTo returns up to k records nearest to the stored record id, ascending
// by distance with ties broken by ascending id.
//
// The record itself is excluded unless IncludeSelf is given. It fails with
// ErrNotFound when id is absent and with ErrInvalidArgument when k <= 0. When
// ctx expires mid-search the best results found so far are returned together
// with the context error.
func (e *Engine) SimilarTo(ctx context.Context, id string, k int, optFns ...QueryOption) ([]Neighbor, error) {
	qo := applyQueryOptions(optFns)
	return e.query(ctx, k, qo, func() ([]float64, model.Row, bool, error) {
		row, ok := e.store.Lookup(id)
		if !ok {
			return nil, 0, false, &model.NotFoundError{ID: id}
		}
		vec, _ := e.store.VectorAt(row)
		return vec, row, !qo.includeSelf, nil
	})
}

// SimilarToVector returns up to k records nearest to vec, ascending by distance
// with ties broken by ascending id.
//
// An empty engine yields an empty result. It fails with ErrDimensionMismatch
// when len(vec) differs from the engine dimension, with ErrDegenerateVector
// for a zero vector under the cosine metric and with ErrInvalidArgument when
// k <= 0.
func (e *Engine) SimilarToVector(ctx context.Context, vec []float64, k int, optFns ...QueryOption) ([]Neighbor, error) {
	qo := applyQueryOptions(optFns)
	return e.query(ctx, k, qo, func() ([]float64, model.Row, bool, error) {
		return vec, 0, false, nil
	})
}

// BruteForceSearch is SimilarToVector answered by an exact scan of every
// record. It is the ground truth the graph is measured against.
func (e *Engine) BruteForceSearch(ctx context.Context, vec []float64, k int, optFns ...QueryOption) ([]Neighbor, error) {
	return e.SimilarToVector(ctx, vec, k, append(optFns, ForceBruteForce())...)
}

// resolveFunc yields the query vector and, when exclude is set, the row to
// leave out of the results. It runs under the engine lock.
type resolveFunc func() (vec []float64, self model.Row, exclude bool, err error)

func (e *Engine) query(ctx context.Context, k int, qo queryOptions, resolve resolveFunc) ([]Neighbor, error) {
	start := time.Now()
	strategy := ""

	res, err := func() ([]Neighbor, error) {
		if k <= 0 {
			return nil, model.InvalidArgument("k must be positive, got %d", k)
		}
		metric := e.opts.metric
		if qo.metric != nil {
			metric = *qo.metric
		}
		if !metric.Valid() {
			return nil, model.InvalidArgument("unsupported metric %v", metric)
		}
		if qo.filter != nil {
			if err := qo.filter.Validate(); err != nil {
				return nil, err
			}
		}

		e.mu.RLock()
		unlock := e.mu.RUnlock
		if qo.force != StrategyBruteForce && e.needsMaintenanceLocked(metric) {
			e.mu.RUnlock()
			e.mu.Lock()
			unlock = e.mu.Unlock
			e.maintainLocked(ctx, metric)
		}
		defer unlock()

		q, self, exclude, err := resolve()
		if err != nil {
			return nil, err
		}

		var res []Neighbor
		res, strategy, err = e.searchLocked(ctx, q, k, metric, qo, self, exclude)
		return res, err
	}()

	e.opts.logger.LogSearch(ctx, k, strategy, len(res), err)
	e.opts.metricsCollector.RecordSearch(strategy, k, time.Since(start), err)
	return res, err
}

func (e *Engine) searchLocked(ctx context.Context, q []float64, k int, metric distance.Metric, qo queryOptions, self model.Row, exclude bool) ([]Neighbor, string, error) {
	dim := e.store.Dimension()
	if dim == 0 {
		return nil, "", nil
	}
	if len(q) != dim {
		return nil, "", model.NewDimensionMismatch(dim, len(q))
	}
	if metric == distance.MetricCosine && distance.Norm(q) == 0 {
		return nil, "", model.ErrDegenerateVector
	}
	if e.store.Len() == 0 {
		return nil, "", nil
	}

	var allowed *metadata.Bitmap
	if qo.filter != nil && !qo.filter.IsEmpty() {
		allowed = e.store.Metadata().Evaluate(qo.filter)
		if allowed.IsEmpty() {
			return nil, "", nil
		}
	}

	accept := func(row model.Row) bool {
		if exclude && row == self {
			return false
		}
		return allowed == nil || allowed.Contains(row)
	}

	g := e.graphs[metric]
	strategy := qo.force
	if strategy == "" {
		strategy = StrategyIndex
		if e.store.Len() < e.opts.bruteForceThreshold ||
			(allowed != nil && allowed.Cardinality() < uint64(e.opts.bruteForceThreshold)) {
			strategy = StrategyBruteForce
		}
	}
	if g == nil {
		// The graph could not be built within the caller's deadline.
		strategy = StrategyBruteForce
	}

	var (
		res []Neighbor
		err error
	)
	if strategy == StrategyBruteForce {
		res, err = e.bruteForceLocked(ctx, q, k, metric, allowed, accept)
	} else {
		res, err = e.indexLocked(ctx, q, k, qo.ef, metric, accept)
	}

	if qo.maxDistance != nil {
		limit := *qo.maxDistance
		res = slices.DeleteFunc(res, func(n Neighbor) bool { return n.Distance > limit })
	}
	return res, strategy, err
}

func (e *Engine) bruteForceLocked(ctx context.Context, q []float64, k int, metric distance.Metric, allowed *metadata.Bitmap, accept func(model.Row) bool) ([]Neighbor, error) {
	found, err := flat.Search(ctx, e.store, q, k, metric, func(o *flat.Options) {
		o.Filter = accept
		if allowed != nil {
			o.Candidates = slices.Collect(allowed.Rows())
		}
	})

	res := make([]Neighbor, len(found))
	for i, r := range found {
		res[i] = Neighbor{ID: r.ID, Distance: r.Distance, Metadata: maps.Clone(e.store.MetadataAt(r.Row))}
	}
	return res, err
}

func (e *Engine) indexLocked(ctx context.Context, q []float64, k, ef int, metric distance.Metric, accept func(model.Row) bool) ([]Neighbor, error) {
	found, err := e.graphs[metric].SearchWithTies(ctx, q, k, ef, accept)

	res := make([]Neighbor, 0, len(found))
	for _, c := range found {
		id, ok := e.store.IDAt(c.Row)
		if !ok {
			continue
		}
		res = append(res, Neighbor{ID: id, Distance: c.Distance, Metadata: maps.Clone(e.store.MetadataAt(c.Row))})
	}
	slices.SortFunc(res, model.CompareNeighbors)
	if len(res) > k {
		res = res[:k]
	}
	return res, err
}
