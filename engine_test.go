package vecsim

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"

	"github.com/hupe1980/vecsim/distance"
	"github.com/hupe1980/vecsim/metadata"
	"github.com/hupe1980/vecsim/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(res []Neighbor) []string {
	out := make([]string, len(res))
	for i, n := range res {
		out[i] = n.ID
	}
	return out
}

func assertRanked(t *testing.T, res []Neighbor, k int) {
	t.Helper()
	assert.LessOrEqual(t, len(res), k)
	for i := 1; i < len(res); i++ {
		assert.LessOrEqual(t, res[i-1].Distance, res[i].Distance, "results must be ascending by distance")
	}
}

// newClusteredEngine stores n clustered vectors as "v-00000" ... with a
// "cluster" metadata key.
func newClusteredEngine(t *testing.T, n, dim, clusters int, opts ...Option) (*Engine, [][]float64) {
	t.Helper()
	ctx := context.Background()

	e, err := New(append([]Option{WithSeed(42), WithDeferredIndexing()}, opts...)...)
	require.NoError(t, err)

	vecs := testutil.NewRNG(42).ClusteredVectors(n, dim, clusters, 0.05)
	for i, v := range vecs {
		md := map[string]string{"cluster": fmt.Sprint(i % clusters)}
		require.NoError(t, e.Put(ctx, fmt.Sprintf("v-%05d", i), v, md))
	}
	e.Flush(ctx)
	return e, vecs
}

func TestNew(t *testing.T) {
	e, err := New()
	require.NoError(t, err)
	assert.Equal(t, 0, e.Dimension())
	assert.Equal(t, distance.MetricCosine, e.Metric())
	assert.Equal(t, 0, e.Len())

	_, err = New(WithDimension(-1))
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = New(WithMetric(distance.Metric(7)))
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestScenario_NearestOfThree(t *testing.T) {
	ctx := context.Background()
	e, err := New(WithDimension(3))
	require.NoError(t, err)

	require.NoError(t, e.Put(ctx, "A", []float64{1, 0, 0}, nil))
	require.NoError(t, e.Put(ctx, "B", []float64{0.9, 0.1, 0}, nil))
	require.NoError(t, e.Put(ctx, "C", []float64{0, 1, 0}, nil))

	for _, force := range []QueryOption{nil, ForceIndex(), ForceBruteForce()} {
		res, err := e.SimilarToVector(ctx, []float64{1, 0, 0}, 2, WithQueryMetric(distance.MetricCosine), force)
		require.NoError(t, err)
		assert.Equal(t, []string{"A", "B"}, ids(res))
		assert.InDelta(t, 0, res[0].Distance, 1e-12)
		assert.Greater(t, res[1].Distance, 0.0)
	}
}

func TestEmptyEngineSearch(t *testing.T) {
	ctx := context.Background()

	for _, opts := range [][]Option{nil, {WithDimension(3)}} {
		e, err := New(opts...)
		require.NoError(t, err)

		res, err := e.SimilarToVector(ctx, []float64{1, 2, 3}, 5)
		require.NoError(t, err)
		assert.Empty(t, res)

		res, err = e.BruteForceSearch(ctx, []float64{1, 2, 3}, 5)
		require.NoError(t, err)
		assert.Empty(t, res)
	}
}

func TestPut_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	e, err := New(WithDimension(3))
	require.NoError(t, err)

	err = e.Put(ctx, "x", []float64{1, 2}, nil)
	require.ErrorIs(t, err, ErrDimensionMismatch)

	var dm *DimensionMismatchError
	require.True(t, errors.As(err, &dm))
	assert.Equal(t, 3, dm.Expected)
	assert.Equal(t, 2, dm.Actual)
	assert.Equal(t, 0, e.Len())

	// The first Put fixes the dimension of an engine created without one.
	e, err = New()
	require.NoError(t, err)
	require.NoError(t, e.Put(ctx, "a", []float64{1, 2}, nil))
	assert.Equal(t, 2, e.Dimension())
	assert.ErrorIs(t, e.Put(ctx, "b", []float64{1, 2, 3}, nil), ErrDimensionMismatch)

	_, err = e.SimilarToVector(ctx, []float64{1, 2, 3}, 1)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestPut_InvalidArgument(t *testing.T) {
	ctx := context.Background()
	e, err := New()
	require.NoError(t, err)

	assert.ErrorIs(t, e.Put(ctx, "", []float64{1}, nil), ErrInvalidArgument)
	assert.ErrorIs(t, e.Put(ctx, "a", nil, nil), ErrInvalidArgument)
}

func TestPutGetDelete(t *testing.T) {
	ctx := context.Background()
	e, err := New()
	require.NoError(t, err)

	vec := []float64{1, 2, 3}
	md := map[string]string{"brand": "acme"}
	require.NoError(t, e.Put(ctx, "a", vec, md))
	require.NoError(t, e.Put(ctx, "b", []float64{3, 2, 1}, nil))

	// Inputs are copied.
	vec[0] = 99
	md["brand"] = "other"

	rec, ok := e.Get("a")
	require.True(t, ok)
	assert.Equal(t, []float64{1, 2, 3}, rec.Vector)
	assert.Equal(t, map[string]string{"brand": "acme"}, rec.Metadata)

	// Returned records are copies too.
	rec.Vector[0] = 42
	again, _ := e.Get("a")
	assert.Equal(t, 1.0, again.Vector[0])

	// Update keeps one record per id.
	require.NoError(t, e.Put(ctx, "a", []float64{1, 1, 1}, nil))
	assert.Equal(t, 2, e.Len())

	assert.True(t, e.Delete(ctx, "a"))
	assert.False(t, e.Delete(ctx, "a"))

	_, ok = e.Get("a")
	assert.False(t, ok)

	res, err := e.SimilarToVector(ctx, []float64{1, 1, 1}, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(res))

	_, err = e.SimilarTo(ctx, "a", 1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInsertDeleteLargeStore(t *testing.T) {
	ctx := context.Background()
	e, vecs := newClusteredEngine(t, 1500, 8, 10)

	require.True(t, e.Delete(ctx, "v-00007"))

	res, err := e.SimilarToVector(ctx, vecs[7], 20, ForceIndex())
	require.NoError(t, err)
	assert.NotContains(t, ids(res), "v-00007")
	assertRanked(t, res, 20)
}

func TestSimilarTo(t *testing.T) {
	ctx := context.Background()
	e, err := New()
	require.NoError(t, err)

	require.NoError(t, e.Put(ctx, "a", []float64{1, 0}, nil))
	require.NoError(t, e.Put(ctx, "b", []float64{1, 0.1}, nil))
	require.NoError(t, e.Put(ctx, "c", []float64{0, 1}, nil))

	res, err := e.SimilarTo(ctx, "a", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, ids(res))

	res, err = e.SimilarTo(ctx, "a", 5, IncludeSelf())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids(res))

	_, err = e.SimilarTo(ctx, "zzz", 5)
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "zzz", nf.ID)
}

func TestQueryArguments(t *testing.T) {
	ctx := context.Background()
	e, err := New()
	require.NoError(t, err)
	require.NoError(t, e.Put(ctx, "a", []float64{1, 0}, nil))

	_, err = e.SimilarToVector(ctx, []float64{1, 0}, 0)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = e.SimilarToVector(ctx, []float64{1, 0}, 1, WithQueryMetric(distance.Metric(9)))
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = e.SimilarToVector(ctx, []float64{0, 0}, 1)
	assert.ErrorIs(t, err, ErrDegenerateVector)

	// A zero query is fine under euclidean.
	res, err := e.SimilarToVector(ctx, []float64{0, 0}, 1, WithQueryMetric(distance.MetricEuclidean))
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.InDelta(t, 1.0, res[0].Distance, 1e-12)
}

func TestTiesBrokenByID(t *testing.T) {
	ctx := context.Background()
	e, err := New()
	require.NoError(t, err)

	for _, id := range []string{"d", "b", "c", "a"} {
		require.NoError(t, e.Put(ctx, id, []float64{1, 1}, nil))
	}

	strategies := map[string]QueryOption{
		StrategyIndex:      ForceIndex(),
		StrategyBruteForce: ForceBruteForce(),
	}
	for name, force := range strategies {
		t.Run(name, func(t *testing.T) {
			res, err := e.SimilarToVector(ctx, []float64{1, 1}, 1, force)
			require.NoError(t, err)
			assert.Equal(t, []string{"a"}, ids(res))

			res, err = e.SimilarToVector(ctx, []float64{1, 1}, 3, force)
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b", "c"}, ids(res))

			res, err = e.SimilarTo(ctx, "c", 2, force)
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b"}, ids(res))
		})
	}
}

func TestIndexAgreesWithBruteForce(t *testing.T) {
	ctx := context.Background()
	const n, dim = 2000, 16
	e, vecs := newClusteredEngine(t, n, dim, 20)

	// Queries are perturbed copies of stored vectors.
	rng := testutil.NewRNG(7)
	queries := make([][]float64, 200)
	for i := range queries {
		queries[i] = rng.Perturb(vecs[i*10], 0.02)
	}

	for _, metric := range []distance.Metric{distance.MetricCosine, distance.MetricEuclidean} {
		agree := 0
		for _, q := range queries {
			exact, err := e.BruteForceSearch(ctx, q, 10, WithQueryMetric(metric))
			require.NoError(t, err)
			approx, err := e.SimilarToVector(ctx, q, 10, WithQueryMetric(metric), ForceIndex())
			require.NoError(t, err)

			assertRanked(t, approx, 10)
			require.NotEmpty(t, approx)
			if approx[0].ID == exact[0].ID {
				agree++
			}
		}
		rate := float64(agree) / float64(len(queries))
		assert.GreaterOrEqual(t, rate, 0.95, "%s top-1 agreement", metric)
	}
}

func TestStrategySelection(t *testing.T) {
	ctx := context.Background()
	mc := &BasicMetricsCollector{}
	e, vecs := newClusteredEngine(t, 1200, 8, 4, WithMetricsCollector(mc))

	_, err := e.SimilarToVector(ctx, vecs[0], 5)
	require.NoError(t, err)
	assert.Equal(t, int64(1), mc.GetStats().IndexSearches)

	// A filter matching fewer rows than the threshold scans exactly.
	_, err = e.SimilarToVector(ctx, vecs[0], 5, WithFilter(metadata.And(metadata.Eq("cluster", "1"))))
	require.NoError(t, err)
	assert.Equal(t, int64(1), mc.GetStats().BruteSearches)

	_, err = e.SimilarToVector(ctx, vecs[0], 5, ForceBruteForce())
	require.NoError(t, err)
	assert.Equal(t, int64(2), mc.GetStats().BruteSearches)
}

func TestFilter(t *testing.T) {
	ctx := context.Background()
	e, vecs := newClusteredEngine(t, 1200, 8, 4)
	fs := metadata.And(metadata.In("cluster", "2", "3"))

	for _, force := range []QueryOption{ForceIndex(), ForceBruteForce()} {
		res, err := e.SimilarToVector(ctx, vecs[0], 15, WithFilter(fs), force)
		require.NoError(t, err)
		require.Len(t, res, 15)
		assertRanked(t, res, 15)
		for _, n := range res {
			assert.Contains(t, []string{"2", "3"}, n.Metadata["cluster"])
		}
	}

	res, err := e.SimilarToVector(ctx, vecs[0], 5, WithFilter(metadata.And(metadata.Eq("cluster", "nope"))))
	require.NoError(t, err)
	assert.Empty(t, res)

	_, err = e.SimilarToVector(ctx, vecs[0], 5, WithFilter(metadata.And(metadata.Filter{Key: ""})))
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestMaxDistance(t *testing.T) {
	ctx := context.Background()
	e, err := New()
	require.NoError(t, err)

	require.NoError(t, e.Put(ctx, "same", []float64{1, 0}, nil))
	require.NoError(t, e.Put(ctx, "close", []float64{1, 0.1}, nil))
	require.NoError(t, e.Put(ctx, "far", []float64{-1, 0}, nil))

	res, err := e.SimilarToVector(ctx, []float64{1, 0}, 10, WithMaxDistance(0.1))
	require.NoError(t, err)
	assert.Equal(t, []string{"same", "close"}, ids(res))
}

func TestQueryMetricBuildsGraph(t *testing.T) {
	ctx := context.Background()
	e, vecs := newClusteredEngine(t, 1200, 8, 4)

	require.Len(t, e.Stats().Indexes, 1)

	res, err := e.SimilarToVector(ctx, vecs[3], 5, WithQueryMetric(distance.MetricEuclidean))
	require.NoError(t, err)
	assert.Len(t, res, 5)

	stats := e.Stats()
	require.Len(t, stats.Indexes, 2)
	assert.Equal(t, distance.MetricCosine, stats.Indexes[0].Metric)
	assert.Equal(t, distance.MetricEuclidean, stats.Indexes[1].Metric)
	assert.Equal(t, 1200, stats.Indexes[1].Nodes)

	// Later writes reach both graphs.
	require.NoError(t, e.Put(ctx, "new", vecs[3], nil))
	e.Flush(ctx)
	for _, ix := range e.Stats().Indexes {
		assert.Equal(t, 1201, ix.Nodes)
	}
}

func TestRebuildOnStaleness(t *testing.T) {
	ctx := context.Background()
	e, err := New(WithStalenessThreshold(10), WithBruteForceThreshold(0), WithSeed(1))
	require.NoError(t, err)

	vecs := testutil.NewRNG(3).UniformVectors(30, 4)
	require.NoError(t, e.Put(ctx, "v0", vecs[0], nil))

	stats := e.Stats()
	require.Len(t, stats.Indexes, 1)
	assert.Equal(t, 1, stats.Rebuilds)
	assert.Equal(t, 0, stats.Indexes[0].Staleness)

	for i := 1; i < 21; i++ {
		require.NoError(t, e.Put(ctx, fmt.Sprintf("v%d", i), vecs[i], nil))
	}
	stats = e.Stats()
	assert.Equal(t, 1, stats.Rebuilds)
	assert.Equal(t, 20, stats.Indexes[0].Staleness)
	assert.Equal(t, 10, stats.Indexes[0].Threshold)

	_, err = e.SimilarToVector(ctx, vecs[0], 3)
	require.NoError(t, err)

	stats = e.Stats()
	assert.Equal(t, 2, stats.Rebuilds)
	assert.Equal(t, 0, stats.Indexes[0].Staleness)
	assert.Equal(t, 21, stats.Indexes[0].Nodes)
}

func TestAdaptiveStalenessThreshold(t *testing.T) {
	e, err := New()
	require.NoError(t, err)
	assert.Equal(t, MinAdaptiveStaleness, e.stalenessThreshold())

	e, _ = newClusteredEngine(t, 300, 4, 3)
	assert.Equal(t, 300, e.stalenessThreshold())
}

func TestExplicitRebuild(t *testing.T) {
	ctx := context.Background()
	e, _ := newClusteredEngine(t, 500, 8, 5)
	before := e.Stats()

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, e.Rebuild(canceled), context.Canceled)

	after := e.Stats()
	assert.Equal(t, before.Rebuilds, after.Rebuilds)
	assert.Equal(t, before.Indexes[0].Nodes, after.Indexes[0].Nodes)

	require.NoError(t, e.Rebuild(ctx))
	assert.Equal(t, before.Rebuilds+1, e.Stats().Rebuilds)
}

func TestDeferredIndexing(t *testing.T) {
	ctx := context.Background()
	e, err := New(WithDeferredIndexing(), WithBruteForceThreshold(0))
	require.NoError(t, err)

	vecs := testutil.NewRNG(5).UniformVectors(10, 3)
	for i, v := range vecs {
		require.NoError(t, e.Put(ctx, fmt.Sprint(i), v, nil))
	}

	stats := e.Stats()
	assert.Equal(t, 10, stats.Pending)
	assert.Empty(t, stats.Indexes)

	// Queries flush on their own.
	res, err := e.SimilarToVector(ctx, vecs[4], 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"4"}, ids(res))

	stats = e.Stats()
	assert.Equal(t, 0, stats.Pending)
	require.Len(t, stats.Indexes, 1)
	assert.Equal(t, 10, stats.Indexes[0].Nodes)

	assert.True(t, e.Delete(ctx, "4"))
	assert.Equal(t, 1, e.Stats().Pending)
	e.Flush(ctx)
	assert.Equal(t, 0, e.Stats().Pending)
	assert.Equal(t, 9, e.Stats().Indexes[0].Nodes)
}

func TestContextCanceled(t *testing.T) {
	e, vecs := newClusteredEngine(t, 1200, 8, 4)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, force := range []QueryOption{ForceIndex(), ForceBruteForce()} {
		_, err := e.SimilarToVector(ctx, vecs[0], 5, force)
		assert.ErrorIs(t, err, context.Canceled)
	}

	// Writes are not bound to the caller's deadline.
	require.NoError(t, e.Put(ctx, "late", vecs[0], nil))
}

func TestAllIDs(t *testing.T) {
	ctx := context.Background()
	e, err := New()
	require.NoError(t, err)

	for _, id := range []string{"c", "a", "b"} {
		require.NoError(t, e.Put(ctx, id, []float64{1}, nil))
	}

	seq := e.AllIDs()
	assert.Equal(t, []string{"a", "b", "c"}, slices.Collect(seq))

	// Restartable and reflects later changes.
	e.Delete(ctx, "b")
	assert.Equal(t, []string{"a", "c"}, slices.Collect(seq))

	for id := range seq {
		assert.Equal(t, "a", id)
		break
	}
}

func TestMetricsCollector(t *testing.T) {
	ctx := context.Background()
	mc := &BasicMetricsCollector{}
	e, err := New(WithMetricsCollector(mc), WithDimension(2))
	require.NoError(t, err)

	require.NoError(t, e.Put(ctx, "a", []float64{1, 0}, nil))
	require.Error(t, e.Put(ctx, "b", []float64{1}, nil))
	e.Delete(ctx, "missing")
	_, _ = e.SimilarToVector(ctx, []float64{1, 0}, 1)
	_, _ = e.SimilarToVector(ctx, []float64{1, 0}, 0)

	s := mc.GetStats()
	assert.Equal(t, int64(2), s.PutCount)
	assert.Equal(t, int64(1), s.PutErrors)
	assert.Equal(t, int64(1), s.DeleteCount)
	assert.Equal(t, int64(2), s.SearchCount)
	assert.Equal(t, int64(1), s.SearchErrors)
	assert.Equal(t, int64(1), s.FlushCount)
	assert.Equal(t, int64(1), s.RebuildCount)
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	ctx := context.Background()
	e, vecs := newClusteredEngine(t, 1100, 8, 4)

	var wg sync.WaitGroup
	for w := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 50 {
				id := fmt.Sprintf("w%d-%d", w, i)
				assert.NoError(t, e.Put(ctx, id, vecs[(w*50+i)%len(vecs)], nil))
				if i%5 == 0 {
					e.Delete(ctx, id)
				}
			}
		}()
	}
	for r := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 50 {
				res, err := e.SimilarToVector(ctx, vecs[(r*50+i)%len(vecs)], 5)
				assert.NoError(t, err)
				assert.LessOrEqual(t, len(res), 5)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1100+4*40, e.Len())
}
