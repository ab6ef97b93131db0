package flat

import (
	"context"
	"errors"
	"runtime"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/vecsim/distance"
	"github.com/hupe1980/vecsim/model"
)

// DefaultParallelThreshold is the row count from which scans fan out.
const DefaultParallelThreshold = 8192

// ctxCheckInterval is how many rows are scanned between context checks.
const ctxCheckInterval = 1024

// Source is the row-addressed view of a record store.
type Source interface {
	Capacity() int
	VectorAt(row model.Row) ([]float64, bool)
	IDAt(row model.Row) (string, bool)
}

// Options configures a scan.
type Options struct {
	// Filter restricts the scan to rows it accepts. Nil accepts all rows.
	Filter func(model.Row) bool

	// Candidates, when set, is scanned instead of every row.
	Candidates []model.Row

	// ParallelThreshold is the row count from which the scan runs in parallel.
	// Zero uses DefaultParallelThreshold, a negative value disables it.
	ParallelThreshold int

	// Workers caps the number of parallel chunks. Zero uses GOMAXPROCS.
	Workers int
}

// Result is a scored row.
type Result struct {
	Row      model.Row
	ID       string
	Distance float64
}

func compare(a, b Result) int {
	switch {
	case a.Distance < b.Distance:
		return -1
	case a.Distance > b.Distance:
		return 1
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	}
	return 0
}

// Search returns the k rows of src nearest to q under metric, ascending by
// distance with ties broken by ascending id.
//
// It fails with model.ErrInvalidArgument when k <= 0 and with
// model.ErrDimensionMismatch or model.ErrDegenerateVector for a bad query.
// Rows holding a zero vector are skipped under the cosine metric. When ctx
// expires mid-scan, the best results found so far are returned together with
// the context error.
func Search(ctx context.Context, src Source, q []float64, k int, metric distance.Metric, optFns ...func(o *Options)) ([]Result, error) {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}

	if k <= 0 {
		return nil, model.InvalidArgument("k must be positive, got %d", k)
	}
	dist, err := distance.Provider(metric)
	if err != nil {
		return nil, err
	}
	if metric == distance.MetricCosine && distance.Norm(q) == 0 {
		return nil, model.ErrDegenerateVector
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows := opts.Candidates
	n := len(rows)
	if rows == nil {
		n = src.Capacity()
	}
	rowAt := func(i int) model.Row {
		if rows != nil {
			return rows[i]
		}
		return model.Row(i)
	}

	threshold := opts.ParallelThreshold
	if threshold == 0 {
		threshold = DefaultParallelThreshold
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if threshold < 0 || n < threshold || workers == 1 {
		workers = 1
	}

	chunk := (n + workers - 1) / max(workers, 1)
	partials := make([]*topK, workers)

	g, gctx := errgroup.WithContext(ctx)
	for w := range workers {
		lo, hi := w*chunk, min((w+1)*chunk, n)
		top := newTopK(k)
		partials[w] = top
		if lo >= hi {
			continue
		}
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				if (i-lo)%ctxCheckInterval == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				row := rowAt(i)
				if opts.Filter != nil && !opts.Filter(row) {
					continue
				}
				vec, ok := src.VectorAt(row)
				if !ok {
					continue
				}
				d, err := dist(q, vec)
				if errors.Is(err, model.ErrDegenerateVector) {
					continue
				}
				if err != nil {
					return err
				}
				id, _ := src.IDAt(row)
				top.offer(Result{Row: row, ID: id, Distance: d})
			}
			return nil
		})
	}
	err = g.Wait()
	if err != nil && !errors.Is(err, ctx.Err()) {
		return nil, err
	}

	merged := newTopK(k)
	for _, p := range partials {
		for _, r := range p.items {
			merged.offer(r)
		}
	}
	return merged.sorted(), err
}

// topK keeps the k best results seen so far in a max-heap keyed by compare.
type topK struct {
	k     int
	items []Result
}

func newTopK(k int) *topK {
	return &topK{k: k, items: make([]Result, 0, min(k, 1024))}
}

func (t *topK) offer(r Result) {
	if len(t.items) < t.k {
		t.items = append(t.items, r)
		t.up(len(t.items) - 1)
		return
	}
	if compare(r, t.items[0]) >= 0 {
		return
	}
	t.items[0] = r
	t.down(0)
}

func (t *topK) up(i int) {
	for i > 0 {
		p := (i - 1) / 2
		if compare(t.items[i], t.items[p]) <= 0 {
			return
		}
		t.items[i], t.items[p] = t.items[p], t.items[i]
		i = p
	}
}

func (t *topK) down(i int) {
	n := len(t.items)
	for {
		l := 2*i + 1
		if l >= n {
			return
		}
		largest := l
		if r := l + 1; r < n && compare(t.items[r], t.items[l]) > 0 {
			largest = r
		}
		if compare(t.items[largest], t.items[i]) <= 0 {
			return
		}
		t.items[i], t.items[largest] = t.items[largest], t.items[i]
		i = largest
	}
}

func (t *topK) sorted() []Result {
	out := slices.Clone(t.items)
	slices.SortFunc(out, compare)
	return out
}
