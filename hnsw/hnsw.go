package hnsw

import (
	"context"
	"math"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/hupe1980/vecsim/distance"
	"github.com/hupe1980/vecsim/model"
)

const (
	// DefaultM is the default number of bidirectional links per layer.
	DefaultM = 16

	// DefaultEFConstruction is the default candidate list size during inserts.
	DefaultEFConstruction = 200

	// DefaultEFSearch is the default candidate list size during queries.
	DefaultEFSearch = 64

	// minimumM is the minimum valid value for M.
	minimumM = 2

	// mmax0Multiplier is the multiplier for calculating maximum connections at layer 0.
	mmax0Multiplier = 2

	// ctxCheckInterval is how many node expansions run between context checks.
	ctxCheckInterval = 64
)

// Options represents the options for configuring a Graph.
type Options struct {
	M              int
	EFConstruction int
	EFSearch       int
	Heuristic      bool
	RandomSeed     *int64
}

// DefaultOptions are applied before any option function.
var DefaultOptions = Options{
	M:              DefaultM,
	EFConstruction: DefaultEFConstruction,
	EFSearch:       DefaultEFSearch,
	Heuristic:      true,
}

type node struct {
	vec   []float64
	links [][]model.Row // one adjacency list per layer, 0..level
	live  bool
}

func (n *node) level() int { return len(n.links) - 1 }

// Graph is an HNSW graph over store rows.
type Graph struct {
	dim    int
	metric distance.Metric
	opts   Options

	nodes    []node
	count    int
	entry    model.Row
	maxLevel int // -1 when empty

	maxConns  int
	maxConns0 int
	levelMult float64
	rng       *rand.Rand

	staleness int

	visitedPool sync.Pool
}

// New creates an empty graph for vectors of length dim compared with metric.
func New(dim int, metric distance.Metric, optFns ...func(o *Options)) (*Graph, error) {
	opts := DefaultOptions
	for _, fn := range optFns {
		fn(&opts)
	}

	if dim <= 0 {
		return nil, model.InvalidArgument("hnsw: dimension must be positive, got %d", dim)
	}
	if !metric.Valid() {
		return nil, model.InvalidArgument("hnsw: unsupported metric %v", metric)
	}
	if opts.M < minimumM {
		opts.M = minimumM
	}
	if opts.EFConstruction < opts.M {
		opts.EFConstruction = opts.M
	}
	if opts.EFSearch <= 0 {
		opts.EFSearch = DefaultEFSearch
	}

	seed := time.Now().UnixNano()
	if opts.RandomSeed != nil {
		seed = *opts.RandomSeed
	}

	g := &Graph{
		dim:       dim,
		metric:    metric,
		opts:      opts,
		maxLevel:  -1,
		maxConns:  opts.M,
		maxConns0: mmax0Multiplier * opts.M,
		levelMult: 1 / math.Log(float64(opts.M)),
		rng:       rand.New(rand.NewSource(seed)), //nolint:gosec // level sampling, not security
	}
	g.visitedPool.New = func() any { return newVisitedSet(max(len(g.nodes), 1024)) }
	return g, nil
}

// Dimension returns the vector dimension.
func (g *Graph) Dimension() int { return g.dim }

// Metric returns the metric the graph was built for.
func (g *Graph) Metric() distance.Metric { return g.metric }

// Len returns the number of live nodes.
func (g *Graph) Len() int { return g.count }

// Staleness returns the number of incremental mutations since the graph was built.
func (g *Graph) Staleness() int { return g.staleness }

// Contains reports whether row is a live node.
func (g *Graph) Contains(row model.Row) bool {
	return int(row) < len(g.nodes) && g.nodes[row].live
}

// prepare validates v and converts it to the graph's internal representation.
func (g *Graph) prepare(v []float64) ([]float64, error) {
	if len(v) != g.dim {
		return nil, model.NewDimensionMismatch(g.dim, len(v))
	}
	if g.metric == distance.MetricCosine {
		return distance.NormalizeCopy(v)
	}
	return slices.Clone(v), nil
}

// dist is the internal, order-preserving distance.
func (g *Graph) dist(a, b []float64) float64 {
	if g.metric == distance.MetricCosine {
		return 1 - distance.Dot(a, b)
	}
	return distance.SquaredL2(a, b)
}

// external converts an internal distance to the metric's reported distance.
func (g *Graph) external(d float64) float64 {
	if g.metric == distance.MetricCosine {
		return min(max(d, 0), 2)
	}
	return math.Sqrt(max(d, 0))
}

func (g *Graph) randomLevel() int {
	r := g.rng.Float64()
	if r == 0 {
		r = math.SmallestNonzeroFloat64
	}
	return int(math.Floor(-math.Log(r) * g.levelMult))
}

func (g *Graph) maxConnsFor(layer int) int {
	if layer == 0 {
		return g.maxConns0
	}
	return g.maxConns
}

// linksAt returns the adjacency of row at layer, or nil when row does not
// reach that layer. Dangling edges to removed or recycled rows are tolerated.
func (g *Graph) linksAt(row model.Row, layer int) []model.Row {
	if int(row) >= len(g.nodes) {
		return nil
	}
	n := &g.nodes[row]
	if !n.live || layer >= len(n.links) {
		return nil
	}
	return n.links[layer]
}

// Insert adds row with vector v. Inserting a row that is already present
// replaces its vector.
//
// It fails with model.ErrDimensionMismatch on a wrong length and with
// model.ErrDegenerateVector for a zero vector under the cosine metric.
func (g *Graph) Insert(row model.Row, v []float64) error {
	vec, err := g.prepare(v)
	if err != nil {
		return err
	}
	if g.Contains(row) {
		g.unlink(row)
	}
	g.insert(row, vec, g.randomLevel())
	g.staleness++
	return nil
}

func (g *Graph) insert(row model.Row, vec []float64, level int) {
	if int(row) >= len(g.nodes) {
		g.nodes = append(g.nodes, make([]node, int(row)+1-len(g.nodes))...)
	}
	g.nodes[row] = node{vec: vec, links: make([][]model.Row, level+1), live: true}
	g.count++

	if g.maxLevel < 0 {
		g.entry = row
		g.maxLevel = level
		return
	}

	// 1. Greedy descent from the top to level+1.
	ep := item{row: g.entry, dist: g.dist(vec, g.nodes[g.entry].vec)}
	for layer := g.maxLevel; layer > level; layer-- {
		ep = g.greedy(vec, ep, layer)
	}

	// 2. Search and link from min(level, maxLevel) down to 0.
	entries := []item{ep}
	for layer := min(level, g.maxLevel); layer >= 0; layer-- {
		candidates, _ := g.searchLayer(vec, entries, g.opts.EFConstruction, layer, nil, nil)
		candidates = slices.DeleteFunc(candidates, func(it item) bool { return it.row == row })

		neighbors := g.selectNeighbors(candidates, g.maxConnsFor(layer))
		g.nodes[row].links[layer] = neighbors
		for _, nb := range neighbors {
			g.addConnection(nb, row, layer)
		}
		if len(candidates) > 0 {
			entries = candidates
		}
	}

	if level > g.maxLevel {
		g.entry = row
		g.maxLevel = level
	}
}

// greedy walks layer towards q until no neighbor is closer.
func (g *Graph) greedy(q []float64, cur item, layer int) item {
	for changed := true; changed; {
		changed = false
		for _, nb := range g.linksAt(cur.row, layer) {
			if !g.nodes[nb].live {
				continue
			}
			if d := g.dist(q, g.nodes[nb].vec); d < cur.dist {
				cur = item{row: nb, dist: d}
				changed = true
			}
		}
	}
	return cur
}

// addConnection links source -> target at layer, pruning with the neighbor
// selection heuristic when the adjacency list is full.
func (g *Graph) addConnection(source, target model.Row, layer int) {
	src := &g.nodes[source]
	if layer >= len(src.links) {
		return
	}
	conns := slices.DeleteFunc(src.links[layer], func(r model.Row) bool { return !g.nodes[r].live })
	if slices.Contains(conns, target) {
		src.links[layer] = conns
		return
	}

	maxM := g.maxConnsFor(layer)
	if len(conns) < maxM {
		src.links[layer] = append(conns, target)
		return
	}

	candidates := make([]item, 0, len(conns)+1)
	for _, c := range conns {
		candidates = append(candidates, item{row: c, dist: g.dist(src.vec, g.nodes[c].vec)})
	}
	candidates = append(candidates, item{row: target, dist: g.dist(src.vec, g.nodes[target].vec)})
	sortItems(candidates)
	src.links[layer] = g.selectNeighbors(candidates, maxM)
}

func sortItems(items []item) {
	slices.SortFunc(items, func(a, b item) int {
		switch {
		case a.dist < b.dist:
			return -1
		case a.dist > b.dist:
			return 1
		default:
			return int(a.row) - int(b.row)
		}
	})
}

// selectNeighbors picks up to m rows from candidates, which must be sorted
// nearest first.
func (g *Graph) selectNeighbors(candidates []item, m int) []model.Row {
	if !g.opts.Heuristic || len(candidates) <= m {
		out := make([]model.Row, 0, min(m, len(candidates)))
		for _, c := range candidates {
			if len(out) == m {
				break
			}
			out = append(out, c.row)
		}
		return out
	}

	// Relative neighborhood heuristic: keep a candidate only if it is closer to
	// the base than to every neighbor selected so far.
	result := make([]model.Row, 0, m)
	skipped := make([]model.Row, 0, len(candidates))
	for _, cand := range candidates {
		if len(result) >= m {
			break
		}
		good := true
		for _, sel := range result {
			if g.dist(g.nodes[cand.row].vec, g.nodes[sel].vec) < cand.dist {
				good = false
				break
			}
		}
		if good {
			result = append(result, cand.row)
		} else {
			skipped = append(skipped, cand.row)
		}
	}
	// Keep pruned connections to fill up to m.
	for _, r := range skipped {
		if len(result) >= m {
			break
		}
		result = append(result, r)
	}
	return result
}

// searchLayer runs the best-first beam search on one layer.
//
// Only live rows accepted by filter enter the result set, but every live row
// is used for navigation so that selective filters do not strand the search.
// stop is polled every ctxCheckInterval expansions; when it reports true the
// search ends early and interrupted is set.
func (g *Graph) searchLayer(q []float64, entries []item, ef, layer int, filter func(model.Row) bool, stop func() bool) (results []item, interrupted bool) {
	visited := g.visitedPool.Get().(*visitedSet)
	visited.Reset()
	defer g.visitedPool.Put(visited)

	candidates := newMinQueue(ef)
	best := newMaxQueue(ef + 1)

	accept := func(r model.Row) bool { return filter == nil || filter(r) }

	for _, ep := range entries {
		if visited.Visited(ep.row) || !g.nodes[ep.row].live {
			continue
		}
		visited.Visit(ep.row)
		candidates.Push(ep)
		if accept(ep.row) {
			best.Push(ep)
			if best.Len() > ef {
				best.Pop()
			}
		}
	}

	expansions := 0
	for candidates.Len() > 0 {
		if stop != nil {
			expansions++
			if expansions%ctxCheckInterval == 0 && stop() {
				interrupted = true
				break
			}
		}

		curr, _ := candidates.Pop()
		if worst, ok := best.Top(); ok && best.Len() >= ef && curr.dist > worst.dist {
			break
		}

		for _, nb := range g.linksAt(curr.row, layer) {
			if visited.Visited(nb) {
				continue
			}
			visited.Visit(nb)
			if !g.nodes[nb].live {
				continue
			}

			d := g.dist(q, g.nodes[nb].vec)

			// Classic pruning only without a filter; with a filter traversal stays
			// permissive so it is not trapped in filtered-out regions.
			if filter == nil && best.Len() >= ef {
				if worst, _ := best.Top(); d > worst.dist {
					continue
				}
			}

			candidates.Push(item{row: nb, dist: d})
			if accept(nb) {
				best.Push(item{row: nb, dist: d})
				if best.Len() > ef {
					best.Pop()
				}
			}
		}
	}

	return best.Ascending(), interrupted
}

// Search returns up to k nearest live rows accepted by filter, nearest first.
//
// It fails with model.ErrInvalidArgument when k <= 0, model.ErrDimensionMismatch
// on a wrong query length and model.ErrDegenerateVector for a zero query under
// the cosine metric. An empty graph yields an empty result. When ctx expires
// mid-search the best candidates found so far are returned together with the
// context error.
func (g *Graph) Search(ctx context.Context, q []float64, k int, filter func(model.Row) bool) ([]model.Candidate, error) {
	return g.SearchEF(ctx, q, k, 0, filter)
}

// SearchEF is Search with an explicit candidate list size. ef <= 0 uses the
// configured EFSearch; ef is raised to k when smaller.
func (g *Graph) SearchEF(ctx context.Context, q []float64, k, ef int, filter func(model.Row) bool) ([]model.Candidate, error) {
	res, err := g.SearchWithTies(ctx, q, k, ef, filter)
	if len(res) > k {
		res = res[:k]
	}
	return res, err
}

// SearchWithTies is SearchEF without the cut at k: candidates found at the
// same distance as the k-th are returned as well, so a caller ordering ties
// by its own key can pick among them. Results are ascending by distance.
func (g *Graph) SearchWithTies(ctx context.Context, q []float64, k, ef int, filter func(model.Row) bool) ([]model.Candidate, error) {
	if k <= 0 {
		return nil, model.InvalidArgument("k must be positive, got %d", k)
	}
	query, err := g.prepare(q)
	if err != nil {
		return nil, err
	}
	if g.count == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ef <= 0 {
		ef = g.opts.EFSearch
	}
	ef = max(ef, k)

	ep := item{row: g.entry, dist: g.dist(query, g.nodes[g.entry].vec)}
	for layer := g.maxLevel; layer > 0; layer-- {
		ep = g.greedy(query, ep, layer)
	}

	stop := func() bool { return ctx.Err() != nil }
	found, interrupted := g.searchLayer(query, []item{ep}, ef, 0, filter, stop)
	if len(found) > k {
		n := k
		for n < len(found) && found[n].dist == found[k-1].dist {
			n++
		}
		found = found[:n]
	}

	res := make([]model.Candidate, len(found))
	for i, it := range found {
		res[i] = model.Candidate{Row: it.row, Distance: g.external(it.dist)}
	}
	if interrupted {
		return res, ctx.Err()
	}
	return res, nil
}

// Remove deletes row from the graph and reports whether it was present.
//
// Each former neighbor is re-linked from the removed node's neighborhood, so
// the work is bounded by O(M²) distance computations per layer.
func (g *Graph) Remove(row model.Row) bool {
	if !g.Contains(row) {
		return false
	}
	g.unlink(row)
	g.staleness++
	return true
}

func (g *Graph) unlink(row model.Row) {
	removed := g.nodes[row]
	g.nodes[row] = node{}
	g.count--

	for layer, nbs := range removed.links {
		for _, nb := range nbs {
			n := &g.nodes[nb]
			if !n.live || layer >= len(n.links) {
				continue
			}
			if !slices.Contains(n.links[layer], row) {
				continue
			}
			g.repair(nb, layer, nbs)
		}
	}

	if g.count == 0 {
		g.entry = 0
		g.maxLevel = -1
		return
	}
	if g.entry == row {
		g.electEntry(removed)
	}
}

// repair rebuilds nb's adjacency at layer after one of its neighbors was
// removed, drawing replacements from the removed node's neighborhood.
func (g *Graph) repair(nb model.Row, layer int, pool []model.Row) {
	n := &g.nodes[nb]
	seen := map[model.Row]struct{}{nb: {}}
	candidates := make([]item, 0, len(n.links[layer])+len(pool))
	add := func(r model.Row) {
		if _, ok := seen[r]; ok {
			return
		}
		seen[r] = struct{}{}
		if int(r) >= len(g.nodes) || !g.nodes[r].live || layer >= len(g.nodes[r].links) {
			return
		}
		candidates = append(candidates, item{row: r, dist: g.dist(n.vec, g.nodes[r].vec)})
	}
	for _, r := range n.links[layer] {
		add(r)
	}
	for _, r := range pool {
		add(r)
	}
	sortItems(candidates)
	n.links[layer] = g.selectNeighbors(candidates, g.maxConnsFor(layer))
}

// electEntry picks a new entry point after the old one was removed: the
// highest-level live neighbor of the removed node, or the highest-level live
// node overall when none is left in its neighborhood.
func (g *Graph) electEntry(removed node) {
	bestLevel := -1
	var best model.Row
	for layer := len(removed.links) - 1; layer >= 0 && bestLevel < 0; layer-- {
		for _, nb := range removed.links[layer] {
			if g.nodes[nb].live && g.nodes[nb].level() > bestLevel {
				best, bestLevel = nb, g.nodes[nb].level()
			}
		}
	}
	if bestLevel < 0 || bestLevel < removed.level() {
		for i := range g.nodes {
			if g.nodes[i].live && g.nodes[i].level() > bestLevel {
				best, bestLevel = model.Row(i), g.nodes[i].level()
			}
		}
	}
	g.entry = best
	g.maxLevel = bestLevel
}
