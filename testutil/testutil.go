package testutil

import (
	"cmp"
	"math"
	"math/rand"
	"slices"
	"sync"
)

// RNG is a seeded, concurrency-safe source of test vectors.
type RNG struct {
	mu   sync.Mutex
	rand *rand.Rand
}

// NewRNG creates an RNG. Equal seeds yield equal sequences.
func NewRNG(seed int64) *RNG {
	return &RNG{rand: rand.New(rand.NewSource(seed))} //nolint:gosec // test data
}

// Intn returns a number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float64 returns a number in [0,1).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// UniformVectors returns num vectors with components in [0,1).
func (r *RNG) UniformVectors(num, dim int) [][]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([][]float64, num)
	for i := range out {
		v := make([]float64, dim)
		for j := range v {
			v[j] = r.rand.Float64()
		}
		out[i] = v
	}
	return out
}

// UnitVectors returns num vectors drawn uniformly from the unit sphere.
func (r *RNG) UnitVectors(num, dim int) [][]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([][]float64, num)
	for i := range out {
		out[i] = r.unitLocked(dim)
	}
	return out
}

func (r *RNG) unitLocked(dim int) []float64 {
	v := make([]float64, dim)
	var sum float64
	for j := range v {
		v[j] = r.rand.NormFloat64()
		sum += v[j] * v[j]
	}
	if sum == 0 {
		v[0], sum = 1, 1
	}
	inv := 1 / math.Sqrt(sum)
	for j := range v {
		v[j] *= inv
	}
	return v
}

// ClusteredVectors returns num vectors scattered with standard deviation
// spread around clusters random unit centroids. Vector i belongs to cluster
// i%clusters.
func (r *RNG) ClusteredVectors(num, dim, clusters int, spread float64) [][]float64 {
	centroids := r.UnitVectors(clusters, dim)

	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([][]float64, num)
	for i := range out {
		c := centroids[i%clusters]
		v := make([]float64, dim)
		for j := range v {
			v[j] = c[j] + r.rand.NormFloat64()*spread
		}
		out[i] = v
	}
	return out
}

// Perturb returns a copy of v with every component shifted by a value in
// [-amplitude/2, amplitude/2).
func (r *RNG) Perturb(v []float64, amplitude float64) []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := slices.Clone(v)
	for j := range out {
		out[j] += (r.rand.Float64() - 0.5) * amplitude
	}
	return out
}

// ExactTopK returns the dataset positions of the k entries nearest to query,
// nearest first with ties broken by position.
func ExactTopK(query []float64, dataset [][]float64, k int, dist func(a, b []float64) float64) []int {
	type hit struct {
		pos int
		d   float64
	}
	hits := make([]hit, len(dataset))
	for i, v := range dataset {
		hits[i] = hit{pos: i, d: dist(query, v)}
	}
	slices.SortFunc(hits, func(a, b hit) int {
		if c := cmp.Compare(a.d, b.d); c != 0 {
			return c
		}
		return cmp.Compare(a.pos, b.pos)
	})

	out := make([]int, min(k, len(hits)))
	for i := range out {
		out[i] = hits[i].pos
	}
	return out
}

// Recall is the share of truth found in approx, compared over the shorter of
// both. Two empty lists have recall 1.
func Recall[T comparable](truth, approx []T) float64 {
	k := min(len(truth), len(approx))
	if k == 0 {
		if len(truth) == len(approx) {
			return 1
		}
		return 0
	}

	want := make(map[T]struct{}, k)
	for _, t := range truth[:k] {
		want[t] = struct{}{}
	}
	hits := 0
	for _, a := range approx[:k] {
		if _, ok := want[a]; ok {
			hits++
		}
	}
	return float64(hits) / float64(k)
}
