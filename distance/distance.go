package distance

import (
	"fmt"
	"math"
	"strings"

	"github.com/hupe1980/vecsim/model"
)

// Dot calculates the dot product of two vectors.
// Assumes vectors are the same length (caller's responsibility).
func Dot(a, b []float64) float64 {
	var sum float64
	i := 0
	for ; i+4 <= len(a); i += 4 {
		sum += a[i]*b[i] + a[i+1]*b[i+1] + a[i+2]*b[i+2] + a[i+3]*b[i+3]
	}
	for ; i < len(a); i++ {
		sum += a[i] * b[i]
	}
	return sum
}

// SquaredL2 calculates the squared L2 (Euclidean) distance between two vectors.
// Assumes vectors are the same length (caller's responsibility).
func SquaredL2(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// Norm returns the L2 magnitude of v.
func Norm(v []float64) float64 {
	return math.Sqrt(Dot(v, v))
}

// Cosine returns 1 - (a·b)/(|a||b|).
//
// It fails with model.ErrDimensionMismatch when the lengths differ and with
// model.ErrDegenerateVector when either vector has zero magnitude. The result
// is clamped to [0, 2] to absorb rounding.
func Cosine(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, model.NewDimensionMismatch(len(a), len(b))
	}
	na, nb := Norm(a), Norm(b)
	if na == 0 || nb == 0 {
		return 0, model.ErrDegenerateVector
	}
	return clampCosine(1 - Dot(a, b)/(na*nb)), nil
}

// Euclidean returns sqrt(Σ(a_i-b_i)²).
func Euclidean(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, model.NewDimensionMismatch(len(a), len(b))
	}
	return math.Sqrt(SquaredL2(a, b)), nil
}

// CosineNormalized returns the cosine distance of two vectors that are already
// L2-normalized. No validation is performed.
func CosineNormalized(a, b []float64) float64 {
	return clampCosine(1 - Dot(a, b))
}

func clampCosine(d float64) float64 {
	if d < 0 {
		return 0
	}
	if d > 2 {
		return 2
	}
	return d
}

// NormalizeCopy returns an L2-normalized copy of v.
// Returns model.ErrDegenerateVector if v has zero magnitude.
func NormalizeCopy(v []float64) ([]float64, error) {
	n := Norm(v)
	if n == 0 {
		return nil, model.ErrDegenerateVector
	}
	out := make([]float64, len(v))
	inv := 1 / n
	for i, x := range v {
		out[i] = x * inv
	}
	return out, nil
}

// Metric represents the distance metric used for vector comparison.
type Metric int

const (
	MetricCosine Metric = iota
	MetricEuclidean
)

func (m Metric) String() string {
	switch m {
	case MetricCosine:
		return "cosine"
	case MetricEuclidean:
		return "euclidean"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// Valid reports whether m is a supported metric.
func (m Metric) Valid() bool {
	return m == MetricCosine || m == MetricEuclidean
}

// ParseMetric parses a metric name. Matching is case-insensitive and accepts
// the warehouse spellings ("COSINE", "EUCLIDEAN") as well as "l2".
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cosine", "":
		return MetricCosine, nil
	case "euclidean", "l2":
		return MetricEuclidean, nil
	default:
		return 0, model.InvalidArgument("unknown metric %q", s)
	}
}

// Func is a validated distance function.
type Func func(a, b []float64) (float64, error)

// Provider returns the distance function for the given metric.
func Provider(m Metric) (Func, error) {
	switch m {
	case MetricCosine:
		return Cosine, nil
	case MetricEuclidean:
		return Euclidean, nil
	default:
		return nil, model.InvalidArgument("unsupported metric %v", m)
	}
}
