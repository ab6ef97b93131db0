package catalog

import (
	"context"
	"fmt"
	"strconv"

	"github.com/hupe1980/vecsim"
	"github.com/hupe1980/vecsim/distance"
	"github.com/hupe1980/vecsim/embed"
	"github.com/hupe1980/vecsim/metadata"
)

// DefaultMinSimilarity is the cosine similarity below which recommendations
// are dropped.
const DefaultMinSimilarity = 0.7

// Recommendation is a ranked product suggestion.
type Recommendation struct {
	ID         string
	Similarity float64
	Metadata   map[string]string
}

// Name returns the product name stored with the recommendation.
func (r Recommendation) Name() string { return r.Metadata[MetaName] }

// Stock returns the stored stock quantity, or 0 when unknown.
func (r Recommendation) Stock() int64 {
	n, _ := strconv.ParseInt(r.Metadata[MetaStock], 10, 64)
	return n
}

// Price returns the stored price, or 0 when unknown.
func (r Recommendation) Price() float64 {
	f, _ := strconv.ParseFloat(r.Metadata[MetaPrice], 64)
	return f
}

// RecommenderOptions configures a Recommender.
type RecommenderOptions struct {
	// MinSimilarity drops results with a lower cosine similarity.
	MinSimilarity float64

	// ExcludeOutOfStock restricts results to products with stock.
	ExcludeOutOfStock bool
}

// Recommender answers product similarity queries under the cosine metric.
// Errors from the engine or the provider are returned as is.
type Recommender struct {
	index    Index
	provider embed.Provider
	opts     RecommenderOptions
}

// NewRecommender creates a Recommender. provider is only needed by SearchText
// and may be nil otherwise.
func NewRecommender(index Index, provider embed.Provider, optFns ...func(o *RecommenderOptions)) *Recommender {
	opts := RecommenderOptions{
		MinSimilarity:     DefaultMinSimilarity,
		ExcludeOutOfStock: true,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Recommender{index: index, provider: provider, opts: opts}
}

// SimilarProducts returns up to k products most similar to productID,
// excluding productID itself.
func (r *Recommender) SimilarProducts(ctx context.Context, productID string, k int) ([]Recommendation, error) {
	res, err := r.index.SimilarTo(ctx, productID, k, r.queryOptions(r.opts.MinSimilarity)...)
	if err != nil {
		return nil, err
	}
	return toRecommendations(res), nil
}

// SearchText embeds text and returns up to k matching products.
func (r *Recommender) SearchText(ctx context.Context, text string, k int) ([]Recommendation, error) {
	if r.provider == nil {
		return nil, fmt.Errorf("catalog: search text: no embedding provider: %w", vecsim.ErrInvalidArgument)
	}
	vec, err := r.provider.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	res, err := r.index.SimilarToVector(ctx, vec, k, r.queryOptions(r.opts.MinSimilarity)...)
	if err != nil {
		return nil, err
	}
	return toRecommendations(res), nil
}

// SubstitutionReason selects the substitution rule.
type SubstitutionReason string

const (
	// ReasonOutOfStock prefers well stocked products with similarity above 0.7.
	ReasonOutOfStock SubstitutionReason = "out_of_stock"

	// ReasonPrice prefers products at most 20% more expensive with similarity
	// above 0.6.
	ReasonPrice SubstitutionReason = "price"
)

const (
	substitutionCandidates = 10
	maxSubstitutions       = 5
	substitutionMinStock   = 10
	priceTolerance         = 1.2
)

// Substitutions proposes up to five replacements for productID among its ten
// nearest products. For ReasonPrice on a product without a stored price, the
// nearest products are returned as SimilarProducts would.
func (r *Recommender) Substitutions(ctx context.Context, productID string, reason SubstitutionReason) ([]Recommendation, error) {
	var keep func(Recommendation) bool
	minSim := 0.0

	switch reason {
	case ReasonOutOfStock:
		minSim = 0.7
		keep = func(rec Recommendation) bool {
			return rec.Similarity > minSim && rec.Stock() > substitutionMinStock
		}
	case ReasonPrice:
		orig, ok := r.index.Get(productID)
		if !ok {
			return nil, &vecsim.NotFoundError{ID: productID}
		}
		price, _ := strconv.ParseFloat(orig.Metadata[MetaPrice], 64)
		if price > 0 {
			minSim = 0.6
			keep = func(rec Recommendation) bool {
				return rec.Similarity > minSim && rec.Price() <= price*priceTolerance
			}
		} else {
			minSim = r.opts.MinSimilarity
			keep = func(Recommendation) bool { return true }
		}
	default:
		return nil, fmt.Errorf("catalog: unknown substitution reason %q: %w", reason, vecsim.ErrInvalidArgument)
	}

	res, err := r.index.SimilarTo(ctx, productID, substitutionCandidates, r.queryOptions(minSim)...)
	if err != nil {
		return nil, err
	}

	out := make([]Recommendation, 0, maxSubstitutions)
	for _, rec := range toRecommendations(res) {
		if keep(rec) {
			out = append(out, rec)
			if len(out) == maxSubstitutions {
				break
			}
		}
	}
	return out, nil
}

func (r *Recommender) queryOptions(minSimilarity float64) []vecsim.QueryOption {
	opts := []vecsim.QueryOption{
		vecsim.WithQueryMetric(distance.MetricCosine),
		vecsim.WithMaxDistance(1 - minSimilarity),
	}
	if r.opts.ExcludeOutOfStock {
		opts = append(opts, vecsim.WithFilter(metadata.And(metadata.Eq(MetaInStock, "true"))))
	}
	return opts
}

func toRecommendations(res []vecsim.Neighbor) []Recommendation {
	out := make([]Recommendation, len(res))
	for i, n := range res {
		out[i] = Recommendation{ID: n.ID, Similarity: 1 - n.Distance, Metadata: n.Metadata}
	}
	return out
}
