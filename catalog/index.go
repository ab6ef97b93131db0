package catalog

import (
	"context"

	"github.com/hupe1980/vecsim"
)

// Index is the subset of *vecsim.Engine the catalog needs.
type Index interface {
	Put(ctx context.Context, id string, vec []float64, md map[string]string) error
	Get(id string) (vecsim.Record, bool)
	SimilarTo(ctx context.Context, id string, k int, optFns ...vecsim.QueryOption) ([]vecsim.Neighbor, error)
	SimilarToVector(ctx context.Context, vec []float64, k int, optFns ...vecsim.QueryOption) ([]vecsim.Neighbor, error)
}

var _ Index = (*vecsim.Engine)(nil)
