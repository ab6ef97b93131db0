package vecsim

import (
	"maps"
	"slices"

	"github.com/hupe1980/vecsim/distance"
	"github.com/hupe1980/vecsim/hnsw"
)

// IndexStats describes the graph kept for one metric.
type IndexStats struct {
	Metric    distance.Metric
	Nodes     int
	Staleness int
	Threshold int
	Graph     hnsw.Stats
}

// Stats is a point-in-time summary of an engine.
type Stats struct {
	Records      int
	Dimension    int
	Metric       distance.Metric
	Pending      int
	Rebuilds     int
	MetadataKeys int
	Indexes      []IndexStats
}

// Stats returns a summary of the engine's store and graphs.
// Indexes are ordered by metric.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s := Stats{
		Records:      e.store.Len(),
		Dimension:    e.store.Dimension(),
		Metric:       e.opts.metric,
		Pending:      e.store.Pending(),
		Rebuilds:     e.rebuilds,
		MetadataKeys: e.store.Metadata().Keys(),
	}

	threshold := e.stalenessThreshold()
	for _, m := range slices.Sorted(maps.Keys(e.graphs)) {
		g := e.graphs[m]
		s.Indexes = append(s.Indexes, IndexStats{
			Metric:    m,
			Nodes:     g.Len(),
			Staleness: g.Staleness(),
			Threshold: threshold,
			Graph:     g.Stats(),
		})
	}
	return s
}
