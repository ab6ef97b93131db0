package vecsim

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems; the
// metrics/prom package provides a Prometheus implementation.
type MetricsCollector interface {
	// RecordPut is called after each insert or update.
	RecordPut(duration time.Duration, err error)

	// RecordDelete is called after each delete.
	RecordDelete(duration time.Duration)

	// RecordSearch is called after each search. strategy is "index" or
	// "brute_force".
	RecordSearch(strategy string, k int, duration time.Duration, err error)

	// RecordFlush is called after pending mutations were applied to the index.
	RecordFlush(mutations int, duration time.Duration)

	// RecordRebuild is called after each full index rebuild attempt.
	RecordRebuild(metric string, nodes int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordPut(time.Duration, error)                  {}
func (NoopMetricsCollector) RecordDelete(time.Duration)                      {}
func (NoopMetricsCollector) RecordSearch(string, int, time.Duration, error)  {}
func (NoopMetricsCollector) RecordFlush(int, time.Duration)                  {}
func (NoopMetricsCollector) RecordRebuild(string, int, time.Duration, error) {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	PutCount          atomic.Int64
	PutErrors         atomic.Int64
	PutTotalNanos     atomic.Int64
	DeleteCount       atomic.Int64
	SearchCount       atomic.Int64
	SearchErrors      atomic.Int64
	SearchTotalNanos  atomic.Int64
	IndexSearches     atomic.Int64
	BruteSearches     atomic.Int64
	FlushCount        atomic.Int64
	FlushedMutations  atomic.Int64
	RebuildCount      atomic.Int64
	RebuildErrors     atomic.Int64
	RebuildTotalNanos atomic.Int64
}

// RecordPut implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPut(duration time.Duration, err error) {
	b.PutCount.Add(1)
	b.PutTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.PutErrors.Add(1)
	}
}

// RecordDelete implements MetricsCollector.
func (b *BasicMetricsCollector) RecordDelete(time.Duration) {
	b.DeleteCount.Add(1)
}

// RecordSearch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSearch(strategy string, _ int, duration time.Duration, err error) {
	b.SearchCount.Add(1)
	b.SearchTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SearchErrors.Add(1)
	}
	switch strategy {
	case StrategyIndex:
		b.IndexSearches.Add(1)
	case StrategyBruteForce:
		b.BruteSearches.Add(1)
	}
}

// RecordFlush implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFlush(mutations int, _ time.Duration) {
	b.FlushCount.Add(1)
	b.FlushedMutations.Add(int64(mutations))
}

// RecordRebuild implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRebuild(_ string, _ int, duration time.Duration, err error) {
	b.RebuildCount.Add(1)
	b.RebuildTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.RebuildErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		PutCount:         b.PutCount.Load(),
		PutErrors:        b.PutErrors.Load(),
		PutAvgNanos:      avg(b.PutTotalNanos.Load(), b.PutCount.Load()),
		DeleteCount:      b.DeleteCount.Load(),
		SearchCount:      b.SearchCount.Load(),
		SearchErrors:     b.SearchErrors.Load(),
		SearchAvgNanos:   avg(b.SearchTotalNanos.Load(), b.SearchCount.Load()),
		IndexSearches:    b.IndexSearches.Load(),
		BruteSearches:    b.BruteSearches.Load(),
		FlushCount:       b.FlushCount.Load(),
		FlushedMutations: b.FlushedMutations.Load(),
		RebuildCount:     b.RebuildCount.Load(),
		RebuildErrors:    b.RebuildErrors.Load(),
		RebuildAvgNanos:  avg(b.RebuildTotalNanos.Load(), b.RebuildCount.Load()),
	}
}

func avg(total, count int64) int64 {
	if count == 0 {
		return 0
	}
	return total / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	PutCount         int64
	PutErrors        int64
	PutAvgNanos      int64
	DeleteCount      int64
	SearchCount      int64
	SearchErrors     int64
	SearchAvgNanos   int64
	IndexSearches    int64
	BruteSearches    int64
	FlushCount       int64
	FlushedMutations int64
	RebuildCount     int64
	RebuildErrors    int64
	RebuildAvgNanos  int64
}
