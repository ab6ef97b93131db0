package vecsim

import (
	"log/slog"

	"github.com/hupe1980/vecsim/codec"
	"github.com/hupe1980/vecsim/distance"
	"github.com/hupe1980/vecsim/hnsw"
	"github.com/hupe1980/vecsim/snapshot"
)

// DefaultBruteForceThreshold is the record count below which queries scan
// exhaustively instead of walking the graph.
const DefaultBruteForceThreshold = 1000

// MinAdaptiveStaleness is the floor of the adaptive staleness threshold.
const MinAdaptiveStaleness = 256

type options struct {
	dimension           int
	metric              distance.Metric
	hnsw                hnsw.Options
	stalenessThreshold  int
	bruteForceThreshold int
	seed                *int64
	deferredIndexing    bool
	codec               codec.Codec
	compression         snapshot.Compression
	metricsCollector    MetricsCollector
	logger              *Logger
}

// Option configures an Engine.
type Option func(*options)

// WithDimension fixes the vector dimension up front. Without it the first
// Put establishes the dimension.
func WithDimension(dim int) Option {
	return func(o *options) {
		o.dimension = dim
	}
}

// WithMetric sets the default metric used by queries that do not choose one.
// The graph for the default metric is kept up to date eagerly.
func WithMetric(m distance.Metric) Option {
	return func(o *options) {
		o.metric = m
	}
}

// WithHNSW configures the graph parameters. Zero values keep the defaults.
//
// Example:
//
//	engine, _ := vecsim.New(vecsim.WithHNSW(32, 400, 128))
func WithHNSW(m, efConstruction, efSearch int) Option {
	return func(o *options) {
		if m > 0 {
			o.hnsw.M = m
		}
		if efConstruction > 0 {
			o.hnsw.EFConstruction = efConstruction
		}
		if efSearch > 0 {
			o.hnsw.EFSearch = efSearch
		}
	}
}

// WithStalenessThreshold sets the number of incremental graph mutations after
// which the next query rebuilds the graph from scratch.
// Zero selects the adaptive threshold max(256, N).
func WithStalenessThreshold(t int) Option {
	return func(o *options) {
		o.stalenessThreshold = t
	}
}

// WithBruteForceThreshold sets the record count below which queries are
// answered by an exact scan. Filtered queries whose candidate set is smaller
// than the threshold are scanned as well.
func WithBruteForceThreshold(n int) Option {
	return func(o *options) {
		o.bruteForceThreshold = n
	}
}

// WithSeed makes graph construction deterministic.
func WithSeed(seed int64) Option {
	return func(o *options) {
		o.seed = &seed
	}
}

// WithDeferredIndexing keeps mutations pending until Flush or the next query
// instead of applying them to the graph on every Put and Delete.
// Useful for bulk loads.
func WithDeferredIndexing() Option {
	return func(o *options) {
		o.deferredIndexing = true
	}
}

// WithCodec configures the codec used for metadata sections of exports.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithCompression configures the block compression of exports.
func WithCompression(c snapshot.Compression) Option {
	return func(o *options) {
		o.compression = c
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &vecsim.BasicMetricsCollector{}
//	engine, _ := vecsim.New(vecsim.WithMetricsCollector(metrics))
//	// ... use engine ...
//	stats := metrics.GetStats()
//	fmt.Printf("Searches: %d, Avg latency: %dns\n", stats.SearchCount, stats.SearchAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for operations.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := vecsim.NewJSONLogger(slog.LevelInfo)
//	engine, _ := vecsim.New(vecsim.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metric:              distance.MetricCosine,
		hnsw:                hnsw.DefaultOptions,
		bruteForceThreshold: DefaultBruteForceThreshold,
		codec:               codec.Default,
		compression:         snapshot.CompressionZSTD,
		metricsCollector:    NoopMetricsCollector{},
		logger:              NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

// QueryOption configures a single query.
type QueryOption func(*queryOptions)

type queryOptions struct {
	metric      *distance.Metric
	filter      *FilterSet
	maxDistance *float64
	ef          int
	force       string
	includeSelf bool
}

// WithQueryMetric overrides the engine's default metric for one query.
// The first query with a metric builds that metric's graph.
func WithQueryMetric(m distance.Metric) QueryOption {
	return func(o *queryOptions) {
		o.metric = &m
	}
}

// WithFilter restricts results to records whose metadata satisfies fs.
func WithFilter(fs *FilterSet) QueryOption {
	return func(o *queryOptions) {
		o.filter = fs
	}
}

// WithMaxDistance drops results farther than d.
func WithMaxDistance(d float64) QueryOption {
	return func(o *queryOptions) {
		o.maxDistance = &d
	}
}

// WithEF sets the graph candidate list size for one query.
func WithEF(ef int) QueryOption {
	return func(o *queryOptions) {
		o.ef = ef
	}
}

// ForceIndex answers the query from the graph regardless of store size.
func ForceIndex() QueryOption {
	return func(o *queryOptions) {
		o.force = StrategyIndex
	}
}

// ForceBruteForce answers the query with an exact scan.
func ForceBruteForce() QueryOption {
	return func(o *queryOptions) {
		o.force = StrategyBruteForce
	}
}

// IncludeSelf keeps the query record in SimilarTo results.
func IncludeSelf() QueryOption {
	return func(o *queryOptions) {
		o.includeSelf = true
	}
}

func applyQueryOptions(optFns []QueryOption) queryOptions {
	var o queryOptions
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
