// Package prom exports engine metrics to Prometheus.
//
//	reg := prometheus.NewRegistry()
//	e, err := vecsim.New(vecsim.WithMetricsCollector(prom.New(reg)))
package prom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hupe1980/vecsim"
)

const namespace = "vecsim"

// Collector implements vecsim.MetricsCollector with Prometheus collectors
// registered on a caller-supplied registerer.
type Collector struct {
	operations       *prometheus.CounterVec
	operationSeconds *prometheus.HistogramVec
	searchK          prometheus.Histogram
	flushMutations   prometheus.Counter
	rebuilds         *prometheus.CounterVec
	rebuildSeconds   *prometheus.HistogramVec
	rebuildNodes     *prometheus.GaugeVec
}

var _ vecsim.MetricsCollector = (*Collector)(nil)

// New registers the collectors on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Total number of engine operations",
			},
			[]string{"operation", "status"},
		),
		operationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of engine operations",
				Buckets:   []float64{0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"operation"},
		),
		searchK: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_k",
				Help:      "Requested number of neighbors per search",
				Buckets:   []float64{1, 5, 10, 20, 50, 100, 500},
			},
		),
		flushMutations: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "flushed_mutations_total",
				Help:      "Total number of pending mutations applied to the index",
			},
		),
		rebuilds: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "index_rebuilds_total",
				Help:      "Total number of full index rebuilds",
			},
			[]string{"metric", "status"},
		),
		rebuildSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "index_rebuild_duration_seconds",
				Help:      "Duration of full index rebuilds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"metric"},
		),
		rebuildNodes: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "index_nodes",
				Help:      "Number of nodes in the last rebuilt index",
			},
			[]string{"metric"},
		),
	}
}

// RecordPut implements vecsim.MetricsCollector.
func (c *Collector) RecordPut(d time.Duration, err error) {
	c.observe("put", d, err)
}

// RecordDelete implements vecsim.MetricsCollector.
func (c *Collector) RecordDelete(d time.Duration) {
	c.observe("delete", d, nil)
}

// RecordSearch implements vecsim.MetricsCollector.
func (c *Collector) RecordSearch(strategy string, k int, d time.Duration, err error) {
	op := "search"
	if strategy != "" {
		op = "search_" + strategy
	}
	c.observe(op, d, err)
	c.searchK.Observe(float64(k))
}

// RecordFlush implements vecsim.MetricsCollector.
func (c *Collector) RecordFlush(mutations int, d time.Duration) {
	c.observe("flush", d, nil)
	c.flushMutations.Add(float64(mutations))
}

// RecordRebuild implements vecsim.MetricsCollector.
func (c *Collector) RecordRebuild(metric string, nodes int, d time.Duration, err error) {
	c.rebuilds.WithLabelValues(metric, status(err)).Inc()
	c.rebuildSeconds.WithLabelValues(metric).Observe(d.Seconds())
	if err == nil {
		c.rebuildNodes.WithLabelValues(metric).Set(float64(nodes))
	}
}

func (c *Collector) observe(op string, d time.Duration, err error) {
	c.operations.WithLabelValues(op, status(err)).Inc()
	c.operationSeconds.WithLabelValues(op).Observe(d.Seconds())
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
