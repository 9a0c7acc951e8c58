// Package metrics exposes the runtime counters and histograms the
// dashboard reads: queue throughput, batch latency, search latency, and
// reranker hit-rate.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds every collector this project registers.
type Metrics struct {
	QueueBatchesTotal    prometheus.Counter
	QueueItemsProcessed  *prometheus.CounterVec
	QueueBatchDuration    prometheus.Histogram
	QueueDepth           prometheus.Gauge

	SearchRequestsTotal  *prometheus.CounterVec
	SearchDuration       *prometheus.HistogramVec
	RerankHitRate        prometheus.Gauge

	ObservationsTotal    *prometheus.CounterVec
}

// New creates a Metrics instance registered against the default registerer.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a Metrics instance registered against a custom
// registerer, used by tests to avoid colliding with the package-level
// default registry across test runs.
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		QueueBatchesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "openmem_queue_batches_total",
			Help: "Total number of queue batches processed.",
		}),
		QueueItemsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "openmem_queue_items_total",
			Help: "Total number of pending items processed, by outcome.",
		}, []string{"outcome"}),
		QueueBatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "openmem_queue_batch_duration_seconds",
			Help:    "Duration of a queue batch run.",
			Buckets: prometheus.DefBuckets,
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "openmem_queue_depth",
			Help: "Current count of pending+processing rows.",
		}),
		SearchRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "openmem_search_requests_total",
			Help: "Total number of search requests, by strategy.",
		}, []string{"strategy"}),
		SearchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "openmem_search_duration_seconds",
			Help:    "Search request duration, by strategy.",
			Buckets: prometheus.DefBuckets,
		}, []string{"strategy"}),
		RerankHitRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "openmem_rerank_hit_rate",
			Help: "Fraction of reranked results that changed position in the last rerank.",
		}),
		ObservationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "openmem_observations_total",
			Help: "Total number of observations, by lifecycle event.",
		}, []string{"event"}),
	}

	reg.MustRegister(
		m.QueueBatchesTotal, m.QueueItemsProcessed, m.QueueBatchDuration, m.QueueDepth,
		m.SearchRequestsTotal, m.SearchDuration, m.RerankHitRate, m.ObservationsTotal,
	)
	return m
}
