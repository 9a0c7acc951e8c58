package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewWithRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)

	if m == nil {
		t.Fatal("expected metrics instance, got nil")
	}
	if m.QueueBatchesTotal == nil {
		t.Error("QueueBatchesTotal should not be nil")
	}
	if m.SearchDuration == nil {
		t.Error("SearchDuration should not be nil")
	}
}

func TestMetricsRecordDoesNotPanic(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWithRegistry(reg)

	m.QueueBatchesTotal.Inc()
	m.QueueItemsProcessed.WithLabelValues("completed").Inc()
	m.SearchRequestsTotal.WithLabelValues("hybrid").Inc()
	m.ObservationsTotal.WithLabelValues("created").Inc()
	m.QueueDepth.Set(4)
	m.RerankHitRate.Set(0.5)
}
