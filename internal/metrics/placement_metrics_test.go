package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestNewPlacementMetrics(t *testing.T) {
	m := NewPlacementMetricsWithRegisterer(prometheus.NewRegistry())

	if m == nil {
		t.Fatal("NewPlacementMetricsWithRegisterer should not return nil")
	}
	if m.placements == nil || m.placementDuration == nil || m.stepDuration == nil {
		t.Error("placement collectors should not be nil")
	}
	if m.stockUnavailable == nil || m.breakerState == nil || m.breakerTransitions == nil {
		t.Error("breaker collectors should not be nil")
	}
	if m.eventsPublished == nil || m.eventQueueDepth == nil {
		t.Error("event collectors should not be nil")
	}
}

func TestNewPlacementMetrics_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first := NewPlacementMetricsWithRegisterer(reg)
	second := NewPlacementMetricsWithRegisterer(reg)

	first.RecordEventPublish("sent")
	second.RecordEventPublish("sent")

	if got := testutil.ToFloat64(first.eventsPublished.WithLabelValues("sent")); got != 2 {
		t.Fatalf("expected shared counter value 2, got %v", got)
	}
}

func TestRecordPlacement(t *testing.T) {
	m := NewPlacementMetricsWithRegisterer(prometheus.NewRegistry())

	m.RecordPlacement("placed", 10*time.Millisecond)
	m.RecordPlacement("rejected", 5*time.Millisecond)
	m.RecordPlacement("placed", 7*time.Millisecond)

	if got := testutil.ToFloat64(m.placements.WithLabelValues("placed")); got != 2 {
		t.Errorf("expected 2 placed, got %v", got)
	}
	if got := testutil.ToFloat64(m.placements.WithLabelValues("rejected")); got != 1 {
		t.Errorf("expected 1 rejected, got %v", got)
	}

	var metric dto.Metric
	if err := m.placementDuration.Write(&metric); err != nil {
		t.Fatalf("failed to write histogram: %v", err)
	}
	if metric.Histogram.GetSampleCount() != 3 {
		t.Errorf("expected 3 duration samples, got %d", metric.Histogram.GetSampleCount())
	}
}

func TestRecordStepDuration(t *testing.T) {
	m := NewPlacementMetricsWithRegisterer(prometheus.NewRegistry())

	m.RecordStepDuration("check_stock", 100*time.Millisecond)
	m.RecordStepDuration("admit", 50*time.Millisecond)

	if got := testutil.CollectAndCount(m.stepDuration); got != 2 {
		t.Errorf("expected 2 step series, got %d", got)
	}
}

func TestBreakerMetrics(t *testing.T) {
	m := NewPlacementMetricsWithRegisterer(prometheus.NewRegistry())

	m.SetBreakerState(2)
	m.RecordBreakerTransition("closed", "open")
	m.RecordStockUnavailable("circuit_open")

	if got := testutil.ToFloat64(m.breakerState); got != 2 {
		t.Errorf("expected breaker state 2, got %v", got)
	}
	if got := testutil.ToFloat64(m.breakerTransitions.WithLabelValues("closed", "open")); got != 1 {
		t.Errorf("expected 1 transition, got %v", got)
	}
	if got := testutil.ToFloat64(m.stockUnavailable.WithLabelValues("circuit_open")); got != 1 {
		t.Errorf("expected 1 unavailable, got %v", got)
	}
}

func TestEventQueueDepth(t *testing.T) {
	m := NewPlacementMetricsWithRegisterer(prometheus.NewRegistry())

	m.SetEventQueueDepth(3)
	if got := testutil.ToFloat64(m.eventQueueDepth); got != 3 {
		t.Errorf("expected depth 3, got %v", got)
	}
	m.SetEventQueueDepth(0)
	if got := testutil.ToFloat64(m.eventQueueDepth); got != 0 {
		t.Errorf("expected depth 0, got %v", got)
	}
}

func TestNilMetricsAreNoop(t *testing.T) {
	var m *PlacementMetrics

	m.RecordPlacement("placed", time.Second)
	m.RecordStepDuration("decide", time.Second)
	m.RecordStockUnavailable("transport")
	m.SetBreakerState(1)
	m.RecordBreakerTransition("open", "half-open")
	m.RecordEventPublish("dropped")
	m.SetEventQueueDepth(1)
}
