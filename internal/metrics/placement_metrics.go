package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PlacementMetrics содержит метрики размещения заказов, breaker'а и публикации событий.
// Все методы безопасно вызывать на nil.
type PlacementMetrics struct {
	// Итоги размещения
	placements        *prometheus.CounterVec
	placementDuration prometheus.Histogram
	stepDuration      *prometheus.HistogramVec

	// Склад и breaker
	stockUnavailable   *prometheus.CounterVec
	breakerState       prometheus.Gauge
	breakerTransitions *prometheus.CounterVec

	// Публикация событий
	eventsPublished *prometheus.CounterVec
	eventQueueDepth prometheus.Gauge
}

// NewPlacementMetrics создаёт метрики в глобальном registry.
func NewPlacementMetrics() *PlacementMetrics {
	return NewPlacementMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewPlacementMetricsWithRegisterer создаёт метрики в переданном registry (используется в тестах).
func NewPlacementMetricsWithRegisterer(registerer prometheus.Registerer) *PlacementMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &PlacementMetrics{
		placements: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orders_placements_total",
			Help: "Total number of placement requests grouped by outcome",
		}, []string{"outcome"}),
		placementDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "orders_placement_duration_seconds",
			Help:    "Duration of placement requests in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		stepDuration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "orders_placement_step_duration_seconds",
			Help:    "Duration of individual placement steps in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}, []string{"step"}),
		stockUnavailable: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orders_stock_check_unavailable_total",
			Help: "Total number of stock checks resolved to the unavailable fallback grouped by reason",
		}, []string{"reason"}),
		breakerState: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "orders_inventory_breaker_state",
			Help: "Inventory circuit breaker state: 0 closed, 1 half-open, 2 open",
		}),
		breakerTransitions: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orders_inventory_breaker_transitions_total",
			Help: "Total number of inventory circuit breaker state transitions",
		}, []string{"from", "to"}),
		eventsPublished: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orders_events_published_total",
			Help: "Total number of order-placed events grouped by result",
		}, []string{"result"}),
		eventQueueDepth: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "orders_event_queue_depth",
			Help: "Current number of order-placed events waiting in the in-process queue",
		}),
	}
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}

// RecordPlacement увеличивает счётчик размещений с указанным итогом и пишет длительность.
func (m *PlacementMetrics) RecordPlacement(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.placements.WithLabelValues(outcome).Inc()
	m.placementDuration.Observe(duration.Seconds())
}

// RecordStepDuration записывает время выполнения шага оркестратора.
func (m *PlacementMetrics) RecordStepDuration(step string, duration time.Duration) {
	if m == nil {
		return
	}
	m.stepDuration.WithLabelValues(step).Observe(duration.Seconds())
}

// RecordStockUnavailable увеличивает счётчик отказов склада по причине.
func (m *PlacementMetrics) RecordStockUnavailable(reason string) {
	if m == nil {
		return
	}
	m.stockUnavailable.WithLabelValues(reason).Inc()
}

// SetBreakerState выставляет текущее состояние breaker'а.
func (m *PlacementMetrics) SetBreakerState(state float64) {
	if m == nil {
		return
	}
	m.breakerState.Set(state)
}

// RecordBreakerTransition увеличивает счётчик переходов breaker'а.
func (m *PlacementMetrics) RecordBreakerTransition(from, to string) {
	if m == nil {
		return
	}
	m.breakerTransitions.WithLabelValues(from, to).Inc()
}

// RecordEventPublish увеличивает счётчик публикаций событий: sent, failed, dropped.
func (m *PlacementMetrics) RecordEventPublish(result string) {
	if m == nil {
		return
	}
	m.eventsPublished.WithLabelValues(result).Inc()
}

// SetEventQueueDepth выставляет текущую глубину очереди событий.
func (m *PlacementMetrics) SetEventQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.eventQueueDepth.Set(float64(depth))
}
