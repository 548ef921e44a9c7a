// Package breaker защищает проверку остатков circuit breaker'ом и сводит все отказы
// к единственному исходу StockOutcomeUnavailable.
package breaker

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
	"github.com/vladislavdragonenkov/ordersvc/internal/metrics"
)

const (
	DefaultFailureThreshold = 5
	DefaultFailureRatio     = 0.5
	DefaultMinRequests      = 10
	DefaultWindow           = 30 * time.Second
	DefaultCooldown         = 5 * time.Second

	reasonEmptyRequest = "empty_request"
)

// StockChecker: операция, которую защищает breaker.
type StockChecker interface {
	Check(ctx context.Context, req domain.StockCheckRequest) (domain.StockCheckResult, error)
}

// Config задаёт пороги срабатывания breaker'а.
type Config struct {
	Name string
	// FailureThreshold: число подряд идущих отказов, после которого breaker открывается.
	FailureThreshold uint32
	// FailureRatio и MinRequests: доля отказов в окне и минимальный объём окна.
	FailureRatio float64
	MinRequests  uint32
	// Window: период сброса счётчиков в состоянии CLOSED.
	Window time.Duration
	// Cooldown: время в состоянии OPEN до пробного запроса.
	Cooldown time.Duration
}

// DefaultConfig возвращает пороги по умолчанию.
func DefaultConfig() Config {
	return Config{
		Name:             "inventory",
		FailureThreshold: DefaultFailureThreshold,
		FailureRatio:     DefaultFailureRatio,
		MinRequests:      DefaultMinRequests,
		Window:           DefaultWindow,
		Cooldown:         DefaultCooldown,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Name == "" {
		c.Name = def.Name
	}
	if c.FailureThreshold == 0 {
		c.FailureThreshold = def.FailureThreshold
	}
	if c.FailureRatio <= 0 || c.FailureRatio > 1 {
		c.FailureRatio = def.FailureRatio
	}
	if c.MinRequests == 0 {
		c.MinRequests = def.MinRequests
	}
	if c.Window <= 0 {
		c.Window = def.Window
	}
	if c.Cooldown <= 0 {
		c.Cooldown = def.Cooldown
	}
	return c
}

// StockBreaker: разделяемый между запросами breaker вокруг проверки остатков.
type StockBreaker struct {
	cb       *gobreaker.CircuitBreaker[domain.StockCheckResult]
	checker  StockChecker
	cooldown time.Duration
	logger   *log.Entry
	metrics  *metrics.PlacementMetrics
}

// New создаёт breaker в состоянии CLOSED.
func New(checker StockChecker, cfg Config, logger *log.Entry, m *metrics.PlacementMetrics) *StockBreaker {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = log.New().WithField("component", "inventory-breaker")
	}

	b := &StockBreaker{
		checker:  checker,
		cooldown: cfg.Cooldown,
		logger:   logger,
		metrics:  m,
	}

	b.cb = gobreaker.NewCircuitBreaker[domain.StockCheckResult](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Interval:    cfg.Window,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.ConsecutiveFailures >= cfg.FailureThreshold {
				return true
			}
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		OnStateChange: b.onStateChange,
	})
	m.SetBreakerState(stateValue(gobreaker.StateClosed))

	return b
}

// Check выполняет проверку остатков через breaker.
//
// Вызов к складу отвязан от отмены ctx и ограничен собственным таймаутом проверки:
// ушедший вызывающий получает Unavailable, а реальный исход учитывается breaker'ом ровно один раз.
func (b *StockBreaker) Check(ctx context.Context, req domain.StockCheckRequest) domain.StockOutcome {
	if len(req.Items) == 0 {
		return b.unavailable(reasonEmptyRequest)
	}
	if ctx.Err() != nil {
		return b.unavailable(domain.UnavailableReasonCanceled)
	}

	type callResult struct {
		result domain.StockCheckResult
		err    error
	}
	done := make(chan callResult, 1)
	callCtx := context.WithoutCancel(ctx)

	go func() {
		result, err := b.cb.Execute(func() (domain.StockCheckResult, error) {
			return b.checker.Check(callCtx, req)
		})
		done <- callResult{result: result, err: err}
	}()

	select {
	case <-ctx.Done():
		b.logger.WithField("items", len(req.Items)).Info("caller left during stock check; outcome will still be recorded")
		return b.unavailable(domain.UnavailableReasonCanceled)
	case res := <-done:
		switch {
		case res.err == nil:
			return domain.StockAvailable(res.result)
		case errors.Is(res.err, gobreaker.ErrOpenState):
			return b.unavailable(domain.UnavailableReasonCircuitOpen)
		case errors.Is(res.err, gobreaker.ErrTooManyRequests):
			return b.unavailable(domain.UnavailableReasonTrialBusy)
		default:
			return b.unavailable(domain.UnavailableReasonTransport)
		}
	}
}

// State возвращает текущее состояние: closed, half-open или open.
func (b *StockBreaker) State() string {
	return b.cb.State().String()
}

// Closed сообщает, пропускает ли breaker запросы в обычном режиме.
func (b *StockBreaker) Closed() bool {
	return b.cb.State() == gobreaker.StateClosed
}

// Cooldown возвращает время до пробного запроса после открытия.
func (b *StockBreaker) Cooldown() time.Duration {
	return b.cooldown
}

func (b *StockBreaker) unavailable(reason string) domain.StockOutcome {
	b.metrics.RecordStockUnavailable(reason)
	return domain.StockUnavailable(reason)
}

func (b *StockBreaker) onStateChange(name string, from, to gobreaker.State) {
	entry := b.logger.WithFields(log.Fields{
		"breaker": name,
		"from":    from.String(),
		"to":      to.String(),
	})
	if to == gobreaker.StateOpen {
		entry.Warn("inventory breaker opened")
	} else {
		entry.Info("inventory breaker state changed")
	}

	b.metrics.SetBreakerState(stateValue(to))
	b.metrics.RecordBreakerTransition(from.String(), to.String())
}

func stateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
