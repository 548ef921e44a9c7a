// Package placement реализует размещение заказа:
// проверка остатков через breaker, решение о допуске, сохранение и публикация факта.
package placement

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
	"github.com/vladislavdragonenkov/ordersvc/internal/metrics"
)

const tracerName = "github.com/vladislavdragonenkov/ordersvc/internal/service/placement"

// State: состояние обработки одного запроса. Состояния не повторяются.
type State string

const (
	StateCheckingStock State = "CHECKING_STOCK"
	StateDeciding      State = "DECIDING"
	StateAdmitting     State = "ADMITTING"
	StatePublishing    State = "PUBLISHING"
	StateDone          State = "DONE"
	StateRejected      State = "REJECTED"
	StateUnavailable   State = "UNAVAILABLE"
)

// StockGate: разделяемый breaker вокруг проверки остатков.
type StockGate interface {
	Check(ctx context.Context, req domain.StockCheckRequest) domain.StockOutcome
	Cooldown() time.Duration
}

// Orchestrator описывает сценарий размещения заказа.
type Orchestrator interface {
	PlaceOrder(ctx context.Context, lines []domain.OrderLine) (domain.Order, error)
}

type orchestrator struct {
	gate     StockGate
	admitter *Admitter
	logger   *log.Entry
	metrics  *metrics.PlacementMetrics
	tracer   trace.Tracer
}

// NewOrchestrator создаёт оркестратор с метриками.
func NewOrchestrator(gate StockGate, admitter *Admitter, logger *log.Entry, m *metrics.PlacementMetrics) Orchestrator {
	if logger == nil {
		logger = log.New().WithField("component", "placement")
	}
	return &orchestrator{
		gate:     gate,
		admitter: admitter,
		logger:   logger,
		metrics:  m,
		tracer:   otel.Tracer(tracerName),
	}
}

// NewOrchestratorWithoutMetrics создаёт оркестратор без метрик (для тестов).
func NewOrchestratorWithoutMetrics(gate StockGate, admitter *Admitter, logger *log.Entry) Orchestrator {
	return NewOrchestrator(gate, admitter, logger, nil)
}

// PlaceOrder возвращает сохранённый заказ либо одну из ошибок:
// *domain.UnavailableError, *domain.NotInStockError, domain.ErrOrderPersistence, domain.ErrInvalidOrder.
func (o *orchestrator) PlaceOrder(ctx context.Context, lines []domain.OrderLine) (domain.Order, error) {
	started := time.Now()
	ctx, span := o.tracer.Start(ctx, "placement.PlaceOrder", trace.WithAttributes(
		attribute.Int("order.lines", len(lines)),
	))
	defer span.End()

	logger := o.logger.WithField("lines", len(lines))
	lines = domain.NormalizeLines(lines)

	if errs := domain.ValidateLines(lines); len(errs) > 0 {
		err := fmt.Errorf("%w: %s", domain.ErrInvalidOrder, joinErrors(errs))
		o.finish(span, domain.PlacementOutcomeInvalid, started, err)
		return domain.Order{}, err
	}

	o.enter(span, logger, StateCheckingStock)
	stepStarted := time.Now()
	outcome := o.gate.Check(ctx, domain.NewStockCheckRequest(lines))
	o.metrics.RecordStepDuration(string(domain.PlacementStepCheckStock), time.Since(stepStarted))

	var result domain.StockCheckResult
	switch outcome.Kind {
	case domain.StockOutcomeOK:
		result = outcome.Result
	case domain.StockOutcomeUnavailable:
		o.enter(span, logger, StateUnavailable)
		err := &domain.UnavailableError{Reason: outcome.Reason, RetryAfter: o.gate.Cooldown()}
		logger.WithField("reason", outcome.Reason).Warn("inventory unavailable, order not placed")
		o.finish(span, domain.PlacementOutcomeUnavailable, started, err)
		return domain.Order{}, err
	default:
		err := &domain.UnavailableError{Reason: domain.UnavailableReasonTransport, RetryAfter: o.gate.Cooldown()}
		o.finish(span, domain.PlacementOutcomeUnavailable, started, err)
		return domain.Order{}, err
	}

	o.enter(span, logger, StateDeciding)
	stepStarted = time.Now()
	decision := domain.Decide(result)
	o.metrics.RecordStepDuration(string(domain.PlacementStepDecide), time.Since(stepStarted))

	if !decision.AllInStock {
		o.enter(span, logger, StateRejected)
		err := &domain.NotInStockError{Decision: decision}
		logger.WithField("short_skus", shortSKUs(decision)).Info("order rejected: products not in stock")
		o.finish(span, domain.PlacementOutcomeRejected, started, err)
		return domain.Order{}, err
	}

	o.enter(span, logger, StateAdmitting)
	stepStarted = time.Now()
	order, err := o.admitter.Admit(ctx, decision, lines)
	o.metrics.RecordStepDuration(string(domain.PlacementStepAdmit), time.Since(stepStarted))
	if err != nil {
		o.finish(span, domain.PlacementOutcomeFailed, started, err)
		return domain.Order{}, err
	}
	span.SetAttributes(
		attribute.String("order.id", order.ID),
		attribute.String("order.number", order.OrderNumber),
	)

	o.enter(span, logger, StatePublishing)
	stepStarted = time.Now()
	o.admitter.Announce(ctx, order)
	o.metrics.RecordStepDuration(string(domain.PlacementStepPublish), time.Since(stepStarted))

	o.enter(span, logger, StateDone)
	o.finish(span, domain.PlacementOutcomePlaced, started, nil)
	return order, nil
}

func (o *orchestrator) enter(span trace.Span, logger *log.Entry, state State) {
	span.AddEvent(string(state))
	logger.WithField("state", state).Debug("placement state")
}

func (o *orchestrator) finish(span trace.Span, outcome domain.PlacementOutcome, started time.Time, err error) {
	o.metrics.RecordPlacement(string(outcome), time.Since(started))
	span.SetAttributes(attribute.String("placement.outcome", string(outcome)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, string(outcome))
	}
}

func shortSKUs(decision domain.AdmissionDecision) []string {
	short := decision.Shortfalls()
	out := make([]string, 0, len(short))
	for _, level := range short {
		out = append(out, level.SKU)
	}
	return out
}

func joinErrors(errs []error) string {
	parts := make([]string, 0, len(errs))
	for _, err := range errs {
		parts = append(parts, err.Error())
	}
	return strings.Join(parts, "; ")
}
