package placement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
)

const maxNumberAttempts = 3

// ErrAdmissionDenied: попытка допустить заказ без положительного решения.
var ErrAdmissionDenied = errors.New("admission requires all lines in stock")

// FactQueue принимает факты о размещении без блокировки.
type FactQueue interface {
	Enqueue(fact domain.OrderPlacedFact) bool
}

// Admitter сохраняет допущенный заказ и передаёт факт о размещении публикатору.
// Повторный вызов с теми же позициями создаёт новый заказ.
type Admitter struct {
	repo      domain.OrderRepository
	queue     FactQueue
	newNumber func() string
	now       func() time.Time
	logger    *log.Entry
}

// NewAdmitter создаёт Admitter. queue может быть nil: тогда факты не публикуются.
func NewAdmitter(repo domain.OrderRepository, queue FactQueue, logger *log.Entry) *Admitter {
	if logger == nil {
		logger = log.New().WithField("component", "order-admitter")
	}
	return &Admitter{
		repo:      repo,
		queue:     queue,
		newNumber: uuid.NewString,
		now:       func() time.Time { return time.Now().UTC() },
		logger:    logger,
	}
}

// Admit генерирует новый номер заказа и сохраняет заказ. ID назначает хранилище.
func (a *Admitter) Admit(ctx context.Context, decision domain.AdmissionDecision, lines []domain.OrderLine) (domain.Order, error) {
	if !decision.AllInStock {
		return domain.Order{}, ErrAdmissionDenied
	}

	var lastErr error
	for attempt := 1; attempt <= maxNumberAttempts; attempt++ {
		order := domain.Order{
			OrderNumber: a.newNumber(),
			Lines:       domain.CloneLines(lines),
			CreatedAt:   a.now(),
		}

		saved, err := a.repo.Create(ctx, order)
		if err == nil {
			a.logger.WithFields(log.Fields{
				"order_id":     saved.ID,
				"order_number": saved.OrderNumber,
				"lines":        len(saved.Lines),
			}).Info("order admitted")
			return saved, nil
		}

		lastErr = err
		if !errors.Is(err, domain.ErrOrderNumberConflict) {
			break
		}
		a.logger.WithField("order_number", order.OrderNumber).Warn("order number collision, regenerating")
	}

	a.logger.WithError(lastErr).Error("failed to persist order")
	return domain.Order{}, fmt.Errorf("%w: %w", domain.ErrOrderPersistence, lastErr)
}

// Announce передаёт факт о размещении в очередь публикации вместе с контекстом трассировки ctx.
// Никогда не возвращает ошибку.
func (a *Admitter) Announce(ctx context.Context, order domain.Order) {
	if a.queue == nil {
		return
	}
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	fact := domain.OrderPlacedFact{OrderNumber: order.OrderNumber, OccurredAt: a.now()}
	if len(carrier) > 0 {
		fact.TraceCarrier = carrier
	}
	if !a.queue.Enqueue(fact) {
		a.logger.WithField("order_number", order.OrderNumber).Warn("order-placed event dropped")
	}
}
