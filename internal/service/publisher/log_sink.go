package publisher

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
)

// LogSink пишет факты в лог вместо брокера. Используется в локальном режиме.
type LogSink struct {
	logger *log.Entry
}

// NewLogSink создаёт sink поверх logger.
func NewLogSink(logger *log.Entry) *LogSink {
	if logger == nil {
		logger = log.WithField("component", "event-log-sink")
	}
	return &LogSink{logger: logger}
}

// Publish логирует факт и никогда не возвращает ошибку, кроме отменённого ctx.
func (s *LogSink) Publish(ctx context.Context, fact domain.OrderPlacedFact) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.logger.WithFields(log.Fields{
		"topic":        domain.TopicOrderPlaced,
		"order_number": fact.OrderNumber,
		"occurred_at":  fact.OccurredAt,
	}).Info("order-placed event")
	return nil
}

var _ domain.EventSink = (*LogSink)(nil)
