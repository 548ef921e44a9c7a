package kafka

import (
	"context"
	"fmt"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
)

// EventSink публикует факты о размещении в Kafka topic.
type EventSink struct {
	producer *Producer
	topic    string
}

// NewEventSink создаёт sink; пустой topic означает order-placed.
func NewEventSink(producer *Producer, topic string) *EventSink {
	if topic == "" {
		topic = TopicOrderPlaced
	}
	return &EventSink{producer: producer, topic: topic}
}

// Publish отправляет событие с ключом по номеру заказа.
func (s *EventSink) Publish(ctx context.Context, fact domain.OrderPlacedFact) error {
	if s == nil || s.producer == nil {
		return fmt.Errorf("kafka event sink is not initialized")
	}

	// SyncProducer не принимает ctx; отменённый вызов не начинаем.
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrEventPublish, err)
	}

	if err := s.producer.PublishEvent(ctx, s.topic, fact.OrderNumber, NewOrderPlacedEvent(fact)); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrEventPublish, err)
	}
	return nil
}

var _ domain.EventSink = (*EventSink)(nil)
