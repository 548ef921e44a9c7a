package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/streadway/amqp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
)

// DefaultExchange: topic exchange для событий заказов.
const DefaultExchange = "orders"

type orderPlacedMessage struct {
	EventType   string    `json:"event_type"`
	OrderNumber string    `json:"order_number"`
	Timestamp   time.Time `json:"timestamp"`
}

// EventSink публикует факты о размещении в exchange с routing key order-placed.
type EventSink struct {
	channel  Channel
	exchange string
}

// NewEventSink объявляет durable topic exchange и возвращает sink.
func NewEventSink(channel Channel, exchange string) (*EventSink, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if err := channel.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &EventSink{channel: channel, exchange: exchange}, nil
}

// Publish отправляет сообщение. streadway/amqp не принимает ctx, поэтому
// ожидание ответа брокера ограничено дедлайном ctx.
func (s *EventSink) Publish(ctx context.Context, fact domain.OrderPlacedFact) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrEventPublish, err)
	}

	ts := fact.OccurredAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	body, err := json.Marshal(orderPlacedMessage{
		EventType:   "order.placed",
		OrderNumber: fact.OrderNumber,
		Timestamp:   ts,
	})
	if err != nil {
		return fmt.Errorf("%w: marshal: %w", domain.ErrEventPublish, err)
	}

	msg := amqp.Publishing{
		Headers:      traceHeaders(ctx),
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    fact.OrderNumber,
		Timestamp:    ts,
		Body:         body,
	}

	done := make(chan error, 1)
	go func() {
		done <- s.channel.Publish(s.exchange, domain.TopicOrderPlaced, false, false, msg)
	}()

	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrEventPublish, err)
	}
	return nil
}

// traceHeaders переносит контекст трассировки из ctx в заголовки AMQP.
func traceHeaders(ctx context.Context) amqp.Table {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	if len(carrier) == 0 {
		return nil
	}

	headers := make(amqp.Table, len(carrier))
	for k, v := range carrier {
		headers[k] = v
	}
	return headers
}

var _ domain.EventSink = (*EventSink)(nil)
