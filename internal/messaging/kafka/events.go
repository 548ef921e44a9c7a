package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
)

// EventType определяет тип события
type EventType string

const EventTypeOrderPlaced EventType = "order.placed"

// Topics для Kafka
const (
	TopicOrderPlaced     = domain.TopicOrderPlaced
	TopicDeadLetterQueue = domain.TopicOrderPlaced + ".dlq" // Dead Letter Queue для failed messages
)

// Kafka headers для retry логики
const (
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)

// OrderPlacedEvent: сообщение о размещённом заказе в топике order-placed.
type OrderPlacedEvent struct {
	EventType   EventType `json:"event_type"`
	OrderNumber string    `json:"order_number"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewOrderPlacedEvent создает событие из доменного факта
func NewOrderPlacedEvent(fact domain.OrderPlacedFact) *OrderPlacedEvent {
	ts := fact.OccurredAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return &OrderPlacedEvent{
		EventType:   EventTypeOrderPlaced,
		OrderNumber: fact.OrderNumber,
		Timestamp:   ts,
	}
}

// DLQMessage: содержимое сообщения в Dead Letter Queue.
type DLQMessage struct {
	OriginalTopic     string `json:"original_topic"`
	OriginalPartition int32  `json:"original_partition"`
	OriginalOffset    int64  `json:"original_offset"`
	OriginalKey       string `json:"original_key"`
	OriginalValue     string `json:"original_value"`
	ErrorMessage      string `json:"error_message"`
	FailedAt          string `json:"failed_at"`
	RetryCount        int    `json:"retry_count"`
}

// ParseOrderPlacedEvent парсит OrderPlacedEvent из сообщения
func ParseOrderPlacedEvent(message *sarama.ConsumerMessage) (*OrderPlacedEvent, error) {
	var event OrderPlacedEvent
	if err := json.Unmarshal(message.Value, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order placed event: %w", err)
	}
	if event.OrderNumber == "" {
		return nil, fmt.Errorf("order placed event without order_number")
	}
	return &event, nil
}

// ParseDLQMessage парсит DLQMessage из сообщения
func ParseDLQMessage(message *sarama.ConsumerMessage) (*DLQMessage, error) {
	var payload DLQMessage
	if err := json.Unmarshal(message.Value, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal dlq message: %w", err)
	}
	return &payload, nil
}
