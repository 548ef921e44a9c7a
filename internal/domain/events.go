package domain

import "time"

// TopicOrderPlaced: топик событий о размещённых заказах.
const TopicOrderPlaced = "order-placed"

// OrderPlacedFact: факт размещения заказа, публикуется ровно один раз после сохранения.
type OrderPlacedFact struct {
	OrderNumber string
	OccurredAt  time.Time
	// TraceCarrier хранит контекст трассировки запроса (W3C traceparent и др.) до публикации.
	TraceCarrier map[string]string
}
