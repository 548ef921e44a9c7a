// Package notification уведомляет о размещённых заказах по событиям из order-placed.
package notification

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersvc/internal/messaging/kafka"
)

// Notifier отправляет уведомление о заказе.
type Notifier interface {
	Notify(ctx context.Context, orderNumber string) error
}

// LogNotifier пишет уведомление в лог.
type LogNotifier struct {
	logger *log.Entry
}

// NewLogNotifier создаёт notifier поверх logger.
func NewLogNotifier(logger *log.Entry) *LogNotifier {
	if logger == nil {
		logger = log.WithField("component", "notification")
	}
	return &LogNotifier{logger: logger}
}

// Notify логирует факт отправки.
func (n *LogNotifier) Notify(_ context.Context, orderNumber string) error {
	n.logger.WithField("order_number", orderNumber).Infof("notification sent: order %s placed successfully", orderNumber)
	return nil
}

// Handler разбирает события order-placed и вызывает Notifier.
type Handler struct {
	notifier Notifier
	logger   *log.Entry
}

// NewHandler создаёт обработчик.
func NewHandler(notifier Notifier, logger *log.Entry) *Handler {
	if logger == nil {
		logger = log.WithField("component", "notification-handler")
	}
	if notifier == nil {
		notifier = NewLogNotifier(logger)
	}
	return &Handler{notifier: notifier, logger: logger}
}

// Handle реализует kafka.MessageHandler. Ошибка разбора тоже возвращается, чтобы сообщение ушло в DLQ.
func (h *Handler) Handle(ctx context.Context, message *sarama.ConsumerMessage) error {
	event, err := kafka.ParseOrderPlacedEvent(message)
	if err != nil {
		h.logger.WithError(err).WithField("offset", message.Offset).Warn("skipping malformed order-placed event")
		return err
	}
	if err := h.notifier.Notify(ctx, event.OrderNumber); err != nil {
		return fmt.Errorf("notify order %s: %w", event.OrderNumber, err)
	}
	return nil
}

var _ kafka.MessageHandler = (*Handler)(nil).Handle
