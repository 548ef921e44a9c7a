package app

import (
	"context"
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersvc/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/ordersvc/internal/service/notification"
	"github.com/vladislavdragonenkov/ordersvc/internal/tracing"
	"github.com/vladislavdragonenkov/ordersvc/internal/version"
)

// RunNotification читает order-placed и логирует уведомления до отмены ctx.
// Сообщения, не обработанные после MaxRetries попыток, уходят в DLQ.
func RunNotification(ctx context.Context, cfg NotificationConfig) error {
	logger := log.WithField("component", "notification-app")

	brokers := splitList(cfg.KafkaBrokers)
	if len(brokers) == 0 {
		return errors.New("kafka brokers are required")
	}

	tracer, err := tracing.Setup(cfg.Tracing, "notification-service", logger.WithField("layer", "tracing"))
	if err != nil {
		return err
	}
	defer shutdownTracing(tracer, logger)

	dlqProducer, err := kafka.NewProducer(brokers, 0)
	if err != nil {
		return fmt.Errorf("create dlq producer: %w", err)
	}
	defer closeKafka(dlqProducer, logger)

	handler := notification.NewHandler(nil, logger.WithField("layer", "handler"))
	consumer, err := kafka.NewConsumerWithDLQ(brokers, cfg.GroupID, []string{cfg.Topic}, handler.Handle, dlqProducer, cfg.MaxRetries)
	if err != nil {
		return err
	}

	if err := consumer.Start(ctx); err != nil {
		return err
	}
	logger.WithFields(log.Fields{
		"brokers": brokers,
		"topic":   cfg.Topic,
		"group":   cfg.GroupID,
	}).Info(version.Banner("notification-service"))

	<-ctx.Done()

	if err := consumer.Stop(); err != nil {
		logger.WithError(err).Warn("failed to stop consumer")
	}
	return ctx.Err()
}
