package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
	"github.com/vladislavdragonenkov/ordersvc/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/ordersvc/internal/messaging/rabbitmq"
	"github.com/vladislavdragonenkov/ordersvc/internal/service/publisher"
)

// initEventSink создаёт sink для фактов order-placed по настройке EventSink.
// Возвращаемая функция закрывает соединение с брокером.
func initEventSink(cfg Config, logger *log.Entry) (domain.EventSink, func(), error) {
	switch cfg.EventSink {
	case EventSinkKafka:
		brokers := splitList(cfg.KafkaBrokers)
		producer, err := kafka.NewProducer(brokers, cfg.EventPublishTimeout)
		if err != nil {
			return nil, nil, err
		}
		logger.WithField("brokers", brokers).Info("kafka producer initialized")
		return kafka.NewEventSink(producer, cfg.KafkaTopic), func() { closeKafka(producer, logger) }, nil

	case EventSinkRabbitMQ:
		client, err := rabbitmq.Dial(cfg.RabbitMQURL, logger.WithField("sink", "rabbitmq"))
		if err != nil {
			return nil, nil, err
		}
		sink, err := rabbitmq.NewEventSink(client.Channel(), cfg.RabbitMQExchange)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return sink, func() {
			if err := client.Close(); err != nil {
				logger.WithError(err).Warn("failed to close rabbitmq client")
			}
		}, nil

	default:
		logger.Info("order-placed events are written to the log")
		return publisher.NewLogSink(logger.WithField("sink", "log")), func() {}, nil
	}
}

// closeKafka закрывает Kafka producer если он не nil.
func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}

	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	} else {
		logger.Info("kafka producer closed")
	}
}
