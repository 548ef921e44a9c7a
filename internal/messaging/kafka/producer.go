package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

// Producer представляет Kafka producer для публикации событий
type Producer struct {
	producer sarama.SyncProducer
	logger   *log.Entry
}

// NewConfig возвращает конфигурацию producer'а: повторная доставка и идемпотентность на стороне клиента Kafka.
// sendTimeout > 0 ограничивает сетевые таймауты и ожидание подтверждения брокера.
func NewConfig(sendTimeout time.Duration) *sarama.Config {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll // Wait for all in-sync replicas
	config.Producer.Retry.Max = 5
	config.Producer.Return.Successes = true
	config.Producer.Compression = sarama.CompressionSnappy
	config.Producer.Idempotent = true // Включаем идемпотентность
	config.Net.MaxOpenRequests = 1    // Для идемпотентности

	if sendTimeout > 0 {
		config.Producer.Timeout = sendTimeout
		config.Net.DialTimeout = sendTimeout
		config.Net.ReadTimeout = sendTimeout
		config.Net.WriteTimeout = sendTimeout
	}
	return config
}

// NewProducer создает новый Kafka producer
func NewProducer(brokers []string, sendTimeout time.Duration) (*Producer, error) {
	producer, err := sarama.NewSyncProducer(brokers, NewConfig(sendTimeout))
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	return NewProducerFromSync(producer, nil), nil
}

// NewProducerFromSync оборачивает готовый SyncProducer (используется в тестах с sarama/mocks).
func NewProducerFromSync(producer sarama.SyncProducer, logger *log.Entry) *Producer {
	if logger == nil {
		logger = log.WithField("component", "kafka-producer")
	}
	return &Producer{producer: producer, logger: logger}
}

// PublishEvent публикует событие в Kafka с заголовками трассировки из ctx
func (p *Producer) PublishEvent(ctx context.Context, topic string, key string, event interface{}) error {
	eventData, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	return p.PublishRaw(ctx, topic, key, eventData, nil)
}

// PublishRaw публикует готовые байты с дополнительными заголовками.
func (p *Producer) PublishRaw(ctx context.Context, topic, key string, value []byte, headers []sarama.RecordHeader) error {
	msg := &sarama.ProducerMessage{
		Topic:     topic,
		Key:       sarama.StringEncoder(key),
		Value:     sarama.ByteEncoder(value),
		Headers:   InjectTraceHeaders(ctx, headers),
		Timestamp: time.Now(),
	}

	// SyncProducer не принимает ctx: ждём ответа не дольше дедлайна ctx.
	done := make(chan sendResult, 1)
	go func() {
		partition, offset, err := p.producer.SendMessage(msg)
		done <- sendResult{partition: partition, offset: offset, err: err}
	}()

	var res sendResult
	select {
	case res = <-done:
	case <-ctx.Done():
		p.logger.WithError(ctx.Err()).WithFields(log.Fields{
			"topic": topic,
			"key":   key,
		}).Warn("kafka send abandoned before broker acknowledgement")
		return fmt.Errorf("failed to send message: %w", ctx.Err())
	}

	if res.err != nil {
		p.logger.WithError(res.err).WithFields(log.Fields{
			"topic": topic,
			"key":   key,
		}).Error("failed to send message to kafka")
		return fmt.Errorf("failed to send message: %w", res.err)
	}

	p.logger.WithFields(log.Fields{
		"topic":     topic,
		"key":       key,
		"partition": res.partition,
		"offset":    res.offset,
	}).Debug("message sent to kafka")

	return nil
}

type sendResult struct {
	partition int32
	offset    int64
	err       error
}

// Close закрывает producer
func (p *Producer) Close() error {
	if err := p.producer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka producer: %w", err)
	}
	return nil
}
