package main

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersvc/internal/messaging/kafka"
)

// headerReplayedFrom помечает повторно опубликованное сообщение координатами записи в DLQ.
const headerReplayedFrom = "x-replayed-from"

// replayMessage: исходное сообщение, восстановленное из записи DLQ.
type replayMessage struct {
	topic  string
	key    string
	value  []byte
	source string
}

type replayStats struct {
	processed int
	replayed  int
	skipped   int
	filtered  int
}

func (s *replayStats) add(other replayStats) {
	s.processed += other.processed
	s.replayed += other.replayed
	s.skipped += other.skipped
	s.filtered += other.filtered
}

// replayer читает DLQ по партициям и переотправляет исходные сообщения.
// Без execute только логирует кандидатов.
type replayer struct {
	cfg      config
	client   offsetClient
	consumer partitionConsumerSource
	producer replayProducer
	logger   *log.Entry
}

func newReplayer(cfg config, client offsetClient, consumer partitionConsumerSource, producer replayProducer) (*replayer, error) {
	if client == nil || consumer == nil {
		return nil, errors.New("kafka client and consumer are required")
	}
	if cfg.execute && producer == nil {
		return nil, errors.New("producer is required in execute mode")
	}
	return &replayer{
		cfg:      cfg,
		client:   client,
		consumer: consumer,
		producer: producer,
		logger:   log.WithField("component", "dlq-replay"),
	}, nil
}

func (r *replayer) mode() string {
	if r.cfg.execute {
		return "execute"
	}
	return "dry-run"
}

// Run обходит партиции по возрастанию, пока не исчерпан limit.
func (r *replayer) Run(ctx context.Context) (replayStats, error) {
	r.logger.WithFields(log.Fields{
		"source_topic": r.cfg.sourceTopic,
		"target_topic": r.cfg.targetTopic,
		"limit":        r.cfg.limit,
		"mode":         r.mode(),
		"from_newest":  r.cfg.fromNewest,
		"order_number": r.cfg.orderNumber,
	}).Info("starting dlq replay")

	var total replayStats

	partitions, err := r.client.Partitions(r.cfg.sourceTopic)
	if err != nil {
		return total, fmt.Errorf("get partitions for topic %s: %w", r.cfg.sourceTopic, err)
	}
	if len(partitions) == 0 {
		r.logger.WithField("topic", r.cfg.sourceTopic).Warn("source topic has no partitions")
		return total, nil
	}
	slices.Sort(partitions)

	for _, partition := range partitions {
		if total.processed >= r.cfg.limit {
			break
		}
		stats, err := r.partition(ctx, partition, r.cfg.limit-total.processed)
		total.add(stats)
		if err != nil {
			return total, err
		}
	}

	r.logger.WithFields(log.Fields{
		"mode":      r.mode(),
		"processed": total.processed,
		"replayed":  total.replayed,
		"skipped":   total.skipped,
		"filtered":  total.filtered,
	}).Info("dlq replay finished")

	return total, nil
}

// startOffset возвращает диапазон чтения [start, end) для партиции.
func (r *replayer) startOffset(partition int32, limit int) (int64, int64, error) {
	oldest, err := r.client.GetOffset(r.cfg.sourceTopic, partition, sarama.OffsetOldest)
	if err != nil {
		return 0, 0, fmt.Errorf("get oldest offset for partition %d: %w", partition, err)
	}
	newest, err := r.client.GetOffset(r.cfg.sourceTopic, partition, sarama.OffsetNewest)
	if err != nil {
		return 0, 0, fmt.Errorf("get newest offset for partition %d: %w", partition, err)
	}

	start := oldest
	if r.cfg.fromNewest {
		start = max(newest-int64(limit), oldest)
	}
	return start, newest, nil
}

func (r *replayer) partition(ctx context.Context, partition int32, limit int) (replayStats, error) {
	var stats replayStats
	if limit <= 0 {
		return stats, nil
	}

	start, end, err := r.startOffset(partition, limit)
	if err != nil {
		return stats, err
	}
	if end <= start {
		return stats, nil
	}

	pc, err := r.consumer.ConsumePartition(r.cfg.sourceTopic, partition, start)
	if err != nil {
		return stats, fmt.Errorf("consume partition %d: %w", partition, err)
	}
	defer func() { _ = pc.Close() }()

	idle := time.NewTimer(r.cfg.idleTimeout)
	defer idle.Stop()

	for stats.processed < limit {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case <-idle.C:
			return stats, nil
		case consumerErr := <-pc.Errors():
			if consumerErr != nil {
				return stats, fmt.Errorf("partition %d consumer error: %w", partition, consumerErr)
			}
		case msg, ok := <-pc.Messages():
			if !ok || msg == nil || msg.Offset >= end {
				return stats, nil
			}
			idle.Reset(r.cfg.idleTimeout)

			if err := r.handle(msg, &stats); err != nil {
				return stats, err
			}
			if msg.Offset+1 >= end {
				return stats, nil
			}
		}
	}
	return stats, nil
}

// handle учитывает одну запись DLQ; ошибка означает сбой публикации.
func (r *replayer) handle(msg *sarama.ConsumerMessage, stats *replayStats) error {
	stats.processed++
	fields := log.Fields{"partition": msg.Partition, "offset": msg.Offset}

	replay, ok, err := extractReplayMessage(msg, r.cfg.targetTopic)
	if err != nil {
		stats.skipped++
		r.logger.WithError(err).WithFields(fields).Warn("skip unsupported dlq message")
		return nil
	}
	if !ok {
		stats.skipped++
		return nil
	}
	if r.cfg.orderNumber != "" && !strings.EqualFold(replay.key, r.cfg.orderNumber) {
		stats.filtered++
		return nil
	}

	fields["target_topic"] = replay.topic
	fields["key"] = replay.key
	if !r.cfg.execute {
		stats.replayed++
		r.logger.WithFields(fields).Info("dlq replay candidate")
		return nil
	}

	if err := publishReplay(r.producer, replay); err != nil {
		return fmt.Errorf("publish replay message: %w", err)
	}
	stats.replayed++
	r.logger.WithFields(fields).Debug("dlq message replayed")
	return nil
}

// publishReplay отправляет сообщение без заголовка retry count: получатель начинает попытки заново.
func publishReplay(producer replayProducer, msg replayMessage) error {
	if producer == nil {
		return errors.New("producer is nil")
	}

	producerMessage := &sarama.ProducerMessage{
		Topic:     msg.topic,
		Key:       sarama.StringEncoder(msg.key),
		Value:     sarama.ByteEncoder(msg.value),
		Timestamp: time.Now().UTC(),
	}
	if msg.source != "" {
		producerMessage.Headers = []sarama.RecordHeader{{Key: []byte(headerReplayedFrom), Value: []byte(msg.source)}}
	}

	_, _, err := producer.SendMessage(producerMessage)
	return err
}

// extractReplayMessage восстанавливает исходное сообщение из записи DLQ.
// ok=false означает запись без исходного payload, её пропускают.
func extractReplayMessage(msg *sarama.ConsumerMessage, defaultTopic string) (replayMessage, bool, error) {
	payload, err := kafka.ParseDLQMessage(msg)
	if err != nil {
		return replayMessage{}, false, err
	}
	if payload.OriginalValue == "" {
		return replayMessage{}, false, nil
	}

	targetTopic := strings.TrimSpace(payload.OriginalTopic)
	if targetTopic == "" {
		targetTopic = defaultTopic
	}
	return replayMessage{
		topic:  targetTopic,
		key:    payload.OriginalKey,
		value:  []byte(payload.OriginalValue),
		source: fmt.Sprintf("%s/%d/%d", msg.Topic, msg.Partition, msg.Offset),
	}, true, nil
}
