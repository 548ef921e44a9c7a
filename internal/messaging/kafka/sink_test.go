package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
)

func TestEventSinkPublish(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageAndSucceed()

	sink := NewEventSink(NewProducerFromSync(mockProducer, nil), "")
	if err := sink.Publish(context.Background(), domain.OrderPlacedFact{OrderNumber: "n-1", OccurredAt: time.Now()}); err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestEventSinkPublishFailure(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	sink := NewEventSink(NewProducerFromSync(mockProducer, nil), TopicOrderPlaced)
	err := sink.Publish(context.Background(), domain.OrderPlacedFact{OrderNumber: "n-1"})
	if !errors.Is(err, domain.ErrEventPublish) {
		t.Fatalf("expected ErrEventPublish, got %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestEventSinkPublishCanceled(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	sink := NewEventSink(NewProducerFromSync(mockProducer, nil), "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sink.Publish(ctx, domain.OrderPlacedFact{OrderNumber: "n-1"})
	if !errors.Is(err, domain.ErrEventPublish) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled publish error, got %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestEventSinkNotInitialized(t *testing.T) {
	var sink *EventSink
	if err := sink.Publish(context.Background(), domain.OrderPlacedFact{OrderNumber: "n-1"}); err == nil {
		t.Fatal("expected error for nil sink")
	}
}

func TestEventSinkPublishBoundedByDeadline(t *testing.T) {
	mockProducer := mocks.NewSyncProducer(t, nil)
	release := make(chan struct{})
	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(*sarama.ProducerMessage) error {
		<-release
		return nil
	})

	sink := NewEventSink(NewProducerFromSync(mockProducer, nil), "")
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	started := time.Now()
	err := sink.Publish(ctx, domain.OrderPlacedFact{OrderNumber: "n-1"})
	elapsed := time.Since(started)

	if !errors.Is(err, domain.ErrEventPublish) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline publish error, got %v", err)
	}
	if elapsed > time.Second {
		t.Fatalf("publish must return at the deadline, took %s", elapsed)
	}

	close(release)
	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}
