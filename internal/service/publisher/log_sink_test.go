package publisher

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
)

func TestLogSinkPublish(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&log.JSONFormatter{})

	sink := NewLogSink(logger.WithField("component", "test"))
	if err := sink.Publish(context.Background(), domain.OrderPlacedFact{OrderNumber: "n-42", OccurredAt: time.Now()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), `"order_number":"n-42"`) {
		t.Fatalf("log line does not contain order number: %s", buf.String())
	}
}

func TestLogSinkCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewLogSink(nil).Publish(ctx, domain.OrderPlacedFact{OrderNumber: "n-1"}); err == nil {
		t.Fatal("expected error for canceled context")
	}
}
