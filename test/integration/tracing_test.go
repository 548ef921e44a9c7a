package integration

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
	"github.com/vladislavdragonenkov/ordersvc/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/ordersvc/internal/service/breaker"
	"github.com/vladislavdragonenkov/ordersvc/internal/service/inventory"
	"github.com/vladislavdragonenkov/ordersvc/internal/service/placement"
	"github.com/vladislavdragonenkov/ordersvc/internal/service/publisher"
	"github.com/vladislavdragonenkov/ordersvc/internal/service/stock"
	"github.com/vladislavdragonenkov/ordersvc/internal/storage/memory"
	"github.com/vladislavdragonenkov/ordersvc/internal/tracing"
)

func TestPlacement_TraceReachesKafkaHeaders(t *testing.T) {
	prevTP := otel.GetTracerProvider()
	prevProp := otel.GetTextMapPropagator()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
	})

	baseLogger := log.New()
	baseLogger.SetLevel(log.WarnLevel)
	logger := baseLogger.WithField("component", "integration-test")

	provider, err := tracing.Setup(tracing.DefaultConfig(), "order-service", logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	var (
		mu          sync.Mutex
		traceparent string
	)
	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		mu.Lock()
		defer mu.Unlock()
		for _, h := range msg.Headers {
			if string(h.Key) == "traceparent" {
				traceparent = string(h.Value)
			}
		}
		return nil
	})

	sink := kafka.NewEventSink(kafka.NewProducerFromSync(mockProducer, logger), "")
	pub := publisher.New(sink, publisher.WithLogger(logger))
	pubCtx, stopPublisher := context.WithCancel(context.Background())
	pubDone := make(chan struct{})
	go func() {
		defer close(pubDone)
		pub.Run(pubCtx)
	}()

	checker := stock.NewChecker(inventory.NewMockService(map[string]int32{"sku-1": 3}), time.Second, logger)
	gate := breaker.New(checker, breaker.Config{FailureThreshold: 2, Cooldown: time.Second}, logger, nil)
	orchestrator := placement.NewOrchestratorWithoutMetrics(gate, placement.NewAdmitter(memory.NewOrderRepository(), pub, logger), logger)

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithRemoteSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	}))

	_, err = orchestrator.PlaceOrder(ctx, []domain.OrderLine{{SKU: "sku-1", PriceMinor: 100, Qty: 1}})
	require.NoError(t, err)

	stopPublisher()
	<-pubDone
	require.NoError(t, mockProducer.Close())

	mu.Lock()
	defer mu.Unlock()
	require.True(t, strings.Contains(traceparent, traceID.String()), "record traceparent %q must continue trace %s", traceparent, traceID)
	require.False(t, strings.Contains(traceparent, spanID.String()), "record must reference the placement span, not the caller span")
}
