package placement

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
	"github.com/vladislavdragonenkov/ordersvc/internal/storage/memory"
)

func passingDecision() domain.AdmissionDecision {
	return domain.Decide(domain.StockCheckResult{Items: []domain.StockLevel{domain.NewStockLevel("A", 1, 1)}})
}

func TestAdmitter_RequiresPassingDecision(t *testing.T) {
	admitter := NewAdmitter(memory.NewOrderRepository(), nil, quietLogger())
	failing := domain.Decide(domain.StockCheckResult{Items: []domain.StockLevel{domain.NewStockLevel("A", 2, 1)}})

	if _, err := admitter.Admit(context.Background(), failing, []domain.OrderLine{{SKU: "A", Qty: 2}}); !errors.Is(err, ErrAdmissionDenied) {
		t.Fatalf("expected ErrAdmissionDenied, got %v", err)
	}
}

func TestAdmitter_RegeneratesNumberOnConflict(t *testing.T) {
	repo := memory.NewOrderRepository()
	admitter := NewAdmitter(repo, nil, quietLogger())

	numbers := []string{"dup", "dup", "fresh"}
	admitter.newNumber = func() string {
		n := numbers[0]
		numbers = numbers[1:]
		return n
	}

	lines := []domain.OrderLine{{SKU: "A", Qty: 1}}
	if _, err := admitter.Admit(context.Background(), passingDecision(), lines); err != nil {
		t.Fatalf("first admit failed: %v", err)
	}
	order, err := admitter.Admit(context.Background(), passingDecision(), lines)
	if err != nil {
		t.Fatalf("second admit failed: %v", err)
	}
	if order.OrderNumber != "fresh" {
		t.Fatalf("expected regenerated number, got %s", order.OrderNumber)
	}
}

func TestAdmitter_AnnounceAfterPersistence(t *testing.T) {
	queue := &stubQueue{}
	admitter := NewAdmitter(memory.NewOrderRepository(), queue, quietLogger())

	order, err := admitter.Admit(context.Background(), passingDecision(), []domain.OrderLine{{SKU: "A", Qty: 1}})
	if err != nil {
		t.Fatalf("admit failed: %v", err)
	}
	if len(queue.published()) != 0 {
		t.Fatal("admit must not announce on its own")
	}

	admitter.Announce(context.Background(), order)
	facts := queue.published()
	if len(facts) != 1 || facts[0].OrderNumber != order.OrderNumber || facts[0].OccurredAt.IsZero() {
		t.Fatalf("unexpected facts %+v", facts)
	}
}

func TestAdmitter_AnnounceCapturesTraceContext(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithRemoteSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
		Remote:     true,
	}))

	queue := &stubQueue{}
	admitter := NewAdmitter(memory.NewOrderRepository(), queue, quietLogger())
	admitter.Announce(ctx, domain.Order{OrderNumber: "n-1"})

	facts := queue.published()
	if len(facts) != 1 {
		t.Fatalf("expected one fact, got %d", len(facts))
	}
	if !strings.Contains(facts[0].TraceCarrier["traceparent"], traceID.String()) {
		t.Fatalf("expected traceparent with %s, got %+v", traceID, facts[0].TraceCarrier)
	}

	admitter.Announce(context.Background(), domain.Order{OrderNumber: "n-2"})
	if carrier := queue.published()[1].TraceCarrier; carrier != nil {
		t.Fatalf("fact without trace must not carry headers, got %+v", carrier)
	}
}
