package placement

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
	"github.com/vladislavdragonenkov/ordersvc/internal/metrics"
	"github.com/vladislavdragonenkov/ordersvc/internal/service/breaker"
	"github.com/vladislavdragonenkov/ordersvc/internal/service/inventory"
	"github.com/vladislavdragonenkov/ordersvc/internal/service/stock"
	"github.com/vladislavdragonenkov/ordersvc/internal/storage/memory"
)

type stubQueue struct {
	mu     sync.Mutex
	facts  []domain.OrderPlacedFact
	reject bool
}

func (q *stubQueue) Enqueue(fact domain.OrderPlacedFact) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.reject {
		return false
	}
	q.facts = append(q.facts, fact)
	return true
}

func (q *stubQueue) published() []domain.OrderPlacedFact {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]domain.OrderPlacedFact, len(q.facts))
	copy(out, q.facts)
	return out
}

type failingRepo struct {
	domain.OrderRepository
	err error
}

func (r *failingRepo) Create(context.Context, domain.Order) (domain.Order, error) {
	return domain.Order{}, r.err
}

type fixture struct {
	inventory    *inventory.MockService
	repo         domain.OrderRepository
	queue        *stubQueue
	breaker      *breaker.StockBreaker
	orchestrator Orchestrator
}

func quietLogger() *log.Entry {
	logger := log.New()
	logger.SetLevel(log.FatalLevel)
	return logger.WithField("component", "placement-test")
}

func newFixture(t *testing.T, stockLevels map[string]int32) *fixture {
	t.Helper()

	f := &fixture{
		inventory: inventory.NewMockService(stockLevels),
		repo:      memory.NewOrderRepository(),
		queue:     &stubQueue{},
	}
	m := metrics.NewPlacementMetricsWithRegisterer(prometheus.NewRegistry())
	checker := stock.NewChecker(f.inventory, time.Second, quietLogger())
	f.breaker = breaker.New(checker, breaker.Config{FailureThreshold: 2, Cooldown: time.Minute}, quietLogger(), m)
	admitter := NewAdmitter(f.repo, f.queue, quietLogger())
	f.orchestrator = NewOrchestrator(f.breaker, admitter, quietLogger(), m)
	return f
}

func TestPlaceOrder_AllInStock(t *testing.T) {
	f := newFixture(t, map[string]int32{"iphone_13": 10, "case": 3})
	lines := []domain.OrderLine{
		{SKU: "iphone_13", PriceMinor: 120000, Qty: 2},
		{SKU: "case", PriceMinor: 1500, Qty: 3},
	}

	order, err := f.orchestrator.PlaceOrder(context.Background(), lines)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.ID == "" || order.OrderNumber == "" {
		t.Fatalf("expected id and order number, got %+v", order)
	}

	stored, err := f.repo.Get(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("read back failed: %v", err)
	}
	if stored.OrderNumber != order.OrderNumber || len(stored.Lines) != len(lines) {
		t.Fatalf("unexpected stored order %+v", stored)
	}
	for i := range lines {
		if stored.Lines[i] != lines[i] {
			t.Fatalf("line %d mismatch: %+v vs %+v", i, stored.Lines[i], lines[i])
		}
	}

	facts := f.queue.published()
	if len(facts) != 1 || facts[0].OrderNumber != order.OrderNumber {
		t.Fatalf("expected one fact for %s, got %+v", order.OrderNumber, facts)
	}
}

func TestPlaceOrder_RejectedWithShortfall(t *testing.T) {
	f := newFixture(t, map[string]int32{"A": 10, "B": 1})

	_, err := f.orchestrator.PlaceOrder(context.Background(), []domain.OrderLine{
		{SKU: "A", PriceMinor: 100, Qty: 5},
		{SKU: "B", PriceMinor: 100, Qty: 2},
	})

	var notInStock *domain.NotInStockError
	if !errors.As(err, &notInStock) {
		t.Fatalf("expected NotInStockError, got %v", err)
	}
	short := notInStock.Decision.Shortfalls()
	if len(short) != 1 || short[0].SKU != "B" || short[0].RequiredQty != 2 || short[0].AvailableQty != 1 {
		t.Fatalf("unexpected shortfall %+v", short)
	}

	orders, _ := f.repo.List(context.Background(), 0)
	if len(orders) != 0 {
		t.Fatalf("rejected order must not be persisted, got %d", len(orders))
	}
	if len(f.queue.published()) != 0 {
		t.Fatal("rejected order must not be announced")
	}
}

func TestPlaceOrder_UnavailableNeverOptimistic(t *testing.T) {
	f := newFixture(t, map[string]int32{"A": 10})
	f.inventory.SetError(errors.New("connection refused"))

	_, err := f.orchestrator.PlaceOrder(context.Background(), []domain.OrderLine{{SKU: "A", Qty: 1}})

	var unavailable *domain.UnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected UnavailableError, got %v", err)
	}
	if !domain.IsRetryable(err) {
		t.Fatal("unavailable must be retryable")
	}
	if unavailable.RetryAfter != time.Minute {
		t.Fatalf("expected retry-after of the cool-down, got %v", unavailable.RetryAfter)
	}
	if err.Error() != domain.UnavailableUserMessage {
		t.Fatalf("transport detail leaked: %q", err.Error())
	}

	orders, _ := f.repo.List(context.Background(), 0)
	if len(orders) != 0 || len(f.queue.published()) != 0 {
		t.Fatal("unavailable outcome must not persist or announce")
	}
}

func TestPlaceOrder_OpenBreakerShortCircuits(t *testing.T) {
	f := newFixture(t, map[string]int32{"A": 10})
	f.inventory.SetError(errors.New("timeout"))
	lines := []domain.OrderLine{{SKU: "A", Qty: 1}}

	for i := 0; i < 2; i++ {
		_, _ = f.orchestrator.PlaceOrder(context.Background(), lines)
	}
	f.inventory.SetError(nil)

	_, err := f.orchestrator.PlaceOrder(context.Background(), lines)
	var unavailable *domain.UnavailableError
	if !errors.As(err, &unavailable) || unavailable.Reason != domain.UnavailableReasonCircuitOpen {
		t.Fatalf("expected circuit-open unavailable, got %v", err)
	}
	if f.inventory.Calls() != 2 {
		t.Fatalf("open breaker must not reach inventory, calls=%d", f.inventory.Calls())
	}
}

func TestPlaceOrder_DistinctNumbersForIdenticalLines(t *testing.T) {
	f := newFixture(t, map[string]int32{"A": 10})
	lines := []domain.OrderLine{{SKU: "A", PriceMinor: 100, Qty: 1}}

	first, err := f.orchestrator.PlaceOrder(context.Background(), lines)
	if err != nil {
		t.Fatalf("first placement failed: %v", err)
	}
	second, err := f.orchestrator.PlaceOrder(context.Background(), lines)
	if err != nil {
		t.Fatalf("second placement failed: %v", err)
	}
	if first.OrderNumber == second.OrderNumber || first.ID == second.ID {
		t.Fatalf("expected distinct orders, got %+v and %+v", first, second)
	}
}

func TestPlaceOrder_DroppedEventStillYieldsOrder(t *testing.T) {
	f := newFixture(t, map[string]int32{"A": 10})
	f.queue.reject = true

	order, err := f.orchestrator.PlaceOrder(context.Background(), []domain.OrderLine{{SKU: "A", Qty: 1}})
	if err != nil {
		t.Fatalf("publish failure must not fail the request: %v", err)
	}
	if _, err := f.repo.Get(context.Background(), order.ID); err != nil {
		t.Fatalf("order must stay persisted: %v", err)
	}
}

func TestPlaceOrder_PersistenceFailure(t *testing.T) {
	inv := inventory.NewMockService(map[string]int32{"A": 10})
	queue := &stubQueue{}
	gate := breaker.New(stock.NewChecker(inv, time.Second, quietLogger()), breaker.Config{}, quietLogger(), nil)
	admitter := NewAdmitter(&failingRepo{err: errors.New("db is down")}, queue, quietLogger())
	orchestrator := NewOrchestratorWithoutMetrics(gate, admitter, quietLogger())

	_, err := orchestrator.PlaceOrder(context.Background(), []domain.OrderLine{{SKU: "A", Qty: 1}})
	if !errors.Is(err, domain.ErrOrderPersistence) {
		t.Fatalf("expected ErrOrderPersistence, got %v", err)
	}
	if len(queue.published()) != 0 {
		t.Fatal("failed admission must not be announced")
	}
}

func TestPlaceOrder_InvalidLines(t *testing.T) {
	cases := []struct {
		name  string
		lines []domain.OrderLine
	}{
		{name: "empty", lines: nil},
		{name: "blank sku", lines: []domain.OrderLine{{SKU: "", Qty: 1}}},
		{name: "negative qty", lines: []domain.OrderLine{{SKU: "A", Qty: -1}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, map[string]int32{"A": 10})
			_, err := f.orchestrator.PlaceOrder(context.Background(), tc.lines)
			if !errors.Is(err, domain.ErrInvalidOrder) {
				t.Fatalf("expected ErrInvalidOrder, got %v", err)
			}
			if f.inventory.Calls() != 0 {
				t.Fatalf("invalid order must not reach inventory")
			}
		})
	}
}

func TestPlaceOrder_TrimsSKUBeforeStockCheck(t *testing.T) {
	f := newFixture(t, map[string]int32{"A": 5})

	order, err := f.orchestrator.PlaceOrder(context.Background(), []domain.OrderLine{{SKU: " A ", PriceMinor: 100, Qty: 2}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order.Lines[0].SKU != "A" {
		t.Fatalf("expected stored sku A, got %q", order.Lines[0].SKU)
	}
	if !f.breaker.Closed() {
		t.Fatal("breaker must stay closed for a well-formed request")
	}
}
