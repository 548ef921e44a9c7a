package breaker

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
	"github.com/vladislavdragonenkov/ordersvc/internal/service/inventory"
	"github.com/vladislavdragonenkov/ordersvc/internal/service/stock"
)

func quietLogger() *log.Entry {
	logger := log.New()
	logger.SetLevel(log.WarnLevel)
	return logger.WithField("component", "breaker-test")
}

func testRequest() domain.StockCheckRequest {
	return domain.NewStockCheckRequest([]domain.OrderLine{{SKU: "A", Qty: 1}})
}

func newTestBreaker(t *testing.T, mock *inventory.MockService, cfg Config) *StockBreaker {
	t.Helper()
	checker := stock.NewChecker(mock, time.Second, quietLogger())
	return New(checker, cfg, quietLogger(), metrics.NewPlacementMetricsWithRegisterer(prometheus.NewRegistry()))
}

func testConfig() Config {
	return Config{
		FailureThreshold: 3,
		FailureRatio:     1,
		MinRequests:      100,
		Cooldown:         50 * time.Millisecond,
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestStockBreaker_PassThroughWhenClosed(t *testing.T) {
	mock := inventory.NewMockService(map[string]int32{"A": 5})
	b := newTestBreaker(t, mock, testConfig())

	outcome := b.Check(context.Background(), testRequest())
	if outcome.Kind != domain.StockOutcomeOK {
		t.Fatalf("expected OK outcome, got %+v", outcome)
	}
	if !outcome.Result.Items[0].InStock {
		t.Fatalf("unexpected result %+v", outcome.Result)
	}
	if b.State() != "closed" || !b.Closed() {
		t.Fatalf("expected closed breaker, got %s", b.State())
	}
}

func TestStockBreaker_TransportFailureFallsBackToUnavailable(t *testing.T) {
	mock := inventory.NewMockService(map[string]int32{"A": 5})
	mock.SetError(errors.New("connection refused"))
	b := newTestBreaker(t, mock, testConfig())

	outcome := b.Check(context.Background(), testRequest())
	if outcome.Kind != domain.StockOutcomeUnavailable || outcome.Reason != domain.UnavailableReasonTransport {
		t.Fatalf("expected transport unavailable, got %+v", outcome)
	}
}

func TestStockBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	mock := inventory.NewMockService(map[string]int32{"A": 5})
	mock.SetError(errors.New("connection refused"))
	b := newTestBreaker(t, mock, testConfig())

	for i := 0; i < 3; i++ {
		b.Check(context.Background(), testRequest())
	}
	if b.State() != "open" {
		t.Fatalf("expected open breaker, got %s", b.State())
	}

	outcome := b.Check(context.Background(), testRequest())
	if outcome.Kind != domain.StockOutcomeUnavailable || outcome.Reason != domain.UnavailableReasonCircuitOpen {
		t.Fatalf("expected circuit-open fallback, got %+v", outcome)
	}
	if mock.Calls() != 3 {
		t.Fatalf("open breaker must not call inventory, calls=%d", mock.Calls())
	}
}

func TestStockBreaker_OpensOnFailureRatio(t *testing.T) {
	mock := inventory.NewMockService(map[string]int32{"A": 5})
	b := newTestBreaker(t, mock, Config{
		FailureThreshold: 100,
		FailureRatio:     0.5,
		MinRequests:      4,
		Cooldown:         time.Minute,
	})

	b.Check(context.Background(), testRequest())
	b.Check(context.Background(), testRequest())
	mock.SetError(errors.New("timeout"))
	b.Check(context.Background(), testRequest())
	if b.State() != "closed" {
		t.Fatalf("breaker must stay closed below min requests, got %s", b.State())
	}
	b.Check(context.Background(), testRequest())
	if b.State() != "open" {
		t.Fatalf("expected open breaker at 50%% failures, got %s", b.State())
	}
}

func TestStockBreaker_SingleTrialAfterCooldown(t *testing.T) {
	mock := inventory.NewMockService(map[string]int32{"A": 5})
	mock.SetError(errors.New("connection refused"))
	b := newTestBreaker(t, mock, testConfig())
	for i := 0; i < 3; i++ {
		b.Check(context.Background(), testRequest())
	}

	mock.SetError(nil)
	mock.SetDelay(100 * time.Millisecond)
	waitFor(t, func() bool { return b.State() == "half-open" })

	var (
		wg       sync.WaitGroup
		outcomes [2]domain.StockOutcome
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		outcomes[0] = b.Check(context.Background(), testRequest())
	}()
	waitFor(t, func() bool { return mock.Calls() == 4 })
	outcomes[1] = b.Check(context.Background(), testRequest())
	wg.Wait()

	if outcomes[0].Kind != domain.StockOutcomeOK {
		t.Fatalf("trial call should succeed, got %+v", outcomes[0])
	}
	if outcomes[1].Kind != domain.StockOutcomeUnavailable || outcomes[1].Reason != domain.UnavailableReasonTrialBusy {
		t.Fatalf("second call during trial call must be rejected, got %+v", outcomes[1])
	}
	if mock.Calls() != 4 {
		t.Fatalf("expected exactly one trial call, calls=%d", mock.Calls())
	}
	if b.State() != "closed" {
		t.Fatalf("successful trial call must close breaker, got %s", b.State())
	}
}

func TestStockBreaker_FailedTrialReopens(t *testing.T) {
	mock := inventory.NewMockService(map[string]int32{"A": 5})
	mock.SetError(errors.New("connection refused"))
	b := newTestBreaker(t, mock, testConfig())
	for i := 0; i < 3; i++ {
		b.Check(context.Background(), testRequest())
	}

	waitFor(t, func() bool { return b.State() == "half-open" })
	outcome := b.Check(context.Background(), testRequest())
	if outcome.Reason != domain.UnavailableReasonTransport {
		t.Fatalf("expected failed trial call, got %+v", outcome)
	}
	if b.State() != "open" {
		t.Fatalf("failed trial call must reopen breaker, got %s", b.State())
	}
}

func TestStockBreaker_CallerCancellationStillRecordsOutcome(t *testing.T) {
	mock := inventory.NewMockService(map[string]int32{"A": 5})
	mock.SetError(errors.New("connection refused"))
	mock.SetDelay(50 * time.Millisecond)
	b := newTestBreaker(t, mock, Config{FailureThreshold: 1, FailureRatio: 1, MinRequests: 100, Cooldown: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	started := time.Now()
	outcome := b.Check(ctx, testRequest())
	if outcome.Kind != domain.StockOutcomeUnavailable || outcome.Reason != domain.UnavailableReasonCanceled {
		t.Fatalf("expected canceled outcome, got %+v", outcome)
	}
	if time.Since(started) >= 50*time.Millisecond {
		t.Fatalf("canceled caller must not wait for the inventory call")
	}

	waitFor(t, func() bool { return b.State() == "open" })
	if mock.Calls() != 1 {
		t.Fatalf("expected one inventory call, got %d", mock.Calls())
	}
}

func TestStockBreaker_CanceledBeforeStartSkipsCall(t *testing.T) {
	mock := inventory.NewMockService(map[string]int32{"A": 5})
	b := newTestBreaker(t, mock, testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome := b.Check(ctx, testRequest())
	if outcome.Reason != domain.UnavailableReasonCanceled {
		t.Fatalf("expected canceled outcome, got %+v", outcome)
	}
	if mock.Calls() != 0 {
		t.Fatalf("expected no inventory call, got %d", mock.Calls())
	}
}

func TestConfigWithDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	if cfg != DefaultConfig() {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}
