package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
)

func sampleOrder(number string, createdAt time.Time) domain.Order {
	return domain.Order{
		OrderNumber: number,
		CreatedAt:   createdAt,
		Lines: []domain.OrderLine{
			{SKU: "IPHONE_13", PriceMinor: 120000, Qty: 1},
			{SKU: "GALAXY_S22", PriceMinor: 90000, Qty: 2},
		},
	}
}

func TestOrderRepository_PostgresCreateGetAndList(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)
	ctx := context.Background()

	now := time.Now().UTC().Round(time.Microsecond)
	first, err := repo.Create(ctx, sampleOrder("Order-AAA", now.Add(-2*time.Minute)))
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	second, err := repo.Create(ctx, sampleOrder("order-bbb", now.Add(-time.Minute)))
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if first.ID == "" || first.ID == second.ID {
		t.Fatalf("storage must assign distinct ids: %q %q", first.ID, second.ID)
	}

	got, err := repo.Get(ctx, first.ID)
	if err != nil {
		t.Fatalf("get first: %v", err)
	}
	if got.OrderNumber != "Order-AAA" || len(got.Lines) != 2 || got.Lines[1].Qty != 2 {
		t.Fatalf("unexpected order payload: %+v", got)
	}

	byNumber, err := repo.GetByNumber(ctx, "ORDER-aaa")
	if err != nil {
		t.Fatalf("get by number: %v", err)
	}
	if byNumber.ID != first.ID {
		t.Fatalf("case-insensitive lookup returned %s, want %s", byNumber.ID, first.ID)
	}

	listed, err := repo.List(ctx, 1)
	if err != nil {
		t.Fatalf("list with limit: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != second.ID {
		t.Fatalf("expected newest order first, got %+v", listed)
	}

	all, err := repo.List(ctx, 0)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(all))
	}
	for _, order := range all {
		if len(order.Lines) != 2 || order.Lines[0].SKU != "IPHONE_13" || order.Lines[1].SKU != "GALAXY_S22" {
			t.Fatalf("order %s has unexpected lines %+v", order.ID, order.Lines)
		}
	}
}

func TestOrderRepository_PostgresNumberConflictAndNotFound(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)
	ctx := context.Background()

	if _, err := repo.Create(ctx, sampleOrder("dup-1", time.Now().UTC())); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := repo.Create(ctx, sampleOrder("DUP-1", time.Now().UTC())); !errors.Is(err, domain.ErrOrderNumberConflict) {
		t.Fatalf("expected ErrOrderNumberConflict, got %v", err)
	}

	if _, err := repo.Get(ctx, "999999"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
	if _, err := repo.Get(ctx, "not-a-number"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound for malformed id, got %v", err)
	}
	if _, err := repo.GetByNumber(ctx, "missing"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestStockLedger_PostgresSetAndAvailable(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	ledger := NewStockLedger(store)
	ctx := context.Background()

	if err := ledger.Set(ctx, "IPHONE_13", 5); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := ledger.Set(ctx, "iphone_13", 7); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	qty, err := ledger.Available(ctx, "Iphone_13")
	if err != nil {
		t.Fatalf("available: %v", err)
	}
	if qty != 7 {
		t.Fatalf("expected 7, got %d", qty)
	}

	qty, err = ledger.Available(ctx, "unknown")
	if err != nil {
		t.Fatalf("available unknown: %v", err)
	}
	if qty != 0 {
		t.Fatalf("unknown sku must have 0, got %d", qty)
	}
}
