package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
)

// stockLedgerInMemory хранит остатки склада в памяти. SKU сравниваются без учёта регистра.
type stockLedgerInMemory struct {
	mu    sync.RWMutex
	stock map[string]int32
}

// NewStockLedger возвращает пустой реестр остатков.
func NewStockLedger() domain.StockLedger {
	return &stockLedgerInMemory{stock: make(map[string]int32)}
}

func (l *stockLedgerInMemory) Available(_ context.Context, sku string) (int32, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.stock[strings.ToLower(sku)], nil
}

func (l *stockLedgerInMemory) Set(_ context.Context, sku string, qty int32) error {
	if qty < 0 {
		qty = 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stock[strings.ToLower(sku)] = qty
	return nil
}

var _ domain.StockLedger = (*stockLedgerInMemory)(nil)
