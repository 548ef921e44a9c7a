package inventory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
)

// MockService: конфигурируемая заглушка InventoryQueryService для тестов и локального запуска.
type MockService struct {
	mu     sync.Mutex
	stock  map[string]int32
	err    error
	delay  time.Duration
	calls  int
	result *domain.StockCheckResult
}

// NewMockService возвращает mock с заданными остатками; неизвестный SKU даёт 0.
func NewMockService(stock map[string]int32) *MockService {
	m := &MockService{stock: make(map[string]int32, len(stock))}
	for sku, qty := range stock {
		m.stock[strings.ToLower(sku)] = qty
	}
	return m
}

// SetError заставляет каждый следующий вызов возвращать err (nil снимает ошибку).
func (m *MockService) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// SetDelay задаёт задержку ответа; задержка прерывается отменой ctx.
func (m *MockService) SetDelay(delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = delay
}

// SetResult подменяет ответ целиком, в том числе некорректным.
func (m *MockService) SetResult(result *domain.StockCheckResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.result = result
}

// SetStock задаёт остаток по SKU.
func (m *MockService) SetStock(sku string, qty int32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stock[strings.ToLower(sku)] = qty
}

// Calls возвращает число обращений к сервису.
func (m *MockService) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// CheckStock отвечает по настроенным остаткам.
func (m *MockService) CheckStock(ctx context.Context, req domain.StockCheckRequest) (domain.StockCheckResult, error) {
	m.mu.Lock()
	m.calls++
	delay, err, override := m.delay, m.err, m.result
	m.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return domain.StockCheckResult{}, ctx.Err()
		case <-timer.C:
		}
	}
	if err != nil {
		return domain.StockCheckResult{}, err
	}
	if override != nil {
		return *override, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]domain.StockLevel, 0, len(req.Items))
	for _, query := range req.Items {
		items = append(items, domain.NewStockLevel(query.SKU, query.RequiredQty, m.stock[strings.ToLower(query.SKU)]))
	}
	return domain.StockCheckResult{Items: items}, nil
}

var _ domain.InventoryQueryService = (*MockService)(nil)
