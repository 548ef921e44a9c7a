package memory

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
)

// orderRepositoryInMemory: простая in-memory реализация OrderRepository.
type orderRepositoryInMemory struct {
	mu       sync.RWMutex
	seq      int64
	items    map[string]domain.Order
	byNumber map[string]string
}

// NewOrderRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewOrderRepository() domain.OrderRepository {
	return &orderRepositoryInMemory{
		items:    make(map[string]domain.Order),
		byNumber: make(map[string]string),
	}
}

// Create назначает заказу последовательный ID и сохраняет его, если номер ещё не занят.
func (r *orderRepositoryInMemory) Create(_ context.Context, order domain.Order) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(order.OrderNumber)
	if _, exists := r.byNumber[key]; exists {
		return domain.Order{}, domain.ErrOrderNumberConflict
	}

	r.seq++
	order.ID = strconv.FormatInt(r.seq, 10)
	// Сохраняем копию, чтобы избежать непредсказуемых мутаций извне.
	order.Lines = domain.CloneLines(order.Lines)
	r.items[order.ID] = order
	r.byNumber[key] = order.ID

	return cloneOrder(order), nil
}

// Get возвращает заказ или ErrOrderNotFound, если его нет.
func (r *orderRepositoryInMemory) Get(_ context.Context, id string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.items[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

// GetByNumber ищет заказ по номеру без учёта регистра.
func (r *orderRepositoryInMemory) GetByNumber(_ context.Context, orderNumber string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byNumber[strings.ToLower(orderNumber)]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(r.items[id]), nil
}

// List возвращает последние заказы, ограничивая выборку limit (если >0).
func (r *orderRepositoryInMemory) List(_ context.Context, limit int) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Order, 0, len(r.items))
	for _, order := range r.items {
		result = append(result, cloneOrder(order))
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return idLess(result[j].ID, result[i].ID)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

func cloneOrder(order domain.Order) domain.Order {
	order.Lines = domain.CloneLines(order.Lines)
	return order
}

func idLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
