package domain

import "context"

// OrderRepository описывает требования к хранилищу заказов. Заказы только добавляются.
type OrderRepository interface {
	// Create сохраняет новый заказ, назначает ID и возвращает сохранённую запись.
	// Возвращает ErrOrderNumberConflict, если номер уже занят.
	Create(ctx context.Context, order Order) (Order, error)
	// Get возвращает заказ по идентификатору или ErrOrderNotFound, если его нет.
	Get(ctx context.Context, id string) (Order, error)
	// GetByNumber ищет заказ по номеру без учёта регистра.
	GetByNumber(ctx context.Context, orderNumber string) (Order, error)
	// List возвращает последние заказы, новые первыми.
	List(ctx context.Context, limit int) ([]Order, error)
}
