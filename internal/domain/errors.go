package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// UnavailableUserMessage: сообщение для клиента, когда склад недоступен.
const UnavailableUserMessage = "inventory service unavailable, please try again later"

var (
	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrLinesRequired = errors.New("order must contain at least one line")
	// Ошибка отсутствующего SKU в позиции.
	ErrLineSKURequired = errors.New("line sku is required")
	// Ошибка отрицательного количества в позиции.
	ErrLineQtyInvalid = errors.New("line qty must be non-negative")
	// Ошибка отрицательной цены позиции.
	ErrLinePriceInvalid = errors.New("line price must be non-negative")
	// Ошибка отсутствующего номера у допущенного заказа.
	ErrOrderNumberRequired = errors.New("order_number is required")
	// ErrInvalidOrder оборачивает все ошибки валидации входного заказа.
	ErrInvalidOrder = errors.New("invalid order")

	// ErrInventoryServiceUnavailable: склад недоступен или breaker открыт; можно повторить позже.
	ErrInventoryServiceUnavailable = errors.New("inventory service unavailable")
	// ErrProductsNotInStock: часть позиций отсутствует в нужном количестве.
	ErrProductsNotInStock = errors.New("products not in stock")
	// ErrOrderPersistence: заказ не удалось сохранить.
	ErrOrderPersistence = errors.New("order persistence failure")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderNumberConflict: номер заказа уже занят.
	ErrOrderNumberConflict = errors.New("order number conflict")
	// ErrMalformedStockResponse: ответ склада не соответствует запросу.
	ErrMalformedStockResponse = errors.New("malformed stock response")
	// ErrEventPublish: событие не удалось передать во внешний брокер.
	ErrEventPublish = errors.New("event publish failed")
)

// NotInStockError описывает отказ в допуске с перечнем недостающих позиций.
type NotInStockError struct {
	Decision AdmissionDecision
}

func (e *NotInStockError) Error() string {
	short := e.Decision.Shortfalls()
	parts := make([]string, 0, len(short))
	for _, level := range short {
		parts = append(parts, fmt.Sprintf("%s (required %d, available %d)", level.SKU, level.RequiredQty, level.AvailableQty))
	}
	return fmt.Sprintf("%s: %s", ErrProductsNotInStock, strings.Join(parts, ", "))
}

func (e *NotInStockError) Unwrap() error {
	return ErrProductsNotInStock
}

// UnavailableError описывает недоступность склада. Детали транспорта не сохраняются.
type UnavailableError struct {
	Reason     string
	RetryAfter time.Duration
}

func (e *UnavailableError) Error() string {
	return UnavailableUserMessage
}

func (e *UnavailableError) Unwrap() error {
	return ErrInventoryServiceUnavailable
}

// IsRetryable сообщает, имеет ли смысл повторить запрос без изменений.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrInventoryServiceUnavailable)
}
