package domain

import "strings"

// StockQuery: запрос наличия по одной позиции.
type StockQuery struct {
	SKU         string
	RequiredQty int32
}

// StockCheckRequest: упорядоченный список запросов; порядок сохраняется в ответе.
type StockCheckRequest struct {
	Items []StockQuery
}

// NewStockCheckRequest строит запрос проверки остатков из позиций заказа.
func NewStockCheckRequest(lines []OrderLine) StockCheckRequest {
	items := make([]StockQuery, 0, len(lines))
	for _, line := range lines {
		items = append(items, StockQuery{SKU: strings.TrimSpace(line.SKU), RequiredQty: line.Qty})
	}
	return StockCheckRequest{Items: items}
}

// StockLevel: ответ склада по одной позиции.
// Инвариант: InStock == (AvailableQty >= RequiredQty).
type StockLevel struct {
	SKU          string
	RequiredQty  int32
	AvailableQty int32
	InStock      bool
}

// NewStockLevel собирает StockLevel с соблюдением инварианта. Используется стороной склада.
func NewStockLevel(sku string, required, available int32) StockLevel {
	if available < 0 {
		available = 0
	}
	return StockLevel{
		SKU:          sku,
		RequiredQty:  required,
		AvailableQty: available,
		InStock:      available >= required,
	}
}

// Shortage возвращает, сколько единиц не хватает для позиции.
func (l StockLevel) Shortage() int32 {
	if l.InStock {
		return 0
	}
	return l.RequiredQty - l.AvailableQty
}

// StockCheckResult содержит ответ склада, по одной записи на каждую позицию запроса.
type StockCheckResult struct {
	Items []StockLevel
}

// Conforms проверяет, что ответ соответствует запросу: та же длина, тот же порядок SKU,
// те же количества и соблюдённый инвариант InStock.
func (r StockCheckResult) Conforms(req StockCheckRequest) error {
	if len(r.Items) != len(req.Items) {
		return ErrMalformedStockResponse
	}
	for i, level := range r.Items {
		query := req.Items[i]
		if level.SKU != query.SKU || level.RequiredQty != query.RequiredQty {
			return ErrMalformedStockResponse
		}
		if level.AvailableQty < 0 || level.InStock != (level.AvailableQty >= level.RequiredQty) {
			return ErrMalformedStockResponse
		}
	}
	return nil
}

// AdmissionDecision: производное решение о допуске заказа, нигде не хранится.
type AdmissionDecision struct {
	AllInStock bool
	// Result сохраняется целиком, чтобы вызывающий мог показать, чего именно не хватило.
	Result StockCheckResult
}

// Decide вычисляет решение о допуске: достаточно одной позиции без остатка, чтобы отклонить заказ.
func Decide(result StockCheckResult) AdmissionDecision {
	all := true
	for _, level := range result.Items {
		if !level.InStock {
			all = false
			break
		}
	}
	return AdmissionDecision{AllInStock: all, Result: result}
}

// Shortfalls возвращает только позиции, которых нет в нужном количестве.
func (d AdmissionDecision) Shortfalls() []StockLevel {
	var out []StockLevel
	for _, level := range d.Result.Items {
		if !level.InStock {
			out = append(out, level)
		}
	}
	return out
}

// StockOutcomeKind различает исходы проверки остатков.
type StockOutcomeKind int

const (
	// StockOutcomeOK: склад ответил, результат можно использовать.
	StockOutcomeOK StockOutcomeKind = iota
	// StockOutcomeUnavailable: склад недоступен (транспорт, открытый breaker, отмена).
	StockOutcomeUnavailable
)

// Причины недоступности склада для логов и метрик.
const (
	UnavailableReasonTransport   = "transport"
	UnavailableReasonCircuitOpen = "circuit_open"
	UnavailableReasonTrialBusy   = "trial_in_flight"
	UnavailableReasonCanceled    = "canceled"
)

// StockOutcome описывает tagged-результат проверки остатков: либо OK(Result), либо Unavailable.
type StockOutcome struct {
	Kind   StockOutcomeKind
	Result StockCheckResult
	// Reason заполняется только для StockOutcomeUnavailable.
	Reason string
}

// StockAvailable оборачивает успешный ответ склада.
func StockAvailable(result StockCheckResult) StockOutcome {
	return StockOutcome{Kind: StockOutcomeOK, Result: result}
}

// StockUnavailable описывает недоступность склада без деталей транспорта.
func StockUnavailable(reason string) StockOutcome {
	return StockOutcome{Kind: StockOutcomeUnavailable, Reason: reason}
}
