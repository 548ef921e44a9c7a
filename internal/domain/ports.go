package domain

import "context"

// InventoryQueryService: сетевой сервис склада, отвечающий на запросы остатков.
type InventoryQueryService interface {
	// CheckStock возвращает по одной записи на каждую позицию запроса в том же порядке.
	CheckStock(ctx context.Context, req StockCheckRequest) (StockCheckResult, error)
}

// StockLedger: хранилище остатков на стороне склада.
type StockLedger interface {
	// Available возвращает доступное количество; неизвестный SKU даёт 0.
	Available(ctx context.Context, sku string) (int32, error)
	// Set задаёт остаток по SKU.
	Set(ctx context.Context, sku string, qty int32) error
}

// EventSink принимает факт о размещении заказа. Семантика fire-and-forget.
type EventSink interface {
	Publish(ctx context.Context, fact OrderPlacedFact) error
}

// PlacementStep задаёт константы шагов оркестратора для метрик/логов.
type PlacementStep string

const (
	PlacementStepCheckStock PlacementStep = "check_stock"
	PlacementStepDecide     PlacementStep = "decide"
	PlacementStepAdmit      PlacementStep = "admit"
	PlacementStepPublish    PlacementStep = "publish"
)

// PlacementOutcome: итог обработки запроса на размещение.
type PlacementOutcome string

const (
	PlacementOutcomePlaced      PlacementOutcome = "placed"
	PlacementOutcomeRejected    PlacementOutcome = "rejected"
	PlacementOutcomeUnavailable PlacementOutcome = "unavailable"
	PlacementOutcomeInvalid     PlacementOutcome = "invalid"
	PlacementOutcomeFailed      PlacementOutcome = "failed"
)
