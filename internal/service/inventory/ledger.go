package inventory

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
)

// LedgerService отвечает на запросы остатков по складскому реестру. Работает на стороне склада.
type LedgerService struct {
	ledger domain.StockLedger
	logger *log.Entry
}

// NewLedgerService создаёт сервис поверх реестра остатков.
func NewLedgerService(ledger domain.StockLedger, logger *log.Entry) *LedgerService {
	if logger == nil {
		logger = log.New().WithField("component", "inventory-ledger")
	}
	return &LedgerService{ledger: ledger, logger: logger}
}

// CheckStock возвращает по одной записи на позицию запроса в том же порядке.
func (s *LedgerService) CheckStock(ctx context.Context, req domain.StockCheckRequest) (domain.StockCheckResult, error) {
	items := make([]domain.StockLevel, 0, len(req.Items))
	for _, query := range req.Items {
		available, err := s.ledger.Available(ctx, query.SKU)
		if err != nil {
			return domain.StockCheckResult{}, fmt.Errorf("read stock for %s: %w", query.SKU, err)
		}
		items = append(items, domain.NewStockLevel(query.SKU, query.RequiredQty, available))
	}

	s.logger.WithField("items", len(items)).Debug("stock check answered")
	return domain.StockCheckResult{Items: items}, nil
}

// Seed заносит остатки в реестр.
func Seed(ctx context.Context, ledger domain.StockLedger, stock map[string]int32) error {
	for sku, qty := range stock {
		if err := ledger.Set(ctx, sku, qty); err != nil {
			return fmt.Errorf("seed %s: %w", sku, err)
		}
	}
	return nil
}

// ParseSeed разбирает строку вида "SKU=qty,SKU2=qty2".
func ParseSeed(raw string) (map[string]int32, error) {
	out := make(map[string]int32)
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		sku, qtyRaw, ok := strings.Cut(pair, "=")
		sku = strings.TrimSpace(sku)
		if !ok || sku == "" {
			return nil, fmt.Errorf("invalid seed entry %q: expected SKU=qty", pair)
		}
		qty, err := strconv.ParseInt(strings.TrimSpace(qtyRaw), 10, 32)
		if err != nil || qty < 0 {
			return nil, fmt.Errorf("invalid seed quantity in %q", pair)
		}
		out[sku] = int32(qty)
	}
	return out, nil
}

var _ domain.InventoryQueryService = (*LedgerService)(nil)
