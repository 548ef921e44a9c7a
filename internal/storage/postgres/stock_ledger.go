package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
)

type stockLedger struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

// NewStockLedger создаёт реестр остатков поверх таблицы stock_levels.
func NewStockLedger(store *Store) domain.StockLedger {
	return &stockLedger{
		db: store.DB(),
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Available возвращает остаток по SKU без учёта регистра; неизвестный SKU: 0.
func (l *stockLedger) Available(ctx context.Context, sku string) (int32, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query, args, err := l.sb.Select("quantity").
		From("stock_levels").
		Where(sq.Expr("LOWER(sku_code) = LOWER(?)", strings.TrimSpace(sku))).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build stock query: %w", err)
	}

	var qty int32
	if err := l.db.QueryRowContext(ctx, query, args...).Scan(&qty); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("query stock level: %w", err)
	}
	return qty, nil
}

// Set записывает остаток; отрицательное значение сохраняется как 0.
func (l *stockLedger) Set(ctx context.Context, sku string, qty int32) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if qty < 0 {
		qty = 0
	}

	query, args, err := l.sb.Insert("stock_levels").
		Columns("sku_code", "quantity").
		Values(strings.TrimSpace(sku), qty).
		Suffix("ON CONFLICT ((LOWER(sku_code))) DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = NOW()").
		ToSql()
	if err != nil {
		return fmt.Errorf("build stock upsert: %w", err)
	}

	if _, err := l.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert stock level: %w", err)
	}
	return nil
}

var _ domain.StockLedger = (*stockLedger)(nil)
