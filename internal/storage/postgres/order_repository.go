package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
)

const (
	opTimeout = 5 * time.Second

	pgUniqueViolation = "23505"
)

type orderRepository struct {
	store *Store
	db    *sql.DB
	sb    sq.StatementBuilderType
}

// NewOrderRepository создаёт PostgreSQL-реализацию OrderRepository.
func NewOrderRepository(store *Store) domain.OrderRepository {
	return &orderRepository{
		store: store,
		db:    store.DB(),
		sb:    sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Create сохраняет заказ и его позиции в одной транзакции; ID назначает база.
func (r *orderRepository) Create(ctx context.Context, order domain.Order) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	createdAt := order.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	var id int64
	err := r.store.InTx(ctx, func(tx *sql.Tx) error {
		query, args, err := r.sb.Insert("orders").
			Columns("order_number", "created_at").
			Values(order.OrderNumber, createdAt).
			Suffix("RETURNING id").
			ToSql()
		if err != nil {
			return fmt.Errorf("build insert order: %w", err)
		}

		if err := tx.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
			if isUniqueViolation(err) {
				return domain.ErrOrderNumberConflict
			}
			return fmt.Errorf("insert order: %w", err)
		}

		if len(order.Lines) == 0 {
			return nil
		}
		insertLines := r.sb.Insert("order_lines").Columns("order_id", "position", "sku_code", "price_minor", "quantity")
		for idx, line := range order.Lines {
			insertLines = insertLines.Values(id, idx, line.SKU, line.PriceMinor, line.Qty)
		}
		query, args, err = insertLines.ToSql()
		if err != nil {
			return fmt.Errorf("build insert order lines: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("insert order lines: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	order.ID = strconv.FormatInt(id, 10)
	order.CreatedAt = createdAt
	order.Lines = domain.CloneLines(order.Lines)
	return order, nil
}

func (r *orderRepository) Get(ctx context.Context, id string) (domain.Order, error) {
	numericID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return r.getOne(ctx, sq.Eq{"id": numericID})
}

// GetByNumber ищет заказ по номеру без учёта регистра.
func (r *orderRepository) GetByNumber(ctx context.Context, orderNumber string) (domain.Order, error) {
	return r.getOne(ctx, sq.Expr("LOWER(order_number) = LOWER(?)", orderNumber))
}

func (r *orderRepository) List(ctx context.Context, limit int) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	builder := r.sb.Select("id", "order_number", "created_at").
		From("orders").
		OrderBy("created_at DESC", "id DESC")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list orders: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orders: %w", err)
	}

	if err := r.attachLines(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *orderRepository) getOne(ctx context.Context, where sq.Sqlizer) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	query, args, err := r.sb.Select("id", "order_number", "created_at").
		From("orders").
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		return domain.Order{}, fmt.Errorf("build get order: %w", err)
	}

	order, err := scanOrder(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return domain.Order{}, err
	}

	orders := []domain.Order{order}
	if err := r.attachLines(ctx, orders); err != nil {
		return domain.Order{}, err
	}
	return orders[0], nil
}

// attachLines загружает позиции всех заказов одним запросом.
func (r *orderRepository) attachLines(ctx context.Context, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(orders))
	index := make(map[int64]int, len(orders))
	for i, order := range orders {
		id, err := strconv.ParseInt(order.ID, 10, 64)
		if err != nil {
			return fmt.Errorf("parse order id %q: %w", order.ID, err)
		}
		ids = append(ids, id)
		index[id] = i
	}

	query, args, err := linesQuery(r.sb, ids)
	if err != nil {
		return fmt.Errorf("build load order lines: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("load order lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID int64
			line    domain.OrderLine
		)
		if err := rows.Scan(&orderID, &line.SKU, &line.PriceMinor, &line.Qty); err != nil {
			return fmt.Errorf("scan order line: %w", err)
		}
		if i, ok := index[orderID]; ok {
			orders[i].Lines = append(orders[i].Lines, line)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate order lines: %w", err)
	}
	return nil
}

func linesQuery(sb sq.StatementBuilderType, ids []int64) (string, []any, error) {
	return sb.Select("order_id", "sku_code", "price_minor", "quantity").
		From("order_lines").
		Where(sq.Expr("order_id = ANY(?)", ids)).
		OrderBy("order_id", "position").
		ToSql()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (domain.Order, error) {
	var (
		id    int64
		order domain.Order
	)
	if err := row.Scan(&id, &order.OrderNumber, &order.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("scan order: %w", err)
	}
	order.ID = strconv.FormatInt(id, 10)
	order.CreatedAt = order.CreatedAt.UTC()
	return order, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}

var _ domain.OrderRepository = (*orderRepository)(nil)
