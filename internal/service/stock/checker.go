// Package stock выполняет проверку остатков одним сетевым вызовом к сервису склада.
package stock

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
)

const defaultTimeout = 2 * time.Second

var (
	// ErrEmptyRequest: пустой запрос отклоняется до сетевого вызова.
	ErrEmptyRequest = errors.New("stock check request must contain at least one line")
	// ErrCheckFailed: единая непрозрачная ошибка транспорта для breaker'а.
	ErrCheckFailed = errors.New("stock check failed")
)

// Checker выполняет ровно один вызов InventoryQueryService без внутренних повторов.
type Checker struct {
	inventory domain.InventoryQueryService
	timeout   time.Duration
	logger    *log.Entry
}

// NewChecker создаёт проверку остатков с таймаутом на вызов.
func NewChecker(inventory domain.InventoryQueryService, timeout time.Duration, logger *log.Entry) *Checker {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = log.New().WithField("component", "stock-checker")
	}
	return &Checker{inventory: inventory, timeout: timeout, logger: logger}
}

// Timeout возвращает таймаут одного вызова.
func (c *Checker) Timeout() time.Duration {
	return c.timeout
}

// Check возвращает по одной записи на позицию запроса в том же порядке либо ErrCheckFailed.
// Таймаут, отказ соединения и некорректный ответ неразличимы для вызывающего.
func (c *Checker) Check(ctx context.Context, req domain.StockCheckRequest) (domain.StockCheckResult, error) {
	if len(req.Items) == 0 {
		return domain.StockCheckResult{}, ErrEmptyRequest
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	result, err := c.inventory.CheckStock(callCtx, req)
	if err != nil {
		c.logger.WithError(err).WithField("items", len(req.Items)).Warn("inventory call failed")
		return domain.StockCheckResult{}, fmt.Errorf("%w: %v", ErrCheckFailed, err)
	}
	if err := result.Conforms(req); err != nil {
		c.logger.WithError(err).WithFields(log.Fields{
			"requested": len(req.Items),
			"returned":  len(result.Items),
		}).Warn("inventory returned malformed response")
		return domain.StockCheckResult{}, fmt.Errorf("%w: %w", ErrCheckFailed, err)
	}

	return result, nil
}
