package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/ordersvc/internal/health"
	"github.com/vladislavdragonenkov/ordersvc/internal/storage/memory"
	"github.com/vladislavdragonenkov/ordersvc/internal/storage/postgres"
)

// storage объединяет репозитории выбранного драйвера.
type storage struct {
	Orders  domain.OrderRepository
	Ledger  domain.StockLedger
	Checker healthcheck.Checker
	close   func() error
}

func (s *storage) Close() error {
	if s == nil || s.close == nil {
		return nil
	}
	return s.close()
}

// openStorage открывает хранилище по драйверу и при необходимости применяет миграции.
func openStorage(ctx context.Context, cfg StorageConfig, logger *log.Entry) (*storage, error) {
	switch cfg.StorageDriver {
	case StorageDriverMemory:
		logger.Info("using in-memory storage")
		return &storage{
			Orders: memory.NewOrderRepository(),
			Ledger: memory.NewStockLedger(),
			Checker: healthcheck.NewSimpleChecker("storage", func(context.Context) error {
				return nil
			}),
		}, nil

	case StorageDriverPostgres:
		store, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if cfg.PostgresAutoMigrate {
			if err := store.MigrateUp(ctx, 0); err != nil {
				_ = store.Close()
				return nil, fmt.Errorf("apply migrations: %w", err)
			}
			logger.Info("postgres migrations applied")
		}
		logger.Info("using postgres storage")
		return &storage{
			Orders:  postgres.NewOrderRepository(store),
			Ledger:  postgres.NewStockLedger(store),
			Checker: healthcheck.NewSimpleChecker("storage", store.Ping),
			close:   store.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}
