package app

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/ordersvc/internal/health"
	"github.com/vladislavdragonenkov/ordersvc/internal/service/inventory"
	"github.com/vladislavdragonenkov/ordersvc/internal/tracing"
)

// Dependencies содержит внешние зависимости сервиса заказов.
type Dependencies struct {
	Repo           domain.OrderRepository
	Inventory      domain.InventoryQueryService
	Sink           domain.EventSink
	StorageChecker healthcheck.Checker
	Logger         *log.Entry

	closers []func()
}

// NewDependencies открывает хранилище, подключает склад и брокер событий.
// Без InventoryAddr используется mock-склад с остатками из InventorySeed.
func NewDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*Dependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}
	deps := &Dependencies{Logger: logger}

	store, err := openStorage(ctx, cfg.StorageConfig, logger)
	if err != nil {
		return nil, err
	}
	deps.Repo = store.Orders
	deps.StorageChecker = store.Checker
	deps.closers = append(deps.closers, func() {
		if err := store.Close(); err != nil {
			logger.WithError(err).Warn("failed to close storage")
		}
	})

	inv, closeInv, err := initInventory(cfg, logger)
	if err != nil {
		deps.Close()
		return nil, err
	}
	deps.Inventory = inv
	deps.closers = append(deps.closers, closeInv)

	sink, closeSink, err := initEventSink(cfg, logger)
	if err != nil {
		deps.Close()
		return nil, fmt.Errorf("init event sink: %w", err)
	}
	deps.Sink = sink
	deps.closers = append(deps.closers, closeSink)

	return deps, nil
}

// Close освобождает ресурсы в обратном порядке.
func (d *Dependencies) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
	d.closers = nil
}

func initInventory(cfg Config, logger *log.Entry) (domain.InventoryQueryService, func(), error) {
	addr := strings.TrimSpace(cfg.InventoryAddr)
	if addr == "" {
		seed, err := inventory.ParseSeed(cfg.InventorySeed)
		if err != nil {
			return nil, nil, fmt.Errorf("parse inventory seed: %w", err)
		}
		logger.WithField("skus", len(seed)).Warn("inventory address is empty, using mock inventory")
		return inventory.NewMockService(seed), func() {}, nil
	}

	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(tracing.UnaryClientInterceptor()),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("create inventory client: %w", err)
	}
	logger.WithField("inventory_addr", addr).Info("inventory client initialized")

	return inventory.NewClient(conn), func() {
		if err := conn.Close(); err != nil {
			logger.WithError(err).Warn("failed to close inventory connection")
		}
	}, nil
}
