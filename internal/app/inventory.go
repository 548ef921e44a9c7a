package app

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	apiv1 "github.com/vladislavdragonenkov/ordersvc/api/v1"
	healthcheck "github.com/vladislavdragonenkov/ordersvc/internal/health"
	grpcsvc "github.com/vladislavdragonenkov/ordersvc/internal/service/grpc"
	"github.com/vladislavdragonenkov/ordersvc/internal/service/inventory"
	"github.com/vladislavdragonenkov/ordersvc/internal/tracing"
	"github.com/vladislavdragonenkov/ordersvc/internal/version"
)

// InventoryApp: собранный сервис склада.
type InventoryApp struct {
	logger  *log.Entry
	store   *storage
	servers *serveSet
	tracer  *tracing.Provider
}

// NewInventory открывает реестр остатков, засевает его и открывает сокеты.
func NewInventory(ctx context.Context, cfg InventoryConfig) (*InventoryApp, error) {
	logger := log.WithField("component", "inventory-app")
	if err := cfg.StorageConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := cfg.Tracing.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	seed, err := inventory.ParseSeed(cfg.Seed)
	if err != nil {
		return nil, fmt.Errorf("parse inventory seed: %w", err)
	}

	store, err := openStorage(ctx, cfg.StorageConfig, logger)
	if err != nil {
		return nil, err
	}
	if err := inventory.Seed(ctx, store.Ledger, seed); err != nil {
		_ = store.Close()
		return nil, err
	}
	if len(seed) > 0 {
		logger.WithField("skus", len(seed)).Info("stock ledger seeded")
	}

	servers := newServeSet(logger, 0)
	service := grpcsvc.NewInventoryService(inventory.NewLedgerService(store.Ledger, logger.WithField("layer", "ledger")), logger.WithField("layer", "grpc"))
	apiv1.RegisterInventoryServiceServer(servers.grpcServer, service)

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	healthHandler.RegisterChecker("storage", store.Checker)

	tracer, err := tracing.Setup(cfg.Tracing, "inventory-service", logger.WithField("layer", "tracing"))
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	if err := servers.listen(cfg.GRPCAddr, cfg.MetricsAddr, healthHandler); err != nil {
		_ = store.Close()
		shutdownTracing(tracer, logger)
		return nil, err
	}

	return &InventoryApp{logger: logger, store: store, servers: servers, tracer: tracer}, nil
}

// GRPCAddr возвращает фактический адрес gRPC сервера.
func (a *InventoryApp) GRPCAddr() string {
	return a.servers.grpcLis.Addr().String()
}

// Run обслуживает запросы до отмены ctx.
func (a *InventoryApp) Run(ctx context.Context) error {
	defer shutdownTracing(a.tracer, a.logger)
	defer func() {
		if err := a.store.Close(); err != nil {
			a.logger.WithError(err).Warn("failed to close storage")
		}
	}()

	a.logger.WithField("grpc_addr", a.GRPCAddr()).Info(version.Banner("inventory-service"))
	return a.servers.run(ctx)
}

// RunInventory собирает и запускает сервис склада.
func RunInventory(ctx context.Context, cfg InventoryConfig) error {
	a, err := NewInventory(ctx, cfg)
	if err != nil {
		return err
	}
	return a.Run(ctx)
}
