package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersvc/internal/app"
	"github.com/vladislavdragonenkov/ordersvc/internal/envconfig"
)

const (
	envGRPCAddr            = "INVENTORY_GRPC_ADDR"
	envMetricsAddr         = "INVENTORY_METRICS_ADDR"
	envStorageDriver       = "INVENTORY_STORAGE_DRIVER"
	envPostgresDSN         = "INVENTORY_POSTGRES_DSN"
	envPostgresAutoMigrate = "INVENTORY_POSTGRES_AUTO_MIGRATE"
	envSeed                = "INVENTORY_SEED"
)

func readConfigFromEnv(lookup envconfig.Lookup) (app.InventoryConfig, []string) {
	cfg := app.DefaultInventoryConfig()
	r := envconfig.NewReader(lookup)

	r.String(envGRPCAddr, &cfg.GRPCAddr)
	r.String(envMetricsAddr, &cfg.MetricsAddr)
	r.Lower(envStorageDriver, &cfg.StorageDriver)
	r.String(envPostgresDSN, &cfg.PostgresDSN)
	r.Bool(envPostgresAutoMigrate, &cfg.PostgresAutoMigrate)
	r.String(envSeed, &cfg.Seed)
	r.Tracing("INVENTORY", &cfg.Tracing)

	return cfg, r.Warnings()
}

func main() {
	if err := envconfig.LoadDotEnv(); err != nil {
		log.WithError(err).Warn("не удалось прочитать .env")
	}
	envconfig.SetupLogger(nil)

	cfg, warnings := readConfigFromEnv(os.LookupEnv)
	for _, warning := range warnings {
		log.Warn(warning)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"grpc_addr":    cfg.GRPCAddr,
		"metrics_addr": cfg.MetricsAddr,
		"storage":      cfg.StorageDriver,
	}).Info("запускаем InventoryService")

	if err := app.RunInventory(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("InventoryService остановлен")
}
