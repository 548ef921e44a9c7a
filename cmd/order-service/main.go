package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/ordersvc/internal/app"
	"github.com/vladislavdragonenkov/ordersvc/internal/envconfig"
)

const (
	envGRPCAddr              = "ORDERS_GRPC_ADDR"
	envMetricsAddr           = "ORDERS_METRICS_ADDR"
	envStorageDriver         = "ORDERS_STORAGE_DRIVER"
	envPostgresDSN           = "ORDERS_POSTGRES_DSN"
	envPostgresAutoMigrate   = "ORDERS_POSTGRES_AUTO_MIGRATE"
	envInventoryAddr         = "ORDERS_INVENTORY_ADDR"
	envInventoryTimeout      = "ORDERS_INVENTORY_TIMEOUT"
	envAllowMockIntegrations = "ORDERS_ALLOW_MOCK_INTEGRATIONS"
	envInventorySeed         = "ORDERS_INVENTORY_SEED"
	envBreakerThreshold      = "ORDERS_BREAKER_FAILURE_THRESHOLD"
	envBreakerRatio          = "ORDERS_BREAKER_FAILURE_RATIO"
	envBreakerMinRequests    = "ORDERS_BREAKER_MIN_REQUESTS"
	envBreakerWindow         = "ORDERS_BREAKER_WINDOW"
	envBreakerCooldown       = "ORDERS_BREAKER_COOLDOWN"
	envEventSink             = "ORDERS_EVENT_SINK"
	envKafkaBrokers          = "ORDERS_KAFKA_BROKERS"
	envKafkaTopic            = "ORDERS_KAFKA_TOPIC"
	envRabbitMQURL           = "ORDERS_RABBITMQ_URL"
	envRabbitMQExchange      = "ORDERS_RABBITMQ_EXCHANGE"
	envEventQueueSize        = "ORDERS_EVENT_QUEUE_SIZE"
	envEventPublishTimeout   = "ORDERS_EVENT_PUBLISH_TIMEOUT"
	envShutdownTimeout       = "ORDERS_SHUTDOWN_TIMEOUT"
	envTracingExporter       = "ORDERS_TRACING_EXPORTER"
	envJaegerEndpoint        = "ORDERS_JAEGER_ENDPOINT"
)

// readConfigFromEnv накладывает переменные окружения на конфигурацию по умолчанию.
func readConfigFromEnv(lookup envconfig.Lookup) (app.Config, []string) {
	cfg := app.DefaultConfig()
	r := envconfig.NewReader(lookup)

	r.String(envGRPCAddr, &cfg.GRPCAddr)
	r.String(envMetricsAddr, &cfg.MetricsAddr)
	r.Lower(envStorageDriver, &cfg.StorageDriver)
	r.String(envPostgresDSN, &cfg.PostgresDSN)
	r.Bool(envPostgresAutoMigrate, &cfg.PostgresAutoMigrate)

	r.String(envInventoryAddr, &cfg.InventoryAddr)
	r.Duration(envInventoryTimeout, &cfg.InventoryTimeout, envconfig.Positive[time.Duration], "must be > 0")
	r.Bool(envAllowMockIntegrations, &cfg.AllowMockIntegrations)
	r.String(envInventorySeed, &cfg.InventorySeed)

	r.Uint32(envBreakerThreshold, &cfg.Breaker.FailureThreshold, envconfig.Positive[uint32], "must be > 0")
	r.Float(envBreakerRatio, &cfg.Breaker.FailureRatio, func(v float64) bool { return v > 0 && v <= 1 }, "must be in (0, 1]")
	r.Uint32(envBreakerMinRequests, &cfg.Breaker.MinRequests, envconfig.Positive[uint32], "must be > 0")
	r.Duration(envBreakerWindow, &cfg.Breaker.Window, envconfig.Positive[time.Duration], "must be > 0")
	r.Duration(envBreakerCooldown, &cfg.Breaker.Cooldown, envconfig.Positive[time.Duration], "must be > 0")

	r.Lower(envEventSink, &cfg.EventSink)
	r.String(envKafkaBrokers, &cfg.KafkaBrokers)
	r.String(envKafkaTopic, &cfg.KafkaTopic)
	r.String(envRabbitMQURL, &cfg.RabbitMQURL)
	r.String(envRabbitMQExchange, &cfg.RabbitMQExchange)
	r.Int(envEventQueueSize, &cfg.EventQueueSize, envconfig.Positive[int], "must be > 0")
	r.Duration(envEventPublishTimeout, &cfg.EventPublishTimeout, envconfig.Positive[time.Duration], "must be > 0")
	r.Duration(envShutdownTimeout, &cfg.ShutdownTimeout, envconfig.Positive[time.Duration], "must be > 0")
	r.Tracing("ORDERS", &cfg.Tracing)

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
		"event_sink":   cfg.EventSink,
	}).Info("запускаем OrderService")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("OrderService остановлен")
}
