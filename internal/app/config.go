package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
	"github.com/vladislavdragonenkov/ordersvc/internal/service/breaker"
	"github.com/vladislavdragonenkov/ordersvc/internal/tracing"
)

const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"

	EventSinkLog      = "log"
	EventSinkKafka    = "kafka"
	EventSinkRabbitMQ = "rabbitmq"
)

// StorageConfig задаёт выбор хранилища.
type StorageConfig struct {
	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool
}

// Validate проверяет согласованность настроек хранилища.
func (c StorageConfig) Validate() error {
	switch c.StorageDriver {
	case StorageDriverMemory:
		return nil
	case StorageDriverPostgres:
		if strings.TrimSpace(c.PostgresDSN) == "" {
			return errors.New("postgres dsn is required for postgres storage driver")
		}
		return nil
	default:
		return fmt.Errorf("unsupported storage driver %q", c.StorageDriver)
	}
}

// Config описывает настройки запуска сервиса заказов.
type Config struct {
	GRPCAddr    string
	MetricsAddr string

	StorageConfig

	// InventoryAddr: адрес gRPC сервиса склада. Пустой адрес допустим только с AllowMockIntegrations.
	InventoryAddr         string
	InventoryTimeout      time.Duration
	AllowMockIntegrations bool
	// InventorySeed: остатки для mock-склада в формате "SKU=qty,...".
	InventorySeed string

	Breaker breaker.Config

	EventSink           string
	KafkaBrokers        string
	KafkaTopic          string
	RabbitMQURL         string
	RabbitMQExchange    string
	EventQueueSize      int
	EventPublishTimeout time.Duration

	Tracing tracing.Config

	ShutdownTimeout time.Duration
}

// DefaultConfig возвращает конфигурацию для локального запуска.
func DefaultConfig() Config {
	return Config{
		GRPCAddr:    ":50051",
		MetricsAddr: ":9090",
		StorageConfig: StorageConfig{
			StorageDriver:       StorageDriverMemory,
			PostgresAutoMigrate: true,
		},
		InventoryTimeout:      2 * time.Second,
		AllowMockIntegrations: true,
		Breaker:               breaker.DefaultConfig(),
		EventSink:             EventSinkLog,
		KafkaTopic:            domain.TopicOrderPlaced,
		RabbitMQExchange:      "orders",
		EventQueueSize:        1024,
		EventPublishTimeout:   3 * time.Second,
		Tracing:               tracing.DefaultConfig(),
		ShutdownTimeout:       5 * time.Second,
	}
}

// Validate проверяет конфигурацию до старта зависимостей.
func (c Config) Validate() error {
	if err := c.StorageConfig.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.InventoryAddr) == "" && !c.AllowMockIntegrations {
		return errors.New("inventory address is required when mock integrations are disabled")
	}
	if c.InventoryTimeout <= 0 {
		return errors.New("inventory timeout must be > 0")
	}

	switch c.EventSink {
	case EventSinkLog:
	case EventSinkKafka:
		if len(splitList(c.KafkaBrokers)) == 0 {
			return errors.New("kafka brokers are required for kafka event sink")
		}
	case EventSinkRabbitMQ:
		if strings.TrimSpace(c.RabbitMQURL) == "" {
			return errors.New("rabbitmq url is required for rabbitmq event sink")
		}
	default:
		return fmt.Errorf("unsupported event sink %q", c.EventSink)
	}

	if c.EventQueueSize <= 0 {
		return errors.New("event queue size must be > 0")
	}
	return c.Tracing.Validate()
}

// InventoryConfig описывает настройки сервиса склада.
type InventoryConfig struct {
	GRPCAddr    string
	MetricsAddr string

	StorageConfig

	Seed string

	Tracing tracing.Config
}

// DefaultInventoryConfig возвращает конфигурацию склада для локального запуска.
func DefaultInventoryConfig() InventoryConfig {
	return InventoryConfig{
		GRPCAddr:    ":50052",
		MetricsAddr: ":9091",
		StorageConfig: StorageConfig{
			StorageDriver:       StorageDriverMemory,
			PostgresAutoMigrate: true,
		},
		Tracing: tracing.DefaultConfig(),
	}
}

// NotificationConfig описывает настройки сервиса уведомлений.
type NotificationConfig struct {
	KafkaBrokers string
	GroupID      string
	Topic        string
	MaxRetries   int

	Tracing tracing.Config
}

// DefaultNotificationConfig возвращает конфигурацию сервиса уведомлений.
func DefaultNotificationConfig() NotificationConfig {
	return NotificationConfig{
		KafkaBrokers: "localhost:9092",
		GroupID:      "notification-service",
		Topic:        domain.TopicOrderPlaced,
		MaxRetries:   3,
		Tracing:      tracing.DefaultConfig(),
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
