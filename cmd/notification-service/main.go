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
	envKafkaBrokers = "NOTIFICATION_KAFKA_BROKERS"
	envGroupID      = "NOTIFICATION_GROUP_ID"
	envTopic        = "NOTIFICATION_TOPIC"
	envMaxRetries   = "NOTIFICATION_MAX_RETRIES"
)

func readConfigFromEnv(lookup envconfig.Lookup) (app.NotificationConfig, []string) {
	cfg := app.DefaultNotificationConfig()
	r := envconfig.NewReader(lookup)

	r.String(envKafkaBrokers, &cfg.KafkaBrokers)
	r.String(envGroupID, &cfg.GroupID)
	r.String(envTopic, &cfg.Topic)
	r.Int(envMaxRetries, &cfg.MaxRetries, envconfig.Positive[int], "must be > 0")
	r.Tracing("NOTIFICATION", &cfg.Tracing)

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
		"brokers": cfg.KafkaBrokers,
		"topic":   cfg.Topic,
	}).Info("запускаем NotificationService")

	if err := app.RunNotification(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("NotificationService остановлен")
}
