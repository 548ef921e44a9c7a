package app

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	apiv1 "github.com/vladislavdragonenkov/ordersvc/api/v1"
	healthcheck "github.com/vladislavdragonenkov/ordersvc/internal/health"
	"github.com/vladislavdragonenkov/ordersvc/internal/metrics"
	"github.com/vladislavdragonenkov/ordersvc/internal/service/breaker"
	grpcsvc "github.com/vladislavdragonenkov/ordersvc/internal/service/grpc"
	"github.com/vladislavdragonenkov/ordersvc/internal/service/placement"
	"github.com/vladislavdragonenkov/ordersvc/internal/service/publisher"
	"github.com/vladislavdragonenkov/ordersvc/internal/service/stock"
	"github.com/vladislavdragonenkov/ordersvc/internal/tracing"
	"github.com/vladislavdragonenkov/ordersvc/internal/version"
)

// App: собранный сервис заказов.
type App struct {
	cfg       Config
	logger    *log.Entry
	deps      *Dependencies
	breaker   *breaker.StockBreaker
	publisher *publisher.Publisher
	servers   *serveSet
	tracer    *tracing.Provider
}

// New собирает зависимости, конвейер размещения и открывает сокеты.
func New(ctx context.Context, cfg Config) (*App, error) {
	logger := log.WithField("component", "app")
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	tracer, err := tracing.Setup(cfg.Tracing, "order-service", logger.WithField("layer", "tracing"))
	if err != nil {
		return nil, err
	}

	deps, err := NewDependencies(ctx, cfg, logger)
	if err != nil {
		shutdownTracing(tracer, logger)
		return nil, err
	}

	placementMetrics := metrics.NewPlacementMetrics()

	pub := publisher.New(deps.Sink,
		publisher.WithLogger(logger.WithField("layer", "publisher")),
		publisher.WithMetrics(placementMetrics),
		publisher.WithQueueSize(cfg.EventQueueSize),
		publisher.WithPublishTimeout(cfg.EventPublishTimeout),
	)

	checker := stock.NewChecker(deps.Inventory, cfg.InventoryTimeout, logger.WithField("layer", "stock"))
	gate := breaker.New(checker, cfg.Breaker, logger.WithField("layer", "breaker"), placementMetrics)
	admitter := placement.NewAdmitter(deps.Repo, pub, logger.WithField("layer", "admitter"))
	orchestrator := placement.NewOrchestrator(gate, admitter, logger.WithField("layer", "placement"), placementMetrics)

	servers := newServeSet(logger, cfg.ShutdownTimeout)
	apiv1.RegisterOrderServiceServer(servers.grpcServer, grpcsvc.NewOrderService(deps.Repo, orchestrator, logger.WithField("layer", "grpc")))

	healthHandler := healthcheck.NewHandler(version.GetVersion())
	healthHandler.RegisterChecker("storage", deps.StorageChecker)
	healthHandler.RegisterChecker("inventory", healthcheck.NewBreakerChecker("inventory", gate))
	healthHandler.RegisterChecker("events", healthcheck.NewQueueChecker("events", pub, cfg.EventQueueSize))

	if err := servers.listen(cfg.GRPCAddr, cfg.MetricsAddr, healthHandler); err != nil {
		deps.Close()
		shutdownTracing(tracer, logger)
		return nil, err
	}

	return &App{
		cfg:       cfg,
		logger:    logger,
		deps:      deps,
		breaker:   gate,
		publisher: pub,
		servers:   servers,
		tracer:    tracer,
	}, nil
}

// GRPCAddr возвращает фактический адрес gRPC сервера.
func (a *App) GRPCAddr() string {
	return a.servers.grpcLis.Addr().String()
}

// OpsAddr возвращает фактический адрес HTTP сервера метрик и проверок.
func (a *App) OpsAddr() string {
	return a.servers.opsLis.Addr().String()
}

// Run обслуживает запросы до отмены ctx. Очередь событий дообрабатывается
// после остановки gRPC, чтобы не потерять факты от последних запросов.
func (a *App) Run(ctx context.Context) error {
	defer shutdownTracing(a.tracer, a.logger)
	defer a.deps.Close()

	pubCtx, stopPublisher := context.WithCancel(context.WithoutCancel(ctx))
	pubDone := make(chan struct{})
	go func() {
		defer close(pubDone)
		a.publisher.Run(pubCtx)
	}()

	a.servers.onGRPCStopped = func() {
		stopPublisher()
		<-pubDone
	}
	defer func() {
		stopPublisher()
		<-pubDone
	}()

	a.logger.WithFields(log.Fields{
		"grpc_addr":  a.GRPCAddr(),
		"ops_addr":   a.OpsAddr(),
		"event_sink": a.cfg.EventSink,
		"storage":    a.cfg.StorageDriver,
	}).Info(version.Banner("order-service"))

	return a.servers.run(ctx)
}

// Run собирает и запускает сервис заказов.
func Run(ctx context.Context, cfg Config) error {
	a, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	return a.Run(ctx)
}

// shutdownTracing выгружает оставшиеся спаны с ограничением по времени.
func shutdownTracing(tracer *tracing.Provider, logger *log.Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := tracer.Shutdown(ctx); err != nil {
		logger.WithError(err).Warn("failed to shutdown tracing")
	}
}
