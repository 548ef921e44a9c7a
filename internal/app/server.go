package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	promgrpc "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	healthcheck "github.com/vladislavdragonenkov/ordersvc/internal/health"
	"github.com/vladislavdragonenkov/ordersvc/internal/tracing"
)

// serveSet: gRPC и ops HTTP сервер одного процесса с общим порядком остановки.
type serveSet struct {
	grpcServer   *grpc.Server
	grpcMetrics  *promgrpc.ServerMetrics
	healthServer *health.Server
	grpcLis      net.Listener
	opsServer    *http.Server
	opsLis       net.Listener

	shutdownTimeout time.Duration
	// onGRPCStopped вызывается после остановки gRPC и до остановки ops-сервера.
	onGRPCStopped func()
	logger        *log.Entry
}

// newServeSet создаёт gRPC сервер с prometheus-интерсептором и health-сервисом.
func newServeSet(logger *log.Entry, shutdownTimeout time.Duration) *serveSet {
	grpcMetrics := promgrpc.NewServerMetrics()
	if err := prometheus.Register(grpcMetrics); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok2 := are.ExistingCollector.(*promgrpc.ServerMetrics); ok2 {
				grpcMetrics = existing
			}
		} else {
			logger.WithError(err).Warn("failed to register grpc metrics")
		}
	}

	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(
		tracing.UnaryServerInterceptor(),
		grpcMetrics.UnaryServerInterceptor(),
	))
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	if shutdownTimeout <= 0 {
		shutdownTimeout = 5 * time.Second
	}

	return &serveSet{
		grpcServer:      grpcServer,
		grpcMetrics:     grpcMetrics,
		healthServer:    healthServer,
		shutdownTimeout: shutdownTimeout,
		logger:          logger,
	}
}

// listen открывает сокеты; вызывать после регистрации сервисов.
func (s *serveSet) listen(grpcAddr, opsAddr string, healthHandler *healthcheck.Handler) error {
	s.grpcMetrics.InitializeMetrics(s.grpcServer)
	s.healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	grpcLis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		return fmt.Errorf("listen grpc %s: %w", grpcAddr, err)
	}
	opsLis, err := net.Listen("tcp", opsAddr)
	if err != nil {
		_ = grpcLis.Close()
		return fmt.Errorf("listen ops %s: %w", opsAddr, err)
	}

	s.grpcLis = grpcLis
	s.opsLis = opsLis
	s.opsServer = &http.Server{
		Handler:           newOpsRouter(healthHandler),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return nil
}

// newOpsRouter собирает HTTP эндпоинты метрик и проверок.
func newOpsRouter(healthHandler *healthcheck.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.Handler())
	r.Handle("/healthz", healthHandler)
	r.Get("/livez", healthcheck.LivenessHandler)
	r.Get("/readyz", healthHandler.ReadinessHandler)
	return r
}

// run обслуживает запросы до отмены ctx или падения одного из серверов.
func (s *serveSet) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.WithField("addr", s.grpcLis.Addr().String()).Info("gRPC server listening")
		if err := s.grpcServer.Serve(s.grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		addr := s.opsLis.Addr().String()
		s.logger.WithField("addr", addr).Infof("ops endpoints: %s/metrics, /healthz, /livez, /readyz", addr)
		if err := s.opsServer.Serve(s.opsLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("ops serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down servers")
		s.healthServer.Shutdown()
		gracefulStop(s.grpcServer, s.shutdownTimeout, s.logger)
		if s.onGRPCStopped != nil {
			s.onGRPCStopped()
		}
		shutdownHTTP(s.opsServer, s.shutdownTimeout, s.logger)
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// gracefulStop дожидается активных RPC, но не дольше timeout.
func gracefulStop(server *grpc.Server, timeout time.Duration, logger *log.Entry) {
	stopped := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(timeout):
		logger.Warn("graceful stop timed out, forcing grpc server stop")
		server.Stop()
	}
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, timeout time.Duration, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("ops server shutdown with error")
	}
}
