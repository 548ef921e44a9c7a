// Package tracing устанавливает OpenTelemetry TracerProvider процесса
// и переносит контекст трассировки через gRPC metadata.
package tracing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

const (
	ExporterNone   = "none"
	ExporterJaeger = "jaeger"

	DefaultJaegerEndpoint = "http://localhost:14268/api/traces"
)

// Config задаёт экспорт спанов.
type Config struct {
	// Exporter: none (спаны создаются, но не выгружаются) или jaeger.
	Exporter       string
	JaegerEndpoint string
	// SampleRatio: доля корневых трасс, попадающих в выборку, (0, 1].
	SampleRatio float64
}

// DefaultConfig возвращает конфигурацию без внешнего экспорта.
func DefaultConfig() Config {
	return Config{
		Exporter:       ExporterNone,
		JaegerEndpoint: DefaultJaegerEndpoint,
		SampleRatio:    1,
	}
}

// Validate проверяет настройки экспорта.
func (c Config) Validate() error {
	switch c.Exporter {
	case ExporterNone:
	case ExporterJaeger:
		if strings.TrimSpace(c.JaegerEndpoint) == "" {
			return errors.New("jaeger endpoint is required for jaeger trace exporter")
		}
	default:
		return fmt.Errorf("unsupported trace exporter %q", c.Exporter)
	}
	if c.SampleRatio <= 0 || c.SampleRatio > 1 {
		return errors.New("trace sample ratio must be in (0, 1]")
	}
	return nil
}

// Provider владеет установленным TracerProvider.
type Provider struct {
	tp *sdktrace.TracerProvider
}

// Setup устанавливает W3C propagator и TracerProvider с экспортером из cfg.
func Setup(cfg Config, serviceName string, logger *log.Entry) (*Provider, error) {
	if logger == nil {
		logger = log.WithField("component", "tracing")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var exporter sdktrace.SpanExporter
	if cfg.Exporter == ExporterJaeger {
		exp, err := jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(cfg.JaegerEndpoint)))
		if err != nil {
			return nil, fmt.Errorf("create jaeger exporter: %w", err)
		}
		exporter = exp
	}

	p := newProvider(cfg, serviceName, exporter)
	logger.WithFields(log.Fields{
		"exporter":     cfg.Exporter,
		"sample_ratio": cfg.SampleRatio,
	}).Info("tracing initialized")
	return p, nil
}

func newProvider(cfg Config, serviceName string, exporter sdktrace.SpanExporter) *Provider {
	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(serviceName),
		)),
	}
	if exporter != nil {
		opts = append(opts, sdktrace.WithBatcher(exporter))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	return &Provider{tp: tp}
}

// Shutdown выгружает накопленные спаны и останавливает provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.tp == nil {
		return nil
	}
	if err := p.tp.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown tracer provider: %w", err)
	}
	return nil
}
