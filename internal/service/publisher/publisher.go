// Package publisher доставляет факты о размещённых заказах во внешний брокер
// через ограниченную очередь в памяти процесса.
package publisher

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/vladislavdragonenkov/ordersvc/internal/domain"
	"github.com/vladislavdragonenkov/ordersvc/internal/metrics"
)

const (
	defaultQueueSize      = 1024
	defaultPublishTimeout = 3 * time.Second

	resultSent    = "sent"
	resultFailed  = "failed"
	resultDropped = "dropped"
)

// Options задаёт параметры публикатора.
type Options struct {
	Logger         *log.Entry
	Metrics        *metrics.PlacementMetrics
	QueueSize      int
	PublishTimeout time.Duration
}

// Option настраивает Publisher.
type Option func(*Options)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}

// WithMetrics задаёт метрики публикации.
func WithMetrics(m *metrics.PlacementMetrics) Option {
	return func(opts *Options) {
		opts.Metrics = m
	}
}

// WithQueueSize задаёт ёмкость очереди; при переполнении факты отбрасываются.
func WithQueueSize(size int) Option {
	return func(opts *Options) {
		opts.QueueSize = size
	}
}

// WithPublishTimeout задаёт таймаут одной попытки публикации.
func WithPublishTimeout(timeout time.Duration) Option {
	return func(opts *Options) {
		opts.PublishTimeout = timeout
	}
}

// Publisher делает ровно одну попытку публикации на факт. Повторную доставку обеспечивает брокер.
type Publisher struct {
	sink    domain.EventSink
	queue   chan domain.OrderPlacedFact
	timeout time.Duration
	logger  *log.Entry
	metrics *metrics.PlacementMetrics

	// mu защищает stopped: после остановки Run очередь больше не принимает факты.
	mu      sync.RWMutex
	stopped bool
}

// New создаёт публикатор. Для доставки нужно запустить Run.
func New(sink domain.EventSink, options ...Option) *Publisher {
	opts := Options{
		QueueSize:      defaultQueueSize,
		PublishTimeout: defaultPublishTimeout,
	}
	for _, option := range options {
		option(&opts)
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "event-publisher")
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = defaultPublishTimeout
	}

	return &Publisher{
		sink:    sink,
		queue:   make(chan domain.OrderPlacedFact, opts.QueueSize),
		timeout: opts.PublishTimeout,
		logger:  logger,
		metrics: opts.Metrics,
	}
}

// Enqueue ставит факт в очередь без блокировки. false: очередь переполнена, факт отброшен.
func (p *Publisher) Enqueue(fact domain.OrderPlacedFact) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		p.metrics.RecordEventPublish(resultDropped)
		p.logger.WithField("order_number", fact.OrderNumber).Error("event publisher is stopped, order-placed event dropped")
		return false
	}

	select {
	case p.queue <- fact:
		p.metrics.SetEventQueueDepth(len(p.queue))
		return true
	default:
		p.metrics.RecordEventPublish(resultDropped)
		p.logger.WithField("order_number", fact.OrderNumber).Error("event queue is full, order-placed event dropped")
		return false
	}
}

// Pending возвращает число фактов в очереди.
func (p *Publisher) Pending() int {
	return len(p.queue)
}

// Run публикует факты до отмены ctx, затем дообрабатывает очередь и завершается.
func (p *Publisher) Run(ctx context.Context) {
	if p.sink == nil {
		p.logger.Warn("event publisher is disabled: sink is nil")
		return
	}

	for {
		select {
		case <-ctx.Done():
			p.stop()
			p.drain(ctx)
			return
		case fact := <-p.queue:
			p.publish(ctx, fact)
		}
	}
}

// stop закрывает приём: после него Enqueue не добавит факт, который drain уже не увидит.
func (p *Publisher) stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
}

func (p *Publisher) drain(ctx context.Context) {
	remaining := len(p.queue)
	if remaining > 0 {
		p.logger.WithField("pending", remaining).Info("draining event queue before shutdown")
	}
	for {
		select {
		case fact := <-p.queue:
			p.publish(ctx, fact)
		default:
			return
		}
	}
}

func (p *Publisher) publish(ctx context.Context, fact domain.OrderPlacedFact) {
	p.metrics.SetEventQueueDepth(len(p.queue))

	// Публикация не прерывается остановкой сервиса, её ограничивает только таймаут.
	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()
	if len(fact.TraceCarrier) > 0 {
		publishCtx = otel.GetTextMapPropagator().Extract(publishCtx, propagation.MapCarrier(fact.TraceCarrier))
	}

	if err := p.sink.Publish(publishCtx, fact); err != nil {
		p.metrics.RecordEventPublish(resultFailed)
		p.logger.WithError(err).WithField("order_number", fact.OrderNumber).Error("failed to publish order-placed event")
		return
	}

	p.metrics.RecordEventPublish(resultSent)
	p.logger.WithField("order_number", fact.OrderNumber).Debug("order-placed event published")
}
