package bus

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/kagwave/vision-middleware/errors"
	"github.com/kagwave/vision-middleware/metric"
	"github.com/kagwave/vision-middleware/natsclient"
	"github.com/kagwave/vision-middleware/pkg/retry"
)

// ProducerConfig configures the outbound leg of the bus.
type ProducerConfig struct {
	// Stream is the JetStream stream that retains combined events.
	Stream string

	// Subjects are the subjects bound to the stream, normally
	// {FusedWildcard}.
	Subjects []string

	// MaxAge bounds event retention. Zero keeps the server default.
	MaxAge time.Duration

	// Replicas for the stream. Zero means 1.
	Replicas int

	Logger   *slog.Logger
	Registry *metric.MetricsRegistry
}

// Producer owns the outbound leg of the bus. It ensures the fused stream
// exists and publishes combined events with at-least-once semantics.
// Consumers never hold the Producer itself; they hold the capability
// returned by Bind.
type Producer struct {
	client  *natsclient.Client
	cfg     ProducerConfig
	logger  *slog.Logger
	metrics *producerMetrics

	mu      sync.Mutex
	started bool
}

// NewProducer creates a producer over the shared NATS client.
func NewProducer(client *natsclient.Client, cfg ProducerConfig) (*Producer, error) {
	if client == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "bus", "NewProducer", "nats client cannot be nil")
	}
	if cfg.Stream == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "bus", "NewProducer", "stream name cannot be empty")
	}
	if len(cfg.Subjects) == 0 {
		cfg.Subjects = []string{FusedWildcard}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	p := &Producer{
		client: client,
		cfg:    cfg,
		logger: cfg.Logger.With("component", "bus.producer"),
	}

	metrics, err := newProducerMetrics(cfg.Registry)
	if err != nil {
		p.logger.Warn("producer metrics registration failed", "error", err)
	} else {
		p.metrics = metrics
	}

	return p, nil
}

// Name identifies the producer in lifecycle state maps.
func (p *Producer) Name() string { return "producer" }

// Start ensures the fused stream exists. Idempotent.
func (p *Producer) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return nil
	}

	if err := ensureStream(ctx, p.client, jetstream.StreamConfig{
		Name:      p.cfg.Stream,
		Subjects:  p.cfg.Subjects,
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    p.cfg.MaxAge,
		Replicas:  p.cfg.Replicas,
	}); err != nil {
		return errors.WrapTransient(err, "Producer", "Start",
			fmt.Sprintf("ensure stream %s", p.cfg.Stream))
	}

	p.started = true
	p.logger.Info("producer started", "stream", p.cfg.Stream, "subjects", p.cfg.Subjects)
	return nil
}

// Send publishes one event. Transient NATS failures are retried briefly;
// exhaustion surfaces as a transient error so the caller's delivery is
// redelivered rather than lost.
func (p *Producer) Send(ctx context.Context, subject string, data []byte) error {
	p.mu.Lock()
	started := p.started
	p.mu.Unlock()

	if !started {
		return errors.WrapTransient(errors.ErrNoConnection, "Producer", "Send", "producer not started")
	}

	err := retry.Do(ctx, retry.Quick(), func() error {
		return p.client.PublishToStream(ctx, subject, data)
	})
	if err != nil {
		p.metrics.recordFailed()
		return errors.WrapTransient(err, "Producer", "Send", fmt.Sprintf("publish %s", subject))
	}

	p.metrics.recordPublished()
	return nil
}

// Bind returns the publish capability handed to consumers. The closure
// publishes through this producer and exposes nothing else.
func (p *Producer) Bind() PublishFunc {
	return func(ctx context.Context, subject string, data []byte) error {
		return p.Send(ctx, subject, data)
	}
}

// Stop marks the producer stopped. The NATS connection belongs to the
// shared client and is not closed here. Idempotent.
func (p *Producer) Stop(_ time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return nil
	}

	p.started = false
	p.logger.Info("producer stopped", "stream", p.cfg.Stream)
	return nil
}

// ensureStream creates the stream, or binds the existing one when another
// replica created it first.
func ensureStream(ctx context.Context, client *natsclient.Client, cfg jetstream.StreamConfig) error {
	_, err := client.CreateStream(ctx, cfg)
	if err == nil {
		return nil
	}
	if stderrors.Is(err, jetstream.ErrStreamNameAlreadyInUse) {
		_, err = client.GetStream(ctx, cfg.Name)
	}
	return err
}
