package bus

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/kagwave/vision-middleware/errors"
	"github.com/kagwave/vision-middleware/metric"
	"github.com/kagwave/vision-middleware/natsclient"
	"github.com/kagwave/vision-middleware/pkg/worker"
)

// Handler processes one delivery. The returned error's classification
// picks the disposition: nil acks, invalid terminates, anything else naks
// for redelivery.
type Handler func(ctx context.Context, d *Delivery) error

// ConsumerConfig configures the inbound leg of the bus.
type ConsumerConfig struct {
	// Stream is the JetStream stream that retains partials.
	Stream string

	// Subjects are the subjects bound to the stream and consumed from it,
	// normally {PartialWildcard}.
	Subjects []string

	// Durable names the consumer so redeliveries survive restarts.
	Durable string

	// AckWait is how long the server waits for a disposition before
	// redelivering. Zero means 30s.
	AckWait time.Duration

	// MaxDeliver bounds delivery attempts per message. Zero means 5.
	MaxDeliver int

	// Workers and QueueSize shape the dispatch pool. Zero picks the pool
	// defaults.
	Workers   int
	QueueSize int

	// MaxAge bounds partial retention. Zero keeps the server default.
	MaxAge time.Duration

	// Replicas for the stream. Zero means 1.
	Replicas int

	Logger   *slog.Logger
	Registry *metric.MetricsRegistry
}

// Consumer owns the inbound leg of the bus. It binds a durable consumer
// with explicit acks and dispatches every delivery into a worker pool, so
// concurrent submits for the same correlation key genuinely race the way
// they would across replicas.
type Consumer struct {
	client  *natsclient.Client
	cfg     ConsumerConfig
	handler Handler
	publish PublishFunc
	pool    *worker.Pool[*Delivery]
	logger  *slog.Logger
	metrics *consumerMetrics

	mu         sync.Mutex
	started    bool
	consumeCtx jetstream.ConsumeContext
}

// NewConsumer creates a consumer over the shared NATS client. The publish
// capability is handed to every delivery; pass NopPublish() when no
// producer is configured.
func NewConsumer(client *natsclient.Client, cfg ConsumerConfig, handler Handler, publish PublishFunc) (*Consumer, error) {
	if client == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "bus", "NewConsumer", "nats client cannot be nil")
	}
	if handler == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "bus", "NewConsumer", "handler cannot be nil")
	}
	if cfg.Stream == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "bus", "NewConsumer", "stream name cannot be empty")
	}
	if len(cfg.Subjects) == 0 {
		cfg.Subjects = []string{PartialWildcard}
	}
	if cfg.Durable == "" {
		cfg.Durable = "vision-fusion"
	}
	if cfg.AckWait <= 0 {
		cfg.AckWait = 30 * time.Second
	}
	if cfg.MaxDeliver <= 0 {
		cfg.MaxDeliver = 5
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if publish == nil {
		publish = NopPublish()
	}

	c := &Consumer{
		client:  client,
		cfg:     cfg,
		handler: handler,
		publish: publish,
		logger:  cfg.Logger.With("component", "bus.consumer"),
	}

	metrics, err := newConsumerMetrics(cfg.Registry)
	if err != nil {
		c.logger.Warn("consumer metrics registration failed", "error", err)
	} else {
		c.metrics = metrics
	}

	c.pool = worker.NewPool(cfg.Workers, cfg.QueueSize, c.process,
		worker.WithMetricsRegistry[*Delivery](cfg.Registry, "bus_consumer"))

	return c, nil
}

// Name identifies the consumer in lifecycle state maps.
func (c *Consumer) Name() string { return "consumer" }

// Start ensures the partials stream, binds the durable consumer, and
// begins dispatching into the pool.
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return nil
	}

	if err := ensureStream(ctx, c.client, jetstream.StreamConfig{
		Name:      c.cfg.Stream,
		Subjects:  c.cfg.Subjects,
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    c.cfg.MaxAge,
		Replicas:  c.cfg.Replicas,
	}); err != nil {
		return errors.WrapTransient(err, "Consumer", "Start",
			fmt.Sprintf("ensure stream %s", c.cfg.Stream))
	}

	js, err := c.client.JetStream()
	if err != nil {
		return errors.WrapTransient(err, "Consumer", "Start", "jetstream context")
	}

	consumer, err := js.CreateOrUpdateConsumer(ctx, c.cfg.Stream, jetstream.ConsumerConfig{
		Durable:        c.cfg.Durable,
		FilterSubjects: c.cfg.Subjects,
		AckPolicy:      jetstream.AckExplicitPolicy,
		AckWait:        c.cfg.AckWait,
		MaxDeliver:     c.cfg.MaxDeliver,
	})
	if err != nil {
		return errors.WrapTransient(err, "Consumer", "Start",
			fmt.Sprintf("bind durable consumer %s", c.cfg.Durable))
	}

	// Workers first so the first delivery has somewhere to go
	if err := c.pool.Start(ctx); err != nil {
		return errors.Wrap(err, "Consumer", "Start", "start worker pool")
	}

	consumeCtx, err := consumer.Consume(c.dispatch)
	if err != nil {
		if stopErr := c.pool.Stop(5 * time.Second); stopErr != nil {
			c.logger.Warn("pool stop after failed consume", "error", stopErr)
		}
		return errors.WrapTransient(err, "Consumer", "Start", "begin consuming")
	}

	c.consumeCtx = consumeCtx
	c.started = true
	c.logger.Info("consumer started",
		"stream", c.cfg.Stream,
		"durable", c.cfg.Durable,
		"ackWait", c.cfg.AckWait,
		"maxDeliver", c.cfg.MaxDeliver)
	return nil
}

// dispatch hands one message to the pool. A full queue naks immediately:
// backpressure becomes redelivery instead of an unbounded local buffer.
func (c *Consumer) dispatch(msg jetstream.Msg) {
	d := newDelivery(msg, c.publish)

	if err := c.pool.Submit(d); err != nil {
		c.metrics.recordSaturated()
		if nakErr := d.nak(); nakErr != nil {
			c.logger.Warn("nak after pool saturation", "subject", d.Subject, "error", nakErr)
		}
		c.logger.Warn("worker pool saturated, delivery nakked", "subject", d.Subject)
	}
}

// process runs the handler and maps its error to a disposition.
func (c *Consumer) process(ctx context.Context, d *Delivery) error {
	err := c.handler(ctx, d)

	switch {
	case err == nil:
		c.metrics.recordDisposition("ack")
		if ackErr := d.ack(); ackErr != nil {
			c.logger.Warn("ack failed", "subject", d.Subject, "error", ackErr)
		}

	case errors.IsInvalid(err):
		// Poison: redelivery would fail identically
		c.metrics.recordDisposition("term")
		c.logger.Warn("terminating invalid delivery", "subject", d.Subject, "error", err)
		if termErr := d.term(); termErr != nil {
			c.logger.Warn("term failed", "subject", d.Subject, "error", termErr)
		}

	default:
		c.metrics.recordDisposition("nak")
		c.logger.Debug("nakking delivery for retry", "subject", d.Subject, "error", err)
		if nakErr := d.nak(); nakErr != nil {
			c.logger.Warn("nak failed", "subject", d.Subject, "error", nakErr)
		}
	}

	return err
}

// Stop drains the consume handle, then the pool. Unfinished deliveries
// redeliver after AckWait. Idempotent.
func (c *Consumer) Stop(timeout time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.started {
		return nil
	}

	if c.consumeCtx != nil {
		c.consumeCtx.Drain()
		c.consumeCtx = nil
	}

	if err := c.pool.Stop(timeout); err != nil {
		c.started = false
		return errors.Wrap(err, "Consumer", "Stop", "stop worker pool")
	}

	c.started = false
	c.logger.Info("consumer stopped", "stream", c.cfg.Stream)
	return nil
}

// Stats exposes the dispatch pool's counters for the health endpoints.
func (c *Consumer) Stats() worker.PoolStats {
	return c.pool.Stats()
}
