package fusion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kagwave/vision-middleware/errors"
	"github.com/kagwave/vision-middleware/metric"
	"github.com/kagwave/vision-middleware/pkg/cache"
	"github.com/kagwave/vision-middleware/pkg/timestamp"
	"github.com/kagwave/vision-middleware/slotstore"
)

// DefaultNamespace is the slot namespace used when none is configured.
const DefaultNamespace = "slots"

// DefaultMaxRounds bounds the protocol loop. A round repeats only when a
// concurrent submitter wins a create or claim race on the same key, so
// legitimate contention resolves in two or three rounds.
const DefaultMaxRounds = 8

// Coordinator decides the join. Every submit resolves to stored, combined,
// or duplicate through atomic operations on the slot store; the store is
// the single source of synchronization truth, so any number of goroutines
// and service replicas can submit concurrently.
//
// The protocol keeps at most one slot per correlation key. The first side
// to arrive creates the slot; the counterpart claims it with a
// revision-conditioned delete. A KV revision can be deleted at most once,
// which makes the claim the pair's single linearization point: exactly one
// submitter combines.
type Coordinator struct {
	store     slotstore.Store
	namespace string
	completed cache.Cache[struct{}]
	metrics   *coordinatorMetrics
	logger    *slog.Logger
	maxRounds int
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithNamespace sets the slot namespace within the backing bucket.
func WithNamespace(namespace string) CoordinatorOption {
	return func(c *Coordinator) {
		c.namespace = namespace
	}
}

// WithCompletionCache sets the local cache of recently combined keys. The
// cache is a fast path for duplicates arriving after completion; join
// correctness never depends on it.
func WithCompletionCache(completed cache.Cache[struct{}]) CoordinatorOption {
	return func(c *Coordinator) {
		c.completed = completed
	}
}

// WithMetrics registers coordinator metrics with the registry.
func WithMetrics(registry *metric.MetricsRegistry) CoordinatorOption {
	return func(c *Coordinator) {
		m, err := newCoordinatorMetrics(registry)
		if err != nil {
			c.logger.Warn("fusion metrics registration failed", "error", err)
			return
		}
		c.metrics = m
	}
}

// WithLogger sets the logger for coordinator events.
func WithLogger(logger *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithMaxRounds bounds the protocol loop.
func WithMaxRounds(rounds int) CoordinatorOption {
	return func(c *Coordinator) {
		if rounds > 0 {
			c.maxRounds = rounds
		}
	}
}

// NewCoordinator creates a join coordinator over the given slot store.
func NewCoordinator(store slotstore.Store, opts ...CoordinatorOption) (*Coordinator, error) {
	if store == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "fusion", "NewCoordinator", "slot store cannot be nil")
	}

	c := &Coordinator{
		store:     store,
		namespace: DefaultNamespace,
		completed: cache.NewNoop[struct{}](),
		logger:    slog.Default(),
		maxRounds: DefaultMaxRounds,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Submit runs one partial through the join protocol.
//
// Outcomes:
//   - OutcomeStored: this partial is now pending, waiting for its
//     counterpart.
//   - OutcomeCombined: this partial completed the pair; the combined event
//     is returned and must be published by the caller.
//   - OutcomeDuplicate: the same side was already pending, or the pair
//     already combined. Nothing was mutated.
//
// Errors are classified: invalid (bad key, undecodable slot) means the
// message is poison and must not be redelivered; transient (store
// unavailable, protocol rounds exhausted) means redelivery should retry
// the whole submit.
func (c *Coordinator) Submit(ctx context.Context, p Partial) (Outcome, error) {
	start := time.Now()

	outcome, err := c.submit(ctx, p)

	c.metrics.recordSubmitDuration(time.Since(start).Seconds())
	switch {
	case err == nil:
		c.metrics.recordOutcome(outcome.Kind.String())
	case errors.IsInvalid(err):
		c.metrics.recordOutcome(outcomeInvalid)
	default:
		c.metrics.recordOutcome(outcomeStoreError)
	}

	return outcome, err
}

func (c *Coordinator) submit(ctx context.Context, p Partial) (Outcome, error) {
	if err := p.Validate(); err != nil {
		return Outcome{}, err
	}

	if p.ObservedAt == 0 {
		p.ObservedAt = timestamp.Now()
	}

	key := p.Key.StorageKey()

	// Local fast path: this process already combined the pair. Other
	// replicas miss here and fall through to store-then-expire, which is
	// equally correct.
	if _, done := c.completed.Get(key); done {
		c.logger.Debug("duplicate after completion", "key", key, "variant", p.Variant)
		return Outcome{Kind: OutcomeDuplicate}, nil
	}

	for round := 0; round < c.maxRounds; round++ {
		if round > 0 {
			c.metrics.recordClaimRetry()
		}

		entry, err := c.store.Get(ctx, c.namespace, key)
		if err != nil {
			return Outcome{}, err
		}

		if entry == nil {
			data, err := encodeSlot(p)
			if err != nil {
				return Outcome{}, err
			}

			created, err := c.store.CreateIfAbsent(ctx, c.namespace, key, data)
			if err != nil {
				return Outcome{}, err
			}
			if created {
				c.logger.Debug("partial stored", "key", key, "variant", p.Variant)
				return Outcome{Kind: OutcomeStored}, nil
			}

			// Lost the create race; re-read to see what won
			continue
		}

		stored, err := decodeSlot(entry.Value)
		if err != nil {
			return Outcome{}, err
		}

		if stored.Variant == p.Variant {
			c.logger.Debug("duplicate partial ignored", "key", key, "variant", p.Variant)
			return Outcome{Kind: OutcomeDuplicate}, nil
		}

		claimed, err := c.store.DeleteRevision(ctx, c.namespace, key, entry.Revision)
		if err != nil {
			return Outcome{}, err
		}
		if !claimed {
			// Another submitter claimed or the slot expired; re-read
			continue
		}

		combined := c.combine(stored, entry, p)

		if _, err := c.completed.Set(key, struct{}{}); err != nil {
			c.logger.Debug("completion cache set failed", "key", key, "error", err)
		}

		c.metrics.recordJoinGap(combined.JoinGapMs)
		c.logger.Debug("pair combined",
			"key", key,
			"arrivingVariant", p.Variant,
			"joinGapMs", combined.JoinGapMs)

		return Outcome{Kind: OutcomeCombined, Combined: combined}, nil
	}

	c.logger.Warn("claim rounds exhausted", "key", key, "rounds", c.maxRounds)
	return Outcome{}, errors.WrapTransient(errors.ErrMaxRetriesExceeded, "Coordinator", "Submit",
		fmt.Sprintf("claim rounds exhausted for %s", key))
}

// combine builds the event for a claimed pair. The stored side arrived
// first; the slot's creation time anchors the join-gap measurement so the
// value is consistent across replicas.
func (c *Coordinator) combine(stored slotRecord, entry *slotstore.Entry, arriving Partial) *CombinedEvent {
	joinedAt := timestamp.Now()

	gap := joinedAt - timestamp.ToUnixMs(entry.Created)
	if gap < 0 {
		gap = 0
	}

	// Producer clocks can run ahead; the clamp keeps the pair's timeline
	// monotonic.
	firstObserved := stored.ObservedAt
	if firstObserved > joinedAt {
		firstObserved = joinedAt
	}

	ev := &CombinedEvent{
		Key:             arriving.Key,
		FirstObservedAt: firstObserved,
		JoinedAt:        joinedAt,
		JoinGapMs:       gap,
	}

	if stored.Variant == VariantPose {
		ev.Pose, ev.Mask = stored.Payload, arriving.Payload
	} else {
		ev.Pose, ev.Mask = arriving.Payload, stored.Payload
	}

	return ev
}
