package slotstore

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/kagwave/vision-middleware/errors"
	"github.com/kagwave/vision-middleware/natsclient"
	"github.com/kagwave/vision-middleware/pkg/retry"
)

// errSlotContended signals a lost read-claim round inside GetAndDelete.
var errSlotContended = stderrors.New("slot contended")

// DefaultSlotTTL is the pending-slot expiry when no TTL is configured.
// A partial whose counterpart never arrives is dropped after this window.
const DefaultSlotTTL = 30 * time.Second

// claimRetryConfig bounds the GetAndDelete read-claim loop. The loop only
// repeats when another writer touches the key between our read and our
// delete, so contention resolves within a few rounds.
var claimRetryConfig = retry.Config{
	MaxAttempts:  8,
	InitialDelay: 5 * time.Millisecond,
	MaxDelay:     100 * time.Millisecond,
	Multiplier:   2.0,
	AddJitter:    true,
}

// NATS implements Store over a JetStream KV bucket.
//
// The bucket is created with History: 1 and the configured TTL, so a slot is
// exactly one KV key that either gets claimed by the joining side or expires.
type NATS struct {
	client *natsclient.Client
	bucket string
	ttl    time.Duration
	logger *slog.Logger

	mu sync.RWMutex
	kv *natsclient.KVStore
}

// NATSOption configures a NATS slot store.
type NATSOption func(*NATS)

// WithTTL sets the pending-slot expiry for the backing bucket.
func WithTTL(ttl time.Duration) NATSOption {
	return func(s *NATS) {
		s.ttl = ttl
	}
}

// WithLogger sets the logger for store operations.
func WithLogger(logger *slog.Logger) NATSOption {
	return func(s *NATS) {
		s.logger = logger
	}
}

// NewNATS creates a slot store backed by the named JetStream KV bucket.
// The bucket is not touched until Connect.
func NewNATS(client *natsclient.Client, bucket string, opts ...NATSOption) (*NATS, error) {
	if client == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "slotstore", "NewNATS", "nats client cannot be nil")
	}
	if bucket == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "slotstore", "NewNATS", "bucket name cannot be empty")
	}

	s := &NATS{
		client: client,
		bucket: bucket,
		ttl:    DefaultSlotTTL,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// Bucket returns the backing bucket name.
func (s *NATS) Bucket() string {
	return s.bucket
}

// Connect ensures the backing bucket exists with the configured TTL and
// binds it. Calling Connect on a connected store is a no-op.
func (s *NATS) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.kv != nil {
		return nil
	}

	bucket, err := s.client.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{
		Bucket:      s.bucket,
		Description: "Pending partial-result slots awaiting their counterpart",
		History:     1,
		TTL:         s.ttl,
	})
	if err != nil {
		return errors.WrapTransient(err, "slotstore", "Connect", "create slot bucket")
	}

	s.kv = s.client.NewKVStore(bucket)
	s.logger.Info("slot store connected", "bucket", s.bucket, "ttl", s.ttl)

	return nil
}

// Disconnect drops the bucket binding. The bucket and any pending slots
// stay on the server; slots left behind expire at TTL.
func (s *NATS) Disconnect(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.kv == nil {
		return nil
	}

	s.kv = nil
	s.logger.Info("slot store disconnected", "bucket", s.bucket)

	return nil
}

// store returns the bound KV store or a transient error when disconnected.
func (s *NATS) store() (*natsclient.KVStore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.kv == nil {
		return nil, errors.WrapTransient(errors.ErrNoConnection, "slotstore", "store", "slot bucket not connected")
	}
	return s.kv, nil
}

// slotKey builds the bucket key for a namespaced slot.
func slotKey(namespace, key string) (string, error) {
	if namespace == "" {
		return "", errors.WrapInvalid(errors.ErrInvalidKey, "slotstore", "slotKey", "namespace cannot be empty")
	}
	if key == "" {
		return "", errors.WrapInvalid(errors.ErrInvalidKey, "slotstore", "slotKey", "key cannot be empty")
	}
	return namespace + "." + key, nil
}

// Exists reports whether a slot is currently stored under the key.
func (s *NATS) Exists(ctx context.Context, namespace, key string) (bool, error) {
	entry, err := s.Get(ctx, namespace, key)
	if err != nil {
		return false, err
	}
	return entry != nil, nil
}

// Get returns the current slot entry, or nil when no slot is stored.
func (s *NATS) Get(ctx context.Context, namespace, key string) (*Entry, error) {
	kv, err := s.store()
	if err != nil {
		return nil, err
	}

	k, err := slotKey(namespace, key)
	if err != nil {
		return nil, err
	}

	entry, err := kv.Get(ctx, k)
	if err != nil {
		if natsclient.IsKVNotFoundError(err) {
			return nil, nil
		}
		return nil, errors.WrapTransient(err, "slotstore", "Get", fmt.Sprintf("get slot %s", k))
	}

	return &Entry{
		Value:    entry.Value,
		Revision: entry.Revision,
		Created:  entry.Created,
	}, nil
}

// CreateIfAbsent atomically stores value only when no slot exists under the
// key. A conflict means another writer created the slot first and is
// reported as false, not an error.
func (s *NATS) CreateIfAbsent(ctx context.Context, namespace, key string, value []byte) (bool, error) {
	kv, err := s.store()
	if err != nil {
		return false, err
	}

	k, err := slotKey(namespace, key)
	if err != nil {
		return false, err
	}

	if _, err := kv.Create(ctx, k, value); err != nil {
		if natsclient.IsKVConflictError(err) {
			return false, nil
		}
		return false, errors.WrapTransient(err, "slotstore", "CreateIfAbsent", fmt.Sprintf("create slot %s", k))
	}

	s.logger.Debug("slot created", "key", k)

	return true, nil
}

// DeleteRevision atomically removes the slot only when its revision still
// matches. Revision mismatch and not-found both mean some other actor got
// to the slot first and are reported as false, not errors.
func (s *NATS) DeleteRevision(ctx context.Context, namespace, key string, revision uint64) (bool, error) {
	kv, err := s.store()
	if err != nil {
		return false, err
	}

	k, err := slotKey(namespace, key)
	if err != nil {
		return false, err
	}

	if err := kv.DeleteRevision(ctx, k, revision); err != nil {
		if natsclient.IsKVNotFoundError(err) || natsclient.IsKVConflictError(err) {
			return false, nil
		}
		return false, errors.WrapTransient(err, "slotstore", "DeleteRevision", fmt.Sprintf("delete slot %s@%d", k, revision))
	}

	s.logger.Debug("slot claimed", "key", k, "revision", revision)

	return true, nil
}

// GetAndDelete atomically takes the slot via a read-claim loop: read the
// entry, then delete exactly that revision. When the delete loses the race
// the loop re-reads; when the slot is gone the claimant that removed it won.
func (s *NATS) GetAndDelete(ctx context.Context, namespace, key string) ([]byte, bool, error) {
	var value []byte
	var claimed bool

	err := retry.Do(ctx, claimRetryConfig, func() error {
		entry, err := s.Get(ctx, namespace, key)
		if err != nil {
			return retry.NonRetryable(err)
		}
		if entry == nil {
			value, claimed = nil, false
			return nil
		}

		ok, err := s.DeleteRevision(ctx, namespace, key, entry.Revision)
		if err != nil {
			return retry.NonRetryable(err)
		}
		if !ok {
			// Another writer touched the key between read and delete
			return errSlotContended
		}

		value, claimed = entry.Value, true
		return nil
	})
	if err != nil {
		if stderrors.Is(err, errSlotContended) {
			return nil, false, errors.WrapTransient(err, "slotstore", "GetAndDelete",
				fmt.Sprintf("claim slot %s.%s", namespace, key))
		}
		// Store errors are already classified; pass them through unchanged
		return nil, false, err
	}

	return value, claimed, nil
}
