// Package slotstore provides the shared slot storage that synchronizes the
// two-sided frame join.
package slotstore

import (
	"context"
	"time"
)

// Entry is a stored slot value together with the bookkeeping the atomic
// operations need.
type Entry struct {
	// Value is the stored slot payload.
	Value []byte

	// Revision identifies this exact write. DeleteRevision uses it to
	// guarantee that of N claimants racing for the same slot, exactly one
	// wins.
	Revision uint64

	// Created is when the slot was written. The fusion coordinator uses it
	// to measure the gap between the two sides of a join.
	Created time.Time
}

// Store is the pluggable backend interface for slot storage.
//
// The store is the single source of synchronization truth for the join
// protocol: correctness never depends on in-process state, so any number of
// service replicas can share one backing bucket.
//
// Namespaces partition keys within one bucket ("<namespace>.<key>"), so a
// bucket-level TTL expires pending slots in every namespace uniformly.
//
// Example implementations:
//   - slotstore.NATS: JetStream KV bucket backend (production)
//   - testutil.MemoryStore: mutex-guarded map (unit tests)
//
// Thread Safety:
// All Store implementations must be safe for concurrent use from multiple
// goroutines.
type Store interface {
	// Connect establishes or binds the backing bucket. Safe to call once
	// before any other operation; the other methods fail until it succeeds.
	Connect(ctx context.Context) error

	// Disconnect releases the bucket binding. Operations after Disconnect
	// fail until Connect is called again.
	Disconnect(ctx context.Context) error

	// Exists reports whether a slot is currently stored under the key.
	// A true result is advisory only: the slot can be claimed or expire
	// between this call and the next. Use the atomic operations to decide
	// races.
	Exists(ctx context.Context, namespace, key string) (bool, error)

	// Get returns the current slot entry, or nil when no slot is stored.
	Get(ctx context.Context, namespace, key string) (*Entry, error)

	// CreateIfAbsent atomically stores value only when no slot exists under
	// the key. Returns true when this call created the slot, false when
	// another writer got there first. Only one of N concurrent creators
	// receives true.
	CreateIfAbsent(ctx context.Context, namespace, key string, value []byte) (bool, error)

	// DeleteRevision atomically removes the slot only when its revision
	// still matches. Returns true when this call performed the delete,
	// false when the slot changed or vanished first. Losing the race is
	// not an error.
	DeleteRevision(ctx context.Context, namespace, key string, revision uint64) (bool, error)

	// GetAndDelete atomically takes the slot: reads the value and removes
	// it in one logical step. Returns the value and true when this call
	// claimed the slot, false when no slot was stored or another claimant
	// took it.
	GetAndDelete(ctx context.Context, namespace, key string) ([]byte, bool, error)
}
