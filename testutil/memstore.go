// Package testutil provides in-memory fakes and wait helpers for tests.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/kagwave/vision-middleware/errors"
	"github.com/kagwave/vision-middleware/slotstore"
)

// MemoryStore is an in-memory slotstore.Store for unit tests. It mirrors
// the atomicity semantics of the NATS implementation: one revision counter,
// create-if-absent, revision-guarded delete, and lazy TTL expiry.
// Thread-safe for concurrent use from multiple goroutines.
type MemoryStore struct {
	mu        sync.Mutex
	connected bool
	failing   bool
	revision  uint64
	slots     map[string]*memorySlot
	ttl       time.Duration

	// AfterGet, when set, runs synchronously after every successful Get
	// (including a nil result). Tests use it to interleave a competing
	// writer between a coordinator's read and its claim.
	AfterGet func(namespace, key string)

	// Call counts for verification
	GetCalls    int
	CreateCalls int
	DeleteCalls int
}

type memorySlot struct {
	value    []byte
	revision uint64
	created  time.Time
}

// NewMemoryStore creates a connected in-memory store. A ttl of zero
// disables expiry.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		connected: true,
		slots:     make(map[string]*memorySlot),
		ttl:       ttl,
	}
}

var _ slotstore.Store = (*MemoryStore)(nil)

// SetFailing makes every operation return a transient error, simulating
// store unavailability.
func (m *MemoryStore) SetFailing(failing bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failing = failing
}

// Expire removes a slot as if its TTL elapsed. Returns true if a slot was
// present.
func (m *MemoryStore) Expire(namespace, key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := namespace + "." + key
	_, ok := m.slots[k]
	delete(m.slots, k)
	return ok
}

// Len returns the number of live slots.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sweepLocked()
	return len(m.slots)
}

// Connect marks the store available.
func (m *MemoryStore) Connect(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failing {
		return errors.WrapTransient(errors.ErrNoConnection, "testutil", "Connect", "memory store failing")
	}
	m.connected = true
	return nil
}

// Disconnect marks the store unavailable.
func (m *MemoryStore) Disconnect(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.connected = false
	return nil
}

// checkLocked validates namespace/key and availability. Callers hold mu.
func (m *MemoryStore) checkLocked(op, namespace, key string) error {
	if m.failing || !m.connected {
		return errors.WrapTransient(errors.ErrNoConnection, "testutil", op, "memory store unavailable")
	}
	if namespace == "" {
		return errors.WrapInvalid(errors.ErrInvalidKey, "testutil", op, "namespace cannot be empty")
	}
	if key == "" {
		return errors.WrapInvalid(errors.ErrInvalidKey, "testutil", op, "key cannot be empty")
	}
	return nil
}

// sweepLocked drops expired slots. Callers hold mu.
func (m *MemoryStore) sweepLocked() {
	if m.ttl <= 0 {
		return
	}
	now := time.Now()
	for k, slot := range m.slots {
		if now.Sub(slot.created) >= m.ttl {
			delete(m.slots, k)
		}
	}
}

// Exists reports whether a slot is currently stored under the key.
func (m *MemoryStore) Exists(ctx context.Context, namespace, key string) (bool, error) {
	entry, err := m.Get(ctx, namespace, key)
	if err != nil {
		return false, err
	}
	return entry != nil, nil
}

// Get returns the current slot entry, or nil when no slot is stored.
func (m *MemoryStore) Get(_ context.Context, namespace, key string) (*slotstore.Entry, error) {
	m.mu.Lock()

	m.GetCalls++
	if err := m.checkLocked("Get", namespace, key); err != nil {
		m.mu.Unlock()
		return nil, err
	}
	m.sweepLocked()

	var entry *slotstore.Entry
	if slot, ok := m.slots[namespace+"."+key]; ok {
		value := make([]byte, len(slot.value))
		copy(value, slot.value)
		entry = &slotstore.Entry{
			Value:    value,
			Revision: slot.revision,
			Created:  slot.created,
		}
	}

	hook := m.AfterGet
	m.mu.Unlock()

	if hook != nil {
		hook(namespace, key)
	}

	return entry, nil
}

// CreateIfAbsent atomically stores value only when no slot exists.
func (m *MemoryStore) CreateIfAbsent(_ context.Context, namespace, key string, value []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CreateCalls++
	if err := m.checkLocked("CreateIfAbsent", namespace, key); err != nil {
		return false, err
	}
	m.sweepLocked()

	k := namespace + "." + key
	if _, exists := m.slots[k]; exists {
		return false, nil
	}

	m.revision++
	stored := make([]byte, len(value))
	copy(stored, value)
	m.slots[k] = &memorySlot{
		value:    stored,
		revision: m.revision,
		created:  time.Now(),
	}

	return true, nil
}

// DeleteRevision atomically removes the slot only when its revision matches.
func (m *MemoryStore) DeleteRevision(_ context.Context, namespace, key string, revision uint64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.DeleteCalls++
	if err := m.checkLocked("DeleteRevision", namespace, key); err != nil {
		return false, err
	}
	m.sweepLocked()

	k := namespace + "." + key
	slot, ok := m.slots[k]
	if !ok || slot.revision != revision {
		return false, nil
	}

	delete(m.slots, k)
	return true, nil
}

// GetAndDelete atomically takes the slot.
func (m *MemoryStore) GetAndDelete(_ context.Context, namespace, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.GetCalls++
	m.DeleteCalls++
	if err := m.checkLocked("GetAndDelete", namespace, key); err != nil {
		return nil, false, err
	}
	m.sweepLocked()

	k := namespace + "." + key
	slot, ok := m.slots[k]
	if !ok {
		return nil, false, nil
	}

	delete(m.slots, k)
	return slot.value, true, nil
}
