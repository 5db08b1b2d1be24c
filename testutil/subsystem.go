package testutil

import (
	"context"
	"sync"
	"time"
)

// MockSubsystem is a lifecycle subsystem for orchestrator tests.
// Thread-safe for concurrent use from multiple goroutines.
type MockSubsystem struct {
	mu sync.Mutex

	name string

	// Lifecycle control
	StartFunc func(ctx context.Context) error
	StopFunc  func(timeout time.Duration) error

	// State tracking
	Started bool
	Stopped bool

	// Call counts for verification
	StartCalls int
	StopCalls  int
}

// NewMockSubsystem creates a named mock subsystem with no-op lifecycle.
func NewMockSubsystem(name string) *MockSubsystem {
	return &MockSubsystem{
		name: name,
		StartFunc: func(_ context.Context) error {
			return nil
		},
		StopFunc: func(_ time.Duration) error {
			return nil
		},
	}
}

// Name returns the subsystem name.
func (m *MockSubsystem) Name() string {
	return m.name
}

// Start starts the mock subsystem.
func (m *MockSubsystem) Start(ctx context.Context) error {
	m.mu.Lock()
	m.StartCalls++
	startFunc := m.StartFunc
	m.mu.Unlock()

	err := startFunc(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		m.Started = true
	}
	return err
}

// Stop stops the mock subsystem.
func (m *MockSubsystem) Stop(timeout time.Duration) error {
	m.mu.Lock()
	m.StopCalls++
	stopFunc := m.StopFunc
	m.mu.Unlock()

	err := stopFunc(timeout)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Stopped = true
	return err
}

// Calls returns the start and stop call counts.
func (m *MockSubsystem) Calls() (starts, stops int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.StartCalls, m.StopCalls
}
