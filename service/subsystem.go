package service

import (
	"context"
	"time"

	"github.com/kagwave/vision-middleware/slotstore"
)

// Subsystem is one independently-failing part of the service. The
// orchestrator starts and stops subsystems in a fixed order and tracks a
// State for each.
//
// Start blocks until the subsystem is usable or has failed. Stop is
// best-effort within the timeout; it is called at most once per started
// subsystem.
type Subsystem interface {
	Name() string
	Start(ctx context.Context) error
	Stop(timeout time.Duration) error
}

// funcSubsystem adapts a pair of functions to the Subsystem interface.
type funcSubsystem struct {
	name  string
	start func(ctx context.Context) error
	stop  func(timeout time.Duration) error
}

// Wrap builds a Subsystem from start and stop functions. Components whose
// lifecycle methods already match (the bus producer and consumer, the
// tap) wrap their methods directly; nil functions become no-ops.
func Wrap(name string, start func(ctx context.Context) error, stop func(timeout time.Duration) error) Subsystem {
	return &funcSubsystem{name: name, start: start, stop: stop}
}

func (f *funcSubsystem) Name() string { return f.name }

func (f *funcSubsystem) Start(ctx context.Context) error {
	if f.start == nil {
		return nil
	}
	return f.start(ctx)
}

func (f *funcSubsystem) Stop(timeout time.Duration) error {
	if f.stop == nil {
		return nil
	}
	return f.stop(timeout)
}

// StoreSubsystem adapts a slot store to the Subsystem interface. Start
// connects the backing bucket; Stop disconnects within the timeout.
func StoreSubsystem(store slotstore.Store) Subsystem {
	return Wrap(SubsystemStore,
		store.Connect,
		func(timeout time.Duration) error {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			return store.Disconnect(ctx)
		},
	)
}
