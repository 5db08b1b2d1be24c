package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kagwave/vision-middleware/errors"
	"github.com/kagwave/vision-middleware/health"
)

// Role keys for the subsystems the orchestrator manages. States() and the
// lifecycle errors report these names.
const (
	SubsystemStore    = "store"
	SubsystemListener = "listener"
	SubsystemProducer = "producer"
	SubsystemConsumer = "consumer"
	SubsystemTap      = "tap"
)

// StartError reports which subsystem failed to start. Start failures are
// fatal to the whole service; nothing is rolled back and the caller
// decides whether to invoke Stop.
type StartError struct {
	Subsystem string
	Err       error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("subsystem %s failed to start: %v", e.Subsystem, e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }

// StopError reports which subsystem failed to stop. Stop failures never
// abort the shutdown sequence.
type StopError struct {
	Subsystem string
	Err       error
}

func (e *StopError) Error() string {
	return fmt.Sprintf("subsystem %s failed to stop: %v", e.Subsystem, e.Err)
}

func (e *StopError) Unwrap() error { return e.Err }

// Subsystems names the parts the orchestrator manages. Store, Listener
// and Consumer are required; Producer and Tap are optional and may be
// nil. A nil subsystem stays NotStarted forever and is skipped by both
// sequences.
type Subsystems struct {
	Store    Subsystem
	Listener Subsystem
	Producer Subsystem
	Consumer Subsystem
	Tap      Subsystem
}

// step pairs a role key with its subsystem for the ordered sequences.
type step struct {
	role string
	sub  Subsystem
}

// Orchestrator brings the service up and down in a fixed order and tracks
// a State per subsystem.
//
// Start order: store, listener, producer, consumer, tap. The store binds
// first because every later subsystem may need it; the consumer starts
// after the producer so handlers hold a live publish capability.
//
// Stop order: listener, tap, producer, consumer, store. Inbound
// acceptance halts first, pipelines drain next, and the shared store
// releases last because subsystems may still touch it mid-shutdown.
type Orchestrator struct {
	subs    Subsystems
	logger  *slog.Logger
	monitor *health.Monitor

	// lifecycleMu serializes Start and Stop end to end
	lifecycleMu sync.Mutex

	// stateMu guards the state map for readers while a sequence runs
	stateMu sync.RWMutex
	overall State
	states  map[string]State
}

// NewOrchestrator creates an orchestrator over the given subsystems.
func NewOrchestrator(subs Subsystems, logger *slog.Logger) (*Orchestrator, error) {
	if subs.Store == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "service", "NewOrchestrator", "store subsystem is required")
	}
	if subs.Listener == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "service", "NewOrchestrator", "listener subsystem is required")
	}
	if subs.Consumer == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "service", "NewOrchestrator", "consumer subsystem is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	o := &Orchestrator{
		subs:    subs,
		logger:  logger.With("component", "service.orchestrator"),
		monitor: health.NewMonitor(),
		overall: StateNotStarted,
		states: map[string]State{
			SubsystemStore:    StateNotStarted,
			SubsystemListener: StateNotStarted,
			SubsystemProducer: StateNotStarted,
			SubsystemConsumer: StateNotStarted,
			SubsystemTap:      StateNotStarted,
		},
	}

	return o, nil
}

func (o *Orchestrator) startOrder() []step {
	return []step{
		{SubsystemStore, o.subs.Store},
		{SubsystemListener, o.subs.Listener},
		{SubsystemProducer, o.subs.Producer},
		{SubsystemConsumer, o.subs.Consumer},
		{SubsystemTap, o.subs.Tap},
	}
}

func (o *Orchestrator) stopOrder() []step {
	return []step{
		{SubsystemListener, o.subs.Listener},
		{SubsystemTap, o.subs.Tap},
		{SubsystemProducer, o.subs.Producer},
		{SubsystemConsumer, o.subs.Consumer},
		{SubsystemStore, o.subs.Store},
	}
}

// Start brings the subsystems up in order. The first failure marks that
// subsystem and the service Failed and returns a *StartError; subsystems
// already running are left running for Stop to clean up.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.lifecycleMu.Lock()
	defer o.lifecycleMu.Unlock()

	if state := o.State(); state != StateNotStarted {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Orchestrator", "Start",
			fmt.Sprintf("cannot start from state %s", state))
	}

	o.setOverall(StateStarting)

	for _, st := range o.startOrder() {
		if st.sub == nil {
			continue
		}

		o.setState(st.role, StateStarting)
		o.monitor.UpdateDegraded(st.role, "starting")
		o.logger.Info("starting subsystem", "subsystem", st.role)

		if err := st.sub.Start(ctx); err != nil {
			o.setState(st.role, StateFailed)
			o.setOverall(StateFailed)
			o.monitor.UpdateFromError(st.role, err)
			o.logger.Error("subsystem start failed", "subsystem", st.role, "error", err)
			return &StartError{Subsystem: st.role, Err: err}
		}

		o.setState(st.role, StateRunning)
		o.monitor.UpdateHealthy(st.role, "running")
	}

	o.setOverall(StateRunning)
	o.logger.Info("service running")
	return nil
}

// Stop tears the subsystems down in order, best-effort. Failures are
// logged, collected as *StopError values, and joined into the return;
// they never abort the sequence. Subsystems that never started are
// skipped. Idempotent.
func (o *Orchestrator) Stop(timeout time.Duration) error {
	o.lifecycleMu.Lock()
	defer o.lifecycleMu.Unlock()

	if o.State() == StateStopped {
		return nil
	}

	o.setOverall(StateStopping)
	o.logger.Info("stopping service", "timeout", timeout)

	var errs []error
	for _, st := range o.stopOrder() {
		if st.sub == nil {
			continue
		}
		if o.SubsystemState(st.role) != StateRunning {
			continue
		}

		o.setState(st.role, StateStopping)
		o.logger.Info("stopping subsystem", "subsystem", st.role)

		if err := st.sub.Stop(timeout); err != nil {
			o.setState(st.role, StateFailed)
			o.monitor.UpdateFromError(st.role, err)
			o.logger.Error("subsystem stop failed", "subsystem", st.role, "error", err)
			errs = append(errs, &StopError{Subsystem: st.role, Err: err})
			continue
		}

		o.setState(st.role, StateStopped)
		o.monitor.UpdateDegraded(st.role, "stopped")
	}

	o.setOverall(StateStopped)
	o.logger.Info("service stopped", "errors", len(errs))
	return stderrors.Join(errs...)
}

// State returns the overall service state.
func (o *Orchestrator) State() State {
	o.stateMu.RLock()
	defer o.stateMu.RUnlock()
	return o.overall
}

// SubsystemState returns one subsystem's state by role key.
func (o *Orchestrator) SubsystemState(role string) State {
	o.stateMu.RLock()
	defer o.stateMu.RUnlock()
	return o.states[role]
}

// States returns a copy of every subsystem's state plus the overall
// service state under the key "service".
func (o *Orchestrator) States() map[string]State {
	o.stateMu.RLock()
	defer o.stateMu.RUnlock()

	out := make(map[string]State, len(o.states)+1)
	for role, state := range o.states {
		out[role] = state
	}
	out["service"] = o.overall
	return out
}

// Running reports whether the whole service is up.
func (o *Orchestrator) Running() bool {
	return o.State() == StateRunning
}

// Health aggregates the started subsystems' health. Subsystems never
// started (including unconfigured optional ones) do not weigh in.
func (o *Orchestrator) Health() health.Status {
	return o.monitor.AggregateHealth("vision-middleware")
}

func (o *Orchestrator) setOverall(state State) {
	o.stateMu.Lock()
	defer o.stateMu.Unlock()
	o.overall = state
}

func (o *Orchestrator) setState(role string, state State) {
	o.stateMu.Lock()
	defer o.stateMu.Unlock()
	o.states[role] = state
}
