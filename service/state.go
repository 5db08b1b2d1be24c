package service

import (
	"encoding/json"
	"fmt"

	"github.com/kagwave/vision-middleware/errors"
)

// State is one subsystem's lifecycle position. The orchestrator tracks a
// State per subsystem and one for the service overall.
type State string

const (
	// StateNotStarted is the initial state, and the permanent state of
	// subsystems that are configured off.
	StateNotStarted State = "NotStarted"

	// StateStarting means Start is in flight.
	StateStarting State = "Starting"

	// StateRunning means the subsystem started cleanly and has not been
	// stopped.
	StateRunning State = "Running"

	// StateStopping means Stop is in flight.
	StateStopping State = "Stopping"

	// StateStopped means the subsystem stopped cleanly.
	StateStopped State = "Stopped"

	// StateFailed means Start or Stop returned an error. Failed is
	// terminal; the service does not restart subsystems.
	StateFailed State = "Failed"
)

// IsValid reports whether s is a known state.
func (s State) IsValid() bool {
	switch s {
	case StateNotStarted, StateStarting, StateRunning, StateStopping, StateStopped, StateFailed:
		return true
	}
	return false
}

// String returns the state name.
func (s State) String() string {
	return string(s)
}

// MarshalJSON encodes the state as its name.
func (s State) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON decodes a state name, rejecting unknown values.
func (s *State) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return errors.WrapInvalid(err, "State", "UnmarshalJSON", "state must be a string")
	}

	state := State(name)
	if !state.IsValid() {
		return errors.WrapInvalid(errors.ErrInvalidData, "State", "UnmarshalJSON",
			fmt.Sprintf("unknown state %q", name))
	}

	*s = state
	return nil
}
