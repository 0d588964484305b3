package control

import (
	"errors"
	"time"

	"github.com/vietddude/cycler/internal/core/domain"
)

// State is an alias for domain.SupervisorState for internal use.
type State = domain.SupervisorState

var (
	// ErrInvalidTransition is returned when an invalid state transition is attempted.
	ErrInvalidTransition = errors.New("invalid state transition")
	// ErrLoopDisabled is returned by Start when the loop record disables the loop.
	ErrLoopDisabled = errors.New("auto loop is disabled")
)

// ValidTransitions defines allowed state transitions.
// Key is the current state, value is the list of valid next states.
var ValidTransitions = map[State][]State{
	domain.SupervisorIdle:     {domain.SupervisorRunning, domain.SupervisorStopped},
	domain.SupervisorRunning:  {domain.SupervisorCooldown, domain.SupervisorStopped},
	domain.SupervisorCooldown: {domain.SupervisorRunning, domain.SupervisorStopped},
}

// AllStates lists every supervisor state.
var AllStates = []State{
	domain.SupervisorIdle,
	domain.SupervisorRunning,
	domain.SupervisorCooldown,
	domain.SupervisorStopped,
}

// CanTransition checks if a transition from one state to another is valid.
func CanTransition(from, to State) bool {
	for _, target := range ValidTransitions[from] {
		if target == to {
			return true
		}
	}
	return false
}

// Transition represents a state change with metadata.
type Transition struct {
	From      State
	To        State
	Reason    string
	Timestamp time.Time
}

// StateDescription returns a human-readable description of a state.
func StateDescription(s State) string {
	switch s {
	case domain.SupervisorIdle:
		return "Idle - supervisor created, loop not started"
	case domain.SupervisorRunning:
		return "Running - a cycle is in progress"
	case domain.SupervisorCooldown:
		return "Cooldown - waiting for the next scheduled cycle"
	case domain.SupervisorStopped:
		return "Stopped - halted by operator or shutdown signal"
	default:
		return "Unknown state"
	}
}
