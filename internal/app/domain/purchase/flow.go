package purchase

import (
	"errors"
	"fmt"
)

// State is a node of the approve/confirm transaction flow.
type State string

const (
	StateIdle              State = "idle"
	StateCheckingAllowance State = "checking_allowance"
	StateNeedsApproval     State = "needs_approval"
	StateApproving         State = "approving"
	StateApproved          State = "approved"
	StateConfirming        State = "confirming"
	StateConfirmed         State = "confirmed"

	// StateFailed is a transient marker for UI messaging only. The
	// transition table never parks a flow here: failures route back to
	// the last actionable state so the user can retry.
	StateFailed State = "failed"
)

// Event drives the flow state machine.
type Event string

const (
	EventStart                Event = "start"
	EventAllowanceGranted     Event = "allowance_granted"
	EventAllowanceMissing     Event = "allowance_missing"
	EventAllowanceCheckFailed Event = "allowance_check_failed"
	EventApproveSubmitted     Event = "approve_submitted"
	EventApproveSucceeded     Event = "approve_succeeded"
	EventApproveFailed        Event = "approve_failed"
	EventConfirmSubmitted     Event = "confirm_submitted"
	EventConfirmSucceeded     Event = "confirm_succeeded"
	EventConfirmFailed        Event = "confirm_failed"
)

// ErrInvalidTransition is returned when an event is not legal in the
// current state.
var ErrInvalidTransition = errors.New("invalid flow transition")

var transitions = map[State]map[Event]State{
	StateIdle: {
		EventStart: StateCheckingAllowance,
	},
	StateCheckingAllowance: {
		EventAllowanceGranted: StateApproved,
		EventAllowanceMissing: StateNeedsApproval,
		// A failed allowance query is treated as "approval required"
		// rather than silently skipping the approval step.
		EventAllowanceCheckFailed: StateNeedsApproval,
	},
	StateNeedsApproval: {
		EventApproveSubmitted: StateApproving,
	},
	StateApproving: {
		EventApproveSucceeded: StateApproved,
		EventApproveFailed:    StateNeedsApproval,
	},
	StateApproved: {
		EventConfirmSubmitted: StateConfirming,
	},
	StateConfirming: {
		EventConfirmSucceeded: StateConfirmed,
		EventConfirmFailed:    StateApproved,
	},
	StateConfirmed: {},
}

// Transition applies a single event to the flow state machine and returns
// the resulting state.
func Transition(state State, event Event) (State, error) {
	next, ok := transitions[state][event]
	if !ok {
		return state, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, event, state)
	}
	return next, nil
}

// FailureEvent reports whether the event represents a failed external call.
func (e Event) FailureEvent() bool {
	switch e {
	case EventAllowanceCheckFailed, EventApproveFailed, EventConfirmFailed:
		return true
	}
	return false
}

// Actionable reports whether the user can act from this state (submit an
// approval or a confirmation).
func (s State) Actionable() bool {
	return s == StateNeedsApproval || s == StateApproved
}

// Terminal reports whether the flow has finished.
func (s State) Terminal() bool {
	return s == StateConfirmed
}
