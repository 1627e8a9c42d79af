package purchase

import (
	"errors"
	"testing"
)

func TestTransition_HappyPathWithApproval(t *testing.T) {
	steps := []struct {
		event Event
		want  State
	}{
		{EventStart, StateCheckingAllowance},
		{EventAllowanceMissing, StateNeedsApproval},
		{EventApproveSubmitted, StateApproving},
		{EventApproveSucceeded, StateApproved},
		{EventConfirmSubmitted, StateConfirming},
		{EventConfirmSucceeded, StateConfirmed},
	}

	state := StateIdle
	for _, step := range steps {
		next, err := Transition(state, step.event)
		if err != nil {
			t.Fatalf("transition %s on %s: %v", step.event, state, err)
		}
		if next != step.want {
			t.Fatalf("transition %s on %s = %s, want %s", step.event, state, next, step.want)
		}
		state = next
	}
	if !state.Terminal() {
		t.Fatalf("expected terminal state, got %s", state)
	}
}

func TestTransition_ExistingAllowanceSkipsApproval(t *testing.T) {
	state, _ := Transition(StateIdle, EventStart)
	state, err := Transition(state, EventAllowanceGranted)
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if state != StateApproved {
		t.Fatalf("expected approved, got %s", state)
	}
}

func TestTransition_AllowanceQueryFailureIsFailSafe(t *testing.T) {
	// A failed allowance query must land in needs-approval, never approved.
	state, err := Transition(StateCheckingAllowance, EventAllowanceCheckFailed)
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if state != StateNeedsApproval {
		t.Fatalf("expected needs_approval, got %s", state)
	}
}

func TestTransition_FailuresReturnToActionableStates(t *testing.T) {
	cases := []struct {
		from  State
		event Event
		want  State
	}{
		{StateApproving, EventApproveFailed, StateNeedsApproval},
		{StateConfirming, EventConfirmFailed, StateApproved},
	}
	for _, tc := range cases {
		got, err := Transition(tc.from, tc.event)
		if err != nil {
			t.Fatalf("transition %s on %s: %v", tc.event, tc.from, err)
		}
		if got != tc.want {
			t.Fatalf("transition %s on %s = %s, want %s", tc.event, tc.from, got, tc.want)
		}
		if !got.Actionable() {
			t.Fatalf("failure must land in an actionable state, got %s", got)
		}
	}
}

func TestTransition_Invalid(t *testing.T) {
	cases := []struct {
		from  State
		event Event
	}{
		{StateIdle, EventConfirmSubmitted},
		{StateConfirmed, EventConfirmSubmitted},
		{StateApproved, EventApproveSubmitted},
		{StateNeedsApproval, EventConfirmSubmitted},
	}
	for _, tc := range cases {
		got, err := Transition(tc.from, tc.event)
		if !errors.Is(err, ErrInvalidTransition) {
			t.Fatalf("transition %s on %s: expected ErrInvalidTransition, got %v", tc.event, tc.from, err)
		}
		if got != tc.from {
			t.Fatalf("state must be unchanged on invalid transition, got %s", got)
		}
	}
}

func TestEvent_FailureEvent(t *testing.T) {
	for _, e := range []Event{EventAllowanceCheckFailed, EventApproveFailed, EventConfirmFailed} {
		if !e.FailureEvent() {
			t.Errorf("%s should be a failure event", e)
		}
	}
	for _, e := range []Event{EventStart, EventApproveSucceeded, EventConfirmSucceeded} {
		if e.FailureEvent() {
			t.Errorf("%s should not be a failure event", e)
		}
	}
}
