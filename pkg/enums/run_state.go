package enums

import "fmt"

// RunState tracks the lifecycle of a bulk-purchase run.
type RunState string

const (
	RunStatePlanning     RunState = "planning"
	RunStateActive       RunState = "active"
	RunStateConfirmed    RunState = "confirmed"
	RunStateShopping     RunState = "shopping"
	RunStateAdjusting    RunState = "adjusting"
	RunStateDistributing RunState = "distributing"
	RunStateCompleted    RunState = "completed"
	RunStateCancelled    RunState = "cancelled"
)

var validRunStates = []RunState{
	RunStatePlanning,
	RunStateActive,
	RunStateConfirmed,
	RunStateShopping,
	RunStateAdjusting,
	RunStateDistributing,
	RunStateCompleted,
	RunStateCancelled,
}

// String implements fmt.Stringer.
func (s RunState) String() string {
	return string(s)
}

// IsValid reports whether the value is a known RunState.
func (s RunState) IsValid() bool {
	for _, candidate := range validRunStates {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether the state accepts no further transitions.
func (s RunState) IsTerminal() bool {
	return s == RunStateCompleted || s == RunStateCancelled
}

// ParseRunState converts raw input into a RunState.
func ParseRunState(value string) (RunState, error) {
	for _, candidate := range validRunStates {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid run state %q", value)
}
