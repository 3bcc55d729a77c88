package runs

import (
	"github.com/mkastler/poolcart-backend/pkg/enums"
)

// transitionTable is the full lifecycle graph. Terminal states have no
// outgoing edges; cancellation is reachable from every non-terminal state.
var transitionTable = map[enums.RunState][]enums.RunState{
	enums.RunStatePlanning:     {enums.RunStateActive, enums.RunStateCancelled},
	enums.RunStateActive:       {enums.RunStateConfirmed, enums.RunStatePlanning, enums.RunStateCancelled},
	enums.RunStateConfirmed:    {enums.RunStateShopping, enums.RunStateActive, enums.RunStateCancelled},
	enums.RunStateShopping:     {enums.RunStateAdjusting, enums.RunStateDistributing, enums.RunStateCancelled},
	enums.RunStateAdjusting:    {enums.RunStateDistributing, enums.RunStateCancelled},
	enums.RunStateDistributing: {enums.RunStateCompleted, enums.RunStateCancelled},
	enums.RunStateCompleted:    {},
	enums.RunStateCancelled:    {},
}

// CanTransition reports whether the lifecycle graph has an edge from one
// state to another.
func CanTransition(from, to enums.RunState) bool {
	for _, target := range transitionTable[from] {
		if target == to {
			return true
		}
	}
	return false
}

// AllowedTargets returns the outgoing edge set for a state.
func AllowedTargets(from enums.RunState) []enums.RunState {
	targets := transitionTable[from]
	out := make([]enums.RunState, len(targets))
	copy(out, targets)
	return out
}

// Gating predicates. Pure functions of the current state; every mutating
// operation consults its predicate and fails with ACTION_NOT_ALLOWED when
// it returns false.

func CanJoin(s enums.RunState) bool {
	return s == enums.RunStatePlanning || s == enums.RunStateActive
}

func CanPlaceBid(s enums.RunState) bool {
	return s == enums.RunStatePlanning || s == enums.RunStateActive || s == enums.RunStateAdjusting
}

func CanRetractBid(s enums.RunState) bool {
	return CanPlaceBid(s)
}

func CanToggleReady(s enums.RunState) bool {
	return s == enums.RunStatePlanning || s == enums.RunStateActive
}

func CanViewShoppingList(s enums.RunState) bool {
	switch s {
	case enums.RunStateConfirmed, enums.RunStateShopping, enums.RunStateAdjusting,
		enums.RunStateDistributing, enums.RunStateCompleted:
		return true
	}
	return false
}

func CanRecordPurchase(s enums.RunState) bool {
	return s == enums.RunStateShopping || s == enums.RunStateAdjusting
}

func CanViewDistribution(s enums.RunState) bool {
	return s == enums.RunStateDistributing || s == enums.RunStateCompleted
}

func CanCompleteDistribution(s enums.RunState) bool {
	return s == enums.RunStateDistributing
}
