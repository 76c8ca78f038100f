package models

import (
	"fmt"

	dErrors "bloodbank/pkg/domain-errors"
)

// UnitState is the lifecycle state shared by blood units and components.
type UnitState string

const (
	StateCollected   UnitState = "collected"
	StateLab         UnitState = "lab"
	StateProcessing  UnitState = "processing"
	StateQuarantine  UnitState = "quarantine"
	StateReadyToUse  UnitState = "ready_to_use"
	StateReserved    UnitState = "reserved"
	StateIssued      UnitState = "issued"
	StateReturned    UnitState = "returned"
	StateDiscarded   UnitState = "discarded"
	StateTransferred UnitState = "transferred"
	StateExpired     UnitState = "expired"
)

// transitions is the single source of truth for the lifecycle graph.
// quarantine releases back to the stage the target was cleared for; a unit
// without a clearing serology panel goes back to collected.
var transitions = map[UnitState][]UnitState{
	StateCollected:  {StateLab, StateQuarantine},
	StateLab:        {StateProcessing, StateQuarantine},
	StateProcessing: {StateReadyToUse, StateQuarantine},
	StateQuarantine: {StateCollected, StateLab, StateProcessing, StateDiscarded},
	StateReadyToUse: {StateReserved, StateDiscarded, StateExpired},
	StateReserved:   {StateIssued, StateReadyToUse},
	StateIssued:     {StateReturned, StateTransferred},
	StateReturned:   {StateReadyToUse, StateDiscarded},
}

var terminalStates = map[UnitState]bool{
	StateDiscarded:   true,
	StateTransferred: true,
	StateExpired:     true,
}

// ParseUnitState validates a state received at a trust boundary.
func ParseUnitState(s string) (UnitState, error) {
	return parseEnum(s, "state", UnitState.IsValid)
}

func (s UnitState) IsValid() bool {
	_, ok := transitions[s]
	return ok || terminalStates[s]
}

func (s UnitState) String() string { return string(s) }

// IsTerminal reports whether no further transition is allowed.
func (s UnitState) IsTerminal() bool { return terminalStates[s] }

// CanTransition reports whether the graph has an edge from -> to.
func CanTransition(from, to UnitState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CheckTransition returns an InvalidState error naming both states when the
// move is not an edge of the graph.
func CheckTransition(from, to UnitState) error {
	if from.IsTerminal() {
		return dErrors.New(dErrors.CodeInvalidState, fmt.Sprintf("%s is terminal; cannot move to %s", from, to)).
			WithDetail("current_state", from).
			WithDetail("requested_state", to)
	}
	if !CanTransition(from, to) {
		return dErrors.New(dErrors.CodeInvalidState, fmt.Sprintf("cannot move from %s to %s", from, to)).
			WithDetail("current_state", from).
			WithDetail("requested_state", to)
	}
	return nil
}

// RequiresApprovedQC lists the states that may only be entered or held
// by a target with an approved QC validation on record.
func (s UnitState) RequiresApprovedQC() bool {
	return s == StateReadyToUse || s == StateReserved || s == StateIssued
}
