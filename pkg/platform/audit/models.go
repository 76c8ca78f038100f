package audit

import (
	"context"
	"time"

	id "bloodbank/pkg/domain"

	"github.com/google/uuid"
)

// EventCategory classifies transition events by retention and routing needs.
type EventCategory string

const (
	// CategoryCompliance covers custody-relevant changes: state transitions,
	// quarantine decisions, issuance and destruction. Long retention.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers record-only actions that leave state unchanged,
	// such as a QC hold or an inconclusive serology result.
	CategoryOperations EventCategory = "operations"
)

// Action names the operation that produced a transition event.
type Action string

const (
	ActionUnitRegistered      Action = "unit_registered"
	ActionSerologyRecorded    Action = "serology_recorded"
	ActionUnitSeparated       Action = "unit_separated"
	ActionComponentCreated    Action = "component_created"
	ActionQCApproved          Action = "qc_approved"
	ActionQCHeld              Action = "qc_held"
	ActionQuarantinePlaced    Action = "quarantine_placed"
	ActionQuarantineReleased  Action = "quarantine_released"
	ActionQuarantineDiscarded Action = "quarantine_discarded"
	ActionRequestSubmitted    Action = "request_submitted"
	ActionComponentReserved   Action = "component_reserved"
	ActionReservationReleased Action = "reservation_released"
	ActionIssuancePacked      Action = "issuance_packed"
	ActionIssuanceShipped     Action = "issuance_shipped"
	ActionIssuanceDelivered   Action = "issuance_delivered"
	ActionReturnCreated       Action = "return_created"
	ActionReturnAccepted      Action = "return_accepted"
	ActionReturnRejected      Action = "return_rejected"
	ActionDiscardCreated      Action = "discard_created"
	ActionDiscardDestroyed    Action = "discard_destroyed"
	ActionComponentExpired    Action = "component_expired"
)

var operationsActions = map[Action]struct{}{
	ActionQCHeld:           {},
	ActionSerologyRecorded: {},
	ActionRequestSubmitted: {},
}

// Category returns the EventCategory for this action.
// Anything not explicitly operational is treated as compliance.
func (a Action) Category() EventCategory {
	if _, ok := operationsActions[a]; ok {
		return CategoryOperations
	}
	return CategoryCompliance
}

// TransitionEvent is the append-only history record written for every state
// change and every record-only action. From and To are equal when no state
// moved. Keep it transport-agnostic so stores and the outbox relay can share it.
type TransitionEvent struct {
	ID         uuid.UUID
	OrgID      id.OrgID
	TargetKind string
	TargetID   string
	From       string
	To         string
	Action     Action
	Actor      id.ActorID
	Reason     string
	RequestID  string
	Timestamp  time.Time
}

// Category returns the category derived from the event's action.
func (e TransitionEvent) Category() EventCategory { return e.Action.Category() }

// IsStateChange reports whether the event records a state move.
func (e TransitionEvent) IsStateChange() bool { return e.From != e.To }

// Store persists transition events. Implementations must honor a transaction
// carried in context so events commit atomically with the state change.
type Store interface {
	Append(ctx context.Context, event TransitionEvent) error
	ListByTarget(ctx context.Context, org id.OrgID, kind, targetID string) ([]TransitionEvent, error)
}
