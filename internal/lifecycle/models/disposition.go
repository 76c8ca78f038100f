package models

import (
	"time"

	id "bloodbank/pkg/domain"
	dErrors "bloodbank/pkg/domain-errors"
)

// Return records a component coming back after issue.
type Return struct {
	ID          id.ReturnID    `json:"id"`
	OrgID       id.OrgID       `json:"org_id"`
	ComponentID id.ComponentID `json:"component_id"`
	Source      string         `json:"source"`
	Reason      string         `json:"reason"`
	Status      ReturnStatus   `json:"status"`
	QCPass      *bool          `json:"qc_pass,omitempty"`
	Decision    ReturnDecision `json:"decision,omitempty"`
	ReceivedAt  time.Time      `json:"received_at"`
	ReceivedBy  id.ActorID     `json:"received_by"`
	ProcessedAt *time.Time     `json:"processed_at,omitempty"`
	ProcessedBy id.ActorID     `json:"processed_by,omitempty"`
	Version     int            `json:"version"`
}

func NewReturn(org id.OrgID, componentID id.ComponentID, source, reason string, actor id.ActorID, now time.Time) (*Return, error) {
	if source == "" {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "return source is required")
	}
	return &Return{
		ID:          id.NewReturnID(),
		OrgID:       org,
		ComponentID: componentID,
		Source:      source,
		Reason:      reason,
		Status:      ReturnPending,
		ReceivedAt:  now,
		ReceivedBy:  actor,
	}, nil
}

// Process records the inspection outcome exactly once.
func (r *Return) Process(qcPass bool, decision ReturnDecision, actor id.ActorID, now time.Time) error {
	if r.Status != ReturnPending {
		return dErrors.New(dErrors.CodeConflict, "return already processed").
			WithDetail("status", r.Status)
	}
	if !decision.IsValid() {
		return dErrors.New(dErrors.CodeInvalidArgument, "unknown return decision "+string(decision))
	}
	if decision == ReturnAccept && !qcPass {
		return dErrors.New(dErrors.CodeInvalidArgument, "a return can only be accepted after passing QC")
	}
	r.QCPass = &qcPass
	r.Decision = decision
	r.ProcessedAt = &now
	r.ProcessedBy = actor
	if decision == ReturnAccept {
		r.Status = ReturnAccepted
	} else {
		r.Status = ReturnRejected
	}
	return nil
}

// Discard records a permanent removal and, later, its destruction evidence.
type Discard struct {
	ID                id.DiscardID  `json:"id"`
	OrgID             id.OrgID      `json:"org_id"`
	Target            Target        `json:"target"`
	Reason            DiscardReason `json:"reason"`
	Details           string        `json:"details,omitempty"`
	DiscardedAt       time.Time     `json:"discarded_at"`
	DiscardedBy       id.ActorID    `json:"discarded_by"`
	DestructionMethod string        `json:"destruction_method,omitempty"`
	Witness           string        `json:"witness,omitempty"`
	DestroyedAt       *time.Time    `json:"destroyed_at,omitempty"`
	DestroyedBy       id.ActorID    `json:"destroyed_by,omitempty"`
	Version           int           `json:"version"`
}

func NewDiscard(org id.OrgID, target Target, reason DiscardReason, details string, actor id.ActorID, now time.Time) (*Discard, error) {
	if !reason.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "unknown discard reason "+string(reason))
	}
	return &Discard{
		ID:          id.NewDiscardID(),
		OrgID:       org,
		Target:      target,
		Reason:      reason,
		Details:     details,
		DiscardedAt: now,
		DiscardedBy: actor,
	}, nil
}

func (d *Discard) IsDestroyed() bool { return d.DestroyedAt != nil }

// MarkDestroyed records destruction evidence. It is informational: the
// target is already terminal.
func (d *Discard) MarkDestroyed(method, witness string, actor id.ActorID, now time.Time) error {
	if d.IsDestroyed() {
		return dErrors.New(dErrors.CodeConflict, "discard already marked destroyed")
	}
	if method == "" {
		return dErrors.New(dErrors.CodeInvalidArgument, "destruction method is required")
	}
	d.DestructionMethod = method
	d.Witness = witness
	d.DestroyedAt = &now
	d.DestroyedBy = actor
	return nil
}
