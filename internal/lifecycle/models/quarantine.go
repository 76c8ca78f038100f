package models

import (
	"time"

	id "bloodbank/pkg/domain"
	dErrors "bloodbank/pkg/domain-errors"
)

// Quarantine blocks a target until it is resolved, exactly once, by release
// or discard.
type Quarantine struct {
	ID            id.QuarantineID       `json:"id"`
	OrgID         id.OrgID              `json:"org_id"`
	Target        Target                `json:"target"`
	Reason        QuarantineReason      `json:"reason"`
	PriorState    UnitState             `json:"prior_state"`
	Notes         string                `json:"notes,omitempty"`
	QuarantinedAt time.Time             `json:"quarantined_at"`
	PlacedBy      id.ActorID            `json:"placed_by"`
	RetestResult  SerologyOutcome       `json:"retest_result,omitempty"`
	Disposition   QuarantineDisposition `json:"disposition,omitempty"`
	ResolvedAt    *time.Time            `json:"resolved_at,omitempty"`
	ResolvedBy    id.ActorID            `json:"resolved_by,omitempty"`
	Version       int                   `json:"version"`
}

// NewQuarantine opens a quarantine on a target currently in prior.
func NewQuarantine(org id.OrgID, target Target, reason QuarantineReason, prior UnitState, actor id.ActorID, now time.Time) *Quarantine {
	return &Quarantine{
		ID:            id.NewQuarantineID(),
		OrgID:         org,
		Target:        target,
		Reason:        reason,
		PriorState:    prior,
		QuarantinedAt: now,
		PlacedBy:      actor,
	}
}

func (q *Quarantine) IsOpen() bool { return q.ResolvedAt == nil }

// CanResolve checks the resolution request against the record.
// Release requires a non_reactive retest.
func (q *Quarantine) CanResolve(retest SerologyOutcome, disposition QuarantineDisposition) error {
	if !q.IsOpen() {
		return dErrors.New(dErrors.CodeConflict, "quarantine already resolved").
			WithDetail("disposition", q.Disposition)
	}
	if !disposition.IsValid() {
		return dErrors.New(dErrors.CodeInvalidArgument, "unknown disposition "+string(disposition))
	}
	if retest != "" && !retest.IsValid() {
		return dErrors.New(dErrors.CodeInvalidArgument, "unknown retest result "+string(retest))
	}
	if disposition == DispositionRelease && retest != OutcomeNonReactive {
		return dErrors.New(dErrors.CodeInvalidArgument, "release requires a non_reactive retest").
			WithDetail("retest_result", retest)
	}
	return nil
}

// ReleaseState is where a release returns the target. A component goes back
// to its prior stage, pending a fresh QC pass. A unit goes back to lab only
// when serologyCleared reports a non_reactive panel as its latest lab test,
// otherwise to collected to await one.
func (q *Quarantine) ReleaseState(serologyCleared bool) UnitState {
	if q.Target.Kind == TargetComponent {
		if q.PriorState == "" {
			return StateProcessing
		}
		return q.PriorState
	}
	if serologyCleared {
		return StateLab
	}
	return StateCollected
}

// ApplyResolution records the decision. Call CanResolve first.
func (q *Quarantine) ApplyResolution(retest SerologyOutcome, disposition QuarantineDisposition, actor id.ActorID, now time.Time) {
	q.RetestResult = retest
	q.Disposition = disposition
	q.ResolvedAt = &now
	q.ResolvedBy = actor
}
