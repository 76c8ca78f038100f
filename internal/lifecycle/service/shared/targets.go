package shared

import (
	"context"
	"errors"
	"time"

	"bloodbank/internal/lifecycle/models"
	"bloodbank/internal/lifecycle/ports"
	id "bloodbank/pkg/domain"
	dErrors "bloodbank/pkg/domain-errors"
	"bloodbank/pkg/platform/audit"
	"bloodbank/pkg/platform/sentinel"
)

// TargetState loads the current state of a unit or component.
func TargetState(ctx context.Context, repos ports.Repositories, target models.Target) (models.UnitState, error) {
	switch target.Kind {
	case models.TargetUnit:
		u, err := repos.Units.Get(ctx, target.UnitID())
		if err != nil {
			return "", Translate(err, "unit")
		}
		return u.State, nil
	case models.TargetComponent:
		c, err := repos.Components.Get(ctx, target.ComponentID())
		if err != nil {
			return "", Translate(err, "component")
		}
		return c.State, nil
	default:
		return "", dErrors.New(dErrors.CodeInvalidArgument, "unknown target kind "+string(target.Kind))
	}
}

// MoveTarget applies a state change to a unit or component, writes it with
// a version check and journals it. It returns the state moved from.
func (j *Journal) MoveTarget(ctx context.Context, repos ports.Repositories, target models.Target, to models.UnitState, action audit.Action, reason string, now time.Time) (models.UnitState, error) {
	var from models.UnitState
	switch target.Kind {
	case models.TargetUnit:
		u, err := repos.Units.Get(ctx, target.UnitID())
		if err != nil {
			return "", Translate(err, "unit")
		}
		from = u.State
		if err := u.TransitionTo(to, now); err != nil {
			return "", err
		}
		if err := repos.Units.Update(ctx, u); err != nil {
			return "", Translate(err, "unit")
		}
	case models.TargetComponent:
		c, err := repos.Components.Get(ctx, target.ComponentID())
		if err != nil {
			return "", Translate(err, "component")
		}
		from = c.State
		if err := c.TransitionTo(to, now); err != nil {
			return "", err
		}
		// Cancelling a reservation always puts stock back; allocation skips
		// it while its QC is held.
		if to.RequiresApprovedQC() && !(from == models.StateReserved && to == models.StateReadyToUse) {
			if err := RequireApprovedQC(ctx, repos, target, to); err != nil {
				return "", err
			}
		}
		if err := repos.Components.Update(ctx, c); err != nil {
			return "", Translate(err, "component")
		}
	default:
		return "", dErrors.New(dErrors.CodeInvalidArgument, "unknown target kind "+string(target.Kind))
	}
	return from, j.Move(ctx, repos, target, from, to, action, reason)
}

// RequireNotQuarantined fails with InvalidState while the target has an open
// quarantine.
func RequireNotQuarantined(ctx context.Context, repos ports.Repositories, target models.Target) error {
	q, err := repos.Quarantines.FindOpen(ctx, target)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil
	}
	if err != nil {
		return Translate(err, "quarantine")
	}
	return dErrors.New(dErrors.CodeInvalidState, string(target.Kind)+" has an open quarantine").
		WithDetail("quarantine_id", q.ID.String()).
		WithDetail("reason", q.Reason)
}

// LatestQCApproved reports whether the target's most recent QC validation is
// approved. A later hold revokes an earlier approval; validations sharing
// the latest timestamp must all be approved.
func LatestQCApproved(ctx context.Context, repos ports.Repositories, target models.Target) (bool, error) {
	validations, err := repos.QC.ListByTarget(ctx, target)
	if err != nil {
		return false, Translate(err, "qc validation")
	}
	if len(validations) == 0 {
		return false, nil
	}
	latest := validations[0].ValidatedAt
	for _, v := range validations {
		if v.ValidatedAt.Before(latest) {
			break
		}
		if !v.IsApproved() {
			return false, nil
		}
	}
	return true, nil
}

// RequireApprovedQC fails with InvalidState unless LatestQCApproved holds.
func RequireApprovedQC(ctx context.Context, repos ports.Repositories, target models.Target, to models.UnitState) error {
	ok, err := LatestQCApproved(ctx, repos, target)
	if err != nil {
		return err
	}
	if !ok {
		return dErrors.New(dErrors.CodeInvalidState, string(target.Kind)+" has no current approved QC validation").
			WithDetail("requested_state", to)
	}
	return nil
}

// SerologyCleared reports whether the unit's latest lab test is non_reactive.
// Tests sharing the latest timestamp must all be non_reactive.
func SerologyCleared(ctx context.Context, repos ports.Repositories, unitID id.UnitID) (bool, error) {
	tests, err := repos.LabTests.ListByUnit(ctx, unitID)
	if err != nil {
		return false, Translate(err, "lab test")
	}
	if len(tests) == 0 {
		return false, nil
	}
	latest := tests[len(tests)-1].TestedAt
	for i := len(tests) - 1; i >= 0 && !tests[i].TestedAt.Before(latest); i-- {
		if tests[i].Outcome != models.OutcomeNonReactive {
			return false, nil
		}
	}
	return true, nil
}
