// Package qc runs the release checklist that moves components to
// ready_to_use.
package qc

import (
	"context"

	"bloodbank/internal/lifecycle/models"
	"bloodbank/internal/lifecycle/ports"
	"bloodbank/internal/lifecycle/service/shared"
	dErrors "bloodbank/pkg/domain-errors"
	"bloodbank/pkg/platform/audit"
	"bloodbank/pkg/requestcontext"
)

type Service struct {
	shared.Base
}

func New(store ports.Store, opts ...shared.Option) (*Service, error) {
	base, err := shared.NewBase(store, opts...)
	if err != nil {
		return nil, err
	}
	return &Service{Base: base}, nil
}

type ValidateRequest struct {
	Target            models.Target
	DataComplete      bool
	ScreeningComplete bool
	CustodyComplete   bool
}

// ValidateResult pairs the stored validation with the target's state after it.
type ValidateResult struct {
	Validation *models.QCValidation
	State      models.UnitState
}

// Validate records a QC validation. An approved component in processing
// moves to ready_to_use. A hold leaves the target where it is. Unit
// validations are recorded only, since units never become ready_to_use.
func (s *Service) Validate(ctx context.Context, req ValidateRequest) (*ValidateResult, error) {
	org, err := shared.Org(ctx)
	if err != nil {
		return nil, err
	}
	if !req.Target.Kind.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "unknown target kind "+string(req.Target.Kind))
	}

	now := requestcontext.Now(ctx)
	v := models.NewQCValidation(org, req.Target, req.DataComplete, req.ScreeningComplete, req.CustodyComplete,
		requestcontext.ActorID(ctx), now)
	res := &ValidateResult{Validation: v}

	journal := s.Journal()
	err = s.Store.RunInTx(ctx, org, func(ctx context.Context, repos ports.Repositories) error {
		state, err := shared.TargetState(ctx, repos, req.Target)
		if err != nil {
			return err
		}
		if err := checkValidatable(req.Target, state); err != nil {
			return err
		}
		if err := shared.RequireNotQuarantined(ctx, repos, req.Target); err != nil {
			return err
		}
		if err := repos.QC.Create(ctx, v); err != nil {
			return shared.Translate(err, "qc validation")
		}
		res.State = state

		if !v.IsApproved() {
			return journal.Move(ctx, repos, req.Target, state, state, audit.ActionQCHeld, v.HoldReason)
		}
		if req.Target.Kind == models.TargetComponent && state == models.StateProcessing {
			res.State = models.StateReadyToUse
			_, err := journal.MoveTarget(ctx, repos, req.Target, models.StateReadyToUse, audit.ActionQCApproved, "", now)
			return err
		}
		return journal.Move(ctx, repos, req.Target, state, state, audit.ActionQCApproved, "")
	})
	if err != nil {
		return nil, shared.Translate(err, string(req.Target.Kind))
	}
	journal.Committed(ctx)
	return res, nil
}

func checkValidatable(target models.Target, state models.UnitState) error {
	if state.IsTerminal() {
		return dErrors.New(dErrors.CodeInvalidState, string(target.Kind)+" is "+string(state)).
			WithDetail("current_state", state)
	}
	if target.Kind == models.TargetUnit {
		return nil
	}
	if state != models.StateProcessing && state != models.StateReadyToUse {
		return dErrors.New(dErrors.CodeInvalidState, "component cannot be validated in "+string(state)).
			WithDetail("current_state", state)
	}
	return nil
}
