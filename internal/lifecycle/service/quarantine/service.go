// Package quarantine places blocking holds on units and components and
// resolves them exactly once.
package quarantine

import (
	"context"
	"errors"

	"bloodbank/internal/lifecycle/models"
	"bloodbank/internal/lifecycle/ports"
	"bloodbank/internal/lifecycle/service/shared"
	id "bloodbank/pkg/domain"
	dErrors "bloodbank/pkg/domain-errors"
	"bloodbank/pkg/platform/audit"
	"bloodbank/pkg/platform/sentinel"
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

type PlaceRequest struct {
	Target models.Target
	Reason string
	Notes  string
}

// Place opens a manual quarantine on a unit that is collected or in lab, or
// on a component in processing. Serology opens the reactive and gray ones.
func (s *Service) Place(ctx context.Context, req PlaceRequest) (*models.Quarantine, error) {
	org, err := shared.Org(ctx)
	if err != nil {
		return nil, err
	}
	reason, err := models.ParseQuarantineReason(req.Reason)
	if err != nil {
		return nil, err
	}
	if !reason.IsManual() {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "quarantine reason "+string(reason)+" is set by serology").
			WithDetail("reason", reason)
	}
	if !req.Target.Kind.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "unknown target kind "+string(req.Target.Kind))
	}

	now := requestcontext.Now(ctx)
	var q *models.Quarantine

	journal := s.Journal()
	err = s.Store.RunInTx(ctx, org, func(ctx context.Context, repos ports.Repositories) error {
		open, err := repos.Quarantines.FindOpen(ctx, req.Target)
		switch {
		case err == nil:
			return dErrors.New(dErrors.CodeConflict, string(req.Target.Kind)+" already has an open quarantine").
				WithDetail("quarantine_id", open.ID.String())
		case !errors.Is(err, sentinel.ErrNotFound):
			return shared.Translate(err, "quarantine")
		}
		state, err := shared.TargetState(ctx, repos, req.Target)
		if err != nil {
			return err
		}
		if err := checkPlaceable(req.Target, state); err != nil {
			return err
		}
		q = models.NewQuarantine(org, req.Target, reason, state, requestcontext.ActorID(ctx), now)
		q.Notes = req.Notes
		if err := repos.Quarantines.Create(ctx, q); err != nil {
			return shared.Translate(err, "quarantine")
		}
		if _, err := journal.MoveTarget(ctx, repos, req.Target, models.StateQuarantine, audit.ActionQuarantinePlaced, string(reason), now); err != nil {
			return err
		}
		return journal.Record(ctx, repos, shared.KindQuarantine, q.ID.String(), "", "open", audit.ActionQuarantinePlaced, string(reason))
	})
	if err != nil {
		return nil, shared.Translate(err, string(req.Target.Kind))
	}
	journal.Committed(ctx)
	if s.Metrics != nil {
		s.Metrics.IncrementQuarantine(string(reason))
	}
	return q, nil
}

func checkPlaceable(target models.Target, state models.UnitState) error {
	allowed := state == models.StateProcessing
	if target.Kind == models.TargetUnit {
		allowed = state == models.StateCollected || state == models.StateLab
	}
	if !allowed {
		return dErrors.New(dErrors.CodeInvalidState, string(target.Kind)+" cannot be quarantined in "+string(state)).
			WithDetail("current_state", state)
	}
	return nil
}

type ResolveRequest struct {
	QuarantineID id.QuarantineID
	RetestResult string
	Disposition  string
}

type ResolveResult struct {
	Quarantine *models.Quarantine
	State      models.UnitState
	Discard    *models.Discard
}

// Resolve closes an open quarantine. Release needs a non_reactive retest.
// A component returns to its prior stage; a unit returns to lab when its
// latest lab test is non_reactive and to collected otherwise. Discard makes
// the target terminal and opens a Discard awaiting destruction.
func (s *Service) Resolve(ctx context.Context, req ResolveRequest) (*ResolveResult, error) {
	org, err := shared.Org(ctx)
	if err != nil {
		return nil, err
	}
	disposition, err := models.ParseQuarantineDisposition(req.Disposition)
	if err != nil {
		return nil, err
	}
	var retest models.SerologyOutcome
	if req.RetestResult != "" {
		if retest, err = models.ParseSerologyOutcome(req.RetestResult); err != nil {
			return nil, err
		}
	}

	now := requestcontext.Now(ctx)
	actor := requestcontext.ActorID(ctx)
	res := &ResolveResult{}
	journal := s.Journal()
	err = s.Store.RunInTx(ctx, org, func(ctx context.Context, repos ports.Repositories) error {
		q, err := repos.Quarantines.Get(ctx, req.QuarantineID)
		if err != nil {
			return shared.Translate(err, "quarantine")
		}
		if err := q.CanResolve(retest, disposition); err != nil {
			return err
		}

		switch disposition {
		case models.DispositionRelease:
			cleared := false
			if q.Target.Kind == models.TargetUnit {
				if cleared, err = shared.SerologyCleared(ctx, repos, q.Target.UnitID()); err != nil {
					return err
				}
			}
			res.State = q.ReleaseState(cleared)
			if _, err := journal.MoveTarget(ctx, repos, q.Target, res.State, audit.ActionQuarantineReleased, string(retest), now); err != nil {
				return err
			}
		case models.DispositionDiscard:
			res.State = models.StateDiscarded
			if _, err := journal.MoveTarget(ctx, repos, q.Target, res.State, audit.ActionQuarantineDiscarded, string(q.Reason), now); err != nil {
				return err
			}
			d, err := models.NewDiscard(org, q.Target, q.Reason.DiscardReason(), q.Notes, actor, now)
			if err != nil {
				return err
			}
			if err := repos.Discards.Create(ctx, d); err != nil {
				return shared.Translate(err, "discard")
			}
			if err := journal.Record(ctx, repos, shared.KindDiscard, d.ID.String(), "", "pending_destruction", audit.ActionDiscardCreated, string(d.Reason)); err != nil {
				return err
			}
			res.Discard = d
		}

		q.ApplyResolution(retest, disposition, actor, now)
		if err := repos.Quarantines.Update(ctx, q); err != nil {
			return shared.Translate(err, "quarantine")
		}
		res.Quarantine = q
		return journal.Record(ctx, repos, shared.KindQuarantine, q.ID.String(), "open", string(disposition), quarantineAction(disposition), string(retest))
	})
	if err != nil {
		return nil, shared.Translate(err, "quarantine")
	}
	journal.Committed(ctx)
	return res, nil
}

func quarantineAction(d models.QuarantineDisposition) audit.Action {
	if d == models.DispositionRelease {
		return audit.ActionQuarantineReleased
	}
	return audit.ActionQuarantineDiscarded
}

// ListOpen returns the org's unresolved quarantines, oldest first.
func (s *Service) ListOpen(ctx context.Context) ([]*models.Quarantine, error) {
	org, err := shared.Org(ctx)
	if err != nil {
		return nil, err
	}
	var out []*models.Quarantine
	err = s.Store.RunInTx(ctx, org, func(ctx context.Context, repos ports.Repositories) error {
		list, err := repos.Quarantines.ListOpen(ctx)
		out = list
		return err
	})
	if err != nil {
		return nil, shared.Translate(err, "quarantine")
	}
	return out, nil
}
