// Package disposition tracks components after reservation: issuance
// fulfilment, returns, discards and destruction evidence.
package disposition

import (
	"context"

	"bloodbank/internal/lifecycle/models"
	"bloodbank/internal/lifecycle/ports"
	"bloodbank/internal/lifecycle/service/shared"
	id "bloodbank/pkg/domain"
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

// issuanceStep loads an issuance, applies step and persists it together with
// whatever the step wrote to its components and request.
func (s *Service) issuanceStep(ctx context.Context, issuanceID id.IssuanceID, action audit.Action,
	step func(ctx context.Context, repos ports.Repositories, j *shared.Journal, iss *models.Issuance) error,
) (*models.Issuance, error) {
	org, err := shared.Org(ctx)
	if err != nil {
		return nil, err
	}
	var out *models.Issuance
	journal := s.Journal()
	err = s.Store.RunInTx(ctx, org, func(ctx context.Context, repos ports.Repositories) error {
		iss, err := repos.Issuances.Get(ctx, issuanceID)
		if err != nil {
			return shared.Translate(err, "issuance")
		}
		from := iss.Status
		if err := step(ctx, repos, journal, iss); err != nil {
			return err
		}
		if err := repos.Issuances.Update(ctx, iss); err != nil {
			return shared.Translate(err, "issuance")
		}
		out = iss
		return journal.Record(ctx, repos, shared.KindIssuance, iss.ID.String(), string(from), string(iss.Status), action, iss.ReceivedBy)
	})
	if err != nil {
		return nil, shared.Translate(err, "issuance")
	}
	journal.Committed(ctx)
	return out, nil
}

// Pack moves a picking issuance to packing.
func (s *Service) Pack(ctx context.Context, issuanceID id.IssuanceID) (*models.Issuance, error) {
	now := requestcontext.Now(ctx)
	return s.issuanceStep(ctx, issuanceID, audit.ActionIssuancePacked,
		func(_ context.Context, _ ports.Repositories, _ *shared.Journal, iss *models.Issuance) error {
			return iss.Pack(now)
		})
}

// Ship hands the issuance to transport: its components become issued and
// the request is fulfilled.
func (s *Service) Ship(ctx context.Context, issuanceID id.IssuanceID) (*models.Issuance, error) {
	now := requestcontext.Now(ctx)
	return s.issuanceStep(ctx, issuanceID, audit.ActionIssuanceShipped,
		func(ctx context.Context, repos ports.Repositories, j *shared.Journal, iss *models.Issuance) error {
			if err := iss.Ship(now); err != nil {
				return err
			}
			for _, componentID := range iss.ComponentIDs {
				if _, err := j.MoveTarget(ctx, repos, models.ComponentTarget(componentID), models.StateIssued, audit.ActionIssuanceShipped, iss.ID.String(), now); err != nil {
					return err
				}
			}
			req, err := repos.Requests.Get(ctx, iss.RequestID)
			if err != nil {
				return shared.Translate(err, "request")
			}
			from := req.Status
			req.Fulfil(now)
			if err := repos.Requests.Update(ctx, req); err != nil {
				return shared.Translate(err, "request")
			}
			return j.Record(ctx, repos, shared.KindRequest, req.ID.String(), string(from), string(req.Status), audit.ActionIssuanceShipped, iss.ID.String())
		})
}

// Deliver confirms receipt. Custody leaves the bank, so the components
// become transferred.
func (s *Service) Deliver(ctx context.Context, issuanceID id.IssuanceID, receivedBy string) (*models.Issuance, error) {
	now := requestcontext.Now(ctx)
	return s.issuanceStep(ctx, issuanceID, audit.ActionIssuanceDelivered,
		func(ctx context.Context, repos ports.Repositories, j *shared.Journal, iss *models.Issuance) error {
			if err := iss.Deliver(receivedBy, now); err != nil {
				return err
			}
			for _, componentID := range iss.ComponentIDs {
				if _, err := j.MoveTarget(ctx, repos, models.ComponentTarget(componentID), models.StateTransferred, audit.ActionIssuanceDelivered, receivedBy, now); err != nil {
					return err
				}
			}
			return nil
		})
}

type ReturnRequest struct {
	ComponentID id.ComponentID
	Source      string
	Reason      string
}

// CreateReturn books an issued component back in as returned, pending
// inspection.
func (s *Service) CreateReturn(ctx context.Context, req ReturnRequest) (*models.Return, error) {
	org, err := shared.Org(ctx)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	ret, err := models.NewReturn(org, req.ComponentID, req.Source, req.Reason, requestcontext.ActorID(ctx), now)
	if err != nil {
		return nil, err
	}
	journal := s.Journal()
	err = s.Store.RunInTx(ctx, org, func(ctx context.Context, repos ports.Repositories) error {
		if _, err := journal.MoveTarget(ctx, repos, models.ComponentTarget(req.ComponentID), models.StateReturned, audit.ActionReturnCreated, req.Source, now); err != nil {
			return err
		}
		if err := repos.Returns.Create(ctx, ret); err != nil {
			return shared.Translate(err, "return")
		}
		return journal.Record(ctx, repos, shared.KindReturn, ret.ID.String(), "", string(ret.Status), audit.ActionReturnCreated, req.Reason)
	})
	if err != nil {
		return nil, shared.Translate(err, "component")
	}
	journal.Committed(ctx)
	return ret, nil
}

type ProcessReturnRequest struct {
	ReturnID id.ReturnID
	QCPass   bool
	Decision string
}

type ProcessReturnResult struct {
	Return  *models.Return
	State   models.UnitState
	Discard *models.Discard
}

// ProcessReturn decides a pending return. Accept puts an unexpired component
// that passed inspection back into ready stock. Reject discards it.
func (s *Service) ProcessReturn(ctx context.Context, req ProcessReturnRequest) (*ProcessReturnResult, error) {
	org, err := shared.Org(ctx)
	if err != nil {
		return nil, err
	}
	decision, err := models.ParseReturnDecision(req.Decision)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	actor := requestcontext.ActorID(ctx)
	res := &ProcessReturnResult{}
	journal := s.Journal()
	err = s.Store.RunInTx(ctx, org, func(ctx context.Context, repos ports.Repositories) error {
		ret, err := repos.Returns.Get(ctx, req.ReturnID)
		if err != nil {
			return shared.Translate(err, "return")
		}
		if err := ret.Process(req.QCPass, decision, actor, now); err != nil {
			return err
		}
		target := models.ComponentTarget(ret.ComponentID)

		// The inspection counts as the component's latest QC result.
		inspection := models.NewQCValidation(org, target, req.QCPass, req.QCPass, req.QCPass, actor, now)
		if err := repos.QC.Create(ctx, inspection); err != nil {
			return shared.Translate(err, "qc validation")
		}

		switch decision {
		case models.ReturnAccept:
			c, err := repos.Components.Get(ctx, ret.ComponentID)
			if err != nil {
				return shared.Translate(err, "component")
			}
			if c.IsExpiredAt(now) {
				return dErrors.New(dErrors.CodeInvalidState, "expired component cannot return to stock").
					WithDetail("expires_at", c.ExpiresAt)
			}
			res.State = models.StateReadyToUse
			if _, err := journal.MoveTarget(ctx, repos, target, res.State, audit.ActionReturnAccepted, ret.ID.String(), now); err != nil {
				return err
			}
		case models.ReturnReject:
			res.State = models.StateDiscarded
			if _, err := journal.MoveTarget(ctx, repos, target, res.State, audit.ActionReturnRejected, ret.ID.String(), now); err != nil {
				return err
			}
			d, err := models.NewDiscard(org, target, models.DiscardRejectedReturn, ret.Reason, actor, now)
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

		if err := repos.Returns.Update(ctx, ret); err != nil {
			return shared.Translate(err, "return")
		}
		res.Return = ret
		return journal.Record(ctx, repos, shared.KindReturn, ret.ID.String(), string(models.ReturnPending), string(ret.Status), returnAction(decision), "")
	})
	if err != nil {
		return nil, shared.Translate(err, "return")
	}
	journal.Committed(ctx)
	return res, nil
}

func returnAction(d models.ReturnDecision) audit.Action {
	if d == models.ReturnAccept {
		return audit.ActionReturnAccepted
	}
	return audit.ActionReturnRejected
}

type DiscardRequest struct {
	ComponentID id.ComponentID
	Reason      string
	Details     string
}

// CreateDiscard withdraws a ready or returned component from stock.
func (s *Service) CreateDiscard(ctx context.Context, req DiscardRequest) (*models.Discard, error) {
	org, err := shared.Org(ctx)
	if err != nil {
		return nil, err
	}
	reason, err := models.ParseDiscardReason(req.Reason)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	target := models.ComponentTarget(req.ComponentID)
	d, err := models.NewDiscard(org, target, reason, req.Details, requestcontext.ActorID(ctx), now)
	if err != nil {
		return nil, err
	}

	journal := s.Journal()
	err = s.Store.RunInTx(ctx, org, func(ctx context.Context, repos ports.Repositories) error {
		state, err := shared.TargetState(ctx, repos, target)
		if err != nil {
			return err
		}
		if state != models.StateReadyToUse && state != models.StateReturned {
			return dErrors.New(dErrors.CodeInvalidState, "only ready or returned components can be discarded").
				WithDetail("current_state", state)
		}
		if err := shared.RequireNotQuarantined(ctx, repos, target); err != nil {
			return err
		}
		if _, err := journal.MoveTarget(ctx, repos, target, models.StateDiscarded, audit.ActionDiscardCreated, string(reason), now); err != nil {
			return err
		}
		if err := repos.Discards.Create(ctx, d); err != nil {
			return shared.Translate(err, "discard")
		}
		return journal.Record(ctx, repos, shared.KindDiscard, d.ID.String(), "", "pending_destruction", audit.ActionDiscardCreated, string(reason))
	})
	if err != nil {
		return nil, shared.Translate(err, "component")
	}
	journal.Committed(ctx)
	return d, nil
}

type DestroyRequest struct {
	DiscardID id.DiscardID
	Method    string
	Witness   string
}

// MarkDestroyed records destruction evidence. The target is already terminal.
func (s *Service) MarkDestroyed(ctx context.Context, req DestroyRequest) (*models.Discard, error) {
	org, err := shared.Org(ctx)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	var out *models.Discard
	journal := s.Journal()
	err = s.Store.RunInTx(ctx, org, func(ctx context.Context, repos ports.Repositories) error {
		d, err := repos.Discards.Get(ctx, req.DiscardID)
		if err != nil {
			return shared.Translate(err, "discard")
		}
		if err := d.MarkDestroyed(req.Method, req.Witness, requestcontext.ActorID(ctx), now); err != nil {
			return err
		}
		if err := repos.Discards.Update(ctx, d); err != nil {
			return shared.Translate(err, "discard")
		}
		out = d
		return journal.Record(ctx, repos, shared.KindDiscard, d.ID.String(), "pending_destruction", "destroyed", audit.ActionDiscardDestroyed, req.Method)
	})
	if err != nil {
		return nil, shared.Translate(err, "discard")
	}
	journal.Committed(ctx)
	return out, nil
}
