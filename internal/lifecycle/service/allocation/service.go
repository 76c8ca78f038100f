// Package allocation matches blood requests to ready stock, first expired
// first out, and reserves the chosen components atomically.
package allocation

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"bloodbank/internal/lifecycle/models"
	"bloodbank/internal/lifecycle/ports"
	"bloodbank/internal/lifecycle/service/shared"
	id "bloodbank/pkg/domain"
	dErrors "bloodbank/pkg/domain-errors"
	"bloodbank/pkg/platform/audit"
	"bloodbank/pkg/platform/sentinel"
	"bloodbank/pkg/requestcontext"
)

// DefaultRetryBudget bounds candidate reselection after version conflicts.
const DefaultRetryBudget = 5

const (
	outcomeAllocated    = "allocated"
	outcomeInsufficient = "insufficient"
	outcomeContention   = "contention"
	outcomeError        = "error"
)

type Service struct {
	shared.Base
	retryBudget int
}

// New builds the allocator. A non-positive retryBudget selects
// DefaultRetryBudget.
func New(store ports.Store, retryBudget int, opts ...shared.Option) (*Service, error) {
	base, err := shared.NewBase(store, opts...)
	if err != nil {
		return nil, err
	}
	if retryBudget <= 0 {
		retryBudget = DefaultRetryBudget
	}
	return &Service{Base: base, retryBudget: retryBudget}, nil
}

type SubmitRequest struct {
	BloodGroup  string
	ProductType string
	Quantity    int
	Urgency     string
	RequiredBy  *time.Time
}

// SubmitRequest stores a pending blood request.
func (s *Service) SubmitRequest(ctx context.Context, in SubmitRequest) (*models.BloodRequest, error) {
	org, err := shared.Org(ctx)
	if err != nil {
		return nil, err
	}
	group, err := models.ParseBloodGroup(in.BloodGroup)
	if err != nil {
		return nil, err
	}
	product, err := models.ParseComponentType(in.ProductType)
	if err != nil {
		return nil, err
	}
	var urgency models.Urgency
	if in.Urgency != "" {
		if urgency, err = models.ParseUrgency(in.Urgency); err != nil {
			return nil, err
		}
	}
	req, err := models.NewBloodRequest(org, group, product, in.Quantity, urgency, in.RequiredBy,
		requestcontext.ActorID(ctx), requestcontext.Now(ctx))
	if err != nil {
		return nil, err
	}

	journal := s.Journal()
	err = s.Store.RunInTx(ctx, org, func(ctx context.Context, repos ports.Repositories) error {
		if err := repos.Requests.Create(ctx, req); err != nil {
			return shared.Translate(err, "request")
		}
		return journal.Record(ctx, repos, shared.KindRequest, req.ID.String(), "", string(req.Status), audit.ActionRequestSubmitted, string(req.Urgency))
	})
	if err != nil {
		return nil, shared.Translate(err, "request")
	}
	journal.Committed(ctx)
	return req, nil
}

// Allocation is a successful reservation.
type Allocation struct {
	Issuance     *models.Issuance
	ComponentIDs []id.ComponentID
}

// Allocate reserves the request's quantity of exactly matching components,
// earliest expiry first, and opens an issuance in picking. Either every
// chosen component is reserved or none is. Version conflicts with
// concurrent writers trigger a fresh selection until the retry budget is
// spent, after which the request fails with InsufficientInventory.
func (s *Service) Allocate(ctx context.Context, requestID id.BloodRequestID) (*Allocation, error) {
	org, err := shared.Org(ctx)
	if err != nil {
		return nil, err
	}
	ctx, span := s.Tracer.Start(ctx, "lifecycle.Allocate", trace.WithAttributes(
		attribute.String("org_id", string(org)),
		attribute.String("request_id", requestID.String()),
	))
	defer span.End()

	start := time.Now()
	for attempt := 1; attempt <= s.retryBudget; attempt++ {
		journal := s.Journal()
		alloc, err := s.tryAllocate(ctx, org, requestID, journal)
		if err == nil {
			journal.Committed(ctx)
			span.SetAttributes(attribute.Int("attempts", attempt), attribute.Int("reserved", len(alloc.ComponentIDs)))
			s.observe(outcomeAllocated, start)
			return alloc, nil
		}
		if !errors.Is(err, sentinel.ErrConflict) {
			outcome := outcomeError
			if dErrors.HasCode(err, dErrors.CodeInsufficientInventory) {
				outcome = outcomeInsufficient
			}
			span.SetAttributes(attribute.Int("attempts", attempt))
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
			s.observe(outcome, start)
			return nil, shared.Translate(err, "request")
		}

		s.Logger.DebugContext(ctx, "allocation conflict, reselecting",
			"request_id", requestID.String(),
			"attempt", attempt,
		)
		if s.Metrics != nil {
			s.Metrics.IncrementAllocationRetry()
		}
		if err := ctx.Err(); err != nil {
			s.observe(outcomeError, start)
			return nil, shared.Translate(err, "request")
		}
	}

	err = dErrors.New(dErrors.CodeInsufficientInventory, "allocation could not complete within the retry budget").
		WithDetail("reason", outcomeContention).
		WithDetail("attempts", s.retryBudget)
	span.RecordError(err)
	span.SetStatus(codes.Error, outcomeContention)
	s.observe(outcomeContention, start)
	return nil, err
}

func (s *Service) observe(outcome string, start time.Time) {
	if s.Metrics != nil {
		s.Metrics.ObserveAllocation(outcome, start)
	}
}

func (s *Service) tryAllocate(ctx context.Context, org id.OrgID, requestID id.BloodRequestID, journal *shared.Journal) (*Allocation, error) {
	now := requestcontext.Now(ctx)
	actor := requestcontext.ActorID(ctx)
	var alloc *Allocation
	err := s.Store.RunInTx(ctx, org, func(ctx context.Context, repos ports.Repositories) error {
		req, err := repos.Requests.Get(ctx, requestID)
		if err != nil {
			return shared.Translate(err, "request")
		}
		if err := req.CanAllocate(); err != nil {
			return err
		}

		candidates, err := repos.Components.List(ctx, ports.ComponentFilter{
			State:        models.StateReadyToUse,
			BloodGroup:   req.BloodGroup,
			Type:         req.ProductType,
			ExpiresAfter: &now,
		})
		if err != nil {
			return err
		}
		// Only components whose latest QC validation is approved may be
		// reserved; a hold after approval takes them out of stock.
		chosen := make([]*models.Component, 0, req.Quantity)
		held := 0
		for _, c := range candidates {
			if len(chosen) == req.Quantity {
				break
			}
			ok, err := shared.LatestQCApproved(ctx, repos, models.ComponentTarget(c.ID))
			if err != nil {
				return err
			}
			if !ok {
				held++
				continue
			}
			chosen = append(chosen, c)
		}
		if len(chosen) < req.Quantity {
			shortfall := dErrors.New(dErrors.CodeInsufficientInventory, "not enough matching ready stock").
				WithDetail("requested", req.Quantity).
				WithDetail("available", len(chosen)).
				WithDetail("shortfall", req.Quantity-len(chosen)).
				WithDetail("blood_group", req.BloodGroup).
				WithDetail("product_type", req.ProductType)
			if held > 0 {
				shortfall.WithDetail("held_by_qc", held)
			}
			return shortfall
		}

		ids := make([]id.ComponentID, 0, len(chosen))
		for _, c := range chosen {
			ids = append(ids, c.ID)
		}
		issuance := models.NewIssuance(org, req.ID, ids, actor, now)

		for _, c := range chosen {
			from := c.State
			if err := c.TransitionTo(models.StateReserved, now); err != nil {
				return err
			}
			// Update is conditional on the version read above; a component
			// taken or expired meanwhile surfaces as ErrConflict.
			if err := repos.Components.Update(ctx, c); err != nil {
				return err
			}
			if err := journal.Move(ctx, repos, models.ComponentTarget(c.ID), from, c.State, audit.ActionComponentReserved, issuance.ID.String()); err != nil {
				return err
			}
		}

		if err := repos.Issuances.Create(ctx, issuance); err != nil {
			return err
		}
		if err := journal.Record(ctx, repos, shared.KindIssuance, issuance.ID.String(), "", string(issuance.Status), audit.ActionComponentReserved, req.ID.String()); err != nil {
			return err
		}

		fromStatus := req.Status
		req.Reserve(issuance.ID, now)
		if err := repos.Requests.Update(ctx, req); err != nil {
			return err
		}
		if err := journal.Record(ctx, repos, shared.KindRequest, req.ID.String(), string(fromStatus), string(req.Status), audit.ActionComponentReserved, issuance.ID.String()); err != nil {
			return err
		}

		alloc = &Allocation{Issuance: issuance, ComponentIDs: ids}
		return nil
	})
	return alloc, err
}

// ReleaseReservation cancels an issuance that has not shipped, returns its
// components to ready stock and puts the request back in the queue.
func (s *Service) ReleaseReservation(ctx context.Context, issuanceID id.IssuanceID) (*models.Issuance, error) {
	org, err := shared.Org(ctx)
	if err != nil {
		return nil, err
	}
	now := requestcontext.Now(ctx)
	var out *models.Issuance
	journal := s.Journal()
	err = s.Store.RunInTx(ctx, org, func(ctx context.Context, repos ports.Repositories) error {
		iss, err := repos.Issuances.Get(ctx, issuanceID)
		if err != nil {
			return shared.Translate(err, "issuance")
		}
		from := iss.Status
		if err := iss.Cancel(now); err != nil {
			return err
		}
		for _, componentID := range iss.ComponentIDs {
			if _, err := journal.MoveTarget(ctx, repos, models.ComponentTarget(componentID), models.StateReadyToUse, audit.ActionReservationReleased, iss.ID.String(), now); err != nil {
				return err
			}
		}
		if err := repos.Issuances.Update(ctx, iss); err != nil {
			return shared.Translate(err, "issuance")
		}
		if err := journal.Record(ctx, repos, shared.KindIssuance, iss.ID.String(), string(from), string(iss.Status), audit.ActionReservationReleased, ""); err != nil {
			return err
		}

		req, err := repos.Requests.Get(ctx, iss.RequestID)
		if err != nil {
			return shared.Translate(err, "request")
		}
		reqFrom := req.Status
		req.Unreserve(now)
		if err := repos.Requests.Update(ctx, req); err != nil {
			return shared.Translate(err, "request")
		}
		out = iss
		return journal.Record(ctx, repos, shared.KindRequest, req.ID.String(), string(reqFrom), string(req.Status), audit.ActionReservationReleased, iss.ID.String())
	})
	if err != nil {
		return nil, shared.Translate(err, "issuance")
	}
	journal.Committed(ctx)
	return out, nil
}
