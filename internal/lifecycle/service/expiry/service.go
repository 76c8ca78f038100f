// Package expiry retires ready components whose shelf life has run out.
package expiry

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"bloodbank/internal/lifecycle/models"
	"bloodbank/internal/lifecycle/ports"
	"bloodbank/internal/lifecycle/service/shared"
	id "bloodbank/pkg/domain"
	dErrors "bloodbank/pkg/domain-errors"
	"bloodbank/pkg/platform/audit"
	"bloodbank/pkg/platform/sentinel"
	"bloodbank/pkg/requestcontext"
)

const defaultConcurrency = 4

type Service struct {
	shared.Base
	concurrency int
}

// New builds the sweeper. concurrency bounds how many orgs are swept at
// once; non-positive selects a default.
func New(store ports.Store, concurrency int, opts ...shared.Option) (*Service, error) {
	base, err := shared.NewBase(store, opts...)
	if err != nil {
		return nil, err
	}
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Service{Base: base, concurrency: concurrency}, nil
}

type SweepResult struct {
	Orgs    int
	Expired int
	Skipped int
}

// Sweep moves every ready_to_use component at or past its expiry to
// expired and opens a Discard for it. Reserved and issued stock is left
// alone. Each component commits on its own, and one that changed under the
// sweep is skipped, so running Sweep again is always safe.
func (s *Service) Sweep(ctx context.Context) (*SweepResult, error) {
	ctx, span := s.Tracer.Start(ctx, "lifecycle.ExpirySweep")
	defer span.End()

	start := time.Now()
	now := requestcontext.Now(ctx)
	orgs, err := s.Store.OrgsWithExpiredStock(ctx, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list orgs")
		return nil, shared.Translate(err, "component")
	}

	var expired, skipped atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, org := range orgs {
		g.Go(func() error {
			orgCtx := requestcontext.WithPrincipal(gctx, org, id.SystemActor)
			orgCtx = requestcontext.WithTime(orgCtx, now)
			e, sk, err := s.sweepOrg(orgCtx, org, now)
			expired.Add(int64(e))
			skipped.Add(int64(sk))
			return err
		})
	}
	err = g.Wait()

	res := &SweepResult{Orgs: len(orgs), Expired: int(expired.Load()), Skipped: int(skipped.Load())}
	span.SetAttributes(
		attribute.Int("orgs", res.Orgs),
		attribute.Int("expired", res.Expired),
		attribute.Int("skipped", res.Skipped),
	)
	if s.Metrics != nil {
		s.Metrics.ObserveSweep(res.Expired, res.Skipped, start)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "sweep failed")
		s.Logger.ErrorContext(ctx, "expiry sweep failed", "error", err, "expired", res.Expired)
		return res, err
	}
	s.Logger.InfoContext(ctx, "expiry sweep completed",
		"orgs", res.Orgs,
		"expired", res.Expired,
		"skipped", res.Skipped,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func (s *Service) sweepOrg(ctx context.Context, org id.OrgID, now time.Time) (expired, skipped int, err error) {
	var candidates []*models.Component
	err = s.Store.RunInTx(ctx, org, func(ctx context.Context, repos ports.Repositories) error {
		list, err := repos.Components.List(ctx, ports.ComponentFilter{State: models.StateReadyToUse, ExpiresBy: &now})
		candidates = list
		return err
	})
	if err != nil {
		return 0, 0, shared.Translate(err, "component")
	}

	for _, c := range candidates {
		err := s.expire(ctx, org, c, now)
		switch {
		case err == nil:
			expired++
		case errors.Is(err, sentinel.ErrConflict), dErrors.HasCode(err, dErrors.CodeInvalidState):
			skipped++
			s.Logger.DebugContext(ctx, "expiry skipped component changed concurrently",
				"org_id", string(org),
				"component_id", c.ID.String(),
			)
		default:
			return expired, skipped, err
		}
	}
	return expired, skipped, nil
}

func (s *Service) expire(ctx context.Context, org id.OrgID, c *models.Component, now time.Time) error {
	journal := s.Journal()
	err := s.Store.RunInTx(ctx, org, func(ctx context.Context, repos ports.Repositories) error {
		from := c.State
		if err := c.TransitionTo(models.StateExpired, now); err != nil {
			return err
		}
		// Conditional on the version listed; an allocation in between wins.
		if err := repos.Components.Update(ctx, c); err != nil {
			return err
		}
		target := models.ComponentTarget(c.ID)
		if err := journal.Move(ctx, repos, target, from, c.State, audit.ActionComponentExpired, c.ExpiresAt.Format(time.RFC3339)); err != nil {
			return err
		}
		d, err := models.NewDiscard(org, target, models.DiscardExpired, "", id.SystemActor, now)
		if err != nil {
			return err
		}
		if err := repos.Discards.Create(ctx, d); err != nil {
			return err
		}
		return journal.Record(ctx, repos, shared.KindDiscard, d.ID.String(), "", "pending_destruction", audit.ActionDiscardCreated, string(d.Reason))
	})
	if err != nil {
		return err
	}
	journal.Committed(ctx)
	return nil
}
