package expiry

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"bloodbank/internal/lifecycle/lifecycletest"
	"bloodbank/internal/lifecycle/models"
	"bloodbank/internal/lifecycle/ports"
	id "bloodbank/pkg/domain"
	"bloodbank/pkg/platform/audit"
)

type ExpirySuite struct {
	suite.Suite
	env     *lifecycletest.Env
	service *Service
	now     time.Time
	ctx     context.Context
}

func TestExpirySuite(t *testing.T) {
	suite.Run(t, new(ExpirySuite))
}

func (s *ExpirySuite) SetupTest() {
	s.env = lifecycletest.NewEnv(s.T())
	svc, err := New(s.env.Store, 2)
	s.Require().NoError(err)
	s.service = svc
	s.now = time.Date(2026, 2, 12, 8, 0, 0, 0, time.UTC)
	s.ctx = lifecycletest.Context(s.now)
}

func (s *ExpirySuite) component(state models.UnitState, expiresAt time.Time) *models.Component {
	return s.env.Component(lifecycletest.ComponentOpts{State: state, ExpiresAt: expiresAt, Approved: true})
}

func (s *ExpirySuite) discardsFor(componentID id.ComponentID) []audit.TransitionEvent {
	events, err := s.env.Events.ListByTarget(context.Background(), lifecycletest.Org, string(models.TargetComponent), componentID.String())
	s.Require().NoError(err)
	return events
}

func (s *ExpirySuite) TestSweepExpiresOnlyReadyStock() {
	atExpiry := s.component(models.StateReadyToUse, s.now)
	past := s.component(models.StateReadyToUse, s.now.Add(-48*time.Hour))
	fresh := s.component(models.StateReadyToUse, s.now.Add(time.Minute))
	reserved := s.component(models.StateReserved, s.now.Add(-time.Hour))
	issued := s.component(models.StateIssued, s.now.Add(-time.Hour))

	res, err := s.service.Sweep(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, res.Orgs)
	s.Equal(2, res.Expired)
	s.Equal(0, res.Skipped)

	s.Equal(models.StateExpired, s.env.GetComponent(atExpiry.ID).State)
	s.Equal(models.StateExpired, s.env.GetComponent(past.ID).State)
	s.Equal(models.StateReadyToUse, s.env.GetComponent(fresh.ID).State)
	s.Equal(models.StateReserved, s.env.GetComponent(reserved.ID).State)
	s.Equal(models.StateIssued, s.env.GetComponent(issued.ID).State)

	events := s.discardsFor(past.ID)
	s.Require().Len(events, 1)
	s.Equal(audit.ActionComponentExpired, events[0].Action)
	s.Equal(id.SystemActor, events[0].Actor)
}

func (s *ExpirySuite) TestSweepIsIdempotent() {
	c := s.component(models.StateReadyToUse, s.now.Add(-time.Hour))

	first, err := s.service.Sweep(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, first.Expired)

	second, err := s.service.Sweep(s.ctx)
	s.Require().NoError(err)
	s.Equal(0, second.Orgs)
	s.Equal(0, second.Expired)

	s.Len(s.discardsFor(c.ID), 1)
	s.Equal(2, s.env.GetComponent(c.ID).Version)
}

func (s *ExpirySuite) TestSweepCoversEveryOrg() {
	s.component(models.StateReadyToUse, s.now.Add(-time.Hour))
	for _, org := range []id.OrgID{"org-b", "org-c"} {
		c := &models.Component{
			ID:        id.NewComponentID(),
			UnitID:    id.NewUnitID(),
			Type:      models.TypePlatelets,
			State:     models.StateReadyToUse,
			ExpiresAt: s.now.Add(-time.Hour),
		}
		s.Require().NoError(s.env.Store.RunInTx(context.Background(), org, func(ctx context.Context, repos ports.Repositories) error {
			return repos.Components.Create(ctx, c)
		}))
	}

	res, err := s.service.Sweep(s.ctx)
	s.Require().NoError(err)
	s.Equal(3, res.Orgs)
	s.Equal(3, res.Expired)
}

// racingStore reserves the first candidate right after the sweep has
// listed it, as a concurrent allocation would.
type racingStore struct {
	ports.Store
	calls  atomic.Int32
	target id.ComponentID
}

func (r *racingStore) RunInTx(ctx context.Context, org id.OrgID, fn func(ctx context.Context, repos ports.Repositories) error) error {
	if r.calls.Add(1) == 2 {
		err := r.Store.RunInTx(ctx, org, func(ctx context.Context, repos ports.Repositories) error {
			c, err := repos.Components.Get(ctx, r.target)
			if err != nil {
				return err
			}
			c.State = models.StateReserved
			return repos.Components.Update(ctx, c)
		})
		if err != nil {
			return err
		}
	}
	return r.Store.RunInTx(ctx, org, fn)
}

func (s *ExpirySuite) TestSweepSkipsComponentTakenConcurrently() {
	c := s.component(models.StateReadyToUse, s.now.Add(-time.Hour))
	store := &racingStore{Store: s.env.Store, target: c.ID}
	svc, err := New(store, 1)
	s.Require().NoError(err)

	res, err := svc.Sweep(s.ctx)
	s.Require().NoError(err)
	s.Equal(0, res.Expired)
	s.Equal(1, res.Skipped)
	s.Equal(models.StateReserved, s.env.GetComponent(c.ID).State)
	s.Empty(s.discardsFor(c.ID))
}
