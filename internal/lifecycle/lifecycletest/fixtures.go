// Package lifecycletest provides fixtures for lifecycle service tests.
package lifecycletest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"bloodbank/internal/lifecycle/models"
	"bloodbank/internal/lifecycle/ports"
	"bloodbank/internal/lifecycle/store/memory"
	id "bloodbank/pkg/domain"
	auditmemory "bloodbank/pkg/platform/audit/store/memory"
	"bloodbank/pkg/requestcontext"
)

const (
	Org   id.OrgID   = "org-test"
	Actor id.ActorID = "tech-1"
)

// Collected is the collection instant used by the fixtures.
var Collected = time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)

// Context returns a request context scoped to Org, acting as Actor at now.
func Context(now time.Time) context.Context {
	ctx := requestcontext.WithPrincipal(context.Background(), Org, Actor)
	ctx = requestcontext.WithRequestID(ctx, "req-"+uuid.NewString()[:8])
	return requestcontext.WithTime(ctx, now)
}

// Env bundles a memory store with its event history.
type Env struct {
	T      *testing.T
	Store  *memory.Store
	Events *auditmemory.InMemoryStore
}

func NewEnv(t *testing.T) *Env {
	events := auditmemory.NewInMemoryStore()
	return &Env{T: t, Store: memory.New(memory.WithEventStore(events)), Events: events}
}

func (e *Env) tx(fn func(ctx context.Context, repos ports.Repositories) error) {
	e.T.Helper()
	require.NoError(e.T, e.Store.RunInTx(context.Background(), Org, fn))
}

// Unit seeds a unit in the given state.
func (e *Env) Unit(state models.UnitState, group models.BloodGroup) *models.BloodUnit {
	e.T.Helper()
	donation := models.Donation{
		ID:          id.DonationID(uuid.New()),
		OrgID:       Org,
		DonorID:     id.DonorID(uuid.New()),
		VolumeML:    450,
		CollectedAt: Collected,
	}
	u, err := models.NewBloodUnit(id.NewUnitID(), Org, "BU-2026-000001", donation, group, 450, Collected)
	require.NoError(e.T, err)
	u.State = state
	e.tx(func(ctx context.Context, repos ports.Repositories) error {
		return repos.Units.Create(ctx, u)
	})
	return u
}

// ComponentOpts tunes a seeded component.
type ComponentOpts struct {
	Type      models.ComponentType
	Group     models.BloodGroup
	State     models.UnitState
	ExpiresAt time.Time
	CreatedAt time.Time
	Approved  bool
}

// Component seeds a component, optionally with an approved QC validation.
func (e *Env) Component(o ComponentOpts) *models.Component {
	e.T.Helper()
	if o.Type == "" {
		o.Type = models.TypePRC
	}
	if o.Group == "" {
		o.Group = models.GroupOPos
	}
	if o.State == "" {
		o.State = models.StateReadyToUse
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = Collected
	}
	if o.ExpiresAt.IsZero() {
		o.ExpiresAt = Collected.AddDate(0, 0, 42)
	}
	c := &models.Component{
		ID:         id.NewComponentID(),
		UnitID:     id.NewUnitID(),
		Label:      "BU-2026-000001-PRC1",
		Type:       o.Type,
		BloodGroup: o.Group,
		VolumeML:   200,
		ExpiresAt:  o.ExpiresAt,
		State:      o.State,
		CreatedAt:  o.CreatedAt,
		UpdatedAt:  o.CreatedAt,
	}
	e.tx(func(ctx context.Context, repos ports.Repositories) error {
		if err := repos.Components.Create(ctx, c); err != nil {
			return err
		}
		if !o.Approved {
			return nil
		}
		return repos.QC.Create(ctx, models.NewQCValidation(Org, models.ComponentTarget(c.ID), true, true, true, Actor, o.CreatedAt))
	})
	return c
}

// GetUnit reloads a unit.
func (e *Env) GetUnit(unitID id.UnitID) *models.BloodUnit {
	e.T.Helper()
	var u *models.BloodUnit
	e.tx(func(ctx context.Context, repos ports.Repositories) error {
		var err error
		u, err = repos.Units.Get(ctx, unitID)
		return err
	})
	return u
}

// GetComponent reloads a component.
func (e *Env) GetComponent(componentID id.ComponentID) *models.Component {
	e.T.Helper()
	var c *models.Component
	e.tx(func(ctx context.Context, repos ports.Repositories) error {
		var err error
		c, err = repos.Components.Get(ctx, componentID)
		return err
	})
	return c
}

// Do runs fn in an org-scoped transaction and fails the test on error.
func (e *Env) Do(fn func(ctx context.Context, repos ports.Repositories) error) {
	e.T.Helper()
	e.tx(fn)
}
