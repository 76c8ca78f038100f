// Package inventory answers read-only questions about units, components and
// their history.
package inventory

import (
	"context"
	"time"

	"bloodbank/internal/lifecycle/models"
	"bloodbank/internal/lifecycle/ports"
	"bloodbank/internal/lifecycle/service/shared"
	id "bloodbank/pkg/domain"
	dErrors "bloodbank/pkg/domain-errors"
	"bloodbank/pkg/platform/audit"
	"bloodbank/pkg/requestcontext"
)

// MaxExpiringDays caps the expiring-soon window.
const MaxExpiringDays = 365

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

func (s *Service) read(ctx context.Context, what string, fn func(ctx context.Context, repos ports.Repositories) error) error {
	org, err := shared.Org(ctx)
	if err != nil {
		return err
	}
	return shared.Translate(s.Store.RunInTx(ctx, org, fn), what)
}

func (s *Service) GetUnit(ctx context.Context, unitID id.UnitID) (*models.BloodUnit, error) {
	var out *models.BloodUnit
	err := s.read(ctx, "unit", func(ctx context.Context, repos ports.Repositories) error {
		u, err := repos.Units.Get(ctx, unitID)
		out = u
		return err
	})
	return out, err
}

func (s *Service) GetComponent(ctx context.Context, componentID id.ComponentID) (*models.Component, error) {
	var out *models.Component
	err := s.read(ctx, "component", func(ctx context.Context, repos ports.Repositories) error {
		c, err := repos.Components.Get(ctx, componentID)
		out = c
		return err
	})
	return out, err
}

// FEFOQuery selects a stock bucket. Empty fields match everything; State
// defaults to ready_to_use.
type FEFOQuery struct {
	BloodGroup  string
	ProductType string
	State       string
	Limit       int
}

// ListFEFO lists components earliest expiry first.
func (s *Service) ListFEFO(ctx context.Context, q FEFOQuery) ([]*models.Component, error) {
	filter := ports.ComponentFilter{State: models.StateReadyToUse, Limit: q.Limit}
	var err error
	if q.State != "" {
		if filter.State, err = models.ParseUnitState(q.State); err != nil {
			return nil, err
		}
	}
	if q.BloodGroup != "" {
		if filter.BloodGroup, err = models.ParseBloodGroup(q.BloodGroup); err != nil {
			return nil, err
		}
	}
	if q.ProductType != "" {
		if filter.Type, err = models.ParseComponentType(q.ProductType); err != nil {
			return nil, err
		}
	}
	if q.Limit < 0 {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "limit must not be negative")
	}
	return s.list(ctx, filter)
}

// ListExpiringSoon lists ready components that are still usable now and
// expire within the next days.
func (s *Service) ListExpiringSoon(ctx context.Context, days int) ([]*models.Component, error) {
	if days <= 0 || days > MaxExpiringDays {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "days must be between 1 and 365").
			WithDetail("days", days)
	}
	now := requestcontext.Now(ctx)
	by := now.Add(time.Duration(days) * 24 * time.Hour)
	return s.list(ctx, ports.ComponentFilter{
		State:        models.StateReadyToUse,
		ExpiresAfter: &now,
		ExpiresBy:    &by,
	})
}

func (s *Service) list(ctx context.Context, filter ports.ComponentFilter) ([]*models.Component, error) {
	var out []*models.Component
	err := s.read(ctx, "component", func(ctx context.Context, repos ports.Repositories) error {
		list, err := repos.Components.List(ctx, filter)
		out = list
		return err
	})
	return out, err
}

func (s *Service) ListLabTests(ctx context.Context, unitID id.UnitID) ([]*models.LabTest, error) {
	var out []*models.LabTest
	err := s.read(ctx, "unit", func(ctx context.Context, repos ports.Repositories) error {
		if _, err := repos.Units.Get(ctx, unitID); err != nil {
			return err
		}
		list, err := repos.LabTests.ListByUnit(ctx, unitID)
		out = list
		return err
	})
	return out, err
}

// ListQCValidations returns validations for a target, newest first.
func (s *Service) ListQCValidations(ctx context.Context, target models.Target) ([]*models.QCValidation, error) {
	var out []*models.QCValidation
	err := s.read(ctx, string(target.Kind), func(ctx context.Context, repos ports.Repositories) error {
		if _, err := shared.TargetState(ctx, repos, target); err != nil {
			return err
		}
		list, err := repos.QC.ListByTarget(ctx, target)
		out = list
		return err
	})
	return out, err
}

// History returns the chain-of-custody events of a unit or component.
func (s *Service) History(ctx context.Context, target models.Target) ([]audit.TransitionEvent, error) {
	var out []audit.TransitionEvent
	err := s.read(ctx, string(target.Kind), func(ctx context.Context, repos ports.Repositories) error {
		if _, err := shared.TargetState(ctx, repos, target); err != nil {
			return err
		}
		list, err := repos.Events.ListByTarget(ctx, target)
		out = list
		return err
	})
	return out, err
}
