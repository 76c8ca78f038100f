// Package separation splits a cleared whole-blood unit into components.
package separation

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

// ComponentRequest asks for one component of the given type and volume.
type ComponentRequest struct {
	Type     string
	VolumeML int
}

// Separate creates the requested components in processing and moves the
// parent unit to processing. The unit must be in lab.
func (s *Service) Separate(ctx context.Context, unitID id.UnitID, reqs []ComponentRequest) ([]*models.Component, error) {
	org, err := shared.Org(ctx)
	if err != nil {
		return nil, err
	}
	if len(reqs) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "at least one component is required")
	}
	types := make([]models.ComponentType, len(reqs))
	total := 0
	for i, r := range reqs {
		t, err := models.ParseComponentType(r.Type)
		if err != nil {
			return nil, err
		}
		if r.VolumeML <= 0 {
			return nil, dErrors.New(dErrors.CodeInvalidArgument, "component volume must be positive").
				WithDetail("index", i)
		}
		types[i] = t
		total += r.VolumeML
	}

	now := requestcontext.Now(ctx)
	var created []*models.Component
	journal := s.Journal()
	err = s.Store.RunInTx(ctx, org, func(ctx context.Context, repos ports.Repositories) error {
		created = nil
		unit, err := repos.Units.Get(ctx, unitID)
		if err != nil {
			return shared.Translate(err, "unit")
		}
		if unit.State != models.StateLab {
			return dErrors.New(dErrors.CodeInvalidState, "unit must be in lab to separate").
				WithDetail("current_state", unit.State).
				WithDetail("required_state", models.StateLab)
		}
		if total > unit.VolumeML {
			return dErrors.New(dErrors.CodeInvalidArgument, "requested component volume exceeds unit volume").
				WithDetail("requested_ml", total).
				WithDetail("unit_volume_ml", unit.VolumeML)
		}

		ordinals := make(map[models.ComponentType]int)
		for i, t := range types {
			ordinals[t]++
			c, err := models.NewComponent(unit, t, reqs[i].VolumeML, ordinals[t], now)
			if err != nil {
				return err
			}
			if err := repos.Components.Create(ctx, c); err != nil {
				return shared.Translate(err, "component")
			}
			if err := journal.Move(ctx, repos, models.ComponentTarget(c.ID), "", models.StateProcessing, audit.ActionComponentCreated, unit.Label); err != nil {
				return err
			}
			created = append(created, c)
		}

		from := unit.State
		if err := unit.TransitionTo(models.StateProcessing, now); err != nil {
			return err
		}
		if err := repos.Units.Update(ctx, unit); err != nil {
			return shared.Translate(err, "unit")
		}
		return journal.Move(ctx, repos, models.UnitTarget(unit.ID), from, unit.State, audit.ActionUnitSeparated, "")
	})
	if err != nil {
		return nil, shared.Translate(err, "unit")
	}
	journal.Committed(ctx)
	return created, nil
}
