package models

import (
	"fmt"
	"time"

	id "bloodbank/pkg/domain"
)

// Component is a product separated from a unit. Each component carries its
// own lifecycle from processing onward.
type Component struct {
	ID         id.ComponentID `json:"id"`
	OrgID      id.OrgID       `json:"org_id"`
	UnitID     id.UnitID      `json:"unit_id"`
	Label      string         `json:"label"`
	Type       ComponentType  `json:"type"`
	BloodGroup BloodGroup     `json:"blood_group"`
	VolumeML   int            `json:"volume_ml"`
	TempMinC   float64        `json:"temp_min_c"`
	TempMaxC   float64        `json:"temp_max_c"`
	ExpiresAt  time.Time      `json:"expires_at"`
	State      UnitState      `json:"state"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	Version    int            `json:"version"`
}

// NewComponent derives a processing component from its parent unit.
// Expiry and storage band always come from the type table.
func NewComponent(unit *BloodUnit, t ComponentType, volumeML, ordinal int, now time.Time) (*Component, error) {
	spec, err := t.Spec()
	if err != nil {
		return nil, err
	}
	expiresAt, err := ExpiryFor(t, unit.CollectedAt)
	if err != nil {
		return nil, err
	}
	return &Component{
		ID:         id.NewComponentID(),
		OrgID:      unit.OrgID,
		UnitID:     unit.ID,
		Label:      fmt.Sprintf("%s-%s%d", unit.Label, spec.Code, ordinal),
		Type:       t,
		BloodGroup: unit.EffectiveGroup(),
		VolumeML:   volumeML,
		TempMinC:   spec.TempMinC,
		TempMaxC:   spec.TempMaxC,
		ExpiresAt:  expiresAt,
		State:      StateProcessing,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// IsExpiredAt reports whether the component is past its expiry at now.
func (c *Component) IsExpiredAt(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// IsAllocatable reports whether the component may be reserved at now.
func (c *Component) IsAllocatable(now time.Time) bool {
	return c.State == StateReadyToUse && !c.IsExpiredAt(now)
}

func (c *Component) CanTransitionTo(to UnitState) error {
	return CheckTransition(c.State, to)
}

func (c *Component) TransitionTo(to UnitState, now time.Time) error {
	if err := c.CanTransitionTo(to); err != nil {
		return err
	}
	c.State = to
	c.UpdatedAt = now
	return nil
}

// FEFOLess orders components first-expired-first-out, oldest creation first
// on ties, then by ID for a stable total order.
func FEFOLess(a, b *Component) bool {
	if !a.ExpiresAt.Equal(b.ExpiresAt) {
		return a.ExpiresAt.Before(b.ExpiresAt)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID.String() < b.ID.String()
}

// FEFOCompare is FEFOLess in slices.SortFunc form.
func FEFOCompare(a, b *Component) int {
	switch {
	case FEFOLess(a, b):
		return -1
	case FEFOLess(b, a):
		return 1
	default:
		return 0
	}
}
