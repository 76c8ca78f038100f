package models

import (
	"fmt"
	"time"

	id "bloodbank/pkg/domain"
	dErrors "bloodbank/pkg/domain-errors"
)

// Donation is the completed collection handed over by intake. Read-only here.
type Donation struct {
	ID          id.DonationID `json:"id"`
	OrgID       id.OrgID      `json:"org_id"`
	DonorID     id.DonorID    `json:"donor_id"`
	VolumeML    int           `json:"volume_ml"`
	CollectedAt time.Time     `json:"collected_at"`
}

// BloodUnit is the whole-blood unit produced by one donation.
//
// Invariants:
//   - State only moves along the lifecycle graph
//   - ConfirmedGroup is set only from a dual-verified lab test
//   - Once separated the unit is a provenance record and never reaches ready_to_use
type BloodUnit struct {
	ID              id.UnitID     `json:"id"`
	OrgID           id.OrgID      `json:"org_id"`
	Label           string        `json:"label"`
	DonorID         id.DonorID    `json:"donor_id"`
	DonationID      id.DonationID `json:"donation_id"`
	DeclaredGroup   BloodGroup    `json:"declared_group"`
	ConfirmedGroup  BloodGroup    `json:"confirmed_group,omitempty"`
	State           UnitState     `json:"state"`
	VolumeML        int           `json:"volume_ml"`
	CollectedAt     time.Time     `json:"collected_at"`
	ExpiresAt       time.Time     `json:"expires_at"`
	StorageLocation string        `json:"storage_location,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
	Version         int           `json:"version"`
}

// NewBloodUnit builds a collected unit with the whole-blood default expiry.
func NewBloodUnit(unitID id.UnitID, org id.OrgID, label string, donation Donation, declared BloodGroup, volumeML int, now time.Time) (*BloodUnit, error) {
	if !declared.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, fmt.Sprintf("unknown blood group %q", declared))
	}
	if volumeML <= 0 {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "unit volume must be positive")
	}
	expiresAt, err := ExpiryFor(TypeWholeBlood, donation.CollectedAt)
	if err != nil {
		return nil, err
	}
	return &BloodUnit{
		ID:            unitID,
		OrgID:         org,
		Label:         label,
		DonorID:       donation.DonorID,
		DonationID:    donation.ID,
		DeclaredGroup: declared,
		State:         StateCollected,
		VolumeML:      volumeML,
		CollectedAt:   donation.CollectedAt,
		ExpiresAt:     expiresAt,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// EffectiveGroup is the confirmed group when present, else the declared one.
func (u *BloodUnit) EffectiveGroup() BloodGroup {
	if u.ConfirmedGroup != "" {
		return u.ConfirmedGroup
	}
	return u.DeclaredGroup
}

// CanTransitionTo validates a move without applying it.
func (u *BloodUnit) CanTransitionTo(to UnitState) error {
	return CheckTransition(u.State, to)
}

// TransitionTo validates and applies a move.
func (u *BloodUnit) TransitionTo(to UnitState, now time.Time) error {
	if err := u.CanTransitionTo(to); err != nil {
		return err
	}
	u.State = to
	u.UpdatedAt = now
	return nil
}

// FormatUnitLabel renders the cosmetic unit label BU-YYYY-NNNNNN.
func FormatUnitLabel(year int, seq int64) string {
	return fmt.Sprintf("BU-%04d-%06d", year, seq)
}
