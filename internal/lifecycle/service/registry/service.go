// Package registry creates blood units from completed donations.
package registry

import (
	"context"
	"errors"
	"strconv"

	"bloodbank/internal/lifecycle/models"
	"bloodbank/internal/lifecycle/ports"
	"bloodbank/internal/lifecycle/service/shared"
	id "bloodbank/pkg/domain"
	dErrors "bloodbank/pkg/domain-errors"
	"bloodbank/pkg/platform/audit"
	"bloodbank/pkg/platform/sentinel"
	"bloodbank/pkg/requestcontext"
)

// Service owns unit identity and the collected initial state.
type Service struct {
	shared.Base
	donations ports.DonationSource
	sequencer ports.Sequencer
}

func New(store ports.Store, donations ports.DonationSource, sequencer ports.Sequencer, opts ...shared.Option) (*Service, error) {
	base, err := shared.NewBase(store, opts...)
	if err != nil {
		return nil, err
	}
	if donations == nil {
		return nil, errors.New("donation source is required")
	}
	if sequencer == nil {
		return nil, errors.New("sequencer is required")
	}
	return &Service{Base: base, donations: donations, sequencer: sequencer}, nil
}

// RegisterRequest is the DonationCompleted hand-off from intake.
type RegisterRequest struct {
	DonationID      id.DonationID
	DeclaredGroup   models.BloodGroup
	VolumeML        int // defaults to the donation's collected volume
	StorageLocation string
}

// RegisterUnit creates a collected unit for the donation with the
// whole-blood default expiry and the next BU-YYYY-NNNNNN label.
func (s *Service) RegisterUnit(ctx context.Context, req RegisterRequest) (*models.BloodUnit, error) {
	org, err := shared.Org(ctx)
	if err != nil {
		return nil, err
	}
	donation, err := s.donations.FindDonation(ctx, org, req.DonationID)
	if err != nil {
		return nil, shared.Translate(err, "donation")
	}

	volume := req.VolumeML
	if volume == 0 {
		volume = donation.VolumeML
	}
	if volume > donation.VolumeML && donation.VolumeML > 0 {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "unit volume exceeds collected volume").
			WithDetail("volume_ml", volume).
			WithDetail("collected_ml", donation.VolumeML)
	}

	now := requestcontext.Now(ctx)
	year := donation.CollectedAt.Year()
	seq, err := s.sequencer.Next(ctx, org, "unit:"+strconv.Itoa(year))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to allocate unit label")
	}

	unit, err := models.NewBloodUnit(id.NewUnitID(), org, models.FormatUnitLabel(year, seq), *donation, req.DeclaredGroup, volume, now)
	if err != nil {
		return nil, err
	}
	unit.StorageLocation = req.StorageLocation

	journal := s.Journal()
	err = s.Store.RunInTx(ctx, org, func(ctx context.Context, repos ports.Repositories) error {
		if err := repos.Units.Create(ctx, unit); err != nil {
			return err
		}
		return journal.Move(ctx, repos, models.UnitTarget(unit.ID), "", models.StateCollected, audit.ActionUnitRegistered, "")
	})
	if errors.Is(err, sentinel.ErrAlreadyUsed) {
		return nil, dErrors.New(dErrors.CodeConflict, "donation already has a registered unit").
			WithDetail("donation_id", req.DonationID.String())
	}
	if err != nil {
		return nil, shared.Translate(err, "unit")
	}

	journal.Committed(ctx)
	if s.Metrics != nil {
		s.Metrics.IncrementUnitsRegistered()
	}
	return unit, nil
}
