package intake

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"bloodbank/internal/lifecycle/models"
	"bloodbank/internal/lifecycle/service/registry"
	id "bloodbank/pkg/domain"
	dErrors "bloodbank/pkg/domain-errors"
	"bloodbank/pkg/requestcontext"
)

// DonationCompleted is the message intake publishes when a collection is done.
type DonationCompleted struct {
	OrgID         string    `json:"org_id"`
	DonationID    string    `json:"donation_id"`
	DonorID       string    `json:"donor_id"`
	DeclaredGroup string    `json:"declared_group"`
	VolumeML      int       `json:"volume_ml"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Registrar is the registry operation a hand-off triggers.
type Registrar interface {
	RegisterUnit(ctx context.Context, req registry.RegisterRequest) (*models.BloodUnit, error)
}

// Handoff registers a unit for every DonationCompleted message. When a
// Directory is attached the donation is recorded there first, so an
// in-process deployment can resolve it.
type Handoff struct {
	registrar Registrar
	directory *Directory
	logger    *slog.Logger
}

func NewHandoff(registrar Registrar, directory *Directory, logger *slog.Logger) *Handoff {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handoff{registrar: registrar, directory: directory, logger: logger}
}

// Permanent reports whether a Handle error will recur on redelivery. Such
// messages are dropped; anything else is retried.
func Permanent(err error) bool {
	return dErrors.HasCode(err, dErrors.CodeInvalidArgument) || dErrors.HasCode(err, dErrors.CodeNotFound)
}

// Handle decodes payload and registers its unit as the system actor.
// Redelivery of an already registered donation is acknowledged silently.
func (h *Handoff) Handle(ctx context.Context, payload []byte) error {
	var msg DonationCompleted
	if err := json.Unmarshal(payload, &msg); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvalidArgument, "malformed donation message")
	}
	donation, group, err := msg.parse()
	if err != nil {
		return err
	}
	if h.directory != nil {
		h.directory.Put(donation)
	}

	ctx = requestcontext.WithPrincipal(ctx, donation.OrgID, id.SystemActor)
	unit, err := h.registrar.RegisterUnit(ctx, registry.RegisterRequest{
		DonationID:    donation.ID,
		DeclaredGroup: group,
		VolumeML:      donation.VolumeML,
	})
	if dErrors.HasCode(err, dErrors.CodeConflict) {
		h.logger.InfoContext(ctx, "donation already registered",
			"org_id", donation.OrgID.String(),
			"donation_id", donation.ID.String(),
		)
		return nil
	}
	if err != nil {
		return err
	}
	h.logger.InfoContext(ctx, "unit registered from intake",
		"org_id", donation.OrgID.String(),
		"unit_id", unit.ID.String(),
		"label", unit.Label,
	)
	return nil
}

func (m DonationCompleted) parse() (models.Donation, models.BloodGroup, error) {
	org, err := id.ParseOrgID(m.OrgID)
	if err != nil {
		return models.Donation{}, "", err
	}
	donationID, err := id.ParseDonationID(m.DonationID)
	if err != nil {
		return models.Donation{}, "", err
	}
	donorID, err := id.ParseDonorID(m.DonorID)
	if err != nil {
		return models.Donation{}, "", err
	}
	group, err := models.ParseBloodGroup(m.DeclaredGroup)
	if err != nil {
		return models.Donation{}, "", err
	}
	if m.VolumeML <= 0 {
		return models.Donation{}, "", dErrors.New(dErrors.CodeInvalidArgument, "donation volume must be positive")
	}
	if m.CollectedAt.IsZero() {
		return models.Donation{}, "", dErrors.New(dErrors.CodeInvalidArgument, "collected_at is required")
	}
	return models.Donation{
		ID:          donationID,
		OrgID:       org,
		DonorID:     donorID,
		VolumeML:    m.VolumeML,
		CollectedAt: m.CollectedAt.UTC(),
	}, group, nil
}
