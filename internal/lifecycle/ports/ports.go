// Package ports defines the storage and collaborator seams of the lifecycle
// engine. Services depend only on these interfaces; store/memory and
// store/postgres implement them.
//
// Repositories are always obtained through Store.RunInTx and are bound to a
// single org: every read filters by it and every write stamps it, so no
// service repeats the org predicate.
package ports

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks DonationSource,Sequencer

import (
	"context"
	"time"

	"bloodbank/internal/lifecycle/models"
	id "bloodbank/pkg/domain"
	"bloodbank/pkg/platform/audit"
)

// Store is the unit of work. fn runs against org-scoped repositories; all of
// its writes commit together or not at all. A version check that fails at
// commit returns sentinel.ErrConflict.
type Store interface {
	RunInTx(ctx context.Context, org id.OrgID, fn func(ctx context.Context, repos Repositories) error) error

	// OrgsWithExpiredStock lists orgs holding ready_to_use components whose
	// expiry is at or before asOf. Used only by the expiry sweep.
	OrgsWithExpiredStock(ctx context.Context, asOf time.Time) ([]id.OrgID, error)
}

// Repositories is the org-bound view handed to a transaction.
type Repositories struct {
	Units       UnitRepository
	Components  ComponentRepository
	LabTests    LabTestRepository
	Quarantines QuarantineRepository
	QC          QCRepository
	Requests    RequestRepository
	Issuances   IssuanceRepository
	Returns     ReturnRepository
	Discards    DiscardRepository
	Events      EventLog
}

// Update methods are compare-and-swap on Version: they fail with
// sentinel.ErrConflict when the stored version moved, and bump Version on
// success. Get methods return sentinel.ErrNotFound for missing or
// other-org records.

type UnitRepository interface {
	// Create fails with sentinel.ErrAlreadyUsed if the donation already has a unit.
	Create(ctx context.Context, unit *models.BloodUnit) error
	Get(ctx context.Context, unitID id.UnitID) (*models.BloodUnit, error)
	Update(ctx context.Context, unit *models.BloodUnit) error
}

// ComponentFilter selects components. Results are always FEFO ordered.
type ComponentFilter struct {
	UnitID     *id.UnitID
	State      models.UnitState
	BloodGroup models.BloodGroup
	Type       models.ComponentType
	// ExpiresAfter keeps components with expires_at strictly after the time.
	ExpiresAfter *time.Time
	// ExpiresBy keeps components with expires_at at or before the time.
	ExpiresBy *time.Time
	Limit     int
}

type ComponentRepository interface {
	Create(ctx context.Context, component *models.Component) error
	Get(ctx context.Context, componentID id.ComponentID) (*models.Component, error)
	Update(ctx context.Context, component *models.Component) error
	List(ctx context.Context, filter ComponentFilter) ([]*models.Component, error)
}

type LabTestRepository interface {
	Create(ctx context.Context, test *models.LabTest) error
	ListByUnit(ctx context.Context, unitID id.UnitID) ([]*models.LabTest, error)
}

type QuarantineRepository interface {
	// Create fails with sentinel.ErrAlreadyUsed if the target already has an
	// open quarantine.
	Create(ctx context.Context, q *models.Quarantine) error
	Get(ctx context.Context, quarantineID id.QuarantineID) (*models.Quarantine, error)
	Update(ctx context.Context, q *models.Quarantine) error
	// FindOpen returns sentinel.ErrNotFound when the target is not quarantined.
	FindOpen(ctx context.Context, target models.Target) (*models.Quarantine, error)
	ListOpen(ctx context.Context) ([]*models.Quarantine, error)
}

type QCRepository interface {
	Create(ctx context.Context, v *models.QCValidation) error
	// ListByTarget returns validations newest first.
	ListByTarget(ctx context.Context, target models.Target) ([]*models.QCValidation, error)
}

type RequestRepository interface {
	Create(ctx context.Context, r *models.BloodRequest) error
	Get(ctx context.Context, requestID id.BloodRequestID) (*models.BloodRequest, error)
	Update(ctx context.Context, r *models.BloodRequest) error
}

type IssuanceRepository interface {
	Create(ctx context.Context, i *models.Issuance) error
	Get(ctx context.Context, issuanceID id.IssuanceID) (*models.Issuance, error)
	Update(ctx context.Context, i *models.Issuance) error
}

type ReturnRepository interface {
	Create(ctx context.Context, r *models.Return) error
	Get(ctx context.Context, returnID id.ReturnID) (*models.Return, error)
	Update(ctx context.Context, r *models.Return) error
}

type DiscardRepository interface {
	Create(ctx context.Context, d *models.Discard) error
	Get(ctx context.Context, discardID id.DiscardID) (*models.Discard, error)
	Update(ctx context.Context, d *models.Discard) error
}

// EventLog records transition events inside the unit of work. Events become
// visible only if the transaction commits.
type EventLog interface {
	Append(ctx context.Context, event audit.TransitionEvent) error
	ListByTarget(ctx context.Context, target models.Target) ([]audit.TransitionEvent, error)
}

// DonationSource resolves completed donations owned by the intake subsystem.
type DonationSource interface {
	// FindDonation returns sentinel.ErrNotFound when the donation is unknown
	// or belongs to another org.
	FindDonation(ctx context.Context, org id.OrgID, donationID id.DonationID) (*models.Donation, error)
}

// Sequencer hands out atomic, gap-tolerant sequence numbers per org and scope.
type Sequencer interface {
	Next(ctx context.Context, org id.OrgID, scope string) (int64, error)
}
