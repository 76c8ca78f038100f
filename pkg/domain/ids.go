// Package domain holds the typed identifiers shared by every bounded context.
//
// Record identifiers are UUID-backed so that uniqueness never depends on a
// read-then-format sequence. Human-readable labels (BU-2026-000042) are
// cosmetic and live on the records themselves.
//
// OrgID and ActorID are opaque strings: tenancy and authentication are owned
// by external collaborators and this module only carries their values.
package domain

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	dErrors "bloodbank/pkg/domain-errors"
)

// maxOpaqueIDLength bounds OrgID and ActorID at trust boundaries.
const maxOpaqueIDLength = 128

type (
	UnitID         uuid.UUID
	ComponentID    uuid.UUID
	DonationID     uuid.UUID
	DonorID        uuid.UUID
	LabTestID      uuid.UUID
	QuarantineID   uuid.UUID
	QCValidationID uuid.UUID
	BloodRequestID uuid.UUID
	IssuanceID     uuid.UUID
	ReturnID       uuid.UUID
	DiscardID      uuid.UUID
)

// OrgID is the opaque tenancy partition key carried on every record.
type OrgID string

// ActorID identifies the staff member (or system job) performing an action.
type ActorID string

func (id OrgID) String() string   { return string(id) }
func (id OrgID) IsZero() bool     { return id == "" }
func (id ActorID) String() string { return string(id) }
func (id ActorID) IsZero() bool   { return id == "" }

// SystemActor is used for transitions applied by scheduled jobs.
const SystemActor ActorID = "system"

func (id UnitID) String() string         { return uuid.UUID(id).String() }
func (id ComponentID) String() string    { return uuid.UUID(id).String() }
func (id DonationID) String() string     { return uuid.UUID(id).String() }
func (id DonorID) String() string        { return uuid.UUID(id).String() }
func (id LabTestID) String() string      { return uuid.UUID(id).String() }
func (id QuarantineID) String() string   { return uuid.UUID(id).String() }
func (id QCValidationID) String() string { return uuid.UUID(id).String() }
func (id BloodRequestID) String() string { return uuid.UUID(id).String() }
func (id IssuanceID) String() string     { return uuid.UUID(id).String() }
func (id ReturnID) String() string       { return uuid.UUID(id).String() }
func (id DiscardID) String() string      { return uuid.UUID(id).String() }

func (id UnitID) IsNil() bool         { return uuid.UUID(id) == uuid.Nil }
func (id ComponentID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id DonationID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id DonorID) IsNil() bool        { return uuid.UUID(id) == uuid.Nil }
func (id QuarantineID) IsNil() bool   { return uuid.UUID(id) == uuid.Nil }
func (id BloodRequestID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id IssuanceID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id ReturnID) IsNil() bool       { return uuid.UUID(id) == uuid.Nil }
func (id DiscardID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }

func NewUnitID() UnitID                 { return UnitID(uuid.New()) }
func NewComponentID() ComponentID       { return ComponentID(uuid.New()) }
func NewLabTestID() LabTestID           { return LabTestID(uuid.New()) }
func NewQuarantineID() QuarantineID     { return QuarantineID(uuid.New()) }
func NewQCValidationID() QCValidationID { return QCValidationID(uuid.New()) }
func NewBloodRequestID() BloodRequestID { return BloodRequestID(uuid.New()) }
func NewIssuanceID() IssuanceID         { return IssuanceID(uuid.New()) }
func NewReturnID() ReturnID             { return ReturnID(uuid.New()) }
func NewDiscardID() DiscardID           { return DiscardID(uuid.New()) }

func ParseUnitID(s string) (UnitID, error) {
	u, err := parseUUID(s, "unit_id")
	return UnitID(u), err
}

func ParseComponentID(s string) (ComponentID, error) {
	u, err := parseUUID(s, "component_id")
	return ComponentID(u), err
}

func ParseDonationID(s string) (DonationID, error) {
	u, err := parseUUID(s, "donation_id")
	return DonationID(u), err
}

func ParseDonorID(s string) (DonorID, error) {
	u, err := parseUUID(s, "donor_id")
	return DonorID(u), err
}

func ParseQuarantineID(s string) (QuarantineID, error) {
	u, err := parseUUID(s, "quarantine_id")
	return QuarantineID(u), err
}

func ParseBloodRequestID(s string) (BloodRequestID, error) {
	u, err := parseUUID(s, "request_id")
	return BloodRequestID(u), err
}

func ParseIssuanceID(s string) (IssuanceID, error) {
	u, err := parseUUID(s, "issuance_id")
	return IssuanceID(u), err
}

func ParseReturnID(s string) (ReturnID, error) {
	u, err := parseUUID(s, "return_id")
	return ReturnID(u), err
}

func ParseDiscardID(s string) (DiscardID, error) {
	u, err := parseUUID(s, "discard_id")
	return DiscardID(u), err
}

// ParseOrgID validates an opaque org identifier received at a trust boundary.
func ParseOrgID(s string) (OrgID, error) {
	v, err := parseOpaque(s, "org_id")
	return OrgID(v), err
}

// ParseActorID validates an opaque actor identifier received at a trust boundary.
func ParseActorID(s string) (ActorID, error) {
	v, err := parseOpaque(s, "actor_id")
	return ActorID(v), err
}

func parseUUID(s, field string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidArgument, field+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidArgument, "invalid "+field)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidArgument, field+" cannot be nil")
	}
	return u, nil
}

func parseOpaque(s, field string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidArgument, field+" is required")
	}
	if len(s) > maxOpaqueIDLength || !utf8.ValidString(s) {
		return "", dErrors.New(dErrors.CodeInvalidArgument, field+" is too long")
	}
	for _, r := range s {
		if r < 0x21 || r == 0x7f {
			return "", dErrors.New(dErrors.CodeInvalidArgument, "invalid "+field)
		}
	}
	return s, nil
}

// Text marshalling keeps identifiers canonical in JSON bodies and query strings.

func (id UnitID) MarshalText() ([]byte, error)         { return uuid.UUID(id).MarshalText() }
func (id ComponentID) MarshalText() ([]byte, error)    { return uuid.UUID(id).MarshalText() }
func (id DonationID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }
func (id DonorID) MarshalText() ([]byte, error)        { return uuid.UUID(id).MarshalText() }
func (id LabTestID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }
func (id QuarantineID) MarshalText() ([]byte, error)   { return uuid.UUID(id).MarshalText() }
func (id QCValidationID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id BloodRequestID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id IssuanceID) MarshalText() ([]byte, error)     { return uuid.UUID(id).MarshalText() }
func (id ReturnID) MarshalText() ([]byte, error)       { return uuid.UUID(id).MarshalText() }
func (id DiscardID) MarshalText() ([]byte, error)      { return uuid.UUID(id).MarshalText() }

func (id *UnitID) UnmarshalText(b []byte) error         { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ComponentID) UnmarshalText(b []byte) error    { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *DonationID) UnmarshalText(b []byte) error     { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *DonorID) UnmarshalText(b []byte) error        { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *LabTestID) UnmarshalText(b []byte) error      { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *QuarantineID) UnmarshalText(b []byte) error   { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *QCValidationID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *BloodRequestID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *IssuanceID) UnmarshalText(b []byte) error     { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *ReturnID) UnmarshalText(b []byte) error       { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *DiscardID) UnmarshalText(b []byte) error      { return (*uuid.UUID)(id).UnmarshalText(b) }
