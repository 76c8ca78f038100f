package models

import (
	"fmt"

	dErrors "bloodbank/pkg/domain-errors"
)

// parseEnum is the shared boundary check for closed string enumerations.
func parseEnum[T ~string](s, field string, valid func(T) bool) (T, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidArgument, field+" is required")
	}
	v := T(s)
	if !valid(v) {
		return "", dErrors.New(dErrors.CodeInvalidArgument, fmt.Sprintf("unknown %s %q", field, s)).
			WithDetail("field", field)
	}
	return v, nil
}

// BloodGroup is an ABO/Rh group. Matching is exact; no substitution.
type BloodGroup string

const (
	GroupAPos  BloodGroup = "A+"
	GroupANeg  BloodGroup = "A-"
	GroupBPos  BloodGroup = "B+"
	GroupBNeg  BloodGroup = "B-"
	GroupABPos BloodGroup = "AB+"
	GroupABNeg BloodGroup = "AB-"
	GroupOPos  BloodGroup = "O+"
	GroupONeg  BloodGroup = "O-"
)

func ParseBloodGroup(s string) (BloodGroup, error) {
	return parseEnum(s, "blood group", BloodGroup.IsValid)
}

func (g BloodGroup) IsValid() bool {
	switch g {
	case GroupAPos, GroupANeg, GroupBPos, GroupBNeg, GroupABPos, GroupABNeg, GroupOPos, GroupONeg:
		return true
	}
	return false
}

func (g BloodGroup) String() string { return string(g) }

// TargetKind tags whether a quarantine, QC validation or discard refers to a
// unit or a component.
type TargetKind string

const (
	TargetUnit      TargetKind = "unit"
	TargetComponent TargetKind = "component"
)

func ParseTargetKind(s string) (TargetKind, error) {
	return parseEnum(s, "target kind", TargetKind.IsValid)
}

func (k TargetKind) IsValid() bool { return k == TargetUnit || k == TargetComponent }

func (k TargetKind) String() string { return string(k) }

// DiscardReason is why a unit or component left inventory permanently.
type DiscardReason string

const (
	DiscardExpired        DiscardReason = "expired"
	DiscardFailedQC       DiscardReason = "failed_qc"
	DiscardRejectedReturn DiscardReason = "rejected_return"
	DiscardReactive       DiscardReason = "reactive"
	DiscardDamaged        DiscardReason = "damaged"
	DiscardOther          DiscardReason = "other"
)

func ParseDiscardReason(s string) (DiscardReason, error) {
	return parseEnum(s, "discard reason", DiscardReason.IsValid)
}

func (r DiscardReason) IsValid() bool {
	switch r {
	case DiscardExpired, DiscardFailedQC, DiscardRejectedReturn, DiscardReactive, DiscardDamaged, DiscardOther:
		return true
	}
	return false
}

// QCStatus is the outcome of one QC submission.
type QCStatus string

const (
	QCApproved QCStatus = "approved"
	QCHold     QCStatus = "hold"
)

// QuarantineReason records what blocked the target.
type QuarantineReason string

const (
	QuarantineReactive      QuarantineReason = "reactive"
	QuarantineGray          QuarantineReason = "gray"
	QuarantineFailedQC      QuarantineReason = "failed_qc"
	QuarantineInvestigation QuarantineReason = "investigation"
)

func ParseQuarantineReason(s string) (QuarantineReason, error) {
	return parseEnum(s, "quarantine reason", QuarantineReason.IsValid)
}

func (r QuarantineReason) IsValid() bool {
	switch r {
	case QuarantineReactive, QuarantineGray, QuarantineFailedQC, QuarantineInvestigation:
		return true
	}
	return false
}

// IsManual reports whether staff may place a quarantine with this reason.
// Reactive and gray quarantines are only ever created by serology.
func (r QuarantineReason) IsManual() bool {
	return r == QuarantineFailedQC || r == QuarantineInvestigation
}

// DiscardReason maps a quarantine reason to the discard reason recorded
// when the quarantine is resolved with a discard disposition.
func (r QuarantineReason) DiscardReason() DiscardReason {
	switch r {
	case QuarantineReactive, QuarantineGray:
		return DiscardReactive
	case QuarantineFailedQC:
		return DiscardFailedQC
	default:
		return DiscardOther
	}
}

// QuarantineDisposition is the final decision on a quarantine.
type QuarantineDisposition string

const (
	DispositionRelease QuarantineDisposition = "release"
	DispositionDiscard QuarantineDisposition = "discard"
)

func ParseQuarantineDisposition(s string) (QuarantineDisposition, error) {
	return parseEnum(s, "disposition", QuarantineDisposition.IsValid)
}

func (d QuarantineDisposition) IsValid() bool {
	return d == DispositionRelease || d == DispositionDiscard
}

// Urgency of a clinical blood request.
type Urgency string

const (
	UrgencyRoutine   Urgency = "routine"
	UrgencyUrgent    Urgency = "urgent"
	UrgencyEmergency Urgency = "emergency"
)

func ParseUrgency(s string) (Urgency, error) {
	return parseEnum(s, "urgency", Urgency.IsValid)
}

func (u Urgency) IsValid() bool {
	switch u {
	case UrgencyRoutine, UrgencyUrgent, UrgencyEmergency:
		return true
	}
	return false
}

// RequestStatus tracks a blood request through allocation and issuance.
type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestApproved  RequestStatus = "approved"
	RequestFulfilled RequestStatus = "fulfilled"
	RequestRejected  RequestStatus = "rejected"
)

// IssuanceStatus tracks the pick/pack/ship/deliver workflow.
type IssuanceStatus string

const (
	IssuancePicking   IssuanceStatus = "picking"
	IssuancePacking   IssuanceStatus = "packing"
	IssuanceShipped   IssuanceStatus = "shipped"
	IssuanceDelivered IssuanceStatus = "delivered"
	IssuanceCancelled IssuanceStatus = "cancelled"
)

// IsActive reports whether the issuance still holds its components.
func (s IssuanceStatus) IsActive() bool {
	return s == IssuancePicking || s == IssuancePacking || s == IssuanceShipped
}

// ReturnDecision is the outcome of inspecting a returned component.
type ReturnDecision string

const (
	ReturnAccept ReturnDecision = "accept"
	ReturnReject ReturnDecision = "reject"
)

func ParseReturnDecision(s string) (ReturnDecision, error) {
	return parseEnum(s, "return decision", ReturnDecision.IsValid)
}

func (d ReturnDecision) IsValid() bool { return d == ReturnAccept || d == ReturnReject }

// ReturnStatus tracks whether a return has been inspected.
type ReturnStatus string

const (
	ReturnPending  ReturnStatus = "pending"
	ReturnAccepted ReturnStatus = "accepted"
	ReturnRejected ReturnStatus = "rejected"
)
