package models

import (
	"time"

	id "bloodbank/pkg/domain"
	dErrors "bloodbank/pkg/domain-errors"
)

// BloodRequest is a clinical demand for a quantity of one product and group.
type BloodRequest struct {
	ID          id.BloodRequestID `json:"id"`
	OrgID       id.OrgID          `json:"org_id"`
	BloodGroup  BloodGroup        `json:"blood_group"`
	ProductType ComponentType     `json:"product_type"`
	Quantity    int               `json:"quantity"`
	Urgency     Urgency           `json:"urgency"`
	RequestedAt time.Time         `json:"requested_at"`
	RequiredBy  *time.Time        `json:"required_by,omitempty"`
	RequestedBy id.ActorID        `json:"requested_by"`
	Status      RequestStatus     `json:"status"`
	IssuanceID  id.IssuanceID     `json:"issuance_id,omitempty"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Version     int               `json:"version"`
}

func NewBloodRequest(org id.OrgID, group BloodGroup, product ComponentType, quantity int, urgency Urgency, requiredBy *time.Time, actor id.ActorID, now time.Time) (*BloodRequest, error) {
	if !group.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "unknown blood group "+string(group))
	}
	if !product.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "unknown product type "+string(product))
	}
	if quantity <= 0 {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "quantity must be positive")
	}
	if urgency == "" {
		urgency = UrgencyRoutine
	}
	if !urgency.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "unknown urgency "+string(urgency))
	}
	if requiredBy != nil && requiredBy.Before(now) {
		return nil, dErrors.New(dErrors.CodeInvalidArgument, "required_by is in the past")
	}
	return &BloodRequest{
		ID:          id.NewBloodRequestID(),
		OrgID:       org,
		BloodGroup:  group,
		ProductType: product,
		Quantity:    quantity,
		Urgency:     urgency,
		RequestedAt: now,
		RequiredBy:  requiredBy,
		RequestedBy: actor,
		Status:      RequestPending,
		UpdatedAt:   now,
	}, nil
}

// CanAllocate reports whether the request still accepts an allocation.
func (r *BloodRequest) CanAllocate() error {
	if r.Status != RequestPending && r.Status != RequestApproved {
		return dErrors.New(dErrors.CodeInvalidState, "request is "+string(r.Status)).
			WithDetail("current_state", r.Status)
	}
	if !r.IssuanceID.IsNil() {
		return dErrors.New(dErrors.CodeConflict, "request already has an active issuance").
			WithDetail("issuance_id", r.IssuanceID.String())
	}
	return nil
}

// Reserve links the request to the issuance holding its components.
func (r *BloodRequest) Reserve(issuanceID id.IssuanceID, now time.Time) {
	r.Status = RequestApproved
	r.IssuanceID = issuanceID
	r.UpdatedAt = now
}

// Unreserve returns the request to the queue after its issuance was cancelled.
func (r *BloodRequest) Unreserve(now time.Time) {
	r.Status = RequestPending
	r.IssuanceID = id.IssuanceID{}
	r.UpdatedAt = now
}

// Fulfil marks the request fulfilled once its issuance has shipped.
func (r *BloodRequest) Fulfil(now time.Time) {
	r.Status = RequestFulfilled
	r.UpdatedAt = now
}
