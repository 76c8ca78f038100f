package models

import (
	"time"

	id "bloodbank/pkg/domain"
	dErrors "bloodbank/pkg/domain-errors"
)

// Issuance is the pick/pack/ship record for the components reserved against
// one request. ComponentIDs keeps FEFO order.
type Issuance struct {
	ID           id.IssuanceID     `json:"id"`
	OrgID        id.OrgID          `json:"org_id"`
	RequestID    id.BloodRequestID `json:"request_id"`
	ComponentIDs []id.ComponentID  `json:"component_ids"`
	Status       IssuanceStatus    `json:"status"`
	PickedAt     time.Time         `json:"picked_at"`
	PackedAt     *time.Time        `json:"packed_at,omitempty"`
	ShippedAt    *time.Time        `json:"shipped_at,omitempty"`
	DeliveredAt  *time.Time        `json:"delivered_at,omitempty"`
	ReceivedBy   string            `json:"received_by,omitempty"`
	CancelledAt  *time.Time        `json:"cancelled_at,omitempty"`
	CreatedBy    id.ActorID        `json:"created_by"`
	Version      int               `json:"version"`
}

func NewIssuance(org id.OrgID, requestID id.BloodRequestID, components []id.ComponentID, actor id.ActorID, now time.Time) *Issuance {
	return &Issuance{
		ID:           id.NewIssuanceID(),
		OrgID:        org,
		RequestID:    requestID,
		ComponentIDs: components,
		Status:       IssuancePicking,
		PickedAt:     now,
		CreatedBy:    actor,
	}
}

func issuanceStateError(current IssuanceStatus, action string) error {
	return dErrors.New(dErrors.CodeInvalidState, "cannot "+action+" an issuance in "+string(current)).
		WithDetail("current_state", current)
}

func (i *Issuance) Pack(now time.Time) error {
	if i.Status != IssuancePicking {
		return issuanceStateError(i.Status, "pack")
	}
	i.Status = IssuancePacking
	i.PackedAt = &now
	return nil
}

// Ship is allowed straight from picking; packing is optional.
func (i *Issuance) Ship(now time.Time) error {
	if i.Status != IssuancePicking && i.Status != IssuancePacking {
		return issuanceStateError(i.Status, "ship")
	}
	i.Status = IssuanceShipped
	i.ShippedAt = &now
	return nil
}

func (i *Issuance) Deliver(receivedBy string, now time.Time) error {
	if i.Status != IssuanceShipped {
		return issuanceStateError(i.Status, "deliver")
	}
	if receivedBy == "" {
		return dErrors.New(dErrors.CodeInvalidArgument, "received_by is required")
	}
	i.Status = IssuanceDelivered
	i.DeliveredAt = &now
	i.ReceivedBy = receivedBy
	return nil
}

// Cancel releases a reservation that has not left the bank.
func (i *Issuance) Cancel(now time.Time) error {
	if i.Status != IssuancePicking && i.Status != IssuancePacking {
		return issuanceStateError(i.Status, "cancel")
	}
	i.Status = IssuanceCancelled
	i.CancelledAt = &now
	return nil
}
