package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"bloodbank/internal/lifecycle/models"
	id "bloodbank/pkg/domain"
)

type requestRepo struct{ repo }

const requestColumns = `id, org_id, blood_group, product_type, quantity, urgency, requested_at,
	required_by, requested_by, status, issuance_id, updated_at, version`

func (r *requestRepo) Create(ctx context.Context, req *models.BloodRequest) error {
	req.OrgID = r.org
	req.Version = 1
	_, err := r.exec(ctx).ExecContext(ctx, `
		INSERT INTO blood_requests (`+requestColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		uuid.UUID(req.ID), string(req.OrgID), string(req.BloodGroup), string(req.ProductType),
		req.Quantity, string(req.Urgency), req.RequestedAt, nullTime(req.RequiredBy),
		string(req.RequestedBy), string(req.Status), nullIssuance(req.IssuanceID),
		req.UpdatedAt, req.Version,
	)
	return classify(err, "insert request")
}

func (r *requestRepo) Get(ctx context.Context, requestID id.BloodRequestID) (*models.BloodRequest, error) {
	var req models.BloodRequest
	var reqID uuid.UUID
	var org, group, product, urgency, requestedBy, status string
	var requiredBy sql.NullTime
	var issuanceID uuid.NullUUID
	err := r.exec(ctx).QueryRowContext(ctx, `
		SELECT `+requestColumns+`
		FROM blood_requests
		WHERE id = $1 AND org_id = $2
	`, uuid.UUID(requestID), string(r.org)).Scan(
		&reqID, &org, &group, &product, &req.Quantity, &urgency, &req.RequestedAt,
		&requiredBy, &requestedBy, &status, &issuanceID, &req.UpdatedAt, &req.Version,
	)
	if err != nil {
		return nil, classify(err, fmt.Sprintf("request %s", requestID))
	}
	req.ID = id.BloodRequestID(reqID)
	req.OrgID = id.OrgID(org)
	req.BloodGroup = models.BloodGroup(group)
	req.ProductType = models.ComponentType(product)
	req.Urgency = models.Urgency(urgency)
	req.RequiredBy = timePtr(requiredBy)
	req.RequestedBy = id.ActorID(requestedBy)
	req.Status = models.RequestStatus(status)
	if issuanceID.Valid {
		req.IssuanceID = id.IssuanceID(issuanceID.UUID)
	}
	return &req, nil
}

func (r *requestRepo) Update(ctx context.Context, req *models.BloodRequest) error {
	res, err := r.exec(ctx).ExecContext(ctx, `
		UPDATE blood_requests
		SET status = $1, issuance_id = $2, updated_at = $3, version = version + 1
		WHERE id = $4 AND org_id = $5 AND version = $6
	`,
		string(req.Status), nullIssuance(req.IssuanceID), req.UpdatedAt,
		uuid.UUID(req.ID), string(r.org), req.Version,
	)
	if err != nil {
		return classify(err, "update request")
	}
	if err := expectOne(res, "update request"); err != nil {
		return err
	}
	req.Version++
	return nil
}

func nullIssuance(issuanceID id.IssuanceID) uuid.NullUUID {
	if issuanceID.IsNil() {
		return uuid.NullUUID{}
	}
	return uuid.NullUUID{UUID: uuid.UUID(issuanceID), Valid: true}
}

type issuanceRepo struct{ repo }

const issuanceColumns = `id, org_id, request_id, component_ids, status, picked_at, packed_at,
	shipped_at, delivered_at, received_by, cancelled_at, created_by, version`

func (r *issuanceRepo) Create(ctx context.Context, i *models.Issuance) error {
	i.OrgID = r.org
	i.Version = 1
	_, err := r.exec(ctx).ExecContext(ctx, `
		INSERT INTO issuances (`+issuanceColumns+`)
		VALUES ($1, $2, $3, $4::uuid[], $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		uuid.UUID(i.ID), string(i.OrgID), uuid.UUID(i.RequestID), pq.Array(componentStrings(i.ComponentIDs)),
		string(i.Status), i.PickedAt, nullTime(i.PackedAt), nullTime(i.ShippedAt),
		nullTime(i.DeliveredAt), i.ReceivedBy, nullTime(i.CancelledAt), string(i.CreatedBy), i.Version,
	)
	return classify(err, "insert issuance")
}

func (r *issuanceRepo) Get(ctx context.Context, issuanceID id.IssuanceID) (*models.Issuance, error) {
	var i models.Issuance
	var issID, requestID uuid.UUID
	var org, status, createdBy string
	var components []string
	var packedAt, shippedAt, deliveredAt, cancelledAt sql.NullTime
	err := r.exec(ctx).QueryRowContext(ctx, `
		SELECT `+issuanceColumns+`
		FROM issuances
		WHERE id = $1 AND org_id = $2
	`, uuid.UUID(issuanceID), string(r.org)).Scan(
		&issID, &org, &requestID, pq.Array(&components), &status, &i.PickedAt, &packedAt,
		&shippedAt, &deliveredAt, &i.ReceivedBy, &cancelledAt, &createdBy, &i.Version,
	)
	if err != nil {
		return nil, classify(err, fmt.Sprintf("issuance %s", issuanceID))
	}
	i.ComponentIDs = make([]id.ComponentID, 0, len(components))
	for _, raw := range components {
		componentID, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("issuance %s: component id %q: %w", issuanceID, raw, err)
		}
		i.ComponentIDs = append(i.ComponentIDs, id.ComponentID(componentID))
	}
	i.ID = id.IssuanceID(issID)
	i.OrgID = id.OrgID(org)
	i.RequestID = id.BloodRequestID(requestID)
	i.Status = models.IssuanceStatus(status)
	i.PackedAt = timePtr(packedAt)
	i.ShippedAt = timePtr(shippedAt)
	i.DeliveredAt = timePtr(deliveredAt)
	i.CancelledAt = timePtr(cancelledAt)
	i.CreatedBy = id.ActorID(createdBy)
	return &i, nil
}

func (r *issuanceRepo) Update(ctx context.Context, i *models.Issuance) error {
	res, err := r.exec(ctx).ExecContext(ctx, `
		UPDATE issuances
		SET status = $1, packed_at = $2, shipped_at = $3, delivered_at = $4,
		    received_by = $5, cancelled_at = $6, version = version + 1
		WHERE id = $7 AND org_id = $8 AND version = $9
	`,
		string(i.Status), nullTime(i.PackedAt), nullTime(i.ShippedAt), nullTime(i.DeliveredAt),
		i.ReceivedBy, nullTime(i.CancelledAt), uuid.UUID(i.ID), string(r.org), i.Version,
	)
	if err != nil {
		return classify(err, "update issuance")
	}
	if err := expectOne(res, "update issuance"); err != nil {
		return err
	}
	i.Version++
	return nil
}

func componentStrings(ids []id.ComponentID) []string {
	out := make([]string, len(ids))
	for n, componentID := range ids {
		out[n] = componentID.String()
	}
	return out
}
