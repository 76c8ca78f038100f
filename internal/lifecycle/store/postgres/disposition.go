package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"bloodbank/internal/lifecycle/models"
	id "bloodbank/pkg/domain"
)

type returnRepo struct{ repo }

const returnColumns = `id, org_id, component_id, source, reason, status, qc_pass, decision,
	received_at, received_by, processed_at, processed_by, version`

func (r *returnRepo) Create(ctx context.Context, ret *models.Return) error {
	ret.OrgID = r.org
	ret.Version = 1
	_, err := r.exec(ctx).ExecContext(ctx, `
		INSERT INTO returns (`+returnColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		uuid.UUID(ret.ID), string(ret.OrgID), uuid.UUID(ret.ComponentID), ret.Source, ret.Reason,
		string(ret.Status), nullBool(ret.QCPass), string(ret.Decision), ret.ReceivedAt,
		string(ret.ReceivedBy), nullTime(ret.ProcessedAt), string(ret.ProcessedBy), ret.Version,
	)
	return classify(err, "insert return")
}

func (r *returnRepo) Get(ctx context.Context, returnID id.ReturnID) (*models.Return, error) {
	var ret models.Return
	var retID, componentID uuid.UUID
	var org, status, decision, receivedBy, processedBy string
	var qcPass sql.NullBool
	var processedAt sql.NullTime
	err := r.exec(ctx).QueryRowContext(ctx, `
		SELECT `+returnColumns+`
		FROM returns
		WHERE id = $1 AND org_id = $2
	`, uuid.UUID(returnID), string(r.org)).Scan(
		&retID, &org, &componentID, &ret.Source, &ret.Reason, &status, &qcPass, &decision,
		&ret.ReceivedAt, &receivedBy, &processedAt, &processedBy, &ret.Version,
	)
	if err != nil {
		return nil, classify(err, fmt.Sprintf("return %s", returnID))
	}
	ret.ID = id.ReturnID(retID)
	ret.OrgID = id.OrgID(org)
	ret.ComponentID = id.ComponentID(componentID)
	ret.Status = models.ReturnStatus(status)
	if qcPass.Valid {
		pass := qcPass.Bool
		ret.QCPass = &pass
	}
	ret.Decision = models.ReturnDecision(decision)
	ret.ReceivedBy = id.ActorID(receivedBy)
	ret.ProcessedAt = timePtr(processedAt)
	ret.ProcessedBy = id.ActorID(processedBy)
	return &ret, nil
}

func (r *returnRepo) Update(ctx context.Context, ret *models.Return) error {
	res, err := r.exec(ctx).ExecContext(ctx, `
		UPDATE returns
		SET status = $1, qc_pass = $2, decision = $3, processed_at = $4, processed_by = $5,
		    version = version + 1
		WHERE id = $6 AND org_id = $7 AND version = $8
	`,
		string(ret.Status), nullBool(ret.QCPass), string(ret.Decision), nullTime(ret.ProcessedAt),
		string(ret.ProcessedBy), uuid.UUID(ret.ID), string(r.org), ret.Version,
	)
	if err != nil {
		return classify(err, "update return")
	}
	if err := expectOne(res, "update return"); err != nil {
		return err
	}
	ret.Version++
	return nil
}

func nullBool(b *bool) sql.NullBool {
	if b == nil {
		return sql.NullBool{}
	}
	return sql.NullBool{Bool: *b, Valid: true}
}

type discardRepo struct{ repo }

const discardColumns = `id, org_id, target_kind, target_id, reason, details, discarded_at,
	discarded_by, destruction_method, witness, destroyed_at, destroyed_by, version`

func (r *discardRepo) Create(ctx context.Context, d *models.Discard) error {
	d.OrgID = r.org
	d.Version = 1
	_, err := r.exec(ctx).ExecContext(ctx, `
		INSERT INTO discards (`+discardColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`,
		uuid.UUID(d.ID), string(d.OrgID), string(d.Target.Kind), d.Target.ID, string(d.Reason),
		d.Details, d.DiscardedAt, string(d.DiscardedBy), d.DestructionMethod, d.Witness,
		nullTime(d.DestroyedAt), string(d.DestroyedBy), d.Version,
	)
	return classify(err, "insert discard")
}

func (r *discardRepo) Get(ctx context.Context, discardID id.DiscardID) (*models.Discard, error) {
	var d models.Discard
	var discID uuid.UUID
	var org, kind, reason, discardedBy, destroyedBy string
	var destroyedAt sql.NullTime
	err := r.exec(ctx).QueryRowContext(ctx, `
		SELECT `+discardColumns+`
		FROM discards
		WHERE id = $1 AND org_id = $2
	`, uuid.UUID(discardID), string(r.org)).Scan(
		&discID, &org, &kind, &d.Target.ID, &reason, &d.Details, &d.DiscardedAt,
		&discardedBy, &d.DestructionMethod, &d.Witness, &destroyedAt, &destroyedBy, &d.Version,
	)
	if err != nil {
		return nil, classify(err, fmt.Sprintf("discard %s", discardID))
	}
	d.ID = id.DiscardID(discID)
	d.OrgID = id.OrgID(org)
	d.Target.Kind = models.TargetKind(kind)
	d.Reason = models.DiscardReason(reason)
	d.DiscardedBy = id.ActorID(discardedBy)
	d.DestroyedAt = timePtr(destroyedAt)
	d.DestroyedBy = id.ActorID(destroyedBy)
	return &d, nil
}

func (r *discardRepo) Update(ctx context.Context, d *models.Discard) error {
	res, err := r.exec(ctx).ExecContext(ctx, `
		UPDATE discards
		SET destruction_method = $1, witness = $2, destroyed_at = $3, destroyed_by = $4,
		    version = version + 1
		WHERE id = $5 AND org_id = $6 AND version = $7
	`,
		d.DestructionMethod, d.Witness, nullTime(d.DestroyedAt), string(d.DestroyedBy),
		uuid.UUID(d.ID), string(r.org), d.Version,
	)
	if err != nil {
		return classify(err, "update discard")
	}
	if err := expectOne(res, "update discard"); err != nil {
		return err
	}
	d.Version++
	return nil
}
