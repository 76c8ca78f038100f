package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"bloodbank/internal/lifecycle/models"
	id "bloodbank/pkg/domain"
)

type quarantineRepo struct{ repo }

const quarantineColumns = `id, org_id, target_kind, target_id, reason, prior_state, notes,
	quarantined_at, placed_by, retest_result, disposition, resolved_at, resolved_by, version`

// Create relies on the partial unique index over open quarantines.
func (r *quarantineRepo) Create(ctx context.Context, q *models.Quarantine) error {
	q.OrgID = r.org
	q.Version = 1
	_, err := r.exec(ctx).ExecContext(ctx, `
		INSERT INTO quarantines (`+quarantineColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		uuid.UUID(q.ID), string(q.OrgID), string(q.Target.Kind), q.Target.ID,
		string(q.Reason), string(q.PriorState), q.Notes, q.QuarantinedAt, string(q.PlacedBy),
		string(q.RetestResult), string(q.Disposition), nullTime(q.ResolvedAt),
		string(q.ResolvedBy), q.Version,
	)
	return classify(err, fmt.Sprintf("open quarantine for %s", q.Target))
}

func (r *quarantineRepo) Get(ctx context.Context, quarantineID id.QuarantineID) (*models.Quarantine, error) {
	row := r.exec(ctx).QueryRowContext(ctx, `
		SELECT `+quarantineColumns+`
		FROM quarantines
		WHERE id = $1 AND org_id = $2
	`, uuid.UUID(quarantineID), string(r.org))
	q, err := scanQuarantine(row)
	if err != nil {
		return nil, classify(err, fmt.Sprintf("quarantine %s", quarantineID))
	}
	return q, nil
}

func (r *quarantineRepo) Update(ctx context.Context, q *models.Quarantine) error {
	res, err := r.exec(ctx).ExecContext(ctx, `
		UPDATE quarantines
		SET notes = $1, retest_result = $2, disposition = $3, resolved_at = $4,
		    resolved_by = $5, version = version + 1
		WHERE id = $6 AND org_id = $7 AND version = $8
	`,
		q.Notes, string(q.RetestResult), string(q.Disposition), nullTime(q.ResolvedAt),
		string(q.ResolvedBy), uuid.UUID(q.ID), string(r.org), q.Version,
	)
	if err != nil {
		return classify(err, "update quarantine")
	}
	if err := expectOne(res, "update quarantine"); err != nil {
		return err
	}
	q.Version++
	return nil
}

func (r *quarantineRepo) FindOpen(ctx context.Context, target models.Target) (*models.Quarantine, error) {
	row := r.exec(ctx).QueryRowContext(ctx, `
		SELECT `+quarantineColumns+`
		FROM quarantines
		WHERE org_id = $1 AND target_kind = $2 AND target_id = $3 AND resolved_at IS NULL
	`, string(r.org), string(target.Kind), target.ID)
	q, err := scanQuarantine(row)
	if err != nil {
		return nil, classify(err, fmt.Sprintf("open quarantine for %s", target))
	}
	return q, nil
}

func (r *quarantineRepo) ListOpen(ctx context.Context) ([]*models.Quarantine, error) {
	rows, err := r.exec(ctx).QueryContext(ctx, `
		SELECT `+quarantineColumns+`
		FROM quarantines
		WHERE org_id = $1 AND resolved_at IS NULL
		ORDER BY quarantined_at ASC
	`, string(r.org))
	if err != nil {
		return nil, classify(err, "query open quarantines")
	}
	defer rows.Close()

	var out []*models.Quarantine
	for rows.Next() {
		q, err := scanQuarantine(rows)
		if err != nil {
			return nil, fmt.Errorf("scan quarantine: %w", err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate quarantines: %w", err)
	}
	return out, nil
}

func scanQuarantine(s scanner) (*models.Quarantine, error) {
	var q models.Quarantine
	var quarantineID uuid.UUID
	var org, kind, reason, prior, placedBy, retest, disposition, resolvedBy string
	var resolvedAt sql.NullTime
	if err := s.Scan(
		&quarantineID, &org, &kind, &q.Target.ID, &reason, &prior, &q.Notes, &q.QuarantinedAt,
		&placedBy, &retest, &disposition, &resolvedAt, &resolvedBy, &q.Version,
	); err != nil {
		return nil, err
	}
	q.ID = id.QuarantineID(quarantineID)
	q.OrgID = id.OrgID(org)
	q.Target.Kind = models.TargetKind(kind)
	q.Reason = models.QuarantineReason(reason)
	q.PriorState = models.UnitState(prior)
	q.PlacedBy = id.ActorID(placedBy)
	q.RetestResult = models.SerologyOutcome(retest)
	q.Disposition = models.QuarantineDisposition(disposition)
	q.ResolvedAt = timePtr(resolvedAt)
	q.ResolvedBy = id.ActorID(resolvedBy)
	return &q, nil
}
