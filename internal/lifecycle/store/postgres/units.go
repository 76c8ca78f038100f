package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"bloodbank/internal/lifecycle/models"
	"bloodbank/internal/lifecycle/ports"
	id "bloodbank/pkg/domain"
)

type unitRepo struct{ repo }

const unitColumns = `id, org_id, label, donor_id, donation_id, declared_group, confirmed_group,
	state, volume_ml, collected_at, expires_at, storage_location, created_at, updated_at, version`

func (r *unitRepo) Create(ctx context.Context, u *models.BloodUnit) error {
	u.OrgID = r.org
	u.Version = 1
	_, err := r.exec(ctx).ExecContext(ctx, `
		INSERT INTO blood_units (`+unitColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`,
		uuid.UUID(u.ID), string(u.OrgID), u.Label, uuid.UUID(u.DonorID), uuid.UUID(u.DonationID),
		string(u.DeclaredGroup), string(u.ConfirmedGroup), string(u.State), u.VolumeML,
		u.CollectedAt, u.ExpiresAt, u.StorageLocation, u.CreatedAt, u.UpdatedAt, u.Version,
	)
	return classify(err, "insert unit")
}

func (r *unitRepo) Get(ctx context.Context, unitID id.UnitID) (*models.BloodUnit, error) {
	row := r.exec(ctx).QueryRowContext(ctx, `
		SELECT `+unitColumns+`
		FROM blood_units
		WHERE id = $1 AND org_id = $2
	`, uuid.UUID(unitID), string(r.org))
	u, err := scanUnit(row)
	if err != nil {
		return nil, classify(err, fmt.Sprintf("unit %s", unitID))
	}
	return u, nil
}

func (r *unitRepo) Update(ctx context.Context, u *models.BloodUnit) error {
	res, err := r.exec(ctx).ExecContext(ctx, `
		UPDATE blood_units
		SET confirmed_group = $1, state = $2, volume_ml = $3, storage_location = $4,
		    updated_at = $5, version = version + 1
		WHERE id = $6 AND org_id = $7 AND version = $8
	`,
		string(u.ConfirmedGroup), string(u.State), u.VolumeML, u.StorageLocation,
		u.UpdatedAt, uuid.UUID(u.ID), string(r.org), u.Version,
	)
	if err != nil {
		return classify(err, "update unit")
	}
	if err := expectOne(res, "update unit"); err != nil {
		return err
	}
	u.Version++
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUnit(s scanner) (*models.BloodUnit, error) {
	var u models.BloodUnit
	var unitID, donorID, donationID uuid.UUID
	var org, declared, confirmed, state string
	if err := s.Scan(
		&unitID, &org, &u.Label, &donorID, &donationID, &declared, &confirmed,
		&state, &u.VolumeML, &u.CollectedAt, &u.ExpiresAt, &u.StorageLocation,
		&u.CreatedAt, &u.UpdatedAt, &u.Version,
	); err != nil {
		return nil, err
	}
	u.ID = id.UnitID(unitID)
	u.OrgID = id.OrgID(org)
	u.DonorID = id.DonorID(donorID)
	u.DonationID = id.DonationID(donationID)
	u.DeclaredGroup = models.BloodGroup(declared)
	u.ConfirmedGroup = models.BloodGroup(confirmed)
	u.State = models.UnitState(state)
	return &u, nil
}

type componentRepo struct{ repo }

const componentColumns = `id, org_id, unit_id, label, type, blood_group, volume_ml,
	temp_min_c, temp_max_c, expires_at, state, created_at, updated_at, version`

func (r *componentRepo) Create(ctx context.Context, c *models.Component) error {
	c.OrgID = r.org
	c.Version = 1
	_, err := r.exec(ctx).ExecContext(ctx, `
		INSERT INTO components (`+componentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		uuid.UUID(c.ID), string(c.OrgID), uuid.UUID(c.UnitID), c.Label, string(c.Type),
		string(c.BloodGroup), c.VolumeML, c.TempMinC, c.TempMaxC, c.ExpiresAt,
		string(c.State), c.CreatedAt, c.UpdatedAt, c.Version,
	)
	return classify(err, "insert component")
}

func (r *componentRepo) Get(ctx context.Context, componentID id.ComponentID) (*models.Component, error) {
	row := r.exec(ctx).QueryRowContext(ctx, `
		SELECT `+componentColumns+`
		FROM components
		WHERE id = $1 AND org_id = $2
	`, uuid.UUID(componentID), string(r.org))
	c, err := scanComponent(row)
	if err != nil {
		return nil, classify(err, fmt.Sprintf("component %s", componentID))
	}
	return c, nil
}

func (r *componentRepo) Update(ctx context.Context, c *models.Component) error {
	res, err := r.exec(ctx).ExecContext(ctx, `
		UPDATE components
		SET state = $1, volume_ml = $2, expires_at = $3, updated_at = $4, version = version + 1
		WHERE id = $5 AND org_id = $6 AND version = $7
	`,
		string(c.State), c.VolumeML, c.ExpiresAt, c.UpdatedAt,
		uuid.UUID(c.ID), string(r.org), c.Version,
	)
	if err != nil {
		return classify(err, "update component")
	}
	if err := expectOne(res, "update component"); err != nil {
		return err
	}
	c.Version++
	return nil
}

// List builds the filter incrementally; FEFO order is expiry, then creation, then id.
func (r *componentRepo) List(ctx context.Context, f ports.ComponentFilter) ([]*models.Component, error) {
	where := []string{"org_id = $1"}
	args := []any{string(r.org)}
	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if f.UnitID != nil {
		add("unit_id = $%d", uuid.UUID(*f.UnitID))
	}
	if f.State != "" {
		add("state = $%d", string(f.State))
	}
	if f.BloodGroup != "" {
		add("blood_group = $%d", string(f.BloodGroup))
	}
	if f.Type != "" {
		add("type = $%d", string(f.Type))
	}
	if f.ExpiresAfter != nil {
		add("expires_at > $%d", *f.ExpiresAfter)
	}
	if f.ExpiresBy != nil {
		add("expires_at <= $%d", *f.ExpiresBy)
	}
	query := `SELECT ` + componentColumns + ` FROM components WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY expires_at ASC, created_at ASC, id ASC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.exec(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, classify(err, "query components")
	}
	defer rows.Close()

	var out []*models.Component
	for rows.Next() {
		c, err := scanComponent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan component: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate components: %w", err)
	}
	return out, nil
}

func scanComponent(s scanner) (*models.Component, error) {
	var c models.Component
	var componentID, unitID uuid.UUID
	var org, ctype, group, state string
	if err := s.Scan(
		&componentID, &org, &unitID, &c.Label, &ctype, &group, &c.VolumeML,
		&c.TempMinC, &c.TempMaxC, &c.ExpiresAt, &state, &c.CreatedAt, &c.UpdatedAt, &c.Version,
	); err != nil {
		return nil, err
	}
	c.ID = id.ComponentID(componentID)
	c.OrgID = id.OrgID(org)
	c.UnitID = id.UnitID(unitID)
	c.Type = models.ComponentType(ctype)
	c.BloodGroup = models.BloodGroup(group)
	c.State = models.UnitState(state)
	return &c, nil
}

var _ scanner = (*sql.Row)(nil)
