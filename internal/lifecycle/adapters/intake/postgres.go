package intake

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"bloodbank/internal/lifecycle/models"
	"bloodbank/internal/lifecycle/ports"
	id "bloodbank/pkg/domain"
	"bloodbank/pkg/platform/sentinel"
)

// PostgresReader reads the intake-owned donations table.
type PostgresReader struct {
	db *sql.DB
}

func NewPostgresReader(db *sql.DB) *PostgresReader {
	return &PostgresReader{db: db}
}

var _ ports.DonationSource = (*PostgresReader)(nil)

func (r *PostgresReader) FindDonation(ctx context.Context, org id.OrgID, donationID id.DonationID) (*models.Donation, error) {
	const query = `
		SELECT id, org_id, donor_id, volume_ml, collected_at
		FROM donations
		WHERE org_id = $1 AND id = $2`
	var (
		donation models.Donation
		rowID    string
		donorID  string
		orgID    string
	)
	err := r.db.QueryRowContext(ctx, query, string(org), donationID.String()).
		Scan(&rowID, &orgID, &donorID, &donation.VolumeML, &donation.CollectedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("donation %s: %w", donationID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("find donation: %w", err)
	}
	if donation.ID, err = id.ParseDonationID(rowID); err != nil {
		return nil, fmt.Errorf("scan donation id: %w", err)
	}
	if donation.DonorID, err = id.ParseDonorID(donorID); err != nil {
		return nil, fmt.Errorf("scan donor id: %w", err)
	}
	donation.OrgID = id.OrgID(orgID)
	donation.CollectedAt = donation.CollectedAt.UTC()
	return &donation, nil
}
