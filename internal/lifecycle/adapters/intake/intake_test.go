package intake

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloodbank/internal/lifecycle/models"
	id "bloodbank/pkg/domain"
	"bloodbank/pkg/platform/sentinel"
)

func TestDirectory(t *testing.T) {
	dir := NewDirectory()
	donation := models.Donation{
		ID:          id.DonationID(uuid.New()),
		OrgID:       "org-a",
		DonorID:     id.DonorID(uuid.New()),
		VolumeML:    450,
		CollectedAt: time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC),
	}
	dir.Put(donation)

	got, err := dir.FindDonation(context.Background(), "org-a", donation.ID)
	require.NoError(t, err)
	assert.Equal(t, donation, *got)

	_, err = dir.FindDonation(context.Background(), "org-b", donation.ID)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestPostgresReader(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	reader := NewPostgresReader(db)
	donationID := id.DonationID(uuid.New())
	donorID := id.DonorID(uuid.New())
	collected := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)

	t.Run("found", func(t *testing.T) {
		mock.ExpectQuery(`SELECT id, org_id, donor_id, volume_ml, collected_at\s+FROM donations`).
			WithArgs("org-a", donationID.String()).
			WillReturnRows(sqlmock.NewRows([]string{"id", "org_id", "donor_id", "volume_ml", "collected_at"}).
				AddRow(donationID.String(), "org-a", donorID.String(), 450, collected))

		got, err := reader.FindDonation(context.Background(), "org-a", donationID)
		require.NoError(t, err)
		assert.Equal(t, donationID, got.ID)
		assert.Equal(t, donorID, got.DonorID)
		assert.Equal(t, 450, got.VolumeML)
		assert.Equal(t, collected, got.CollectedAt)
	})

	t.Run("missing", func(t *testing.T) {
		mock.ExpectQuery(`FROM donations`).
			WithArgs("org-a", donationID.String()).
			WillReturnRows(sqlmock.NewRows([]string{"id", "org_id", "donor_id", "volume_ml", "collected_at"}))

		_, err := reader.FindDonation(context.Background(), "org-a", donationID)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	require.NoError(t, mock.ExpectationsWereMet())
}
