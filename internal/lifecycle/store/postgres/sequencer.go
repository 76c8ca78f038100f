package postgres

import (
	"context"
	"database/sql"

	id "bloodbank/pkg/domain"
)

// Sequencer issues label sequence numbers from the sequences table. It runs
// outside any caller transaction, so a rolled-back registration leaves a gap.
type Sequencer struct {
	db *sql.DB
}

func NewSequencer(db *sql.DB) *Sequencer {
	return &Sequencer{db: db}
}

func (s *Sequencer) Next(ctx context.Context, org id.OrgID, scope string) (int64, error) {
	var next int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO sequences (org_id, scope, value)
		VALUES ($1, $2, 1)
		ON CONFLICT (org_id, scope) DO UPDATE SET value = sequences.value + 1
		RETURNING value
	`, string(org), scope).Scan(&next)
	if err != nil {
		return 0, classify(err, "next sequence value")
	}
	return next, nil
}
