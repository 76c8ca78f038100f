// Package postgres is the PostgreSQL lifecycle store. Each unit of work runs
// in one database transaction carried through context, so repositories and
// the audit outbox share it. Updates are compare-and-swap on the version
// column; a lost race surfaces as sentinel.ErrConflict.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"bloodbank/internal/lifecycle/models"
	"bloodbank/internal/lifecycle/ports"
	id "bloodbank/pkg/domain"
	dErrors "bloodbank/pkg/domain-errors"
	"bloodbank/pkg/platform/audit"
	auditpg "bloodbank/pkg/platform/audit/store/postgres"
	txcontext "bloodbank/pkg/platform/tx"
)

const defaultTxTimeout = 5 * time.Second

var _ ports.Store = (*Store)(nil)

// Store implements ports.Store on database/sql.
type Store struct {
	db      *sql.DB
	events  audit.Store
	timeout time.Duration
}

type Option func(*Store)

// WithTxTimeout bounds each transaction that arrives without a deadline.
func WithTxTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithEventStore overrides the transactional event store.
func WithEventStore(events audit.Store) Option {
	return func(s *Store) {
		if events != nil {
			s.events = events
		}
	}
}

func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{
		db:      db,
		events:  auditpg.New(db),
		timeout: defaultTxTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunInTx runs fn inside one read-committed transaction. Nothing is committed
// when fn returns an error.
func (s *Store) RunInTx(ctx context.Context, org id.OrgID, fn func(ctx context.Context, repos ports.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return classify(err, "begin transaction")
	}
	txCtx := txcontext.WithTx(ctx, tx)
	if err := fn(txCtx, s.repositories(org)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := ctx.Err(); err != nil {
		_ = tx.Rollback()
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if err := tx.Commit(); err != nil {
		return classify(err, "commit transaction")
	}
	return nil
}

func (s *Store) repositories(org id.OrgID) ports.Repositories {
	base := repo{db: s.db, org: org}
	return ports.Repositories{
		Units:       &unitRepo{base},
		Components:  &componentRepo{base},
		LabTests:    &labTestRepo{base},
		Quarantines: &quarantineRepo{base},
		QC:          &qcRepo{base},
		Requests:    &requestRepo{base},
		Issuances:   &issuanceRepo{base},
		Returns:     &returnRepo{base},
		Discards:    &discardRepo{base},
		Events:      &eventLog{org: org, store: s.events},
	}
}

// OrgsWithExpiredStock lists orgs holding ready_to_use components expired at asOf.
func (s *Store) OrgsWithExpiredStock(ctx context.Context, asOf time.Time) ([]id.OrgID, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT org_id
		FROM components
		WHERE state = $1 AND expires_at <= $2
		ORDER BY org_id
	`, string(models.StateReadyToUse), asOf)
	if err != nil {
		return nil, classify(err, "query orgs with expired stock")
	}
	defer rows.Close()

	var orgs []id.OrgID
	for rows.Next() {
		var org string
		if err := rows.Scan(&org); err != nil {
			return nil, fmt.Errorf("scan org: %w", err)
		}
		orgs = append(orgs, id.OrgID(org))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate orgs: %w", err)
	}
	return orgs, nil
}

// repo carries what every org-bound repository needs.
type repo struct {
	db  *sql.DB
	org id.OrgID
}

func (r repo) exec(ctx context.Context) txcontext.Executor {
	return txcontext.ExecutorFrom(ctx, r.db)
}

// eventLog writes through the audit store so events share the transaction.
type eventLog struct {
	org   id.OrgID
	store audit.Store
}

func (l *eventLog) Append(ctx context.Context, e audit.TransitionEvent) error {
	e.OrgID = l.org
	return l.store.Append(ctx, e)
}

func (l *eventLog) ListByTarget(ctx context.Context, target models.Target) ([]audit.TransitionEvent, error) {
	return l.store.ListByTarget(ctx, l.org, string(target.Kind), target.ID.String())
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
