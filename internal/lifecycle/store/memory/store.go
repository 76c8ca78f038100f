// Package memory is the in-process lifecycle store. Transactions stage their
// writes and validate record versions at commit under a single store lock, so
// concurrent units of work behave like optimistic transactions against a
// database: all-or-nothing, with sentinel.ErrConflict for lost races.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"bloodbank/internal/lifecycle/models"
	"bloodbank/internal/lifecycle/ports"
	id "bloodbank/pkg/domain"
	dErrors "bloodbank/pkg/domain-errors"
	"bloodbank/pkg/platform/audit"
	auditmemory "bloodbank/pkg/platform/audit/store/memory"
)

const defaultTxTimeout = 5 * time.Second

// Store implements ports.Store.
type Store struct {
	mu      sync.RWMutex
	timeout time.Duration
	events  audit.Store

	units       *table[id.UnitID, models.BloodUnit]
	components  *table[id.ComponentID, models.Component]
	labTests    *table[id.LabTestID, models.LabTest]
	quarantines *table[id.QuarantineID, models.Quarantine]
	qc          *table[id.QCValidationID, models.QCValidation]
	requests    *table[id.BloodRequestID, models.BloodRequest]
	issuances   *table[id.IssuanceID, models.Issuance]
	returns     *table[id.ReturnID, models.Return]
	discards    *table[id.DiscardID, models.Discard]
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

// WithEventStore sets where committed transition events are flushed.
func WithEventStore(events audit.Store) Option {
	return func(s *Store) {
		if events != nil {
			s.events = events
		}
	}
}

func New(opts ...Option) *Store {
	s := &Store{
		timeout: defaultTxTimeout,
		events:  auditmemory.NewInMemoryStore(),
		units: newTable[id.UnitID](
			"unit", shallow[models.BloodUnit],
			func(u *models.BloodUnit) *int { return &u.Version },
			func(u *models.BloodUnit) (string, bool) {
				return string(u.OrgID) + "/donation/" + u.DonationID.String(), true
			},
		),
		components: newTable[id.ComponentID](
			"component", shallow[models.Component],
			func(c *models.Component) *int { return &c.Version }, nil,
		),
		labTests: newTable[id.LabTestID](
			"lab test", cloneLabTest, nil, nil,
		),
		quarantines: newTable[id.QuarantineID](
			"quarantine", shallow[models.Quarantine],
			func(q *models.Quarantine) *int { return &q.Version },
			func(q *models.Quarantine) (string, bool) {
				return string(q.OrgID) + "/open/" + q.Target.String(), q.IsOpen()
			},
		),
		qc: newTable[id.QCValidationID](
			"qc validation", shallow[models.QCValidation], nil, nil,
		),
		requests: newTable[id.BloodRequestID](
			"request", shallow[models.BloodRequest],
			func(r *models.BloodRequest) *int { return &r.Version }, nil,
		),
		issuances: newTable[id.IssuanceID](
			"issuance", cloneIssuance,
			func(i *models.Issuance) *int { return &i.Version }, nil,
		),
		returns: newTable[id.ReturnID](
			"return", shallow[models.Return],
			func(r *models.Return) *int { return &r.Version }, nil,
		),
		discards: newTable[id.DiscardID](
			"discard", shallow[models.Discard],
			func(d *models.Discard) *int { return &d.Version }, nil,
		),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func cloneLabTest(t *models.LabTest) *models.LabTest {
	c := *t
	c.Results = maps.Clone(t.Results)
	return &c
}

func cloneIssuance(i *models.Issuance) *models.Issuance {
	c := *i
	c.ComponentIDs = slices.Clone(i.ComponentIDs)
	return &c
}

// tx is one unit of work bound to an org.
type tx struct {
	org         id.OrgID
	units       *txTable[id.UnitID, models.BloodUnit]
	components  *txTable[id.ComponentID, models.Component]
	labTests    *txTable[id.LabTestID, models.LabTest]
	quarantines *txTable[id.QuarantineID, models.Quarantine]
	qc          *txTable[id.QCValidationID, models.QCValidation]
	requests    *txTable[id.BloodRequestID, models.BloodRequest]
	issuances   *txTable[id.IssuanceID, models.Issuance]
	returns     *txTable[id.ReturnID, models.Return]
	discards    *txTable[id.DiscardID, models.Discard]
	events      []audit.TransitionEvent
}

func (s *Store) begin(org id.OrgID) *tx {
	return &tx{
		org:         org,
		units:       newTxTable(s.units, &s.mu),
		components:  newTxTable(s.components, &s.mu),
		labTests:    newTxTable(s.labTests, &s.mu),
		quarantines: newTxTable(s.quarantines, &s.mu),
		qc:          newTxTable(s.qc, &s.mu),
		requests:    newTxTable(s.requests, &s.mu),
		issuances:   newTxTable(s.issuances, &s.mu),
		returns:     newTxTable(s.returns, &s.mu),
		discards:    newTxTable(s.discards, &s.mu),
	}
}

func (t *tx) stagers() []stager {
	return []stager{t.units, t.components, t.labTests, t.quarantines, t.qc, t.requests, t.issuances, t.returns, t.discards}
}

func (s *Store) repositories(t *tx) ports.Repositories {
	return ports.Repositories{
		Units:       &unitRepo{t},
		Components:  &componentRepo{t},
		LabTests:    &labTestRepo{t},
		Quarantines: &quarantineRepo{t},
		QC:          &qcRepo{t},
		Requests:    &requestRepo{t},
		Issuances:   &issuanceRepo{t},
		Returns:     &returnRepo{t},
		Discards:    &discardRepo{t},
		Events:      &eventLog{tx: t, store: s.events},
	}
}

// RunInTx runs fn against org-scoped repositories and commits its writes
// atomically. Nothing is committed when fn returns an error.
func (s *Store) RunInTx(ctx context.Context, org id.OrgID, fn func(ctx context.Context, repos ports.Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	t := s.begin(org)
	if err := fn(ctx, s.repositories(t)); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	if err := s.commit(t); err != nil {
		return err
	}
	for _, e := range t.events {
		if err := s.events.Append(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) commit(t *tx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stagers := t.stagers()
	for _, st := range stagers {
		if err := st.validate(); err != nil {
			return err
		}
	}
	for _, st := range stagers {
		st.apply()
	}
	return nil
}

// OrgsWithExpiredStock scans committed components for expired ready stock.
func (s *Store) OrgsWithExpiredStock(_ context.Context, asOf time.Time) ([]id.OrgID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[id.OrgID]struct{})
	for _, c := range s.components.rows {
		if c.State == models.StateReadyToUse && c.IsExpiredAt(asOf) {
			seen[c.OrgID] = struct{}{}
		}
	}
	orgs := slices.Collect(maps.Keys(seen))
	slices.Sort(orgs)
	return orgs, nil
}
