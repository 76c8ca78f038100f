package memory

import (
	"context"
	"fmt"
	"slices"

	"bloodbank/internal/lifecycle/models"
	"bloodbank/internal/lifecycle/ports"
	id "bloodbank/pkg/domain"
	"bloodbank/pkg/platform/audit"
	"bloodbank/pkg/platform/sentinel"
)

// visible hides rows owned by another org behind ErrNotFound.
func visible[V any](t *tx, row *V, ok bool, org func(*V) id.OrgID, what string, key fmt.Stringer) (*V, error) {
	if !ok || org(row) != t.org {
		return nil, fmt.Errorf("%s %s: %w", what, key, sentinel.ErrNotFound)
	}
	return row, nil
}

type unitRepo struct{ t *tx }

func (r *unitRepo) Create(_ context.Context, u *models.BloodUnit) error {
	u.OrgID = r.t.org
	return r.t.units.create(u.ID, u)
}

func (r *unitRepo) Get(_ context.Context, unitID id.UnitID) (*models.BloodUnit, error) {
	row, ok := r.t.units.get(unitID)
	return visible(r.t, row, ok, func(u *models.BloodUnit) id.OrgID { return u.OrgID }, "unit", unitID)
}

func (r *unitRepo) Update(ctx context.Context, u *models.BloodUnit) error {
	if _, err := r.Get(ctx, u.ID); err != nil {
		return err
	}
	return r.t.units.update(u.ID, u)
}

type componentRepo struct{ t *tx }

func (r *componentRepo) Create(_ context.Context, c *models.Component) error {
	c.OrgID = r.t.org
	return r.t.components.create(c.ID, c)
}

func (r *componentRepo) Get(_ context.Context, componentID id.ComponentID) (*models.Component, error) {
	row, ok := r.t.components.get(componentID)
	return visible(r.t, row, ok, func(c *models.Component) id.OrgID { return c.OrgID }, "component", componentID)
}

func (r *componentRepo) Update(ctx context.Context, c *models.Component) error {
	if _, err := r.Get(ctx, c.ID); err != nil {
		return err
	}
	return r.t.components.update(c.ID, c)
}

func (r *componentRepo) List(_ context.Context, f ports.ComponentFilter) ([]*models.Component, error) {
	out := r.t.components.scan(func(c *models.Component) bool {
		switch {
		case c.OrgID != r.t.org:
			return false
		case f.UnitID != nil && c.UnitID != *f.UnitID:
			return false
		case f.State != "" && c.State != f.State:
			return false
		case f.BloodGroup != "" && c.BloodGroup != f.BloodGroup:
			return false
		case f.Type != "" && c.Type != f.Type:
			return false
		case f.ExpiresAfter != nil && !c.ExpiresAt.After(*f.ExpiresAfter):
			return false
		case f.ExpiresBy != nil && c.ExpiresAt.After(*f.ExpiresBy):
			return false
		}
		return true
	})
	slices.SortFunc(out, models.FEFOCompare)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

type labTestRepo struct{ t *tx }

func (r *labTestRepo) Create(_ context.Context, lt *models.LabTest) error {
	lt.OrgID = r.t.org
	return r.t.labTests.create(lt.ID, lt)
}

func (r *labTestRepo) ListByUnit(_ context.Context, unitID id.UnitID) ([]*models.LabTest, error) {
	out := r.t.labTests.scan(func(lt *models.LabTest) bool {
		return lt.OrgID == r.t.org && lt.UnitID == unitID
	})
	slices.SortFunc(out, func(a, b *models.LabTest) int { return a.TestedAt.Compare(b.TestedAt) })
	return out, nil
}

type quarantineRepo struct{ t *tx }

func (r *quarantineRepo) Create(ctx context.Context, q *models.Quarantine) error {
	q.OrgID = r.t.org
	if _, err := r.FindOpen(ctx, q.Target); err == nil {
		return fmt.Errorf("open quarantine for %s: %w", q.Target, sentinel.ErrAlreadyUsed)
	}
	return r.t.quarantines.create(q.ID, q)
}

func (r *quarantineRepo) Get(_ context.Context, quarantineID id.QuarantineID) (*models.Quarantine, error) {
	row, ok := r.t.quarantines.get(quarantineID)
	return visible(r.t, row, ok, func(q *models.Quarantine) id.OrgID { return q.OrgID }, "quarantine", quarantineID)
}

func (r *quarantineRepo) Update(ctx context.Context, q *models.Quarantine) error {
	if _, err := r.Get(ctx, q.ID); err != nil {
		return err
	}
	return r.t.quarantines.update(q.ID, q)
}

func (r *quarantineRepo) FindOpen(_ context.Context, target models.Target) (*models.Quarantine, error) {
	open := r.t.quarantines.scan(func(q *models.Quarantine) bool {
		return q.OrgID == r.t.org && q.Target == target && q.IsOpen()
	})
	if len(open) == 0 {
		return nil, fmt.Errorf("open quarantine for %s: %w", target, sentinel.ErrNotFound)
	}
	return open[0], nil
}

func (r *quarantineRepo) ListOpen(_ context.Context) ([]*models.Quarantine, error) {
	out := r.t.quarantines.scan(func(q *models.Quarantine) bool {
		return q.OrgID == r.t.org && q.IsOpen()
	})
	slices.SortFunc(out, func(a, b *models.Quarantine) int { return a.QuarantinedAt.Compare(b.QuarantinedAt) })
	return out, nil
}

type qcRepo struct{ t *tx }

func (r *qcRepo) Create(_ context.Context, v *models.QCValidation) error {
	v.OrgID = r.t.org
	return r.t.qc.create(v.ID, v)
}

func (r *qcRepo) ListByTarget(_ context.Context, target models.Target) ([]*models.QCValidation, error) {
	out := r.t.qc.scan(func(v *models.QCValidation) bool {
		return v.OrgID == r.t.org && v.Target == target
	})
	slices.SortFunc(out, func(a, b *models.QCValidation) int { return b.ValidatedAt.Compare(a.ValidatedAt) })
	return out, nil
}

type requestRepo struct{ t *tx }

func (r *requestRepo) Create(_ context.Context, req *models.BloodRequest) error {
	req.OrgID = r.t.org
	return r.t.requests.create(req.ID, req)
}

func (r *requestRepo) Get(_ context.Context, requestID id.BloodRequestID) (*models.BloodRequest, error) {
	row, ok := r.t.requests.get(requestID)
	return visible(r.t, row, ok, func(b *models.BloodRequest) id.OrgID { return b.OrgID }, "request", requestID)
}

func (r *requestRepo) Update(ctx context.Context, req *models.BloodRequest) error {
	if _, err := r.Get(ctx, req.ID); err != nil {
		return err
	}
	return r.t.requests.update(req.ID, req)
}

type issuanceRepo struct{ t *tx }

func (r *issuanceRepo) Create(_ context.Context, i *models.Issuance) error {
	i.OrgID = r.t.org
	return r.t.issuances.create(i.ID, i)
}

func (r *issuanceRepo) Get(_ context.Context, issuanceID id.IssuanceID) (*models.Issuance, error) {
	row, ok := r.t.issuances.get(issuanceID)
	return visible(r.t, row, ok, func(i *models.Issuance) id.OrgID { return i.OrgID }, "issuance", issuanceID)
}

func (r *issuanceRepo) Update(ctx context.Context, i *models.Issuance) error {
	if _, err := r.Get(ctx, i.ID); err != nil {
		return err
	}
	return r.t.issuances.update(i.ID, i)
}

type returnRepo struct{ t *tx }

func (r *returnRepo) Create(_ context.Context, ret *models.Return) error {
	ret.OrgID = r.t.org
	return r.t.returns.create(ret.ID, ret)
}

func (r *returnRepo) Get(_ context.Context, returnID id.ReturnID) (*models.Return, error) {
	row, ok := r.t.returns.get(returnID)
	return visible(r.t, row, ok, func(x *models.Return) id.OrgID { return x.OrgID }, "return", returnID)
}

func (r *returnRepo) Update(ctx context.Context, ret *models.Return) error {
	if _, err := r.Get(ctx, ret.ID); err != nil {
		return err
	}
	return r.t.returns.update(ret.ID, ret)
}

type discardRepo struct{ t *tx }

func (r *discardRepo) Create(_ context.Context, d *models.Discard) error {
	d.OrgID = r.t.org
	return r.t.discards.create(d.ID, d)
}

func (r *discardRepo) Get(_ context.Context, discardID id.DiscardID) (*models.Discard, error) {
	row, ok := r.t.discards.get(discardID)
	return visible(r.t, row, ok, func(d *models.Discard) id.OrgID { return d.OrgID }, "discard", discardID)
}

func (r *discardRepo) Update(ctx context.Context, d *models.Discard) error {
	if _, err := r.Get(ctx, d.ID); err != nil {
		return err
	}
	return r.t.discards.update(d.ID, d)
}

// eventLog buffers events until commit.
type eventLog struct {
	tx    *tx
	store audit.Store
}

func (l *eventLog) Append(_ context.Context, e audit.TransitionEvent) error {
	e.OrgID = l.tx.org
	l.tx.events = append(l.tx.events, e)
	return nil
}

func (l *eventLog) ListByTarget(ctx context.Context, target models.Target) ([]audit.TransitionEvent, error) {
	committed, err := l.store.ListByTarget(ctx, l.tx.org, string(target.Kind), target.ID.String())
	if err != nil {
		return nil, err
	}
	for _, e := range l.tx.events {
		if e.TargetKind == string(target.Kind) && e.TargetID == target.ID.String() {
			committed = append(committed, e)
		}
	}
	return committed, nil
}
