package intake_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bloodbank/internal/lifecycle/adapters/intake"
	"bloodbank/internal/lifecycle/lifecycletest"
	"bloodbank/internal/lifecycle/models"
	"bloodbank/internal/lifecycle/service/registry"
	"bloodbank/internal/lifecycle/store/memory"
	dErrors "bloodbank/pkg/domain-errors"
)

// recordingRegistrar keeps every unit the registry accepted.
type recordingRegistrar struct {
	inner *registry.Service
	units []*models.BloodUnit
}

func (r *recordingRegistrar) RegisterUnit(ctx context.Context, req registry.RegisterRequest) (*models.BloodUnit, error) {
	unit, err := r.inner.RegisterUnit(ctx, req)
	if err == nil {
		r.units = append(r.units, unit)
	}
	return unit, err
}

func newHandoff(t *testing.T) (*intake.Handoff, *recordingRegistrar) {
	t.Helper()
	env := lifecycletest.NewEnv(t)
	dir := intake.NewDirectory()
	reg, err := registry.New(env.Store, dir, memory.NewSequencer())
	require.NoError(t, err)
	rec := &recordingRegistrar{inner: reg}
	return intake.NewHandoff(rec, dir, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))), rec
}

func message(t *testing.T, mutate func(*intake.DonationCompleted)) []byte {
	t.Helper()
	msg := intake.DonationCompleted{
		OrgID:         string(lifecycletest.Org),
		DonationID:    uuid.NewString(),
		DonorID:       uuid.NewString(),
		DeclaredGroup: "A+",
		VolumeML:      450,
		CollectedAt:   time.Date(2026, 1, 1, 7, 30, 0, 0, time.UTC),
	}
	if mutate != nil {
		mutate(&msg)
	}
	body, err := json.Marshal(msg)
	require.NoError(t, err)
	return body
}

func TestHandoffRegistersUnitOnce(t *testing.T) {
	h, rec := newHandoff(t)
	payload := message(t, nil)

	require.NoError(t, h.Handle(context.Background(), payload))
	require.NoError(t, h.Handle(context.Background(), payload), "redelivery is acknowledged")
	require.Len(t, rec.units, 1)
	unit := rec.units[0]
	assert.Equal(t, models.StateCollected, unit.State)
	assert.Equal(t, models.GroupAPos, unit.DeclaredGroup)
	assert.Equal(t, 450, unit.VolumeML)
}

func TestHandoffRejectsMalformedMessages(t *testing.T) {
	h, rec := newHandoff(t)

	cases := map[string][]byte{
		"not json":      []byte("{"),
		"missing org":   message(t, func(m *intake.DonationCompleted) { m.OrgID = "" }),
		"bad group":     message(t, func(m *intake.DonationCompleted) { m.DeclaredGroup = "C+" }),
		"zero volume":   message(t, func(m *intake.DonationCompleted) { m.VolumeML = 0 }),
		"no collection": message(t, func(m *intake.DonationCompleted) { m.CollectedAt = time.Time{} }),
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			err := h.Handle(context.Background(), payload)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidArgument), "got %v", err)
			assert.True(t, intake.Permanent(err))
		})
	}
	assert.Empty(t, rec.units)
}

func TestHandoffScopesUnitToMessageOrg(t *testing.T) {
	h, rec := newHandoff(t)
	require.NoError(t, h.Handle(context.Background(), message(t, func(m *intake.DonationCompleted) {
		m.OrgID = "org-other"
	})))
	require.Len(t, rec.units, 1)
	assert.Equal(t, "org-other", rec.units[0].OrgID.String())
}

type failingRegistrar struct {
	err   error
	calls int
}

func (f *failingRegistrar) RegisterUnit(context.Context, registry.RegisterRequest) (*models.BloodUnit, error) {
	f.calls++
	return nil, f.err
}

func TestHandoffSurfacesTransientFailures(t *testing.T) {
	reg := &failingRegistrar{err: dErrors.New(dErrors.CodeInternal, "store unavailable")}
	h := intake.NewHandoff(reg, nil, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

	err := h.Handle(context.Background(), message(t, nil))
	require.Error(t, err)
	assert.Equal(t, 1, reg.calls)
	assert.False(t, intake.Permanent(err), "a store outage must be redelivered")

	reg.err = dErrors.New(dErrors.CodeNotFound, "donation not found")
	assert.True(t, intake.Permanent(h.Handle(context.Background(), message(t, nil))))
}
