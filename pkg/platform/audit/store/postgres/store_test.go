package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audit "bloodbank/pkg/platform/audit"
	txcontext "bloodbank/pkg/platform/tx"
)

func TestAppendWritesHistoryAndOutboxInCallerTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := New(db)
	event := audit.TransitionEvent{
		ID:         uuid.New(),
		OrgID:      "org-1",
		TargetKind: "component",
		TargetID:   uuid.NewString(),
		From:       "ready_to_use",
		To:         "reserved",
		Action:     audit.ActionComponentReserved,
		Actor:      "tech-1",
		Timestamp:  time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC),
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO transition_events").
		WithArgs(event.ID, "org-1", "component", event.TargetID, "ready_to_use", "reserved",
			"component_reserved", "tech-1", "", "", event.Timestamp).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO outbox").
		WithArgs(sqlmock.AnyArg(), "component", event.TargetID, "component_reserved", sqlmock.AnyArg(), event.Timestamp).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	sqlTx, err := db.Begin()
	require.NoError(t, err)
	ctx := txcontext.WithTx(context.Background(), sqlTx)
	require.NoError(t, store.Append(ctx, event))
	require.NoError(t, sqlTx.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListByTarget(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := New(db)
	eventID := uuid.New()
	at := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{
		"id", "org_id", "target_kind", "target_id", "from_state", "to_state",
		"action", "actor", "reason", "request_id", "occurred_at",
	}).AddRow(eventID.String(), "org-1", "unit", "u-1", "lab", "quarantine", "serology_recorded", "tech-1", "reactive", "req-1", at)

	mock.ExpectQuery("SELECT (.+) FROM transition_events").
		WithArgs("org-1", "unit", "u-1").
		WillReturnRows(rows)

	events, err := store.ListByTarget(context.Background(), "org-1", "unit", "u-1")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, eventID, events[0].ID)
	assert.Equal(t, "quarantine", events[0].To)
	assert.Equal(t, audit.ActionSerologyRecorded, events[0].Action)
	assert.Equal(t, "reactive", events[0].Reason)
	require.NoError(t, mock.ExpectationsWereMet())
}
