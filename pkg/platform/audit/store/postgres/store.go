package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	id "bloodbank/pkg/domain"
	audit "bloodbank/pkg/platform/audit"
	txcontext "bloodbank/pkg/platform/tx"

	"github.com/google/uuid"
)

// Store implements audit.Store using the transactional outbox pattern.
// Each event is written to transition_events for querying and to the outbox
// for publishing to Kafka, both through the caller's transaction when present.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// OutboxPayload is the JSON structure published to Kafka.
type OutboxPayload struct {
	ID         string `json:"id"`
	Category   string `json:"category"`
	OrgID      string `json:"org_id"`
	TargetKind string `json:"target_kind"`
	TargetID   string `json:"target_id"`
	From       string `json:"from"`
	To         string `json:"to"`
	Action     string `json:"action"`
	Actor      string `json:"actor"`
	Reason     string `json:"reason,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
	Timestamp  string `json:"timestamp"`
}

// Append writes the event to history and enqueues it on the outbox.
func (s *Store) Append(ctx context.Context, event audit.TransitionEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	exec := txcontext.ExecutorFrom(ctx, s.db)

	_, err := exec.ExecContext(ctx, `
		INSERT INTO transition_events (
			id, org_id, target_kind, target_id, from_state, to_state,
			action, actor, reason, request_id, occurred_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		event.ID,
		string(event.OrgID),
		event.TargetKind,
		event.TargetID,
		event.From,
		event.To,
		string(event.Action),
		string(event.Actor),
		event.Reason,
		event.RequestID,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert transition event: %w", err)
	}

	payload, err := json.Marshal(OutboxPayload{
		ID:         event.ID.String(),
		Category:   string(event.Category()),
		OrgID:      string(event.OrgID),
		TargetKind: event.TargetKind,
		TargetID:   event.TargetID,
		From:       event.From,
		To:         event.To,
		Action:     string(event.Action),
		Actor:      string(event.Actor),
		Reason:     event.Reason,
		RequestID:  event.RequestID,
		Timestamp:  event.Timestamp.Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal outbox payload: %w", err)
	}

	_, err = exec.ExecContext(ctx, `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		uuid.New(),
		event.TargetKind,
		event.TargetID,
		string(event.Action),
		payload,
		event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// ListByTarget returns the history of one target, oldest first.
func (s *Store) ListByTarget(ctx context.Context, org id.OrgID, kind, targetID string) ([]audit.TransitionEvent, error) {
	rows, err := txcontext.ExecutorFrom(ctx, s.db).QueryContext(ctx, `
		SELECT id, org_id, target_kind, target_id, from_state, to_state,
		       action, actor, reason, request_id, occurred_at
		FROM transition_events
		WHERE org_id = $1 AND target_kind = $2 AND target_id = $3
		ORDER BY seq ASC
	`, string(org), kind, targetID)
	if err != nil {
		return nil, fmt.Errorf("query transition events: %w", err)
	}
	defer rows.Close()

	var events []audit.TransitionEvent
	for rows.Next() {
		var (
			event  audit.TransitionEvent
			orgID  string
			action string
			actor  string
		)
		if err := rows.Scan(
			&event.ID,
			&orgID,
			&event.TargetKind,
			&event.TargetID,
			&event.From,
			&event.To,
			&action,
			&actor,
			&event.Reason,
			&event.RequestID,
			&event.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan transition event: %w", err)
		}
		event.OrgID = id.OrgID(orgID)
		event.Action = audit.Action(action)
		event.Actor = id.ActorID(actor)
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transition events: %w", err)
	}
	return events, nil
}
