package shared

import (
	"context"

	"github.com/google/uuid"

	"bloodbank/internal/lifecycle/models"
	"bloodbank/internal/lifecycle/ports"
	"bloodbank/pkg/platform/audit"
	"bloodbank/pkg/requestcontext"
)

// Record kinds journaled alongside units and components.
const (
	KindQuarantine = "quarantine"
	KindRequest    = "request"
	KindIssuance   = "issuance"
	KindReturn     = "return"
	KindDiscard    = "discard"
	KindQC         = "qc_validation"
)

// Journal collects the transition events of one unit of work. Events go to
// the transaction's event log immediately; logging and metrics happen only
// once the caller reports a successful commit.
type Journal struct {
	base   *Base
	events []audit.TransitionEvent
}

func (b *Base) Journal() *Journal {
	return &Journal{base: b}
}

// Move records a unit or component state change.
func (j *Journal) Move(ctx context.Context, repos ports.Repositories, target models.Target, from, to models.UnitState, action audit.Action, reason string) error {
	return j.Record(ctx, repos, string(target.Kind), target.ID.String(), string(from), string(to), action, reason)
}

// Record appends an event for any tracked record. from == to marks a
// record-only action.
func (j *Journal) Record(ctx context.Context, repos ports.Repositories, kind, targetID, from, to string, action audit.Action, reason string) error {
	e := audit.TransitionEvent{
		ID:         uuid.New(),
		TargetKind: kind,
		TargetID:   targetID,
		From:       from,
		To:         to,
		Action:     action,
		Actor:      requestcontext.ActorID(ctx),
		Reason:     reason,
		RequestID:  requestcontext.RequestID(ctx),
		Timestamp:  requestcontext.Now(ctx),
	}
	if err := repos.Events.Append(ctx, e); err != nil {
		return err
	}
	j.events = append(j.events, e)
	return nil
}

// Committed emits audit log lines and transition metrics.
func (j *Journal) Committed(ctx context.Context) {
	for _, e := range j.events {
		j.base.logAudit(ctx, string(e.Action),
			"target_kind", e.TargetKind,
			"target_id", e.TargetID,
			"from", e.From,
			"to", e.To,
			"actor", string(e.Actor),
			"reason", e.Reason,
		)
		if j.base.Metrics != nil && e.IsStateChange() &&
			(e.TargetKind == string(models.TargetUnit) || e.TargetKind == string(models.TargetComponent)) {
			j.base.Metrics.ObserveTransition(e.TargetKind, e.From, e.To)
		}
	}
}

// Events returns the recorded events.
func (j *Journal) Events() []audit.TransitionEvent { return j.events }

func (b *Base) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	if org := requestcontext.OrgID(ctx); !org.IsZero() {
		attributes = append(attributes, "org_id", string(org))
	}
	args := append(attributes, "event", event, "log_type", "audit")
	if b.Logger != nil {
		b.Logger.InfoContext(ctx, event, args...)
	}
}
