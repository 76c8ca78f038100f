// Package requestcontext provides HTTP-independent accessors for request-scoped values.
//
// Middleware sets the values; services read them. Keeping this package free of
// net/http lets services and workers depend on it directly.
//
// Usage in services:
//
//	org := requestcontext.OrgID(ctx)
//	actor := requestcontext.ActorID(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in tests and workers:
//
//	ctx = requestcontext.WithOrgID(ctx, "org-1")
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"

	id "bloodbank/pkg/domain"
)

type (
	orgIDKey       struct{}
	actorIDKey     struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for tests that need context.WithValue directly.
var (
	ContextKeyOrgID       = orgIDKey{}
	ContextKeyActorID     = actorIDKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// OrgID retrieves the tenant organization from the context.
// Returns the zero value if not set; services reject a zero org.
func OrgID(ctx context.Context) id.OrgID {
	if org, ok := ctx.Value(ContextKeyOrgID).(id.OrgID); ok {
		return org
	}
	return ""
}

// WithOrgID injects an organization into the context.
func WithOrgID(ctx context.Context, org id.OrgID) context.Context {
	return context.WithValue(ctx, ContextKeyOrgID, org)
}

// ActorID retrieves the acting user from the context, falling back to the
// system actor for background work such as the expiry sweep.
func ActorID(ctx context.Context) id.ActorID {
	if actor, ok := ctx.Value(ContextKeyActorID).(id.ActorID); ok && !actor.IsZero() {
		return actor
	}
	return id.SystemActor
}

// WithActorID injects the acting user into the context.
func WithActorID(ctx context.Context, actor id.ActorID) context.Context {
	return context.WithValue(ctx, ContextKeyActorID, actor)
}

// WithPrincipal injects org and actor together, as the auth middleware does.
func WithPrincipal(ctx context.Context, org id.OrgID, actor id.ActorID) context.Context {
	return WithActorID(WithOrgID(ctx, org), actor)
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() for contexts without one (workers, CLI).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
// Useful for:
//   - Service unit tests that pin the clock
//   - The expiry sweep, which evaluates one batch against a single instant
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
