// Package shared holds the plumbing every lifecycle service uses: options,
// org resolution, store error translation and the transition journal.
package shared

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"bloodbank/internal/lifecycle/metrics"
	"bloodbank/internal/lifecycle/ports"
	id "bloodbank/pkg/domain"
	dErrors "bloodbank/pkg/domain-errors"
	"bloodbank/pkg/platform/sentinel"
	"bloodbank/pkg/requestcontext"
)

const tracerName = "bloodbank/lifecycle"

// Base carries the collaborators common to all services.
type Base struct {
	Store   ports.Store
	Logger  *slog.Logger
	Metrics *metrics.Metrics
	Tracer  trace.Tracer
}

type Option func(*Base)

func WithLogger(logger *slog.Logger) Option {
	return func(b *Base) {
		b.Logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Base) {
		b.Metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(b *Base) {
		b.Tracer = t
	}
}

// NewBase validates required collaborators and applies options.
func NewBase(store ports.Store, opts ...Option) (Base, error) {
	if store == nil {
		return Base{}, errors.New("lifecycle store is required")
	}
	b := Base{
		Store:  store,
		Logger: slog.Default(),
		Tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b, nil
}

// Org returns the org the caller is scoped to.
func Org(ctx context.Context) (id.OrgID, error) {
	org := requestcontext.OrgID(ctx)
	if org.IsZero() {
		return "", dErrors.New(dErrors.CodeUnauthorized, "org scope is required")
	}
	return org, nil
}

// Translate maps store sentinels to coded domain errors. Errors that are
// already coded pass through untouched.
func Translate(err error, what string) error {
	if err == nil {
		return nil
	}
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, what+" not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, what+" was modified concurrently; re-fetch and retry")
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.Wrap(err, dErrors.CodeConflict, what+" already exists")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return dErrors.Wrap(err, dErrors.CodeTimeout, "operation timed out")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeInternal, "store unavailable")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to access "+what)
	}
}
