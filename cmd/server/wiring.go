package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	jwttoken "bloodbank/internal/jwt_token"
	"bloodbank/internal/lifecycle/adapters/intake"
	"bloodbank/internal/lifecycle/handler"
	lifecyclemetrics "bloodbank/internal/lifecycle/metrics"
	"bloodbank/internal/lifecycle/ports"
	"bloodbank/internal/lifecycle/service/allocation"
	"bloodbank/internal/lifecycle/service/disposition"
	"bloodbank/internal/lifecycle/service/expiry"
	"bloodbank/internal/lifecycle/service/inventory"
	"bloodbank/internal/lifecycle/service/qc"
	"bloodbank/internal/lifecycle/service/quarantine"
	"bloodbank/internal/lifecycle/service/registry"
	"bloodbank/internal/lifecycle/service/separation"
	"bloodbank/internal/lifecycle/service/serology"
	"bloodbank/internal/lifecycle/service/shared"
	"bloodbank/internal/lifecycle/store/memory"
	pgstore "bloodbank/internal/lifecycle/store/postgres"
	"bloodbank/internal/lifecycle/store/redisseq"
	"bloodbank/internal/platform/config"
	"bloodbank/internal/platform/metrics"
	"bloodbank/internal/platform/postgres"
	platformredis "bloodbank/internal/platform/redis"
	"bloodbank/internal/ratelimit"
	auditmemory "bloodbank/pkg/platform/audit/store/memory"
	auditpg "bloodbank/pkg/platform/audit/store/postgres"
	"bloodbank/pkg/platform/httputil"
	authmw "bloodbank/pkg/platform/middleware/auth"
	"bloodbank/pkg/platform/middleware/request"
	"bloodbank/pkg/platform/middleware/requesttime"
)

const (
	tokenIssuer   = "bloodbank"
	tokenAudience = "bloodbank-api"
)

// infra holds the storage backends selected by configuration.
type infra struct {
	db        *sql.DB
	redis     *platformredis.Client
	store     ports.Store
	donations ports.DonationSource
	sequencer ports.Sequencer
	// directory is set in memory mode, where intake hand-offs are the only
	// source of donations.
	directory *intake.Directory
	// outbox is set in postgres mode and feeds the Kafka relay.
	outbox *auditpg.Store
}

// buildInfra opens Postgres when DATABASE_URL is set and falls back to the
// in-memory store otherwise. Redis, when configured, takes over label
// sequencing.
func buildInfra(ctx context.Context, cfg config.Config, log *slog.Logger) (*infra, error) {
	inf := &infra{}
	if cfg.Database.URL == "" {
		log.Warn("DATABASE_URL not set; using the in-memory store")
		inf.directory = intake.NewDirectory()
		inf.donations = inf.directory
		inf.sequencer = memory.NewSequencer()
		inf.store = memory.New(
			memory.WithEventStore(auditmemory.NewInMemoryStore()),
			memory.WithTxTimeout(cfg.Lifecycle.TxTimeout),
		)
	} else {
		db, err := postgres.Open(ctx, cfg.Database.URL, postgres.PoolConfig{
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			return nil, err
		}
		inf.db = db
		if err := postgres.Migrate(ctx, db); err != nil {
			inf.Close()
			return nil, err
		}
		inf.outbox = auditpg.New(db)
		inf.store = pgstore.New(db,
			pgstore.WithTxTimeout(cfg.Lifecycle.TxTimeout),
			pgstore.WithEventStore(inf.outbox),
		)
		inf.donations = intake.NewPostgresReader(db)
		inf.sequencer = pgstore.NewSequencer(db)
	}

	rc, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		inf.Close()
		return nil, err
	}
	if rc != nil {
		inf.redis = rc
		inf.sequencer = redisseq.New(rc.Client)
	}
	return inf, nil
}

// Health pings whichever backends are open.
func (i *infra) Health(ctx context.Context) error {
	var errs []error
	if i.db != nil {
		if err := i.db.PingContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("postgres: %w", err))
		}
	}
	if i.redis != nil {
		if err := i.redis.Health(ctx); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (i *infra) Close() {
	if i.redis != nil {
		_ = i.redis.Close()
	}
	if i.db != nil {
		_ = i.db.Close()
	}
}

// services is every lifecycle service the process runs.
type services struct {
	handler.Services
	Sweeper  *expiry.Service
	registry *registry.Service
}

func buildServices(cfg config.Config, inf *infra, m *lifecyclemetrics.Metrics, log *slog.Logger) (*services, error) {
	opts := []shared.Option{shared.WithLogger(log), shared.WithMetrics(m)}
	var (
		svc services
		err error
	)
	if svc.registry, err = registry.New(inf.store, inf.donations, inf.sequencer, opts...); err != nil {
		return nil, err
	}
	svc.Registry = svc.registry
	if svc.Serology, err = serology.New(inf.store, opts...); err != nil {
		return nil, err
	}
	if svc.Separation, err = separation.New(inf.store, opts...); err != nil {
		return nil, err
	}
	if svc.QC, err = qc.New(inf.store, opts...); err != nil {
		return nil, err
	}
	if svc.Quarantine, err = quarantine.New(inf.store, opts...); err != nil {
		return nil, err
	}
	if svc.Allocation, err = allocation.New(inf.store, cfg.Lifecycle.AllocationRetryBudget, opts...); err != nil {
		return nil, err
	}
	if svc.Disposition, err = disposition.New(inf.store, opts...); err != nil {
		return nil, err
	}
	if svc.Inventory, err = inventory.New(inf.store, opts...); err != nil {
		return nil, err
	}
	if svc.Sweeper, err = expiry.New(inf.store, cfg.Lifecycle.ExpirySweepConcurrency, opts...); err != nil {
		return nil, err
	}
	return &svc, nil
}

// newLimiter shares counters through Redis when it is configured.
func newLimiter(cfg config.RateLimit, inf *infra, log *slog.Logger) *ratelimit.Limiter {
	var store ratelimit.Store = ratelimit.NewMemoryStore()
	if inf.redis != nil {
		store = ratelimit.NewRedisStore(inf.redis.Client)
	}
	return ratelimit.New(store, cfg.RequestsPerWindow, cfg.Window, log)
}

// newRegistry builds the process registry with runtime collectors.
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// newRouter mounts health and metrics unauthenticated and the lifecycle API
// behind bearer authentication.
func newRouter(cfg config.Config, svc handler.Services, limiter *ratelimit.Limiter, reg *prometheus.Registry, health func(context.Context) error, log *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	r.Use(request.AccessLog(log, metrics.NewHTTP(reg)))
	r.Use(request.Recovery(log))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := health(r.Context()); err != nil {
			log.WarnContext(r.Context(), "health check failed", "error", err)
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler(reg))

	tokens := jwttoken.NewJWTServiceAdapter(
		jwttoken.NewJWTService(cfg.Server.JWTSigningKey, tokenIssuer, tokenAudience),
	)
	r.Group(func(r chi.Router) {
		r.Use(authmw.RequireAuth(tokens, log))
		r.Use(limiter.Middleware)
		handler.New(svc, log).Register(r)
	})
	return r
}
