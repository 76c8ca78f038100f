package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"golang.org/x/sync/errgroup"

	"bloodbank/internal/lifecycle/adapters/intake"
	lifecyclemetrics "bloodbank/internal/lifecycle/metrics"
	"bloodbank/internal/platform/config"
	"bloodbank/internal/platform/httpserver"
	"bloodbank/internal/platform/kafka"
	"bloodbank/internal/platform/logger"
	"bloodbank/internal/platform/scheduler"
	"bloodbank/pkg/platform/audit/worker"
	"bloodbank/pkg/requestcontext"
)

// main wires dependencies and keeps the process lifecycle small. Business
// logic lives in the internal service packages.
func main() {
	if err := run(); err != nil {
		slog.Error("bloodbank stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.Environment, cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	inf, err := buildInfra(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer inf.Close()

	reg := newRegistry()
	svc, err := buildServices(cfg, inf, lifecyclemetrics.NewWithRegisterer(reg), log)
	if err != nil {
		return err
	}

	srv := httpserver.New(cfg.Server, newRouter(cfg, svc.Services, newLimiter(cfg.RateLimit, inf, log), reg, inf.Health, log))

	sched := scheduler.New(log)
	err = sched.Add("expiry_sweep", cfg.Lifecycle.ExpirySweepSchedule, func(ctx context.Context) error {
		res, err := svc.Sweeper.Sweep(requestcontext.WithTime(ctx, time.Now().UTC()))
		if err != nil {
			return err
		}
		log.InfoContext(ctx, "expiry sweep finished",
			"orgs", res.Orgs,
			"expired", res.Expired,
			"skipped", res.Skipped,
		)
		return nil
	})
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting bloodbank", "addr", cfg.Server.Addr, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})
	g.Go(func() error { return sched.Run(gctx) })

	if len(cfg.Kafka.Brokers) > 0 {
		if err := startKafka(gctx, g, cfg.Kafka, inf, svc, log); err != nil {
			return err
		}
	}

	err = g.Wait()
	log.Info("bloodbank stopped")
	return err
}

// startKafka runs the intake consumer and, in postgres mode, the outbox
// relay. Both stop when ctx is cancelled.
func startKafka(ctx context.Context, g *errgroup.Group, cfg config.Kafka, inf *infra, svc *services, log *slog.Logger) error {
	consumerClient, err := kafka.NewConsumerClient(cfg.Brokers, cfg.ConsumerGroup, cfg.DonationsTopic)
	if err != nil {
		return err
	}
	handoff := intake.NewHandoff(svc.registry, inf.directory, log)
	consumer, err := kafka.NewConsumer(consumerClient, func(ctx context.Context, rec *kgo.Record) error {
		return handoff.Handle(ctx, rec.Value)
	}, log, kafka.WithSkip(intake.Permanent), kafka.WithBackoff(cfg.ConsumerBackoff))
	if err != nil {
		consumerClient.Close()
		return err
	}
	g.Go(func() error {
		defer consumerClient.Close()
		return consumer.Run(ctx)
	})

	if inf.outbox == nil {
		log.Warn("outbox relay disabled: transition events are only relayed from the postgres store")
		return nil
	}
	producerClient, err := kafka.NewClient(cfg.Brokers)
	if err != nil {
		return err
	}
	if err := kafka.EnsureTopic(ctx, producerClient, cfg.TransitionsTopic, 6, 1); err != nil {
		producerClient.Close()
		return err
	}
	producer, err := kafka.NewProducer(producerClient, cfg.TransitionsTopic)
	if err != nil {
		producerClient.Close()
		return err
	}
	relay, err := worker.NewRelay(inf.outbox, producer,
		worker.WithLogger(log),
		worker.WithInterval(cfg.RelayInterval),
		worker.WithBatchSize(cfg.RelayBatchSize),
	)
	if err != nil {
		producerClient.Close()
		return err
	}
	g.Go(func() error {
		defer producerClient.Close()
		if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	return nil
}
