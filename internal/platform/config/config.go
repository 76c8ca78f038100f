// Package config reads service configuration from the environment. A .env
// file in the working directory is loaded first when present; variables
// already set in the environment win.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	devSigningKey = "dev-secret-key-change-in-production"
)

type Config struct {
	Environment string
	LogLevel    string
	Server      Server
	Database    Database
	Redis       Redis
	Kafka       Kafka
	Lifecycle   Lifecycle
	RateLimit   RateLimit
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	JWTSigningKey   string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Database selects the Postgres store. An empty URL selects the in-memory store.
type Database struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Redis backs the label sequencer. An empty URL falls back to the store's sequencer.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka receives relayed transition events and carries DonationCompleted
// hand-offs from intake. No brokers disables both.
type Kafka struct {
	Brokers          []string
	TransitionsTopic string
	DonationsTopic   string
	ConsumerGroup    string
	ConsumerBackoff  time.Duration
	RelayInterval    time.Duration
	RelayBatchSize   int
}

type Lifecycle struct {
	AllocationRetryBudget  int
	TxTimeout              time.Duration
	ExpirySweepSchedule    string
	ExpirySweepConcurrency int
}

// RateLimit caps authenticated requests per org. Zero disables the limiter.
type RateLimit struct {
	RequestsPerWindow int
	Window            time.Duration
}

// Load reads an optional .env file, then the environment.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	var p parser
	cfg := Config{
		Environment: p.str("ENVIRONMENT", EnvDevelopment),
		LogLevel:    p.str("LOG_LEVEL", "info"),
		Server: Server{
			Addr:            p.str("BLOODBANK_ADDR", ":8080"),
			JWTSigningKey:   p.str("JWT_SIGNING_KEY", devSigningKey),
			ReadTimeout:     p.duration("HTTP_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    p.duration("HTTP_WRITE_TIMEOUT", 15*time.Second),
			ShutdownTimeout: p.duration("HTTP_SHUTDOWN_TIMEOUT", 20*time.Second),
		},
		Database: Database{
			URL:             p.str("DATABASE_URL", ""),
			MaxOpenConns:    p.integer("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    p.integer("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: p.duration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: Redis{
			URL:          p.str("REDIS_URL", ""),
			PoolSize:     p.integer("REDIS_POOL_SIZE", 10),
			MinIdleConns: p.integer("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  p.duration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  p.duration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: p.duration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: Kafka{
			Brokers:          p.list("KAFKA_BROKERS"),
			TransitionsTopic: p.str("KAFKA_TRANSITIONS_TOPIC", "bloodbank.transitions"),
			DonationsTopic:   p.str("KAFKA_DONATIONS_TOPIC", "bloodbank.donations.completed"),
			ConsumerGroup:    p.str("KAFKA_CONSUMER_GROUP", "bloodbank-lifecycle"),
			ConsumerBackoff:  p.duration("KAFKA_CONSUMER_BACKOFF", time.Second),
			RelayInterval:    p.duration("OUTBOX_RELAY_INTERVAL", time.Second),
			RelayBatchSize:   p.integer("OUTBOX_RELAY_BATCH_SIZE", 100),
		},
		Lifecycle: Lifecycle{
			AllocationRetryBudget:  p.integer("ALLOCATION_RETRY_BUDGET", 5),
			TxTimeout:              p.duration("TX_TIMEOUT", 5*time.Second),
			ExpirySweepSchedule:    p.str("EXPIRY_SWEEP_SCHEDULE", "@every 15m"),
			ExpirySweepConcurrency: p.integer("EXPIRY_SWEEP_CONCURRENCY", 4),
		},
		RateLimit: RateLimit{
			RequestsPerWindow: p.integer("RATE_LIMIT_REQUESTS", 600),
			Window:            p.duration("RATE_LIMIT_WINDOW", time.Minute),
		},
	}
	if err := errors.Join(p.errs...); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.Environment != EnvDevelopment && c.Environment != EnvProduction {
		errs = append(errs, fmt.Errorf("ENVIRONMENT must be %q or %q, got %q", EnvDevelopment, EnvProduction, c.Environment))
	}
	if c.IsProduction() && c.Server.JWTSigningKey == devSigningKey {
		errs = append(errs, errors.New("JWT_SIGNING_KEY must be set in production"))
	}
	if c.Lifecycle.AllocationRetryBudget < 1 {
		errs = append(errs, errors.New("ALLOCATION_RETRY_BUDGET must be at least 1"))
	}
	if c.Lifecycle.ExpirySweepConcurrency < 1 {
		errs = append(errs, errors.New("EXPIRY_SWEEP_CONCURRENCY must be at least 1"))
	}
	if c.Lifecycle.TxTimeout <= 0 {
		errs = append(errs, errors.New("TX_TIMEOUT must be positive"))
	}
	if c.RateLimit.RequestsPerWindow < 0 {
		errs = append(errs, errors.New("RATE_LIMIT_REQUESTS must not be negative"))
	}
	if c.RateLimit.RequestsPerWindow > 0 && c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_WINDOW must be positive"))
	}
	return errors.Join(errs...)
}

func (c Config) IsProduction() bool { return c.Environment == EnvProduction }

// parser collects every malformed variable instead of stopping at the first.
type parser struct {
	errs []error
}

func (p *parser) str(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func (p *parser) integer(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid integer %q", key, raw))
		return def
	}
	return v
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Errorf("%s: invalid duration %q", key, raw))
		return def
	}
	return v
}

func (p *parser) list(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
