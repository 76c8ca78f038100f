package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Environment)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Empty(t, cfg.Database.URL)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, "bloodbank.transitions", cfg.Kafka.TransitionsTopic)
	assert.Equal(t, "bloodbank.donations.completed", cfg.Kafka.DonationsTopic)
	assert.Equal(t, "bloodbank-lifecycle", cfg.Kafka.ConsumerGroup)
	assert.Equal(t, 5, cfg.Lifecycle.AllocationRetryBudget)
	assert.Equal(t, 5*time.Second, cfg.Lifecycle.TxTimeout)
	assert.Equal(t, "@every 15m", cfg.Lifecycle.ExpirySweepSchedule)
	assert.Equal(t, 600, cfg.RateLimit.RequestsPerWindow)
	assert.Equal(t, time.Minute, cfg.RateLimit.Window)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("BLOODBANK_ADDR", ":9090")
	t.Setenv("DATABASE_URL", "postgres://bank@localhost/bank")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("ALLOCATION_RETRY_BUDGET", "8")
	t.Setenv("TX_TIMEOUT", "750ms")
	t.Setenv("EXPIRY_SWEEP_SCHEDULE", "0 */5 * * * *")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "postgres://bank@localhost/bank", cfg.Database.URL)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 8, cfg.Lifecycle.AllocationRetryBudget)
	assert.Equal(t, 750*time.Millisecond, cfg.Lifecycle.TxTimeout)
	assert.Equal(t, "0 */5 * * * *", cfg.Lifecycle.ExpirySweepSchedule)
}

func TestFromEnvReportsEveryMalformedValue(t *testing.T) {
	t.Setenv("ALLOCATION_RETRY_BUDGET", "many")
	t.Setenv("TX_TIMEOUT", "soon")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ALLOCATION_RETRY_BUDGET")
	assert.Contains(t, err.Error(), "TX_TIMEOUT")
}

func TestValidateRejectsUnsafeSettings(t *testing.T) {
	t.Run("production needs a signing key", func(t *testing.T) {
		t.Setenv("ENVIRONMENT", EnvProduction)
		_, err := FromEnv()
		require.ErrorContains(t, err, "JWT_SIGNING_KEY")
	})
	t.Run("retry budget must be positive", func(t *testing.T) {
		t.Setenv("ALLOCATION_RETRY_BUDGET", "0")
		_, err := FromEnv()
		require.ErrorContains(t, err, "ALLOCATION_RETRY_BUDGET")
	})
	t.Run("rate limit window must be positive", func(t *testing.T) {
		t.Setenv("RATE_LIMIT_WINDOW", "0s")
		_, err := FromEnv()
		require.ErrorContains(t, err, "RATE_LIMIT_WINDOW")
	})
	t.Run("unknown environment", func(t *testing.T) {
		t.Setenv("ENVIRONMENT", "staging")
		_, err := FromEnv()
		require.ErrorContains(t, err, "ENVIRONMENT")
	})
}

func TestLoadReadsEnvFileWithoutOverriding(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("REDIS_URL=redis://cache:6379/0\nBLOODBANK_ADDR=:7000\n"), 0o600))
	t.Setenv("BLOODBANK_ADDR", ":9999")
	t.Cleanup(func() { _ = os.Unsetenv("REDIS_URL") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "redis://cache:6379/0", cfg.Redis.URL)
	assert.Equal(t, ":9999", cfg.Server.Addr)
}

func TestLoadToleratesMissingEnvFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
}
