package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CACHE_OP_TIMEOUT", "")
	t.Setenv("CODE_LENGTH", "")
	t.Setenv("QR_STREAM_NAME", "")
	t.Setenv("CLICKHOUSE_WRITE_TIMEOUT", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 250*time.Millisecond, cfg.Cache.OpTimeout)
	assert.Equal(t, 7*24*time.Hour, cfg.Cache.L2TTL)
	assert.Equal(t, 6, cfg.Codes.Length)
	assert.Equal(t, 5, cfg.Codes.MaxAttempts)
	assert.Equal(t, "qr:jobs", cfg.Queue.Stream)
	assert.Equal(t, 2*time.Second, cfg.ClickHouse.WriteTimeout)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CACHE_OP_TIMEOUT", "1s")
	t.Setenv("CODE_STRATEGY", "snowflake")
	t.Setenv("DB_REPLICA_DSNS", "postgres://a, ,postgres://b")
	t.Setenv("BASE_URL", "https://sho.rt/")
	t.Setenv("REDIS_ENABLED", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, time.Second, cfg.Cache.OpTimeout)
	assert.Equal(t, "snowflake", cfg.Codes.Strategy)
	assert.Equal(t, []string{"postgres://a", "postgres://b"}, cfg.Database.ReplicaDSNs)
	assert.Equal(t, "https://sho.rt", cfg.Services.BaseURL)
	assert.False(t, cfg.Redis.Enabled)
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("CODE_LENGTH", "six")
	t.Setenv("CACHE_L1_TTL", "soon")
	t.Setenv("RATE_LIMIT_ENABLED", "maybe")

	assert.Equal(t, 6, getEnvAsInt("CODE_LENGTH", 6))
	assert.Equal(t, time.Minute, getEnvAsDuration("CACHE_L1_TTL", time.Minute))
	assert.True(t, getEnvAsBool("RATE_LIMIT_ENABLED", true))
}
