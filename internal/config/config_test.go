package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"SKILLSTAKE_ENV", "PORT", "ALLOWED_ORIGINS", "STORE_DRIVER", "FEED_DRIVER",
		"DATABASE_URL", "POSTGRES_USER", "POSTGRES_PASSWORD", "PG_HOST", "PG_PORT", "PG_DATABASE",
		"AUDIT_BATCH_SIZE", "AUDIT_FLUSH_MS", "TOKEN_EXPIRE_TIME", "PRESENCE_TTL",
		"PRESENCE_SWEEP_INTERVAL", "LOG_LEVEL", "AUDIT_DRAIN_INPROCESS",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	c, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost:8080", c.Addr)
	assert.False(t, c.Production)
	assert.Equal(t, DriverPostgres, c.StoreDriver)
	assert.Equal(t, DriverRedis, c.FeedDriver)
	assert.Equal(t, 20, c.AuditBatchSize)
	assert.Equal(t, 500*time.Millisecond, c.AuditFlushDelay)
	assert.True(t, c.AuditDrainInProcess)
	assert.Zero(t, c.TokenTTL)
	assert.Equal(t, 5*time.Minute, c.PresenceTTL)
	assert.Equal(t, logrus.InfoLevel, c.LogLevel)
	assert.Equal(t, []string{"https://*", "http://*"}, c.AllowedOrigins)
}

func TestLoadProduction(t *testing.T) {
	clearEnv(t)
	t.Setenv("SKILLSTAKE_ENV", "production")
	t.Setenv("PORT", "9000")

	_, err := Load()
	assert.Error(t, err, "origins are required in production")

	t.Setenv("ALLOWED_ORIGINS", "https://skillstake.gg, https://admin.skillstake.gg")
	t.Setenv("TOKEN_EXPIRE_TIME", "72h")
	t.Setenv("AUDIT_DRAIN_INPROCESS", "false")
	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9000", c.Addr)
	assert.Equal(t, []string{"https://skillstake.gg", "https://admin.skillstake.gg"}, c.AllowedOrigins)
	assert.Equal(t, 72*time.Hour, c.TokenTTL)
	assert.False(t, c.AuditDrainInProcess)
}

func TestLoadMemoryDriver(t *testing.T) {
	clearEnv(t)
	t.Setenv("STORE_DRIVER", "memory")
	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, c.FeedDriver)

	t.Setenv("STORE_DRIVER", "sqlite")
	_, err = Load()
	assert.Error(t, err)
}

func TestLoadRejectsBadDurations(t *testing.T) {
	clearEnv(t)
	t.Setenv("PRESENCE_TTL", "five minutes")
	_, err := Load()
	assert.Error(t, err)

	clearEnv(t)
	t.Setenv("LOG_LEVEL", "chatty")
	_, err = Load()
	assert.Error(t, err)
}

func TestDatabaseURL(t *testing.T) {
	clearEnv(t)
	t.Setenv("POSTGRES_USER", "stake")
	t.Setenv("POSTGRES_PASSWORD", "p@ss")
	t.Setenv("PG_HOST", "db")
	t.Setenv("PG_DATABASE", "skillstake")
	assert.Equal(t, "postgres://stake:p%40ss@db:5432/skillstake", DatabaseURL())

	t.Setenv("DATABASE_URL", "postgres://override/db")
	assert.Equal(t, "postgres://override/db", DatabaseURL())
}
