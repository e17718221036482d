package config

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{
		"DB_DRIVER", "HORIZON_MONTHS", "ENGINE_TIMEZONE", "BATCH_WORKERS", "DELETE_INSTANCE_POLICY",
		"SCHEDULER_CRON", "SCHEDULER_RUN_ON_START", "SCHEDULER_MAX_RETRIES", "SCHEDULER_RETRY_BACKOFF_MS",
		"HTTP_ADDR", "GRPC_ADDR", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.DB.Driver)
	assert.Equal(t, 3, cfg.Engine.HorizonMonths)
	assert.Equal(t, time.UTC, cfg.Engine.Location)
	assert.Equal(t, 4, cfg.Engine.BatchWorkers)
	assert.Equal(t, DeletePolicyRegenerate, cfg.Engine.DeletePolicy)
	assert.Equal(t, "0 0 * * *", cfg.Scheduler.Cron)
	assert.True(t, cfg.Scheduler.RunOnStart)
	assert.Equal(t, 3, cfg.Scheduler.MaxRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.Scheduler.RetryBackoff)
	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
	assert.Equal(t, ":50051", cfg.Server.GRPCAddr)
	assert.Equal(t, logrus.InfoLevel, cfg.Server.LogLevel)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_SQLITE_PATH", "/tmp/ledger.db")
	t.Setenv("HORIZON_MONTHS", "6")
	t.Setenv("ENGINE_TIMEZONE", "Europe/Moscow")
	t.Setenv("DELETE_INSTANCE_POLICY", "Skip")
	t.Setenv("SCHEDULER_RUN_ON_START", "false")
	t.Setenv("SCHEDULER_RETRY_BACKOFF_MS", "50")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, DriverSQLite, cfg.DB.Driver)
	assert.Equal(t, "/tmp/ledger.db", cfg.DB.SQLitePath)
	assert.Equal(t, 6, cfg.Engine.HorizonMonths)
	assert.Equal(t, "Europe/Moscow", cfg.Engine.Location.String())
	assert.Equal(t, DeletePolicySkip, cfg.Engine.DeletePolicy)
	assert.False(t, cfg.Scheduler.RunOnStart)
	assert.Equal(t, 50*time.Millisecond, cfg.Scheduler.RetryBackoff)
	assert.Equal(t, logrus.DebugLevel, cfg.Server.LogLevel)
}

func TestFromEnv_Invalid(t *testing.T) {
	cases := map[string][2]string{
		"driver":   {"DB_DRIVER", "mysql"},
		"horizon":  {"HORIZON_MONTHS", "0"},
		"timezone": {"ENGINE_TIMEZONE", "Mars/Olympus"},
		"policy":   {"DELETE_INSTANCE_POLICY", "ignore"},
		"cron":     {"SCHEDULER_CRON", "every day"},
		"level":    {"LOG_LEVEL", "loud"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := FromEnv()
			assert.Error(t, err)
		})
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("X_INT", "nope")
	t.Setenv("X_BOOL", "yes-ish")
	assert.Equal(t, 7, getEnvInt("X_INT", 7))
	assert.True(t, getEnvBool("X_BOOL", true))
	assert.Equal(t, "fallback", getEnv("X_MISSING", "fallback"))
}

func TestDSN(t *testing.T) {
	cfg := &DBConfig{Host: "db", User: "u", Password: "p", Name: "n", Port: 5433, SSLMode: "disable", TimeZone: "UTC"}
	assert.Equal(t, "host=db user=u password=p dbname=n port=5433 sslmode=disable TimeZone=UTC", cfg.DSN())
}
