package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farewatch/internal/fraud"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "storage:\n  driver: memory\n"))
	require.NoError(t, err)

	assert.Equal(t, "farewatch", cfg.App.Name)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 15*time.Second, cfg.HTTP.ShutdownTimeout)
	assert.Equal(t, fraud.DefaultPolicy(), cfg.Scoring)
	assert.Equal(t, "ticket-transactions.analyzed", cfg.Events.Topic)
	assert.Len(t, cfg.Demo.Stations, 6)
	assert.Equal(t, 12*time.Second, cfg.Demo.Interval())
}

func TestLoadFileOverrides(t *testing.T) {
	path := writeConfig(t, `
storage:
  driver: redis
redis:
  addrs: ["cache:6379"]
  key_prefix: fw
scoring:
  base: 0.05
  high_risk_stations: ["Airport Station"]
  off_hours:
    after: 22
    location: UTC
  thresholds:
    flag: 0.8
    clear: 0.2
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"cache:6379"}, cfg.Redis.Addrs)
	assert.Equal(t, "fw", cfg.Redis.KeyPrefix)
	assert.Equal(t, 0.05, cfg.Scoring.Base)
	assert.Equal(t, []string{"Airport Station"}, cfg.Scoring.HighRiskStations)
	assert.Equal(t, 22, cfg.Scoring.OffHours.After)
	assert.Equal(t, 5, cfg.Scoring.OffHours.Before)
	assert.Equal(t, fraud.Thresholds{Flag: 0.8, Clear: 0.2}, cfg.Scoring.Thresholds)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("FAREWATCH_STORAGE_DRIVER", "memory")
	t.Setenv("FAREWATCH_SCORING_THRESHOLDS_FLAG", "0.9")
	t.Setenv("FAREWATCH_EVENTS_BROKERS", "k1:9092,k2:9092")
	t.Setenv("FAREWATCH_HTTP_READ_TIMEOUT", "3s")

	cfg, err := Load(writeConfig(t, "app:\n  environment: test\n"))
	require.NoError(t, err)

	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, 0.9, cfg.Scoring.Thresholds.Flag)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Events.Brokers)
	assert.Equal(t, 3*time.Second, cfg.HTTP.ReadTimeout)
}

func TestLoadSecretsFromEnvironmentOnly(t *testing.T) {
	t.Setenv("FAREWATCH_DATABASE_DSN", "postgres://farewatch:secret@db:5432/farewatch")
	t.Setenv("FAREWATCH_REDIS_PASSWORD", "hunter2")
	t.Setenv("FAREWATCH_ALERTING_TELEGRAM_ENABLED", "true")
	t.Setenv("FAREWATCH_ALERTING_TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("FAREWATCH_ALERTING_TELEGRAM_CHAT_ID", "-10042")
	t.Setenv("FAREWATCH_DEMO_SEED", "99")

	cfg, err := Load(writeConfig(t, "app:\n  environment: test\n"))
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, "postgres://farewatch:secret@db:5432/farewatch", cfg.Database.DSN)
	assert.Equal(t, "hunter2", cfg.Redis.Password)
	assert.Equal(t, "123:abc", cfg.Alerting.Telegram.BotToken)
	assert.Equal(t, "-10042", cfg.Alerting.Telegram.ChatID)
	assert.Equal(t, uint64(99), cfg.Demo.Seed)
}

func TestLoadRejectsNonFiniteScoring(t *testing.T) {
	for _, key := range []string{"FAREWATCH_SCORING_BASE", "FAREWATCH_SCORING_THRESHOLDS_FLAG", "FAREWATCH_SCORING_RANDOM_MAX"} {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, "NaN")
			_, err := Load(writeConfig(t, "storage:\n  driver: memory\n"))
			assert.Error(t, err)
		})
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := map[string]string{
		"unknown driver":         "storage:\n  driver: mysql\n",
		"postgres without dsn":   "storage:\n  driver: postgres\n",
		"inverted thresholds":    "storage:\n  driver: memory\nscoring:\n  thresholds:\n    flag: 0.2\n    clear: 0.6\n",
		"unknown random source":  "storage:\n  driver: memory\nscoring:\n  random:\n    source: dice\n",
		"telegram without token": "storage:\n  driver: memory\nalerting:\n  telegram:\n    enabled: true\n    chat_id: \"1\"\n",
		"fraud rate above one":   "storage:\n  driver: memory\ndemo:\n  fraud_rate: 1.5\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestResolveListLimit(t *testing.T) {
	cfg := HTTPConfig{DefaultLimit: 100, MaxListLimit: 500}
	assert.Equal(t, 100, cfg.ResolveListLimit(0))
	assert.Equal(t, 20, cfg.ResolveListLimit(20))
	assert.Equal(t, 500, cfg.ResolveListLimit(10000))
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("FAREWATCH_TEST_DOTENV=loaded\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("FAREWATCH_TEST_DOTENV") })

	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env"), path))
	assert.Equal(t, "loaded", os.Getenv("FAREWATCH_TEST_DOTENV"))
}
