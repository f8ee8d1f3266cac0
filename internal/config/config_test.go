package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "123456:abcdef")

	v, err := New("")
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "123456:abcdef", cfg.TelegramToken)
	assert.Equal(t, DriverFile, cfg.Storage.Driver)
	assert.Equal(t, "./data", cfg.Storage.DataDir)
	assert.Equal(t, "task_bot", cfg.Mongo.DBName)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 256, cfg.QueueSize)
	assert.Equal(t, 30, cfg.SendRate)
	assert.Equal(t, 30, cfg.SendBurst)
	assert.Equal(t, 30*time.Second, cfg.Triage.ForwardWindow)
	assert.Equal(t, 10, cfg.Triage.ForwardMax)
	assert.Equal(t, 3*time.Second, cfg.Triage.MediaGroupDelay)
	assert.Equal(t, 5*time.Minute, cfg.Triage.MediaGroupTTL)
	assert.Equal(t, 30*time.Minute, cfg.Triage.AttachmentTTL)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoadPrefixedEnvOverridesLegacy(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "legacy-token-value")
	t.Setenv("TASKBOT_TELEGRAM_TOKEN", "prefixed-token-value")
	t.Setenv("TASKBOT_STORAGE_DRIVER", "SQLite")
	t.Setenv("TASKBOT_TRIAGE_FORWARD_WINDOW", "45s")
	t.Setenv("LOG_LEVEL", "debug")

	v, err := New("")
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, "prefixed-token-value", cfg.TelegramToken)
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, 45*time.Second, cfg.Triage.ForwardWindow)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taskbot.yaml")
	content := []byte(`
telegram_token: file-token-value
storage:
  driver: mongo
mongo:
  uri: mongodb://localhost:27017
  db_name: tasks
triage:
  forward_max: 5
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	v, err := New(path)
	require.NoError(t, err)
	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, DriverMongo, cfg.Storage.Driver)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Mongo.URI)
	assert.Equal(t, "tasks", cfg.Mongo.DBName)
	assert.Equal(t, 5, cfg.Triage.ForwardMax)
}

func TestNewMissingFile(t *testing.T) {
	if _, err := New(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		v, _ := New("")
		v.Set("telegram_token", "123456:abcdef")
		cfg, err := Load(v)
		if err != nil {
			t.Fatalf("baseline config invalid: %v", err)
		}
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "missing token", mutate: func(c *Config) { c.TelegramToken = "" }},
		{name: "unknown driver", mutate: func(c *Config) { c.Storage.Driver = "redis" }},
		{name: "mongo without uri", mutate: func(c *Config) { c.Storage.Driver = DriverMongo; c.Mongo.URI = "" }},
		{name: "file without dir", mutate: func(c *Config) { c.Storage.DataDir = "" }},
		{name: "zero workers", mutate: func(c *Config) { c.Workers = 0 }},
		{name: "zero send burst", mutate: func(c *Config) { c.SendBurst = 0 }},
		{name: "zero forward max", mutate: func(c *Config) { c.Triage.ForwardMax = 0 }},
		{name: "negative window", mutate: func(c *Config) { c.Triage.ForwardWindow = -time.Second }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestSummaryMasksToken(t *testing.T) {
	cfg := &Config{TelegramToken: "123456:ABCDEFGHIJ", Storage: StorageConfig{Driver: DriverFile, DataDir: "./data"}}
	lines := cfg.Summary()
	require.NotEmpty(t, lines)
	assert.Equal(t, "telegram_token: 1234****GHIJ", lines[0])
	for _, line := range lines {
		assert.NotContains(t, line, "ABCDEF")
	}
}
