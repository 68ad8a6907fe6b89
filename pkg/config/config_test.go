package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/accessguard/accessd/pkg/logging"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, ":8080", cfg.HTTP.ListenAddr)
	assert.Equal(t, logging.LevelInfo, cfg.Logging.Level)
	assert.Empty(t, cfg.Redis.Address)
	assert.Equal(t, 24*time.Hour, cfg.Engine.AuditTTL)
	assert.Equal(t, time.Hour, cfg.Engine.DefaultQuarantineTTL)
	assert.NoError(t, cfg.Validate())
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTP.ListenAddr)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
logging:
  level: debug
  format: text
http:
  listen_addr: ":9090"
redis:
  address: "redis:6379"
  database: 2
  key_prefix: "zt"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, logging.LevelDebug, cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, ":9090", cfg.HTTP.ListenAddr)
	assert.Equal(t, "redis:6379", cfg.Redis.Address)
	assert.Equal(t, 2, cfg.Redis.Database)
	assert.Equal(t, "zt", cfg.Redis.KeyPrefix)

	// Fields absent from the file keep their defaults.
	assert.Equal(t, 24*time.Hour, cfg.Engine.AuditTTL)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http: [not a mapping"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ACCESSD_LOG_LEVEL", "warn")
	t.Setenv("ACCESSD_LISTEN_ADDR", ":7070")
	t.Setenv("ACCESSD_REDIS_ADDR", "cache:6379")
	t.Setenv("ACCESSD_REDIS_PASSWORD", "hunter2")
	t.Setenv("ACCESSD_REDIS_DB", "3")
	t.Setenv("ACCESSD_KEY_PREFIX", "zt-test")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, logging.LevelWarn, cfg.Logging.Level)
	assert.Equal(t, ":7070", cfg.HTTP.ListenAddr)
	assert.Equal(t, "cache:6379", cfg.Redis.Address)
	assert.Equal(t, "hunter2", cfg.Redis.Password)
	assert.Equal(t, 3, cfg.Redis.Database)
	assert.Equal(t, "zt-test", cfg.Redis.KeyPrefix)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty listen addr", func(c *Config) { c.HTTP.ListenAddr = "" }},
		{"zero audit ttl", func(c *Config) { c.Engine.AuditTTL = 0 }},
		{"negative quarantine ttl", func(c *Config) { c.Engine.DefaultQuarantineTTL = -time.Hour }},
		{"zero trust refresh", func(c *Config) { c.Monitor.TrustRefreshInterval = 0 }},
		{"zero metrics interval", func(c *Config) { c.Monitor.MetricsInterval = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
