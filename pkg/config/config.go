// Package config loads and validates the accessd service configuration from
// YAML files and environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/accessguard/accessd/pkg/logging"
)

// Config is the top-level service configuration.
type Config struct {
	Logging logging.Config `json:"logging" yaml:"logging"`
	HTTP    HTTPConfig     `json:"http" yaml:"http"`
	Redis   RedisConfig    `json:"redis" yaml:"redis"`
	Engine  EngineConfig   `json:"engine" yaml:"engine"`
	Monitor MonitorConfig  `json:"monitor" yaml:"monitor"`
}

// HTTPConfig holds the health/metrics listener settings.
type HTTPConfig struct {
	ListenAddr      string        `json:"listen_addr" yaml:"listen_addr"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// RedisConfig holds the Redis connection settings. An empty address selects
// the in-memory store backend.
type RedisConfig struct {
	Address      string        `json:"address" yaml:"address"`
	Password     string        `json:"password" yaml:"password"`
	Database     int           `json:"database" yaml:"database"`
	PoolSize     int           `json:"pool_size" yaml:"pool_size"`
	DialTimeout  time.Duration `json:"dial_timeout" yaml:"dial_timeout"`
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`
	KeyPrefix    string        `json:"key_prefix" yaml:"key_prefix"`
}

// EngineConfig holds decision engine tunables.
type EngineConfig struct {
	AuditTTL             time.Duration `json:"audit_ttl" yaml:"audit_ttl"`
	DefaultQuarantineTTL time.Duration `json:"default_quarantine_ttl" yaml:"default_quarantine_ttl"`
}

// MonitorConfig holds the background loop intervals.
type MonitorConfig struct {
	TrustRefreshInterval      time.Duration `json:"trust_refresh_interval" yaml:"trust_refresh_interval"`
	ComplianceCheckInterval   time.Duration `json:"compliance_check_interval" yaml:"compliance_check_interval"`
	SegmentValidationInterval time.Duration `json:"segment_validation_interval" yaml:"segment_validation_interval"`
	MetricsInterval           time.Duration `json:"metrics_interval" yaml:"metrics_interval"`
}

// DefaultConfig returns the configuration used when no file or overrides are
// provided.
func DefaultConfig() *Config {
	return &Config{
		Logging: logging.Config{
			Level:   logging.LevelInfo,
			Format:  "json",
			Service: "accessd",
		},
		HTTP: HTTPConfig{
			ListenAddr:      ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Redis: RedisConfig{
			PoolSize:     10,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			KeyPrefix:    "accessd",
		},
		Engine: EngineConfig{
			AuditTTL:             24 * time.Hour,
			DefaultQuarantineTTL: time.Hour,
		},
		Monitor: MonitorConfig{
			TrustRefreshInterval:      5 * time.Minute,
			ComplianceCheckInterval:   10 * time.Minute,
			SegmentValidationInterval: 30 * time.Minute,
			MetricsInterval:           time.Minute,
		},
	}
}

// Load reads configuration from an optional YAML file, applies ACCESSD_*
// environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ACCESSD_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = logging.Level(v)
	}
	if v := os.Getenv("ACCESSD_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("ACCESSD_LISTEN_ADDR"); v != "" {
		cfg.HTTP.ListenAddr = v
	}
	if v := os.Getenv("ACCESSD_REDIS_ADDR"); v != "" {
		cfg.Redis.Address = v
	}
	if v := os.Getenv("ACCESSD_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("ACCESSD_REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			cfg.Redis.Database = db
		}
	}
	if v := os.Getenv("ACCESSD_KEY_PREFIX"); v != "" {
		cfg.Redis.KeyPrefix = v
	}
}

// Validate checks the configuration for values the service cannot run with.
func (c *Config) Validate() error {
	if c.HTTP.ListenAddr == "" {
		return fmt.Errorf("http.listen_addr must not be empty")
	}
	if c.Engine.AuditTTL <= 0 {
		return fmt.Errorf("engine.audit_ttl must be positive, got %s", c.Engine.AuditTTL)
	}
	if c.Engine.DefaultQuarantineTTL <= 0 {
		return fmt.Errorf("engine.default_quarantine_ttl must be positive, got %s", c.Engine.DefaultQuarantineTTL)
	}
	for name, interval := range map[string]time.Duration{
		"monitor.trust_refresh_interval":      c.Monitor.TrustRefreshInterval,
		"monitor.compliance_check_interval":   c.Monitor.ComplianceCheckInterval,
		"monitor.segment_validation_interval": c.Monitor.SegmentValidationInterval,
		"monitor.metrics_interval":            c.Monitor.MetricsInterval,
	} {
		if interval <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, interval)
		}
	}
	return nil
}
