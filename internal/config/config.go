// Package config provides configuration management for featureplus.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/randalmurphal/featureplus/internal/errors"
)

const (
	// ConfigFileName is the default config file name
	ConfigFileName = "config.yaml"
	// Dir is the featureplus configuration directory
	Dir = ".featureplus"
)

// Gateway kinds.
const (
	GatewayMemory   = "memory"
	GatewaySQLite   = "sqlite"
	GatewayPostgres = "postgres"
	GatewayHTTP     = "http"
)

// ValidGatewayKinds returns the supported gateway kinds.
func ValidGatewayKinds() []string {
	return []string{GatewayMemory, GatewaySQLite, GatewayPostgres, GatewayHTTP}
}

// GatewayConfig selects and configures the remote the session talks to.
type GatewayConfig struct {
	// Kind is one of memory, sqlite, postgres, http (default: sqlite)
	Kind string `yaml:"kind"`

	// DSN is the database file or connection string for sqlite/postgres
	DSN string `yaml:"dsn,omitempty"`

	// BaseURL is the API root for the http gateway
	BaseURL string `yaml:"base_url,omitempty"`

	// Token is sent as a bearer token by the http gateway
	Token string `yaml:"token,omitempty"`

	// Timeout bounds each remote call (default: 10s)
	Timeout time.Duration `yaml:"timeout"`
}

// SessionConfig holds settings for the entity cache session.
type SessionConfig struct {
	// ProjectID is the default project for CLI commands
	ProjectID string `yaml:"project_id,omitempty"`

	// UserID is recorded as the author of new comments
	UserID string `yaml:"user_id,omitempty"`

	// AutocompleteMin is the minimum query length for tag suggestions (default: 2)
	AutocompleteMin int `yaml:"autocomplete_min"`

	// EventBuffer is the per-subscriber event channel size (default: 100)
	EventBuffer int `yaml:"event_buffer"`
}

// LogConfig controls the CLI log handler.
type LogConfig struct {
	// Level is debug, info, warn or error (default: info)
	Level string `yaml:"level"`
}

// Config represents the featureplus configuration.
type Config struct {
	Gateway GatewayConfig `yaml:"gateway"`
	Session SessionConfig `yaml:"session"`
	Log     LogConfig     `yaml:"log"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Kind:    GatewaySQLite,
			DSN:     filepath.Join(Dir, "featureplus.db"),
			BaseURL: "http://localhost:8080/api",
			Timeout: 10 * time.Second,
		},
		Session: SessionConfig{
			AutocompleteMin: 2,
			EventBuffer:     100,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if !slices.Contains(ValidGatewayKinds(), c.Gateway.Kind) {
		return errors.ErrConfigInvalid("gateway.kind",
			fmt.Sprintf("must be one of %s (got %q)", strings.Join(ValidGatewayKinds(), ", "), c.Gateway.Kind))
	}
	switch c.Gateway.Kind {
	case GatewaySQLite, GatewayPostgres:
		if c.Gateway.DSN == "" {
			return errors.ErrConfigInvalid("gateway.dsn", fmt.Sprintf("required for the %s gateway", c.Gateway.Kind))
		}
	case GatewayHTTP:
		if c.Gateway.BaseURL == "" {
			return errors.ErrConfigInvalid("gateway.base_url", "required for the http gateway")
		}
	}
	if c.Gateway.Timeout <= 0 {
		return errors.ErrConfigInvalid("gateway.timeout", fmt.Sprintf("must be positive (got %s)", c.Gateway.Timeout))
	}
	if c.Session.AutocompleteMin < 0 {
		return errors.ErrConfigInvalid("session.autocomplete_min", "must not be negative")
	}
	if c.Session.EventBuffer < 0 {
		return errors.ErrConfigInvalid("session.event_buffer", "must not be negative")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// LogLevel returns the configured slog level, falling back to info.
func (c *Config) LogLevel() slog.Level {
	level, err := ParseLevel(c.Log.Level)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// ParseLevel converts a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, errors.ErrConfigInvalid("log.level",
		fmt.Sprintf("must be debug, info, warn or error (got %q)", s))
}

// Load loads the merged configuration from the current directory.
func Load() (*Config, error) {
	tc, err := LoadWithSources()
	if err != nil {
		return nil, err
	}
	return tc.Config, nil
}

// Save writes the config as YAML to path, creating parent directories.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}
