package config

import (
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/randalmurphal/featureplus/internal/errors"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Gateway.Kind != GatewaySQLite {
		t.Errorf("Gateway.Kind = %q, want sqlite", cfg.Gateway.Kind)
	}
	if cfg.Gateway.DSN != filepath.Join(".featureplus", "featureplus.db") {
		t.Errorf("Gateway.DSN = %q", cfg.Gateway.DSN)
	}
	if cfg.Gateway.Timeout != 10*time.Second {
		t.Errorf("Gateway.Timeout = %v, want 10s", cfg.Gateway.Timeout)
	}
	if cfg.Session.AutocompleteMin != 2 {
		t.Errorf("Session.AutocompleteMin = %d, want 2", cfg.Session.AutocompleteMin)
	}
	if cfg.Session.EventBuffer != 100 {
		t.Errorf("Session.EventBuffer = %d, want 100", cfg.Session.EventBuffer)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"unknown kind", func(c *Config) { c.Gateway.Kind = "redis" }, "gateway.kind"},
		{"sqlite without dsn", func(c *Config) { c.Gateway.DSN = "" }, "gateway.dsn"},
		{"postgres without dsn", func(c *Config) { c.Gateway.Kind = GatewayPostgres; c.Gateway.DSN = "" }, "gateway.dsn"},
		{"http without base url", func(c *Config) { c.Gateway.Kind = GatewayHTTP; c.Gateway.BaseURL = "" }, "gateway.base_url"},
		{"zero timeout", func(c *Config) { c.Gateway.Timeout = 0 }, "gateway.timeout"},
		{"negative autocomplete", func(c *Config) { c.Session.AutocompleteMin = -1 }, "session.autocomplete_min"},
		{"negative buffer", func(c *Config) { c.Session.EventBuffer = -5 }, "session.event_buffer"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.HasCode(err, errors.CodeConfigInvalid) {
				t.Fatalf("Validate() = %v, want CONFIG_INVALID", err)
			}
			want := "invalid configuration: " + tt.field
			if got := errors.AsError(err).What; got != want {
				t.Errorf("What = %q, want %q", got, want)
			}
		})
	}

	cfg := Default()
	cfg.Gateway.Kind = GatewayMemory
	cfg.Gateway.DSN = ""
	if err := cfg.Validate(); err != nil {
		t.Errorf("memory gateway needs no dsn: %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		if err != nil {
			t.Errorf("ParseLevel(%q) error: %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}

	cfg := Default()
	cfg.Log.Level = "nope"
	if cfg.LogLevel() != slog.LevelInfo {
		t.Errorf("LogLevel() should fall back to info")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", filepath.Join(dir, "home"))
	clearEnv(t)

	cfg := Default()
	cfg.Gateway.Kind = GatewayHTTP
	cfg.Gateway.Token = "secret"
	cfg.Gateway.Timeout = 3 * time.Second
	cfg.Session.ProjectID = "7"
	if err := cfg.Save(filepath.Join(dir, Dir, ConfigFileName)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	tc, err := LoadWithSourcesFrom(dir)
	if err != nil {
		t.Fatalf("LoadWithSourcesFrom failed: %v", err)
	}
	if tc.Config.Gateway != cfg.Gateway {
		t.Errorf("Gateway = %+v, want %+v", tc.Config.Gateway, cfg.Gateway)
	}
	if tc.Config.Session != cfg.Session {
		t.Errorf("Session = %+v, want %+v", tc.Config.Session, cfg.Session)
	}
}
