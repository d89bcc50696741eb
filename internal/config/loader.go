package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadWithSources loads configuration relative to the current directory.
func LoadWithSources() (*TrackedConfig, error) {
	return LoadWithSourcesFrom(".")
}

// LoadWithSourcesFrom loads configuration with source tracking.
// Load order (later sources override earlier):
//  1. Built-in defaults
//  2. User config (~/.featureplus/config.yaml) - optional
//  3. Project config (<dir>/.featureplus/config.yaml) - optional
//  4. Environment variables (FEATUREPLUS_*)
func LoadWithSourcesFrom(dir string) (*TrackedConfig, error) {
	tc := NewTrackedConfig()

	if home, err := os.UserHomeDir(); err == nil {
		userPath := filepath.Join(home, Dir, ConfigFileName)
		if _, err := os.Stat(userPath); err == nil {
			if err := MergeFile(tc, userPath, SourceUser); err != nil {
				slog.Warn("failed to load user config", "path", userPath, "error", err)
			}
		}
	}

	projectPath := filepath.Join(dir, Dir, ConfigFileName)
	if _, err := os.Stat(projectPath); err == nil {
		if err := MergeFile(tc, projectPath, SourceProject); err != nil {
			return nil, err // Project config errors are fatal
		}
	}

	ApplyEnvVars(tc)

	return tc, nil
}

// MergeFile merges the keys present in a YAML file into tc.
func MergeFile(tc *TrackedConfig, path string, source ConfigSource) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	// Parse YAML into a map to track which fields are set
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	for _, f := range fields {
		if !present(raw, f.path) {
			continue
		}
		f.copy(tc.Config, &fileCfg)
		tc.SetSource(f.path, source, path)
	}
	return nil
}

// present reports whether a dotted path such as "gateway.kind" is set in raw.
func present(raw map[string]any, path string) bool {
	section, key, nested := strings.Cut(path, ".")
	if !nested {
		_, ok := raw[section]
		return ok
	}
	sub, ok := raw[section].(map[string]any)
	if !ok {
		return false
	}
	_, ok = sub[key]
	return ok
}

type field struct {
	path string
	copy func(dst, src *Config)
}

var fields = []field{
	{"gateway.kind", func(d, s *Config) { d.Gateway.Kind = s.Gateway.Kind }},
	{"gateway.dsn", func(d, s *Config) { d.Gateway.DSN = s.Gateway.DSN }},
	{"gateway.base_url", func(d, s *Config) { d.Gateway.BaseURL = s.Gateway.BaseURL }},
	{"gateway.token", func(d, s *Config) { d.Gateway.Token = s.Gateway.Token }},
	{"gateway.timeout", func(d, s *Config) { d.Gateway.Timeout = s.Gateway.Timeout }},
	{"session.project_id", func(d, s *Config) { d.Session.ProjectID = s.Session.ProjectID }},
	{"session.user_id", func(d, s *Config) { d.Session.UserID = s.Session.UserID }},
	{"session.autocomplete_min", func(d, s *Config) { d.Session.AutocompleteMin = s.Session.AutocompleteMin }},
	{"session.event_buffer", func(d, s *Config) { d.Session.EventBuffer = s.Session.EventBuffer }},
	{"log.level", func(d, s *Config) { d.Log.Level = s.Log.Level }},
}

// Paths returns every tracked config path.
func Paths() []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.path
	}
	return out
}
