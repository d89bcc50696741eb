package config

import (
	"os"
	"strconv"
	"time"
)

// EnvVarMapping defines the mapping between environment variables and config paths.
var EnvVarMapping = map[string]string{
	"FEATUREPLUS_GATEWAY_KIND":     "gateway.kind",
	"FEATUREPLUS_GATEWAY_DSN":      "gateway.dsn",
	"FEATUREPLUS_GATEWAY_BASE_URL": "gateway.base_url",
	"FEATUREPLUS_GATEWAY_TOKEN":    "gateway.token",
	"FEATUREPLUS_GATEWAY_TIMEOUT":  "gateway.timeout",
	"FEATUREPLUS_PROJECT":          "session.project_id",
	"FEATUREPLUS_USER_ID":          "session.user_id",
	"FEATUREPLUS_AUTOCOMPLETE_MIN": "session.autocomplete_min",
	"FEATUREPLUS_LOG_LEVEL":        "log.level",
}

// ApplyEnvVars applies environment variable overrides to a TrackedConfig.
// Returns a list of paths that were overridden.
func ApplyEnvVars(tc *TrackedConfig) []string {
	var overridden []string

	for envVar, configPath := range EnvVarMapping {
		value := os.Getenv(envVar)
		if value == "" {
			continue
		}

		if applyEnvVar(tc.Config, configPath, value) {
			tc.SetSource(configPath, SourceEnv, "")
			overridden = append(overridden, configPath)
		}
	}

	return overridden
}

// applyEnvVar applies a single environment variable to the config.
// Returns true if the value was applied.
func applyEnvVar(cfg *Config, path string, value string) bool {
	switch path {
	case "gateway.kind":
		cfg.Gateway.Kind = value
	case "gateway.dsn":
		cfg.Gateway.DSN = value
	case "gateway.base_url":
		cfg.Gateway.BaseURL = value
	case "gateway.token":
		cfg.Gateway.Token = value
	case "gateway.timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return false
		}
		cfg.Gateway.Timeout = d
	case "session.project_id":
		cfg.Session.ProjectID = value
	case "session.user_id":
		cfg.Session.UserID = value
	case "session.autocomplete_min":
		v, err := strconv.Atoi(value)
		if err != nil {
			return false
		}
		cfg.Session.AutocompleteMin = v
	case "log.level":
		cfg.Log.Level = value
	default:
		return false
	}
	return true
}
