package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// ConfigFileName is the expected YAML file inside the config directory.
const ConfigFileName = "sloengine.yaml"

// Initialize loads, merges, validates, and returns ready-to-use configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Read sloengine.yaml from configDir (absence is not an error)
//  2. Expand ${VAR} environment references
//  3. Parse YAML
//  4. Merge user settings over built-in defaults
//  5. Validate the merged result
func Initialize(_ context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg, err := load(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	log.Info("Configuration initialized",
		"lookback_days", cfg.Recommendation.LookbackDefaultDays,
		"batch_concurrency", cfg.Batch.Concurrency,
		"batch_interval", cfg.Batch.Interval,
		"prometheus_url", cfg.Telemetry.PrometheusURL)
	return cfg, nil
}

func load(configDir string) (*Config, error) {
	cfg := &Config{}

	path := filepath.Join(configDir, ConfigFileName)
	raw, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		slog.Warn("No configuration file found, using built-in defaults", "path", path)
	case err != nil:
		return nil, NewLoadError(ConfigFileName, err)
	default:
		expanded := expandEnv(raw)
		if err := yaml.Unmarshal(expanded, cfg); err != nil {
			return nil, NewLoadError(ConfigFileName, err)
		}
	}

	// Fill every unset field from the defaults.
	if err := mergo.Merge(cfg, DefaultConfig()); err != nil {
		return nil, fmt.Errorf("failed to merge defaults: %w", err)
	}
	return cfg, nil
}

// expandEnv replaces ${VAR} references in the raw YAML with environment
// values. Unset variables expand to the empty string.
func expandEnv(raw []byte) []byte {
	return []byte(os.Expand(string(raw), func(key string) string {
		return os.Getenv(key)
	}))
}
