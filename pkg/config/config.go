// Package config loads and validates the engine configuration from YAML with
// environment variable expansion, merging user settings over built-in
// defaults.
package config

import (
	"fmt"
	"time"
)

// Config is the complete, validated engine configuration. It is immutable
// after Initialize returns; every component receives it by injection.
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Recommendation RecommendationConfig `yaml:"recommendation"`
	Batch          BatchConfig          `yaml:"batch"`
	Graph          GraphConfig          `yaml:"graph"`
	Telemetry      TelemetryConfig      `yaml:"telemetry"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	HTTPPort        string        `yaml:"http_port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// RecommendationConfig controls the recommendation pipeline.
type RecommendationConfig struct {
	// LookbackDefaultDays is the standard telemetry window.
	LookbackDefaultDays int `yaml:"lookback_default_days"`

	// LookbackExtendedDays caps the cold-start extension.
	LookbackExtendedDays int `yaml:"lookback_extended_days"`

	// CompletenessThreshold below which the lookback is extended.
	CompletenessThreshold float64 `yaml:"completeness_threshold"`

	// DepDefaultAvailability is assumed when a dependency has no telemetry.
	DepDefaultAvailability float64 `yaml:"dep_default_availability"`

	// ExternalBufferK is the pessimism multiplier applied to published SLAs.
	ExternalBufferK float64 `yaml:"external_buffer_k"`

	// TTL is the expires_at offset of a new recommendation.
	TTL time.Duration `yaml:"recommendation_ttl"`

	// NoiseMarginDefault and NoiseMarginShared are the latency headrooms.
	NoiseMarginDefault float64 `yaml:"noise_margin_default"`
	NoiseMarginShared  float64 `yaml:"noise_margin_shared"`

	// BootstrapResamples is the confidence-interval resample count.
	BootstrapResamples int `yaml:"bootstrap_resamples"`

	// BootstrapSeed makes confidence intervals reproducible.
	BootstrapSeed uint64 `yaml:"bootstrap_seed"`

	// RollingBucket is the rolling availability series bucket width.
	RollingBucket time.Duration `yaml:"rolling_bucket"`

	// SubgraphDepth is the downstream depth the pipeline fetches.
	SubgraphDepth int `yaml:"subgraph_depth"`
}

// BatchConfig controls the periodic recomputation of all services.
type BatchConfig struct {
	// Concurrency bounds the parallel pipeline invocations per batch.
	Concurrency int `yaml:"batch_concurrency"`

	// Interval is the scheduler period.
	Interval time.Duration `yaml:"batch_interval"`

	// IncludeDiscovered widens eligibility to placeholder services.
	IncludeDiscovered bool `yaml:"include_discovered"`

	// ShutdownTimeout is how long Stop waits for an in-flight batch.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// GraphConfig controls the dependency graph subsystem.
type GraphConfig struct {
	// StaleEdgeThreshold is the staleness sweep cutoff.
	StaleEdgeThreshold time.Duration `yaml:"stale_edge_threshold"`

	// SweepInterval is how often the stale/expiry sweeps run.
	SweepInterval time.Duration `yaml:"sweep_interval"`

	// MaxTraversalDepth is the hard cap on traversal depth.
	MaxTraversalDepth int `yaml:"max_traversal_depth"`

	// ImpactMaxDepth bounds upstream impact analysis.
	ImpactMaxDepth int `yaml:"impact_max_depth"`
}

// TelemetryConfig points at the Prometheus-compatible telemetry store.
type TelemetryConfig struct {
	PrometheusURL string        `yaml:"prometheus_url"`
	Timeout       time.Duration `yaml:"timeout"`
}

// validate checks cross-field constraints after merge.
func validate(cfg *Config) error {
	r := cfg.Recommendation
	if r.LookbackDefaultDays <= 0 || r.LookbackExtendedDays < r.LookbackDefaultDays {
		return NewValidationError("recommendation.lookback", "extended window must be >= default window > 0")
	}
	if r.CompletenessThreshold <= 0 || r.CompletenessThreshold > 1 {
		return NewValidationError("recommendation.completeness_threshold", "must be in (0, 1]")
	}
	if r.DepDefaultAvailability <= 0 || r.DepDefaultAvailability > 1 {
		return NewValidationError("recommendation.dep_default_availability", "must be in (0, 1]")
	}
	if r.ExternalBufferK < 1 {
		return NewValidationError("recommendation.external_buffer_k", "must be >= 1")
	}
	if r.TTL <= 0 {
		return NewValidationError("recommendation.recommendation_ttl", "must be positive")
	}
	if r.BootstrapResamples <= 0 {
		return NewValidationError("recommendation.bootstrap_resamples", "must be positive")
	}
	if cfg.Batch.Concurrency <= 0 {
		return NewValidationError("batch.batch_concurrency", "must be positive")
	}
	if cfg.Batch.Interval <= 0 {
		return NewValidationError("batch.batch_interval", "must be positive")
	}
	g := cfg.Graph
	if g.MaxTraversalDepth < 1 || g.MaxTraversalDepth > 10 {
		return NewValidationError("graph.max_traversal_depth", "must be in [1, 10]")
	}
	if cfg.Recommendation.SubgraphDepth > g.MaxTraversalDepth {
		return NewValidationError("recommendation.subgraph_depth",
			fmt.Sprintf("must not exceed graph.max_traversal_depth (%d)", g.MaxTraversalDepth))
	}
	if g.StaleEdgeThreshold <= 0 {
		return NewValidationError("graph.stale_edge_threshold", "must be positive")
	}
	return nil
}
