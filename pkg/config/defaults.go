package config

import "time"

// DefaultConfig returns the built-in defaults. User YAML settings are merged
// on top; unset fields keep these values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:        "8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Recommendation: RecommendationConfig{
			LookbackDefaultDays:    30,
			LookbackExtendedDays:   90,
			CompletenessThreshold:  0.90,
			DepDefaultAvailability: 0.999,
			ExternalBufferK:        11,
			TTL:                    24 * time.Hour,
			NoiseMarginDefault:     0.05,
			NoiseMarginShared:      0.10,
			BootstrapResamples:     1000,
			BootstrapSeed:          1,
			RollingBucket:          24 * time.Hour,
			SubgraphDepth:          3,
		},
		Batch: BatchConfig{
			Concurrency:       20,
			Interval:          24 * time.Hour,
			IncludeDiscovered: false,
			ShutdownTimeout:   5 * time.Minute,
		},
		Graph: GraphConfig{
			StaleEdgeThreshold: 168 * time.Hour,
			SweepInterval:      1 * time.Hour,
			MaxTraversalDepth:  10,
			ImpactMaxDepth:     5,
		},
		Telemetry: TelemetryConfig{
			PrometheusURL: "http://localhost:9090",
			Timeout:       15 * time.Second,
		},
	}
}
