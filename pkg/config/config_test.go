package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(content), 0o644))
	return dir
}

func TestInitialize(t *testing.T) {
	ctx := context.Background()

	t.Run("missing file falls back to defaults", func(t *testing.T) {
		cfg, err := Initialize(ctx, t.TempDir())
		require.NoError(t, err)
		assert.Equal(t, 30, cfg.Recommendation.LookbackDefaultDays)
		assert.Equal(t, 20, cfg.Batch.Concurrency)
		assert.Equal(t, 24*time.Hour, cfg.Recommendation.TTL)
		assert.Equal(t, 168*time.Hour, cfg.Graph.StaleEdgeThreshold)
	})

	t.Run("user settings override defaults, rest keeps defaults", func(t *testing.T) {
		dir := writeConfig(t, `
recommendation:
  lookback_default_days: 14
  bootstrap_resamples: 500
batch:
  batch_concurrency: 4
`)
		cfg, err := Initialize(ctx, dir)
		require.NoError(t, err)
		assert.Equal(t, 14, cfg.Recommendation.LookbackDefaultDays)
		assert.Equal(t, 500, cfg.Recommendation.BootstrapResamples)
		assert.Equal(t, 4, cfg.Batch.Concurrency)
		// Untouched fields keep defaults.
		assert.Equal(t, 90, cfg.Recommendation.LookbackExtendedDays)
		assert.Equal(t, 0.90, cfg.Recommendation.CompletenessThreshold)
	})

	t.Run("environment variables expand", func(t *testing.T) {
		t.Setenv("PROM_URL", "http://prom.example:9090")
		dir := writeConfig(t, `
telemetry:
  prometheus_url: ${PROM_URL}
`)
		cfg, err := Initialize(ctx, dir)
		require.NoError(t, err)
		assert.Equal(t, "http://prom.example:9090", cfg.Telemetry.PrometheusURL)
	})

	t.Run("invalid traversal depth rejected", func(t *testing.T) {
		dir := writeConfig(t, `
graph:
  max_traversal_depth: 50
`)
		_, err := Initialize(ctx, dir)
		require.Error(t, err)
		assert.True(t, IsValidationError(err))
	})

	t.Run("subgraph depth must respect the hard cap", func(t *testing.T) {
		dir := writeConfig(t, `
recommendation:
  subgraph_depth: 8
graph:
  max_traversal_depth: 5
`)
		_, err := Initialize(ctx, dir)
		require.Error(t, err)
	})

	t.Run("malformed YAML is a load error", func(t *testing.T) {
		dir := writeConfig(t, "batch: [not a mapping")
		_, err := Initialize(ctx, dir)
		require.Error(t, err)
	})
}
