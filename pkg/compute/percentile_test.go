package compute

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPercentile(t *testing.T) {
	t.Run("single element returns that element", func(t *testing.T) {
		assert.Equal(t, 0.42, Percentile([]float64{0.42}, 0.5))
		assert.Equal(t, 0.42, Percentile([]float64{0.42}, 0.001))
	})

	t.Run("interpolates between order statistics", func(t *testing.T) {
		sorted := []float64{1, 2, 3, 4, 5}
		assert.InDelta(t, 3.0, Percentile(sorted, 0.5), 1e-9)
		assert.InDelta(t, 1.04, Percentile(sorted, 0.01), 1e-9)
		assert.InDelta(t, 4.96, Percentile(sorted, 0.99), 1e-9)
	})

	t.Run("clamps at the extremes", func(t *testing.T) {
		sorted := []float64{1, 2, 3}
		assert.Equal(t, 1.0, Percentile(sorted, 0))
		assert.Equal(t, 3.0, Percentile(sorted, 1))
	})

	t.Run("empty input panics", func(t *testing.T) {
		require.Panics(t, func() { Percentile(nil, 0.5) })
	})

	t.Run("PercentileOf does not mutate its input", func(t *testing.T) {
		values := []float64{3, 1, 2}
		_ = PercentileOf(values, 0.5)
		assert.Equal(t, []float64{3, 1, 2}, values)
	})
}

func TestBreachProbability(t *testing.T) {
	tests := []struct {
		name   string
		series []float64
		target float64
		want   float64
	}{
		{"empty series", nil, 0.999, 0},
		{"no breaches", []float64{0.999, 0.999, 1.0}, 0.999, 0},
		{"all breach", []float64{0.99, 0.98}, 0.999, 1},
		{"half breach", []float64{0.99, 0.98, 0.9995, 1.0}, 0.999, 0.5},
		{"perfect series at 100 percent target", []float64{1, 1, 1}, 1.0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, BreachProbability(tt.series, tt.target), 1e-9)
		})
	}
}
