package compute

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func medianStat(values []float64) float64 {
	return PercentileOf(values, 0.5)
}

func TestBootstrap(t *testing.T) {
	series := []float64{0.991, 0.993, 0.995, 0.997, 0.999, 0.9995, 0.9999, 0.998, 0.996, 0.994}

	t.Run("deterministic under the same seed", func(t *testing.T) {
		a := Bootstrap(series, 500, NewRand(42), medianStat)
		b := Bootstrap(series, 500, NewRand(42), medianStat)
		assert.Equal(t, a, b)
	})

	t.Run("different seeds may differ", func(t *testing.T) {
		a := Bootstrap(series, 500, NewRand(1), medianStat)
		b := Bootstrap(series, 500, NewRand(2), medianStat)
		// Not asserting inequality of both bounds, just that the interval is sane.
		assert.LessOrEqual(t, a.Lower, a.Upper)
		assert.LessOrEqual(t, b.Lower, b.Upper)
	})

	t.Run("interval stays within the observed range", func(t *testing.T) {
		sorted := append([]float64(nil), series...)
		sort.Float64s(sorted)
		ci := Bootstrap(series, 1000, NewRand(7), medianStat)
		require.GreaterOrEqual(t, ci.Lower, sorted[0])
		require.LessOrEqual(t, ci.Upper, sorted[len(sorted)-1])
	})

	t.Run("single element gives a degenerate interval", func(t *testing.T) {
		ci := Bootstrap([]float64{0.42}, 1000, NewRand(3), medianStat)
		assert.Equal(t, ConfidenceInterval{Lower: 0.42, Upper: 0.42}, ci)
	})

	t.Run("constant series collapses to a point", func(t *testing.T) {
		ci := Bootstrap([]float64{0.5, 0.5, 0.5, 0.5}, 200, NewRand(9), medianStat)
		assert.Equal(t, 0.5, ci.Lower)
		assert.Equal(t, 0.5, ci.Upper)
	})
}
