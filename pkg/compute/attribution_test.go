package compute

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeightTables(t *testing.T) {
	for name, table := range map[string]map[string]float64{
		"availability": AvailabilityWeights(),
		"latency":      LatencyWeights(),
	} {
		t.Run(name+" weights sum to 1.0", func(t *testing.T) {
			sum := 0.0
			for _, w := range table {
				sum += w
			}
			assert.InDelta(t, 1.0, sum, 1e-9)
		})
	}
}

func TestAttribute(t *testing.T) {
	weights := AvailabilityWeights()

	t.Run("contributions normalize to 1.0 and sort descending", func(t *testing.T) {
		inputs := map[string]float64{
			FeatureHistoricalAvailability: 0.9993,
			FeatureDownstreamRisk:         0.4,
			FeatureExternalReliability:    0.2,
			FeatureDeploymentFreq:         0.1,
		}
		contributions, err := Attribute(weights, inputs)
		require.NoError(t, err)
		require.Len(t, contributions, 4)

		sum := 0.0
		for i, c := range contributions {
			sum += c.Contribution
			if i > 0 {
				assert.GreaterOrEqual(t, contributions[i-1].Contribution, c.Contribution)
			}
		}
		assert.InDelta(t, 1.0, sum, 1e-6)
		assert.Equal(t, FeatureHistoricalAvailability, contributions[0].Feature)
	})

	t.Run("missing feature is an error", func(t *testing.T) {
		_, err := Attribute(weights, map[string]float64{
			FeatureHistoricalAvailability: 1,
		})
		require.Error(t, err)
	})

	t.Run("extra feature is an error", func(t *testing.T) {
		inputs := map[string]float64{
			FeatureHistoricalAvailability: 1,
			FeatureDownstreamRisk:         1,
			FeatureExternalReliability:    1,
			FeatureDeploymentFreq:         1,
			"surprise":                    1,
		}
		_, err := Attribute(weights, inputs)
		require.Error(t, err)
	})

	t.Run("all-zero inputs distribute uniformly", func(t *testing.T) {
		inputs := map[string]float64{
			FeatureHistoricalAvailability: 0,
			FeatureDownstreamRisk:         0,
			FeatureExternalReliability:    0,
			FeatureDeploymentFreq:         0,
		}
		contributions, err := Attribute(weights, inputs)
		require.NoError(t, err)
		for _, c := range contributions {
			assert.InDelta(t, 0.25, c.Contribution, 1e-9)
		}
	})
}
