package compute

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompositeAvailability(t *testing.T) {
	t.Run("zero hard deps: composite equals self", func(t *testing.T) {
		result := CompositeAvailability(0.999, nil, nil)
		assert.Equal(t, 0.999, result.Composite)
		assert.Empty(t, result.Bottleneck)
	})

	t.Run("one hard dep: composite is the product", func(t *testing.T) {
		deps := []DependencyAvailability{{ServiceID: "db", Availability: 0.9995, HardSync: true}}
		result := CompositeAvailability(0.999, deps, nil)
		assert.InDelta(t, 0.999*0.9995, result.Composite, 1e-12)
		assert.Equal(t, 1, result.HardCount)
		assert.Equal(t, "db", result.Bottleneck)
	})

	t.Run("serial chain matches hand computation", func(t *testing.T) {
		// A depends on B and C: R_A = 0.999, R_B = 0.9995, R_C = 0.9999.
		deps := []DependencyAvailability{
			{ServiceID: "B", Availability: 0.9995, HardSync: true},
			{ServiceID: "C", Availability: 0.9999, HardSync: true},
		}
		result := CompositeAvailability(0.999, deps, nil)
		assert.InDelta(t, 0.999*0.9995*0.9999, result.Composite, 1e-12)
		assert.Equal(t, 2, result.HardCount)
		assert.Equal(t, "B", result.Bottleneck)
	})

	t.Run("soft deps are excluded and reported as risk", func(t *testing.T) {
		deps := []DependencyAvailability{
			{ServiceID: "cache", Availability: 0.9, HardSync: false},
			{ServiceID: "db", Availability: 0.9999, HardSync: true},
		}
		result := CompositeAvailability(0.999, deps, nil)
		assert.InDelta(t, 0.999*0.9999, result.Composite, 1e-12)
		assert.Equal(t, 1, result.SoftCount)
		assert.Equal(t, []string{"cache"}, result.SoftRisks)
	})

	t.Run("SCC members collapse into a min-availability supernode", func(t *testing.T) {
		deps := []DependencyAvailability{
			{ServiceID: "x", Availability: 0.999, HardSync: true},
			{ServiceID: "y", Availability: 0.995, HardSync: true},
		}
		result := CompositeAvailability(0.9999, deps, [][]string{{"y", "x"}})
		assert.InDelta(t, 0.9999*0.995, result.Composite, 1e-12)
		assert.Equal(t, "cycle:x,y", result.Bottleneck)
	})

	t.Run("redundancy group combines in parallel", func(t *testing.T) {
		deps := []DependencyAvailability{
			{ServiceID: "replica-a", Availability: 0.99, HardSync: true, RedundancyGroup: "store"},
			{ServiceID: "replica-b", Availability: 0.99, HardSync: true, RedundancyGroup: "store"},
		}
		result := CompositeAvailability(1.0, deps, nil)
		// 1 - (1 - 0.99)^2 = 0.9999
		assert.InDelta(t, 0.9999, result.Composite, 1e-12)
	})

	t.Run("bottleneck is the weakest factor with its delta", func(t *testing.T) {
		deps := []DependencyAvailability{
			{ServiceID: "good", Availability: 0.9999, HardSync: true},
			{ServiceID: "bad", Availability: 0.99, HardSync: true},
		}
		result := CompositeAvailability(0.999, deps, nil)
		require.Equal(t, "bad", result.Bottleneck)
		// Removing "bad" lifts the bound from R to R/0.99.
		assert.InDelta(t, result.Composite/0.99-result.Composite, result.BottleneckDelta, 1e-12)
	})
}

func TestEffectiveExternalAvailability(t *testing.T) {
	obs := func(v float64) *float64 { return &v }

	tests := []struct {
		name      string
		observed  *float64
		published *float64
		want      float64
	}{
		{"only published SLA applies the 10x buffer", nil, obs(0.9999), 0.9989},
		{"only observation is used as-is", obs(0.9975), nil, 0.9975},
		{"both present takes the minimum", obs(0.995), obs(0.9999), 0.995},
		{"both present, adjusted SLA lower", obs(0.9999), obs(0.999), 0.989},
		{"neither falls back to the default", nil, nil, 0.999},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EffectiveExternalAvailability(tt.observed, tt.published, 11, 0.999)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}

	t.Run("buffered SLA never goes negative", func(t *testing.T) {
		got := EffectiveExternalAvailability(nil, obs(0.5), 11, 0.999)
		assert.Equal(t, 0.0, got)
	})
}
