package compute

import (
	"math"
	"sort"

	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/models"
)

// TierTargets carries the three raw tier targets for one SLI type.
// Availability targets are ratios in [0, 1]; latency targets are milliseconds.
type TierTargets struct {
	Conservative float64
	Balanced     float64
	Aggressive   float64

	// Availability only: whether the dependency cap lowered the target.
	ConservativeCapped bool
	BalancedCapped     bool

	// Latency only: the noise margin applied to conservative and balanced.
	NoiseMargin float64
}

// AvailabilityTiers derives the three availability targets from a rolling
// series and the composite dependency bound. Conservative sits at the p0.1
// floor (the pessimistic tail), balanced at p1, aggressive at p5. Conservative
// and balanced are capped by the composite bound; aggressive deliberately is
// not, to show the service's potential absent dependencies.
func AvailabilityTiers(series []float64, composite float64) TierTargets {
	sorted := append([]float64(nil), series...)
	sort.Float64s(sorted)

	t := TierTargets{
		Conservative: Percentile(sorted, 0.001),
		Balanced:     Percentile(sorted, 0.01),
		Aggressive:   Percentile(sorted, 0.05),
	}
	if composite < t.Conservative {
		t.Conservative = composite
		t.ConservativeCapped = true
	}
	if composite < t.Balanced {
		t.Balanced = composite
		t.BalancedCapped = true
	}
	return t
}

// LatencyTiers derives the three latency thresholds from observed percentiles.
// Conservative and balanced carry the noise margin as headroom; aggressive is
// the raw p95.
func LatencyTiers(sli *models.LatencySLI, noiseMargin float64) TierTargets {
	return TierTargets{
		Conservative: math.Ceil(sli.P999MS * (1 + noiseMargin)),
		Balanced:     math.Ceil(sli.P99MS * (1 + noiseMargin)),
		Aggressive:   sli.P95MS,
		NoiseMargin:  noiseMargin,
	}
}
