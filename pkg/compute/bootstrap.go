package compute

import "math/rand/v2"

// Statistic reduces a resampled series to a single value.
type Statistic func(values []float64) float64

// ConfidenceInterval is a two-sided bootstrap interval.
type ConfidenceInterval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// NewRand returns a seeded PRNG for one bootstrap invocation. Every pipeline
// run gets its own source, so runs are reproducible and share no state.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Bootstrap resamples values with replacement `resamples` times, evaluates
// stat on each resample, and returns the 2.5th and 97.5th percentiles of the
// statistic distribution. A single-element input yields the degenerate
// interval [x, x]. Empty input is a programmer error and panics via Percentile.
func Bootstrap(values []float64, resamples int, rng *rand.Rand, stat Statistic) ConfidenceInterval {
	if len(values) == 1 {
		v := stat(values)
		return ConfidenceInterval{Lower: v, Upper: v}
	}
	if resamples <= 0 {
		resamples = 1000
	}
	stats := make([]float64, resamples)
	resample := make([]float64, len(values))
	for i := 0; i < resamples; i++ {
		for j := range resample {
			resample[j] = values[rng.IntN(len(values))]
		}
		stats[i] = stat(resample)
	}
	return ConfidenceInterval{
		Lower: PercentileOf(stats, 0.025),
		Upper: PercentileOf(stats, 0.975),
	}
}
