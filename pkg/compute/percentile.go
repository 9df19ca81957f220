// Package compute holds the pure domain math: percentiles, bootstrap
// confidence intervals, composite availability, the external-SLA buffer, and
// weighted feature attribution. Nothing here performs I/O or suspends.
package compute

import "sort"

// Percentile returns the q-th quantile (q in [0, 1]) of a sorted ascending
// slice using linear interpolation between adjacent order statistics.
// An empty input is a programmer error and panics; a single-element input
// returns that element.
func Percentile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		panic("compute: percentile of empty slice")
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(pos)
	frac := pos - float64(lo)
	if lo+1 >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	return sorted[lo] + frac*(sorted[lo+1]-sorted[lo])
}

// PercentileOf sorts a copy of values and returns the q-th quantile.
func PercentileOf(values []float64, q float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	return Percentile(sorted, q)
}

// BreachProbability estimates the probability of breaching target as the
// fraction of series values strictly below it.
func BreachProbability(series []float64, target float64) float64 {
	if len(series) == 0 {
		return 0
	}
	breaches := 0
	for _, v := range series {
		if v < target {
			breaches++
		}
	}
	return float64(breaches) / float64(len(series))
}
