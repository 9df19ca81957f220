package compute

import (
	"fmt"
	"math"
	"sort"

	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/models"
)

// Feature names used by the fixed weight tables.
const (
	FeatureHistoricalAvailability = "historical_availability"
	FeatureDownstreamRisk         = "downstream_risk"
	FeatureExternalReliability    = "external_reliability"
	FeatureDeploymentFreq         = "deployment_freq"

	FeatureP99Historical      = "p99_historical"
	FeatureCallChainDepth     = "call_chain_depth"
	FeatureNoisyNeighbor      = "noisy_neighbor"
	FeatureTrafficSeasonality = "traffic_seasonality"
)

// AvailabilityWeights is the fixed attribution weight table for availability
// recommendations. Weights sum to 1.0.
func AvailabilityWeights() map[string]float64 {
	return map[string]float64{
		FeatureHistoricalAvailability: 0.40,
		FeatureDownstreamRisk:         0.30,
		FeatureExternalReliability:    0.15,
		FeatureDeploymentFreq:         0.15,
	}
}

// LatencyWeights is the fixed attribution weight table for latency
// recommendations. Weights sum to 1.0.
func LatencyWeights() map[string]float64 {
	return map[string]float64{
		FeatureP99Historical:      0.50,
		FeatureCallChainDepth:     0.22,
		FeatureNoisyNeighbor:      0.15,
		FeatureTrafficSeasonality: 0.13,
	}
}

// Attribute computes the weighted feature attribution for one SLI type.
// inputs must carry exactly the keys of the weight table; missing or extra
// keys are an error. Contributions are normalized to sum to 1.0 and returned
// sorted by absolute contribution, descending. If every weighted input is
// zero, the contribution is distributed uniformly.
func Attribute(weights, inputs map[string]float64) ([]models.FeatureContribution, error) {
	if len(inputs) != len(weights) {
		return nil, fmt.Errorf("attribution inputs carry %d features, weight table has %d", len(inputs), len(weights))
	}
	for feature := range inputs {
		if _, ok := weights[feature]; !ok {
			return nil, fmt.Errorf("unexpected attribution feature %q", feature)
		}
	}

	out := make([]models.FeatureContribution, 0, len(weights))
	total := 0.0
	for feature, weight := range weights {
		raw := inputs[feature]
		contribution := raw * weight
		total += math.Abs(contribution)
		out = append(out, models.FeatureContribution{
			Feature:      feature,
			Weight:       weight,
			RawValue:     raw,
			Contribution: contribution,
		})
	}

	if total == 0 {
		uniform := 1.0 / float64(len(out))
		for i := range out {
			out[i].Contribution = uniform
		}
	} else {
		for i := range out {
			out[i].Contribution = math.Abs(out[i].Contribution) / total
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Contribution != out[j].Contribution {
			return out[i].Contribution > out[j].Contribution
		}
		return out[i].Feature < out[j].Feature
	})
	return out, nil
}
