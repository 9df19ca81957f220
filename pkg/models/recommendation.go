package models

import (
	"fmt"
	"math"
	"time"
)

// SLIType selects which indicator a recommendation targets.
type SLIType string

// SLI types.
const (
	SLIAvailability SLIType = "availability"
	SLILatency      SLIType = "latency"
)

// Valid reports whether t is a known SLI type.
func (t SLIType) Valid() bool {
	return t == SLIAvailability || t == SLILatency
}

// AllSLITypes lists every SLI type the pipeline can compute.
func AllSLITypes() []SLIType {
	return []SLIType{SLIAvailability, SLILatency}
}

// TierName identifies one of the three recommendation tiers.
type TierName string

// Tier names.
const (
	TierConservative TierName = "conservative"
	TierBalanced     TierName = "balanced"
	TierAggressive   TierName = "aggressive"
)

// Valid reports whether n is a known tier name.
func (n TierName) Valid() bool {
	return n == TierConservative || n == TierBalanced || n == TierAggressive
}

// RecommendationStatus is the lifecycle state of a recommendation.
type RecommendationStatus string

// Recommendation statuses.
const (
	StatusActive     RecommendationStatus = "active"
	StatusSuperseded RecommendationStatus = "superseded"
	StatusExpired    RecommendationStatus = "expired"
)

// Tier is one computed target with its supporting statistics.
// Target is a percentage for availability SLIs and milliseconds for latency.
type Tier struct {
	Target                 float64  `json:"target"`
	BreachProbability      float64  `json:"breach_probability"`
	ConfidenceLower        float64  `json:"confidence_interval_lower"`
	ConfidenceUpper        float64  `json:"confidence_interval_upper"`
	ErrorBudgetMinutes     *float64 `json:"error_budget_minutes,omitempty"`
	CappedByDependencies   bool     `json:"capped_by_dependencies,omitempty"`
	NoiseMarginApplied     float64  `json:"noise_margin_applied,omitempty"`
}

// FeatureContribution is one ranked entry of a weighted attribution.
type FeatureContribution struct {
	Feature      string  `json:"feature"`
	Weight       float64 `json:"weight"`
	RawValue     float64 `json:"raw_value"`
	Contribution float64 `json:"contribution"`
}

// DependencyImpact summarizes how the dependency chain bounded the targets.
type DependencyImpact struct {
	CompositeAvailability float64 `json:"composite_availability"`
	HardDependencies      int     `json:"hard_dependencies"`
	SoftDependencies      int     `json:"soft_dependencies"`
	Bottleneck            string  `json:"bottleneck,omitempty"`
	BottleneckDelta       float64 `json:"bottleneck_delta,omitempty"`
}

// Explanation carries the human-readable reasoning behind a recommendation.
type Explanation struct {
	Summary          string                `json:"summary"`
	Attribution      []FeatureContribution `json:"attribution"`
	DependencyImpact *DependencyImpact     `json:"dependency_impact,omitempty"`
}

// DataQuality describes how trustworthy the underlying telemetry was.
type DataQuality struct {
	Completeness       float64  `json:"completeness"`
	Gaps               []string `json:"gaps,omitempty"`
	ConfidenceNote     string   `json:"confidence_note,omitempty"`
	IsColdStart        bool     `json:"is_cold_start"`
	LookbackDaysActual int      `json:"lookback_days_actual"`
}

// Recommendation is one computed SLO recommendation for a (service, SLI type)
// pair. At most one row per pair is active at any moment.
type Recommendation struct {
	ID                   string               `json:"id" db:"id"`
	ServiceID            string               `json:"service_id" db:"service_id"`
	SLIType              SLIType              `json:"sli_type" db:"sli_type"`
	Metric               string               `json:"metric" db:"metric"`
	Tiers                map[TierName]Tier    `json:"tiers" db:"-"`
	Explanation          Explanation          `json:"explanation" db:"-"`
	DataQuality          DataQuality          `json:"data_quality" db:"-"`
	LookbackWindowStart  time.Time            `json:"lookback_window_start" db:"lookback_window_start"`
	LookbackWindowEnd    time.Time            `json:"lookback_window_end" db:"lookback_window_end"`
	GeneratedAt          time.Time            `json:"generated_at" db:"generated_at"`
	ExpiresAt            time.Time            `json:"expires_at" db:"expires_at"`
	Status               RecommendationStatus `json:"status" db:"status"`
}

// Validate checks the recommendation invariants.
func (r *Recommendation) Validate() error {
	if r.ServiceID == "" {
		return fmt.Errorf("service_id is required")
	}
	if !r.SLIType.Valid() {
		return fmt.Errorf("invalid sli_type %q", r.SLIType)
	}
	if !r.LookbackWindowStart.Before(r.LookbackWindowEnd) {
		return fmt.Errorf("lookback window start must precede end")
	}
	if len(r.Tiers) != 3 {
		return fmt.Errorf("exactly three tiers required, got %d", len(r.Tiers))
	}
	for name, tier := range r.Tiers {
		if !name.Valid() {
			return fmt.Errorf("unknown tier %q", name)
		}
		if tier.BreachProbability < 0 || tier.BreachProbability > 1 {
			return fmt.Errorf("tier %s breach probability %v outside [0, 1]", name, tier.BreachProbability)
		}
	}
	if n := len(r.Explanation.Attribution); n > 0 {
		sum := 0.0
		for _, c := range r.Explanation.Attribution {
			sum += c.Contribution
		}
		if math.Abs(sum-1.0) > 1e-6 {
			return fmt.Errorf("attribution contributions sum to %v, want 1.0", sum)
		}
	}
	return nil
}

// ErrorBudgetMinutes converts an availability target percentage into the
// monthly error budget in minutes (43 200 minutes per 30-day month).
func ErrorBudgetMinutes(targetPct float64) float64 {
	return (1 - targetPct/100) * 43200
}

// RecommendationSet groups the per-SLI-type results of one pipeline run.
type RecommendationSet struct {
	ServiceID       string            `json:"service_id"`
	Recommendations []*Recommendation `json:"recommendations"`
	Notes           []string          `json:"notes,omitempty"`
}
