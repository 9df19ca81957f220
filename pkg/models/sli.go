package models

import (
	"fmt"
	"time"
)

// Window is a half-open telemetry time range [Start, End).
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Validate checks that the window is well-formed.
func (w Window) Validate() error {
	if !w.Start.Before(w.End) {
		return fmt.Errorf("window start %s must precede end %s", w.Start, w.End)
	}
	return nil
}

// Days returns the window length in whole days, rounded down.
func (w Window) Days() int {
	return int(w.End.Sub(w.Start).Hours() / 24)
}

// AvailabilitySLI is an observed availability ratio over a window.
type AvailabilitySLI struct {
	GoodEvents        int64   `json:"good_events"`
	TotalEvents       int64   `json:"total_events"`
	AvailabilityRatio float64 `json:"availability_ratio"`
	Window            Window  `json:"window"`
	SampleCount       int     `json:"sample_count"`
}

// NewAvailabilitySLI builds an availability SLI, enforcing the value object
// invariants (0 <= good <= total, ratio in [0, 1]).
func NewAvailabilitySLI(good, total int64, window Window, samples int) (*AvailabilitySLI, error) {
	if good < 0 || total < 0 || good > total {
		return nil, fmt.Errorf("invalid event counts good=%d total=%d", good, total)
	}
	if err := window.Validate(); err != nil {
		return nil, err
	}
	ratio := 1.0
	if total > 0 {
		ratio = float64(good) / float64(total)
	}
	return &AvailabilitySLI{
		GoodEvents:        good,
		TotalEvents:       total,
		AvailabilityRatio: ratio,
		Window:            window,
		SampleCount:       samples,
	}, nil
}

// LatencySLI is a set of ordered latency percentiles over a window.
type LatencySLI struct {
	P50MS       float64 `json:"p50_ms"`
	P95MS       float64 `json:"p95_ms"`
	P99MS       float64 `json:"p99_ms"`
	P999MS      float64 `json:"p999_ms"`
	Window      Window  `json:"window"`
	SampleCount int     `json:"sample_count"`
}

// Validate checks non-negativity and percentile ordering.
func (l *LatencySLI) Validate() error {
	if l.P50MS < 0 {
		return fmt.Errorf("latency percentiles must be non-negative")
	}
	if l.P50MS > l.P95MS || l.P95MS > l.P99MS || l.P99MS > l.P999MS {
		return fmt.Errorf("latency percentiles must satisfy p50 <= p95 <= p99 <= p999")
	}
	return l.Window.Validate()
}

// RollingPoint is one bucket of a rolling availability series.
type RollingPoint struct {
	Bucket time.Time `json:"bucket"`
	Value  float64   `json:"value"`
}

// RollingSeries is an ordered rolling-window series, one value per bucket.
type RollingSeries []RollingPoint

// Values returns just the series values, in bucket order.
func (s RollingSeries) Values() []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Value
	}
	return out
}
