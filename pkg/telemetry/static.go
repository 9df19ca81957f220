package telemetry

import (
	"context"
	"time"

	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/models"
)

// Static is a fixed-data Provider for tests. Services absent from the maps
// behave as having no telemetry; Err, when set, is returned by every call.
type Static struct {
	Availability map[string]*models.AvailabilitySLI
	Latency      map[string]*models.LatencySLI
	Rolling      map[string]models.RollingSeries
	Completeness map[string]float64
	// CompletenessByDays overrides Completeness per lookback length, keyed
	// by window days. Lets tests model history that fills in over longer
	// windows.
	CompletenessByDays map[string]map[int]float64
	Err                error
}

// NewStatic builds an empty static provider.
func NewStatic() *Static {
	return &Static{
		Availability:       make(map[string]*models.AvailabilitySLI),
		Latency:            make(map[string]*models.LatencySLI),
		Rolling:            make(map[string]models.RollingSeries),
		Completeness:       make(map[string]float64),
		CompletenessByDays: make(map[string]map[int]float64),
	}
}

// AvailabilitySLI returns the fixture for the service, if any.
func (s *Static) AvailabilitySLI(_ context.Context, serviceID string, _ models.Window) (*models.AvailabilitySLI, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	sli, ok := s.Availability[serviceID]
	if !ok {
		return nil, nil
	}
	copied := *sli
	return &copied, nil
}

// LatencyPercentiles returns the fixture for the service, if any.
func (s *Static) LatencyPercentiles(_ context.Context, serviceID string, _ models.Window) (*models.LatencySLI, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	sli, ok := s.Latency[serviceID]
	if !ok {
		return nil, nil
	}
	copied := *sli
	return &copied, nil
}

// RollingAvailability returns the fixture series for the service, if any.
func (s *Static) RollingAvailability(_ context.Context, serviceID string, _ models.Window, _ int) (models.RollingSeries, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	series, ok := s.Rolling[serviceID]
	if !ok {
		return nil, nil
	}
	return append(models.RollingSeries(nil), series...), nil
}

// DataCompleteness returns the fixture value, defaulting to 1.0 for services
// that have any availability data and 0 otherwise.
func (s *Static) DataCompleteness(_ context.Context, serviceID string, window models.Window) (float64, error) {
	if s.Err != nil {
		return 0, s.Err
	}
	if byDays, ok := s.CompletenessByDays[serviceID]; ok {
		if v, ok := byDays[window.Days()]; ok {
			return v, nil
		}
	}
	if v, ok := s.Completeness[serviceID]; ok {
		return v, nil
	}
	if _, ok := s.Availability[serviceID]; ok {
		return 1.0, nil
	}
	return 0, nil
}

// SeriesOf builds a daily rolling series from raw values, ending now. Handy
// for tests.
func SeriesOf(values ...float64) models.RollingSeries {
	start := time.Now().UTC().AddDate(0, 0, -len(values))
	series := make(models.RollingSeries, len(values))
	for i, v := range values {
		series[i] = models.RollingPoint{Bucket: start.AddDate(0, 0, i), Value: v}
	}
	return series
}
