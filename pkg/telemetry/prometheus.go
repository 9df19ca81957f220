package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/prometheus/client_golang/api"
	promv1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"

	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/models"
)

// Metric conventions the engine expects from the telemetry pipeline.
const (
	requestsMetric = "slo_requests_total"
	latencyMetric  = "slo_request_duration_seconds_bucket"
)

// PrometheusProvider implements Provider against a Prometheus-compatible
// HTTP API.
type PrometheusProvider struct {
	api     promv1.API
	timeout time.Duration
}

// NewPrometheusProvider builds a provider for the given base URL.
func NewPrometheusProvider(address string, timeout time.Duration) (*PrometheusProvider, error) {
	client, err := api.NewClient(api.Config{Address: address})
	if err != nil {
		return nil, fmt.Errorf("create prometheus client: %w", err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &PrometheusProvider{
		api:     promv1.NewAPI(client),
		timeout: timeout,
	}, nil
}

// AvailabilitySLI computes the good/total event ratio over the window.
func (p *PrometheusProvider) AvailabilitySLI(ctx context.Context, serviceID string, window models.Window) (*models.AvailabilitySLI, error) {
	rangeStr := rangeDuration(window)

	total, ok, err := p.queryScalar(ctx,
		fmt.Sprintf(`sum(increase(%s{service=%q}[%s]))`, requestsMetric, serviceID, rangeStr),
		window.End)
	if err != nil {
		return nil, err
	}
	if !ok || total <= 0 {
		return nil, nil
	}

	good, ok, err := p.queryScalar(ctx,
		fmt.Sprintf(`sum(increase(%s{service=%q,outcome="good"}[%s]))`, requestsMetric, serviceID, rangeStr),
		window.End)
	if err != nil {
		return nil, err
	}
	if !ok {
		good = 0
	}
	if good > total {
		good = total
	}

	return models.NewAvailabilitySLI(int64(math.Round(good)), int64(math.Round(total)), window, int(math.Round(total)))
}

// LatencyPercentiles computes p50/p95/p99/p999 over the window, in
// milliseconds.
func (p *PrometheusProvider) LatencyPercentiles(ctx context.Context, serviceID string, window models.Window) (*models.LatencySLI, error) {
	rangeStr := rangeDuration(window)
	quantiles := []float64{0.5, 0.95, 0.99, 0.999}
	values := make([]float64, len(quantiles))

	for i, q := range quantiles {
		query := fmt.Sprintf(
			`1000 * histogram_quantile(%g, sum by (le) (rate(%s{service=%q}[%s])))`,
			q, latencyMetric, serviceID, rangeStr)
		v, ok, err := p.queryScalar(ctx, query, window.End)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		values[i] = v
	}

	// histogram_quantile on sparse buckets can produce tiny inversions.
	for i := 1; i < len(values); i++ {
		if values[i] < values[i-1] {
			values[i] = values[i-1]
		}
	}

	sli := &models.LatencySLI{
		P50MS:  values[0],
		P95MS:  values[1],
		P99MS:  values[2],
		P999MS: values[3],
		Window: window,
	}
	if err := sli.Validate(); err != nil {
		return nil, fmt.Errorf("latency percentiles for %s: %w", serviceID, err)
	}
	return sli, nil
}

// RollingAvailability returns one trailing-window availability value per
// daily bucket.
func (p *PrometheusProvider) RollingAvailability(ctx context.Context, serviceID string, window models.Window, rollingDays int) (models.RollingSeries, error) {
	trailing := fmt.Sprintf("%dd", rollingDays)
	query := fmt.Sprintf(
		`sum(increase(%s{service=%q,outcome="good"}[%s])) / sum(increase(%s{service=%q}[%s]))`,
		requestsMetric, serviceID, trailing, requestsMetric, serviceID, trailing)

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	value, warnings, err := p.api.QueryRange(ctx, query, promv1.Range{
		Start: window.Start,
		End:   window.End,
		Step:  24 * time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: query_range: %v", ErrUnavailable, err)
	}
	logWarnings(query, warnings)

	matrix, ok := value.(model.Matrix)
	if !ok || len(matrix) == 0 {
		return nil, nil
	}

	var series models.RollingSeries
	for _, sample := range matrix[0].Values {
		v := float64(sample.Value)
		if math.IsNaN(v) {
			continue
		}
		series = append(series, models.RollingPoint{
			Bucket: sample.Timestamp.Time(),
			Value:  v,
		})
	}
	if len(series) == 0 {
		return nil, nil
	}
	return series, nil
}

// DataCompleteness returns the fraction of hourly buckets in the window that
// carry request samples.
func (p *PrometheusProvider) DataCompleteness(ctx context.Context, serviceID string, window models.Window) (float64, error) {
	query := fmt.Sprintf(`sum(rate(%s{service=%q}[1h]))`, requestsMetric, serviceID)

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	value, warnings, err := p.api.QueryRange(ctx, query, promv1.Range{
		Start: window.Start,
		End:   window.End,
		Step:  time.Hour,
	})
	if err != nil {
		return 0, fmt.Errorf("%w: query_range: %v", ErrUnavailable, err)
	}
	logWarnings(query, warnings)

	matrix, ok := value.(model.Matrix)
	if !ok || len(matrix) == 0 {
		return 0, nil
	}

	expected := int(window.End.Sub(window.Start) / time.Hour)
	if expected <= 0 {
		return 0, nil
	}
	present := 0
	for _, sample := range matrix[0].Values {
		if v := float64(sample.Value); !math.IsNaN(v) && v > 0 {
			present++
		}
	}
	if present > expected {
		present = expected
	}
	return float64(present) / float64(expected), nil
}

// queryScalar runs an instant query expected to yield a single sample. The
// second return is false when no sample exists.
func (p *PrometheusProvider) queryScalar(ctx context.Context, query string, ts time.Time) (float64, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	value, warnings, err := p.api.Query(ctx, query, ts)
	if err != nil {
		return 0, false, fmt.Errorf("%w: query: %v", ErrUnavailable, err)
	}
	logWarnings(query, warnings)

	vector, ok := value.(model.Vector)
	if !ok || len(vector) == 0 {
		return 0, false, nil
	}
	v := float64(vector[0].Value)
	if math.IsNaN(v) {
		return 0, false, nil
	}
	return v, true, nil
}

func logWarnings(query string, warnings promv1.Warnings) {
	for _, w := range warnings {
		slog.Debug("Prometheus query warning", "query", query, "warning", w)
	}
}

func rangeDuration(window models.Window) string {
	return model.Duration(window.End.Sub(window.Start)).String()
}
