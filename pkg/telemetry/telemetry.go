// Package telemetry provides read access to observed SLI data. The production
// implementation queries a Prometheus-compatible store; tests use the static
// provider.
package telemetry

import (
	"context"
	"errors"

	"github.com/anant-gupta-utexas/slo-recommendation-engine-sub001/pkg/models"
)

// ErrUnavailable wraps transport-level telemetry failures so callers can
// distinguish "store down" from "no data for this service".
var ErrUnavailable = errors.New("telemetry store unavailable")

// Provider is the read contract of the telemetry store. Every method returns
// a nil result with a nil error when the service simply has no data for the
// window; errors are reserved for the store itself failing.
type Provider interface {
	// AvailabilitySLI returns the observed good/total ratio over the window.
	AvailabilitySLI(ctx context.Context, serviceID string, window models.Window) (*models.AvailabilitySLI, error)

	// LatencyPercentiles returns the p50/p95/p99/p999 latencies over the
	// window, in milliseconds.
	LatencyPercentiles(ctx context.Context, serviceID string, window models.Window) (*models.LatencySLI, error)

	// RollingAvailability returns one availability value per bucket, each
	// computed over a trailing window of rollingDays.
	RollingAvailability(ctx context.Context, serviceID string, window models.Window, rollingDays int) (models.RollingSeries, error)

	// DataCompleteness returns the fraction of expected sample buckets that
	// actually carry data, in [0, 1].
	DataCompleteness(ctx context.Context, serviceID string, window models.Window) (float64, error)
}
