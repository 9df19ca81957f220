// Package metrics defines the engine's Prometheus instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequests counts API requests by method, route, and status class.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sloengine_http_requests_total",
		Help: "API requests by method, route and status code.",
	}, []string{"method", "route", "status"})

	// HTTPDuration observes API request latency per route.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sloengine_http_request_duration_seconds",
		Help:    "API request latency by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	// IngestsTotal counts ingest operations by discovery source and outcome.
	IngestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sloengine_ingests_total",
		Help: "Ingest operations by discovery source and outcome.",
	}, []string{"source", "outcome"})

	// RecommendationsGenerated counts persisted recommendations by SLI type.
	RecommendationsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sloengine_recommendations_generated_total",
		Help: "Recommendations persisted, by SLI type.",
	}, []string{"sli_type"})

	// PipelineDuration observes full pipeline latency per service run.
	PipelineDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sloengine_pipeline_duration_seconds",
		Help:    "Recommendation pipeline latency per service.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	// BatchRuns counts completed batch runs by outcome.
	BatchRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sloengine_batch_runs_total",
		Help: "Completed batch runs by outcome.",
	}, []string{"outcome"})

	// BatchServices reports the per-run service counts of the last batch.
	BatchServices = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sloengine_batch_services",
		Help: "Service counts of the most recent batch run.",
	}, []string{"state"})

	// OpenCycles tracks the number of unresolved circular dependencies.
	OpenCycles = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sloengine_open_cycles",
		Help: "Circular dependencies currently open or acknowledged.",
	})

	// StaleEdgesMarked counts edges flagged by the staleness sweep.
	StaleEdgesMarked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sloengine_stale_edges_marked_total",
		Help: "Edges marked stale by the maintenance sweep.",
	})
)
