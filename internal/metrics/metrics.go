package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexus_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	// Run metrics
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexus_runs_total",
			Help: "Runs by terminal outcome of the compute phase",
		},
		[]string{"outcome"}, // complete, failed, cancelled, expired
	)

	RunStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nexus_run_stage_duration_seconds",
			Help:    "Duration of each pipeline stage",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"stage"}, // resolve, allocate, diff, dispatch
	)

	RunsAwaitingConfirmation = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "nexus_runs_awaiting_confirmation",
			Help: "Runs parked until a confirmation or cancellation arrives",
		},
	)

	DispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexus_dispatch_total",
			Help: "Dispatcher outcomes",
		},
		[]string{"dispatcher", "status"},
	)

	// Definition metrics
	ValidationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexus_validation_failures_total",
			Help: "Definitions rejected by the validator, by error kind",
		},
		[]string{"kind"},
	)

	// Market data metrics
	QuoteCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nexus_quote_cache_lookups_total",
			Help: "Quote cache lookups by result",
		},
		[]string{"result"}, // hit, miss
	)
)
