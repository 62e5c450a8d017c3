// Package metrics defines the Prometheus collectors shared by the web and
// transcoder binaries. All metrics are prefixed with "videoflix_".
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videoflix_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "videoflix_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	UploadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "videoflix_upload_bytes_total",
			Help: "Total bytes of uploaded source files",
		},
	)
)

// Dispatch metrics
var (
	// DispatchTotal counts upload dispatch decisions by outcome
	// ("enqueued", "no_source", "not_created", "missing_file", "error").
	DispatchTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videoflix_dispatch_total",
			Help: "Conversion dispatch decisions by outcome",
		},
		[]string{"outcome"},
	)
)

// Conversion metrics
var (
	ConversionStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "videoflix_conversion_stage_duration_seconds",
			Help:    "Duration of each conversion stage in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"stage"},
	)

	ConversionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videoflix_conversions_total",
			Help: "Finished conversions by result",
		},
		[]string{"result"}, // "succeeded", "failed", "source_missing"
	)

	ConversionsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "videoflix_conversions_in_flight",
			Help: "Number of conversions currently running",
		},
	)
)

// Job queue metrics
var (
	JobsDequeuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "videoflix_jobs_dequeued_total",
			Help: "Total number of conversion jobs claimed by workers",
		},
	)

	JobsLeaseBusyTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "videoflix_jobs_lease_busy_total",
			Help: "Jobs released because another worker held the video lease",
		},
	)

	JobsRecoveredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "videoflix_jobs_recovered_total",
			Help: "Stuck processing jobs returned to pending",
		},
	)

	JobsExhaustedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "videoflix_jobs_exhausted_total",
			Help: "Jobs failed permanently after reaching the attempt limit",
		},
	)
)

// Auth metrics
var (
	AuthEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "videoflix_auth_events_total",
			Help: "Authentication events by kind and result",
		},
		[]string{"event", "result"},
	)
)
