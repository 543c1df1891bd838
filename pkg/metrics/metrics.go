// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// GenerationsTotal tracks generation requests by model and terminal status.
	GenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generations_total",
			Help: "Total generation requests by terminal status",
		},
		[]string{"model", "status"},
	)

	// GenerationDuration tracks wall-clock generation duration.
	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "generation_duration_seconds",
			Help:    "Generation duration from provider open to terminal write",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 45, 60, 90, 120},
		},
		[]string{"model", "status"},
	)

	// CompletionTokensTotal tracks completion tokens reported by providers.
	CompletionTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "completion_tokens_total",
			Help: "Completion tokens reported by providers",
		},
		[]string{"model"},
	)

	// FragmentWriteFailures tracks dropped per-chunk persistence writes.
	FragmentWriteFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fragment_write_failures_total",
			Help: "Fragment merge-updates that failed and were skipped",
		},
		[]string{"field"},
	)

	// GenerationsInFlight tracks currently registered generations.
	GenerationsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "generations_in_flight",
			Help: "Generations with a registered cancellation handle",
		},
	)

	// SSEConnectionsActive tracks active SSE connections.
	SSEConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_connections_active",
			Help: "Number of active SSE connections",
		},
	)

	// ImageAssetsUploaded tracks generated image assets persisted to blob storage.
	ImageAssetsUploaded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "image_assets_uploaded_total",
			Help: "Generated image assets uploaded to blob storage",
		},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordGeneration records metrics for a finished generation.
func RecordGeneration(model, status string, duration float64, tokens int) {
	GenerationsTotal.WithLabelValues(model, status).Inc()
	GenerationDuration.WithLabelValues(model, status).Observe(duration)
	if tokens > 0 {
		CompletionTokensTotal.WithLabelValues(model).Add(float64(tokens))
	}
}

// IncrementSSEConnections increments the active SSE connection count.
func IncrementSSEConnections() {
	SSEConnectionsActive.Inc()
}

// DecrementSSEConnections decrements the active SSE connection count.
func DecrementSSEConnections() {
	SSEConnectionsActive.Dec()
}
