// Package metrics exposes Prometheus collectors for the approval workflow and
// the HTTP surface.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accessflow_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "accessflow_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	requestsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "accessflow_requests_created_total",
			Help: "Total number of access requests created",
		},
	)

	decisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accessflow_decisions_total",
			Help: "Total number of recorded approval decisions",
		},
		[]string{"role", "decision"},
	)

	transitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accessflow_transitions_total",
			Help: "Total number of request status transitions",
		},
		[]string{"status"},
	)

	provisioningTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "accessflow_provisioning_total",
			Help: "Total number of provisioning attempts by outcome",
		},
		[]string{"outcome"},
	)
)

// RecordHTTPRequest records an HTTP request
func RecordHTTPRequest(method, route string, statusCode int, durationSeconds float64) {
	httpRequestsTotal.WithLabelValues(method, route, StatusClass(statusCode)).Inc()
	httpRequestDuration.WithLabelValues(method, route).Observe(durationSeconds)
}

// StatusClass buckets a status code as 2xx, 3xx, 4xx or 5xx.
func StatusClass(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return "2xx"
	case statusCode >= 300 && statusCode < 400:
		return "3xx"
	case statusCode >= 400 && statusCode < 500:
		return "4xx"
	case statusCode >= 500:
		return "5xx"
	}
	return "unknown"
}

// RecordCreated counts a created request.
func RecordCreated() {
	requestsCreated.Inc()
}

// RecordDecision counts a recorded decision.
func RecordDecision(role, decision string) {
	decisionsTotal.WithLabelValues(role, decision).Inc()
}

// RecordTransition counts a status transition.
func RecordTransition(status string) {
	transitionsTotal.WithLabelValues(status).Inc()
}

// RecordProvisioning counts a provisioning attempt; outcome is ok or failed.
func RecordProvisioning(outcome string) {
	provisioningTotal.WithLabelValues(outcome).Inc()
}

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
