// Package observability exports Prometheus metrics for catalog calls and the
// HTTP surface.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	SideClient = "client"
	SideServer = "server"

	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var (
	// CallsTotal counts completed calls by side, operation, and outcome.
	CallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uapi_calls_total",
			Help: "Completed operation calls",
		},
		[]string{"side", "operation", "outcome"},
	)

	CallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "uapi_call_duration_seconds",
			Help:    "Operation call duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"side", "operation"},
	)

	// HTTPRequestsTotal counts HTTP requests by method, route pattern, and
	// status class.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uapi_http_requests_total",
			Help: "HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "uapi_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

func init() {
	prometheus.MustRegister(
		CallsTotal,
		CallDuration,
		HTTPRequestsTotal,
		HTTPRequestDuration,
	)
}

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }
