package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	responseTime = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "response_time",
			Help:    "http response time.",
			Buckets: []float64{0.5, 1, 5, 10, 30, 60},
		},
	)

	totalHttpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "total_http_requests", Help: "http requests by code and method"},
		[]string{"code", "method"},
	)

	totalInvocations = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "total_function_invocations", Help: "function invocations by function, kind, and code"},
		[]string{"function", "kind", "code"},
	)

	invocationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "function_invocation_seconds",
			Help:    "function invocation latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"function", "kind"},
	)
)

// ObserveInvocation records one routed invocation. kind is "http" or
// "generic"; code is the wire-level status.
func ObserveInvocation(function, kind string, code int, d time.Duration) {
	totalInvocations.WithLabelValues(function, kind, strconv.Itoa(code)).Inc()
	invocationDuration.WithLabelValues(function, kind).Observe(d.Seconds())
}

func init() {
	prometheus.MustRegister(
		responseTime,
		totalHttpRequests,
		totalInvocations,
		invocationDuration,
	)
}
