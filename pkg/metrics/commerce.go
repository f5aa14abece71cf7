package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CommerceMetrics records latency and failures of calls against the commerce API.
type CommerceMetrics struct {
	duration *prometheus.HistogramVec
	failure  *prometheus.CounterVec
}

// NewCommerceMetrics registers the commerce client metrics on the provided registerer.
func NewCommerceMetrics(reg prometheus.Registerer) *CommerceMetrics {
	if reg == nil {
		return &CommerceMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "commerce_request_duration_seconds",
		Help:    "Duration of commerce API requests in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "commerce_request_failures_total",
		Help: "Failed commerce API requests by failure kind.",
	}, []string{"operation", "kind"})
	reg.MustRegister(duration, failure)
	return &CommerceMetrics{
		duration: duration,
		failure:  failure,
	}
}

// ObserveDuration records the request duration for the named operation.
func (c *CommerceMetrics) ObserveDuration(operation string, duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(operation)).Observe(duration.Seconds())
}

// IncFailure counts a failed request; kind is "transport", "status" or "schema".
func (c *CommerceMetrics) IncFailure(operation, kind string) {
	if c == nil || c.failure == nil {
		return
	}
	c.failure.WithLabelValues(normalizeLabel(operation), normalizeLabel(kind)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
