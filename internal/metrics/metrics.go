package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mikey/email-classifier/internal/core"
)

const namespace = "email_classifier"

// Rate limited surfaces
const (
	SurfaceHTTP = "http"
	SurfaceSMTP = "smtp"
)

// Metrics holds the Prometheus collectors of the classifier.
// It implements core.Observer.
type Metrics struct {
	registry        *prometheus.Registry
	classifications *prometheus.CounterVec
	duration        prometheus.Histogram
	attempts        *prometheus.CounterVec
	rateLimited     *prometheus.CounterVec
}

// New creates the collectors on a dedicated registry
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		classifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "classifications_total",
			Help:      "Classification requests by outcome code.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "classification_duration_seconds",
			Help:      "End to end classification latency.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60, 120},
		}),
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completion_attempts_total",
			Help:      "Completion service attempts by provider and outcome.",
		}, []string{"provider", "outcome"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}, []string{"surface"}),
	}

	m.registry.MustRegister(
		m.classifications,
		m.duration,
		m.attempts,
		m.rateLimited,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// ObserveAttempt counts one completion attempt
func (m *Metrics) ObserveAttempt(provider string, attempt core.CompletionAttempt) {
	m.attempts.WithLabelValues(provider, string(attempt.Outcome)).Inc()
}

// ObserveClassification counts a finished classification and its latency
func (m *Metrics) ObserveClassification(outcome string, duration time.Duration) {
	m.classifications.WithLabelValues(outcome).Inc()
	m.duration.Observe(duration.Seconds())
}

// RateLimited counts a rejection on the given surface
func (m *Metrics) RateLimited(surface string) {
	m.rateLimited.WithLabelValues(surface).Inc()
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
