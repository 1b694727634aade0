// Package metrics exposes Prometheus collectors for the relay.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains the relay's Prometheus collectors. Construct one per
// process with New and register handlers against its registry.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal    *prometheus.CounterVec
	rejectionsTotal  *prometheus.CounterVec
	providerDuration *prometheus.HistogramVec
	providerFailures *prometheus.CounterVec
	ledgerEvictions  prometheus.Counter
}

// New creates a Metrics instance backed by its own registry, so tests can
// construct as many as they like without collector name collisions.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flicker_relay_requests_total",
				Help: "Total chat requests by category and outcome",
			},
			[]string{"category", "outcome"},
		),

		rejectionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flicker_relay_rejections_total",
				Help: "Total admission rejections by stage",
			},
			[]string{"stage"},
		),

		providerDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flicker_relay_provider_duration_seconds",
				Help:    "Upstream provider call latency",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider", "category"},
		),

		providerFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "flicker_relay_provider_failures_total",
				Help: "Upstream provider call failures",
			},
			[]string{"provider"},
		),

		ledgerEvictions: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "flicker_relay_ledger_evictions_total",
				Help: "Stale identities dropped from the ledger",
			},
		),
	}
}

// Registry returns the backing registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveRequest records a completed chat request.
func (m *Metrics) ObserveRequest(category, outcome string) {
	m.requestsTotal.WithLabelValues(category, outcome).Inc()
}

// ObserveRejection records an admission rejection at a stage ("rate" or
// "quota").
func (m *Metrics) ObserveRejection(stage string) {
	m.rejectionsTotal.WithLabelValues(stage).Inc()
}

// ObserveProviderCall records an upstream call's latency.
func (m *Metrics) ObserveProviderCall(provider, category string, seconds float64) {
	m.providerDuration.WithLabelValues(provider, category).Observe(seconds)
}

// ObserveProviderFailure records an upstream failure.
func (m *Metrics) ObserveProviderFailure(provider string) {
	m.providerFailures.WithLabelValues(provider).Inc()
}

// ObserveEvictions records a ledger eviction sweep's result.
func (m *Metrics) ObserveEvictions(count int) {
	m.ledgerEvictions.Add(float64(count))
}
