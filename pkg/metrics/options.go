package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultLatencyBuckets covers 0.05ms to roughly 1.6s in doublings. Every
// latency this package records is in milliseconds.
var DefaultLatencyBuckets = prometheus.ExponentialBuckets(0.05, 2, 16) //nolint:gochecknoglobals // shared bucket layout

// Option configures a Manager before its collectors are registered.
type Option func(*Manager)

// WithNamespace overrides the "usercf" metric name prefix.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithSubsystem overrides the "recommender" subsystem.
func WithSubsystem(subsystem string) Option {
	return func(m *Manager) {
		if subsystem != "" {
			m.subsystem = subsystem
		}
	}
}

// WithLatencyBuckets replaces DefaultLatencyBuckets. Buckets are in
// milliseconds and must be sorted ascending.
func WithLatencyBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.latencyBuckets = buckets
		}
	}
}

// WithPrometheusRegistry registers the collectors with registry instead of
// the default registerer.
func WithPrometheusRegistry(registry prometheus.Registerer) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}
