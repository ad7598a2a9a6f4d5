package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Option defines some options to the metrics initialization
type Option func(*settings)

type settings struct {
	namespace   string
	subsystem   string
	registerer  prometheus.Registerer
	constLabels prometheus.Labels
	buckets     []float64
}

func defaultSettings() settings {
	return settings{
		namespace: "graphstore",
		subsystem: "core",
		buckets:   prometheus.ExponentialBuckets(0.1, 4, 10), // 0.1ms .. ~26s
	}
}

// WithNamespace sets the prefix of all metric names. It defaults to "graphstore".
func WithNamespace(namespace string) Option {
	return func(s *settings) {
		s.namespace = namespace
	}
}

// WithSubsystem sets the second component of all metric names. It defaults to "core".
func WithSubsystem(subsystem string) Option {
	return func(s *settings) {
		s.subsystem = subsystem
	}
}

// WithRegisterer registers all collectors on some registry. By default, collectors are not registered.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *settings) {
		s.registerer = reg
	}
}

// WithConstLabels adds labels to all metrics, e.g. the database name
func WithConstLabels(labels prometheus.Labels) Option {
	return func(s *settings) {
		s.constLabels = labels
	}
}

// WithBuckets sets the buckets of timing histograms, in milliseconds
func WithBuckets(buckets []float64) Option {
	return func(s *settings) {
		if len(buckets) > 0 {
			s.buckets = buckets
		}
	}
}
