// Package metrics exposes prometheus collectors reporting about graphstore operations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// M describes metrics for the core package
type M struct {
	Usage UsageMetrics

	// BranchMismatches counts branch updates rejected because the branch had moved
	BranchMismatches prometheus.Counter
	// AncestorRounds measures how many expansion rounds a common ancestor search takes
	AncestorRounds prometheus.Histogram
	// Cache reports about object cache hits and misses
	Cache *prometheus.CounterVec
}

// UsageMetrics is a common set of metrics reporting about usage
type UsageMetrics struct {
	Count    *prometheus.CounterVec
	Failures *prometheus.CounterVec
	Timing   *prometheus.HistogramVec
}

// New builds the metrics for the core package, and registers them if a registerer is provided.
//
// It fails when some collector is already registered.
func New(opts ...Option) (*M, error) {
	s := defaultSettings()
	for _, apply := range opts {
		apply(&s)
	}

	m := &M{
		Usage: UsageMetrics{
			Count: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: s.namespace, Subsystem: s.subsystem, ConstLabels: s.constLabels,
				Name: "calls_total",
				Help: "number of calls",
			}, []string{"method"}),
			Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: s.namespace, Subsystem: s.subsystem, ConstLabels: s.constLabels,
				Name: "failures_total",
				Help: "number of failed calls",
			}, []string{"method"}),
			Timing: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: s.namespace, Subsystem: s.subsystem, ConstLabels: s.constLabels,
				Name:    "call_duration_milliseconds",
				Help:    "duration of a call",
				Buckets: s.buckets,
			}, []string{"method"}),
		},
		BranchMismatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: s.namespace, Subsystem: s.subsystem, ConstLabels: s.constLabels,
			Name: "branch_mismatches_total",
			Help: "number of branch updates rejected on a stale expected hash",
		}),
		AncestorRounds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: s.namespace, Subsystem: s.subsystem, ConstLabels: s.constLabels,
			Name:    "ancestor_search_rounds",
			Help:    "number of frontier expansions to resolve a common ancestor",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
		Cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: s.namespace, Subsystem: s.subsystem, ConstLabels: s.constLabels,
			Name: "object_cache_total",
			Help: "object cache lookups",
		}, []string{"result"}),
	}

	if s.registerer == nil {
		return m, nil
	}
	for _, c := range m.collectors() {
		if err := s.registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *M) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Usage.Count, m.Usage.Failures, m.Usage.Timing,
		m.BranchMismatches, m.AncestorRounds, m.Cache,
	}
}

// CacheHit records a successful cache lookup
func (m *M) CacheHit() {
	m.Cache.WithLabelValues("hit").Inc()
}

// CacheMiss records a failed cache lookup
func (m *M) CacheMiss() {
	m.Cache.WithLabelValues("miss").Inc()
}

// Used records usage of some instrumented entry point.
func (u *UsageMetrics) Used(start time.Time, method string) {
	u.Timing.WithLabelValues(method).Observe(since(start))
	u.Count.WithLabelValues(method).Inc()
}

// UsedAll records usage of some instrumented entry point with failures, in one go.
//
// Example:
//
//	func (m *myType) MyInstrumentedFunc() (err error) {
//	  defer func(start time.Time) {
//	    myUsageMetrics.UsedAll(start, "MyInstrumentedFunc")(err)
//	  }(time.Now())
//	  ...
//	}
func (u *UsageMetrics) UsedAll(start time.Time, method string) func(error) {
	return func(err error) {
		u.Used(start, method)
		if err != nil {
			u.Failed(method)
		}
	}
}

// Failed records a failure on some instrumented entry point
func (u *UsageMetrics) Failed(method string) {
	u.Failures.WithLabelValues(method).Inc()
}

func since(start time.Time) float64 {
	return float64(time.Since(start).Nanoseconds()) / 1e6
}
