package core

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Option sets options for a Database
type Option func(*Settings)

// Settings defines various settings for core features
type Settings struct {
	name        string
	logger      *zap.Logger
	cacheSize   int
	concurrency int
	registerer  prometheus.Registerer
}

const (
	// DefaultName is the default database name
	DefaultName = "graphstore"

	defaultCacheSize = 1024
)

var (
	defaultConcurrency = 2 * runtime.NumCPU()
)

// WithName sets the database name, which scopes all keys. It defaults to "graphstore".
func WithName(name string) Option {
	return func(s *Settings) {
		if name != "" {
			s.name = name
		}
	}
}

// WithLogger sets the logger. It defaults to a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCacheSize sets the number of objects kept in memory. Zero disables the cache. It defaults to 1024.
func WithCacheSize(size int) Option {
	return func(s *Settings) {
		if size >= 0 {
			s.cacheSize = size
		}
	}
}

// WithConcurrency sets the max level of concurrency to load objects. It defaults to 2 x #cpus.
func WithConcurrency(concurrency int) Option {
	return func(s *Settings) {
		if concurrency <= 0 {
			s.concurrency = defaultConcurrency
			return
		}
		s.concurrency = concurrency
	}
}

// WithMetrics registers the metrics of the database on some prometheus registry
func WithMetrics(reg prometheus.Registerer) Option {
	return func(s *Settings) {
		s.registerer = reg
	}
}

func defaultSettings() Settings {
	return Settings{
		name:        DefaultName,
		logger:      zap.NewNop(),
		cacheSize:   defaultCacheSize,
		concurrency: defaultConcurrency,
	}
}
