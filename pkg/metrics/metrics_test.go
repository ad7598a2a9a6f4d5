package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsage(t *testing.T) {
	m, err := New()
	require.NoError(t, err)

	t0 := time.Now()
	m.Usage.UsedAll(t0, "LoadObject")(nil)
	m.Usage.UsedAll(t0, "LoadObject")(errors.New("boom"))
	m.Usage.Used(t0, "Branches")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Usage.Count.WithLabelValues("LoadObject")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Usage.Failures.WithLabelValues("LoadObject")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Usage.Count.WithLabelValues("Branches")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.Usage.Failures.WithLabelValues("Branches")))

	m.CacheHit()
	m.CacheMiss()
	m.CacheMiss()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Cache.WithLabelValues("hit")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Cache.WithLabelValues("miss")))

	m.BranchMismatches.Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BranchMismatches))
}

func TestRegister(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	m, err := New(
		WithRegisterer(reg),
		WithNamespace("test"),
		WithConstLabels(prometheus.Labels{"database": "db"}),
		WithBuckets([]float64{1, 10}),
	)
	require.NoError(t, err)
	m.AncestorRounds.Observe(3)
	m.Usage.Used(time.Now(), "Commits")

	count, err := testutil.GatherAndCount(reg, "test_core_ancestor_search_rounds", "test_core_calls_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// registering twice fails
	_, err = New(WithRegisterer(reg), WithNamespace("test"), WithConstLabels(prometheus.Labels{"database": "db"}))
	require.Error(t, err)

	// another subsystem does not collide
	_, err = New(WithRegisterer(reg), WithNamespace("test"), WithSubsystem("other"))
	require.NoError(t, err)
}
