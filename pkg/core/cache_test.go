package core

import (
	"testing"

	"github.com/oneconcern/graphstore/pkg/metrics"
	"github.com/oneconcern/graphstore/pkg/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectCacheGenerations(t *testing.T) {
	m, err := metrics.New(metrics.WithRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)
	c, err := newObjectCache(8, m)
	require.NoError(t, err)

	o, err := model.NewObject(map[string]string{"name": "cached"})
	require.NoError(t, err)

	c.add("p", 1, o)
	cached, ok := c.get("p", 1, o.ID)
	require.True(t, ok)
	assert.Same(t, o, cached)

	// a later handle of a project with the same name never sees earlier entries
	_, ok = c.get("p", 2, o.ID)
	assert.False(t, ok)
	_, ok = c.get("q", 1, o.ID)
	assert.False(t, ok)

	c.add("p", 2, o)
	c.add("q", 1, o)
	assert.Equal(t, 2, c.evict("p"))
	_, ok = c.get("q", 1, o.ID)
	assert.True(t, ok)

	disabled, err := newObjectCache(0, m)
	require.NoError(t, err)
	disabled.add("p", 1, o)
	_, ok = disabled.get("p", 1, o.ID)
	assert.False(t, ok)
	assert.Zero(t, disabled.evict("p"))
}
