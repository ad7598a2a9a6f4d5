package core

import (
	lru "github.com/hashicorp/golang-lru"
	"github.com/oneconcern/graphstore/pkg/metrics"
	"github.com/oneconcern/graphstore/pkg/model"
)

// cacheKey identifies an object seen through one project handle.
//
// A project recreated under the same name gets a handle of another generation, so that it never reads
// entries left by the handles of the deleted project.
type cacheKey struct {
	project    string
	generation uint64
	id         string
}

// objectCache keeps recently used objects. Objects never change once stored, so entries never go stale,
// unless their project is deleted.
type objectCache struct {
	lru *lru.Cache
	m   *metrics.M
}

func newObjectCache(size int, m *metrics.M) (*objectCache, error) {
	if size == 0 {
		return &objectCache{m: m}, nil
	}
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &objectCache{lru: c, m: m}, nil
}

func (c *objectCache) get(project string, generation uint64, id string) (*model.Object, bool) {
	if c.lru == nil {
		return nil, false
	}
	v, ok := c.lru.Get(cacheKey{project: project, generation: generation, id: id})
	if !ok {
		c.m.CacheMiss()
		return nil, false
	}
	c.m.CacheHit()
	return v.(*model.Object), true
}

func (c *objectCache) add(project string, generation uint64, o *model.Object) {
	if c.lru == nil {
		return
	}
	c.lru.Add(cacheKey{project: project, generation: generation, id: o.ID}, o)
}

// evict all objects of a project, whatever the generation of the handle they were cached from
func (c *objectCache) evict(project string) int {
	if c.lru == nil {
		return 0
	}
	var evicted int
	for _, k := range c.lru.Keys() {
		if k.(cacheKey).project == project && c.lru.Remove(k) {
			evicted++
		}
	}
	return evicted
}
