package core

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/oneconcern/graphstore/pkg/core/status"
	"github.com/oneconcern/graphstore/pkg/errors"
	"github.com/oneconcern/graphstore/pkg/model"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type node struct {
	Type  string   `json:"type"`
	Name  string   `json:"name"`
	Edges []string `json:"edges,omitempty"`
}

func TestObjects(t *testing.T) {
	ctx := context.Background()
	for _, cacheSize := range []int{0, 16} {
		db := openTestDB(t, nil, WithCacheSize(cacheSize))
		p := createTestProject(t, db, "objects")

		id := insertDocument(t, p, node{Type: "node", Name: "a", Edges: []string{"b"}})
		require.True(t, model.IsHash(id))

		// inserting the same content again is a no-op
		again := insertDocument(t, p, map[string]interface{}{"name": "a", "type": "node", "edges": []string{"b"}})
		assert.Equal(t, id, again)

		o, err := p.LoadObject(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, id, o.ID)
		assert.False(t, o.IsCommit())

		var n node
		require.NoError(t, o.Decode(&n))
		assert.Equal(t, node{Type: "node", Name: "a", Edges: []string{"b"}}, n)

		_, err = p.LoadObject(ctx, "#0000")
		assert.True(t, errors.Is(err, status.ErrObjectNotFound), "got: %v", err)
		assert.True(t, errors.Is(err, status.ErrNotFound), "got: %v", err)

		for _, invalid := range []string{"", "abc", "*master", "#"} {
			_, err = p.LoadObject(ctx, invalid)
			assert.True(t, errors.Is(err, status.ErrInvalidID), "%q: %v", invalid, err)
		}

		err = p.InsertObject(ctx, nil)
		assert.True(t, errors.Is(err, status.ErrInvalidID), "got: %v", err)
		err = p.InsertObject(ctx, &model.Object{ID: "not-a-hash"})
		assert.True(t, errors.Is(err, status.ErrInvalidID), "got: %v", err)

		// objects whose body does not carry their identifier are never stored
		err = p.InsertObject(ctx, &model.Object{ID: "#bodyless"})
		assert.True(t, errors.Is(err, status.ErrInvalidID), "got: %v", err)
		renamed := *o
		renamed.ID = "#renamed"
		err = p.InsertObject(ctx, &renamed)
		assert.True(t, errors.Is(err, status.ErrInvalidID), "got: %v", err)
		for _, missing := range []string{"#bodyless", "#renamed"} {
			_, err = p.LoadObject(ctx, missing)
			assert.True(t, errors.Is(err, status.ErrObjectNotFound), "%q: %v", missing, err)
		}

		commitID := insertCommit(t, p, "first", 1000)
		o, err = p.LoadObject(ctx, commitID)
		require.NoError(t, err)
		c, isCommit := o.Commit()
		require.True(t, isCommit)
		assert.Equal(t, commitID, c.ID)
		assert.Equal(t, "#tree", c.Root)
		assert.Empty(t, c.Parents)
		assert.EqualValues(t, 1000, c.Time)
	}
}

func TestObjectCache(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, nil, WithCacheSize(4))
	p := createTestProject(t, db, "cached")

	id := insertDocument(t, p, node{Type: "node", Name: "a"})
	for i := 0; i < 3; i++ {
		_, err := p.LoadObject(ctx, id)
		require.NoError(t, err)
	}

	_, err := p.LoadObject(ctx, "#0001")
	require.Error(t, err)

	m := db.Metrics()
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Cache.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Cache.WithLabelValues("miss")))
}

func TestProjectIsolation(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, nil)
	left := createTestProject(t, db, "left")
	right := createTestProject(t, db, "right")

	id := insertDocument(t, left, node{Type: "node", Name: "only-left"})
	_, err := right.LoadObject(ctx, id)
	assert.True(t, errors.Is(err, status.ErrObjectNotFound), "got: %v", err)

	root := insertCommit(t, left, "root", 1)
	require.NoError(t, left.SetBranchHash(ctx, "master", "", root))

	branches, err := right.Branches(ctx)
	require.NoError(t, err)
	assert.Empty(t, branches)

	head, err := right.BranchHash(ctx, "master", "")
	require.NoError(t, err)
	assert.Empty(t, head)

	commits, err := right.Commits(ctx, 1<<62, 10)
	require.NoError(t, err)
	assert.Empty(t, commits)
}

func TestBranches(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, nil)
	p := createTestProject(t, db, "branches")

	h1 := insertCommit(t, p, "one", 1)
	h2 := insertCommit(t, p, "two", 2, h1)

	head, err := p.BranchHash(ctx, "master", "")
	require.NoError(t, err)
	assert.Empty(t, head, "a missing branch has no head")

	require.NoError(t, p.SetBranchHash(ctx, "master", "", h1))
	require.NoError(t, p.SetBranchHash(ctx, "feature_1", "", h1))

	branches, err := p.Branches(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"master": h1, "feature_1": h1}, branches)

	t.Run("stale expectation", func(t *testing.T) {
		err := p.SetBranchHash(ctx, "master", "", h2)
		assert.True(t, errors.Is(err, status.ErrMismatch), "got: %v", err)
		err = p.SetBranchHash(ctx, "master", h2, h1)
		assert.True(t, errors.Is(err, status.ErrMismatch), "got: %v", err)

		head, err := p.BranchHash(ctx, "master", h2)
		require.NoError(t, err)
		assert.Equal(t, h1, head, "the current head is returned even if it does not match")
	})

	t.Run("assertion", func(t *testing.T) {
		require.NoError(t, p.SetBranchHash(ctx, "master", h1, h1))
		err := p.SetBranchHash(ctx, "master", h2, h2)
		assert.True(t, errors.Is(err, status.ErrMismatch), "got: %v", err)
		require.NoError(t, p.SetBranchHash(ctx, "missing", "", ""))
		err = p.SetBranchHash(ctx, "missing", h1, h1)
		assert.True(t, errors.Is(err, status.ErrMismatch), "got: %v", err)
	})

	t.Run("advance and delete", func(t *testing.T) {
		require.NoError(t, p.SetBranchHash(ctx, "master", h1, h2))
		head, err := p.BranchHash(ctx, "master", h1)
		require.NoError(t, err)
		assert.Equal(t, h2, head)

		require.NoError(t, p.SetBranchHash(ctx, "feature_1", h1, ""))
		branches, err := p.Branches(ctx)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"master": h2}, branches)

		head, err = p.BranchHash(ctx, "feature_1", "")
		require.NoError(t, err)
		assert.Empty(t, head)

		// a deleted branch may be created again
		require.NoError(t, p.SetBranchHash(ctx, "feature_1", "", h2))
	})

	t.Run("invalid arguments", func(t *testing.T) {
		for _, invalid := range []string{"", "a-b", "a b", "*"} {
			err := p.SetBranchHash(ctx, invalid, "", h1)
			assert.True(t, errors.Is(err, status.ErrInvalidName), "%q: %v", invalid, err)
			_, err = p.BranchHash(ctx, invalid, "")
			assert.True(t, errors.Is(err, status.ErrInvalidName), "%q: %v", invalid, err)
		}
		err := p.SetBranchHash(ctx, "master", "abc", h1)
		assert.True(t, errors.Is(err, status.ErrInvalidID), "got: %v", err)
		err = p.SetBranchHash(ctx, "master", h2, "abc")
		assert.True(t, errors.Is(err, status.ErrInvalidID), "got: %v", err)
		_, err = p.BranchHash(ctx, "master", "abc")
		assert.True(t, errors.Is(err, status.ErrInvalidID), "got: %v", err)
	})
}

func TestConcurrentSetBranchHash(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, nil)
	p := createTestProject(t, db, "race")

	base := insertCommit(t, p, "base", 1)
	require.NoError(t, p.SetBranchHash(ctx, "master", "", base))

	const contenders = 16
	candidates := make([]string, contenders)
	for i := range candidates {
		candidates[i] = insertCommit(t, p, string(rune('a'+i)), 2, base)
	}

	var (
		wins   int32
		winner atomic.Value
		g      errgroup.Group
	)
	for _, candidate := range candidates {
		candidate := candidate
		g.Go(func() error {
			err := p.SetBranchHash(ctx, "master", base, candidate)
			switch {
			case err == nil:
				atomic.AddInt32(&wins, 1)
				winner.Store(candidate)
				return nil
			case errors.Is(err, status.ErrMismatch):
				return nil
			default:
				return err
			}
		})
	}
	require.NoError(t, g.Wait())
	require.EqualValues(t, 1, wins)

	head, err := p.BranchHash(ctx, "master", "")
	require.NoError(t, err)
	assert.Equal(t, winner.Load(), head)
}
