// Package storagetest exposes a conformance suite for implementations of storage.Store.
package storagetest

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/oneconcern/graphstore/internal/rand"
	"github.com/oneconcern/graphstore/pkg/errors"
	"github.com/oneconcern/graphstore/pkg/storage"
	"github.com/oneconcern/graphstore/pkg/storage/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

const testDatabase = "graphstore"

// Factory builds a new, empty and disconnected store for a test. Cleanup is registered with t.Cleanup.
type Factory func(t testing.TB) storage.Store

func key(project, id string) storage.Key {
	return storage.Key{Database: testDatabase, Project: project, ID: id}
}

// Run the conformance suite against stores built by some factory
func Run(t *testing.T, factory Factory) {
	t.Run("Lifecycle", func(t *testing.T) { testLifecycle(t, factory) })
	t.Run("NotConnected", func(t *testing.T) { testNotConnected(t, factory) })
	t.Run("PutGetDelete", func(t *testing.T) { testPutGetDelete(t, factory) })
	t.Run("LargeValues", func(t *testing.T) { testLargeValues(t, factory) })
	t.Run("InvalidKeys", func(t *testing.T) { testInvalidKeys(t, factory) })
	t.Run("KeysAndScan", func(t *testing.T) { testKeysAndScan(t, factory) })
	t.Run("CompareAndSwap", func(t *testing.T) { testCompareAndSwap(t, factory) })
	t.Run("ConcurrentCompareAndSwap", func(t *testing.T) { testConcurrentCompareAndSwap(t, factory) })
	t.Run("DeletePrefix", func(t *testing.T) { testDeletePrefix(t, factory) })
	t.Run("Reconnect", func(t *testing.T) { testReconnect(t, factory) })
}

func connected(t testing.TB, factory Factory) storage.Store {
	s := factory(t)
	require.NoError(t, s.Connect(context.Background()))
	return s
}

func testLifecycle(t *testing.T, factory Factory) {
	ctx := context.Background()
	s := factory(t)
	require.NotEmpty(t, s.String())
	require.False(t, s.IsConnected())

	require.NoError(t, s.Close(ctx), "closing a closed store is a no-op")
	require.NoError(t, s.Connect(ctx))
	require.True(t, s.IsConnected())
	require.NoError(t, s.Connect(ctx), "connecting a connected store is a no-op")
	require.True(t, s.IsConnected())

	require.NoError(t, s.Close(ctx))
	require.False(t, s.IsConnected())
	require.NoError(t, s.Close(ctx))
}

func testNotConnected(t *testing.T, factory Factory) {
	ctx := context.Background()
	s := factory(t)
	k := key("p", "#1")

	_, err := s.Has(ctx, k)
	assert.True(t, errors.Is(err, status.ErrNotConnected), "has: %v", err)
	_, err = s.Get(ctx, k)
	assert.True(t, errors.Is(err, status.ErrNotConnected), "get: %v", err)
	err = s.Put(ctx, k, []byte("v"))
	assert.True(t, errors.Is(err, status.ErrNotConnected), "put: %v", err)
	err = s.Delete(ctx, k)
	assert.True(t, errors.Is(err, status.ErrNotConnected), "delete: %v", err)
	_, err = s.Keys(ctx, storage.Key{})
	assert.True(t, errors.Is(err, status.ErrNotConnected), "keys: %v", err)
	err = s.Scan(ctx, storage.Key{}, func(storage.Key, []byte) error { return nil })
	assert.True(t, errors.Is(err, status.ErrNotConnected), "scan: %v", err)
	err = s.CompareAndSwap(ctx, k, nil, []byte("v"))
	assert.True(t, errors.Is(err, status.ErrNotConnected), "cas: %v", err)
	err = s.DeletePrefix(ctx, storage.ProjectPrefix(testDatabase, "p"))
	assert.True(t, errors.Is(err, status.ErrNotConnected), "delete prefix: %v", err)
}

func testPutGetDelete(t *testing.T, factory Factory) {
	ctx := context.Background()
	s := connected(t, factory)
	k := key("p", "#1")

	has, err := s.Has(ctx, k)
	require.NoError(t, err)
	require.False(t, has)

	_, err = s.Get(ctx, k)
	require.True(t, errors.Is(err, status.ErrNotFound), "got: %v", err)

	require.NoError(t, s.Put(ctx, k, []byte("first")))
	has, err = s.Has(ctx, k)
	require.NoError(t, err)
	require.True(t, has)

	v, err := s.Get(ctx, k)
	require.NoError(t, err)
	require.Equal(t, "first", string(v))

	// returned values are not shared with the store
	v[0] = 'F'
	v, err = s.Get(ctx, k)
	require.NoError(t, err)
	require.Equal(t, "first", string(v))

	// put overwrites
	require.NoError(t, s.Put(ctx, k, []byte("second")))
	v, err = s.Get(ctx, k)
	require.NoError(t, err)
	require.Equal(t, "second", string(v))

	// empty values are values
	empty := key("p", "#empty")
	require.NoError(t, s.Put(ctx, empty, []byte{}))
	has, err = s.Has(ctx, empty)
	require.NoError(t, err)
	require.True(t, has)

	require.NoError(t, s.Delete(ctx, k))
	_, err = s.Get(ctx, k)
	require.True(t, errors.Is(err, status.ErrNotFound), "got: %v", err)
	require.NoError(t, s.Delete(ctx, k), "deleting a missing key is not an error")
}

func testLargeValues(t *testing.T, factory Factory) {
	ctx := context.Background()
	s := connected(t, factory)

	repeated := fmt.Sprintf(`{"nodes":[%s"last"]}`, strings.Repeat(`"node",`, 10000))
	values := map[string][]byte{
		"#random":   rand.Bytes(512 * 1024),
		"#letters":  rand.LetterBytes(512 * 1024),
		"#repeated": []byte(repeated),
	}
	for id, value := range values {
		require.NoError(t, s.Put(ctx, key(rand.Name(8), id), value))
	}

	keys, err := s.Keys(ctx, storage.DatabasePrefix(testDatabase))
	require.NoError(t, err)
	require.Len(t, keys, len(values))
	for _, k := range keys {
		v, err := s.Get(ctx, k)
		require.NoError(t, err)
		assert.Equal(t, values[k.ID], v, "value of %v", k)
	}
}

func testInvalidKeys(t *testing.T, factory Factory) {
	ctx := context.Background()
	s := connected(t, factory)

	err := s.Put(ctx, storage.ProjectPrefix(testDatabase, "p"), []byte("v"))
	require.True(t, errors.Is(err, status.ErrInvalidKey), "got: %v", err)
	_, err = s.Get(ctx, storage.Key{Database: testDatabase, ID: "#1"})
	require.True(t, errors.Is(err, status.ErrInvalidKey), "got: %v", err)
	_, err = s.Keys(ctx, storage.Key{Project: "p"})
	require.True(t, errors.Is(err, status.ErrInvalidKey), "got: %v", err)
}

func testKeysAndScan(t *testing.T, factory Factory) {
	ctx := context.Background()
	s := connected(t, factory)

	fixture := []storage.Key{
		key("p", "#b"),
		key("p", "#a"),
		key("p", "*master"),
		key("pp", "#a"),
		key("q", "*info*"),
		{Database: "other", Project: "p", ID: "#a"},
	}
	for _, k := range fixture {
		require.NoError(t, s.Put(ctx, k, []byte(k.String())))
	}

	all, err := s.Keys(ctx, storage.Key{})
	require.NoError(t, err)
	require.Len(t, all, len(fixture))

	inDB, err := s.Keys(ctx, storage.DatabasePrefix(testDatabase))
	require.NoError(t, err)
	require.Len(t, inDB, 5)

	inP, err := s.Keys(ctx, storage.ProjectPrefix(testDatabase, "p"))
	require.NoError(t, err)
	require.ElementsMatch(t, []storage.Key{key("p", "#a"), key("p", "#b"), key("p", "*master")}, inP)

	visited := make(map[storage.Key]string)
	err = s.Scan(ctx, storage.ProjectPrefix(testDatabase, "pp"), func(k storage.Key, v []byte) error {
		visited[k] = string(v)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, map[storage.Key]string{key("pp", "#a"): key("pp", "#a").String()}, visited)

	stop := fmt.Errorf("stop")
	var count int
	err = s.Scan(ctx, storage.ProjectPrefix(testDatabase, "p"), func(storage.Key, []byte) error {
		count++
		return stop
	})
	require.ErrorIs(t, err, stop)
	require.Equal(t, 1, count)

	none, err := s.Keys(ctx, storage.ProjectPrefix(testDatabase, "missing"))
	require.NoError(t, err)
	require.Empty(t, none)
}

func testCompareAndSwap(t *testing.T, factory Factory) {
	ctx := context.Background()
	s := connected(t, factory)
	k := key("p", "*master")

	// create when absent
	require.NoError(t, s.CompareAndSwap(ctx, k, nil, []byte("h1")))

	// absent expectation no longer holds
	err := s.CompareAndSwap(ctx, k, nil, []byte("h2"))
	require.True(t, errors.Is(err, status.ErrMismatch), "got: %v", err)

	// stale expectation: no write
	err = s.CompareAndSwap(ctx, k, []byte("h0"), []byte("h2"))
	require.True(t, errors.Is(err, status.ErrMismatch), "got: %v", err)
	v, err := s.Get(ctx, k)
	require.NoError(t, err)
	require.Equal(t, "h1", string(v))

	require.NoError(t, s.CompareAndSwap(ctx, k, []byte("h1"), []byte("h2")))
	v, err = s.Get(ctx, k)
	require.NoError(t, err)
	require.Equal(t, "h2", string(v))

	// delete
	require.NoError(t, s.CompareAndSwap(ctx, k, []byte("h2"), nil))
	has, err := s.Has(ctx, k)
	require.NoError(t, err)
	require.False(t, has)

	// expecting a value on a missing key
	err = s.CompareAndSwap(ctx, k, []byte("h2"), []byte("h3"))
	require.True(t, errors.Is(err, status.ErrMismatch), "got: %v", err)
}

func testConcurrentCompareAndSwap(t *testing.T, factory Factory) {
	ctx := context.Background()
	s := connected(t, factory)
	k := key("p", "*master")
	require.NoError(t, s.Put(ctx, k, []byte("base")))

	const contenders = 16
	var won, lost int32
	var g errgroup.Group
	for i := 0; i < contenders; i++ {
		next := []byte(fmt.Sprintf("next-%d", i))
		g.Go(func() error {
			err := s.CompareAndSwap(ctx, k, []byte("base"), next)
			switch {
			case err == nil:
				atomic.AddInt32(&won, 1)
				return nil
			case errors.Is(err, status.ErrMismatch):
				atomic.AddInt32(&lost, 1)
				return nil
			default:
				return err
			}
		})
	}
	require.NoError(t, g.Wait())
	require.EqualValues(t, 1, won)
	require.EqualValues(t, contenders-1, lost)

	v, err := s.Get(ctx, k)
	require.NoError(t, err)
	require.Contains(t, string(v), "next-")
}

func testDeletePrefix(t *testing.T, factory Factory) {
	ctx := context.Background()
	s := connected(t, factory)

	for i := 0; i < 20; i++ {
		require.NoError(t, s.Put(ctx, key("doomed", fmt.Sprintf("#%02d", i)), []byte("x")))
	}
	require.NoError(t, s.Put(ctx, key("doomed", "*master"), []byte("x")))
	require.NoError(t, s.Put(ctx, key("doomedtoo", "#00"), []byte("x")))
	require.NoError(t, s.Put(ctx, key("kept", "#00"), []byte("x")))

	require.NoError(t, s.DeletePrefix(ctx, storage.ProjectPrefix(testDatabase, "doomed")))

	gone, err := s.Keys(ctx, storage.ProjectPrefix(testDatabase, "doomed"))
	require.NoError(t, err)
	require.Empty(t, gone)

	all, err := s.Keys(ctx, storage.Key{})
	require.NoError(t, err)
	require.ElementsMatch(t, []storage.Key{key("doomedtoo", "#00"), key("kept", "#00")}, all)

	// deleting an empty prefix succeeds
	require.NoError(t, s.DeletePrefix(ctx, storage.ProjectPrefix(testDatabase, "doomed")))

	// the project may be populated again
	require.NoError(t, s.Put(ctx, key("doomed", "#00"), []byte("y")))
	v, err := s.Get(ctx, key("doomed", "#00"))
	require.NoError(t, err)
	require.Equal(t, "y", string(v))
}

func testReconnect(t *testing.T, factory Factory) {
	ctx := context.Background()
	s := connected(t, factory)
	k := key("p", "#1")
	require.NoError(t, s.Put(ctx, k, []byte("kept")))

	require.NoError(t, s.Close(ctx))
	_, err := s.Get(ctx, k)
	require.True(t, errors.Is(err, status.ErrNotConnected), "got: %v", err)

	require.NoError(t, s.Connect(ctx))
	v, err := s.Get(ctx, k)
	require.NoError(t, err)
	require.Equal(t, "kept", string(v))
}
