// Copyright © 2018 One Concern

package localfs

import (
	"context"
	"strings"
	"testing"

	"github.com/oneconcern/graphstore/pkg/storage"
	"github.com/oneconcern/graphstore/pkg/storage/storagetest"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestMemMapStore(t *testing.T) {
	storagetest.Run(t, func(t testing.TB) storage.Store {
		return New(afero.NewMemMapFs(), WithLogger(zaptest.NewLogger(t)))
	})
}

func TestOsStore(t *testing.T) {
	codec, err := storage.NewZstdCodec(2)
	require.NoError(t, err)

	storagetest.Run(t, func(t testing.TB) storage.Store {
		fs := afero.NewBasePathFs(afero.NewOsFs(), t.TempDir())
		return New(fs, WithCodec(codec))
	})
}

func TestLayout(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	s := New(fs)
	require.NoError(t, s.Connect(ctx))

	k := storage.Key{Database: "my/db", Project: "..", ID: "*info*"}
	require.NoError(t, s.Put(ctx, k, []byte("v")))

	exists, err := afero.Exists(fs, "my%2Fdb/%2E%2E/%2Ainfo%2A")
	require.NoError(t, err)
	assert.True(t, exists)

	keys, err := s.Keys(ctx, storage.Key{})
	require.NoError(t, err)
	assert.Equal(t, []storage.Key{k}, keys)
}

func TestCaseSensitiveKeys(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	s := New(fs)
	require.NoError(t, s.Connect(ctx))

	upper := storage.Key{Database: "db", Project: "Models", ID: "*Main"}
	lower := storage.Key{Database: "db", Project: "models", ID: "*main"}
	require.NoError(t, s.Put(ctx, upper, []byte("upper")))
	require.NoError(t, s.Put(ctx, lower, []byte("lower")))

	assert.Equal(t, "db/%4Dodels/%2A%4Dain", keyPath(upper))
	assert.Equal(t, "db/models/%2Amain", keyPath(lower))
	assert.NotEqual(t, strings.ToLower(keyPath(upper)), strings.ToLower(keyPath(lower)))
	exists, err := afero.Exists(fs, "db/%4Dodels/%2A%4Dain")
	require.NoError(t, err)
	assert.True(t, exists)

	v, err := s.Get(ctx, upper)
	require.NoError(t, err)
	assert.Equal(t, "upper", string(v))
	v, err = s.Get(ctx, lower)
	require.NoError(t, err)
	assert.Equal(t, "lower", string(v))

	keys, err := s.Keys(ctx, storage.Key{Database: "db"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []storage.Key{upper, lower}, keys)
}

func TestUnexpectedFiles(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "stray", []byte("x"), 0600))
	require.NoError(t, afero.WriteFile(fs, "db/also-stray", []byte("x"), 0600))

	s := New(fs)
	require.NoError(t, s.Connect(ctx))
	require.NoError(t, s.Put(ctx, storage.Key{Database: "db", Project: "p", ID: "#1"}, []byte("v")))

	keys, err := s.Keys(ctx, storage.Key{})
	require.NoError(t, err)
	assert.Len(t, keys, 1)
}

func TestString(t *testing.T) {
	assert.Equal(t, "localfs", New(afero.NewMemMapFs()).String())
	assert.Contains(t, New(afero.NewBasePathFs(afero.NewOsFs(), "/tmp/x")).String(), "localfs@")
}
