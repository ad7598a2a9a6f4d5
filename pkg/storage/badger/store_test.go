package badger

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/oneconcern/graphstore/pkg/storage"
	"github.com/oneconcern/graphstore/pkg/storage/storagetest"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func factory(opts ...Option) storagetest.Factory {
	return func(t testing.TB) storage.Store {
		s := New(filepath.Join(t.TempDir(), "db"), append([]Option{WithLogger(zaptest.NewLogger(t))}, opts...)...)
		t.Cleanup(func() {
			_ = s.Close(context.Background())
		})
		return s
	}
}

func TestBadgerStore(t *testing.T) {
	storagetest.Run(t, factory())
}

func TestBadgerStoreCompressed(t *testing.T) {
	codec, err := storage.NewZstdCodec(3)
	require.NoError(t, err)
	storagetest.Run(t, factory(WithCodec(codec), WithMemTableSize(16<<20)))
}

func TestBadgerInMemory(t *testing.T) {
	ctx := context.Background()
	s := New("", WithInMemory(true))
	require.NoError(t, s.Connect(ctx))
	defer func() {
		_ = s.Close(ctx)
	}()

	k := storage.Key{Database: "db", Project: "p", ID: "#1"}
	require.NoError(t, s.Put(ctx, k, []byte("value")))
	v, err := s.Get(ctx, k)
	require.NoError(t, err)
	require.Equal(t, "value", string(v))
}
