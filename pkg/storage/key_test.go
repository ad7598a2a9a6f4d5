package storage

import (
	"bytes"
	"testing"

	"github.com/oneconcern/graphstore/pkg/errors"
	"github.com/oneconcern/graphstore/pkg/storage/status"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyBytesRoundTrip(t *testing.T) {
	for _, k := range []Key{
		{},
		{Database: "graphstore"},
		{Database: "graphstore", Project: "p1"},
		{Database: "graphstore", Project: "p1", ID: "#abc"},
		{Database: "graphstore", Project: "p1", ID: "*master"},
		{Database: "with$sep", Project: "a/b", ID: "#x"},
	} {
		parsed, err := ParseKey(k.Bytes())
		require.NoError(t, err)
		assert.Equal(t, k, parsed)
	}
}

func TestKeyPrefixEncoding(t *testing.T) {
	p1 := ProjectPrefix("db", "p")
	p2 := ProjectPrefix("db", "pp")
	k1 := Key{Database: "db", Project: "p", ID: "#1"}
	k2 := Key{Database: "db", Project: "pp", ID: "#1"}

	assert.True(t, bytes.HasPrefix(k1.Bytes(), p1.Bytes()))
	assert.False(t, bytes.HasPrefix(k2.Bytes(), p1.Bytes()), "project names sharing a prefix must not collide")
	assert.True(t, bytes.HasPrefix(k2.Bytes(), p2.Bytes()))
	assert.True(t, bytes.HasPrefix(k1.Bytes(), DatabasePrefix("db").Bytes()))
	assert.False(t, bytes.HasPrefix(k1.Bytes(), DatabasePrefix("d").Bytes()))

	assert.True(t, k1.HasPrefix(p1))
	assert.False(t, k2.HasPrefix(p1))
	assert.True(t, k2.HasPrefix(Key{}))
	assert.True(t, k1.HasPrefix(k1))
}

func TestKeyValidate(t *testing.T) {
	require.NoError(t, Key{}.Validate())
	require.NoError(t, ProjectPrefix("db", "p").Validate())
	require.True(t, errors.Is(Key{Project: "p"}.Validate(), status.ErrInvalidKey))
	require.True(t, errors.Is(Key{Database: "db", ID: "#1"}.Validate(), status.ErrInvalidKey))
	require.True(t, errors.Is(ProjectPrefix("db", "p").ValidateItem(), status.ErrInvalidKey))
	require.NoError(t, Key{Database: "db", Project: "p", ID: "#1"}.ValidateItem())
}

func TestParseKeyCorrupted(t *testing.T) {
	_, err := ParseKey([]byte{5, 'a'})
	require.True(t, errors.Is(err, status.ErrInvalidKey))

	trailing := append(Key{Database: "d", Project: "p", ID: "i"}.Bytes(), 1, 'x')
	_, err = ParseKey(trailing)
	require.True(t, errors.Is(err, status.ErrInvalidKey))
}
