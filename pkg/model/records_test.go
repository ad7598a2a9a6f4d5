package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBranchRecord(t *testing.T) {
	b1, err := EncodeBranch("master", "#abc")
	require.NoError(t, err)
	assert.JSONEq(t, `{"_id":"master","hash":"#abc"}`, string(b1))

	b2, err := EncodeBranch("master", "#abc")
	require.NoError(t, err)
	assert.Equal(t, b1, b2)

	r, err := DecodeBranch(b1)
	require.NoError(t, err)
	assert.Equal(t, BranchRecord{ID: "master", Hash: "#abc"}, r)

	empty, err := EncodeBranch("master", "")
	require.NoError(t, err)
	assert.Nil(t, empty)

	_, err = DecodeBranch([]byte("{"))
	require.Error(t, err)
}

func TestProjectRecord(t *testing.T) {
	now := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	b, err := EncodeProject(ProjectRecord{Name: "p", Created: now})
	require.NoError(t, err)

	r, err := DecodeProject(b)
	require.NoError(t, err)
	assert.Equal(t, "p", r.Name)
	assert.True(t, now.Equal(r.Created))
}
