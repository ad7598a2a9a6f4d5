package status

import (
	"fmt"
	"testing"

	"github.com/oneconcern/graphstore/pkg/errors"
	"github.com/oneconcern/graphstore/pkg/model"
	modelstatus "github.com/oneconcern/graphstore/pkg/model/status"
	"github.com/stretchr/testify/assert"
)

func TestTaxonomy(t *testing.T) {
	err := ErrObjectNotFound.Wrap(fmt.Errorf("#abc"))
	assert.True(t, errors.Is(err, ErrObjectNotFound))
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrProjectNotFound))
	assert.Equal(t, "object not found: #abc", err.Error())

	assert.True(t, errors.Is(ErrNotCommit, ErrInvalidID))
	assert.False(t, errors.Is(ErrInvalidID, ErrNotCommit))
	assert.True(t, errors.Is(fmt.Errorf("ancestor: %w", ErrNotCommit.Wrap(fmt.Errorf("#1"))), ErrInvalidID))
}

func TestModelErrors(t *testing.T) {
	err := model.ValidateHash("abc")
	assert.True(t, errors.Is(err, ErrInvalidID))
	assert.True(t, errors.Is(err, modelstatus.ErrInvalidID))

	err = model.ValidateBranchName("a-b")
	assert.True(t, errors.Is(err, ErrInvalidName))
}
