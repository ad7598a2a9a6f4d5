package model

import (
	"testing"

	"github.com/oneconcern/graphstore/pkg/errors"
	"github.com/oneconcern/graphstore/pkg/model/status"
	"github.com/stretchr/testify/assert"
)

func TestValidateHash(t *testing.T) {
	for _, valid := range []string{"#a", "#0123abc", "#with_underscore", "#ABC"} {
		assert.NoError(t, ValidateHash(valid), valid)
	}
	for _, invalid := range []string{"", "#", "abc", "#a-b", "##a", "#a b", "*master"} {
		err := ValidateHash(invalid)
		assert.True(t, errors.Is(err, status.ErrInvalidID), "%q: %v", invalid, err)
	}

	assert.NoError(t, ValidateHead(""))
	assert.Error(t, ValidateHead("x"))
}

func TestValidateNames(t *testing.T) {
	for _, valid := range []string{"p", "project_1", "UPPER"} {
		assert.NoError(t, ValidateProjectName(valid), valid)
		assert.NoError(t, ValidateBranchName(valid), valid)
	}
	for _, invalid := range []string{"", "a-b", "a/b", "*info*", "#h", "a b"} {
		assert.True(t, errors.Is(ValidateProjectName(invalid), status.ErrInvalidName), invalid)
		assert.True(t, errors.Is(ValidateBranchName(invalid), status.ErrInvalidName), invalid)
	}
}

func TestBranchName(t *testing.T) {
	assert.Equal(t, "*master", BranchID("master"))

	name, ok := BranchName("*master")
	assert.True(t, ok)
	assert.Equal(t, "master", name)

	for _, notBranch := range []string{ProjectInfoID, "#hash", "*", "master", "*a-b"} {
		_, ok = BranchName(notBranch)
		assert.False(t, ok, notBranch)
	}
}
