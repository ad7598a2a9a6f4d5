package model

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/oneconcern/graphstore/pkg/model/status"
)

const (
	// BranchMarker prefixes the local id of branch records
	BranchMarker = "*"

	// ProjectInfoID is the local id of the project root record
	ProjectInfoID = "*info*"

	// HashPrefix starts every object identifier
	HashPrefix = "#"
)

var (
	hashRe      = regexp.MustCompile(`^#[0-9a-zA-Z_]+$`)
	nameRe      = regexp.MustCompile(`^[0-9a-zA-Z_]+$`)
	rawBranchRe = regexp.MustCompile(`^\*[0-9a-zA-Z_]+$`)
)

// IsHash tells if a string is a well-formed object identifier
func IsHash(id string) bool {
	return hashRe.MatchString(id)
}

// ValidateHash checks the format of an object identifier
func ValidateHash(id string) error {
	if !IsHash(id) {
		return status.ErrInvalidID.Wrap(fmt.Errorf("%q", id))
	}
	return nil
}

// ValidateHead checks the format of a branch head, which may be empty
func ValidateHead(id string) error {
	if id == "" {
		return nil
	}
	return ValidateHash(id)
}

// ValidateProjectName checks the format of a project name
func ValidateProjectName(name string) error {
	if !nameRe.MatchString(name) {
		return status.ErrInvalidName.Wrap(fmt.Errorf("project %q", name))
	}
	return nil
}

// ValidateBranchName checks the format of a branch name
func ValidateBranchName(name string) error {
	if !nameRe.MatchString(name) {
		return status.ErrInvalidName.Wrap(fmt.Errorf("branch %q", name))
	}
	return nil
}

// BranchID yields the local id of the record of a branch
func BranchID(name string) string {
	return BranchMarker + name
}

// BranchName extracts a branch name from a local id, if the local id designates a branch record
func BranchName(localID string) (string, bool) {
	if !rawBranchRe.MatchString(localID) {
		return "", false
	}
	return strings.TrimPrefix(localID, BranchMarker), true
}
