// Package status exports errors produced by the core package.
package status

import (
	"github.com/oneconcern/graphstore/pkg/errors"
	modelstatus "github.com/oneconcern/graphstore/pkg/model/status"
)

var (
	// ErrNotConnected indicates an operation attempted before the database is opened
	ErrNotConnected = errors.New("database is not open: call Open first")

	// ErrAlreadyExists indicates that a project with the same name exists
	ErrAlreadyExists = errors.New("project already exists")

	// ErrNotFound indicates something was not found
	ErrNotFound = errors.New("not found")

	// ErrProjectNotFound indicates a project does not exist, or has been deleted
	ErrProjectNotFound = ErrNotFound.Extend("project does not exist")

	// ErrObjectNotFound indicates an object is not stored in a project
	ErrObjectNotFound = ErrNotFound.Extend("object not found")

	// ErrInvalidID indicates a malformed object hash, as reported by the model package
	ErrInvalidID = modelstatus.ErrInvalidID

	// ErrNotCommit indicates an object which is expected to be a commit, but is not
	ErrNotCommit = ErrInvalidID.Extend("not a commit")

	// ErrInvalidName indicates a malformed project or branch name, as reported by the model package
	ErrInvalidName = modelstatus.ErrInvalidName

	// ErrMismatch indicates that a branch did not hold the expected hash: nothing has been written
	ErrMismatch = errors.New("branch has mismatch")

	// ErrNoCommonAncestor indicates two commits with disjoint histories
	ErrNoCommonAncestor = errors.New("unable to find common ancestor commit")
)
