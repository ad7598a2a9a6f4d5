// Package status exports errors produced by the model package.
package status

import (
	"github.com/oneconcern/graphstore/pkg/errors"
)

var (
	// ErrInvalidID indicates a malformed object hash, or an object inconsistent with its identifier
	ErrInvalidID = errors.New("invalid object id")

	// ErrInvalidName indicates a malformed project or branch name
	ErrInvalidName = errors.New("invalid name")
)
