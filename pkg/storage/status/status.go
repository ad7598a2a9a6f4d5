// Copyright © 2018 One Concern

// Package status declares error constants returned by
// implementations of the Store interface.
//
// NOTE: such constants are located in a separate package to avoid
// creating undue cyclical dependencies between pkg/storage and one
// of its implementions.
package status

import "github.com/oneconcern/graphstore/pkg/errors"

var (
	// Sentinel errors returned by implementations of the interface defined by storage

	// ErrNotConnected indicates that an operation was attempted on a store which is not connected
	ErrNotConnected = errors.New("store is not connected")

	// ErrNotFound indicates that the fetched key does not exist on storage
	ErrNotFound = errors.New("key not found")

	// ErrMismatch indicates that a compare-and-swap precondition failed: nothing has been written
	ErrMismatch = errors.New("compare-and-swap mismatch")

	// ErrInvalidKey indicates that a key is not well formed
	ErrInvalidKey = errors.New("invalid storage key")

	// ErrStorageAPI indicates any other error returned by the underlying storage engine
	ErrStorageAPI = errors.New("storage API error")
)
