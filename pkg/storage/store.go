// Copyright © 2018 One Concern

package storage

import (
	"context"
)

// ScanFunc is called for every key-value pair visited by a scan.
// Returning an error interrupts the scan with that error.
type ScanFunc func(Key, []byte) error

// Store implementations know how to persist key-value pairs addressed by a structured Key.
//
// Values are opaque at this layer. Implementations must be safe for concurrent use.
//
// All operations but the connection lifecycle fail with status.ErrNotConnected until Connect is called.
type Store interface {
	String() string

	// Connect the store. Connecting an already connected store is a no-op.
	Connect(context.Context) error
	// Close the store. Closing an already closed store is a no-op.
	Close(context.Context) error
	IsConnected() bool

	Has(context.Context, Key) (bool, error)
	// Get a value, or status.ErrNotFound
	Get(context.Context, Key) ([]byte, error)
	// Put a value, overwriting any existing one
	Put(context.Context, Key, []byte) error
	// Delete a key. Deleting a missing key is not an error.
	Delete(context.Context, Key) error

	// Keys lists all keys under a prefix, in key order. The zero Key lists all keys.
	Keys(context.Context, Key) ([]Key, error)
	// Scan visits all key-value pairs under a prefix, in key order, from a consistent view of the store.
	Scan(context.Context, Key, ScanFunc) error

	// CompareAndSwap atomically replaces the value at key with value, provided the currently stored value
	// equals expected. A nil expected value means that the key must be absent, a nil value deletes the key.
	//
	// On mismatch, it returns status.ErrMismatch and writes nothing.
	CompareAndSwap(ctx context.Context, key Key, expected, value []byte) error

	// DeletePrefix removes all keys under some prefix. Concurrent readers observe either
	// all of these keys or none of them.
	DeletePrefix(context.Context, Key) error
}
