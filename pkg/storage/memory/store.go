// Copyright © 2018 One Concern

// Package memory implements a volatile storage.Store.
//
// All keys live in an immutable radix tree. Readers work on a snapshot of the tree and
// never block. Writers build a new tree and swap the root, retrying when another writer got there first.
package memory

import (
	"bytes"
	"context"
	"sync/atomic"

	iradix "github.com/hashicorp/go-immutable-radix"
	"github.com/oneconcern/graphstore/pkg/dlogger"
	"github.com/oneconcern/graphstore/pkg/storage"
	"github.com/oneconcern/graphstore/pkg/storage/status"
	"go.uber.org/zap"
)

// Option for the in-memory store
type Option func(*memStore)

// WithLogger sets a parent logger for the store
func WithLogger(l *zap.Logger) Option {
	return func(m *memStore) {
		m.l = dlogger.Fork(l, "memory")
	}
}

// New creates a new in-memory store.
//
// Data survive a Close followed by a Connect, and are lost when the store is garbage collected.
func New(opts ...Option) storage.Store {
	m := &memStore{
		l: zap.NewNop(),
	}
	for _, apply := range opts {
		apply(m)
	}
	m.root.Store(iradix.New())
	return m
}

type memStore struct {
	root      atomic.Pointer[iradix.Tree]
	connected atomic.Bool
	l         *zap.Logger
}

func (m *memStore) String() string {
	return "memory"
}

func (m *memStore) Connect(_ context.Context) error {
	if !m.connected.Swap(true) {
		m.l.Debug("connected")
	}
	return nil
}

func (m *memStore) Close(_ context.Context) error {
	if m.connected.Swap(false) {
		m.l.Debug("closed")
	}
	return nil
}

func (m *memStore) IsConnected() bool {
	return m.connected.Load()
}

func (m *memStore) snapshot(key storage.Key, item bool) (*iradix.Tree, error) {
	if !m.connected.Load() {
		return nil, status.ErrNotConnected
	}
	check := key.Validate
	if item {
		check = key.ValidateItem
	}
	if err := check(); err != nil {
		return nil, err
	}
	return m.root.Load(), nil
}

// update applies a mutation to the current tree and publishes the result.
//
// The mutation may be replayed against a fresh snapshot if a concurrent writer won the race.
func (m *memStore) update(key storage.Key, item bool, mutate func(*iradix.Tree, *iradix.Txn) error) error {
	for {
		current, err := m.snapshot(key, item)
		if err != nil {
			return err
		}
		txn := current.Txn()
		if err := mutate(current, txn); err != nil {
			return err
		}
		if m.root.CompareAndSwap(current, txn.Commit()) {
			return nil
		}
		m.l.Debug("concurrent update, retrying", zap.Stringer("key", key))
	}
}

func (m *memStore) Has(_ context.Context, key storage.Key) (bool, error) {
	tree, err := m.snapshot(key, true)
	if err != nil {
		return false, err
	}
	_, ok := tree.Get(key.Bytes())
	return ok, nil
}

func (m *memStore) Get(_ context.Context, key storage.Key) ([]byte, error) {
	tree, err := m.snapshot(key, true)
	if err != nil {
		return nil, err
	}
	v, ok := tree.Get(key.Bytes())
	if !ok {
		return nil, status.ErrNotFound
	}
	return clone(v.([]byte)), nil
}

func (m *memStore) Put(_ context.Context, key storage.Key, value []byte) error {
	stored := clone(value)
	return m.update(key, true, func(_ *iradix.Tree, txn *iradix.Txn) error {
		txn.Insert(key.Bytes(), stored)
		return nil
	})
}

func (m *memStore) Delete(_ context.Context, key storage.Key) error {
	return m.update(key, true, func(_ *iradix.Tree, txn *iradix.Txn) error {
		txn.Delete(key.Bytes())
		return nil
	})
}

func (m *memStore) Keys(ctx context.Context, prefix storage.Key) ([]storage.Key, error) {
	var keys []storage.Key
	err := m.Scan(ctx, prefix, func(k storage.Key, _ []byte) error {
		keys = append(keys, k)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (m *memStore) Scan(ctx context.Context, prefix storage.Key, fn storage.ScanFunc) error {
	tree, err := m.snapshot(prefix, false)
	if err != nil {
		return err
	}
	var scanErr error
	tree.Root().WalkPrefix(prefix.Bytes(), func(k []byte, v interface{}) bool {
		if scanErr = ctx.Err(); scanErr != nil {
			return true
		}
		var key storage.Key
		key, scanErr = storage.ParseKey(k)
		if scanErr != nil {
			return true
		}
		scanErr = fn(key, clone(v.([]byte)))
		return scanErr != nil
	})
	return scanErr
}

func (m *memStore) CompareAndSwap(_ context.Context, key storage.Key, expected, value []byte) error {
	stored := clone(value)
	return m.update(key, true, func(current *iradix.Tree, txn *iradix.Txn) error {
		k := key.Bytes()
		v, ok := current.Get(k)
		switch {
		case expected == nil && ok:
			return status.ErrMismatch
		case expected != nil && (!ok || !bytes.Equal(v.([]byte), expected)):
			return status.ErrMismatch
		}
		if value == nil {
			txn.Delete(k)
			return nil
		}
		txn.Insert(k, stored)
		return nil
	})
}

func (m *memStore) DeletePrefix(_ context.Context, prefix storage.Key) error {
	return m.update(prefix, false, func(_ *iradix.Tree, txn *iradix.Txn) error {
		txn.DeletePrefix(prefix.Bytes())
		return nil
	})
}

func clone(value []byte) []byte {
	if value == nil {
		return nil
	}
	return append(make([]byte, 0, len(value)), value...)
}
