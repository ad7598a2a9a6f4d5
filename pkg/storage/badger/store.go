// Copyright © 2018 One Concern

// Package badger implements a durable storage.Store on top of dgraph-io/badger/v3.
//
// Compare-and-swap relies on badger's optimistic transactions: conflicting transactions are retried.
package badger

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dgraph-io/badger/v3"
	"github.com/oneconcern/graphstore/pkg/dlogger"
	"github.com/oneconcern/graphstore/pkg/storage"
	"github.com/oneconcern/graphstore/pkg/storage/status"
	"go.uber.org/zap"
)

const (
	defaultMemTableSize = 64 << 20
	conflictRetryDelay  = 5 * time.Millisecond
)

// Option for the badger store
type Option func(*badgerStore)

// WithLogger sets a parent logger for the store
func WithLogger(l *zap.Logger) Option {
	return func(b *badgerStore) {
		b.l = dlogger.Fork(l, "badger")
	}
}

// WithInMemory runs badger without any disk persistence
func WithInMemory(enabled bool) Option {
	return func(b *badgerStore) {
		b.inMemory = enabled
	}
}

// WithMemTableSize sets the size in bytes of badger memtables
func WithMemTableSize(size int64) Option {
	return func(b *badgerStore) {
		if size > 0 {
			b.memTableSize = size
		}
	}
}

// WithCodec sets the codec applied to values
func WithCodec(codec storage.Codec) Option {
	return func(b *badgerStore) {
		if codec != nil {
			b.codec = codec
		}
	}
}

// New creates a badger store rooted at some directory
func New(dir string, opts ...Option) storage.Store {
	b := &badgerStore{
		dir:          dir,
		memTableSize: defaultMemTableSize,
		codec:        storage.RawCodec,
		l:            zap.NewNop(),
	}
	for _, apply := range opts {
		apply(b)
	}
	return b
}

type badgerStore struct {
	dir          string
	inMemory     bool
	memTableSize int64
	codec        storage.Codec
	l            *zap.Logger

	mx sync.RWMutex
	db *badger.DB
}

func (b *badgerStore) String() string {
	return "badger"
}

func (b *badgerStore) Connect(_ context.Context) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	if b.db != nil {
		return nil
	}

	var options badger.Options
	if b.inMemory {
		options = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(b.dir, 0700); err != nil {
			return status.ErrStorageAPI.Wrap(fmt.Errorf("badger: mkdir: %w", err))
		}
		options = badger.DefaultOptions(b.dir)
	}
	options = options.
		WithLogger(nil).
		WithLoggingLevel(badger.WARNING).
		WithMemTableSize(b.memTableSize)

	db, err := badger.Open(options)
	if err != nil {
		return status.ErrStorageAPI.Wrap(fmt.Errorf("badger: open: %w", err))
	}
	b.db = db
	b.l.Debug("connected", zap.String("dir", b.dir), zap.Bool("in_memory", b.inMemory), zap.Stringer("codec", b.codec))
	return nil
}

func (b *badgerStore) Close(_ context.Context) error {
	b.mx.Lock()
	defer b.mx.Unlock()
	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	if err != nil {
		return status.ErrStorageAPI.Wrap(fmt.Errorf("badger: close: %w", err))
	}
	b.l.Debug("closed")
	return nil
}

func (b *badgerStore) IsConnected() bool {
	b.mx.RLock()
	defer b.mx.RUnlock()
	return b.db != nil
}

// withDB runs an operation while holding the connection open
func (b *badgerStore) withDB(key storage.Key, item bool, fn func(*badger.DB) error) error {
	b.mx.RLock()
	defer b.mx.RUnlock()
	if b.db == nil {
		return status.ErrNotConnected
	}
	check := key.Validate
	if item {
		check = key.ValidateItem
	}
	if err := check(); err != nil {
		return err
	}
	return fn(b.db)
}

func (b *badgerStore) Has(ctx context.Context, key storage.Key) (bool, error) {
	_, err := b.Get(ctx, key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, status.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (b *badgerStore) Get(_ context.Context, key storage.Key) ([]byte, error) {
	var value []byte
	err := b.withDB(key, true, func(db *badger.DB) error {
		return db.View(func(txn *badger.Txn) error {
			var e error
			value, e = b.read(txn, key.Bytes())
			return e
		})
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// read a decoded value within a transaction
func (b *badgerStore) read(txn *badger.Txn, k []byte) ([]byte, error) {
	item, err := txn.Get(k)
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, status.ErrNotFound
		}
		return nil, status.ErrStorageAPI.Wrap(err)
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return nil, status.ErrStorageAPI.Wrap(err)
	}
	return b.codec.Decode(raw)
}

// update runs a read-write transaction, retrying on conflicts
func (b *badgerStore) update(ctx context.Context, key storage.Key, item bool, fn func(*badger.Txn) error) error {
	return b.withDB(key, item, func(db *badger.DB) error {
		return backoff.Retry(func() error {
			err := db.Update(fn)
			switch {
			case err == nil:
				return nil
			case errors.Is(err, badger.ErrConflict):
				b.l.Debug("transaction conflict, retrying", zap.Stringer("key", key))
				return err
			default:
				return backoff.Permanent(err)
			}
		},
			backoff.WithContext(backoff.NewConstantBackOff(conflictRetryDelay), ctx),
		)
	})
}

func (b *badgerStore) Put(ctx context.Context, key storage.Key, value []byte) error {
	encoded, err := b.codec.Encode(value)
	if err != nil {
		return err
	}
	return b.update(ctx, key, true, func(txn *badger.Txn) error {
		return txn.Set(key.Bytes(), encoded)
	})
}

func (b *badgerStore) Delete(ctx context.Context, key storage.Key) error {
	return b.update(ctx, key, true, func(txn *badger.Txn) error {
		return txn.Delete(key.Bytes())
	})
}

func (b *badgerStore) Keys(ctx context.Context, prefix storage.Key) ([]storage.Key, error) {
	var keys []storage.Key
	err := b.iterate(ctx, prefix, false, func(item *badger.Item) error {
		k, err := storage.ParseKey(item.KeyCopy(nil))
		if err != nil {
			return err
		}
		keys = append(keys, k)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (b *badgerStore) Scan(ctx context.Context, prefix storage.Key, fn storage.ScanFunc) error {
	return b.iterate(ctx, prefix, true, func(item *badger.Item) error {
		k, err := storage.ParseKey(item.KeyCopy(nil))
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return status.ErrStorageAPI.Wrap(err)
		}
		value, err := b.codec.Decode(raw)
		if err != nil {
			return err
		}
		return fn(k, value)
	})
}

func (b *badgerStore) iterate(ctx context.Context, prefix storage.Key, withValues bool, fn func(*badger.Item) error) error {
	return b.withDB(prefix, false, func(db *badger.DB) error {
		return db.View(func(txn *badger.Txn) error {
			p := prefix.Bytes()
			options := badger.DefaultIteratorOptions
			options.Prefix = p
			options.PrefetchValues = withValues
			iterator := txn.NewIterator(options)
			defer iterator.Close()

			for iterator.Seek(p); iterator.ValidForPrefix(p); iterator.Next() {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := fn(iterator.Item()); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

func (b *badgerStore) CompareAndSwap(ctx context.Context, key storage.Key, expected, value []byte) error {
	var encoded []byte
	if value != nil {
		var err error
		if encoded, err = b.codec.Encode(value); err != nil {
			return err
		}
	}
	return b.update(ctx, key, true, func(txn *badger.Txn) error {
		k := key.Bytes()
		current, err := b.read(txn, k)
		switch {
		case errors.Is(err, status.ErrNotFound):
			if expected != nil {
				return status.ErrMismatch
			}
		case err != nil:
			return err
		case expected == nil || !bytes.Equal(current, expected):
			return status.ErrMismatch
		}

		if value == nil {
			return txn.Delete(k)
		}
		return txn.Set(k, encoded)
	})
}

// DeletePrefix removes all keys under a prefix in a single transaction.
//
// When the range is too large for one transaction, it falls back on badger's DropPrefix,
// which blocks concurrent writes while it runs.
func (b *badgerStore) DeletePrefix(ctx context.Context, prefix storage.Key) error {
	p := prefix.Bytes()
	err := b.update(ctx, prefix, false, func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Prefix = p
		options.PrefetchValues = false
		iterator := txn.NewIterator(options)
		var keys [][]byte
		for iterator.Seek(p); iterator.ValidForPrefix(p); iterator.Next() {
			keys = append(keys, iterator.Item().KeyCopy(nil))
		}
		iterator.Close()

		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if !errors.Is(err, badger.ErrTxnTooBig) {
		return err
	}

	b.l.Info("prefix too large for a transaction, dropping", zap.Stringer("prefix", prefix))
	return b.withDB(prefix, false, func(db *badger.DB) error {
		if len(p) == 0 {
			return db.DropAll()
		}
		return db.DropPrefix(p)
	})
}
