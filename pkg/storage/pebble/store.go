// Copyright © 2018 One Concern

// Package pebble implements a durable storage.Store on top of cockroachdb/pebble.
//
// Writes are serialized by the store, so a compare-and-swap reads and writes without interference.
// Reads go straight to the database and do not block on writers.
package pebble

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"github.com/oneconcern/graphstore/pkg/dlogger"
	"github.com/oneconcern/graphstore/pkg/storage"
	"github.com/oneconcern/graphstore/pkg/storage/status"
	"go.uber.org/zap"
)

// Option for the pebble store
type Option func(*pebbleStore)

// WithLogger sets a parent logger for the store
func WithLogger(l *zap.Logger) Option {
	return func(p *pebbleStore) {
		p.l = dlogger.Fork(l, "pebble")
	}
}

// WithInMemory keeps all files in memory
func WithInMemory(enabled bool) Option {
	return func(p *pebbleStore) {
		p.inMemory = enabled
	}
}

// WithCodec sets the codec applied to values
func WithCodec(codec storage.Codec) Option {
	return func(p *pebbleStore) {
		if codec != nil {
			p.codec = codec
		}
	}
}

// WithSync requests writes to be synced to disk before they are acknowledged (the default)
func WithSync(enabled bool) Option {
	return func(p *pebbleStore) {
		if enabled {
			p.writeOptions = pebble.Sync
		} else {
			p.writeOptions = pebble.NoSync
		}
	}
}

// New creates a pebble store rooted at some directory
func New(dir string, opts ...Option) storage.Store {
	p := &pebbleStore{
		dir:          dir,
		codec:        storage.RawCodec,
		writeOptions: pebble.Sync,
		l:            zap.NewNop(),
	}
	for _, apply := range opts {
		apply(p)
	}
	return p
}

type pebbleStore struct {
	dir          string
	inMemory     bool
	codec        storage.Codec
	writeOptions *pebble.WriteOptions
	l            *zap.Logger

	mx sync.RWMutex
	db *pebble.DB
	// an in-memory file system survives reconnections
	memFS vfs.FS

	writeMx sync.Mutex
}

func (p *pebbleStore) String() string {
	return "pebble"
}

func (p *pebbleStore) Connect(_ context.Context) error {
	p.mx.Lock()
	defer p.mx.Unlock()
	if p.db != nil {
		return nil
	}

	options := new(pebble.Options)
	options.EnsureDefaults()
	if p.inMemory {
		if p.memFS == nil {
			p.memFS = vfs.NewMem()
		}
		options.FS = p.memFS
	} else if err := os.MkdirAll(p.dir, 0700); err != nil {
		return status.ErrStorageAPI.Wrap(fmt.Errorf("pebble: mkdir: %w", err))
	}

	db, err := pebble.Open(p.dir, options)
	if err != nil {
		return status.ErrStorageAPI.Wrap(fmt.Errorf("pebble: open: %w", err))
	}
	p.db = db
	p.l.Debug("connected", zap.String("dir", p.dir), zap.Bool("in_memory", p.inMemory), zap.Stringer("codec", p.codec))
	return nil
}

func (p *pebbleStore) Close(_ context.Context) error {
	p.mx.Lock()
	defer p.mx.Unlock()
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	if err != nil {
		return status.ErrStorageAPI.Wrap(fmt.Errorf("pebble: close: %w", err))
	}
	p.l.Debug("closed")
	return nil
}

func (p *pebbleStore) IsConnected() bool {
	p.mx.RLock()
	defer p.mx.RUnlock()
	return p.db != nil
}

func (p *pebbleStore) withDB(key storage.Key, item bool, fn func(*pebble.DB) error) error {
	p.mx.RLock()
	defer p.mx.RUnlock()
	if p.db == nil {
		return status.ErrNotConnected
	}
	check := key.Validate
	if item {
		check = key.ValidateItem
	}
	if err := check(); err != nil {
		return err
	}
	return fn(p.db)
}

// write runs a mutation exclusively of any other writer
func (p *pebbleStore) write(key storage.Key, item bool, fn func(*pebble.DB) error) error {
	return p.withDB(key, item, func(db *pebble.DB) error {
		p.writeMx.Lock()
		defer p.writeMx.Unlock()
		return fn(db)
	})
}

type getter interface {
	Get([]byte) ([]byte, io.Closer, error)
}

func (p *pebbleStore) read(r getter, k []byte) ([]byte, error) {
	raw, closer, err := r.Get(k)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, status.ErrNotFound
		}
		return nil, status.ErrStorageAPI.Wrap(err)
	}
	defer func() {
		_ = closer.Close()
	}()

	// the codec may return its input: copy before the closer releases it
	value, err := p.codec.Decode(raw)
	if err != nil {
		return nil, err
	}
	return append(make([]byte, 0, len(value)), value...), nil
}

func (p *pebbleStore) Has(ctx context.Context, key storage.Key) (bool, error) {
	_, err := p.Get(ctx, key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, status.ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

func (p *pebbleStore) Get(_ context.Context, key storage.Key) ([]byte, error) {
	var value []byte
	err := p.withDB(key, true, func(db *pebble.DB) error {
		var e error
		value, e = p.read(db, key.Bytes())
		return e
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (p *pebbleStore) Put(_ context.Context, key storage.Key, value []byte) error {
	encoded, err := p.codec.Encode(value)
	if err != nil {
		return err
	}
	return p.write(key, true, func(db *pebble.DB) error {
		if e := db.Set(key.Bytes(), encoded, p.writeOptions); e != nil {
			return status.ErrStorageAPI.Wrap(e)
		}
		return nil
	})
}

func (p *pebbleStore) Delete(_ context.Context, key storage.Key) error {
	return p.write(key, true, func(db *pebble.DB) error {
		if e := db.Delete(key.Bytes(), p.writeOptions); e != nil {
			return status.ErrStorageAPI.Wrap(e)
		}
		return nil
	})
}

func (p *pebbleStore) Keys(ctx context.Context, prefix storage.Key) ([]storage.Key, error) {
	var keys []storage.Key
	err := p.Scan(ctx, prefix, func(k storage.Key, _ []byte) error {
		keys = append(keys, k)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// Scan iterates over a snapshot of the database
func (p *pebbleStore) Scan(ctx context.Context, prefix storage.Key, fn storage.ScanFunc) error {
	return p.withDB(prefix, false, func(db *pebble.DB) error {
		snapshot := db.NewSnapshot()
		defer func() {
			_ = snapshot.Close()
		}()

		lower := prefix.Bytes()
		iterator, err := snapshot.NewIter(&pebble.IterOptions{
			LowerBound: lower,
			UpperBound: upperBound(lower),
		})
		if err != nil {
			return status.ErrStorageAPI.Wrap(err)
		}
		defer func() {
			_ = iterator.Close()
		}()

		for valid := iterator.First(); valid; valid = iterator.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			k, err := storage.ParseKey(iterator.Key())
			if err != nil {
				return err
			}
			v, err := p.codec.Decode(iterator.Value())
			if err != nil {
				return err
			}
			if err := fn(k, append(make([]byte, 0, len(v)), v...)); err != nil {
				return err
			}
		}
		if err := iterator.Error(); err != nil {
			return status.ErrStorageAPI.Wrap(err)
		}
		return nil
	})
}

func (p *pebbleStore) CompareAndSwap(_ context.Context, key storage.Key, expected, value []byte) error {
	var encoded []byte
	if value != nil {
		var err error
		if encoded, err = p.codec.Encode(value); err != nil {
			return err
		}
	}
	return p.write(key, true, func(db *pebble.DB) error {
		k := key.Bytes()
		current, err := p.read(db, k)
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
			err = db.Delete(k, p.writeOptions)
		} else {
			err = db.Set(k, encoded, p.writeOptions)
		}
		if err != nil {
			return status.ErrStorageAPI.Wrap(err)
		}
		return nil
	})
}

// DeletePrefix deletes a key range in a single batch
func (p *pebbleStore) DeletePrefix(_ context.Context, prefix storage.Key) error {
	return p.write(prefix, false, func(db *pebble.DB) error {
		start := prefix.Bytes()
		end := upperBound(start)
		batch := db.NewBatch()
		defer func() {
			_ = batch.Close()
		}()

		if end == nil {
			// unbounded range: stop at the last key, as DeleteRange excludes the upper bound
			last, err := lastKey(db, start)
			if err != nil || last == nil {
				return err
			}
			end = last
			if err := batch.Delete(last, nil); err != nil {
				return status.ErrStorageAPI.Wrap(err)
			}
		}

		if err := batch.DeleteRange(start, end, nil); err != nil {
			return status.ErrStorageAPI.Wrap(err)
		}
		if err := batch.Commit(p.writeOptions); err != nil {
			return status.ErrStorageAPI.Wrap(err)
		}
		return nil
	})
}

func lastKey(db *pebble.DB, lower []byte) ([]byte, error) {
	iterator, err := db.NewIter(&pebble.IterOptions{LowerBound: lower})
	if err != nil {
		return nil, status.ErrStorageAPI.Wrap(err)
	}
	defer func() {
		_ = iterator.Close()
	}()
	if !iterator.Last() {
		return nil, iterator.Error()
	}
	return append([]byte(nil), iterator.Key()...), nil
}

// upperBound yields the smallest key greater than all keys with some prefix,
// or nil when no such key exists.
func upperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
