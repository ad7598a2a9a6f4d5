// Copyright © 2018 One Concern

// Package localfs implements a storage.Store on a file system, with one file per key.
//
// Files are laid out as <database>/<project>/<id>, with path-escaped components. Upper case letters
// are escaped as well, so that the layout suits case-insensitive file systems.
// Puts are atomic: values are written in a staging area, then renamed into place.
// Deleting a project renames its directory into a trash area, so listings see
// either the whole project or nothing of it.
package localfs

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/oneconcern/graphstore/pkg/dlogger"
	"github.com/oneconcern/graphstore/pkg/storage"
	"github.com/oneconcern/graphstore/pkg/storage/status"
	"github.com/segmentio/ksuid"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// staging and trash areas live next to the databases. Escaped components never start with a dot.
const (
	putStageName = ".put-stage"
	trashName    = ".trash"
)

// Option for the local file system store
type Option func(*localFS)

// WithLogger sets a parent logger for the store
func WithLogger(l *zap.Logger) Option {
	return func(s *localFS) {
		s.l = dlogger.Fork(l, "localfs")
	}
}

// WithCodec sets the codec applied to values
func WithCodec(codec storage.Codec) Option {
	return func(s *localFS) {
		if codec != nil {
			s.codec = codec
		}
	}
}

// New creates a new local file system backed store.
//
// It defaults to the .graphstore directory of the current working directory.
func New(fs afero.Fs, opts ...Option) storage.Store {
	if fs == nil {
		fs = afero.NewBasePathFs(afero.NewOsFs(), filepath.Join(".graphstore", "data"))
	}
	s := &localFS{
		fs:    fs,
		codec: storage.RawCodec,
		l:     zap.NewNop(),
	}
	for _, apply := range opts {
		apply(s)
	}
	return s
}

type localFS struct {
	fs        afero.Fs
	codec     storage.Codec
	l         *zap.Logger
	connected atomic.Bool

	// writers hold the lock exclusively, scans hold it shared to get a consistent view
	mx sync.RWMutex
}

func (s *localFS) String() string {
	const localfs = "localfs"
	switch fs := s.fs.(type) {
	case *afero.BasePathFs:
		pp, err := fs.RealPath("")
		if err != nil {
			return localfs
		}
		return localfs + "@" + pp
	default:
		return localfs
	}
}

func (s *localFS) Connect(_ context.Context) error {
	s.mx.Lock()
	defer s.mx.Unlock()
	if s.connected.Load() {
		return nil
	}

	// leftovers from an interrupted process
	for _, area := range []string{putStageName, trashName} {
		if err := s.fs.RemoveAll(area); err != nil {
			return status.ErrStorageAPI.Wrap(fmt.Errorf("cleaning %q: %w", area, err))
		}
		if err := s.fs.MkdirAll(area, 0700); err != nil {
			return status.ErrStorageAPI.Wrap(fmt.Errorf("ensuring %q: %w", area, err))
		}
	}
	s.connected.Store(true)
	s.l.Debug("connected", zap.String("store", s.String()))
	return nil
}

func (s *localFS) Close(_ context.Context) error {
	if s.connected.Swap(false) {
		s.l.Debug("closed")
	}
	return nil
}

func (s *localFS) IsConnected() bool {
	return s.connected.Load()
}

func (s *localFS) check(key storage.Key, item bool) error {
	if !s.connected.Load() {
		return status.ErrNotConnected
	}
	if item {
		return key.ValidateItem()
	}
	return key.Validate()
}

// escape a key component into a file name.
//
// Dots and upper case letters are percent-encoded too, so that file names never collide
// on case-insensitive file systems and never resolve to "." or "..".
func escape(component string) string {
	escaped := url.PathEscape(component)
	var b strings.Builder
	b.Grow(len(escaped))
	for i := 0; i < len(escaped); i++ {
		c := escaped[i]
		switch {
		case c == '%' && i+2 < len(escaped):
			b.WriteString(escaped[i : i+3])
			i += 2
		case c == '.' || ('A' <= c && c <= 'Z'):
			fmt.Fprintf(&b, "%%%02X", c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// keyPath yields the relative path of a key, or of the directory holding a prefix
func keyPath(key storage.Key) string {
	parts := make([]string, 0, 3)
	for _, component := range [...]string{key.Database, key.Project, key.ID} {
		if component == "" {
			break
		}
		parts = append(parts, escape(component))
	}
	return path.Join(parts...)
}

func parsePath(pth string) (storage.Key, error) {
	parts := strings.Split(filepath.ToSlash(pth), "/")
	if len(parts) != 3 {
		return storage.Key{}, status.ErrInvalidKey.Wrap(fmt.Errorf("unexpected file %q", pth))
	}
	var components [3]string
	for i, part := range parts {
		c, err := url.PathUnescape(part)
		if err != nil {
			return storage.Key{}, status.ErrInvalidKey.Wrap(fmt.Errorf("unexpected file %q: %w", pth, err))
		}
		components[i] = c
	}
	return storage.Key{Database: components[0], Project: components[1], ID: components[2]}, nil
}

func (s *localFS) Has(_ context.Context, key storage.Key) (bool, error) {
	if err := s.check(key, true); err != nil {
		return false, err
	}
	fi, err := s.fs.Stat(keyPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, status.ErrStorageAPI.Wrap(err)
	}
	return !fi.IsDir(), nil
}

func (s *localFS) Get(_ context.Context, key storage.Key) ([]byte, error) {
	if err := s.check(key, true); err != nil {
		return nil, err
	}
	return s.read(keyPath(key))
}

func (s *localFS) read(pth string) ([]byte, error) {
	raw, err := afero.ReadFile(s.fs, pth)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, status.ErrNotFound
		}
		return nil, status.ErrStorageAPI.Wrap(fmt.Errorf("reading %q: %w", pth, err))
	}
	return s.codec.Decode(raw)
}

func (s *localFS) Put(_ context.Context, key storage.Key, value []byte) error {
	if err := s.check(key, true); err != nil {
		return err
	}
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.write(keyPath(key), value)
}

// write a value into the staging area, then rename it into place
func (s *localFS) write(pth string, value []byte) error {
	encoded, err := s.codec.Encode(value)
	if err != nil {
		return err
	}
	staged := path.Join(putStageName, ksuid.New().String())
	if err = afero.WriteFile(s.fs, staged, encoded, 0600); err != nil {
		return status.ErrStorageAPI.Wrap(fmt.Errorf("staging %q: %w", pth, err))
	}
	// Rename() doesn't create directories automatically
	if err = s.fs.MkdirAll(path.Dir(pth), 0700); err != nil {
		_ = s.fs.Remove(staged)
		return status.ErrStorageAPI.Wrap(fmt.Errorf("ensuring directories for %q: %w", pth, err))
	}
	if err = s.fs.Rename(staged, pth); err != nil {
		_ = s.fs.Remove(staged)
		return status.ErrStorageAPI.Wrap(fmt.Errorf("moving %q into place: %w", pth, err))
	}
	return nil
}

func (s *localFS) Delete(_ context.Context, key storage.Key) error {
	if err := s.check(key, true); err != nil {
		return err
	}
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.remove(keyPath(key))
}

func (s *localFS) remove(pth string) error {
	if err := s.fs.Remove(pth); err != nil && !os.IsNotExist(err) {
		return status.ErrStorageAPI.Wrap(fmt.Errorf("removing %q: %w", pth, err))
	}
	return nil
}

type pair struct {
	key   storage.Key
	value []byte
}

func (s *localFS) Keys(ctx context.Context, prefix storage.Key) ([]storage.Key, error) {
	pairs, err := s.collect(ctx, prefix, false)
	if err != nil {
		return nil, err
	}
	keys := make([]storage.Key, 0, len(pairs))
	for _, p := range pairs {
		keys = append(keys, p.key)
	}
	return keys, nil
}

func (s *localFS) Scan(ctx context.Context, prefix storage.Key, fn storage.ScanFunc) error {
	pairs, err := s.collect(ctx, prefix, true)
	if err != nil {
		return err
	}
	for _, p := range pairs {
		if err := fn(p.key, p.value); err != nil {
			return err
		}
	}
	return nil
}

// collect all key-value pairs under a prefix while writers are held off, in key order
func (s *localFS) collect(ctx context.Context, prefix storage.Key, withValues bool) ([]pair, error) {
	if err := s.check(prefix, false); err != nil {
		return nil, err
	}
	s.mx.RLock()
	defer s.mx.RUnlock()

	root := keyPath(prefix)
	if root == "" {
		root = "."
	}
	var pairs []pair
	err := afero.Walk(s.fs, root, func(pth string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) && pth == root {
				return nil
			}
			return err
		}
		if e := ctx.Err(); e != nil {
			return e
		}
		name := info.Name()
		if info.IsDir() {
			if name == putStageName || name == trashName {
				return filepath.SkipDir
			}
			return nil
		}
		k, e := parsePath(strings.TrimPrefix(filepath.ToSlash(pth), "/"))
		if e != nil {
			s.l.Warn("skipping unexpected file", zap.String("path", pth), zap.Error(e))
			return nil
		}
		if !k.HasPrefix(prefix) {
			return nil
		}
		p := pair{key: k}
		if withValues {
			if p.value, e = s.read(pth); e != nil {
				return e
			}
		}
		pairs = append(pairs, p)
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, status.ErrStorageAPI.Wrap(err)
	}

	sort.Slice(pairs, func(i, j int) bool {
		return bytes.Compare(pairs[i].key.Bytes(), pairs[j].key.Bytes()) < 0
	})
	return pairs, nil
}

func (s *localFS) CompareAndSwap(_ context.Context, key storage.Key, expected, value []byte) error {
	if err := s.check(key, true); err != nil {
		return err
	}
	s.mx.Lock()
	defer s.mx.Unlock()

	pth := keyPath(key)
	current, err := s.read(pth)
	switch {
	case err == status.ErrNotFound:
		if expected != nil {
			return status.ErrMismatch
		}
	case err != nil:
		return err
	case expected == nil || !bytes.Equal(current, expected):
		return status.ErrMismatch
	}

	if value == nil {
		return s.remove(pth)
	}
	return s.write(pth, value)
}

// DeletePrefix moves the directory of a prefix to the trash before removing it
func (s *localFS) DeletePrefix(_ context.Context, prefix storage.Key) error {
	if err := s.check(prefix, false); err != nil {
		return err
	}
	s.mx.Lock()
	defer s.mx.Unlock()

	if !prefix.IsPrefix() {
		return s.remove(keyPath(prefix))
	}

	var dirs []string
	if prefix.Database == "" {
		entries, err := afero.ReadDir(s.fs, ".")
		if err != nil {
			return status.ErrStorageAPI.Wrap(err)
		}
		for _, entry := range entries {
			if name := entry.Name(); name != putStageName && name != trashName {
				dirs = append(dirs, name)
			}
		}
	} else {
		dirs = []string{keyPath(prefix)}
	}

	for _, dir := range dirs {
		trashed := path.Join(trashName, ksuid.New().String())
		if err := s.fs.Rename(dir, trashed); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return status.ErrStorageAPI.Wrap(fmt.Errorf("trashing %q: %w", dir, err))
		}
		if err := s.fs.RemoveAll(trashed); err != nil {
			s.l.Warn("could not empty trash", zap.String("path", trashed), zap.Error(err))
		}
	}
	return nil
}
