package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/oneconcern/graphstore/pkg/core"
	"github.com/oneconcern/graphstore/pkg/dlogger"
	"github.com/oneconcern/graphstore/pkg/storage"
	"github.com/oneconcern/graphstore/pkg/storage/badger"
	"github.com/oneconcern/graphstore/pkg/storage/localfs"
	"github.com/oneconcern/graphstore/pkg/storage/memory"
	"github.com/oneconcern/graphstore/pkg/storage/pebble"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

func newCodec(cfg *CLIConfig) (storage.Codec, error) {
	if cfg.Compression == compressionZstd {
		return storage.NewZstdCodec(0)
	}
	return storage.RawCodec, nil
}

func newStore(cfg *CLIConfig, l *zap.Logger) (storage.Store, error) {
	codec, err := newCodec(cfg)
	if err != nil {
		return nil, err
	}

	var store storage.Store
	switch cfg.Backend {
	case backendMemory:
		store = memory.New(memory.WithLogger(l))
	case backendBadger:
		size, err := cfg.memTableSize()
		if err != nil {
			return nil, err
		}
		store = badger.New(filepath.Join(cfg.Path, backendBadger),
			badger.WithLogger(l),
			badger.WithCodec(codec),
			badger.WithMemTableSize(size),
		)
	case backendPebble:
		store = pebble.New(filepath.Join(cfg.Path, backendPebble),
			pebble.WithLogger(l),
			pebble.WithCodec(codec),
		)
	case backendLocalFS:
		store = localfs.New(afero.NewBasePathFs(afero.NewOsFs(), filepath.Join(cfg.Path, backendLocalFS)),
			localfs.WithLogger(l),
			localfs.WithCodec(codec),
		)
	default:
		return nil, fmt.Errorf("unsupported backend %q", cfg.Backend)
	}
	return storage.Instrument(store, storage.WithLogger(l)), nil
}

// openDatabase opens the database configured for the CLI. The returned func closes it.
func openDatabase(ctx context.Context) (*core.Database, func(), error) {
	if config == nil {
		return nil, nil, errors.New("no valid configuration")
	}
	l, err := dlogger.GetLogger(config.LogLevel)
	if err != nil {
		return nil, nil, err
	}

	store, err := newStore(config, l)
	if err != nil {
		return nil, nil, err
	}
	db, err := core.New(store,
		core.WithName(config.Database),
		core.WithLogger(l),
		core.WithCacheSize(config.CacheSize),
	)
	if err != nil {
		return nil, nil, err
	}
	if err = db.Open(ctx); err != nil {
		return nil, nil, err
	}

	return db, func() {
		if err := db.Close(ctx); err != nil {
			l.Warn("closing database", zap.Error(err))
		}
		_ = l.Sync()
	}, nil
}

// openProject opens the database and the project configured for the CLI. The returned func closes both.
func openProject(ctx context.Context) (*core.Project, func(), error) {
	if config == nil || config.Project == "" {
		return nil, nil, errors.New("a project is required: use --project or set GRAPHSTORE_PROJECT")
	}
	db, closer, err := openDatabase(ctx)
	if err != nil {
		return nil, nil, err
	}
	p, err := db.OpenProject(ctx, config.Project)
	if err != nil {
		closer()
		return nil, nil, err
	}
	return p, func() {
		_ = p.Close()
		closer()
	}, nil
}
