package core

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/oneconcern/graphstore/pkg/core/status"
	"github.com/oneconcern/graphstore/pkg/errors"
	"github.com/oneconcern/graphstore/pkg/model"
	"github.com/oneconcern/graphstore/pkg/storage"
	storagestatus "github.com/oneconcern/graphstore/pkg/storage/status"
	"go.uber.org/zap"
)

// Project is a handle to a project of a Database
type Project struct {
	name       string
	db         *Database
	l          *zap.Logger
	generation uint64
	deleted    atomic.Bool
}

func newProject(db *Database, name string) *Project {
	return &Project{
		name:       name,
		db:         db,
		l:          db.l.With(zap.String("project", name)),
		generation: db.generations.Add(1),
	}
}

// Name of the project
func (p *Project) Name() string {
	return p.name
}

// Close the handle. Other users of the same handle are not affected.
func (p *Project) Close() error {
	p.l.Debug("close project")
	return nil
}

func (p *Project) invalidate() {
	p.deleted.Store(true)
}

func (p *Project) isDeleted() bool {
	return p.deleted.Load()
}

// check that the database is open and the project still exists
func (p *Project) check() error {
	if p.isDeleted() {
		return status.ErrProjectNotFound.Wrap(fmt.Errorf("%q has been deleted", p.name))
	}
	return p.db.checkOpen()
}

// undo a write which raced with the deletion of the project, and report the project as not found.
//
// The key is removed only if it still holds what was written.
func (p *Project) undo(ctx context.Context, key storage.Key, written []byte) error {
	p.l.Debug("project deleted while writing", zap.String("key", key.ID))
	err := p.db.store.CompareAndSwap(ctx, key, written, nil)
	if err != nil && !errors.Is(err, storagestatus.ErrMismatch) && !errors.Is(err, storagestatus.ErrNotFound) {
		return translate(err)
	}
	return status.ErrProjectNotFound.Wrap(fmt.Errorf("%q has been deleted", p.name))
}

func (p *Project) key(id string) storage.Key {
	return storage.Key{Database: p.db.settings.name, Project: p.name, ID: id}
}

func (p *Project) prefix() storage.Key {
	return storage.ProjectPrefix(p.db.settings.name, p.name)
}

func (p *Project) record(method string, t0 time.Time, err error) {
	p.db.m.Usage.UsedAll(t0, method)(err)
}

// LoadObject retrieves an object by its identifier
func (p *Project) LoadObject(ctx context.Context, id string) (o *model.Object, err error) {
	defer func(t0 time.Time) {
		p.record("LoadObject", t0, err)
	}(time.Now())

	return p.loadObject(ctx, id)
}

func (p *Project) loadObject(ctx context.Context, id string) (*model.Object, error) {
	if err := model.ValidateHash(id); err != nil {
		return nil, err
	}
	if err := p.check(); err != nil {
		return nil, err
	}
	if o, ok := p.db.cache.get(p.name, p.generation, id); ok {
		return o, nil
	}

	raw, err := p.db.store.Get(ctx, p.key(id))
	if err != nil {
		if errors.Is(err, storagestatus.ErrNotFound) {
			return nil, status.ErrObjectNotFound.Wrap(fmt.Errorf("%s in project %q", id, p.name))
		}
		return nil, translate(err)
	}
	o, err := model.DecodeObject(raw)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", id, err)
	}
	p.db.cache.add(p.name, p.generation, o)
	return o, nil
}

// InsertObject stores an object.
//
// Inserting an object already present is a no-op: the stored content is not rewritten.
func (p *Project) InsertObject(ctx context.Context, o *model.Object) (err error) {
	defer func(t0 time.Time) {
		p.record("InsertObject", t0, err)
	}(time.Now())

	if o == nil {
		return status.ErrInvalidID.Wrap(fmt.Errorf("nil object"))
	}
	if err = o.Validate(); err != nil {
		return err
	}
	if err = p.check(); err != nil {
		return err
	}

	key := p.key(o.ID)
	err = p.db.store.CompareAndSwap(ctx, key, nil, o.Body())
	switch {
	case err == nil:
		if p.isDeleted() {
			return p.undo(ctx, key, o.Body())
		}
		p.l.Debug("inserted object", zap.String("id", o.ID), zap.Stringer("kind", o.Kind))
	case errors.Is(err, storagestatus.ErrMismatch):
		p.l.Debug("object already present", zap.String("id", o.ID))
	default:
		return translate(err)
	}
	p.db.cache.add(p.name, p.generation, o)
	return nil
}
