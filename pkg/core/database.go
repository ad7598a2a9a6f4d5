package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oneconcern/graphstore/pkg/core/status"
	"github.com/oneconcern/graphstore/pkg/dlogger"
	"github.com/oneconcern/graphstore/pkg/errors"
	"github.com/oneconcern/graphstore/pkg/metrics"
	"github.com/oneconcern/graphstore/pkg/model"
	"github.com/oneconcern/graphstore/pkg/storage"
	storagestatus "github.com/oneconcern/graphstore/pkg/storage/status"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Database is a registry of projects, persisted in some store.
//
// The store is owned by the database: opening and closing the database connects and closes the store.
type Database struct {
	store    storage.Store
	settings Settings
	l        *zap.Logger
	m        *metrics.M
	cache    *objectCache

	// live project handles, by name
	projects    sync.Map
	generations atomic.Uint64
	mx          sync.Mutex
}

// New database on top of some store
func New(store storage.Store, opts ...Option) (*Database, error) {
	settings := defaultSettings()
	for _, apply := range opts {
		apply(&settings)
	}

	m, err := metrics.New(
		metrics.WithRegisterer(settings.registerer),
		metrics.WithConstLabels(prometheus.Labels{"database": settings.name}),
	)
	if err != nil {
		return nil, fmt.Errorf("registering metrics: %w", err)
	}

	cache, err := newObjectCache(settings.cacheSize, m)
	if err != nil {
		return nil, fmt.Errorf("object cache: %w", err)
	}

	return &Database{
		store:    store,
		settings: settings,
		l:        dlogger.Fork(settings.logger, store.String()).With(zap.String("database", settings.name)),
		m:        m,
		cache:    cache,
	}, nil
}

// Name of the database
func (d *Database) Name() string {
	return d.settings.name
}

// Store used by the database
func (d *Database) Store() storage.Store {
	return d.store
}

// Metrics collected by the database
func (d *Database) Metrics() *metrics.M {
	return d.m
}

// Open the database. Opening an open database is a no-op.
func (d *Database) Open(ctx context.Context) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.l.Debug("open database")

	if d.store.IsConnected() {
		d.l.Debug("reusing database connection")
		return nil
	}
	d.l.Debug("connecting to database...")
	if err := d.store.Connect(ctx); err != nil {
		return fmt.Errorf("opening database %q: %w", d.settings.name, err)
	}
	d.l.Debug("connected")
	return nil
}

// Close the database. Closing a closed database is a no-op.
func (d *Database) Close(ctx context.Context) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.l.Debug("close database")

	if !d.store.IsConnected() {
		d.l.Debug("no database connection was established")
		return nil
	}
	d.l.Debug("closing database and cleaning up...")
	if err := d.store.Close(ctx); err != nil {
		return fmt.Errorf("closing database %q: %w", d.settings.name, err)
	}
	d.l.Debug("closed")
	return nil
}

// IsOpen tells if the database is open
func (d *Database) IsOpen() bool {
	return d.store.IsConnected()
}

func (d *Database) checkOpen() error {
	if !d.store.IsConnected() {
		return status.ErrNotConnected
	}
	return nil
}

// ProjectNames lists the names of all projects, sorted.
//
// Only projects with a project record are listed.
func (d *Database) ProjectNames(ctx context.Context) (names []string, err error) {
	defer func(t0 time.Time) {
		d.m.Usage.UsedAll(t0, "ProjectNames")(err)
	}(time.Now())

	if err = d.checkOpen(); err != nil {
		return nil, err
	}
	keys, err := d.store.Keys(ctx, storage.DatabasePrefix(d.settings.name))
	if err != nil {
		return nil, translate(err)
	}

	names = make([]string, 0, 10)
	for _, k := range keys {
		if k.ID != model.ProjectInfoID {
			continue
		}
		names = append(names, k.Project)
	}
	sort.Strings(names)
	return names, nil
}

// CreateProject registers a new project and returns a handle to it
func (d *Database) CreateProject(ctx context.Context, name string) (p *Project, err error) {
	defer func(t0 time.Time) {
		d.m.Usage.UsedAll(t0, "CreateProject")(err)
	}(time.Now())
	d.l.Debug("create project", zap.String("project", name))

	if err = model.ValidateProjectName(name); err != nil {
		return nil, err
	}
	if err = d.checkOpen(); err != nil {
		return nil, err
	}

	record, err := model.EncodeProject(model.ProjectRecord{Name: name, Created: time.Now().UTC()})
	if err != nil {
		return nil, err
	}
	err = d.store.CompareAndSwap(ctx, d.projectKey(name), nil, record)
	if err != nil {
		if errors.Is(err, storagestatus.ErrMismatch) {
			return nil, status.ErrAlreadyExists.Wrap(fmt.Errorf("%q", name))
		}
		return nil, translate(err)
	}
	return d.handle(name), nil
}

// OpenProject returns a handle to an existing project.
//
// Handles are shared: opening a project several times returns the same handle.
func (d *Database) OpenProject(ctx context.Context, name string) (p *Project, err error) {
	defer func(t0 time.Time) {
		d.m.Usage.UsedAll(t0, "OpenProject")(err)
	}(time.Now())
	d.l.Debug("open project", zap.String("project", name))

	if err = model.ValidateProjectName(name); err != nil {
		return nil, err
	}
	if err = d.checkOpen(); err != nil {
		return nil, err
	}
	exists, err := d.store.Has(ctx, d.projectKey(name))
	if err != nil {
		return nil, translate(err)
	}
	if !exists {
		return nil, status.ErrProjectNotFound.Wrap(fmt.Errorf("%q", name))
	}
	return d.handle(name), nil
}

// DeleteProject removes a project with all its objects and branches.
//
// Deleting a project which does not exist is not an error. Live handles to the deleted
// project become invalid: handles are invalidated before any key is removed, so that
// writes racing with the deletion either get removed or are undone by their writer.
func (d *Database) DeleteProject(ctx context.Context, name string) (err error) {
	defer func(t0 time.Time) {
		d.m.Usage.UsedAll(t0, "DeleteProject")(err)
	}(time.Now())
	d.l.Debug("delete project", zap.String("project", name))

	if err = model.ValidateProjectName(name); err != nil {
		return err
	}
	if err = d.checkOpen(); err != nil {
		return err
	}

	if live, ok := d.projects.LoadAndDelete(name); ok {
		live.(*Project).invalidate()
	}
	if err = d.store.DeletePrefix(ctx, storage.ProjectPrefix(d.settings.name, name)); err != nil {
		return translate(err)
	}
	if evicted := d.cache.evict(name); evicted > 0 {
		d.l.Debug("evicted cached objects", zap.String("project", name), zap.Int("count", evicted))
	}
	return nil
}

func (d *Database) projectKey(name string) storage.Key {
	return storage.Key{Database: d.settings.name, Project: name, ID: model.ProjectInfoID}
}

// handle returns the live handle of a project, replacing any handle invalidated by a deletion
func (d *Database) handle(name string) *Project {
	for {
		fresh := newProject(d, name)
		actual, loaded := d.projects.LoadOrStore(name, fresh)
		p := actual.(*Project)
		if !loaded || !p.isDeleted() {
			return p
		}
		d.projects.CompareAndSwap(name, p, fresh)
	}
}

// translate errors from the store into core errors
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storagestatus.ErrNotConnected):
		return status.ErrNotConnected.Wrap(err)
	default:
		return err
	}
}
