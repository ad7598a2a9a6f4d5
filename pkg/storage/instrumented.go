// Copyright © 2018 One Concern

package storage

import (
	"context"
	"strings"

	opentracing "github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"go.uber.org/zap"
)

// InstrumentOption configures an instrumented store
type InstrumentOption func(*instrumentedStore)

// WithTracer sets the tracer used to report spans. It defaults to the global tracer.
func WithTracer(tr opentracing.Tracer) InstrumentOption {
	return func(i *instrumentedStore) {
		if tr != nil {
			i.tr = tr
		}
	}
}

// WithLogger sets the logger for storage operations. It defaults to a no-op logger.
func WithLogger(l *zap.Logger) InstrumentOption {
	return func(i *instrumentedStore) {
		if l != nil {
			i.logs = l
		}
	}
}

// Instrument decorates a store with tracing spans and debug logs
func Instrument(store Store, opts ...InstrumentOption) Store {
	i := &instrumentedStore{
		store: store,
		tr:    opentracing.GlobalTracer(),
		logs:  zap.NewNop(),
	}
	for _, apply := range opts {
		apply(i)
	}
	i.logs = i.logs.With(zap.String("store", store.String()))
	return i
}

type instrumentedStore struct {
	store Store
	tr    opentracing.Tracer
	logs  *zap.Logger
}

func (i *instrumentedStore) opName(name string) string {
	return strings.Join([]string{"storage", i.String(), name}, ".")
}

func (i *instrumentedStore) spanFromContext(ctx context.Context, name string) opentracing.Span {
	parent := opentracing.SpanFromContext(ctx)
	var span opentracing.Span
	if parent != nil {
		span = i.tr.StartSpan(i.opName(name), opentracing.ChildOf(parent.Context()))
	} else {
		span = i.tr.StartSpan(i.opName(name))
	}
	return span
}

func finish(span opentracing.Span, err error) {
	if err != nil {
		ext.Error.Set(span, true)
		span.SetTag("error.message", err.Error())
	}
	span.Finish()
}

func (i *instrumentedStore) String() string {
	return i.store.String()
}

func (i *instrumentedStore) Connect(ctx context.Context) (err error) {
	span := i.spanFromContext(ctx, "Connect")
	defer func() { finish(span, err) }()
	i.logs.Debug("storage connect")

	return i.store.Connect(ctx)
}

func (i *instrumentedStore) Close(ctx context.Context) (err error) {
	span := i.spanFromContext(ctx, "Close")
	defer func() { finish(span, err) }()
	i.logs.Debug("storage close")

	return i.store.Close(ctx)
}

func (i *instrumentedStore) IsConnected() bool {
	return i.store.IsConnected()
}

func (i *instrumentedStore) Has(ctx context.Context, key Key) (has bool, err error) {
	span := i.spanFromContext(ctx, "Has")
	defer func() { finish(span, err) }()
	i.logs.Debug("storage has", zap.Stringer("key", key))

	return i.store.Has(ctx, key)
}

func (i *instrumentedStore) Get(ctx context.Context, key Key) (value []byte, err error) {
	span := i.spanFromContext(ctx, "Get")
	defer func() { finish(span, err) }()
	i.logs.Debug("storage get", zap.Stringer("key", key))

	return i.store.Get(ctx, key)
}

func (i *instrumentedStore) Put(ctx context.Context, key Key, value []byte) (err error) {
	span := i.spanFromContext(ctx, "Put")
	defer func() { finish(span, err) }()
	i.logs.Debug("storage put", zap.Stringer("key", key), zap.Int("size", len(value)))

	return i.store.Put(ctx, key, value)
}

func (i *instrumentedStore) Delete(ctx context.Context, key Key) (err error) {
	span := i.spanFromContext(ctx, "Delete")
	defer func() { finish(span, err) }()
	i.logs.Debug("storage delete", zap.Stringer("key", key))

	return i.store.Delete(ctx, key)
}

func (i *instrumentedStore) Keys(ctx context.Context, prefix Key) (keys []Key, err error) {
	span := i.spanFromContext(ctx, "Keys")
	defer func() { finish(span, err) }()
	i.logs.Debug("storage keys", zap.Stringer("prefix", prefix))

	return i.store.Keys(ctx, prefix)
}

func (i *instrumentedStore) Scan(ctx context.Context, prefix Key, fn ScanFunc) (err error) {
	span := i.spanFromContext(ctx, "Scan")
	defer func() { finish(span, err) }()
	i.logs.Debug("storage scan", zap.Stringer("prefix", prefix))

	return i.store.Scan(ctx, prefix, fn)
}

func (i *instrumentedStore) CompareAndSwap(ctx context.Context, key Key, expected, value []byte) (err error) {
	span := i.spanFromContext(ctx, "CompareAndSwap")
	defer func() { finish(span, err) }()
	i.logs.Debug("storage compare-and-swap", zap.Stringer("key", key),
		zap.Bool("expect_absent", expected == nil), zap.Bool("delete", value == nil))

	return i.store.CompareAndSwap(ctx, key, expected, value)
}

func (i *instrumentedStore) DeletePrefix(ctx context.Context, prefix Key) (err error) {
	span := i.spanFromContext(ctx, "DeletePrefix")
	defer func() { finish(span, err) }()
	i.logs.Debug("storage delete prefix", zap.Stringer("prefix", prefix))

	return i.store.DeletePrefix(ctx, prefix)
}
