package signalstore

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/dave-morgan/signalkv/errors"
	"github.com/dave-morgan/signalkv/kvstore"
	"github.com/dave-morgan/signalkv/metric"
	"github.com/dave-morgan/signalkv/stream"
)

// KV is the storage boundary the store hydrates from and persists to.
// *kvstore.Client satisfies it.
type KV interface {
	GetString(ctx context.Context, key string, opts kvstore.KeyOptions) (string, bool, error)
	SetString(ctx context.Context, key, value string, opts kvstore.KeyOptions) error
}

// Options selects the storage partition a cell binds to. The zero value
// addresses the default instance with no namespace.
type Options struct {
	InstanceID string
	Namespace  string
}

// Stats tracks store activity. Always collected; Prometheus export is
// opt-in via WithMetrics.
type Stats struct {
	hits            atomic.Uint64
	misses          atomic.Uint64
	hydrateFailures atomic.Uint64
	persistFailures atomic.Uint64
}

// StatsSnapshot is a point-in-time copy of store counters.
type StatsSnapshot struct {
	Hits            uint64
	Misses          uint64
	HydrateFailures uint64
	PersistFailures uint64
}

func (s *Stats) snapshot() StatsSnapshot {
	return StatsSnapshot{
		Hits:            s.hits.Load(),
		Misses:          s.misses.Load(),
		HydrateFailures: s.hydrateFailures.Load(),
		PersistFailures: s.persistFailures.Load(),
	}
}

// storeMetrics holds the optional Prometheus collectors. A nil receiver is
// valid and makes every recording method a no-op, so cells can call through
// unconditionally.
type storeMetrics struct {
	cells           prometheus.Gauge
	hits            prometheus.Counter
	misses          prometheus.Counter
	hydrateFailures prometheus.Counter
	persistFailures prometheus.Counter
}

func newStoreMetrics(registry *metric.MetricsRegistry) (*storeMetrics, error) {
	m := &storeMetrics{
		cells: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "signalstore_cells",
			Help: "Number of cells currently cached",
		}),
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalstore_cache_hits_total",
			Help: "Accessor calls served from the cell cache",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalstore_cache_misses_total",
			Help: "Accessor calls that created a new cell",
		}),
		hydrateFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalstore_hydrate_failures_total",
			Help: "Hydration reads that failed or decoded badly",
		}),
		persistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "signalstore_persist_failures_total",
			Help: "Background persists that failed",
		}),
	}
	if err := registry.RegisterGauge("signalstore", "cells", m.cells); err != nil {
		return nil, err
	}
	counters := []struct {
		name    string
		counter prometheus.Counter
	}{
		{"cache_hits_total", m.hits},
		{"cache_misses_total", m.misses},
		{"hydrate_failures_total", m.hydrateFailures},
		{"persist_failures_total", m.persistFailures},
	}
	for _, reg := range counters {
		if err := registry.RegisterCounter("signalstore", reg.name, reg.counter); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *storeMetrics) hit() {
	if m != nil {
		m.hits.Inc()
	}
}

func (m *storeMetrics) miss() {
	if m != nil {
		m.misses.Inc()
		m.cells.Inc()
	}
}

func (m *storeMetrics) hydrateFailure() {
	if m != nil {
		m.hydrateFailures.Inc()
	}
}

func (m *storeMetrics) persistFailure() {
	if m != nil {
		m.persistFailures.Inc()
	}
}

func (m *storeMetrics) cacheCleared() {
	if m != nil {
		m.cells.Set(0)
	}
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithStoreLogger sets the logger for hydration and persistence diagnostics.
func WithStoreLogger(logger *slog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithMetrics enables Prometheus export of store counters. Stats are
// collected either way.
func WithMetrics(registry *metric.MetricsRegistry) StoreOption {
	return func(s *Store) {
		s.metricsRegistry = registry
	}
}

// Store caches reactive cells over a key-value boundary. One cell exists per
// (instance, namespace, key) triple: repeated accessor calls for the same
// triple return the identical *Cell, so every caller observes the same
// value and update stream.
type Store struct {
	kv              KV
	cells           *xsync.MapOf[string, any]
	logger          *slog.Logger
	stats           *Stats
	metricsRegistry *metric.MetricsRegistry
	metrics         *storeMetrics
	persistWG       sync.WaitGroup
}

// NewStore builds a cell store over kv.
func NewStore(kv KV, opts ...StoreOption) (*Store, error) {
	if kv == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Store", "NewStore", "validate storage boundary")
	}
	s := &Store{
		kv:     kv,
		cells:  xsync.NewMapOf[string, any](),
		logger: slog.Default(),
		stats:  &Stats{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metricsRegistry != nil {
		m, err := newStoreMetrics(s.metricsRegistry)
		if err != nil {
			return nil, errors.WrapFatal(err, "Store", "NewStore", "register metrics")
		}
		s.metrics = m
	}
	return s, nil
}

// Stats returns a snapshot of the store's counters.
func (s *Store) Stats() StatsSnapshot {
	return s.stats.snapshot()
}

// String returns the cell for key, seeded with the empty string until
// hydration resolves a stored value.
func (s *Store) String(key string, opts Options) (*Cell[string], error) {
	return acquire(s, key, opts, "", StringCodec())
}

// StringWithDefault returns the cell for key seeded with def. The default is
// what callers observe whenever no stored value resolves, so the cell never
// reports an absent state.
func (s *Store) StringWithDefault(key, def string, opts Options) (*Cell[string], error) {
	return acquire(s, key, opts, def, StringCodec())
}

// Int returns the cell for key, seeded with zero. Stored text that does not
// parse as a decimal integer is treated as absent.
func (s *Store) Int(key string, opts Options) (*Cell[int64], error) {
	return acquire(s, key, opts, 0, IntCodec())
}

// IntWithDefault returns the cell for key seeded with def.
func (s *Store) IntWithDefault(key string, def int64, opts Options) (*Cell[int64], error) {
	return acquire(s, key, opts, def, IntCodec())
}

// Float returns the cell for key, seeded with zero.
func (s *Store) Float(key string, opts Options) (*Cell[float64], error) {
	return acquire(s, key, opts, 0, FloatCodec())
}

// FloatWithDefault returns the cell for key seeded with def.
func (s *Store) FloatWithDefault(key string, def float64, opts Options) (*Cell[float64], error) {
	return acquire(s, key, opts, def, FloatCodec())
}

// Bool returns the cell for key, seeded with false.
func (s *Store) Bool(key string, opts Options) (*Cell[bool], error) {
	return acquire(s, key, opts, false, BoolCodec())
}

// BoolWithDefault returns the cell for key seeded with def.
func (s *Store) BoolWithDefault(key string, def bool, opts Options) (*Cell[bool], error) {
	return acquire(s, key, opts, def, BoolCodec())
}

// Bytes returns the cell for key, seeded with a nil slice.
func (s *Store) Bytes(key string, opts Options) (*Cell[[]byte], error) {
	return acquire(s, key, opts, nil, BytesCodec())
}

// BytesWithDefault returns the cell for key seeded with def.
func (s *Store) BytesWithDefault(key string, def []byte, opts Options) (*Cell[[]byte], error) {
	return acquire(s, key, opts, def, BytesCodec())
}

// JSON returns the cell for key holding a JSON-encoded value, seeded with
// the zero value of T. Methods cannot introduce type parameters, so the
// structured accessors are package functions.
func JSON[T any](s *Store, key string, opts Options) (*Cell[T], error) {
	var zero T
	return acquire(s, key, opts, zero, JSONCodec[T]())
}

// JSONWithDefault returns the JSON cell for key seeded with def.
func JSONWithDefault[T any](s *Store, key string, def T, opts Options) (*Cell[T], error) {
	return acquire(s, key, opts, def, JSONCodec[T]())
}

// Custom returns the cell for key using an explicit codec, for values whose
// wire form none of the built-in codecs fit.
func Custom[T any](s *Store, key string, def T, codec Codec[T], opts Options) (*Cell[T], error) {
	return acquire(s, key, opts, def, codec)
}

type resyncer interface {
	resync(ctx context.Context) error
}

// Sync forces an immediate re-hydration of the cell for key, if one is
// cached. The refreshed value still loses to any write that lands while the
// read is in flight. A key with no cached cell is a no-op.
func (s *Store) Sync(ctx context.Context, key string, opts Options) error {
	v, ok := s.cells.Load(cacheKey(opts, key))
	if !ok {
		return nil
	}
	cell, ok := v.(resyncer)
	if !ok {
		return errors.WrapFatal(errors.ErrInvalidData, "Store", "Sync", "resolve cached cell")
	}
	return cell.resync(ctx)
}

// ClearCache drops every cached cell. Existing cell pointers keep working
// against their own state but are no longer shared: the next accessor call
// for the same key creates a fresh cell.
func (s *Store) ClearCache() {
	s.cells.Clear()
	s.metrics.cacheCleared()
}

// Flush blocks until all in-flight background persists have settled. Call
// before process shutdown so fire-and-forget writes are not lost.
func (s *Store) Flush() {
	s.persistWG.Wait()
}

// cacheKey discriminates cells by the full storage coordinate. NUL cannot
// appear in instance or namespace names coming off the plugin boundary, so
// it is a safe separator.
func cacheKey(opts Options, key string) string {
	return opts.InstanceID + "\x00" + opts.Namespace + "\x00" + key
}

// acquire returns the cached cell for the triple, creating and hydrating one
// on first use. The cell is inserted into the cache before hydration starts,
// so concurrent callers share a single hydration rather than racing reads.
func acquire[T any](s *Store, key string, opts Options, def T, codec Codec[T]) (*Cell[T], error) {
	if key == "" {
		return nil, errors.WrapInvalid(errors.ErrEmptyKey, "Store", "acquire", "validate key")
	}

	ck := cacheKey(opts, key)
	created := false
	v, _ := s.cells.LoadOrCompute(ck, func() any {
		created = true
		cell := &Cell[T]{
			key:      key,
			codec:    codec,
			value:    def,
			hydrated: make(chan struct{}),
			read: func(ctx context.Context) (string, bool, error) {
				return s.kv.GetString(ctx, key, kvstore.KeyOptions{
					InstanceID: opts.InstanceID,
					Namespace:  opts.Namespace,
				})
			},
			write: func(ctx context.Context, value string) error {
				return s.kv.SetString(ctx, key, value, kvstore.KeyOptions{
					InstanceID: opts.InstanceID,
					Namespace:  opts.Namespace,
				})
			},
			changes: stream.NewSubject[T](),
			logger:  s.logger,
			stats:   s.stats,
			metrics: s.metrics,
			wg:      &s.persistWG,
		}
		return cell
	})

	cell, ok := v.(*Cell[T])
	if !ok {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "Store", "acquire",
			"resolve cached cell with a different value type")
	}

	if created {
		s.stats.misses.Add(1)
		s.metrics.miss()
		go func() {
			defer close(cell.hydrated)
			// Generation zero: any write issued before the read returns
			// outranks the stored value.
			_ = cell.hydrate(context.Background(), 0)
		}()
	} else {
		s.stats.hits.Add(1)
		s.metrics.hit()
	}
	return cell, nil
}
