package signalstore

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dave-morgan/signalkv/errors"
	"github.com/dave-morgan/signalkv/kvstore"
	"github.com/dave-morgan/signalkv/metric"
	"github.com/dave-morgan/signalkv/stream"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) (*Store, *kvstore.Client) {
	t.Helper()
	client := kvstore.NewClient(nil, kvstore.WithLogger(discardLogger()))
	t.Cleanup(func() { _ = client.Close() })

	store, err := NewStore(client, WithStoreLogger(discardLogger()))
	require.NoError(t, err)
	return store, client
}

func awaitHydrated[T any](t *testing.T, cell *Cell[T]) {
	t.Helper()
	select {
	case <-cell.Hydrated():
	case <-time.After(5 * time.Second):
		t.Fatal("hydration did not settle")
	}
}

// fakeKV lets tests gate reads and inject write failures.
type fakeKV struct {
	mu      sync.Mutex
	data    map[string]string
	getGate chan struct{}
	setErr  error
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: make(map[string]string)}
}

func (f *fakeKV) GetString(_ context.Context, key string, _ kvstore.KeyOptions) (string, bool, error) {
	f.mu.Lock()
	gate := f.getGate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *fakeKV) SetString(_ context.Context, key, value string, _ kvstore.KeyOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return f.setErr
	}
	f.data[key] = value
	return nil
}

func TestNewStore_NilKV(t *testing.T) {
	_, err := NewStore(nil)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestStore_CellIdentity(t *testing.T) {
	store, _ := newTestStore(t)

	first, err := store.String("user", Options{})
	require.NoError(t, err)
	second, err := store.String("user", Options{})
	require.NoError(t, err)
	assert.Same(t, first, second)

	otherNS, err := store.String("user", Options{Namespace: "auth"})
	require.NoError(t, err)
	assert.NotSame(t, first, otherNS)

	otherInstance, err := store.String("user", Options{InstanceID: "secure"})
	require.NoError(t, err)
	assert.NotSame(t, first, otherInstance)
	assert.NotSame(t, otherNS, otherInstance)
}

func TestStore_EmptyKeyRejected(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.String("", Options{})
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestStore_TypeConflict(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.String("count", Options{})
	require.NoError(t, err)

	_, err = store.Int("count", Options{})
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestStore_WriteVisibleSynchronously(t *testing.T) {
	store, _ := newTestStore(t)

	cell, err := store.String("theme", Options{})
	require.NoError(t, err)

	cell.Set("dark")
	assert.Equal(t, "dark", cell.Get())
}

func TestStore_HydratesStoredValue(t *testing.T) {
	store, client := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, client.SetString(ctx, "greeting", "hello", kvstore.KeyOptions{}))

	cell, err := store.String("greeting", Options{})
	require.NoError(t, err)
	awaitHydrated(t, cell)
	assert.Equal(t, "hello", cell.Get())
}

func TestStore_MissingKeyKeepsDefault(t *testing.T) {
	store, _ := newTestStore(t)

	cell, err := store.StringWithDefault("missing", "X", Options{})
	require.NoError(t, err)
	awaitHydrated(t, cell)
	assert.Equal(t, "X", cell.Get())
}

func TestStore_ZeroDefaultWithoutStoredValue(t *testing.T) {
	store, _ := newTestStore(t)

	cell, err := store.Int("visits", Options{})
	require.NoError(t, err)
	awaitHydrated(t, cell)
	assert.Equal(t, int64(0), cell.Get())
}

func TestStore_IntHydration(t *testing.T) {
	store, client := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, client.SetString(ctx, "visits", "42", kvstore.KeyOptions{}))

	cell, err := store.Int("visits", Options{})
	require.NoError(t, err)
	awaitHydrated(t, cell)
	assert.Equal(t, int64(42), cell.Get())
}

func TestStore_UndecodableValueKeepsDefault(t *testing.T) {
	store, client := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, client.SetString(ctx, "visits", "abc", kvstore.KeyOptions{}))

	cell, err := store.IntWithDefault("visits", 7, Options{})
	require.NoError(t, err)
	awaitHydrated(t, cell)
	assert.Equal(t, int64(7), cell.Get())
}

func TestStore_PersistWritesThrough(t *testing.T) {
	store, client := newTestStore(t)
	ctx := context.Background()

	cell, err := store.Int("visits", Options{})
	require.NoError(t, err)
	awaitHydrated(t, cell)

	cell.Set(9)
	store.Flush()

	stored, found, err := client.GetString(ctx, "visits", kvstore.KeyOptions{})
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "9", stored)
}

func TestStore_PersistFailureSwallowed(t *testing.T) {
	kv := newFakeKV()
	kv.setErr = errors.ErrStorageUnavailable

	store, err := NewStore(kv, WithStoreLogger(discardLogger()))
	require.NoError(t, err)

	cell, err := store.String("theme", Options{})
	require.NoError(t, err)
	awaitHydrated(t, cell)

	cell.Set("dark")
	store.Flush()

	// The local value survives even though the write never reached storage.
	assert.Equal(t, "dark", cell.Get())
	assert.Equal(t, uint64(1), store.Stats().PersistFailures)
}

func TestStore_LocalWriteBeatsStaleHydrate(t *testing.T) {
	kv := newFakeKV()
	kv.data["theme"] = "old"
	gate := make(chan struct{})
	kv.getGate = gate

	store, err := NewStore(kv, WithStoreLogger(discardLogger()))
	require.NoError(t, err)

	cell, err := store.String("theme", Options{})
	require.NoError(t, err)

	// Write while the hydration read is still blocked.
	cell.Set("new")
	close(gate)
	awaitHydrated(t, cell)

	assert.Equal(t, "new", cell.Get())

	store.Flush()
	kv.mu.Lock()
	defer kv.mu.Unlock()
	assert.Equal(t, "new", kv.data["theme"])
}

func TestStore_Sync(t *testing.T) {
	store, client := newTestStore(t)
	ctx := context.Background()

	cell, err := store.String("theme", Options{})
	require.NoError(t, err)
	awaitHydrated(t, cell)
	assert.Equal(t, "", cell.Get())

	require.NoError(t, client.SetString(ctx, "theme", "light", kvstore.KeyOptions{}))
	require.NoError(t, store.Sync(ctx, "theme", Options{}))
	assert.Equal(t, "light", cell.Get())
}

func TestStore_SyncWithoutCellIsNoOp(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.Sync(context.Background(), "unseen", Options{}))
}

func TestStore_ClearCache(t *testing.T) {
	store, _ := newTestStore(t)

	first, err := store.String("user", Options{})
	require.NoError(t, err)

	store.ClearCache()

	second, err := store.String("user", Options{})
	require.NoError(t, err)
	assert.NotSame(t, first, second)
}

func TestStore_Watch(t *testing.T) {
	store, _ := newTestStore(t)

	cell, err := store.String("theme", Options{})
	require.NoError(t, err)
	awaitHydrated(t, cell)

	var mu sync.Mutex
	var seen []string
	sub := cell.Changes().Subscribe(stream.Observer[string]{
		Next: func(v string) {
			mu.Lock()
			seen = append(seen, v)
			mu.Unlock()
		},
	})
	defer sub.Unsubscribe()

	cell.Set("dark")
	cell.Set("light")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"dark", "light"}, seen)
}

func TestStore_WatchSeesHydration(t *testing.T) {
	kv := newFakeKV()
	kv.data["theme"] = "stored"
	gate := make(chan struct{})
	kv.getGate = gate

	store, err := NewStore(kv, WithStoreLogger(discardLogger()))
	require.NoError(t, err)

	cell, err := store.String("theme", Options{})
	require.NoError(t, err)

	got := make(chan string, 1)
	sub := cell.Changes().Subscribe(stream.Observer[string]{
		Next: func(v string) {
			select {
			case got <- v:
			default:
			}
		},
	})
	defer sub.Unsubscribe()

	close(gate)
	awaitHydrated(t, cell)

	select {
	case v := <-got:
		assert.Equal(t, "stored", v)
	case <-time.After(time.Second):
		t.Fatal("no hydration value observed")
	}
}

func TestStore_JSONCells(t *testing.T) {
	type settings struct {
		Theme string `json:"theme"`
		Scale int    `json:"scale"`
	}

	store, client := newTestStore(t)
	ctx := context.Background()

	cell, err := JSONWithDefault(store, "settings", settings{Theme: "light", Scale: 1}, Options{})
	require.NoError(t, err)
	awaitHydrated(t, cell)
	assert.Equal(t, settings{Theme: "light", Scale: 1}, cell.Get())

	cell.Set(settings{Theme: "dark", Scale: 2})
	store.Flush()

	stored, found, err := client.GetString(ctx, "settings", kvstore.KeyOptions{})
	require.NoError(t, err)
	require.True(t, found)
	assert.JSONEq(t, `{"theme":"dark","scale":2}`, stored)

	again, err := JSON[settings](store, "settings", Options{})
	require.NoError(t, err)
	assert.Same(t, cell, again)
}

func TestStore_BytesRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)

	cell, err := store.Bytes("blob", Options{})
	require.NoError(t, err)
	awaitHydrated(t, cell)

	raw := []byte{0x00, 0x01, 0xfe}
	cell.Set(raw)
	store.Flush()
	store.ClearCache()

	reloaded, err := store.Bytes("blob", Options{})
	require.NoError(t, err)
	awaitHydrated(t, reloaded)
	assert.Equal(t, raw, reloaded.Get())
}

func TestStore_NamespaceIsolation(t *testing.T) {
	store, _ := newTestStore(t)

	a, err := store.String("token", Options{Namespace: "auth"})
	require.NoError(t, err)
	b, err := store.String("token", Options{Namespace: "billing"})
	require.NoError(t, err)
	awaitHydrated(t, a)
	awaitHydrated(t, b)

	a.Set("secret-a")
	b.Set("secret-b")
	store.Flush()

	assert.Equal(t, "secret-a", a.Get())
	assert.Equal(t, "secret-b", b.Get())

	store.ClearCache()
	reloaded, err := store.String("token", Options{Namespace: "auth"})
	require.NoError(t, err)
	awaitHydrated(t, reloaded)
	assert.Equal(t, "secret-a", reloaded.Get())
}

func TestStore_Stats(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.String("a", Options{})
	require.NoError(t, err)
	_, err = store.String("a", Options{})
	require.NoError(t, err)
	_, err = store.String("b", Options{})
	require.NoError(t, err)

	stats := store.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(2), stats.Misses)
}

func TestStore_WithMetrics(t *testing.T) {
	client := kvstore.NewClient(nil, kvstore.WithLogger(discardLogger()))
	t.Cleanup(func() { _ = client.Close() })

	registry := metric.NewMetricsRegistry()
	store, err := NewStore(client, WithStoreLogger(discardLogger()), WithMetrics(registry))
	require.NoError(t, err)

	cell, err := store.String("theme", Options{})
	require.NoError(t, err)
	awaitHydrated(t, cell)
	cell.Set("dark")
	store.Flush()

	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, mf := range families {
		names[mf.GetName()] = true
	}
	assert.True(t, names["signalstore_cells"])
	assert.True(t, names["signalstore_cache_misses_total"])
}
