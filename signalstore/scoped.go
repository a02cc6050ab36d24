package signalstore

import (
	"context"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/dave-morgan/signalkv/errors"
)

// Scoped is a view over a Store with the instance and namespace fixed.
// Cells are still cached by the underlying store, so a scoped accessor and a
// direct store accessor with matching options return the identical cell.
type Scoped struct {
	store      *Store
	instanceID string
	namespace  string
}

// Scope returns a view bound to the given instance and namespace.
func (s *Store) Scope(instanceID, namespace string) *Scoped {
	return &Scoped{store: s, instanceID: instanceID, namespace: namespace}
}

func (s *Scoped) options() Options {
	return Options{InstanceID: s.instanceID, Namespace: s.namespace}
}

// InstanceID reports the engine instance this view is bound to.
func (s *Scoped) InstanceID() string { return s.instanceID }

// Namespace reports the namespace this view is bound to.
func (s *Scoped) Namespace() string { return s.namespace }

func (s *Scoped) String(key string) (*Cell[string], error) {
	return s.store.String(key, s.options())
}

func (s *Scoped) StringWithDefault(key, def string) (*Cell[string], error) {
	return s.store.StringWithDefault(key, def, s.options())
}

func (s *Scoped) Int(key string) (*Cell[int64], error) {
	return s.store.Int(key, s.options())
}

func (s *Scoped) IntWithDefault(key string, def int64) (*Cell[int64], error) {
	return s.store.IntWithDefault(key, def, s.options())
}

func (s *Scoped) Float(key string) (*Cell[float64], error) {
	return s.store.Float(key, s.options())
}

func (s *Scoped) FloatWithDefault(key string, def float64) (*Cell[float64], error) {
	return s.store.FloatWithDefault(key, def, s.options())
}

func (s *Scoped) Bool(key string) (*Cell[bool], error) {
	return s.store.Bool(key, s.options())
}

func (s *Scoped) BoolWithDefault(key string, def bool) (*Cell[bool], error) {
	return s.store.BoolWithDefault(key, def, s.options())
}

func (s *Scoped) Bytes(key string) (*Cell[[]byte], error) {
	return s.store.Bytes(key, s.options())
}

func (s *Scoped) BytesWithDefault(key string, def []byte) (*Cell[[]byte], error) {
	return s.store.BytesWithDefault(key, def, s.options())
}

// ScopedJSON returns the JSON cell for key within the view's scope.
func ScopedJSON[T any](s *Scoped, key string) (*Cell[T], error) {
	return JSON[T](s.store, key, s.options())
}

// ScopedJSONWithDefault returns the JSON cell for key seeded with def.
func ScopedJSONWithDefault[T any](s *Scoped, key string, def T) (*Cell[T], error) {
	return JSONWithDefault(s.store, key, def, s.options())
}

// Sync forces a re-hydration of the scoped cell for key.
func (s *Scoped) Sync(ctx context.Context, key string) error {
	return s.store.Sync(ctx, key, s.options())
}

// ScopeRegistry caches scoped views so equal scopes resolve to the identical
// *Scoped. Callers that key component wiring off view identity get stable
// pointers without threading them through manually.
type ScopeRegistry struct {
	store     *Store
	scopes    *xsync.MapOf[string, *Scoped]
	destroyed atomic.Bool
}

// NewScopeRegistry builds a registry over store.
func NewScopeRegistry(store *Store) *ScopeRegistry {
	return &ScopeRegistry{
		store:  store,
		scopes: xsync.NewMapOf[string, *Scoped](),
	}
}

// Scope returns the cached view for the pair, creating it on first use.
// Returns a fatal error after Destroy.
func (r *ScopeRegistry) Scope(instanceID, namespace string) (*Scoped, error) {
	if r.destroyed.Load() {
		return nil, errors.WrapFatal(errors.ErrRegistryDestroyed, "ScopeRegistry", "Scope", "resolve view")
	}
	key := instanceID + "\x00" + namespace
	view, _ := r.scopes.LoadOrCompute(key, func() *Scoped {
		return r.store.Scope(instanceID, namespace)
	})
	return view, nil
}

// Size reports the number of cached views.
func (r *ScopeRegistry) Size() int {
	return r.scopes.Size()
}

// Destroy drops all cached views and rejects further lookups.
func (r *ScopeRegistry) Destroy() {
	r.destroyed.Store(true)
	r.scopes.Clear()
}
