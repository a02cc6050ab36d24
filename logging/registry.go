package logging

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/dave-morgan/signalkv/metric"
)

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithRegistryLogger sets the slog logger used by routers the registry
// creates. Defaults to slog.Default().
func WithRegistryLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithRegistryMetrics enables Prometheus export of router event counters,
// labeled by application identifier. Stats are collected either way.
func WithRegistryMetrics(registry *metric.MetricsRegistry) RegistryOption {
	return func(r *Registry) {
		r.metricsRegistry = registry
	}
}

// Registry is the process table of named routers: one Router per application
// identifier, created lazily and reused. Construct one per Source and inject
// it where loggers are needed; there is no ambient global.
type Registry struct {
	source          Source
	logger          *slog.Logger
	routers         *xsync.MapOf[string, *Router]
	metricsRegistry *metric.MetricsRegistry
	metrics         *routerMetrics

	defaultMu sync.Mutex
	defaultID string
}

// NewRegistry creates a registry whose routers attach to source.
func NewRegistry(source Source, opts ...RegistryOption) *Registry {
	r := &Registry{
		source:  source,
		logger:  slog.Default(),
		routers: xsync.NewMapOf[string, *Router](),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.metricsRegistry != nil {
		m, err := newRouterMetrics(r.metricsRegistry)
		if err != nil {
			// Only duplicate registration fails here; routing still works,
			// so degrade to stats-only rather than refuse to construct.
			r.logger.Warn("router metrics registration failed, export disabled", "error", err)
		} else {
			r.metrics = m
		}
	}
	return r
}

// DefaultAppID returns the current default application identifier,
// generating one on first use.
func (r *Registry) DefaultAppID() string {
	r.defaultMu.Lock()
	defer r.defaultMu.Unlock()
	if r.defaultID == "" {
		r.defaultID = uuid.NewString()
	}
	return r.defaultID
}

// SetDefaultAppID reassigns the default application identifier. Routers
// already handed out under the previous default keep their identity; only
// future Logger("") calls observe the new value.
func (r *Registry) SetDefaultAppID(appID string) {
	r.defaultMu.Lock()
	r.defaultID = appID
	r.defaultMu.Unlock()
}

// Logger returns the router for appID, creating it on first request. An
// empty appID resolves to the current default application identifier.
func (r *Registry) Logger(appID string) *Router {
	if appID == "" {
		appID = r.DefaultAppID()
	}
	router, _ := r.routers.LoadOrCompute(appID, func() *Router {
		return newRouter(appID, r.source, r.logger, r.metrics)
	})
	return router
}

// Destroy tears down the router for appID and removes its entry. A later
// Logger call for the same appID returns a fresh, disabled router.
func (r *Registry) Destroy(appID string) {
	if appID == "" {
		appID = r.DefaultAppID()
	}
	if router, ok := r.routers.LoadAndDelete(appID); ok {
		router.Destroy()
	}
}

// DestroyAll tears down every registered router.
func (r *Registry) DestroyAll() {
	r.routers.Range(func(appID string, _ *Router) bool {
		r.Destroy(appID)
		return true
	})
}

// Size returns the number of live routers.
func (r *Registry) Size() int {
	return r.routers.Size()
}
