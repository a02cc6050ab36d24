package logging

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dave-morgan/signalkv/kvstore"
	"github.com/dave-morgan/signalkv/stream"
)

// Source is the storage boundary a Router attaches to. kvstore.Client
// satisfies it.
type Source interface {
	// AddListener registers a boundary event callback and returns its
	// removal function.
	AddListener(sink kvstore.EventSink) (remove func())
	// SetLogLevel sets the boundary severity threshold.
	SetLogLevel(level int)
}

// Config configures an enabled Router.
type Config struct {
	// Level is the severity threshold pushed down to the Source.
	Level Level
	// Filter, when set, drops events for which it returns false before
	// they reach the event stream. Dropped events are counted but
	// otherwise silent.
	Filter func(Event) bool
}

// Stats tracks router event accounting. Counters are cumulative for the
// router's lifetime, across enable/disable cycles.
type Stats struct {
	received  atomic.Int64
	forwarded atomic.Int64
	dropped   atomic.Int64
}

// Received returns the number of events delivered by the source.
func (s *Stats) Received() int64 { return s.received.Load() }

// Forwarded returns the number of events published to the stream.
func (s *Stats) Forwarded() int64 { return s.forwarded.Load() }

// Dropped returns the number of events rejected by the filter.
func (s *Stats) Dropped() int64 { return s.dropped.Load() }

// Router receives raw log callbacks from the storage boundary, applies an
// optional predicate filter, and republishes matching events onto its event
// stream. One Router exists per application identifier; obtain instances
// through a Registry.
type Router struct {
	appID   string
	source  Source
	logger  *slog.Logger
	stats   *Stats
	metrics *routerMetrics

	mu             sync.Mutex
	enabled        bool
	removeListener func()
	filter         func(Event) bool

	subject *stream.Subject[Event]
}

func newRouter(appID string, source Source, logger *slog.Logger, metrics *routerMetrics) *Router {
	return &Router{
		appID:   appID,
		source:  source,
		logger:  logger,
		stats:   &Stats{},
		metrics: metrics,
		subject: stream.NewSubject[Event](),
	}
}

// AppID returns the application identifier this router belongs to.
func (r *Router) AppID() string {
	return r.appID
}

// Stats returns the router's event counters.
func (r *Router) Stats() *Stats {
	return r.stats
}

// Enabled reports whether the router currently holds a boundary listener.
func (r *Router) Enabled() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabled
}

// Enable attaches the router to its source: sets the boundary severity
// threshold, stores the predicate filter, and registers exactly one boundary
// listener. If the router is already enabled it is fully disabled first so a
// reconfiguration never leaves a duplicate listener behind.
func (r *Router) Enable(cfg Config) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.enabled {
		r.disableLocked()
	}

	r.source.SetLogLevel(int(cfg.Level))
	r.filter = cfg.Filter
	r.removeListener = r.source.AddListener(r.handle)
	r.enabled = true

	r.logger.Debug("logging enabled", "app_id", r.appID, "level", cfg.Level.String())
}

// Disable detaches the router from its source and clears the filter. Safe to
// call when already disabled.
func (r *Router) Disable() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disableLocked()
}

func (r *Router) disableLocked() {
	if !r.enabled {
		return
	}
	r.source.SetLogLevel(int(LevelOff))
	if r.removeListener != nil {
		r.removeListener()
		r.removeListener = nil
	}
	r.filter = nil
	r.enabled = false

	r.logger.Debug("logging disabled", "app_id", r.appID)
}

// Destroy disables the router and completes its event stream. Derived
// filtered streams terminate with it. A destroyed router stays queryable but
// publishes nothing further.
func (r *Router) Destroy() {
	r.Disable()
	r.subject.Complete()
}

// handle is the boundary listener: it stamps the raw callback into an Event,
// applies the predicate, and republishes survivors.
func (r *Router) handle(level int, message, instanceID string) {
	event := Event{
		Level:      Level(level),
		Message:    message,
		Timestamp:  time.Now().UnixMilli(),
		InstanceID: instanceID,
	}

	r.stats.received.Add(1)
	r.metrics.eventReceived(r.appID)

	r.mu.Lock()
	filter := r.filter
	r.mu.Unlock()

	if filter != nil && !filter(event) {
		r.stats.dropped.Add(1)
		r.metrics.eventDropped(r.appID)
		return
	}

	r.stats.forwarded.Add(1)
	r.metrics.eventForwarded(r.appID)
	r.subject.Next(event)
}

// Logs returns the router's event stream.
func (r *Router) Logs() *stream.Subject[Event] {
	return r.subject
}

// LogsForLevel returns a lazy view of the stream containing only events of
// exactly the given level.
func (r *Router) LogsForLevel(level Level) *stream.Subject[Event] {
	return stream.Filter(r.subject, func(e Event) bool { return e.Level == level })
}

// ErrorLogs returns a lazy view of Error-level events.
func (r *Router) ErrorLogs() *stream.Subject[Event] {
	return r.LogsForLevel(LevelError)
}

// WarnLogs returns a lazy view of Warn-level events.
func (r *Router) WarnLogs() *stream.Subject[Event] {
	return r.LogsForLevel(LevelWarn)
}

// InfoLogs returns a lazy view of Info-level events.
func (r *Router) InfoLogs() *stream.Subject[Event] {
	return r.LogsForLevel(LevelInfo)
}

// DebugLogs returns a lazy view of Debug-level events.
func (r *Router) DebugLogs() *stream.Subject[Event] {
	return r.LogsForLevel(LevelDebug)
}

// LogsForInstance returns a lazy view of events for one engine instance.
func (r *Router) LogsForInstance(instanceID string) *stream.Subject[Event] {
	return stream.Filter(r.subject, func(e Event) bool { return e.InstanceID == instanceID })
}

// FilteredLogs returns a lazy view of events matching pred.
func (r *Router) FilteredLogs(pred func(Event) bool) *stream.Subject[Event] {
	return stream.Filter(r.subject, pred)
}
