package logging

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dave-morgan/signalkv/metric"
)

// routerMetrics holds the optional Prometheus collectors shared by every
// router of one registry, labeled by application identifier. A nil receiver
// is valid and makes every recording method a no-op, so routers can call
// through unconditionally.
type routerMetrics struct {
	received  *prometheus.CounterVec
	forwarded *prometheus.CounterVec
	dropped   *prometheus.CounterVec
}

func newRouterMetrics(registry *metric.MetricsRegistry) (*routerMetrics, error) {
	m := &routerMetrics{
		received: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "logging_events_received_total",
			Help: "Boundary events delivered to a router",
		}, []string{"app_id"}),
		forwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "logging_events_forwarded_total",
			Help: "Events published to a router's event stream",
		}, []string{"app_id"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "logging_events_dropped_total",
			Help: "Events rejected by a router's predicate filter",
		}, []string{"app_id"}),
	}
	registrations := []struct {
		name string
		vec  *prometheus.CounterVec
	}{
		{"events_received_total", m.received},
		{"events_forwarded_total", m.forwarded},
		{"events_dropped_total", m.dropped},
	}
	for _, reg := range registrations {
		if err := registry.RegisterCounterVec("logging", reg.name, reg.vec); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *routerMetrics) eventReceived(appID string) {
	if m != nil {
		m.received.WithLabelValues(appID).Inc()
	}
}

func (m *routerMetrics) eventForwarded(appID string) {
	if m != nil {
		m.forwarded.WithLabelValues(appID).Inc()
	}
}

func (m *routerMetrics) eventDropped(appID string) {
	if m != nil {
		m.dropped.WithLabelValues(appID).Inc()
	}
}
