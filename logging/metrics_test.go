package logging

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dave-morgan/signalkv/metric"
)

func counterValue(t *testing.T, registry *metric.MetricsRegistry, name, appID string) float64 {
	t.Helper()
	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, m := range family.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "app_id" && label.GetValue() == appID {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestRegistry_MetricsExport(t *testing.T) {
	source := newFakeSource()
	metricsRegistry := metric.NewMetricsRegistry()
	registry := NewRegistry(source,
		WithRegistryLogger(discardLogger()),
		WithRegistryMetrics(metricsRegistry))

	router := registry.Logger("app1")
	router.Enable(Config{
		Level:  LevelInfo,
		Filter: func(e Event) bool { return !strings.Contains(e.Message, "debug") },
	})

	source.emit(int(LevelInfo), "debug trace", "")
	source.emit(int(LevelError), "boom", "")

	assert.Equal(t, float64(2), counterValue(t, metricsRegistry, "logging_events_received_total", "app1"))
	assert.Equal(t, float64(1), counterValue(t, metricsRegistry, "logging_events_forwarded_total", "app1"))
	assert.Equal(t, float64(1), counterValue(t, metricsRegistry, "logging_events_dropped_total", "app1"))

	// Counters and atomic stats stay in lockstep.
	assert.Equal(t, int64(2), router.Stats().Received())
	assert.Equal(t, int64(1), router.Stats().Forwarded())
	assert.Equal(t, int64(1), router.Stats().Dropped())
}

func TestRegistry_MetricsPerAppID(t *testing.T) {
	source := newFakeSource()
	metricsRegistry := metric.NewMetricsRegistry()
	registry := NewRegistry(source,
		WithRegistryLogger(discardLogger()),
		WithRegistryMetrics(metricsRegistry))

	a := registry.Logger("app-a")
	b := registry.Logger("app-b")
	a.Enable(Config{Level: LevelVerbose})
	b.Enable(Config{Level: LevelVerbose})

	source.emit(int(LevelInfo), "hello", "")

	assert.Equal(t, float64(1), counterValue(t, metricsRegistry, "logging_events_received_total", "app-a"))
	assert.Equal(t, float64(1), counterValue(t, metricsRegistry, "logging_events_received_total", "app-b"))
}

func TestRegistry_MetricsRegistrationConflictDegrades(t *testing.T) {
	source := newFakeSource()
	metricsRegistry := metric.NewMetricsRegistry()

	first := NewRegistry(source,
		WithRegistryLogger(discardLogger()),
		WithRegistryMetrics(metricsRegistry))
	require.NotNil(t, first)

	// A second registry against the same metrics registry collides on the
	// counter names; routing must keep working without export.
	second := NewRegistry(source,
		WithRegistryLogger(discardLogger()),
		WithRegistryMetrics(metricsRegistry))

	router := second.Logger("app2")
	router.Enable(Config{Level: LevelVerbose})
	source.emit(int(LevelInfo), "still routed", "")

	assert.Equal(t, int64(1), router.Stats().Received())
	assert.Equal(t, float64(0), counterValue(t, metricsRegistry, "logging_events_received_total", "app2"))
}
