package alerting

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalog "github.com/Zhima-Mochi/shopfast/internal/domain/catalog"
	domorder "github.com/Zhima-Mochi/shopfast/internal/domain/order"
	"github.com/Zhima-Mochi/shopfast/internal/infrastructure/memory"
	"github.com/Zhima-Mochi/shopfast/internal/observability"
)

type recordingMetrics struct {
	mu       sync.Mutex
	counts   map[string]float64
	gauges   map[string]float64
	counters map[observability.MetricKey]*recordingCounter
	gaugeSet map[observability.MetricKey]*recordingGauge
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		counts:   make(map[string]float64),
		gauges:   make(map[string]float64),
		counters: make(map[observability.MetricKey]*recordingCounter),
		gaugeSet: make(map[observability.MetricKey]*recordingGauge),
	}
}

func (m *recordingMetrics) Counter(name observability.MetricKey) observability.Counter {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.counters[name]; ok {
		return c
	}
	c := &recordingCounter{m: m, name: string(name)}
	m.counters[name] = c
	return c
}

func (m *recordingMetrics) Histogram(observability.MetricKey) observability.Histogram {
	return observability.NopHistogram()
}

func (m *recordingMetrics) Gauge(name observability.MetricKey) observability.Gauge {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.gaugeSet[name]; ok {
		return g
	}
	g := &recordingGauge{m: m, name: string(name)}
	m.gaugeSet[name] = g
	return g
}

type recordingCounter struct {
	m    *recordingMetrics
	name string
}

func (c *recordingCounter) Add(d float64, labels ...observability.Label) {
	c.m.mu.Lock()
	defer c.m.mu.Unlock()
	c.m.counts[c.name+labelSuffix(labels)] += d
}

type recordingGauge struct {
	m    *recordingMetrics
	name string
}

func (g *recordingGauge) Set(v float64, labels ...observability.Label) {
	g.m.mu.Lock()
	defer g.m.mu.Unlock()
	g.m.gauges[g.name+labelSuffix(labels)] = v
}

func labelSuffix(labels []observability.Label) string {
	s := ""
	for _, l := range labels {
		s += "{" + l.Key + "=" + l.Value + "}"
	}
	return s
}

func (m *recordingMetrics) count(key string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[key]
}

func (m *recordingMetrics) gauge(key string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gauges[key]
}

type fakeTel struct{ metrics *recordingMetrics }

func (f *fakeTel) Tracer() observability.Tracer   { return observability.NopTracer() }
func (f *fakeTel) Logger() observability.Logger   { return observability.NopLogger() }
func (f *fakeTel) Metrics() observability.Metrics { return f.metrics }

func TestWorkerTracksOrderOutcomes(t *testing.T) {
	store := memory.NewCatalogRepository()
	p, err := catalog.NewProduct("prod-1", "Widget", 2500, 4, 10)
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), p))

	metrics := newRecordingMetrics()
	w := NewWorker(store, &fakeTel{metrics: metrics})

	o, err := domorder.New("ord-1", "prod-1", 2, 5000)
	require.NoError(t, err)
	require.NoError(t, o.Complete("TXN-1"))

	require.NoError(t, w.onCompleted(context.Background(), domorder.NewOrderCompletedEvent(o)))

	assert.Equal(t, 1.0, metrics.count("orders_total{status=completed}"))
	assert.Equal(t, 5000.0, metrics.count("payment_amount_cents_total{kind=settlement}"))
	assert.Equal(t, 4.0, metrics.gauge("inventory_stock_level{product_id=prod-1}"))
	assert.Equal(t, 1.0, metrics.gauge("inventory_low_stock_products"))
}

func TestWorkerTracksFailuresAndRefunds(t *testing.T) {
	store := memory.NewCatalogRepository()
	p, err := catalog.NewProduct("prod-1", "Widget", 2500, 50, 10)
	require.NoError(t, err)
	require.NoError(t, store.Save(context.Background(), p))

	metrics := newRecordingMetrics()
	w := NewWorker(store, &fakeTel{metrics: metrics})

	o, err := domorder.New("ord-1", "prod-1", 2, 5000)
	require.NoError(t, err)

	require.NoError(t, w.onFailed(context.Background(), domorder.NewOrderFailedEvent(o, "card declined")))
	assert.Equal(t, 1.0, metrics.count("orders_total{status=failed}"))

	require.NoError(t, o.Complete("TXN-1"))
	require.NoError(t, o.Refund())
	require.NoError(t, w.onRefunded(context.Background(), domorder.NewOrderRefundedEvent(o)))
	assert.Equal(t, 1.0, metrics.count("orders_total{status=refunded}"))
	assert.Equal(t, 5000.0, metrics.count("payment_amount_cents_total{kind=refund}"))

	assert.Equal(t, 0.0, metrics.gauge("inventory_low_stock_products"))
}

func TestWorkerIgnoresUnexpectedEventPayloads(t *testing.T) {
	store := memory.NewCatalogRepository()
	metrics := newRecordingMetrics()
	w := NewWorker(store, &fakeTel{metrics: metrics})

	require.NoError(t, w.onCompleted(context.Background(), domorder.OrderFailedEvent{}))
	assert.Equal(t, 0.0, metrics.count("orders_total{status=completed}"))
}
