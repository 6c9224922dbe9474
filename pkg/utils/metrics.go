package utils

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector owns a dedicated prometheus registry so multiple
// worker processes on one host never fight over the default registry.
type MetricsCollector struct {
	registry   *prometheus.Registry
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
	mu         sync.RWMutex
}

func NewMetricsCollector(enableRuntimeMetrics bool) *MetricsCollector {
	reg := prometheus.NewRegistry()
	if enableRuntimeMetrics {
		_ = reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		_ = reg.Register(collectors.NewGoCollector())
	}
	return &MetricsCollector{
		registry:   reg,
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
	}
}

func (m *MetricsCollector) RegisterCounter(name, help string, labelNames ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.counters[name]; ok {
		return
	}
	cv := prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labelNames)
	if err := m.registry.Register(cv); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			cv = are.ExistingCollector.(*prometheus.CounterVec)
		}
	}
	m.counters[name] = cv
}

func (m *MetricsCollector) RegisterGauge(name, help string, labelNames ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.gauges[name]; ok {
		return
	}
	gv := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help}, labelNames)
	if err := m.registry.Register(gv); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			gv = are.ExistingCollector.(*prometheus.GaugeVec)
		}
	}
	m.gauges[name] = gv
}

func (m *MetricsCollector) RegisterHistogram(name, help string, buckets []float64, labelNames ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.histograms[name]; ok {
		return
	}
	hv := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: name, Help: help, Buckets: buckets}, labelNames)
	if err := m.registry.Register(hv); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			hv = are.ExistingCollector.(*prometheus.HistogramVec)
		}
	}
	m.histograms[name] = hv
}

func (m *MetricsCollector) IncCounter(name string, labels ...string) {
	m.mu.RLock()
	cv, ok := m.counters[name]
	m.mu.RUnlock()
	if ok {
		cv.WithLabelValues(labels...).Inc()
	}
}

func (m *MetricsCollector) SetGauge(name string, value float64, labels ...string) {
	m.mu.RLock()
	gv, ok := m.gauges[name]
	m.mu.RUnlock()
	if ok {
		gv.WithLabelValues(labels...).Set(value)
	}
}

func (m *MetricsCollector) ObserveHistogram(name string, value float64, labels ...string) {
	m.mu.RLock()
	hv, ok := m.histograms[name]
	m.mu.RUnlock()
	if ok {
		hv.WithLabelValues(labels...).Observe(value)
	}
}

// Handler exposes the registry for an optional scrape endpoint.
func (m *MetricsCollector) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
