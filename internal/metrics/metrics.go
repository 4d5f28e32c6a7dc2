// Package metrics holds the Prometheus collectors of the progress service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sopprogress"

// Resolution sources.
const (
	SourceCase   = "case"
	SourceInline = "inline"
)

// Metrics exposed (all namespaced with "sopprogress_"):
//
//   - resolutions_total (counter, labels: source): progress resolutions served.
//   - resolve_duration_seconds (histogram, labels: source): time spent loading and resolving.
//   - cache_hits_total / cache_misses_total (counter, labels: cache): tracker cache lookups.
//   - sla_events_total (counter, labels: status): at_risk and breached events published by the monitor.
//   - open_cases (gauge): open cases seen by the last monitor sweep.
//
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	resolutions *prometheus.CounterVec
	resolveTime *prometheus.HistogramVec
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec
	slaEvents   *prometheus.CounterVec
	openCases   prometheus.Gauge
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		resolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolutions_total",
			Help:      "Progress resolutions served, by input source",
		}, []string{"source"}),
		resolveTime: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resolve_duration_seconds",
			Help:      "Time spent loading inputs and resolving progress",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		}, []string{"source"}),
		cacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Tracker cache hits, by cache",
		}, []string{"cache"}),
		cacheMisses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Tracker cache misses, by cache",
		}, []string{"cache"}),
		slaEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sla_events_total",
			Help:      "SLA events published by the monitor, by status",
		}, []string{"status"}),
		openCases: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "open_cases",
			Help:      "Open cases seen by the last SLA sweep",
		}),
	}
}

// ObserveResolution counts one resolution and its duration.
func (m *Metrics) ObserveResolution(source string, d time.Duration) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(source).Inc()
	m.resolveTime.WithLabelValues(source).Observe(d.Seconds())
}

// CacheLookup counts a hit or a miss on the named cache.
func (m *Metrics) CacheLookup(cache string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.WithLabelValues(cache).Inc()
		return
	}
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// SLAEvent counts one published SLA event.
func (m *Metrics) SLAEvent(status string) {
	if m == nil {
		return
	}
	m.slaEvents.WithLabelValues(status).Inc()
}

// SetOpenCases records the size of the last sweep.
func (m *Metrics) SetOpenCases(n int) {
	if m == nil {
		return
	}
	m.openCases.Set(float64(n))
}

// Registry returns the registry backing the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
