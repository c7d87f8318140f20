// Package metrics exposes Prometheus instrumentation for resolutions.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/use-agent/mediaresolve/models"
)

// Outcomes recorded by ObserveResolve.
const (
	OutcomeFound   = "found"
	OutcomeNoMedia = "no_media"
	OutcomeFailed  = "failed"
)

// Metrics holds the collectors on a private registry so tests and multiple
// servers in one process do not collide.
type Metrics struct {
	registry        *prometheus.Registry
	resolvesTotal   *prometheus.CounterVec
	resolveDuration *prometheus.HistogramVec
	mediaFound      *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	pagesActive     prometheus.GaugeFunc
}

// New registers all collectors. activePages, if non-nil, backs the
// active-page gauge.
func New(activePages func() models.PoolStats) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		resolvesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mediaresolve",
			Name:      "resolves_total",
			Help:      "Resolutions by outcome and engine.",
		}, []string{"outcome", "engine"}),
		resolveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mediaresolve",
			Name:      "resolve_duration_seconds",
			Help:      "End-to-end resolution latency.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
		}, []string{"outcome"}),
		mediaFound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mediaresolve",
			Name:      "media_found_total",
			Help:      "Media references returned, by kind.",
		}, []string{"kind"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mediaresolve",
			Name:      "cache_lookups_total",
			Help:      "Resolution cache lookups by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.resolvesTotal, m.resolveDuration, m.mediaFound, m.cacheLookups)

	if activePages != nil {
		m.pagesActive = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "mediaresolve",
			Name:      "browser_pages_active",
			Help:      "Pages currently being rendered.",
		}, func() float64 { return float64(activePages().ActivePages) })
		reg.MustRegister(m.pagesActive)
	}
	return m
}

// ObserveResolve records one finished resolution.
func (m *Metrics) ObserveResolve(outcome, engine string, elapsed time.Duration, media []models.MediaReference) {
	if m == nil {
		return
	}
	m.resolvesTotal.WithLabelValues(outcome, engine).Inc()
	m.resolveDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
	for _, ref := range media {
		m.mediaFound.WithLabelValues(string(ref.Kind)).Inc()
	}
}

// ObserveCache records a cache lookup.
func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
