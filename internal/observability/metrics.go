package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the engine's Prometheus collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	intents        *prometheus.CounterVec
	retrieval      *prometheus.CounterVec
	cacheLookups   *prometheus.CounterVec
	catalogErrors  *prometheus.CounterVec
	respondLatency *prometheus.HistogramVec
	snapshotSize   prometheus.Gauge
}

// NewMetrics builds collectors on a private registry so several engines can coexist in one process.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "faq_engine"
	}
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		intents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intent_total",
			Help:      "Queries routed per detected intent.",
		}, []string{"intent"}),
		retrieval: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_total",
			Help:      "Retrieval attempts by gate outcome.",
		}, []string{"outcome"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_cache_lookups_total",
			Help:      "Catalog cache lookups by result.",
		}, []string{"result"}),
		catalogErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_errors_total",
			Help:      "Catalog provider failures by operation.",
		}, []string{"operation"}),
		respondLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "respond_duration_seconds",
			Help:      "End-to-end respond latency by answer source.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 5, 10},
		}, []string{"source"}),
		snapshotSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "kb_entries",
			Help:      "Entries in the active knowledge-base snapshot.",
		}),
	}
	reg.MustRegister(
		m.intents, m.retrieval, m.cacheLookups, m.catalogErrors, m.respondLatency, m.snapshotSize,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveIntent counts one routed query.
func (m *Metrics) ObserveIntent(intent string) {
	if m == nil {
		return
	}
	m.intents.WithLabelValues(intent).Inc()
}

// ObserveRetrieval counts one gate decision.
func (m *Metrics) ObserveRetrieval(accepted bool) {
	if m == nil {
		return
	}
	outcome := "rejected"
	if accepted {
		outcome = "accepted"
	}
	m.retrieval.WithLabelValues(outcome).Inc()
}

// ObserveCache counts one catalog cache lookup.
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

// ObserveCatalogError counts one provider failure.
func (m *Metrics) ObserveCatalogError(op string) {
	if m == nil {
		return
	}
	m.catalogErrors.WithLabelValues(op).Inc()
}

// ObserveRespond records the latency of one Respond call.
func (m *Metrics) ObserveRespond(source string, d time.Duration) {
	if m == nil {
		return
	}
	m.respondLatency.WithLabelValues(source).Observe(d.Seconds())
}

// SetSnapshotSize records the size of the active KB snapshot.
func (m *Metrics) SetSnapshotSize(n int) {
	if m == nil {
		return
	}
	m.snapshotSize.Set(float64(n))
}
