// ABOUTME: Prometheus collectors for cache, session, and dispatch activity.
// ABOUTME: All methods are nil-safe so callers can run without a registry.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the pipeline's Prometheus collectors.
type Metrics struct {
	cacheHits          prometheus.Counter
	cacheMisses        prometheus.Counter
	cacheEntries       prometheus.Gauge
	sessionsOpened     prometheus.Counter
	sessionsSuperseded prometheus.Counter
	dispatchFailures   prometheus.Counter
	historyUpserts     prometheus.Counter
}

// New registers the pipeline collectors with the given registry.
func New(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "dictsub_cache_hits_total",
			Help: "Result cache lookups that returned a fresh entry.",
		}),
		cacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "dictsub_cache_misses_total",
			Help: "Result cache lookups that found nothing or an expired entry.",
		}),
		cacheEntries: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dictsub_cache_entries",
			Help: "Current number of result cache entries.",
		}),
		sessionsOpened: factory.NewCounter(prometheus.CounterOpts{
			Name: "dictsub_sessions_opened_total",
			Help: "Translation sessions opened.",
		}),
		sessionsSuperseded: factory.NewCounter(prometheus.CounterOpts{
			Name: "dictsub_sessions_superseded_total",
			Help: "Sessions superseded by a newer request before closing.",
		}),
		dispatchFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "dictsub_dispatch_failures_total",
			Help: "Requests where the provider layer could not be invoked.",
		}),
		historyUpserts: factory.NewCounter(prometheus.CounterOpts{
			Name: "dictsub_history_upserts_total",
			Help: "Completed results folded into the translation history.",
		}),
	}
}

func (m *Metrics) CacheHit() {
	if m != nil {
		m.cacheHits.Inc()
	}
}

func (m *Metrics) CacheMiss() {
	if m != nil {
		m.cacheMisses.Inc()
	}
}

func (m *Metrics) SetCacheEntries(n int) {
	if m != nil {
		m.cacheEntries.Set(float64(n))
	}
}

func (m *Metrics) SessionOpened() {
	if m != nil {
		m.sessionsOpened.Inc()
	}
}

func (m *Metrics) SessionSuperseded() {
	if m != nil {
		m.sessionsSuperseded.Inc()
	}
}

func (m *Metrics) DispatchFailure() {
	if m != nil {
		m.dispatchFailures.Inc()
	}
}

func (m *Metrics) HistoryUpsert() {
	if m != nil {
		m.historyUpserts.Inc()
	}
}
