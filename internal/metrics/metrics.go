// ABOUTME: Prometheus instrumentation for gatekeeper verdicts
// ABOUTME: Counters are registered on an owned registry for isolated instances

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the gatekeeper's Prometheus collectors. Each instance
// owns its registry, so tests and embedded uses never fight over the
// global default registry.
type Metrics struct {
	registry *prometheus.Registry

	// RequestsTotal counts handled requests by verdict
	// (result, cooldown, quota, error).
	RequestsTotal *prometheus.CounterVec

	// EntitiesNewTotal counts first sightings written to the dedup cache.
	EntitiesNewTotal prometheus.Counter

	// CacheHitsTotal counts requests answered from prior cache history.
	CacheHitsTotal prometheus.Counter
}

// New creates a Metrics instance with all collectors registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gatekeeper_requests_total",
			Help: "Handled requests by verdict.",
		}, []string{"verdict"}),
		EntitiesNewTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "gatekeeper_entities_new_total",
			Help: "First sightings written to the dedup cache.",
		}),
		CacheHitsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "gatekeeper_cache_hits_total",
			Help: "Requests answered with prior cache history.",
		}),
	}
}

// Handler returns an HTTP handler serving this instance's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
