// Package metrics expone contadores prometheus del data layer:
// hits/misses de cada cache y decisiones del route guard.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	CacheLookupTotal *prometheus.CounterVec // store, outcome=hit|miss|forced
	FetchTotal       *prometheus.CounterVec // store, status=ok|error
	GuardDecision    *prometheus.CounterVec // outcome=allow|redirect, target

	registry *prometheus.Registry
}

// New crea las métricas sobre un registry propio (sin estado global,
// así los tests pueden crear instancias independientes).
func New() *Metrics {
	m := &Metrics{
		CacheLookupTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "store_cache_lookups_total",
			Help: "Cache lookups per store and outcome",
		}, []string{"store", "outcome"}),

		FetchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "store_fetch_total",
			Help: "Backend fetches per store and status",
		}, []string{"store", "status"}),

		GuardDecision: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "route_guard_decisions_total",
			Help: "Route guard outcomes",
		}, []string{"outcome", "target"}),

		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(m.CacheLookupTotal, m.FetchTotal, m.GuardDecision)
	return m
}

// Handler devuelve el handler HTTP para /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// CacheLookup registra un lookup. Tolerante a m nil para no obligar
// a cablear métricas en tests.
func (m *Metrics) CacheLookup(store, outcome string) {
	if m == nil {
		return
	}
	m.CacheLookupTotal.WithLabelValues(store, outcome).Inc()
}

func (m *Metrics) Fetch(store, status string) {
	if m == nil {
		return
	}
	m.FetchTotal.WithLabelValues(store, status).Inc()
}

func (m *Metrics) Guard(outcome, target string) {
	if m == nil {
		return
	}
	m.GuardDecision.WithLabelValues(outcome, target).Inc()
}

// MissOutcome etiqueta un lookup que va a la red: "forced" si fue bypass
// explícito, "miss" si venció el TTL o cambió el dueño.
func MissOutcome(force bool) string {
	if force {
		return "forced"
	}
	return "miss"
}
