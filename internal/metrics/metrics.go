// Package metrics holds the Prometheus collectors shared by the saga, the
// settlement engine and the catalog cache.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
)

const namespace = "esim"

type Metrics struct {
	OrdersCreated  *prometheus.CounterVec
	Transitions    *prometheus.CounterVec
	StageErrors    *prometheus.CounterVec
	ActiveLoops    prometheus.Gauge
	SweepAttempts  *prometheus.CounterVec
	CatalogLookups *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		OrdersCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "orders_created_total",
			Help:      "Orders accepted, by kind.",
		}, []string{"kind"}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_transitions_total",
			Help:      "Persisted order status transitions, by kind and target status.",
		}, []string{"kind", "status"}),
		StageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_stage_errors_total",
			Help:      "Errors recorded by a saga stage, by kind and stage.",
		}, []string{"kind", "stage"}),
		ActiveLoops: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "order_poll_loops",
			Help:      "Poll loops currently running.",
		}),
		SweepAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_attempts_total",
			Help:      "Ledger calls made while sweeping, by phase and outcome.",
		}, []string{"phase", "outcome"}),
		CatalogLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_lookups_total",
			Help:      "Package plan lookups, by cache result.",
		}, []string{"result"}),
		gatherer: reg,
	}
	reg.MustRegister(
		m.OrdersCreated, m.Transitions, m.StageErrors, m.ActiveLoops, m.SweepAttempts, m.CatalogLookups,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
