// Copyright 2025 Certen Protocol
//
// Prometheus exposition, wiring github.com/prometheus/client_golang — a
// direct teacher dependency (go.mod) that the teacher's own handlers
// never actually registered a collector against. Wired here for event-
// processed counters, an escrow gauge, receipt counters, and per-
// endpoint request latency.
package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the witness's collectors. The HTTP handlers update
// EventsProcessed and RequestLatency; EscrowedGauge and ReceiptsIssued are
// registered but nothing updates them, and the reconciler does not use
// Metrics.
type Metrics struct {
	EventsProcessed *prometheus.CounterVec
	EscrowedGauge   prometheus.Gauge
	ReceiptsIssued  prometheus.Counter
	RequestLatency  *prometheus.HistogramVec
	registry        *prometheus.Registry
}

// NewMetrics registers a fresh set of collectors on a private registry,
// so repeated calls in tests never collide with prometheus's default
// global registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		EventsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "keri_witness_events_processed_total",
			Help: "Events processed, labeled by outcome (accepted, escrowed, duplicate).",
		}, []string{"outcome"}),
		EscrowedGauge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "keri_witness_escrowed_events",
			Help: "Events currently parked in escrow.",
		}),
		ReceiptsIssued: factory.NewCounter(prometheus.CounterOpts{
			Name: "keri_witness_receipts_issued_total",
			Help: "Witness receipts this witness has generated.",
		}),
		RequestLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "keri_witness_request_duration_seconds",
			Help:    "HTTP request latency by endpoint.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		registry: reg,
	}
}

// Handler exposes the registry for a GET /metrics route.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records request latency for endpoint, meant to be
// deferred at the top of a handler.
func (m *Metrics) ObserveRequest(endpoint string, start time.Time) {
	m.RequestLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}
