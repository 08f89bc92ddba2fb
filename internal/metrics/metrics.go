// Package metrics exposes Prometheus collectors for the chat gateway.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "chat"

// Metrics groups the gateway collectors.
type Metrics struct {
	ConnectionsActive  prometheus.Gauge
	RoomsActive        prometheus.Gauge
	EventsReceived     *prometheus.CounterVec
	MessagesPersisted  prometheus.Counter
	StoreFailures      prometheus.Counter
	AuthFailures       prometheus.Counter
	BroadcastEvictions prometheus.Counter

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with reg.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Open WebSocket connections.",
		}),
		RoomsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rooms_active",
			Help:      "Rooms with at least one member.",
		}),
		EventsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_received_total",
			Help:      "Inbound client events by type.",
		}, []string{"type"}),
		MessagesPersisted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_persisted_total",
			Help:      "Chat messages appended to the store.",
		}),
		StoreFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_failures_total",
			Help:      "Failed message store operations.",
		}),
		AuthFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_failures_total",
			Help:      "Rejected connection credentials.",
		}),
		BroadcastEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_evictions_total",
			Help:      "Connections closed because their outbound queue was full.",
		}),
		gatherer: reg,
	}

	reg.MustRegister(
		m.ConnectionsActive,
		m.RoomsActive,
		m.EventsReceived,
		m.MessagesPersisted,
		m.StoreFailures,
		m.AuthFailures,
		m.BroadcastEvictions,
	)
	return m
}

// NewNop returns collectors registered with a throwaway registry.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
