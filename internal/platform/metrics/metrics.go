package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the stream relay.
type Metrics struct {
	registry              *prometheus.Registry
	clientsConnected      prometheus.Gauge
	clientsAcceptedTotal  prometheus.Counter
	clientsDroppedTotal   prometheus.Counter
	chunksRelayedTotal    prometheus.Counter
	bytesRelayedTotal     prometheus.Counter
	upstreamFailuresTotal prometheus.Counter
	requestsTotal         prometheus.Counter
	errorsTotal           prometheus.Counter
}

// New creates and registers Prometheus metrics for the relay.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	clientsConnected := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "relay_clients_connected",
		Help: "Number of downstream clients currently receiving the stream",
	})
	clientsAcceptedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_clients_accepted_total",
		Help: "Total number of downstream client connections accepted",
	})
	clientsDroppedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_clients_dropped_total",
		Help: "Total number of clients dropped after a failed write",
	})
	chunksRelayedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_chunks_relayed_total",
		Help: "Total number of chunks read from the transcoder and broadcast",
	})
	bytesRelayedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_bytes_relayed_total",
		Help: "Total number of upstream bytes broadcast to clients",
	})
	upstreamFailuresTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_upstream_failures_total",
		Help: "Total number of fatal transcoder connection read failures",
	})
	requestsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_admin_requests_total",
		Help: "Total number of admin HTTP requests received",
	})
	errorsTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_admin_errors_total",
		Help: "Total number of admin HTTP responses with error status (4xx or 5xx)",
	})

	registry.MustRegister(
		clientsConnected,
		clientsAcceptedTotal,
		clientsDroppedTotal,
		chunksRelayedTotal,
		bytesRelayedTotal,
		upstreamFailuresTotal,
		requestsTotal,
		errorsTotal,
	)

	return &Metrics{
		registry:              registry,
		clientsConnected:      clientsConnected,
		clientsAcceptedTotal:  clientsAcceptedTotal,
		clientsDroppedTotal:   clientsDroppedTotal,
		chunksRelayedTotal:    chunksRelayedTotal,
		bytesRelayedTotal:     bytesRelayedTotal,
		upstreamFailuresTotal: upstreamFailuresTotal,
		requestsTotal:         requestsTotal,
		errorsTotal:           errorsTotal,
	}
}

// SetClientsConnected sets the connected clients gauge.
func (m *Metrics) SetClientsConnected(n int) {
	m.clientsConnected.Set(float64(n))
}

// IncClientsAccepted increments the accepted clients counter.
func (m *Metrics) IncClientsAccepted() {
	m.clientsAcceptedTotal.Inc()
}

// IncClientsDropped increments the dropped clients counter.
func (m *Metrics) IncClientsDropped() {
	m.clientsDroppedTotal.Inc()
}

// AddChunkRelayed records one broadcast chunk of the given size.
func (m *Metrics) AddChunkRelayed(bytes int) {
	m.chunksRelayedTotal.Inc()
	m.bytesRelayedTotal.Add(float64(bytes))
}

// IncUpstreamFailures increments the upstream failure counter.
func (m *Metrics) IncUpstreamFailures() {
	m.upstreamFailuresTotal.Inc()
}

// IncRequests increments the admin request counter.
func (m *Metrics) IncRequests() {
	m.requestsTotal.Inc()
}

// IncErrors increments the admin error counter.
func (m *Metrics) IncErrors() {
	m.errorsTotal.Inc()
}

// Handler returns an http.Handler that serves Prometheus metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
