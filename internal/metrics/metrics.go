// Package metrics provides Prometheus instrumentation for the Parley chat
// application: counters and latency histograms for the REST API, message
// throughput counters, and gauges for gateway connections and room
// subscriptions.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts REST API requests, labeled by method, route
	// pattern, and status code.
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parley_http_requests_total",
		Help: "Total number of HTTP requests handled",
	}, []string{"method", "route", "status"})

	// HTTPRequestDuration records REST handler latency in seconds.
	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "parley_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"method", "route"})

	// MessagesSentTotal counts messages accepted by the send endpoint.
	MessagesSentTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "parley_messages_sent_total",
		Help: "Total number of chat messages accepted",
	})

	// BroadcastsTotal counts room channel publishes, labeled by event name.
	BroadcastsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parley_broadcasts_total",
		Help: "Total number of room channel events published",
	}, []string{"event"})

	// WSConnections tracks the current number of gateway WebSocket connections.
	WSConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "parley_ws_connections",
		Help: "Current number of active gateway WebSocket connections",
	})

	// RoomsSubscribed tracks gateway room subscriptions currently open.
	RoomsSubscribed = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "parley_rooms_subscribed",
		Help: "Current number of open room subscriptions on the gateway",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		MessagesSentTotal,
		BroadcastsTotal,
		WSConnections,
		RoomsSubscribed,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
