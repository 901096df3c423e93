package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MessagesCreated counts persisted messages by kind.
	MessagesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arotu_messages_created_total",
			Help: "Total messages persisted",
		},
		[]string{"kind"}, // "private" or "room"
	)

	// Deliveries counts events emitted to live connections.
	Deliveries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "arotu_deliveries_total",
			Help: "Total events delivered to live connections",
		},
	)

	// DroppedDeliveries counts events dropped because a consumer was slow.
	DroppedDeliveries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "arotu_dropped_deliveries_total",
			Help: "Total events dropped due to slow consumers",
		},
	)

	// Connections tracks live websocket connections.
	Connections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "arotu_ws_connections",
			Help: "Current live websocket connections",
		},
	)

	// OnlineUsers tracks identities with at least one live connection.
	OnlineUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "arotu_online_users",
			Help: "Current identities with at least one live connection",
		},
	)

	// HTTPRequests counts HTTP requests by method, path and status.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arotu_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
)
