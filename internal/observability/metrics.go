package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveWebSockets is the gauge of currently open websocket connections.
	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "telederm_websocket_connections_active",
		Help: "Number of active WebSocket connections",
	})

	// WebSocketEventsTotal counts inbound WebSocket events by type.
	WebSocketEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "telederm_websocket_events_total",
		Help: "Total WebSocket events by type",
	}, []string{"event_type"})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "telederm_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})

	// MessagesSentTotal counts messages appended per transport path.
	MessagesSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "telederm_messages_sent_total",
		Help: "Total number of chat messages appended",
	}, []string{"transport"})

	// NotificationsDeferredTotal counts notifications persisted for offline delivery.
	NotificationsDeferredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "telederm_notifications_deferred_total",
		Help: "Total number of notifications persisted because the recipient was offline",
	})

	// RedisErrors counts Redis errors by operation type.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "telederm_redis_errors_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})
)
