package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(adminCommandTotal, broadcastQueuedTotal) }

var (
	adminCommandTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admin_command_total",
			Help: "Tracks attempts to use admin commands.",
		},
		[]string{"command", "status"}, // status: 'authorized', 'unauthorized'
	)

	broadcastQueuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcast_messages_queued_total",
			Help: "Broadcast messages handed to the worker pool.",
		},
	)
)

func IncAdminCommand(command, status string) {
	adminCommandTotal.WithLabelValues(norm(command), norm(status)).Inc()
}

func AddBroadcastQueued(n int) {
	broadcastQueuedTotal.Add(float64(n))
}
