package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(jobRunsTotal, eventsPublishedTotal) }

var (
	jobRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduled_job_runs_total",
			Help: "Background job runs, labeled by job and status.",
		},
		[]string{"job", "status"}, // status: 'ok', 'failed', 'skipped'
	)

	eventsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Domain events handed to the broker.",
		},
		[]string{"type", "status"},
	)
)

func IncJobRun(job, status string) {
	jobRunsTotal.WithLabelValues(norm(job), norm(status)).Inc()
}

func IncEventPublished(eventType, status string) {
	eventsPublishedTotal.WithLabelValues(norm(eventType), norm(status)).Inc()
}
