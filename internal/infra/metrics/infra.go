package metrics

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(buildInfo, campaignCacheTotal, dbConns)
}

var (
	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "sheger",
			Name:      "build_info",
			Help:      "Always 1; labels carry the running build.",
		},
		[]string{"version", "commit", "go_version"},
	)

	// result: hit|miss|error
	campaignCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sheger",
			Name:      "cache_requests_total",
			Help:      "Redis read-through cache lookups by cache and result.",
		},
		[]string{"cache", "result"},
	)

	dbConns = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "sheger",
			Name:      "db_pool_connections",
			Help:      "pgx pool connections by state.",
		},
		[]string{"state"},
	)
)

func SetBuildInfo(version, commit string) {
	buildInfo.WithLabelValues(version, commit, runtime.Version()).Set(1)
}

func IncCacheRequest(cacheName, result string) {
	campaignCacheTotal.WithLabelValues(norm(cacheName), norm(result)).Inc()
}

// SetDBPoolStats records a pgxpool.Stat snapshot; idle and acquired are
// subsets of total.
func SetDBPoolStats(total, idle, acquired int32) {
	dbConns.WithLabelValues("total").Set(float64(total))
	dbConns.WithLabelValues("idle").Set(float64(idle))
	dbConns.WithLabelValues("acquired").Set(float64(acquired))
}
