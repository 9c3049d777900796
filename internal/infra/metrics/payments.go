package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		paymentIntentsTotal,
		paymentVerifyTotal,
		paymentVerifyDuration,
		revenueTotal,
	)
}

var (
	// status: pending|verified|expired|failed
	paymentIntentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_intents_total",
			Help: "Payment intents by the status they entered.",
		},
		[]string{"status"},
	)

	// result: ok|fail
	// reason: verified|no_pending|invalid_state|internal
	paymentVerifyTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_verify_total",
			Help: "Admin verification attempts by result and reason.",
		},
		[]string{"result", "reason"},
	)

	paymentVerifyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "payment_verify_duration_seconds",
			Help:    "Duration of the verification workflow including retries.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
	)

	revenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "revenue_etb_total",
			Help: "Verified revenue in ETB by tier.",
		},
		[]string{"tier"},
	)
)

func IncPaymentIntent(status string) {
	paymentIntentsTotal.WithLabelValues(norm(status)).Inc()
}

func IncPaymentVerify(result, reason string) {
	paymentVerifyTotal.WithLabelValues(norm(result), norm(reason)).Inc()
}

func ObservePaymentVerify(d time.Duration) {
	paymentVerifyDuration.Observe(d.Seconds())
}

func AddRevenue(tier string, amount float64) {
	revenueTotal.WithLabelValues(norm(tier)).Add(amount)
}
