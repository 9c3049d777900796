package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		accountsRegisteredTotal,
		referralsLinkedTotal,
		usageRejectedTotal,
		tiersExpiredTotal,
		usageResetTotal,
	)
}

var (
	accountsRegisteredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "accounts_registered_total",
			Help: "Total number of new accounts registered.",
		},
	)

	referralsLinkedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "referrals_linked_total",
			Help: "Accounts attached to a referrer.",
		},
	)

	usageRejectedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "usage_rejected_total",
			Help: "Usage increments refused at the tier cap.",
		},
		[]string{"kind"}, // 'transaction', 'listing'
	)

	tiersExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tiers_expired_total",
			Help: "Paid tiers written back to basic after expiry.",
		},
	)

	usageResetTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "usage_reset_accounts_total",
			Help: "Accounts whose monthly counters were reset.",
		},
	)
)

func IncAccountsRegistered() {
	accountsRegisteredTotal.Inc()
}

func IncReferralLinked() {
	referralsLinkedTotal.Inc()
}

func IncUsageRejected(kind string) {
	usageRejectedTotal.WithLabelValues(norm(kind)).Inc()
}

func AddTiersExpired(n int) {
	tiersExpiredTotal.Add(float64(n))
}

func AddUsageReset(n int) {
	usageResetTotal.Add(float64(n))
}
