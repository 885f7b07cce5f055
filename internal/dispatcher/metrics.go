package dispatcher

import "github.com/prometheus/client_golang/prometheus"

var (
	jobsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatcher_jobs_processed_total",
			Help: "Jobs that reached a terminal aggregate state",
		},
		[]string{"tenant"},
	)
	channelAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatcher_channel_attempts_total",
			Help: "Adapter invocations by channel and outcome",
		},
		[]string{"channel", "outcome"},
	)
	duplicatesSuppressedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatcher_duplicates_suppressed_total",
			Help: "Redelivered jobs answered from the idempotency ledger",
		},
	)
	deadLetteredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatcher_dead_lettered_total",
			Help: "Channels dead-lettered after retry exhaustion or permanent failure",
		},
		[]string{"channel"},
	)
	quotaDeferralsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatcher_quota_deferrals_total",
			Help: "Managed deliveries deferred to fallback by the daily quota",
		},
		[]string{"channel"},
	)
)

func init() {
	prometheus.MustRegister(
		jobsProcessedTotal,
		channelAttemptsTotal,
		duplicatesSuppressedTotal,
		deadLetteredTotal,
		quotaDeferralsTotal,
	)
}
