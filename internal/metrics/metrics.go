package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	LedgerEntries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_entries_total",
			Help: "Credit transactions written, by type and wallet",
		},
		[]string{"type", "wallet"},
	)
	LedgerCredits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_credits_moved_total",
			Help: "Absolute credits moved through the ledger, by type",
		},
		[]string{"type"},
	)
	StoreConflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_conflicts_total",
			Help: "Conditional writes rejected because of a concurrent update",
		},
		[]string{"operation"},
	)
	Joins = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tournament_joins_total",
			Help: "Join attempts by outcome",
		},
		[]string{"outcome"},
	)
	Transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tournament_transitions_total",
			Help: "Successful lifecycle transitions",
		},
		[]string{"to"},
	)
	PrizesPaid = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tournament_prize_credits_paid_total",
			Help: "Credits paid out to winners and hosts",
		},
	)
	SweepDeleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "expiry_sweep_deleted_total",
			Help: "Tournaments deleted by the expiry sweep",
		},
	)
	SweepStrandedCredits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "expiry_sweep_stranded_credits_total",
			Help: "Prize pool credits still undistributed when the expiry sweep deleted their tournament",
		},
	)
	NotifyFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_failures_total",
			Help: "Best-effort notifications that could not be delivered",
		},
		[]string{"sink"},
	)
)

func init() {
	prometheus.MustRegister(LedgerEntries)
	prometheus.MustRegister(LedgerCredits)
	prometheus.MustRegister(StoreConflicts)
	prometheus.MustRegister(Joins)
	prometheus.MustRegister(Transitions)
	prometheus.MustRegister(PrizesPaid)
	prometheus.MustRegister(SweepDeleted)
	prometheus.MustRegister(SweepStrandedCredits)
	prometheus.MustRegister(NotifyFailures)
}
