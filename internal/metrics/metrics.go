// Package metrics holds the service's Prometheus instruments.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AppliesTotal counts apply requests by terminal outcome code.
	AppliesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tally_applies_total",
		Help: "Apply requests by terminal outcome.",
	}, []string{"outcome"})

	// AppendsTotal counts credit events appended to the ledger.
	AppendsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tally_appends_total",
		Help: "Credit events appended.",
	})

	// AppendSeconds observes ledger append latency.
	AppendSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tally_append_seconds",
		Help:    "Ledger append latency.",
		Buckets: prometheus.DefBuckets,
	})

	// VerifyFailuresTotal counts chain verifications that found corruption.
	VerifyFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tally_verify_failures_total",
		Help: "Chain verifications that found a hash mismatch.",
	})

	// DuplicateHitsTotal counts applies answered from a completed reservation.
	DuplicateHitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tally_duplicate_hits_total",
		Help: "Apply requests answered from the idempotency cache.",
	})

	// ReservationsReapedTotal counts expired in-flight reservations purged.
	ReservationsReapedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tally_reservations_reaped_total",
		Help: "Expired in-flight reservations purged by the reaper.",
	})
)
