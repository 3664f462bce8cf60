// Package metrics defines the Prometheus instruments for the booking
// workflow. The counters are registered with the default registry and
// exposed on /metrics by the server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SubmissionsTotal counts submission attempts by final outcome
	// (submitted, slot_conflict, insufficient_balance, grant_expired,
	// blocked, invalid, error).
	SubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stringing_submissions_total",
			Help: "Total number of application submission attempts by outcome",
		},
		[]string{"outcome"},
	)

	// SlotConflictsTotal counts capacity races lost at commit time, per
	// time bucket. A hot bucket here means capacity is set too low for
	// demand on that time of day.
	SlotConflictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stringing_slot_conflicts_total",
			Help: "Total number of slot commits rejected for exhausted capacity",
		},
		[]string{"bucket"},
	)

	// DebitFailuresTotal counts ledger debits that failed closed.
	DebitFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stringing_debit_failures_total",
			Help: "Total number of credit grant debits rejected",
		},
		[]string{"reason"},
	)

	// SubmissionDuration tracks end-to-end submission latency in seconds.
	SubmissionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "stringing_submission_duration_seconds",
			Help: "Duration of application submission processing in seconds",
		},
	)

	// AvailabilityCacheHits counts availability reads served from cache
	// versus the database.
	AvailabilityCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stringing_availability_cache_requests_total",
			Help: "Total number of availability lookups by cache result",
		},
		[]string{"result"},
	)
)
