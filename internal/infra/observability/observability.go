// Package observability holds the Prometheus metrics for the job lifecycle
// and the balance ledger. All collectors register on the default registry
// and are exposed by the API's /metrics endpoint.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mediaforge-app/mediaforge/internal/domain"
)

// ─── Job Metrics ────────────────────────────────────────────────────────────

// JobsSubmitted counts accepted submissions by kind.
var JobsSubmitted = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "mediaforge",
	Subsystem: "jobs",
	Name:      "submitted_total",
	Help:      "Total jobs accepted for processing.",
}, []string{"kind"})

// JobsRejected counts submissions refused before a job record existed.
var JobsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "mediaforge",
	Subsystem: "jobs",
	Name:      "rejected_total",
	Help:      "Total job submissions rejected by reason.",
}, []string{"kind", "reason"})

// JobTransitions counts persisted status transitions.
var JobTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "mediaforge",
	Subsystem: "jobs",
	Name:      "transitions_total",
	Help:      "Total persisted job status transitions.",
}, []string{"kind", "status"})

// JobsActive tracks jobs currently driven by this process.
var JobsActive = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "mediaforge",
	Subsystem: "jobs",
	Name:      "active",
	Help:      "Number of jobs currently being processed.",
})

// JobDuration observes wall time from submission to a terminal status.
var JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "mediaforge",
	Subsystem: "jobs",
	Name:      "duration_seconds",
	Help:      "Time from submission to terminal status.",
	Buckets:   []float64{1, 5, 15, 30, 60, 120, 180, 300, 600},
}, []string{"kind", "status"})

// PollErrors counts transient polling failures that did not abort a job.
var PollErrors = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "mediaforge",
	Subsystem: "jobs",
	Name:      "poll_errors_total",
	Help:      "Total transient errors while polling external workers.",
}, []string{"kind"})

// ArchiveFailures counts result relocations that fell back to the remote URL.
var ArchiveFailures = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "mediaforge",
	Subsystem: "jobs",
	Name:      "archive_failures_total",
	Help:      "Total post-processing failures downgraded to warnings.",
}, []string{"kind"})

// JobsSwept counts stale jobs failed by the reconciliation sweep.
var JobsSwept = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "mediaforge",
	Subsystem: "jobs",
	Name:      "swept_total",
	Help:      "Total abandoned jobs marked failed by the sweep.",
})

// ─── Ledger Metrics ─────────────────────────────────────────────────────────

// Reservations counts balance reservation attempts by outcome.
var Reservations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "mediaforge",
	Subsystem: "ledger",
	Name:      "reservations_total",
	Help:      "Total balance reservation attempts by outcome.",
}, []string{"outcome"})

// CoinsReserved counts coins debited by successful reservations.
var CoinsReserved = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "mediaforge",
	Subsystem: "ledger",
	Name:      "coins_reserved_total",
	Help:      "Total coins debited for jobs.",
}, []string{"kind"})

// ─── Helpers ────────────────────────────────────────────────────────────────

// RecordTransition records a persisted transition and, for terminal
// statuses, the job's total duration.
func RecordTransition(kind domain.JobKind, status domain.JobStatus, createdAt time.Time) {
	JobTransitions.WithLabelValues(string(kind), string(status)).Inc()
	if status.Terminal() && !createdAt.IsZero() {
		JobDuration.WithLabelValues(string(kind), string(status)).Observe(time.Since(createdAt).Seconds())
	}
}

// RecordReservation records one reservation attempt.
func RecordReservation(kind domain.JobKind, amount int64, err error) {
	if err != nil {
		Reservations.WithLabelValues(string(domain.OutcomeFailed)).Inc()
		return
	}
	Reservations.WithLabelValues(string(domain.OutcomeSuccess)).Inc()
	CoinsReserved.WithLabelValues(string(kind)).Add(float64(amount))
}
