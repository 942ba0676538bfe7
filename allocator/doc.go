// Package allocator implements a greedy, first-fit assignment of proposed
// events into a small, fixed table of time sessions. Each session holds a
// finite pool of typed resources (projectors, chairs, etc), and each event
// requires some amount of each. An event is placed into the first session, in
// table order, able to host its entire requirement, which is then deducted
// from the session. Events which fit nowhere are rejected, without backtracking
// over earlier placements.
//
// Placed events are kept in an ordered Ledger. Releasing a Ledger record
// restores its requirement to its session, such that for every session the
// available capacity plus the requirements of its placed records always equals
// its initial capacity.
package allocator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters aggregate across all Allocators of the process. Gauges are set by
// whichever Allocator was most recently mutated: allocators sharing session
// names share their "available" series.
var (
	allocatorPlacedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eventsched_allocator_placed_total",
		Help: "Cumulative number of events placed into a session.",
	})
	allocatorRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "eventsched_allocator_rejected_total",
		Help: "Cumulative number of events rejected, by reason.",
	}, []string{"reason"})
	allocatorReleasedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "eventsched_allocator_released_total",
		Help: "Cumulative number of ledger records released.",
	})
	allocatorBatchDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "eventsched_allocator_batch_duration_seconds",
		Help: "Duration required to place a submitted batch of events.",
	})
	allocatorLedgerRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "eventsched_allocator_ledger_records",
		Help: "Number of records held by the ledger of the most recently mutated allocator.",
	})
	allocatorAvailable = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "eventsched_allocator_available",
		Help: "Available capacity of a session, by resource kind, as last set by an allocator having that session.",
	}, []string{"session", "kind"})
)
