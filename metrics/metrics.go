// Package metrics holds package-level Prometheus collectors for the sync
// and persistence core, in the style of gazette's metrics/metrics.go: a
// single var block of prometheus.New* collectors with Help strings, wired
// from call sites rather than pushed through as constructor arguments.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collectors for SyncTree event emission and write lifecycle.
var (
	EventsEmittedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rtdbsync_events_emitted_total",
		Help: "Cumulative number of Events delivered to registrations.",
	})
	UserWritesAppliedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rtdbsync_user_writes_applied_total",
		Help: "Cumulative number of user overwrites/merges applied to the sync tree.",
	})
	UserWritesAckedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rtdbsync_user_writes_acked_total",
		Help: "Cumulative number of user writes acknowledged (committed or reverted).",
	})
	UserWritesRevertedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rtdbsync_user_writes_reverted_total",
		Help: "Cumulative number of acknowledged user writes that were reverted rather than committed.",
	})
	ListensOpenedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rtdbsync_listens_opened_total",
		Help: "Cumulative number of backend listens started by the sync tree.",
	})
	ListensClosedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rtdbsync_listens_closed_total",
		Help: "Cumulative number of backend listens stopped by the sync tree, including shadowing.",
	})
	ListenFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rtdbsync_listen_failures_total",
		Help: "Cumulative number of backend listens that reported failure.",
	})
)

// Collectors for the persistence layer.
var (
	ServerCacheBytes = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rtdbsync_server_cache_bytes",
		Help: "Most recently estimated size in bytes of the persisted server cache.",
	})
	PruneRunsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rtdbsync_prune_runs_total",
		Help: "Cumulative number of LRU prune passes that removed at least one tracked query.",
	})
	PrunedQueriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rtdbsync_pruned_queries_total",
		Help: "Cumulative number of tracked queries evicted by the LRU cache policy.",
	})
	StorageErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rtdbsync_storage_errors_total",
		Help: "Cumulative number of StorageAdapter operations that returned an error.",
	})
)

// MustRegister registers every collector in this package with r, panicking
// on a duplicate registration (a programming error: each process should
// wire this exactly once).
func MustRegister(r prometheus.Registerer) {
	r.MustRegister(
		EventsEmittedTotal,
		UserWritesAppliedTotal,
		UserWritesAckedTotal,
		UserWritesRevertedTotal,
		ListensOpenedTotal,
		ListensClosedTotal,
		ListenFailuresTotal,
		ServerCacheBytes,
		PruneRunsTotal,
		PrunedQueriesTotal,
		StorageErrorsTotal,
	)
}
