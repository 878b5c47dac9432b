package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Raft metrics
	RaftLeader = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "clustercore_raft_is_leader",
			Help: "Whether this node is the Raft leader (1 = leader, 0 = follower)",
		},
	)

	RaftPeers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "clustercore_raft_peers_total",
			Help: "Total number of Raft peers in the cluster",
		},
	)

	RaftApplyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "clustercore_raft_apply_duration_seconds",
			Help:    "Time taken to apply and commit a Raft log entry in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// DSLC metrics
	ReconciliationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "clustercore_dslc_reconciliation_duration_seconds",
			Help:    "Time taken for one DSLC reconciliation pass in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ReconciliationCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "clustercore_dslc_reconciliation_cycles_total",
			Help: "Total number of DSLC reconciliation passes completed",
		},
	)

	ActionsDispatchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clustercore_actions_dispatched_total",
			Help: "Total number of actions dispatched to the action client, by action type and outcome",
		},
		[]string{"action", "outcome"},
	)

	ErrorStoreSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "clustercore_dslc_errorstore_size",
			Help: "Number of indices currently carrying a recorded transient error",
		},
	)

	DedupInFlight = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "clustercore_dedup_inflight",
			Help: "Number of distinct deduplication keys with an in-flight action, by deduplicator",
		},
		[]string{"deduplicator"},
	)

	// AAS metrics
	ScaleDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clustercore_aas_scale_decisions_total",
			Help: "Total number of allocation scaling decisions made, by direction",
		},
		[]string{"direction"},
	)

	ScaleTickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "clustercore_aas_tick_duration_seconds",
			Help:    "Time taken for one AAS scaling tick in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	DeploymentTargetAllocations = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "clustercore_aas_target_allocations",
			Help: "Current target allocation count per deployment",
		},
		[]string{"deployment"},
	)
)

func init() {
	prometheus.MustRegister(
		RaftLeader,
		RaftPeers,
		RaftApplyDuration,
		ReconciliationDuration,
		ReconciliationCyclesTotal,
		ActionsDispatchedTotal,
		ErrorStoreSize,
		DedupInFlight,
		ScaleDecisionsTotal,
		ScaleTickDuration,
		DeploymentTargetAllocations,
	)
}

// Handler returns the Prometheus HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations against a histogram.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer starting now.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time to histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed time to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
