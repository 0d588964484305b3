package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// OperationsTotal tracks ledger operations by kind and classification
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cycler_operations_total",
			Help: "Total number of operations by outcome classification",
		},
		[]string{"kind", "classification"},
	)

	// RetriesTotal tracks retries consumed beyond the first attempt
	RetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cycler_retries_total",
			Help: "Total number of retry attempts",
		},
		[]string{"kind"},
	)

	// CycleDuration tracks wall time of completed cycles
	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cycler_cycle_duration_seconds",
			Help:    "Duration of account cycles in seconds",
			Buckets: []float64{60, 300, 600, 1200, 1800, 3600, 7200},
		},
	)

	// NextCycleTimestamp is the unix time of the next scheduled cycle
	NextCycleTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cycler_next_cycle_timestamp_seconds",
			Help: "Unix timestamp of the next scheduled cycle",
		},
	)

	// SupervisorState is 1 for the current state and 0 for the others
	SupervisorState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cycler_supervisor_state",
			Help: "Current supervisor state",
		},
		[]string{"state"},
	)

	// RPCCallsTotal tracks RPC calls per provider
	RPCCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cycler_rpc_calls_total",
			Help: "Total number of RPC calls",
		},
		[]string{"provider", "method"},
	)

	// RPCErrorsTotal tracks RPC errors per provider
	RPCErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cycler_rpc_errors_total",
			Help: "Total number of RPC errors",
		},
		[]string{"provider", "error_type"},
	)

	// RPCLatency tracks RPC call latency
	RPCLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cycler_rpc_latency_seconds",
			Help:    "RPC call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider", "method"},
	)
)

// SetSupervisorState flips the state gauge so exactly one label reads 1.
func SetSupervisorState(current string, all ...string) {
	for _, s := range all {
		v := 0.0
		if s == current {
			v = 1
		}
		SupervisorState.WithLabelValues(s).Set(v)
	}
}
