package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	commandsTotal  *prometheus.CounterVec
	commandRuntime *prometheus.HistogramVec
	remoteAttempts prometheus.Counter
	localFallbacks prometheus.Counter
	scannedPools   prometheus.Counter
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, *prometheus.HistogramVec, prometheus.Counter, prometheus.Counter, prometheus.Counter) {
	total := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_commands_total",
			Help: "Number of dispatched commands by verb and result code",
		},
		[]string{"verb", "code"},
	)
	runtime := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dispatch_command_runtime_seconds",
			Help:    "Wall-clock runtime of dispatched commands",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"verb"},
	)
	remote := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_remote_attempts_total",
			Help: "Number of commands offered to the remote operator",
		},
	)
	fallback := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_local_fallbacks_total",
			Help: "Number of commands handled locally after a remote attempt",
		},
	)
	scans := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_pool_scans_total",
			Help: "Number of id-addressed commands resolved by scanning pools",
		},
	)
	return total, runtime, remote, fallback, scans
}

func init() {
	commandsTotal, commandRuntime, remoteAttempts, localFallbacks, scannedPools = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers dispatch metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(commandsTotal, commandRuntime, remoteAttempts, localFallbacks, scannedPools)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	commandsTotal, commandRuntime, remoteAttempts, localFallbacks, scannedPools = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
