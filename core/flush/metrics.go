package flush

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	flushCycles  *prometheus.CounterVec
	flushSkips   *prometheus.CounterVec
	flushRuntime *prometheus.HistogramVec
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, *prometheus.CounterVec, *prometheus.HistogramVec) {
	cycles := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flush_cycles_total",
			Help: "Number of completed flush cycles by queue and outcome",
		},
		[]string{"queue", "outcome"},
	)
	skips := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flush_skips_total",
			Help: "Number of flush ticks skipped because the previous cycle was still running",
		},
		[]string{"queue"},
	)
	runtime := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "flush_runtime_seconds",
			Help:    "Wall-clock runtime of flush cycles",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"queue"},
	)
	return cycles, skips, runtime
}

func init() {
	flushCycles, flushSkips, flushRuntime = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers flush metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(flushCycles, flushSkips, flushRuntime)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	flushCycles, flushSkips, flushRuntime = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
