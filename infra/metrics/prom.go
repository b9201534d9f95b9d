package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/voltmesh/cso/core/metrics"
	"github.com/voltmesh/cso/core/model"
)

// PromSink records command, flush and roaming events in Prometheus
// metrics.
type PromSink struct {
	commands *prometheus.CounterVec
	runtime  *prometheus.HistogramVec
	flushes  *prometheus.CounterVec
	roaming  *prometheus.CounterVec
}

// NewPromSink registers metrics on the default Prometheus registerer.
// The Prometheus server should be started separately using cfg.PrometheusPort.
func NewPromSink(cfg coremetrics.Config) (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(_ coremetrics.Config, reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	commands := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "command_events_total",
		Help: "Total number of completed commands",
	}, []string{"verb", "granularity", "code", "remote"})
	runtime := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "command_event_runtime_seconds",
		Help:    "Wall-clock runtime of completed commands",
		Buckets: prometheus.DefBuckets,
	}, []string{"verb"})
	flushes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flush_events_total",
		Help: "Total number of flush cycles seen by the sink",
	}, []string{"queue", "outcome"})
	roaming := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "roaming_events_total",
		Help: "Total number of reservation and session lifecycle events",
	}, []string{"kind", "remote"})

	if err := reg.Register(commands); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			commands = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(runtime); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			runtime = are.ExistingCollector.(*prometheus.HistogramVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(flushes); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			flushes = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(roaming); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			roaming = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}

	return &PromSink{commands: commands, runtime: runtime, flushes: flushes, roaming: roaming}, nil
}

// RecordCommand increments the counter and observes the runtime of a
// completed command.
func (s *PromSink) RecordCommand(rec coremetrics.CommandRecord) error {
	s.commands.WithLabelValues(rec.Verb, rec.Granularity, rec.Code.String(), strconv.FormatBool(rec.Remote)).Inc()
	s.runtime.WithLabelValues(rec.Verb).Observe(rec.Runtime.Seconds())
	return nil
}

// RecordFlush increments the flush cycle counter.
func (s *PromSink) RecordFlush(rec coremetrics.FlushRecord) error {
	outcome := "success"
	if rec.Error != "" {
		outcome = "failure"
	}
	s.flushes.WithLabelValues(rec.Queue, outcome).Inc()
	return nil
}

// RecordRoaming increments the lifecycle event counter.
func (s *PromSink) RecordRoaming(ev coremetrics.RoamingEvent) error {
	s.roaming.WithLabelValues(ev.Kind, strconv.FormatBool(ev.Remote)).Inc()
	return nil
}

// RecordCDR counts the CDR as a roaming event.
func (s *PromSink) RecordCDR(cdr model.ChargeDetailRecord) error {
	s.roaming.WithLabelValues("cdr", "false").Inc()
	return nil
}
