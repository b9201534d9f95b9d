package metrics

import (
	coremetrics "github.com/voltmesh/cso/core/metrics"
	"github.com/voltmesh/cso/core/model"
)

// MultiSink fans records out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordCommand forwards the record to all sinks, returning the first
// error encountered.
func (m *MultiSink) RecordCommand(rec coremetrics.CommandRecord) error {
	for _, s := range m.Sinks {
		if err := s.RecordCommand(rec); err != nil {
			return err
		}
	}
	return nil
}

// RecordFlush forwards flush cycles to the sinks that support them.
func (m *MultiSink) RecordFlush(rec coremetrics.FlushRecord) error {
	for _, s := range m.Sinks {
		if fr, ok := s.(coremetrics.FlushRecorder); ok {
			if err := fr.RecordFlush(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordCDR forwards charge detail records to the sinks that support them.
func (m *MultiSink) RecordCDR(cdr model.ChargeDetailRecord) error {
	for _, s := range m.Sinks {
		if cr, ok := s.(coremetrics.CDRRecorder); ok {
			if err := cr.RecordCDR(cdr); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordRoaming forwards lifecycle events to the sinks that support them.
func (m *MultiSink) RecordRoaming(ev coremetrics.RoamingEvent) error {
	for _, s := range m.Sinks {
		if rr, ok := s.(coremetrics.RoamingRecorder); ok {
			if err := rr.RecordRoaming(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
