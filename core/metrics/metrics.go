// Package metrics defines the sink interfaces used to record dispatch and
// flush observability data.
package metrics

import (
	"time"

	"github.com/voltmesh/cso/core/model"
)

// CommandRecord represents a completed dispatcher operation.
type CommandRecord struct {
	Verb        string
	Granularity string
	TargetID    string
	TrackingID  string
	Code        model.ResultCode
	Remote      bool
	Runtime     time.Duration
	Time        time.Time
}

// MetricsSink records completed commands for observability purposes.
type MetricsSink interface {
	RecordCommand(rec CommandRecord) error
}

// FlushRecord represents a completed flush cycle.
type FlushRecord struct {
	Queue   string
	RunID   uint64
	Runtime time.Duration
	Error   string
	Time    time.Time
}

// FlushRecorder records flush cycles. Sinks implement it optionally.
type FlushRecorder interface {
	RecordFlush(rec FlushRecord) error
}

// CDRRecorder records charge detail records. Sinks implement it optionally.
type CDRRecorder interface {
	RecordCDR(cdr model.ChargeDetailRecord) error
}

// RoamingEvent is a reservation or session lifecycle event.
type RoamingEvent struct {
	Kind       string
	EntityID   string
	EVSEID     string
	TrackingID string
	Remote     bool
	Time       time.Time
}

// RoamingRecorder records roaming lifecycle events. Sinks implement it
// optionally.
type RoamingRecorder interface {
	RecordRoaming(ev RoamingEvent) error
}

// NopSink discards everything.
type NopSink struct{}

func (NopSink) RecordCommand(CommandRecord) error        { return nil }
func (NopSink) RecordFlush(FlushRecord) error            { return nil }
func (NopSink) RecordCDR(model.ChargeDetailRecord) error { return nil }
func (NopSink) RecordRoaming(RoamingEvent) error         { return nil }
