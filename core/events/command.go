// Package events defines the observability events published on the bus by
// the command dispatcher and the flush engine. Backends (logging, metrics)
// subscribe and consume them; delivery never blocks a dispatch.
package events

import (
	"time"

	"github.com/voltmesh/cso/core/model"
)

// Verb names a dispatcher operation.
type Verb string

const (
	VerbReserve           Verb = "reserve"
	VerbRemoteStart       Verb = "remote_start"
	VerbRemoteStop        Verb = "remote_stop"
	VerbCancelReservation Verb = "cancel_reservation"
)

// Granularity names the addressing level of a command.
type Granularity string

const (
	GranularityEVSE    Granularity = "evse"
	GranularityStation Granularity = "station"
	GranularityPool    Granularity = "pool"
	GranularityID      Granularity = "id"
)

// CommandRequest is published when a dispatcher operation starts, after
// input normalization.
type CommandRequest struct {
	Verb        Verb
	Granularity Granularity
	TargetID    string
	TrackingID  string
	Timestamp   time.Time
}

// CommandResponse is published when a dispatcher operation completes,
// carrying the result code and the elapsed wall-clock runtime of the
// remote and local attempts combined.
type CommandResponse struct {
	Verb        Verb
	Granularity Granularity
	TargetID    string
	TrackingID  string
	Timestamp   time.Time
	Code        model.ResultCode
	Runtime     time.Duration
}
