// Package dispatch implements the command dispatcher sitting between
// roaming partners and the local charging hierarchy. Every verb follows
// the same shape: normalize the request, try the configured remote
// operator, and fall back to the owning pool when the remote gave no
// usable answer.
package dispatch

import (
	"fmt"
	"time"

	"github.com/voltmesh/cso/core/events"
	"github.com/voltmesh/cso/core/hierarchy"
	"github.com/voltmesh/cso/core/logger"
	"github.com/voltmesh/cso/core/metrics"
	"github.com/voltmesh/cso/core/model"
	"github.com/voltmesh/cso/core/registry"
	"github.com/voltmesh/cso/core/roaming"
	"github.com/voltmesh/cso/internal/eventbus"
)

// Dispatcher routes reservation and session commands to the remote
// roaming operator or to the owning pool. It keeps routing registries so
// follow-up commands (cancel, stop) reach the granting pool directly
// instead of scanning the hierarchy.
type Dispatcher struct {
	operator *hierarchy.Operator
	remote   roaming.RemoteOperator
	bus      eventbus.EventBus
	sink     metrics.MetricsSink
	log      logger.Logger
	cfg      Config

	reservations *registry.ReservationRegistry
	sessions     *registry.SessionRegistry
	cdrs         *eventbus.TypedBus[model.ChargeDetailRecord]

	localOnlyEVSEs    map[model.EVSEID]struct{}
	localOnlyStations map[model.StationID]struct{}
	localOnlyPools    map[model.PoolID]struct{}
}

// New creates a Dispatcher. The remote operator and the event bus are
// optional; operator and log are required.
func New(operator *hierarchy.Operator, remote roaming.RemoteOperator, bus eventbus.EventBus, sink metrics.MetricsSink, log logger.Logger, cfg Config) (*Dispatcher, error) {
	if operator == nil {
		return nil, fmt.Errorf("dispatch: operator is required")
	}
	if log == nil {
		return nil, fmt.Errorf("dispatch: logger is required")
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	cfg.SetDefaults()

	d := &Dispatcher{
		operator:          operator,
		remote:            remote,
		bus:               bus,
		sink:              sink,
		log:               log,
		cfg:               cfg,
		reservations:      registry.NewReservationRegistry(),
		sessions:          registry.NewSessionRegistry(),
		cdrs:              eventbus.NewTyped[model.ChargeDetailRecord](),
		localOnlyEVSEs:    make(map[model.EVSEID]struct{}, len(cfg.LocalOnlyEVSEs)),
		localOnlyStations: make(map[model.StationID]struct{}, len(cfg.LocalOnlyStations)),
		localOnlyPools:    make(map[model.PoolID]struct{}, len(cfg.LocalOnlyPools)),
	}
	for _, id := range cfg.LocalOnlyEVSEs {
		d.localOnlyEVSEs[model.EVSEID(id)] = struct{}{}
	}
	for _, id := range cfg.LocalOnlyStations {
		d.localOnlyStations[model.StationID(id)] = struct{}{}
	}
	for _, id := range cfg.LocalOnlyPools {
		d.localOnlyPools[model.PoolID(id)] = struct{}{}
	}
	return d, nil
}

// Operator returns the hierarchy root the dispatcher serves.
func (d *Dispatcher) Operator() *hierarchy.Operator { return d.operator }

// Reservations returns the reservation routing registry.
func (d *Dispatcher) Reservations() *registry.ReservationRegistry {
	return d.reservations
}

// Sessions returns the session routing registry.
func (d *Dispatcher) Sessions() *registry.SessionRegistry {
	return d.sessions
}

// CDRStream returns a channel carrying every charge detail record a
// stop produced. Consumers that fall behind miss records on the stream;
// the authoritative copy is in the stop result.
func (d *Dispatcher) CDRStream() <-chan model.ChargeDetailRecord {
	return d.cdrs.Subscribe()
}

func (d *Dispatcher) localOnlyEVSE(id model.EVSEID) bool {
	_, ok := d.localOnlyEVSEs[id]
	return ok
}

func (d *Dispatcher) localOnlyStation(id model.StationID) bool {
	_, ok := d.localOnlyStations[id]
	return ok
}

func (d *Dispatcher) localOnlyPool(id model.PoolID) bool {
	_, ok := d.localOnlyPools[id]
	return ok
}

func (d *Dispatcher) publish(e eventbus.Event) {
	if d.bus != nil {
		d.bus.Publish(e)
	}
}

// begin normalizes the request metadata in place and publishes the
// request event. The returned event is reused by finish.
func (d *Dispatcher) begin(verb events.Verb, gran events.Granularity, target string, ts *time.Time, trackingID *string, timeout *time.Duration) events.CommandRequest {
	if ts.IsZero() {
		*ts = time.Now()
	}
	if *trackingID == "" {
		*trackingID = model.NewTrackingID()
	}
	if *timeout <= 0 {
		*timeout = d.cfg.requestTimeout()
	}
	req := events.CommandRequest{
		Verb:        verb,
		Granularity: gran,
		TargetID:    target,
		TrackingID:  *trackingID,
		Timestamp:   *ts,
	}
	d.publish(req)
	return req
}

func (d *Dispatcher) finish(cmd events.CommandRequest, code model.ResultCode, remote bool, start time.Time) {
	runtime := time.Since(start)
	commandsTotal.WithLabelValues(string(cmd.Verb), code.String()).Inc()
	commandRuntime.WithLabelValues(string(cmd.Verb)).Observe(runtime.Seconds())
	d.publish(events.CommandResponse{
		Verb:        cmd.Verb,
		Granularity: cmd.Granularity,
		TargetID:    cmd.TargetID,
		TrackingID:  cmd.TrackingID,
		Timestamp:   time.Now(),
		Code:        code,
		Runtime:     runtime,
	})
	if err := d.sink.RecordCommand(metrics.CommandRecord{
		Verb:        string(cmd.Verb),
		Granularity: string(cmd.Granularity),
		TargetID:    cmd.TargetID,
		TrackingID:  cmd.TrackingID,
		Code:        code,
		Remote:      remote,
		Runtime:     runtime,
		Time:        time.Now(),
	}); err != nil {
		d.log.Warnf("metrics sink: %v", err)
	}
	d.log.Debugw("command completed", map[string]any{
		"verb":        string(cmd.Verb),
		"target":      cmd.TargetID,
		"tracking_id": cmd.TrackingID,
		"code":        code.String(),
		"runtime_ms":  runtime.Milliseconds(),
	})
}

// resolvePool maps the granularity of a request to the owning pool.
func (d *Dispatcher) resolvePool(evse model.EVSEID, station model.StationID, pool model.PoolID) (*hierarchy.Pool, model.ResultCode) {
	switch {
	case evse != "":
		if p, ok := d.operator.PoolForEVSE(evse); ok {
			return p, model.ResultSuccess
		}
		return nil, model.ResultUnknownEVSE
	case station != "":
		if p, ok := d.operator.PoolForStation(station); ok {
			return p, model.ResultSuccess
		}
		return nil, model.ResultUnknownStation
	case pool != "":
		if p, ok := d.operator.Pool(pool); ok {
			return p, model.ResultSuccess
		}
		return nil, model.ResultUnknownPool
	}
	return nil, model.ResultError
}

// registerReservation records the routing entry for a granted
// reservation and announces it on the bus. Grants on EVSEs outside the
// local hierarchy get no routing entry; a later cancel for them falls
// through to the pool scan and fails there.
func (d *Dispatcher) registerReservation(r *model.Reservation, trackingID string, remote bool) {
	if r == nil {
		return
	}
	if pool, ok := d.operator.PoolForEVSE(r.EVSEID); ok {
		if !d.reservations.TryAdd(r.ID, pool) {
			d.log.Errorf("reservation %s already routed", r.ID)
		}
	} else {
		d.log.Debugf("reservation %s targets foreign evse %s, no route recorded", r.ID, r.EVSEID)
	}
	d.publish(events.NewReservation{Reservation: *r, TrackingID: trackingID, Remote: remote})
}

func (d *Dispatcher) registerSession(s *model.ChargingSession, trackingID string, remote bool) {
	if s == nil {
		return
	}
	if pool, ok := d.operator.PoolForEVSE(s.EVSEID); ok {
		if !d.sessions.TryAdd(s.ID, pool) {
			d.log.Errorf("session %s already routed", s.ID)
		}
	} else {
		d.log.Debugf("session %s targets foreign evse %s, no route recorded", s.ID, s.EVSEID)
	}
	d.publish(events.NewSession{Session: *s, TrackingID: trackingID, Remote: remote})
}
