package hierarchy

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/voltmesh/cso/core/model"
	"github.com/voltmesh/cso/core/roaming"
)

// The pool is the local delegate of the command dispatcher: it grants
// reservations, admits sessions and produces CDRs for the connectors it
// owns. The context is accepted for signature parity with the remote
// operator; cancellation and timeouts are owned by the leaf transport and
// not interpreted here.

func orNow(ts time.Time) time.Time {
	if ts.IsZero() {
		return time.Now()
	}
	return ts
}

// Reserve grants a reservation on a connector below this pool.
func (p *Pool) Reserve(ctx context.Context, req roaming.ReserveRequest) *roaming.ReserveResult {
	p.commandCalls.Add(1)
	now := orNow(req.Timestamp)
	conn, code := p.resolveTarget(req.EVSEID, req.StationID, req.PoolID)
	if code != model.ResultSuccess {
		return &roaming.ReserveResult{Code: code}
	}
	if conn == nil {
		return &roaming.ReserveResult{Code: model.ResultError, Message: "no connector available"}
	}
	if !conn.Operational() {
		return &roaming.ReserveResult{Code: model.ResultError, Message: "connector not available"}
	}

	id := req.ReservationID
	if id == "" {
		id = model.NewReservationID()
	}
	start := req.StartTime
	if start.IsZero() {
		start = now
	}
	duration := req.Duration
	if duration <= 0 {
		duration = DefaultReservationDuration
	}
	res := &model.Reservation{
		ID:         id,
		EVSEID:     conn.ID(),
		PoolID:     p.id,
		StartTime:  start,
		Duration:   duration,
		ProviderID: req.ProviderID,
		Identity:   req.Identity,
		Handling:   req.Handling,
		CreatedAt:  now,
	}

	p.mu.Lock()
	if _, dup := p.reservations[id]; dup {
		p.mu.Unlock()
		return &roaming.ReserveResult{Code: model.ResultError, Message: "reservation id already in use"}
	}
	p.reservations[id] = res
	p.mu.Unlock()

	conn.SetStatusAt(model.ConnectorReserved, now)
	return &roaming.ReserveResult{Code: model.ResultSuccess, Reservation: res}
}

// RemoteStart admits a charging session on a connector below this pool.
// When the request references a reservation, the session starts on the
// reserved connector and consumes the reservation.
func (p *Pool) RemoteStart(ctx context.Context, req roaming.RemoteStartRequest) *roaming.RemoteStartResult {
	p.commandCalls.Add(1)
	now := orNow(req.Timestamp)

	var conn *Connector
	var consumed *model.Reservation
	if req.ReservationID != "" {
		p.mu.Lock()
		r, ok := p.reservations[req.ReservationID]
		if ok {
			delete(p.reservations, req.ReservationID)
		}
		p.mu.Unlock()
		if !ok {
			return &roaming.RemoteStartResult{Code: model.ResultInvalidOrUnknownID}
		}
		consumed = r
		c, ok := p.Connector(r.EVSEID)
		if !ok {
			return &roaming.RemoteStartResult{Code: model.ResultUnknownEVSE}
		}
		conn = c
	} else {
		c, code := p.resolveTarget(req.EVSEID, req.StationID, req.PoolID)
		if code != model.ResultSuccess {
			return &roaming.RemoteStartResult{Code: code}
		}
		if c == nil || !c.Operational() {
			return &roaming.RemoteStartResult{Code: model.ResultError, Message: "connector not available"}
		}
		conn = c
	}

	id := req.SessionID
	if id == "" {
		id = model.NewSessionID()
	}
	var opID model.OperatorID
	if p.operator != nil {
		opID = p.operator.ID()
	}
	sess := &model.ChargingSession{
		ID:         id,
		EVSEID:     conn.ID(),
		PoolID:     p.id,
		OperatorID: opID,
		ProviderID: req.ProviderID,
		Identity:   req.Identity,
		ProductID:  req.ProductID,
		StartedAt:  now,
	}
	if consumed != nil {
		sess.ReservationID = consumed.ID
	}

	p.mu.Lock()
	if _, dup := p.sessions[id]; dup {
		p.mu.Unlock()
		return &roaming.RemoteStartResult{Code: model.ResultError, Message: "session id already in use"}
	}
	p.sessions[id] = sess
	p.mu.Unlock()

	conn.SetStatusAt(model.ConnectorCharging, now)
	return &roaming.RemoteStartResult{Code: model.ResultSuccess, Session: sess}
}

// RemoteStop terminates a session admitted by this pool and produces its
// charge detail record. An id this pool never saw yields
// ResultInvalidOrUnknownID, which the dispatcher's scan fallback treats
// as "ask the next pool".
func (p *Pool) RemoteStop(ctx context.Context, req roaming.RemoteStopRequest) *roaming.RemoteStopResult {
	p.commandCalls.Add(1)

	p.mu.Lock()
	sess, ok := p.sessions[req.SessionID]
	if ok {
		delete(p.sessions, req.SessionID)
	}
	p.mu.Unlock()
	if !ok {
		return &roaming.RemoteStopResult{Code: model.ResultInvalidOrUnknownID}
	}

	end := orNow(req.Timestamp)
	cdr := &model.ChargeDetailRecord{
		ID:           uuid.NewString(),
		SessionID:    sess.ID,
		EVSEID:       sess.EVSEID,
		ProviderID:   sess.ProviderID,
		Identity:     sess.Identity,
		SessionStart: sess.StartedAt,
		SessionEnd:   end,
	}
	if conn, ok := p.Connector(sess.EVSEID); ok {
		cdr.EnergyKWh = conn.MaxPowerKW() * end.Sub(sess.StartedAt).Hours()
		conn.SetStatusAt(model.ConnectorAvailable, end)
	}
	return &roaming.RemoteStopResult{Code: model.ResultSuccess, Session: sess, CDR: cdr}
}

// CancelReservation releases a reservation granted by this pool. An id
// this pool never saw yields ResultInvalidOrUnknownID.
func (p *Pool) CancelReservation(ctx context.Context, req roaming.CancelReservationRequest) *roaming.CancelReservationResult {
	p.commandCalls.Add(1)

	p.mu.Lock()
	res, ok := p.reservations[req.ReservationID]
	if ok {
		delete(p.reservations, req.ReservationID)
	}
	p.mu.Unlock()
	if !ok {
		return &roaming.CancelReservationResult{Code: model.ResultInvalidOrUnknownID}
	}

	if res.Handling != model.HandlingKeepBlocked {
		if conn, ok := p.Connector(res.EVSEID); ok {
			conn.SetStatusAt(model.ConnectorAvailable, orNow(req.Timestamp))
		}
	}
	return &roaming.CancelReservationResult{Code: model.ResultSuccess, Reservation: res}
}

// resolveTarget maps the granularity of a request to a concrete
// connector. For station and pool targets the first operational connector
// is chosen; a nil connector with ResultSuccess means the target exists
// but has no free connector.
func (p *Pool) resolveTarget(evse model.EVSEID, station model.StationID, pool model.PoolID) (*Connector, model.ResultCode) {
	switch {
	case evse != "":
		c, ok := p.Connector(evse)
		if !ok {
			return nil, model.ResultUnknownEVSE
		}
		return c, model.ResultSuccess
	case station != "":
		st, ok := p.Station(station)
		if !ok {
			return nil, model.ResultUnknownStation
		}
		return firstOperational(st.EVSEs()), model.ResultSuccess
	case pool != "":
		if pool != p.id {
			return nil, model.ResultUnknownPool
		}
		return firstOperational(p.EVSEs()), model.ResultSuccess
	}
	return nil, model.ResultError
}

func firstOperational(conns []*Connector) *Connector {
	for _, c := range conns {
		if c.Operational() {
			return c
		}
	}
	return nil
}
