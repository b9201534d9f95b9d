package dispatch

import (
	"context"
	"time"

	"github.com/voltmesh/cso/core/events"
	"github.com/voltmesh/cso/core/model"
	"github.com/voltmesh/cso/core/roaming"
)

// RemoteStartEVSE starts a charging session on the connector with the
// given id. A request referencing a reservation starts on the reserved
// connector instead.
func (d *Dispatcher) RemoteStartEVSE(ctx context.Context, req roaming.RemoteStartRequest) *roaming.RemoteStartResult {
	if req.EVSEID == "" && req.ReservationID == "" {
		return &roaming.RemoteStartResult{Code: model.ResultUnknownEVSE, Message: "missing evse id"}
	}
	req.StationID, req.PoolID = "", ""
	return d.remoteStart(ctx, req, events.GranularityEVSE, string(req.EVSEID), d.localOnlyEVSE(req.EVSEID))
}

// RemoteStartStation starts a charging session on a free connector of
// the station with the given id.
func (d *Dispatcher) RemoteStartStation(ctx context.Context, req roaming.RemoteStartRequest) *roaming.RemoteStartResult {
	if req.StationID == "" {
		return &roaming.RemoteStartResult{Code: model.ResultUnknownStation, Message: "missing station id"}
	}
	req.EVSEID, req.PoolID = "", ""
	return d.remoteStart(ctx, req, events.GranularityStation, string(req.StationID), d.localOnlyStation(req.StationID))
}

// RemoteStartPool starts a charging session on a free connector anywhere
// in the pool with the given id.
func (d *Dispatcher) RemoteStartPool(ctx context.Context, req roaming.RemoteStartRequest) *roaming.RemoteStartResult {
	if req.PoolID == "" {
		return &roaming.RemoteStartResult{Code: model.ResultUnknownPool, Message: "missing pool id"}
	}
	req.EVSEID, req.StationID = "", ""
	return d.remoteStart(ctx, req, events.GranularityPool, string(req.PoolID), d.localOnlyPool(req.PoolID))
}

func (d *Dispatcher) remoteStart(ctx context.Context, req roaming.RemoteStartRequest, gran events.Granularity, target string, localOnly bool) *roaming.RemoteStartResult {
	start := time.Now()
	cmd := d.begin(events.VerbRemoteStart, gran, target, &req.Timestamp, &req.TrackingID, &req.Timeout)

	var res *roaming.RemoteStartResult
	attempted := false
	if d.remote != nil && !localOnly {
		attempted = true
		remoteAttempts.Inc()
		rreq := req
		if d.cfg.DisableAuthentication {
			rreq.Identity = ""
		}
		r, err := d.remote.RemoteStart(ctx, rreq)
		if err != nil {
			d.log.Warnf("remote start %s: %v", target, err)
		} else {
			res = r
		}
	}

	if !attempted || res == nil || res.Code.RetriableLocally() {
		if attempted {
			localFallbacks.Inc()
		}
		res = d.startLocal(ctx, req)
		if res.Code == model.ResultSuccess {
			d.registerSession(res.Session, req.TrackingID, false)
		}
	} else if res.Code == model.ResultSuccess {
		d.registerSession(res.Session, req.TrackingID, true)
	}

	d.finish(cmd, res.Code, attempted, start)
	return res
}

// startLocal routes the request to the owning pool. A reservation-backed
// start is routed through the reservation registry first, so the session
// lands in the pool that granted the hold.
func (d *Dispatcher) startLocal(ctx context.Context, req roaming.RemoteStartRequest) *roaming.RemoteStartResult {
	if req.ReservationID != "" {
		res := d.startReserved(ctx, req)
		if res.Code == model.ResultSuccess {
			d.reservations.TryRemove(req.ReservationID)
		}
		return res
	}
	pool, code := d.resolvePool(req.EVSEID, req.StationID, req.PoolID)
	if code != model.ResultSuccess {
		return &roaming.RemoteStartResult{Code: code}
	}
	return pool.RemoteStart(ctx, req)
}

func (d *Dispatcher) startReserved(ctx context.Context, req roaming.RemoteStartRequest) *roaming.RemoteStartResult {
	if pool, ok := d.reservations.TryGet(req.ReservationID); ok {
		res := pool.RemoteStart(ctx, req)
		if res.Code != model.ResultInvalidOrUnknownID {
			return res
		}
		d.log.Warnf("reservation %s not held by its routed pool %s", req.ReservationID, pool.ID())
	}
	scannedPools.Inc()
	for _, pool := range d.operator.Pools() {
		res := pool.RemoteStart(ctx, req)
		if res.Code != model.ResultInvalidOrUnknownID {
			return res
		}
	}
	return &roaming.RemoteStartResult{Code: model.ResultInvalidOrUnknownID}
}
