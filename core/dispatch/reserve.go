package dispatch

import (
	"context"
	"time"

	"github.com/voltmesh/cso/core/events"
	"github.com/voltmesh/cso/core/model"
	"github.com/voltmesh/cso/core/roaming"
)

// ReserveEVSE reserves the connector with the given id.
func (d *Dispatcher) ReserveEVSE(ctx context.Context, req roaming.ReserveRequest) *roaming.ReserveResult {
	if req.EVSEID == "" {
		return &roaming.ReserveResult{Code: model.ResultUnknownEVSE, Message: "missing evse id"}
	}
	req.StationID, req.PoolID = "", ""
	return d.reserve(ctx, req, events.GranularityEVSE, string(req.EVSEID), d.localOnlyEVSE(req.EVSEID))
}

// ReserveStation reserves a free connector of the station with the given
// id; the station picks which one.
func (d *Dispatcher) ReserveStation(ctx context.Context, req roaming.ReserveRequest) *roaming.ReserveResult {
	if req.StationID == "" {
		return &roaming.ReserveResult{Code: model.ResultUnknownStation, Message: "missing station id"}
	}
	req.EVSEID, req.PoolID = "", ""
	return d.reserve(ctx, req, events.GranularityStation, string(req.StationID), d.localOnlyStation(req.StationID))
}

// ReservePool reserves a free connector anywhere in the pool with the
// given id.
func (d *Dispatcher) ReservePool(ctx context.Context, req roaming.ReserveRequest) *roaming.ReserveResult {
	if req.PoolID == "" {
		return &roaming.ReserveResult{Code: model.ResultUnknownPool, Message: "missing pool id"}
	}
	req.EVSEID, req.StationID = "", ""
	return d.reserve(ctx, req, events.GranularityPool, string(req.PoolID), d.localOnlyPool(req.PoolID))
}

func (d *Dispatcher) reserve(ctx context.Context, req roaming.ReserveRequest, gran events.Granularity, target string, localOnly bool) *roaming.ReserveResult {
	start := time.Now()
	cmd := d.begin(events.VerbReserve, gran, target, &req.Timestamp, &req.TrackingID, &req.Timeout)

	var res *roaming.ReserveResult
	attempted := false
	if d.remote != nil && !localOnly {
		attempted = true
		remoteAttempts.Inc()
		rreq := req
		if d.cfg.DisableAuthentication {
			rreq.Identity = ""
		}
		r, err := d.remote.Reserve(ctx, rreq)
		if err != nil {
			d.log.Warnf("remote reserve %s: %v", target, err)
		} else {
			res = r
		}
	}

	if !attempted || res == nil || res.Code.RetriableLocally() {
		if attempted {
			localFallbacks.Inc()
		}
		res = d.reserveLocal(ctx, req)
		if res.Code == model.ResultSuccess {
			d.registerReservation(res.Reservation, req.TrackingID, false)
		}
	} else if res.Code == model.ResultSuccess {
		d.registerReservation(res.Reservation, req.TrackingID, true)
	}

	d.finish(cmd, res.Code, attempted, start)
	return res
}

func (d *Dispatcher) reserveLocal(ctx context.Context, req roaming.ReserveRequest) *roaming.ReserveResult {
	pool, code := d.resolvePool(req.EVSEID, req.StationID, req.PoolID)
	if code != model.ResultSuccess {
		return &roaming.ReserveResult{Code: code}
	}
	return pool.Reserve(ctx, req)
}
