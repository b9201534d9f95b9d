package dispatch

import (
	"context"
	"time"

	"github.com/voltmesh/cso/core/events"
	"github.com/voltmesh/cso/core/metrics"
	"github.com/voltmesh/cso/core/model"
	"github.com/voltmesh/cso/core/roaming"
)

// RemoteStop terminates the charging session with the given id. Stops
// are addressed by session id only; when the routing registry has no
// entry for the id, every pool is asked in turn and the first answer
// other than "unknown id" wins.
func (d *Dispatcher) RemoteStop(ctx context.Context, req roaming.RemoteStopRequest) *roaming.RemoteStopResult {
	if req.SessionID == "" {
		return &roaming.RemoteStopResult{Code: model.ResultInvalidOrUnknownID, Message: "missing session id"}
	}
	start := time.Now()
	cmd := d.begin(events.VerbRemoteStop, events.GranularityID, string(req.SessionID), &req.Timestamp, &req.TrackingID, &req.Timeout)

	var res *roaming.RemoteStopResult
	attempted := false
	if d.remote != nil {
		attempted = true
		remoteAttempts.Inc()
		rreq := req
		if d.cfg.DisableAuthentication {
			rreq.Identity = ""
		}
		r, err := d.remote.RemoteStop(ctx, rreq)
		if err != nil {
			d.log.Warnf("remote stop %s: %v", req.SessionID, err)
		} else {
			res = r
		}
	}

	if !attempted || res == nil || res.Code.RetriableLocally() {
		if attempted {
			localFallbacks.Inc()
		}
		res = d.stopLocal(ctx, req)
	}

	if res.Code == model.ResultSuccess {
		d.sessions.TryRemove(req.SessionID)
		if res.CDR != nil {
			d.cdrs.Publish(*res.CDR)
			d.publish(events.NewCDR{CDR: *res.CDR, TrackingID: req.TrackingID})
			if rec, ok := d.sink.(metrics.CDRRecorder); ok {
				if err := rec.RecordCDR(*res.CDR); err != nil {
					d.log.Warnf("cdr sink: %v", err)
				}
			}
		}
	}

	d.finish(cmd, res.Code, attempted, start)
	return res
}

func (d *Dispatcher) stopLocal(ctx context.Context, req roaming.RemoteStopRequest) *roaming.RemoteStopResult {
	if pool, ok := d.sessions.TryGet(req.SessionID); ok {
		res := pool.RemoteStop(ctx, req)
		if res.Code != model.ResultInvalidOrUnknownID {
			return res
		}
		d.log.Warnf("session %s not held by its routed pool %s", req.SessionID, pool.ID())
	}
	scannedPools.Inc()
	for _, pool := range d.operator.Pools() {
		res := pool.RemoteStop(ctx, req)
		if res.Code != model.ResultInvalidOrUnknownID {
			return res
		}
	}
	return &roaming.RemoteStopResult{Code: model.ResultInvalidOrUnknownID}
}
