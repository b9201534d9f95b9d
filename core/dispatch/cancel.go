package dispatch

import (
	"context"
	"time"

	"github.com/voltmesh/cso/core/events"
	"github.com/voltmesh/cso/core/model"
	"github.com/voltmesh/cso/core/roaming"
)

// CancelReservation releases the reservation with the given id. The
// reservation lives in exactly one pool, so cancellation is handled
// locally: first through the routing registry, then by asking every pool
// in turn.
func (d *Dispatcher) CancelReservation(ctx context.Context, req roaming.CancelReservationRequest) *roaming.CancelReservationResult {
	if req.ReservationID == "" {
		return &roaming.CancelReservationResult{Code: model.ResultInvalidOrUnknownID, Message: "missing reservation id"}
	}
	if req.Reason == "" {
		req.Reason = model.CancelRequested
	}
	start := time.Now()
	cmd := d.begin(events.VerbCancelReservation, events.GranularityID, string(req.ReservationID), &req.Timestamp, &req.TrackingID, &req.Timeout)

	res := d.cancelLocal(ctx, req)
	if res.Code == model.ResultSuccess {
		// The pool already dropped the reservation; removing the routing
		// entry twice is harmless.
		d.reservations.TryRemove(req.ReservationID)
		if res.Reservation != nil {
			d.publish(events.ReservationCancelled{
				Reservation: *res.Reservation,
				Reason:      req.Reason,
				TrackingID:  req.TrackingID,
			})
		}
	}

	d.finish(cmd, res.Code, false, start)
	return res
}

func (d *Dispatcher) cancelLocal(ctx context.Context, req roaming.CancelReservationRequest) *roaming.CancelReservationResult {
	if pool, ok := d.reservations.TryGet(req.ReservationID); ok {
		res := pool.CancelReservation(ctx, req)
		if res.Code != model.ResultInvalidOrUnknownID {
			return res
		}
		d.log.Warnf("reservation %s not held by its routed pool %s", req.ReservationID, pool.ID())
	}
	scannedPools.Inc()
	for _, pool := range d.operator.Pools() {
		res := pool.CancelReservation(ctx, req)
		if res.Code != model.ResultInvalidOrUnknownID {
			return res
		}
	}
	return &roaming.CancelReservationResult{Code: model.ResultInvalidOrUnknownID}
}
