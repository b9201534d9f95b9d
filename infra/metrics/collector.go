package metrics

import (
	"context"
	"time"

	"github.com/voltmesh/cso/core/events"
	coremetrics "github.com/voltmesh/cso/core/metrics"
	"github.com/voltmesh/cso/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and records roaming
// lifecycle events on the sink. It stops when the context is canceled.
// Command and flush records are written by the dispatcher and the flush
// engine directly; the collector only covers the lifecycle events that
// have no synchronous sink call.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink) {
	if bus == nil || sink == nil {
		return
	}
	rr, ok := sink.(coremetrics.RoamingRecorder)
	if !ok {
		return
	}
	// The collector sees every event of every verb; give it more slack
	// than a default subscriber before the bus starts dropping.
	sub := bus.SubscribeBuffered(64)
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, open := <-sub:
				if !open {
					return
				}
				switch e := ev.(type) {
				case events.NewReservation:
					_ = rr.RecordRoaming(coremetrics.RoamingEvent{
						Kind:       "reservation",
						EntityID:   string(e.Reservation.ID),
						EVSEID:     string(e.Reservation.EVSEID),
						TrackingID: e.TrackingID,
						Remote:     e.Remote,
						Time:       time.Now(),
					})
				case events.ReservationCancelled:
					_ = rr.RecordRoaming(coremetrics.RoamingEvent{
						Kind:       "reservation_cancelled",
						EntityID:   string(e.Reservation.ID),
						EVSEID:     string(e.Reservation.EVSEID),
						TrackingID: e.TrackingID,
						Time:       time.Now(),
					})
				case events.NewSession:
					_ = rr.RecordRoaming(coremetrics.RoamingEvent{
						Kind:       "session",
						EntityID:   string(e.Session.ID),
						EVSEID:     string(e.Session.EVSEID),
						TrackingID: e.TrackingID,
						Remote:     e.Remote,
						Time:       time.Now(),
					})
				}
			}
		}
	}()
}
