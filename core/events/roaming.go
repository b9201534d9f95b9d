package events

import "github.com/voltmesh/cso/core/model"

// NewReservation is published after a reservation was granted, remotely
// or locally.
type NewReservation struct {
	Reservation model.Reservation
	TrackingID  string
	Remote      bool
}

// ReservationCancelled is published after a reservation was released. It
// carries the released reservation so consumers can defensively clean up
// routing entries a second time.
type ReservationCancelled struct {
	Reservation model.Reservation
	Reason      model.CancelReason
	TrackingID  string
}

// NewSession is published after a charging session was admitted.
type NewSession struct {
	Session    model.ChargingSession
	TrackingID string
	Remote     bool
}

// NewCDR is published when a stopped session yielded a charge detail
// record.
type NewCDR struct {
	CDR        model.ChargeDetailRecord
	TrackingID string
}
