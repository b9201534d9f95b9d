package model

import "time"

// ReservationHandling selects what happens to the blocked connector when
// a reservation is cancelled.
type ReservationHandling string

const (
	// HandlingRelease frees the connector immediately.
	HandlingRelease ReservationHandling = "release"
	// HandlingKeepBlocked keeps the connector blocked until the original
	// reservation window elapses.
	HandlingKeepBlocked ReservationHandling = "keep_blocked"
)

// CancelReason describes why a reservation was cancelled.
type CancelReason string

const (
	CancelRequested CancelReason = "requested"
	CancelExpired   CancelReason = "expired"
	CancelAborted   CancelReason = "aborted"
)

// Reservation is a time-bounded hold on a connector, granted by the pool
// that owns the connector. The pool remains the sole owner of the
// reservation; registries only hold routing references to it.
type Reservation struct {
	ID         ReservationID       `json:"id"`
	EVSEID     EVSEID              `json:"evse_id"`
	PoolID     PoolID              `json:"pool_id,omitempty"`
	StartTime  time.Time           `json:"start_time"`
	Duration   time.Duration       `json:"duration"`
	ProviderID ProviderID          `json:"provider_id,omitempty"`
	Identity   AuthIdentity        `json:"identity,omitempty"`
	Handling   ReservationHandling `json:"handling,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
}

// EndTime returns the instant the reservation window closes.
func (r Reservation) EndTime() time.Time {
	return r.StartTime.Add(r.Duration)
}

// Expired reports whether the reservation window has elapsed at now.
func (r Reservation) Expired(now time.Time) bool {
	return now.After(r.EndTime())
}
