package registry

import (
	"github.com/voltmesh/cso/core/hierarchy"
	"github.com/voltmesh/cso/core/model"
)

// ReservationRegistry routes reservation ids to the granting pool.
type ReservationRegistry = Registry[model.ReservationID, *hierarchy.Pool]

// SessionRegistry routes session ids to the admitting pool.
type SessionRegistry = Registry[model.SessionID, *hierarchy.Pool]

// NewReservationRegistry creates an empty reservation routing registry.
func NewReservationRegistry() *ReservationRegistry {
	return New[model.ReservationID, *hierarchy.Pool]()
}

// NewSessionRegistry creates an empty session routing registry.
func NewSessionRegistry() *SessionRegistry {
	return New[model.SessionID, *hierarchy.Pool]()
}
