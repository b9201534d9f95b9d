package model

import "github.com/google/uuid"

// Identifier types for the four levels of the charging hierarchy and for
// the objects routed through the command dispatcher.
type (
	OperatorID    string
	PoolID        string
	StationID     string
	EVSEID        string
	ReservationID string
	SessionID     string
	ProviderID    string
	ProductID     string
)

// AuthIdentity identifies the party requesting a command, typically an
// RFID UID or an eMAID token.
type AuthIdentity string

// NewReservationID returns a fresh random reservation identifier.
func NewReservationID() ReservationID {
	return ReservationID(uuid.NewString())
}

// NewSessionID returns a fresh random charging session identifier.
func NewSessionID() SessionID {
	return SessionID(uuid.NewString())
}

// NewTrackingID returns a correlation identifier for a dispatched command.
func NewTrackingID() string {
	return uuid.NewString()
}
