package model

import "time"

// ChargingSession is an active charging transaction. It is created on a
// successful remote start and terminated by a remote stop, which yields
// a ChargeDetailRecord.
type ChargingSession struct {
	ID            SessionID     `json:"id"`
	EVSEID        EVSEID        `json:"evse_id"`
	PoolID        PoolID        `json:"pool_id,omitempty"`
	OperatorID    OperatorID    `json:"operator_id,omitempty"`
	ReservationID ReservationID `json:"reservation_id,omitempty"`
	ProviderID    ProviderID    `json:"provider_id,omitempty"`
	Identity      AuthIdentity  `json:"identity,omitempty"`
	ProductID     ProductID     `json:"product_id,omitempty"`
	StartedAt     time.Time     `json:"started_at"`
}

// ChargeDetailRecord is the settlement record produced when a charging
// session ends.
type ChargeDetailRecord struct {
	ID           string       `json:"id"`
	SessionID    SessionID    `json:"session_id"`
	EVSEID       EVSEID       `json:"evse_id"`
	ProviderID   ProviderID   `json:"provider_id,omitempty"`
	Identity     AuthIdentity `json:"identity,omitempty"`
	SessionStart time.Time    `json:"session_start"`
	SessionEnd   time.Time    `json:"session_end"`
	EnergyKWh    float64      `json:"energy_kwh"`
}

// Duration returns the wall-clock length of the recorded session.
func (c ChargeDetailRecord) Duration() time.Duration {
	return c.SessionEnd.Sub(c.SessionStart)
}
