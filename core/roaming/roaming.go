// Package roaming defines the command contract shared by the local pool
// delegates and remote roaming-partner integrations, plus the abstract
// drain operations consumed by the flush engine.
package roaming

import (
	"context"
	"time"

	"github.com/voltmesh/cso/core/model"
)

// ReserveRequest asks for a time-bounded hold on charging capacity.
// Exactly one of EVSEID, StationID or PoolID selects the granularity.
type ReserveRequest struct {
	EVSEID    model.EVSEID    `json:"evse_id,omitempty"`
	StationID model.StationID `json:"station_id,omitempty"`
	PoolID    model.PoolID    `json:"pool_id,omitempty"`

	StartTime  time.Time                 `json:"start_time"`
	Duration   time.Duration             `json:"duration"`
	ProviderID model.ProviderID          `json:"provider_id,omitempty"`
	Identity   model.AuthIdentity        `json:"identity,omitempty"`
	ProductID  model.ProductID           `json:"product_id,omitempty"`
	Handling   model.ReservationHandling `json:"handling,omitempty"`

	// ReservationID may carry a caller-supplied id; a fresh one is
	// generated when empty.
	ReservationID model.ReservationID `json:"reservation_id,omitempty"`

	Timestamp  time.Time     `json:"timestamp"`
	TrackingID string        `json:"tracking_id"`
	Timeout    time.Duration `json:"timeout,omitempty"`
}

// ReserveResult is the outcome of a reservation attempt.
type ReserveResult struct {
	Code        model.ResultCode   `json:"code"`
	Reservation *model.Reservation `json:"reservation,omitempty"`
	Message     string             `json:"message,omitempty"`
}

// RemoteStartRequest asks to start a charging session.
type RemoteStartRequest struct {
	EVSEID    model.EVSEID    `json:"evse_id,omitempty"`
	StationID model.StationID `json:"station_id,omitempty"`
	PoolID    model.PoolID    `json:"pool_id,omitempty"`

	ProviderID model.ProviderID   `json:"provider_id,omitempty"`
	Identity   model.AuthIdentity `json:"identity,omitempty"`
	ProductID  model.ProductID    `json:"product_id,omitempty"`

	// ReservationID links the session to an existing reservation.
	ReservationID model.ReservationID `json:"reservation_id,omitempty"`
	// SessionID may carry a caller-supplied id; a fresh one is generated
	// when empty.
	SessionID model.SessionID `json:"session_id,omitempty"`

	Timestamp  time.Time     `json:"timestamp"`
	TrackingID string        `json:"tracking_id"`
	Timeout    time.Duration `json:"timeout,omitempty"`
}

// RemoteStartResult is the outcome of a session start attempt.
type RemoteStartResult struct {
	Code    model.ResultCode       `json:"code"`
	Session *model.ChargingSession `json:"session,omitempty"`
	Message string                 `json:"message,omitempty"`
}

// RemoteStopRequest asks to terminate a charging session.
type RemoteStopRequest struct {
	SessionID  model.SessionID    `json:"session_id"`
	ProviderID model.ProviderID   `json:"provider_id,omitempty"`
	Identity   model.AuthIdentity `json:"identity,omitempty"`

	Timestamp  time.Time     `json:"timestamp"`
	TrackingID string        `json:"tracking_id"`
	Timeout    time.Duration `json:"timeout,omitempty"`
}

// RemoteStopResult is the outcome of a session stop attempt. On success
// it carries the terminated session and, when available, its CDR.
type RemoteStopResult struct {
	Code    model.ResultCode          `json:"code"`
	Session *model.ChargingSession    `json:"session,omitempty"`
	CDR     *model.ChargeDetailRecord `json:"cdr,omitempty"`
	Message string                    `json:"message,omitempty"`
}

// CancelReservationRequest asks to release a reservation.
type CancelReservationRequest struct {
	ReservationID model.ReservationID `json:"reservation_id"`
	Reason        model.CancelReason  `json:"reason,omitempty"`

	Timestamp  time.Time     `json:"timestamp"`
	TrackingID string        `json:"tracking_id"`
	Timeout    time.Duration `json:"timeout,omitempty"`
}

// CancelReservationResult is the outcome of a cancellation.
type CancelReservationResult struct {
	Code        model.ResultCode   `json:"code"`
	Reservation *model.Reservation `json:"reservation,omitempty"`
	Message     string             `json:"message,omitempty"`
}

// RemoteOperator is the roaming-partner integration that may fulfill a
// command instead of local hardware. A nil result with a nil error is
// treated by the dispatcher as "no answer" and triggers local handling.
// The context and the request's Timeout are passed through untouched;
// enforcing them is the transport's concern.
type RemoteOperator interface {
	Reserve(ctx context.Context, req ReserveRequest) (*ReserveResult, error)
	RemoteStart(ctx context.Context, req RemoteStartRequest) (*RemoteStartResult, error)
	RemoteStop(ctx context.Context, req RemoteStopRequest) (*RemoteStopResult, error)
	CancelReservation(ctx context.Context, req CancelReservationRequest) (*CancelReservationResult, error)
}
