package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/voltmesh/cso/core/hierarchy"
	"github.com/voltmesh/cso/core/metrics"
	"github.com/voltmesh/cso/core/model"
	"github.com/voltmesh/cso/core/roaming"
	"github.com/voltmesh/cso/infra/logger"
)

type fakeRemote struct {
	reserveCalls int
	startCalls   int
	stopCalls    int

	reserveFn func(roaming.ReserveRequest) (*roaming.ReserveResult, error)
	startFn   func(roaming.RemoteStartRequest) (*roaming.RemoteStartResult, error)
	stopFn    func(roaming.RemoteStopRequest) (*roaming.RemoteStopResult, error)
}

func (f *fakeRemote) Reserve(_ context.Context, req roaming.ReserveRequest) (*roaming.ReserveResult, error) {
	f.reserveCalls++
	if f.reserveFn == nil {
		return nil, nil
	}
	return f.reserveFn(req)
}

func (f *fakeRemote) RemoteStart(_ context.Context, req roaming.RemoteStartRequest) (*roaming.RemoteStartResult, error) {
	f.startCalls++
	if f.startFn == nil {
		return nil, nil
	}
	return f.startFn(req)
}

func (f *fakeRemote) RemoteStop(_ context.Context, req roaming.RemoteStopRequest) (*roaming.RemoteStopResult, error) {
	f.stopCalls++
	if f.stopFn == nil {
		return nil, nil
	}
	return f.stopFn(req)
}

func (f *fakeRemote) CancelReservation(_ context.Context, _ roaming.CancelReservationRequest) (*roaming.CancelReservationResult, error) {
	return nil, nil
}

// buildTopology creates an operator with two pools so routing and
// scanning behavior can be told apart through CommandCalls.
func buildTopology(t *testing.T) (*hierarchy.Operator, *hierarchy.Pool, *hierarchy.Pool) {
	t.Helper()
	op := hierarchy.NewOperator("op1", "Test Operator", hierarchy.Config{})
	p1, err := op.CreatePool("pool1")
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	p2, err := op.CreatePool("pool2")
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	st1, err := p1.CreateStation("st1")
	if err != nil {
		t.Fatalf("create station: %v", err)
	}
	st2, err := p2.CreateStation("st2")
	if err != nil {
		t.Fatalf("create station: %v", err)
	}
	for _, c := range []struct {
		st *hierarchy.Station
		id model.EVSEID
	}{{st1, "evse1"}, {st1, "evse2"}, {st2, "evse3"}} {
		conn, err := c.st.CreateConnector(c.id, 22)
		if err != nil {
			t.Fatalf("create connector: %v", err)
		}
		conn.SetStatus(model.ConnectorAvailable)
	}
	return op, p1, p2
}

func newDispatcher(t *testing.T, op *hierarchy.Operator, remote roaming.RemoteOperator, cfg Config) *Dispatcher {
	t.Helper()
	d, err := New(op, remote, nil, metrics.NopSink{}, logger.NopLogger{}, cfg)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	return d
}

func TestReserveEVSELocal(t *testing.T) {
	op, p1, _ := buildTopology(t)
	d := newDispatcher(t, op, nil, Config{})

	res := d.ReserveEVSE(context.Background(), roaming.ReserveRequest{EVSEID: "evse1"})
	if res.Code != model.ResultSuccess {
		t.Fatalf("code = %v, want success", res.Code)
	}
	if res.Reservation == nil || res.Reservation.EVSEID != "evse1" {
		t.Fatalf("reservation = %+v", res.Reservation)
	}
	if pool, ok := d.Reservations().TryGet(res.Reservation.ID); !ok || pool != p1 {
		t.Fatal("reservation not routed to granting pool")
	}
	if st, _ := op.StatusOf("evse1"); st != model.ConnectorReserved {
		t.Fatalf("evse1 status = %v, want reserved", st)
	}
}

func TestReserveUnknownEVSE(t *testing.T) {
	op, _, _ := buildTopology(t)
	d := newDispatcher(t, op, nil, Config{})

	res := d.ReserveEVSE(context.Background(), roaming.ReserveRequest{EVSEID: "nope"})
	if res.Code != model.ResultUnknownEVSE {
		t.Fatalf("code = %v, want unknown evse", res.Code)
	}
	if d.Reservations().Len() != 0 {
		t.Fatal("failed reserve left a routing entry behind")
	}
}

func TestRemoteSuccessSuppressesLocal(t *testing.T) {
	op, p1, p2 := buildTopology(t)
	remote := &fakeRemote{
		reserveFn: func(req roaming.ReserveRequest) (*roaming.ReserveResult, error) {
			return &roaming.ReserveResult{
				Code: model.ResultSuccess,
				Reservation: &model.Reservation{
					ID:     "res-remote",
					EVSEID: req.EVSEID,
				},
			}, nil
		},
	}
	d := newDispatcher(t, op, remote, Config{})

	res := d.ReserveEVSE(context.Background(), roaming.ReserveRequest{EVSEID: "evse1"})
	if res.Code != model.ResultSuccess {
		t.Fatalf("code = %v", res.Code)
	}
	if remote.reserveCalls != 1 {
		t.Fatalf("remote calls = %d, want 1", remote.reserveCalls)
	}
	if p1.CommandCalls() != 0 || p2.CommandCalls() != 0 {
		t.Fatal("remote success still reached a local delegate")
	}
	if pool, ok := d.Reservations().TryGet("res-remote"); !ok || pool != p1 {
		t.Fatal("remote grant on a local evse not routed")
	}
}

func TestRemoteUnknownTargetFallsBackLocally(t *testing.T) {
	for _, tc := range []struct {
		name string
		fn   func(roaming.ReserveRequest) (*roaming.ReserveResult, error)
	}{
		{"unknown evse", func(roaming.ReserveRequest) (*roaming.ReserveResult, error) {
			return &roaming.ReserveResult{Code: model.ResultUnknownEVSE}, nil
		}},
		{"error code", func(roaming.ReserveRequest) (*roaming.ReserveResult, error) {
			return &roaming.ReserveResult{Code: model.ResultError}, nil
		}},
		{"no answer", func(roaming.ReserveRequest) (*roaming.ReserveResult, error) {
			return nil, nil
		}},
		{"transport error", func(roaming.ReserveRequest) (*roaming.ReserveResult, error) {
			return nil, errors.New("broker down")
		}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			op, p1, p2 := buildTopology(t)
			remote := &fakeRemote{reserveFn: tc.fn}
			d := newDispatcher(t, op, remote, Config{})

			res := d.ReserveEVSE(context.Background(), roaming.ReserveRequest{EVSEID: "evse1"})
			if res.Code != model.ResultSuccess {
				t.Fatalf("code = %v, want local success", res.Code)
			}
			if p1.CommandCalls() != 1 {
				t.Fatalf("owning pool calls = %d, want exactly 1", p1.CommandCalls())
			}
			if p2.CommandCalls() != 0 {
				t.Fatal("fallback scanned an unrelated pool")
			}
		})
	}
}

func TestRemoteDomainFailureIsFinal(t *testing.T) {
	op, p1, _ := buildTopology(t)
	remote := &fakeRemote{
		reserveFn: func(roaming.ReserveRequest) (*roaming.ReserveResult, error) {
			return &roaming.ReserveResult{Code: model.ResultInvalidOrUnknownID}, nil
		},
	}
	d := newDispatcher(t, op, remote, Config{})

	res := d.ReserveEVSE(context.Background(), roaming.ReserveRequest{EVSEID: "evse1"})
	if res.Code != model.ResultInvalidOrUnknownID {
		t.Fatalf("code = %v, want remote verdict kept", res.Code)
	}
	if p1.CommandCalls() != 0 {
		t.Fatal("final remote verdict still reached a local delegate")
	}
}

func TestLocalOnlyEVSESkipsRemote(t *testing.T) {
	op, p1, _ := buildTopology(t)
	remote := &fakeRemote{}
	d := newDispatcher(t, op, remote, Config{LocalOnlyEVSEs: []string{"evse1"}})

	res := d.ReserveEVSE(context.Background(), roaming.ReserveRequest{EVSEID: "evse1"})
	if res.Code != model.ResultSuccess {
		t.Fatalf("code = %v", res.Code)
	}
	if remote.reserveCalls != 0 {
		t.Fatal("excluded target was offered to the remote operator")
	}
	if p1.CommandCalls() != 1 {
		t.Fatalf("pool calls = %d, want 1", p1.CommandCalls())
	}

	// The exclusion binds to its own granularity only.
	if _, err := New(op, remote, nil, nil, logger.NopLogger{}, Config{LocalOnlyEVSEs: []string{"st1"}}); err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
}

func TestCancelUsesRegistryRoute(t *testing.T) {
	op, p1, p2 := buildTopology(t)
	d := newDispatcher(t, op, nil, Config{})

	res := d.ReserveEVSE(context.Background(), roaming.ReserveRequest{EVSEID: "evse1"})
	if res.Code != model.ResultSuccess {
		t.Fatalf("reserve: %v", res.Code)
	}
	before1, before2 := p1.CommandCalls(), p2.CommandCalls()

	cres := d.CancelReservation(context.Background(), roaming.CancelReservationRequest{ReservationID: res.Reservation.ID})
	if cres.Code != model.ResultSuccess {
		t.Fatalf("cancel: %v", cres.Code)
	}
	if p1.CommandCalls() != before1+1 {
		t.Fatalf("owning pool calls = %d, want %d", p1.CommandCalls(), before1+1)
	}
	if p2.CommandCalls() != before2 {
		t.Fatal("direct route still scanned another pool")
	}
	if _, ok := d.Reservations().TryGet(res.Reservation.ID); ok {
		t.Fatal("cancelled reservation still routed")
	}

	again := d.CancelReservation(context.Background(), roaming.CancelReservationRequest{ReservationID: res.Reservation.ID})
	if again.Code != model.ResultInvalidOrUnknownID {
		t.Fatalf("second cancel = %v, want invalid or unknown id", again.Code)
	}
}

func TestCancelScansWithoutRoute(t *testing.T) {
	op, p1, p2 := buildTopology(t)
	d := newDispatcher(t, op, nil, Config{})

	// Reserve directly on the pool, bypassing the dispatcher registry.
	res := p2.Reserve(context.Background(), roaming.ReserveRequest{EVSEID: "evse3"})
	if res.Code != model.ResultSuccess {
		t.Fatalf("pool reserve: %v", res.Code)
	}
	before1 := p1.CommandCalls()

	cres := d.CancelReservation(context.Background(), roaming.CancelReservationRequest{ReservationID: res.Reservation.ID})
	if cres.Code != model.ResultSuccess {
		t.Fatalf("cancel: %v", cres.Code)
	}
	if p1.CommandCalls() != before1+1 {
		t.Fatal("scan should have asked pool1 once before reaching pool2")
	}
}

func TestRemoteStartConsumesRoutedReservation(t *testing.T) {
	op, p1, p2 := buildTopology(t)
	d := newDispatcher(t, op, nil, Config{})

	res := d.ReserveEVSE(context.Background(), roaming.ReserveRequest{EVSEID: "evse1"})
	if res.Code != model.ResultSuccess {
		t.Fatalf("reserve: %v", res.Code)
	}
	before2 := p2.CommandCalls()

	sres := d.RemoteStartEVSE(context.Background(), roaming.RemoteStartRequest{ReservationID: res.Reservation.ID})
	if sres.Code != model.ResultSuccess {
		t.Fatalf("start: %v", sres.Code)
	}
	if sres.Session.EVSEID != "evse1" {
		t.Fatalf("session landed on %s, want evse1", sres.Session.EVSEID)
	}
	if sres.Session.ReservationID != res.Reservation.ID {
		t.Fatal("session not linked to its reservation")
	}
	if p2.CommandCalls() != before2 {
		t.Fatal("routed start still scanned another pool")
	}
	if _, ok := d.Reservations().TryGet(res.Reservation.ID); ok {
		t.Fatal("consumed reservation still routed")
	}
	if pool, ok := d.Sessions().TryGet(sres.Session.ID); !ok || pool != p1 {
		t.Fatal("session not routed to its pool")
	}
}

func TestRemoteStartScansOnStaleRoute(t *testing.T) {
	op, p1, p2 := buildTopology(t)
	d := newDispatcher(t, op, nil, Config{})

	// Reserve directly on the pool, then poison the route so the registry
	// points at a pool that never saw the reservation.
	res := p1.Reserve(context.Background(), roaming.ReserveRequest{EVSEID: "evse1"})
	if res.Code != model.ResultSuccess {
		t.Fatalf("pool reserve: %v", res.Code)
	}
	if !d.Reservations().TryAdd(res.Reservation.ID, p2) {
		t.Fatal("route entry not added")
	}

	sres := d.RemoteStartEVSE(context.Background(), roaming.RemoteStartRequest{ReservationID: res.Reservation.ID})
	if sres.Code != model.ResultSuccess {
		t.Fatalf("start = %v, want scan to recover from the stale route", sres.Code)
	}
	if sres.Session.EVSEID != "evse1" {
		t.Fatalf("session landed on %s, want evse1", sres.Session.EVSEID)
	}
	if _, ok := d.Reservations().TryGet(res.Reservation.ID); ok {
		t.Fatal("stale route still present after the start")
	}
}

func TestDisableAuthenticationStripsRemoteIdentity(t *testing.T) {
	op, _, _ := buildTopology(t)
	var remoteIdentity model.AuthIdentity
	remote := &fakeRemote{
		reserveFn: func(req roaming.ReserveRequest) (*roaming.ReserveResult, error) {
			remoteIdentity = req.Identity
			return &roaming.ReserveResult{Code: model.ResultUnknownEVSE}, nil
		},
	}
	d := newDispatcher(t, op, remote, Config{DisableAuthentication: true})

	res := d.ReserveEVSE(context.Background(), roaming.ReserveRequest{EVSEID: "evse1", Identity: "driver-1"})
	if res.Code != model.ResultSuccess {
		t.Fatalf("code = %v", res.Code)
	}
	if remoteIdentity != "" {
		t.Fatalf("remote saw identity %q, want it stripped", remoteIdentity)
	}
	if res.Reservation.Identity != "driver-1" {
		t.Fatalf("local reservation identity = %q, want driver-1", res.Reservation.Identity)
	}

	// Default keeps the identity on the wire.
	op2, _, _ := buildTopology(t)
	d2 := newDispatcher(t, op2, remote, Config{})
	d2.ReserveEVSE(context.Background(), roaming.ReserveRequest{EVSEID: "evse1", Identity: "driver-1"})
	if remoteIdentity != "driver-1" {
		t.Fatalf("remote saw identity %q, want driver-1", remoteIdentity)
	}
}

func TestRemoteStopProducesCDR(t *testing.T) {
	op, _, _ := buildTopology(t)
	d := newDispatcher(t, op, nil, Config{})

	stream := d.CDRStream()
	sres := d.RemoteStartEVSE(context.Background(), roaming.RemoteStartRequest{EVSEID: "evse2"})
	if sres.Code != model.ResultSuccess {
		t.Fatalf("start: %v", sres.Code)
	}
	stop := d.RemoteStop(context.Background(), roaming.RemoteStopRequest{SessionID: sres.Session.ID})
	if stop.Code != model.ResultSuccess {
		t.Fatalf("stop: %v", stop.Code)
	}
	if stop.CDR == nil || stop.CDR.SessionID != sres.Session.ID {
		t.Fatalf("cdr = %+v", stop.CDR)
	}
	if _, ok := d.Sessions().TryGet(sres.Session.ID); ok {
		t.Fatal("stopped session still routed")
	}
	if st, _ := op.StatusOf("evse2"); st != model.ConnectorAvailable {
		t.Fatalf("evse2 status = %v, want available", st)
	}
	select {
	case cdr := <-stream:
		if cdr.SessionID != sres.Session.ID {
			t.Fatalf("streamed cdr for %s", cdr.SessionID)
		}
	default:
		t.Fatal("no cdr on the stream")
	}

	again := d.RemoteStop(context.Background(), roaming.RemoteStopRequest{SessionID: sres.Session.ID})
	if again.Code != model.ResultInvalidOrUnknownID {
		t.Fatalf("second stop = %v, want invalid or unknown id", again.Code)
	}
}

func TestRemoteStopRemoteAnswerWins(t *testing.T) {
	op, p1, p2 := buildTopology(t)
	remote := &fakeRemote{
		stopFn: func(req roaming.RemoteStopRequest) (*roaming.RemoteStopResult, error) {
			return &roaming.RemoteStopResult{
				Code: model.ResultSuccess,
				CDR:  &model.ChargeDetailRecord{ID: "cdr1", SessionID: req.SessionID},
			}, nil
		},
	}
	d := newDispatcher(t, op, remote, Config{})

	stop := d.RemoteStop(context.Background(), roaming.RemoteStopRequest{SessionID: "sess-remote"})
	if stop.Code != model.ResultSuccess {
		t.Fatalf("stop: %v", stop.Code)
	}
	if p1.CommandCalls() != 0 || p2.CommandCalls() != 0 {
		t.Fatal("remote stop answer still reached local pools")
	}
}

func TestStationAndPoolGranularity(t *testing.T) {
	op, _, _ := buildTopology(t)
	d := newDispatcher(t, op, nil, Config{})

	res := d.ReserveStation(context.Background(), roaming.ReserveRequest{StationID: "st1"})
	if res.Code != model.ResultSuccess {
		t.Fatalf("station reserve: %v", res.Code)
	}
	pres := d.ReservePool(context.Background(), roaming.ReserveRequest{PoolID: "pool2"})
	if pres.Code != model.ResultSuccess {
		t.Fatalf("pool reserve: %v", pres.Code)
	}
	if pres.Reservation.EVSEID != "evse3" {
		t.Fatalf("pool reserve landed on %s", pres.Reservation.EVSEID)
	}

	bad := d.ReserveStation(context.Background(), roaming.ReserveRequest{StationID: "nope"})
	if bad.Code != model.ResultUnknownStation {
		t.Fatalf("unknown station = %v", bad.Code)
	}
	badPool := d.ReservePool(context.Background(), roaming.ReserveRequest{PoolID: "nope"})
	if badPool.Code != model.ResultUnknownPool {
		t.Fatalf("unknown pool = %v", badPool.Code)
	}
}

func TestNormalizationFillsMetadata(t *testing.T) {
	op, _, _ := buildTopology(t)
	d := newDispatcher(t, op, nil, Config{RequestTimeoutSeconds: 7})

	req := roaming.ReserveRequest{EVSEID: "evse1"}
	cmd := d.begin("reserve", "evse", "evse1", &req.Timestamp, &req.TrackingID, &req.Timeout)
	if req.Timestamp.IsZero() {
		t.Fatal("timestamp not filled")
	}
	if req.TrackingID == "" || cmd.TrackingID != req.TrackingID {
		t.Fatal("tracking id not filled")
	}
	if req.Timeout.Seconds() != 7 {
		t.Fatalf("timeout = %v, want 7s", req.Timeout)
	}
}
