package hierarchy

import (
	"testing"
	"time"

	"github.com/voltmesh/cso/core/model"
)

func buildOperator(t *testing.T) (*Operator, *Pool, *Station, *Connector, *Connector) {
	t.Helper()
	op := NewOperator("op1", "Test Operator", Config{})
	pool, err := op.CreatePool("pool1")
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	st, err := pool.CreateStation("st1")
	if err != nil {
		t.Fatalf("create station: %v", err)
	}
	c1, err := st.CreateConnector("evse1", 22)
	if err != nil {
		t.Fatalf("create connector: %v", err)
	}
	c2, err := st.CreateConnector("evse2", 50)
	if err != nil {
		t.Fatalf("create connector: %v", err)
	}
	c1.SetStatus(model.ConnectorAvailable)
	c2.SetStatus(model.ConnectorAvailable)
	return op, pool, st, c1, c2
}

func TestDuplicateChildID(t *testing.T) {
	op := NewOperator("op1", "", Config{})
	if _, err := op.CreatePool("p"); err != nil {
		t.Fatalf("first create: %v", err)
	}
	if _, err := op.CreatePool("p"); err == nil {
		t.Fatal("duplicate pool id accepted")
	}
}

func TestFlattenedViews(t *testing.T) {
	op, pool, st, _, _ := buildOperator(t)
	st2, _ := pool.CreateStation("st2")
	if _, err := st2.CreateConnector("evse3", 11); err != nil {
		t.Fatalf("create: %v", err)
	}

	if got := len(op.EVSEs()); got != 3 {
		t.Fatalf("operator EVSEs = %d", got)
	}
	if got := len(pool.EVSEs()); got != 3 {
		t.Fatalf("pool EVSEs = %d", got)
	}
	if got := len(st.EVSEs()); got != 2 {
		t.Fatalf("station EVSEs = %d", got)
	}
	if got := len(op.Stations()); got != 2 {
		t.Fatalf("operator stations = %d", got)
	}

	available := op.EVSEs(func(c *Connector) bool { return c.Status() == model.ConnectorAvailable })
	if len(available) != 2 {
		t.Fatalf("filtered EVSEs = %d", len(available))
	}
}

func TestViewsNotCached(t *testing.T) {
	op, _, st, _, _ := buildOperator(t)
	before := len(op.EVSEs())
	if _, err := st.CreateConnector("evse9", 22); err != nil {
		t.Fatalf("create: %v", err)
	}
	if got := len(op.EVSEs()); got != before+1 {
		t.Fatalf("view stale: %d want %d", got, before+1)
	}
	st.RemoveConnector("evse9")
	if got := len(op.EVSEs()); got != before {
		t.Fatalf("view stale after remove: %d", got)
	}
}

func TestStatusLookup(t *testing.T) {
	op, _, _, c1, _ := buildOperator(t)
	c1.SetStatus(model.ConnectorCharging)
	s, ok := op.StatusOf("evse1")
	if !ok || s != model.ConnectorCharging {
		t.Fatalf("StatusOf = %q %v", s, ok)
	}
	a, ok := op.AdminStatusOf("evse1")
	if !ok || a != model.AdminOperational {
		t.Fatalf("AdminStatusOf = %q %v", a, ok)
	}
	if _, ok := op.StatusOf("nope"); ok {
		t.Fatal("unknown id resolved")
	}
}

func TestPoolRouting(t *testing.T) {
	op, pool, _, _, _ := buildOperator(t)
	p, ok := op.PoolForEVSE("evse2")
	if !ok || p != pool {
		t.Fatalf("PoolForEVSE failed")
	}
	p, ok = op.PoolForStation("st1")
	if !ok || p != pool {
		t.Fatalf("PoolForStation failed")
	}
	if _, ok := op.PoolForEVSE("ghost"); ok {
		t.Fatal("ghost EVSE resolved")
	}
}

func TestAdmissionHooksVeto(t *testing.T) {
	op, pool, st, _, _ := buildOperator(t)
	var admitted []model.EVSEID
	st.OnConnectorAdmission(Hook[*Connector]{
		Before: func(c *Connector) bool { return c.MaxPowerKW() <= 100 },
		After:  func(c *Connector) { admitted = append(admitted, c.ID()) },
	})
	if _, err := st.CreateConnector("hpc1", 350); err != ErrVetoed {
		t.Fatalf("expected veto, got %v", err)
	}
	if _, ok := st.Connector("hpc1"); ok {
		t.Fatal("vetoed connector added")
	}
	if _, err := st.CreateConnector("ac1", 22); err != nil {
		t.Fatalf("allowed connector rejected: %v", err)
	}
	if len(admitted) != 1 || admitted[0] != "ac1" {
		t.Fatalf("after hook calls = %v", admitted)
	}

	pool.OnStationAdmission(Hook[*Station]{Before: func(*Station) bool { return false }})
	if _, err := pool.CreateStation("blocked"); err != ErrVetoed {
		t.Fatalf("expected station veto, got %v", err)
	}
	op.OnPoolAdmission(Hook[*Pool]{Before: func(*Pool) bool { return false }})
	if _, err := op.CreatePool("blocked"); err != ErrVetoed {
		t.Fatalf("expected pool veto, got %v", err)
	}
}

func TestPropertyChangeForwarding(t *testing.T) {
	op, _, _, c1, _ := buildOperator(t)
	var got []PropertyChange
	op.OnPropertyChange(func(ch PropertyChange) { got = append(got, ch) })
	c1.SetStatus(model.ConnectorCharging)
	if len(got) != 1 {
		t.Fatalf("changes = %d", len(got))
	}
	ch := got[0]
	if ch.EntityID != "evse1" || ch.Property != "status" {
		t.Fatalf("change = %#v", ch)
	}
	if ch.Old != model.ConnectorAvailable || ch.New != model.ConnectorCharging {
		t.Fatalf("payload = %#v", ch)
	}

	// Same value again: no forwarding.
	c1.SetStatus(model.ConnectorCharging)
	if len(got) != 1 {
		t.Fatalf("duplicate status forwarded: %d", len(got))
	}
}

func TestPropertyListenerPanicRecovered(t *testing.T) {
	_, _, _, c1, _ := buildOperator(t)
	op := c1.Station().Pool().Operator()
	op.OnPropertyChange(func(PropertyChange) { panic("listener boom") })
	c1.SetStatus(model.ConnectorFaulted) // must not panic
	if c1.Status() != model.ConnectorFaulted {
		t.Fatal("status not applied")
	}
}

func TestConnectorAdminStatusHistory(t *testing.T) {
	_, _, _, c1, _ := buildOperator(t)
	t0 := time.Now().Add(time.Second)
	c1.SetAdminStatusAt(model.AdminOutOfService, t0)
	c1.SetAdminStatusAt(model.AdminInternalUse, t0.Add(time.Second))
	c1.SetAdminStatusAt(model.AdminOperational, t0.Add(2*time.Second))
	if c1.AdminStatus() != model.AdminOperational {
		t.Fatalf("admin = %q", c1.AdminStatus())
	}
	hist := c1.AdminStatusHistory()
	if hist[0].Value != model.AdminOperational || hist[1].Value != model.AdminInternalUse || hist[2].Value != model.AdminOutOfService {
		t.Fatalf("history = %v", hist)
	}
}
