package hierarchy

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/voltmesh/cso/core/model"
	"github.com/voltmesh/cso/core/status"
)

// Pool owns a set of stations and is the entity that grants reservations
// and admits charging sessions for the connectors below it.
type Pool struct {
	mu       sync.RWMutex
	id       model.PoolID
	operator *Operator
	cfg      Config
	stations map[model.StationID]*Station
	order    []model.StationID
	hooks    []Hook[*Station]

	adminStatus *status.Schedule[model.AdminStatus]
	opStatus    *status.Schedule[model.PoolStatus]

	reservations map[model.ReservationID]*model.Reservation
	sessions     map[model.SessionID]*model.ChargingSession

	// commandCalls counts verb invocations on this pool, used to verify
	// direct-routing behaviour.
	commandCalls atomic.Uint64
}

func newPool(id model.PoolID, op *Operator, cfg Config) *Pool {
	return &Pool{
		id:           id,
		operator:     op,
		cfg:          cfg,
		stations:     make(map[model.StationID]*Station),
		adminStatus:  status.NewSchedule(cfg.MaxAdminStatusListSize, model.AdminOperational, cfg.policy()),
		opStatus:     status.NewSchedule(cfg.MaxStatusListSize, model.PoolUnknown, cfg.policy()),
		reservations: make(map[model.ReservationID]*model.Reservation),
		sessions:     make(map[model.SessionID]*model.ChargingSession),
	}
}

// ID returns the pool identifier.
func (p *Pool) ID() model.PoolID { return p.id }

// Operator returns the owning operator.
func (p *Pool) Operator() *Operator { return p.operator }

// CommandCalls returns the number of verb invocations seen by this pool.
func (p *Pool) CommandCalls() uint64 { return p.commandCalls.Load() }

// OnStationAdmission registers a two-phase admission hook consulted by
// CreateStation.
func (p *Pool) OnStationAdmission(h Hook[*Station]) {
	p.mu.Lock()
	p.hooks = append(p.hooks, h)
	p.mu.Unlock()
}

// CreateStation adds a new station to the pool.
func (p *Pool) CreateStation(id model.StationID) (*Station, error) {
	p.mu.RLock()
	hooks := append([]Hook[*Station](nil), p.hooks...)
	p.mu.RUnlock()

	st := newStation(id, p, p.cfg)
	if !beforeAll(hooks, st) {
		return nil, ErrVetoed
	}
	p.mu.Lock()
	if _, ok := p.stations[id]; ok {
		p.mu.Unlock()
		return nil, fmt.Errorf("station %s: %w", id, ErrDuplicateID)
	}
	p.stations[id] = st
	p.order = append(p.order, id)
	p.mu.Unlock()
	afterAll(hooks, st)
	return st, nil
}

// RemoveStation destroys the station with the given id together with its
// connectors and reports whether it existed.
func (p *Pool) RemoveStation(id model.StationID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.stations[id]; !ok {
		return false
	}
	delete(p.stations, id)
	for i, o := range p.order {
		if o == id {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
	return true
}

// Station returns the direct child with the given id.
func (p *Pool) Station(id model.StationID) (*Station, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	st, ok := p.stations[id]
	return st, ok
}

// Stations returns the stations of the pool in insertion order.
func (p *Pool) Stations() []*Station {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Station, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, p.stations[id])
	}
	return out
}

// EVSEs flattens all connectors below the pool, optionally filtered. The
// view is computed fresh on every call; children mutate concurrently with
// reads.
func (p *Pool) EVSEs(filters ...func(*Connector) bool) []*Connector {
	var out []*Connector
	for _, st := range p.Stations() {
		out = append(out, st.EVSEs(filters...)...)
	}
	return out
}

// Connector walks the stations for the connector with the given id.
func (p *Pool) Connector(id model.EVSEID) (*Connector, bool) {
	for _, st := range p.Stations() {
		if c, ok := st.Connector(id); ok {
			return c, true
		}
	}
	return nil, false
}

// OwnsEVSE reports whether a connector with the given id exists below
// this pool.
func (p *Pool) OwnsEVSE(id model.EVSEID) bool {
	_, ok := p.Connector(id)
	return ok
}

// OwnsStation reports whether a station with the given id exists in this
// pool.
func (p *Pool) OwnsStation(id model.StationID) bool {
	_, ok := p.Station(id)
	return ok
}

// Reservation returns the reservation with the given id, if this pool
// granted it.
func (p *Pool) Reservation(id model.ReservationID) (*model.Reservation, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	r, ok := p.reservations[id]
	return r, ok
}

// Session returns the session with the given id, if this pool admitted it.
func (p *Pool) Session(id model.SessionID) (*model.ChargingSession, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.sessions[id]
	return s, ok
}

// Status returns the current dynamic status of the pool.
func (p *Pool) Status() model.PoolStatus {
	return p.opStatus.Current().Value
}

// AdminStatus returns the current administrative status of the pool.
func (p *Pool) AdminStatus() model.AdminStatus {
	return p.adminStatus.Current().Value
}

// SetStatus records a new dynamic status stamped now.
func (p *Pool) SetStatus(v model.PoolStatus) {
	old := p.opStatus.Current().Value
	now := time.Now()
	p.opStatus.InsertAt(v, now)
	if old != v {
		p.forwardChange(PropertyChange{
			EntityID: string(p.id), Property: "status", Old: old, New: v, Timestamp: now,
		})
	}
}

// SetAdminStatus records a new administrative status stamped now.
func (p *Pool) SetAdminStatus(v model.AdminStatus) {
	old := p.adminStatus.Current().Value
	now := time.Now()
	p.adminStatus.InsertAt(v, now)
	if old != v {
		p.forwardChange(PropertyChange{
			EntityID: string(p.id), Property: "admin_status", Old: old, New: v, Timestamp: now,
		})
	}
}

func (p *Pool) forwardChange(ch PropertyChange) {
	if p.operator != nil {
		p.operator.notifyChange(ch)
	}
}
