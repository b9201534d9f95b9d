package hierarchy

import (
	"fmt"
	"sync"
	"time"

	"github.com/voltmesh/cso/core/model"
	"github.com/voltmesh/cso/core/status"
)

// Station owns a set of connectors. Children are unique by id; the
// insertion order drives default enumeration.
type Station struct {
	mu         sync.RWMutex
	id         model.StationID
	pool       *Pool
	cfg        Config
	connectors map[model.EVSEID]*Connector
	order      []model.EVSEID
	hooks      []Hook[*Connector]

	adminStatus *status.Schedule[model.AdminStatus]
	opStatus    *status.Schedule[model.StationStatus]
}

func newStation(id model.StationID, p *Pool, cfg Config) *Station {
	return &Station{
		id:          id,
		pool:        p,
		cfg:         cfg,
		connectors:  make(map[model.EVSEID]*Connector),
		adminStatus: status.NewSchedule(cfg.MaxAdminStatusListSize, model.AdminOperational, cfg.policy()),
		opStatus:    status.NewSchedule(cfg.MaxStatusListSize, model.StationUnknown, cfg.policy()),
	}
}

// ID returns the station identifier.
func (s *Station) ID() model.StationID { return s.id }

// Pool returns the owning pool.
func (s *Station) Pool() *Pool { return s.pool }

// OnConnectorAdmission registers a two-phase admission hook consulted by
// CreateConnector.
func (s *Station) OnConnectorAdmission(h Hook[*Connector]) {
	s.mu.Lock()
	s.hooks = append(s.hooks, h)
	s.mu.Unlock()
}

// CreateConnector adds a new connector to the station. The connector is
// owned exclusively by the station and destroyed on removal.
func (s *Station) CreateConnector(id model.EVSEID, maxPowerKW float64) (*Connector, error) {
	s.mu.RLock()
	hooks := append([]Hook[*Connector](nil), s.hooks...)
	s.mu.RUnlock()

	c := newConnector(id, s, maxPowerKW, s.cfg)
	if !beforeAll(hooks, c) {
		return nil, ErrVetoed
	}
	s.mu.Lock()
	if _, ok := s.connectors[id]; ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("connector %s: %w", id, ErrDuplicateID)
	}
	s.connectors[id] = c
	s.order = append(s.order, id)
	s.mu.Unlock()
	afterAll(hooks, c)
	return c, nil
}

// RemoveConnector destroys the connector with the given id and reports
// whether it existed.
func (s *Station) RemoveConnector(id model.EVSEID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.connectors[id]; !ok {
		return false
	}
	delete(s.connectors, id)
	for i, o := range s.order {
		if o == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Connector returns the direct child with the given id.
func (s *Station) Connector(id model.EVSEID) (*Connector, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.connectors[id]
	return c, ok
}

// EVSEs returns the connectors of the station in insertion order,
// optionally filtered. The slice is computed fresh on every call.
func (s *Station) EVSEs(filters ...func(*Connector) bool) []*Connector {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Connector, 0, len(s.order))
next:
	for _, id := range s.order {
		c := s.connectors[id]
		for _, f := range filters {
			if !f(c) {
				continue next
			}
		}
		out = append(out, c)
	}
	return out
}

// Status returns the current dynamic status of the station.
func (s *Station) Status() model.StationStatus {
	return s.opStatus.Current().Value
}

// AdminStatus returns the current administrative status of the station.
func (s *Station) AdminStatus() model.AdminStatus {
	return s.adminStatus.Current().Value
}

// SetStatus records a new dynamic status stamped now.
func (s *Station) SetStatus(v model.StationStatus) {
	s.SetStatusAt(v, time.Now())
}

// SetStatusAt records a new dynamic status with the given timestamp.
func (s *Station) SetStatusAt(v model.StationStatus, ts time.Time) {
	old := s.opStatus.Current().Value
	s.opStatus.InsertAt(v, ts)
	if old != v {
		s.forwardChange(PropertyChange{
			EntityID: string(s.id), Property: "status", Old: old, New: v, Timestamp: ts,
		})
	}
}

// SetAdminStatus records a new administrative status stamped now.
func (s *Station) SetAdminStatus(v model.AdminStatus) {
	old := s.adminStatus.Current().Value
	now := time.Now()
	s.adminStatus.InsertAt(v, now)
	if old != v {
		s.forwardChange(PropertyChange{
			EntityID: string(s.id), Property: "admin_status", Old: old, New: v, Timestamp: now,
		})
	}
}

// AdminStatusHistory returns the retained admin status history, newest first.
func (s *Station) AdminStatusHistory() []status.Timestamped[model.AdminStatus] {
	return s.adminStatus.History()
}

func (s *Station) forwardChange(ch PropertyChange) {
	if s.pool != nil {
		s.pool.forwardChange(ch)
	}
}
