package hierarchy

import (
	"fmt"
	"sync"

	"github.com/voltmesh/cso/core/model"
	"github.com/voltmesh/cso/core/status"
)

// Operator is the root of the hierarchy. It owns pools and re-emits
// property changes forwarded up from its descendants to the registered
// listeners.
type Operator struct {
	mu    sync.RWMutex
	id    model.OperatorID
	name  string
	cfg   Config
	pools map[model.PoolID]*Pool
	order []model.PoolID
	hooks []Hook[*Pool]

	adminStatus *status.Schedule[model.AdminStatus]
	opStatus    *status.Schedule[model.OperatorStatus]

	listeners []PropertyListener
}

// NewOperator creates the hierarchy root.
func NewOperator(id model.OperatorID, name string, cfg Config) *Operator {
	cfg.SetDefaults()
	return &Operator{
		id:          id,
		name:        name,
		cfg:         cfg,
		pools:       make(map[model.PoolID]*Pool),
		adminStatus: status.NewSchedule(cfg.MaxAdminStatusListSize, model.AdminOperational, cfg.policy()),
		opStatus:    status.NewSchedule(cfg.MaxStatusListSize, model.OperatorUnknown, cfg.policy()),
	}
}

// ID returns the operator identifier.
func (o *Operator) ID() model.OperatorID { return o.id }

// Name returns the display name of the operator.
func (o *Operator) Name() string { return o.name }

// OnPoolAdmission registers a two-phase admission hook consulted by
// CreatePool.
func (o *Operator) OnPoolAdmission(h Hook[*Pool]) {
	o.mu.Lock()
	o.hooks = append(o.hooks, h)
	o.mu.Unlock()
}

// OnPropertyChange registers a listener for property changes forwarded up
// from any descendant. A panicking listener is recovered; observability
// must not be able to break a status setter.
func (o *Operator) OnPropertyChange(l PropertyListener) {
	o.mu.Lock()
	o.listeners = append(o.listeners, l)
	o.mu.Unlock()
}

// CreatePool adds a new pool to the operator.
func (o *Operator) CreatePool(id model.PoolID) (*Pool, error) {
	o.mu.RLock()
	hooks := append([]Hook[*Pool](nil), o.hooks...)
	o.mu.RUnlock()

	p := newPool(id, o, o.cfg)
	if !beforeAll(hooks, p) {
		return nil, ErrVetoed
	}
	o.mu.Lock()
	if _, ok := o.pools[id]; ok {
		o.mu.Unlock()
		return nil, fmt.Errorf("pool %s: %w", id, ErrDuplicateID)
	}
	o.pools[id] = p
	o.order = append(o.order, id)
	o.mu.Unlock()
	afterAll(hooks, p)
	return p, nil
}

// RemovePool destroys the pool with the given id together with all its
// descendants and reports whether it existed.
func (o *Operator) RemovePool(id model.PoolID) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.pools[id]; !ok {
		return false
	}
	delete(o.pools, id)
	for i, p := range o.order {
		if p == id {
			o.order = append(o.order[:i], o.order[i+1:]...)
			break
		}
	}
	return true
}

// Pool returns the direct child with the given id.
func (o *Operator) Pool(id model.PoolID) (*Pool, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	p, ok := o.pools[id]
	return p, ok
}

// Pools returns the pools of the operator in insertion order.
func (o *Operator) Pools() []*Pool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]*Pool, 0, len(o.order))
	for _, id := range o.order {
		out = append(out, o.pools[id])
	}
	return out
}

// Stations flattens all stations below the operator, optionally filtered.
func (o *Operator) Stations(filters ...func(*Station) bool) []*Station {
	var out []*Station
	for _, p := range o.Pools() {
	next:
		for _, st := range p.Stations() {
			for _, f := range filters {
				if !f(st) {
					continue next
				}
			}
			out = append(out, st)
		}
	}
	return out
}

// EVSEs flattens all connectors below the operator, optionally filtered.
// The view is computed fresh on every call, never cached.
func (o *Operator) EVSEs(filters ...func(*Connector) bool) []*Connector {
	var out []*Connector
	for _, p := range o.Pools() {
		out = append(out, p.EVSEs(filters...)...)
	}
	return out
}

// EVSEIDs returns the ids of all connectors below the operator.
func (o *Operator) EVSEIDs() []model.EVSEID {
	conns := o.EVSEs()
	out := make([]model.EVSEID, 0, len(conns))
	for _, c := range conns {
		out = append(out, c.ID())
	}
	return out
}

// PoolForEVSE returns the pool owning the connector with the given id.
func (o *Operator) PoolForEVSE(id model.EVSEID) (*Pool, bool) {
	for _, p := range o.Pools() {
		if p.OwnsEVSE(id) {
			return p, true
		}
	}
	return nil, false
}

// PoolForStation returns the pool owning the station with the given id.
func (o *Operator) PoolForStation(id model.StationID) (*Pool, bool) {
	for _, p := range o.Pools() {
		if p.OwnsStation(id) {
			return p, true
		}
	}
	return nil, false
}

// Connector walks the hierarchy for the connector with the given id.
func (o *Operator) Connector(id model.EVSEID) (*Connector, bool) {
	for _, p := range o.Pools() {
		if c, ok := p.Connector(id); ok {
			return c, true
		}
	}
	return nil, false
}

// StatusOf returns the current dynamic status of the connector with the
// given id.
func (o *Operator) StatusOf(id model.EVSEID) (model.ConnectorStatus, bool) {
	c, ok := o.Connector(id)
	if !ok {
		return model.ConnectorUnknown, false
	}
	return c.Status(), true
}

// AdminStatusOf returns the current administrative status of the
// connector with the given id.
func (o *Operator) AdminStatusOf(id model.EVSEID) (model.AdminStatus, bool) {
	c, ok := o.Connector(id)
	if !ok {
		return "", false
	}
	return c.AdminStatus(), true
}

// Status returns the current dynamic status of the operator.
func (o *Operator) Status() model.OperatorStatus {
	return o.opStatus.Current().Value
}

// AdminStatus returns the current administrative status of the operator.
func (o *Operator) AdminStatus() model.AdminStatus {
	return o.adminStatus.Current().Value
}

// SetStatus records a new dynamic status stamped now.
func (o *Operator) SetStatus(v model.OperatorStatus) {
	o.opStatus.Insert(v)
}

// SetAdminStatus records a new administrative status stamped now.
func (o *Operator) SetAdminStatus(v model.AdminStatus) {
	o.adminStatus.Insert(v)
}

// notifyChange re-emits a change forwarded up from a descendant.
func (o *Operator) notifyChange(ch PropertyChange) {
	o.mu.RLock()
	listeners := append([]PropertyListener(nil), o.listeners...)
	o.mu.RUnlock()
	for _, l := range listeners {
		safeNotify(l, ch)
	}
}

func safeNotify(l PropertyListener, ch PropertyChange) {
	defer func() {
		_ = recover()
	}()
	l(ch)
}
