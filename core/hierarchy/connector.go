package hierarchy

import (
	"time"

	"github.com/voltmesh/cso/core/model"
	"github.com/voltmesh/cso/core/status"
)

// Connector is a single EVSE, the leaf of the hierarchy. Its schedules
// are mutated only through its own setters; ancestors read them via the
// aggregation queries.
type Connector struct {
	id         model.EVSEID
	station    *Station
	maxPowerKW float64

	adminStatus *status.Schedule[model.AdminStatus]
	opStatus    *status.Schedule[model.ConnectorStatus]
}

func newConnector(id model.EVSEID, st *Station, maxPowerKW float64, cfg Config) *Connector {
	return &Connector{
		id:          id,
		station:     st,
		maxPowerKW:  maxPowerKW,
		adminStatus: status.NewSchedule(cfg.MaxAdminStatusListSize, model.AdminOperational, cfg.policy()),
		opStatus:    status.NewSchedule(cfg.MaxStatusListSize, model.ConnectorUnknown, cfg.policy()),
	}
}

// ID returns the EVSE identifier.
func (c *Connector) ID() model.EVSEID { return c.id }

// Station returns the owning station.
func (c *Connector) Station() *Station { return c.station }

// MaxPowerKW returns the rated power of the connector.
func (c *Connector) MaxPowerKW() float64 { return c.maxPowerKW }

// Status returns the current dynamic status.
func (c *Connector) Status() model.ConnectorStatus {
	return c.opStatus.Current().Value
}

// AdminStatus returns the current administrative status.
func (c *Connector) AdminStatus() model.AdminStatus {
	return c.adminStatus.Current().Value
}

// StatusHistory returns the retained status history, newest first.
func (c *Connector) StatusHistory() []status.Timestamped[model.ConnectorStatus] {
	return c.opStatus.History()
}

// AdminStatusHistory returns the retained admin status history, newest first.
func (c *Connector) AdminStatusHistory() []status.Timestamped[model.AdminStatus] {
	return c.adminStatus.History()
}

// SetStatus records a new dynamic status stamped now.
func (c *Connector) SetStatus(s model.ConnectorStatus) {
	c.SetStatusAt(s, time.Now())
}

// SetStatusAt records a new dynamic status with the given timestamp and
// forwards the change upward when the value differs from the current one.
func (c *Connector) SetStatusAt(s model.ConnectorStatus, ts time.Time) {
	old := c.opStatus.Current().Value
	c.opStatus.InsertAt(s, ts)
	if old != s && c.station != nil {
		c.station.forwardChange(PropertyChange{
			EntityID:  string(c.id),
			Property:  "status",
			Old:       old,
			New:       s,
			Timestamp: ts,
		})
	}
}

// SetAdminStatus records a new administrative status stamped now.
func (c *Connector) SetAdminStatus(s model.AdminStatus) {
	c.SetAdminStatusAt(s, time.Now())
}

// SetAdminStatusAt records a new administrative status with the given
// timestamp.
func (c *Connector) SetAdminStatusAt(s model.AdminStatus, ts time.Time) {
	old := c.adminStatus.Current().Value
	c.adminStatus.InsertAt(s, ts)
	if old != s && c.station != nil {
		c.station.forwardChange(PropertyChange{
			EntityID:  string(c.id),
			Property:  "admin_status",
			Old:       old,
			New:       s,
			Timestamp: ts,
		})
	}
}

// Operational reports whether the connector is administratively usable
// and idle, i.e. can accept a reservation or session.
func (c *Connector) Operational() bool {
	return c.AdminStatus() == model.AdminOperational && c.Status().Idle()
}
