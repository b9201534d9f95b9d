// Package hierarchy models the four-level charging infrastructure
// composition: an operator owns pools, a pool owns stations, a station
// owns connectors. Each level keeps a bounded status history and exposes
// flattened descendant views computed fresh on every call.
package hierarchy

import (
	"errors"
	"time"

	"github.com/voltmesh/cso/core/status"
)

// DefaultReservationDuration applies when a reservation request carries
// no explicit duration.
const DefaultReservationDuration = 15 * time.Minute

var (
	// ErrDuplicateID is returned when a child with the same id already exists.
	ErrDuplicateID = errors.New("hierarchy: duplicate id")
	// ErrVetoed is returned when an admission hook denies a new child.
	ErrVetoed = errors.New("hierarchy: admission vetoed")
)

// Config carries the per-entity status history capacities and the insert
// policy applied to every schedule in the hierarchy.
type Config struct {
	MaxAdminStatusListSize int  `json:"max_admin_status_list_size"`
	MaxStatusListSize      int  `json:"max_status_list_size"`
	AppendOnChange         bool `json:"append_on_change"`
}

// SetDefaults applies the default history capacities.
func (c *Config) SetDefaults() {
	if c.MaxAdminStatusListSize <= 0 {
		c.MaxAdminStatusListSize = status.DefaultMaxListSize
	}
	if c.MaxStatusListSize <= 0 {
		c.MaxStatusListSize = status.DefaultMaxListSize
	}
}

func (c Config) policy() status.InsertPolicy {
	if c.AppendOnChange {
		return status.AppendOnChange
	}
	return status.AppendAlways
}

// PropertyChange describes a single observed mutation of an entity. A
// change raised on a connector is forwarded upward station → pool →
// operator and re-emitted there with the same payload.
type PropertyChange struct {
	EntityID  string
	Property  string
	Old       any
	New       any
	Timestamp time.Time
}

// PropertyListener receives forwarded property changes at the operator.
type PropertyListener func(PropertyChange)

// Hook is a synchronous two-phase admission callback: Before may veto the
// candidate, After is notified once the add completed. Hooks run in
// registration order and must not call back into the entity they guard.
type Hook[T any] struct {
	Before func(T) bool
	After  func(T)
}

func beforeAll[T any](hooks []Hook[T], candidate T) bool {
	for _, h := range hooks {
		if h.Before != nil && !h.Before(candidate) {
			return false
		}
	}
	return true
}

func afterAll[T any](hooks []Hook[T], candidate T) {
	for _, h := range hooks {
		if h.After != nil {
			h.After(candidate)
		}
	}
}
