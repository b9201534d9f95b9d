package config

import (
	"fmt"

	"github.com/voltmesh/cso/core/hierarchy"
	"github.com/voltmesh/cso/core/model"
)

// TopologyConfig declares the static charging infrastructure the service
// manages: the operator with its pools, stations and connectors.
type TopologyConfig struct {
	OperatorID   string       `json:"operator_id"`
	OperatorName string       `json:"operator_name"`
	Pools        []PoolConfig `json:"pools"`
}

type PoolConfig struct {
	ID       string          `json:"id"`
	Stations []StationConfig `json:"stations"`
}

type StationConfig struct {
	ID    string       `json:"id"`
	EVSEs []EVSEConfig `json:"evses"`
}

type EVSEConfig struct {
	ID         string  `json:"id"`
	MaxPowerKW float64 `json:"max_power_kw"`
}

// SetDefaults applies sane defaults.
func (c *TopologyConfig) SetDefaults() {
	if c.OperatorID == "" {
		c.OperatorID = "operator"
	}
}

// Validate checks for missing and duplicate identifiers.
func (c TopologyConfig) Validate() error {
	seen := make(map[string]struct{})
	check := func(kind, id string) error {
		if id == "" {
			return fmt.Errorf("topology: %s with empty id", kind)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("topology: duplicate id %s", id)
		}
		seen[id] = struct{}{}
		return nil
	}
	for _, p := range c.Pools {
		if err := check("pool", p.ID); err != nil {
			return err
		}
		for _, s := range p.Stations {
			if err := check("station", s.ID); err != nil {
				return err
			}
			for _, e := range s.EVSEs {
				if err := check("evse", e.ID); err != nil {
					return err
				}
				if e.MaxPowerKW < 0 {
					return fmt.Errorf("topology: evse %s has negative max power", e.ID)
				}
			}
		}
	}
	return nil
}

// Build materializes the declared topology. New connectors start
// available.
func (c TopologyConfig) Build(hcfg hierarchy.Config) (*hierarchy.Operator, error) {
	op := hierarchy.NewOperator(model.OperatorID(c.OperatorID), c.OperatorName, hcfg)
	for _, p := range c.Pools {
		pool, err := op.CreatePool(model.PoolID(p.ID))
		if err != nil {
			return nil, fmt.Errorf("topology: pool %s: %w", p.ID, err)
		}
		for _, s := range p.Stations {
			st, err := pool.CreateStation(model.StationID(s.ID))
			if err != nil {
				return nil, fmt.Errorf("topology: station %s: %w", s.ID, err)
			}
			for _, e := range s.EVSEs {
				conn, err := st.CreateConnector(model.EVSEID(e.ID), e.MaxPowerKW)
				if err != nil {
					return nil, fmt.Errorf("topology: evse %s: %w", e.ID, err)
				}
				conn.SetStatus(model.ConnectorAvailable)
			}
		}
	}
	return op, nil
}
