package model

// AdminStatus describes the administrative state shared by all levels of
// the charging hierarchy. It changes rarely and only through operator
// back-office actions.
type AdminStatus string

const (
	AdminPlanned      AdminStatus = "planned"
	AdminInternalUse  AdminStatus = "internal_use"
	AdminOutOfService AdminStatus = "out_of_service"
	AdminOperational  AdminStatus = "operational"
)

// ConnectorStatus is the dynamic state of a single EVSE connector.
type ConnectorStatus string

const (
	ConnectorUnknown      ConnectorStatus = "unknown"
	ConnectorAvailable    ConnectorStatus = "available"
	ConnectorReserved     ConnectorStatus = "reserved"
	ConnectorPreparing    ConnectorStatus = "preparing"
	ConnectorCharging     ConnectorStatus = "charging"
	ConnectorFinishing    ConnectorStatus = "finishing"
	ConnectorOutOfService ConnectorStatus = "out_of_service"
	ConnectorFaulted      ConnectorStatus = "faulted"
)

// Idle reports whether the connector can accept a new reservation or
// session in this state.
func (s ConnectorStatus) Idle() bool {
	return s == ConnectorAvailable
}

// StationStatus is the aggregated dynamic state of a charging station.
type StationStatus string

const (
	StationUnknown      StationStatus = "unknown"
	StationAvailable    StationStatus = "available"
	StationCharging     StationStatus = "charging"
	StationOutOfService StationStatus = "out_of_service"
	StationFaulted      StationStatus = "faulted"
)

// PoolStatus is the aggregated dynamic state of a charging pool.
type PoolStatus string

const (
	PoolUnknown      PoolStatus = "unknown"
	PoolAvailable    PoolStatus = "available"
	PoolCharging     PoolStatus = "charging"
	PoolOutOfService PoolStatus = "out_of_service"
	PoolFaulted      PoolStatus = "faulted"
)

// OperatorStatus is the dynamic state of the operator as a whole.
type OperatorStatus string

const (
	OperatorUnknown      OperatorStatus = "unknown"
	OperatorAvailable    OperatorStatus = "available"
	OperatorOutOfService OperatorStatus = "out_of_service"
)
