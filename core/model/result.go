package model

// ResultCode classifies the outcome of a dispatched command. Routing and
// id failures are returned as codes, never as errors, so callers can
// branch on the category without error inspection.
type ResultCode int

const (
	// ResultSuccess indicates the command was granted.
	ResultSuccess ResultCode = iota
	// ResultUnknownEVSE indicates the target EVSE is not known.
	ResultUnknownEVSE
	// ResultUnknownStation indicates the target charging station is not known.
	ResultUnknownStation
	// ResultUnknownPool indicates the target charging pool is not known.
	ResultUnknownPool
	// ResultInvalidOrUnknownID indicates a supplied reservation or session
	// id is not recognized.
	ResultInvalidOrUnknownID
	// ResultError indicates a transport or remote failure.
	ResultError
)

// String returns a stable textual form used in logs and metric labels.
func (c ResultCode) String() string {
	switch c {
	case ResultSuccess:
		return "success"
	case ResultUnknownEVSE:
		return "unknown_evse"
	case ResultUnknownStation:
		return "unknown_station"
	case ResultUnknownPool:
		return "unknown_pool"
	case ResultInvalidOrUnknownID:
		return "invalid_or_unknown_id"
	case ResultError:
		return "error"
	}
	return "unknown"
}

// UnknownTarget reports whether the code is one of the routing failures.
func (c ResultCode) UnknownTarget() bool {
	switch c {
	case ResultUnknownEVSE, ResultUnknownStation, ResultUnknownPool:
		return true
	}
	return false
}

// RetriableLocally reports whether a remote answer with this code should
// trigger a local handling attempt. Invalid-id answers and successes do
// not: the remote side understood the request.
func (c ResultCode) RetriableLocally() bool {
	return c.UnknownTarget() || c == ResultError
}
