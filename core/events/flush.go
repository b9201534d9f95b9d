package events

import "time"

// FlushStarted is published when a flush cycle acquired its queue lock.
type FlushStarted struct {
	Queue string
	RunID uint64
	Time  time.Time
}

// FlushFinished is published when a flush cycle completed, successfully
// or not.
type FlushFinished struct {
	Queue   string
	RunID   uint64
	Runtime time.Duration
}

// AdapterException is published when the adapter's drain operation failed.
// Err is the innermost cause of the failure.
type AdapterException struct {
	Queue string
	RunID uint64
	Err   error
}
