package flush

import (
	"sync"
	"time"

	"github.com/voltmesh/cso/core/model"
)

// PropertyUpdate is one recorded change of an entity property, queued
// until the next data flush drains it.
type PropertyUpdate struct {
	EntityID  string    `json:"entity_id"`
	Property  string    `json:"property"`
	Old       any       `json:"old,omitempty"`
	New       any       `json:"new"`
	Timestamp time.Time `json:"timestamp"`
}

// UpdateLog accumulates property updates between flush cycles. Recording
// never blocks on a running drain; DrainAll atomically takes the whole
// backlog.
type UpdateLog struct {
	mu      sync.Mutex
	updates []PropertyUpdate
}

// NewUpdateLog creates an empty update log.
func NewUpdateLog() *UpdateLog { return &UpdateLog{} }

// Record appends an update to the backlog.
func (l *UpdateLog) Record(u PropertyUpdate) {
	l.mu.Lock()
	l.updates = append(l.updates, u)
	l.mu.Unlock()
}

// DrainAll removes and returns the whole backlog in recording order.
func (l *UpdateLog) DrainAll() []PropertyUpdate {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.updates
	l.updates = nil
	return out
}

// Len returns the number of queued updates.
func (l *UpdateLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.updates)
}

// CDRQueue accumulates charge detail records between flush cycles.
type CDRQueue struct {
	mu   sync.Mutex
	cdrs []model.ChargeDetailRecord
}

// NewCDRQueue creates an empty CDR queue.
func NewCDRQueue() *CDRQueue { return &CDRQueue{} }

// Push appends a CDR to the backlog.
func (q *CDRQueue) Push(cdr model.ChargeDetailRecord) {
	q.mu.Lock()
	q.cdrs = append(q.cdrs, cdr)
	q.mu.Unlock()
}

// DrainAll removes and returns the whole backlog in recording order.
func (q *CDRQueue) DrainAll() []model.ChargeDetailRecord {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.cdrs
	q.cdrs = nil
	return out
}

// Len returns the number of queued CDRs.
func (q *CDRQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.cdrs)
}
