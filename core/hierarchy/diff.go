package hierarchy

import (
	"time"

	"github.com/voltmesh/cso/core/model"
)

// EVSEStatusEntry pairs a connector id with a status value.
type EVSEStatusEntry struct {
	EVSEID model.EVSEID          `json:"evse_id"`
	Status model.ConnectorStatus `json:"status"`
}

// EVSEStatusDiff carries two disjoint collections of status updates:
// previously unseen connectors and connectors whose status changed.
type EVSEStatusDiff struct {
	Timestamp time.Time         `json:"timestamp"`
	New       []EVSEStatusEntry `json:"new,omitempty"`
	Changed   []EVSEStatusEntry `json:"changed,omitempty"`
}

// Empty reports whether the diff carries no entries.
func (d EVSEStatusDiff) Empty() bool {
	return len(d.New) == 0 && len(d.Changed) == 0
}

// ApplyEVSEStatusDiff resolves each entry through the hierarchy and
// applies the status. Ids absent from the hierarchy are silently skipped:
// a race between topology changes and diff delivery is expected and
// tolerated. It returns the number of applied and skipped entries.
func (o *Operator) ApplyEVSEStatusDiff(d EVSEStatusDiff) (applied, skipped int) {
	ts := d.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	for _, e := range append(append([]EVSEStatusEntry(nil), d.New...), d.Changed...) {
		c, ok := o.Connector(e.EVSEID)
		if !ok {
			skipped++
			continue
		}
		c.SetStatusAt(e.Status, ts)
		applied++
	}
	return applied, skipped
}

// EVSEAdminStatusEntry pairs a connector id with an admin status value.
type EVSEAdminStatusEntry struct {
	EVSEID model.EVSEID      `json:"evse_id"`
	Status model.AdminStatus `json:"status"`
}

// EVSEAdminStatusDiff is the administrative counterpart of EVSEStatusDiff.
type EVSEAdminStatusDiff struct {
	Timestamp time.Time              `json:"timestamp"`
	New       []EVSEAdminStatusEntry `json:"new,omitempty"`
	Changed   []EVSEAdminStatusEntry `json:"changed,omitempty"`
}

// ApplyEVSEAdminStatusDiff applies an admin status diff with the same
// skip semantics as ApplyEVSEStatusDiff.
func (o *Operator) ApplyEVSEAdminStatusDiff(d EVSEAdminStatusDiff) (applied, skipped int) {
	ts := d.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	for _, e := range append(append([]EVSEAdminStatusEntry(nil), d.New...), d.Changed...) {
		c, ok := o.Connector(e.EVSEID)
		if !ok {
			skipped++
			continue
		}
		c.SetAdminStatusAt(e.Status, ts)
		applied++
	}
	return applied, skipped
}
