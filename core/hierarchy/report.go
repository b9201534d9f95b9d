package hierarchy

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/voltmesh/cso/core/model"
)

// StatusReport aggregates per-status counts and percentages over a set of
// descendants, e.g. "4 entities; available: 3 (75%); faulted: 1 (25%)".
type StatusReport[T comparable] struct {
	total  int
	counts map[T]int
}

// NewStatusReport builds a report over the given status values.
func NewStatusReport[T comparable](values []T) *StatusReport[T] {
	r := &StatusReport[T]{total: len(values), counts: make(map[T]int)}
	for _, v := range values {
		r.counts[v]++
	}
	return r
}

// Total returns the number of aggregated entities.
func (r *StatusReport[T]) Total() int { return r.total }

// Count returns the number of entities holding the given status.
func (r *StatusReport[T]) Count(v T) int { return r.counts[v] }

// Percentage returns 100*count/total for the given status, rounded to
// two decimals. An empty report yields 0.
func (r *StatusReport[T]) Percentage(v T) float64 {
	if r.total == 0 {
		return 0
	}
	return math.Round(100*float64(r.counts[v])/float64(r.total)*100) / 100
}

// Counts returns a copy of the per-status counts.
func (r *StatusReport[T]) Counts() map[T]int {
	out := make(map[T]int, len(r.counts))
	for k, v := range r.counts {
		out[k] = v
	}
	return out
}

// String renders the report with statuses ordered by descending count,
// ties broken alphabetically.
func (r *StatusReport[T]) String() string {
	keys := make([]T, 0, len(r.counts))
	for k := range r.counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ci, cj := r.counts[keys[i]], r.counts[keys[j]]
		if ci != cj {
			return ci > cj
		}
		return fmt.Sprint(keys[i]) < fmt.Sprint(keys[j])
	})
	var b strings.Builder
	fmt.Fprintf(&b, "%d entities", r.total)
	for _, k := range keys {
		fmt.Fprintf(&b, "; %v: %d (%g%%)", k, r.counts[k], r.Percentage(k))
	}
	return b.String()
}

func connectorStatuses(conns []*Connector) []model.ConnectorStatus {
	out := make([]model.ConnectorStatus, 0, len(conns))
	for _, c := range conns {
		out = append(out, c.Status())
	}
	return out
}

func connectorAdminStatuses(conns []*Connector) []model.AdminStatus {
	out := make([]model.AdminStatus, 0, len(conns))
	for _, c := range conns {
		out = append(out, c.AdminStatus())
	}
	return out
}

// EVSEStatusReport aggregates the dynamic statuses of all connectors
// below the operator.
func (o *Operator) EVSEStatusReport() *StatusReport[model.ConnectorStatus] {
	return NewStatusReport(connectorStatuses(o.EVSEs()))
}

// EVSEAdminStatusReport aggregates the administrative statuses of all
// connectors below the operator.
func (o *Operator) EVSEAdminStatusReport() *StatusReport[model.AdminStatus] {
	return NewStatusReport(connectorAdminStatuses(o.EVSEs()))
}

// EVSEStatusReport aggregates the dynamic statuses of all connectors
// below the pool.
func (p *Pool) EVSEStatusReport() *StatusReport[model.ConnectorStatus] {
	return NewStatusReport(connectorStatuses(p.EVSEs()))
}

// EVSEStatusReport aggregates the dynamic statuses of the station's
// connectors.
func (s *Station) EVSEStatusReport() *StatusReport[model.ConnectorStatus] {
	return NewStatusReport(connectorStatuses(s.EVSEs()))
}
