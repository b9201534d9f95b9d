package hierarchy

import (
	"strings"
	"testing"

	"github.com/voltmesh/cso/core/model"
)

func TestStatusReportCounts(t *testing.T) {
	values := []model.ConnectorStatus{
		model.ConnectorAvailable,
		model.ConnectorAvailable,
		model.ConnectorAvailable,
		model.ConnectorCharging,
	}
	r := NewStatusReport(values)
	if r.Total() != 4 {
		t.Fatalf("total = %d", r.Total())
	}
	if r.Count(model.ConnectorAvailable) != 3 || r.Count(model.ConnectorCharging) != 1 {
		t.Fatalf("counts = %v", r.Counts())
	}
	if got := r.Percentage(model.ConnectorAvailable); got != 75 {
		t.Fatalf("percentage = %g", got)
	}
	if got := r.Percentage(model.ConnectorFaulted); got != 0 {
		t.Fatalf("absent percentage = %g", got)
	}

	sum := 0
	for _, c := range r.Counts() {
		sum += c
	}
	if sum != r.Total() {
		t.Fatalf("sum(counts) = %d total = %d", sum, r.Total())
	}
}

func TestStatusReportRounding(t *testing.T) {
	values := []string{"a", "a", "b"}
	r := NewStatusReport(values)
	if got := r.Percentage("a"); got != 66.67 {
		t.Fatalf("percentage = %g", got)
	}
	if got := r.Percentage("b"); got != 33.33 {
		t.Fatalf("percentage = %g", got)
	}
}

func TestStatusReportString(t *testing.T) {
	r := NewStatusReport([]string{"available", "available", "faulted"})
	s := r.String()
	if !strings.HasPrefix(s, "3 entities") {
		t.Fatalf("string = %q", s)
	}
	if !strings.Contains(s, "available: 2") || !strings.Contains(s, "faulted: 1") {
		t.Fatalf("string = %q", s)
	}
	// Descending count order.
	if strings.Index(s, "available") > strings.Index(s, "faulted") {
		t.Fatalf("order wrong: %q", s)
	}
}

func TestEVSEStatusReportOverHierarchy(t *testing.T) {
	op, _, _, c1, _ := buildOperator(t)
	c1.SetStatus(model.ConnectorCharging)
	r := op.EVSEStatusReport()
	if r.Total() != 2 {
		t.Fatalf("total = %d", r.Total())
	}
	if r.Count(model.ConnectorCharging) != 1 || r.Count(model.ConnectorAvailable) != 1 {
		t.Fatalf("counts = %v", r.Counts())
	}
	if got := r.Percentage(model.ConnectorCharging); got != 50 {
		t.Fatalf("percentage = %g", got)
	}
}

func TestEmptyReport(t *testing.T) {
	r := NewStatusReport([]model.ConnectorStatus(nil))
	if r.Total() != 0 || r.Percentage(model.ConnectorAvailable) != 0 {
		t.Fatal("empty report not neutral")
	}
}
