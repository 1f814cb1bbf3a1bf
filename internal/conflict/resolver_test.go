package conflict

import (
	"strings"
	"testing"

	"github.com/tidelab/swell/internal/config"
	"github.com/tidelab/swell/internal/errors"
	"github.com/tidelab/swell/internal/work"
)

func newResolver(t *testing.T) *Resolver {
	t.Helper()
	return NewResolver(config.Default().Conflict)
}

func item(id string, created, modified []string) *work.WorkItem {
	it := work.NewItem(id, "work on "+id)
	it.RiskTier = work.Tier0
	it.FilesCreated = created
	it.FilesModified = modified
	return it
}

func TestResolve_NoOverlap(t *testing.T) {
	r := newResolver(t)

	result := r.Resolve([]*work.WorkItem{
		item("item-a", nil, []string{"a.go"}),
		item("item-b", nil, []string{"b.go"}),
		item("item-c", []string{"c.go"}, nil),
	})

	if len(result.Records) != 0 || len(result.Edges) != 0 {
		t.Errorf("disjoint file sets should produce nothing, got %+v", result)
	}
	if result.HasEscalations() {
		t.Error("no escalations expected")
	}
}

func TestResolve_CreateThenModify(t *testing.T) {
	r := newResolver(t)

	result := r.Resolve([]*work.WorkItem{
		item("item-a", []string{"auth.go"}, nil),
		item("item-b", nil, []string{"auth.go"}),
	})

	if len(result.Records) != 1 {
		t.Fatalf("Records = %d, want 1", len(result.Records))
	}
	rec := result.Records[0]
	if rec.Resolution != ResolutionCreation {
		t.Errorf("Resolution = %s, want creation_dependency", rec.Resolution)
	}
	if rec.First != "item-a" || rec.Second != "item-b" {
		t.Errorf("order = %s before %s, want creator first", rec.First, rec.Second)
	}

	if len(result.Edges) != 1 || result.Edges[0] != (Edge{From: "item-a", To: "item-b"}) {
		t.Errorf("Edges = %v, want item-a -> item-b", result.Edges)
	}
}

func TestResolve_ModifyModify_FewerDependentsFirst(t *testing.T) {
	r := newResolver(t)

	// item-b blocks downstream work; item-a blocks nothing, so item-a goes
	// first even though both touch config.go the same way.
	a := item("item-a", nil, []string{"config.go"})
	b := item("item-b", nil, []string{"config.go"})
	b.RiskTier = work.Tier2
	down := item("item-c", nil, []string{"other.go"})
	down.AddDependency("item-b")

	result := r.Resolve([]*work.WorkItem{a, b, down})

	if len(result.Records) != 1 {
		t.Fatalf("Records = %d, want 1", len(result.Records))
	}
	rec := result.Records[0]
	if rec.Resolution != ResolutionSequential {
		t.Errorf("Resolution = %s, want sequential_order", rec.Resolution)
	}
	if rec.First != "item-a" || rec.Second != "item-b" {
		t.Errorf("order = %s before %s, want item-a first", rec.First, rec.Second)
	}
}

func TestResolve_ModifyModify_TierBreaksTie(t *testing.T) {
	r := newResolver(t)

	a := item("item-a", nil, []string{"config.go"})
	a.RiskTier = work.Tier2
	b := item("item-b", nil, []string{"config.go"})
	b.RiskTier = work.Tier0

	result := r.Resolve([]*work.WorkItem{a, b})

	rec := result.Records[0]
	if rec.First != "item-b" {
		t.Errorf("first = %s (%s), want the lower tier item-b", rec.First, rec.Reason)
	}
	if !strings.Contains(rec.Reason, "risk tier") {
		t.Errorf("Reason = %q, want the tier tie-break named", rec.Reason)
	}
}

func TestResolve_PriorityTieBreakPolicy(t *testing.T) {
	r := NewResolver(config.ConflictConfig{TieBreak: "priority"})

	a := item("item-a", nil, []string{"config.go"})
	a.Priority = work.PriorityNice
	b := item("item-b", nil, []string{"config.go"})
	b.Priority = work.PriorityMust

	result := r.Resolve([]*work.WorkItem{a, b})

	if rec := result.Records[0]; rec.First != "item-b" {
		t.Errorf("first = %s (%s), want the must-have item-b", rec.First, rec.Reason)
	}
}

func TestResolve_EqualOnAllCounts_OrderedByID(t *testing.T) {
	r := newResolver(t)

	result := r.Resolve([]*work.WorkItem{
		item("item-b", nil, []string{"config.go"}),
		item("item-a", nil, []string{"config.go"}),
	})

	if rec := result.Records[0]; rec.First != "item-a" {
		t.Errorf("first = %s, want deterministic id order", rec.First)
	}
}

func TestResolve_CreateCreateEscalates(t *testing.T) {
	r := newResolver(t)

	result := r.Resolve([]*work.WorkItem{
		item("item-a", []string{"schema.sql"}, nil),
		item("item-b", []string{"schema.sql"}, nil),
	})

	if !result.HasEscalations() {
		t.Fatal("create/create overlap must escalate")
	}
	escs := result.Escalations()
	if len(escs) != 1 {
		t.Fatalf("Escalations = %d, want 1", len(escs))
	}
	if escs[0].Resolution != ResolutionEscalate {
		t.Errorf("Resolution = %s, want escalate", escs[0].Resolution)
	}
	if len(result.Edges) != 0 {
		t.Errorf("Edges = %v, want none while contested", result.Edges)
	}

	frozen := result.FrozenItems()
	if len(frozen) != 2 || frozen[0] != "item-a" || frozen[1] != "item-b" {
		t.Errorf("FrozenItems = %v, want both creators", frozen)
	}
}

func TestResolve_ContestedFileFreezesModifiers(t *testing.T) {
	r := newResolver(t)

	result := r.Resolve([]*work.WorkItem{
		item("item-a", []string{"schema.sql"}, nil),
		item("item-b", []string{"schema.sql"}, nil),
		item("item-c", nil, []string{"schema.sql"}),
	})

	frozen := result.FrozenItems()
	if len(frozen) != 3 {
		t.Errorf("FrozenItems = %v, want every claimant of the contested file", frozen)
	}
}

func TestResolve_ThreeModifiersChain(t *testing.T) {
	r := newResolver(t)

	a := item("item-a", nil, []string{"shared.go"})
	b := item("item-b", nil, []string{"shared.go"})
	c := item("item-c", nil, []string{"shared.go"})

	result := r.Resolve([]*work.WorkItem{a, b, c})

	// Three modifiers serialize into a chain of two adjacent orderings.
	if len(result.Records) != 2 {
		t.Fatalf("Records = %d, want 2", len(result.Records))
	}
	if len(result.Edges) != 2 {
		t.Fatalf("Edges = %d, want 2", len(result.Edges))
	}
	if result.Edges[0].To != result.Edges[1].From {
		t.Errorf("edges should chain, got %v", result.Edges)
	}
}

func TestResolve_SkipsSupersededItems(t *testing.T) {
	r := newResolver(t)

	a := item("item-a", nil, []string{"config.go"})
	b := item("item-b", nil, []string{"config.go"})
	b.MergedInto = "item-m"

	result := r.Resolve([]*work.WorkItem{a, b})

	if len(result.Records) != 0 {
		t.Errorf("superseded items must not conflict, got %+v", result.Records)
	}
}

func TestResolve_Deterministic(t *testing.T) {
	r := newResolver(t)

	build := func() []*work.WorkItem {
		return []*work.WorkItem{
			item("item-a", []string{"auth.go"}, []string{"config.go"}),
			item("item-b", nil, []string{"auth.go", "config.go"}),
			item("item-c", nil, []string{"config.go"}),
		}
	}

	first := r.Resolve(build())
	second := r.Resolve(build())

	if len(first.Records) != len(second.Records) {
		t.Fatalf("record counts differ: %d vs %d", len(first.Records), len(second.Records))
	}
	for i := range first.Records {
		if first.Records[i] != second.Records[i] {
			t.Errorf("record %d differs between runs", i)
		}
	}
}

func TestResolveEscalation(t *testing.T) {
	r := newResolver(t)

	result := r.Resolve([]*work.WorkItem{
		item("item-a", []string{"schema.sql"}, nil),
		item("item-b", []string{"schema.sql"}, nil),
	})
	esc := result.Escalations()[0]

	rec, edge, err := r.ResolveEscalation(esc, "item-b")
	if err != nil {
		t.Fatalf("ResolveEscalation: %v", err)
	}
	if rec.Resolution != ResolutionCreation {
		t.Errorf("Resolution = %s, want creation_dependency", rec.Resolution)
	}
	if rec.First != "item-b" || rec.Second != "item-a" {
		t.Errorf("order = %s before %s, want the winner first", rec.First, rec.Second)
	}
	if edge != (Edge{From: "item-b", To: "item-a"}) {
		t.Errorf("edge = %v", edge)
	}

	t.Run("unknown winner", func(t *testing.T) {
		_, _, err := r.ResolveEscalation(esc, "item-z")
		if !errors.Is(err, errors.ErrUnresolvedEscalation) {
			t.Errorf("ResolveEscalation with outsider = %v, want ErrUnresolvedEscalation", err)
		}
	})

	t.Run("not an escalation", func(t *testing.T) {
		_, _, err := r.ResolveEscalation(rec, "item-b")
		if !errors.Is(err, errors.ErrInvalidInput) {
			t.Errorf("ResolveEscalation on settled record = %v, want ErrInvalidInput", err)
		}
	})
}

func TestRecord_Merged(t *testing.T) {
	rec := Record{
		File:       "schema.sql",
		ItemA:      "item-a",
		ItemB:      "item-b",
		OpA:        work.OpCreate,
		OpB:        work.OpCreate,
		Resolution: ResolutionEscalate,
	}

	m := rec.Merged("item-m")
	if m.Resolution != ResolutionMerge {
		t.Errorf("Resolution = %s, want merge", m.Resolution)
	}
	if !strings.Contains(m.Reason, "item-m") {
		t.Errorf("Reason = %q, want the composite named", m.Reason)
	}
	if rec.Resolution != ResolutionEscalate {
		t.Error("Merged must not mutate the original record")
	}
}
