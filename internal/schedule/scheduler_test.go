package schedule

import (
	"reflect"
	"testing"

	"github.com/tidelab/swell/internal/conflict"
	"github.com/tidelab/swell/internal/config"
	"github.com/tidelab/swell/internal/errors"
	"github.com/tidelab/swell/internal/work"
)

func item(id string, deps ...string) *work.WorkItem {
	it := work.NewItem(id, "work on "+id)
	it.RiskTier = work.Tier0
	for _, d := range deps {
		it.AddDependency(d)
	}
	return it
}

func waveIDs(p *Plan) [][]string {
	out := make([][]string, len(p.Waves))
	for i, w := range p.Waves {
		out[i] = w.ItemIDs
	}
	return out
}

func TestBuild_IndependentItemsShareOneWave(t *testing.T) {
	plan, err := Build(Input{Items: []*work.WorkItem{
		item("item-a"), item("item-b"), item("item-c"),
	}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	want := [][]string{{"item-a", "item-b", "item-c"}}
	if got := waveIDs(plan); !reflect.DeepEqual(got, want) {
		t.Errorf("waves = %v, want %v", got, want)
	}
	if plan.Waves[0].Index != 1 {
		t.Errorf("first wave index = %d, want 1", plan.Waves[0].Index)
	}
}

func TestBuild_CreatorPrecedesConsumer(t *testing.T) {
	// End to end through the conflict resolver: a creation dependency on
	// auth.go forces two waves.
	creator := item("item-a")
	creator.FilesCreated = []string{"auth.go"}
	consumer := item("item-b")
	consumer.FilesModified = []string{"auth.go"}

	r := conflict.NewResolver(config.Default().Conflict)
	result := r.Resolve([]*work.WorkItem{creator, consumer})

	plan, err := Build(Input{
		Items: []*work.WorkItem{creator, consumer},
		Edges: result.Edges,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	want := [][]string{{"item-a"}, {"item-b"}}
	if got := waveIDs(plan); !reflect.DeepEqual(got, want) {
		t.Errorf("waves = %v, want %v", got, want)
	}
}

func TestBuild_WaveMonotonicity(t *testing.T) {
	// Diamond: b and c depend on a, d depends on both.
	items := []*work.WorkItem{
		item("item-a"),
		item("item-b", "item-a"),
		item("item-c", "item-a"),
		item("item-d", "item-b", "item-c"),
	}

	plan, err := Build(Input{Items: items})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	waveOf := make(map[string]int)
	for _, w := range plan.Waves {
		for _, id := range w.ItemIDs {
			waveOf[id] = w.Index
		}
	}
	for _, it := range items {
		for _, dep := range it.DependsOn {
			if waveOf[dep] >= waveOf[it.ID] {
				t.Errorf("wave(%s)=%d not before wave(%s)=%d", dep, waveOf[dep], it.ID, waveOf[it.ID])
			}
		}
	}
	if len(plan.Waves) != 3 {
		t.Errorf("waves = %d, want the shallowest layering of 3", len(plan.Waves))
	}
}

func TestBuild_ExclusiveFileOwnershipPerWave(t *testing.T) {
	// Three items contend on shared.go; after resolution no wave may
	// contain the file twice.
	a := item("item-a")
	a.FilesModified = []string{"shared.go", "a.go"}
	b := item("item-b")
	b.FilesModified = []string{"shared.go"}
	c := item("item-c")
	c.FilesCreated = []string{"c.go"}

	all := []*work.WorkItem{a, b, c}
	r := conflict.NewResolver(config.Default().Conflict)
	result := r.Resolve(all)

	plan, err := Build(Input{Items: all, Edges: result.Edges})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	byID := map[string]*work.WorkItem{"item-a": a, "item-b": b, "item-c": c}
	for _, w := range plan.Waves {
		owners := make(map[string]string)
		for _, id := range w.ItemIDs {
			for _, f := range byID[id].AllFiles() {
				if prev, taken := owners[f]; taken {
					t.Errorf("wave %d: %s owned by both %s and %s", w.Index, f, prev, id)
				}
				owners[f] = id
			}
		}
	}
}

func TestBuild_CycleMergesIntoComposite(t *testing.T) {
	a := item("item-a", "item-b")
	b := item("item-b", "item-a")

	plan, err := Build(Input{Items: []*work.WorkItem{a, b}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(plan.Merges) != 1 {
		t.Fatalf("Merges = %d, want 1", len(plan.Merges))
	}
	step := plan.Merges[0]
	if step.Composite.ID != "merged-1" {
		t.Errorf("composite id = %q, want merged-1", step.Composite.ID)
	}
	if !reflect.DeepEqual(step.SourceIDs, []string{"item-a", "item-b"}) {
		t.Errorf("SourceIDs = %v", step.SourceIDs)
	}

	want := [][]string{{"merged-1"}}
	if got := waveIDs(plan); !reflect.DeepEqual(got, want) {
		t.Errorf("waves = %v, want %v", got, want)
	}
}

func TestBuild_ThreeItemCycle(t *testing.T) {
	items := []*work.WorkItem{
		item("item-a", "item-c"),
		item("item-b", "item-a"),
		item("item-c", "item-b"),
		item("item-d"),
	}

	plan, err := Build(Input{Items: items})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(plan.Merges) != 1 || len(plan.Merges[0].SourceIDs) != 3 {
		t.Fatalf("Merges = %+v, want one merge of the full cycle", plan.Merges)
	}
	want := [][]string{{"item-d", "merged-1"}}
	if got := waveIDs(plan); !reflect.DeepEqual(got, want) {
		t.Errorf("waves = %v, want %v", got, want)
	}
}

func TestBuild_CompositeInheritsExternalDependencies(t *testing.T) {
	x := item("item-x")
	a := item("item-a", "item-b", "item-x")
	b := item("item-b", "item-a")

	plan, err := Build(Input{Items: []*work.WorkItem{x, a, b}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	want := [][]string{{"item-x"}, {"merged-1"}}
	if got := waveIDs(plan); !reflect.DeepEqual(got, want) {
		t.Errorf("waves = %v, want %v", got, want)
	}
}

func TestBuild_IdempotentRescheduling(t *testing.T) {
	build := func() []*work.WorkItem {
		a := item("item-a")
		a.FilesCreated = []string{"auth.go"}
		b := item("item-b", "item-a")
		c := item("item-c")
		c.Priority = work.PriorityMust
		return []*work.WorkItem{a, b, c}
	}

	first, err := Build(Input{Items: build()})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	second, err := Build(Input{Items: build()})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if !reflect.DeepEqual(waveIDs(first), waveIDs(second)) {
		t.Errorf("plans differ across runs: %v vs %v", waveIDs(first), waveIDs(second))
	}
}

func TestBuild_CompletedDependencyIsSatisfied(t *testing.T) {
	done := item("item-a")
	done.Status = work.StatusCompleted
	next := item("item-b", "item-a")

	plan, err := Build(Input{Items: []*work.WorkItem{done, next}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	want := [][]string{{"item-b"}}
	if got := waveIDs(plan); !reflect.DeepEqual(got, want) {
		t.Errorf("waves = %v, want %v", got, want)
	}
}

func TestBuild_BlockedDependencyDefers(t *testing.T) {
	blocked := item("item-a")
	blocked.Status = work.StatusBlocked
	dependent := item("item-b", "item-a")
	downstream := item("item-c", "item-b")
	free := item("item-d")

	plan, err := Build(Input{Items: []*work.WorkItem{blocked, dependent, downstream, free}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if !reflect.DeepEqual(plan.Deferred, []string{"item-b", "item-c"}) {
		t.Errorf("Deferred = %v, want the dependent and its downstream", plan.Deferred)
	}
	want := [][]string{{"item-d"}}
	if got := waveIDs(plan); !reflect.DeepEqual(got, want) {
		t.Errorf("waves = %v, want %v", got, want)
	}
}

func TestBuild_FrozenItemsAreHeldOut(t *testing.T) {
	a := item("item-a")
	b := item("item-b")
	c := item("item-c")

	plan, err := Build(Input{
		Items:  []*work.WorkItem{a, b, c},
		Frozen: []string{"item-a", "item-b"},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	// Unrelated work continues while the escalation is pending.
	want := [][]string{{"item-c"}}
	if got := waveIDs(plan); !reflect.DeepEqual(got, want) {
		t.Errorf("waves = %v, want %v", got, want)
	}
}

func TestBuild_DependencyOnFrozenItemDefers(t *testing.T) {
	a := item("item-a")
	b := item("item-b", "item-a")

	plan, err := Build(Input{
		Items:  []*work.WorkItem{a, b},
		Frozen: []string{"item-a"},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(plan.Waves) != 0 {
		t.Errorf("waves = %v, want none", waveIDs(plan))
	}
	if !reflect.DeepEqual(plan.Deferred, []string{"item-b"}) {
		t.Errorf("Deferred = %v, want item-b", plan.Deferred)
	}
}

func TestBuild_UnknownDependency(t *testing.T) {
	_, err := Build(Input{Items: []*work.WorkItem{item("item-a", "ghost")}})
	if !errors.Is(err, errors.ErrUnknownDependency) {
		t.Errorf("Build = %v, want ErrUnknownDependency", err)
	}
}

func TestBuild_SupersededDependencyResolvesToComposite(t *testing.T) {
	old := item("item-a")
	old.MergedInto = "item-m"
	composite := item("item-m")
	dependent := item("item-b", "item-a")

	plan, err := Build(Input{Items: []*work.WorkItem{old, composite, dependent}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	want := [][]string{{"item-m"}, {"item-b"}}
	if got := waveIDs(plan); !reflect.DeepEqual(got, want) {
		t.Errorf("waves = %v, want %v", got, want)
	}
}

func TestBuild_MustHavesLeadTheWave(t *testing.T) {
	nice := item("item-a")
	nice.Priority = work.PriorityNice
	must := item("item-b")
	must.Priority = work.PriorityMust
	should := item("item-c")
	should.Priority = work.PriorityShould

	plan, err := Build(Input{Items: []*work.WorkItem{nice, must, should}})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	want := [][]string{{"item-b", "item-c", "item-a"}}
	if got := waveIDs(plan); !reflect.DeepEqual(got, want) {
		t.Errorf("waves = %v, want priority order %v", got, want)
	}
}

func TestBuild_EmptyInput(t *testing.T) {
	plan, err := Build(Input{})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(plan.Waves) != 0 || len(plan.Merges) != 0 || len(plan.Deferred) != 0 {
		t.Errorf("empty input should produce an empty plan, got %+v", plan)
	}
}
