// Package schedule layers work items into waves. Items in the same wave
// share no dependency edges and no files, so they are safe to run in
// parallel; wave N+1 never starts before wave N is verified. A dependency
// cycle is not an error here: the cyclic items are folded into one
// composite and the layering reruns until the graph is acyclic.
package schedule

import (
	"fmt"
	"sort"

	"github.com/tidelab/swell/internal/conflict"
	"github.com/tidelab/swell/internal/errors"
	"github.com/tidelab/swell/internal/work"
)

// Input is everything one scheduling pass consumes.
type Input struct {
	// Items is the full record set, including completed and superseded
	// items. Only pending and ready items are layered; the rest shape the
	// graph (completed dependencies count as satisfied).
	Items []*work.WorkItem

	// Edges are the orderings derived by the conflict resolver, on top of
	// each item's explicit dependencies.
	Edges []conflict.Edge

	// Frozen items are held out of scheduling entirely, typically because
	// they await an external escalation decision.
	Frozen []string
}

// MergeStep records one cycle recovery: the composite the scheduler had
// to build and the items it absorbs. The caller applies the step to the
// record store; the scheduler itself never mutates its input.
type MergeStep struct {
	Composite *work.WorkItem
	SourceIDs []string
	Reason    string
}

// Plan is the scheduler's output.
type Plan struct {
	Waves []*work.Wave

	// Merges lists the cycle recoveries performed while layering.
	Merges []MergeStep

	// Deferred holds schedulable items that could not be placed in any
	// wave because a dependency is unavailable: blocked, failed, rolled
	// back, or frozen behind an escalation.
	Deferred []string
}

// node is the scheduler's working view of one item.
type node struct {
	item *work.WorkItem
	// local composites carry no ledger record yet, so they are tracked
	// here instead of through the item's merge markers.
	mergedInto string
}

// Build layers the input into waves. It returns an error only for
// malformed input, such as a dependency on an id that never existed;
// cycles are recovered by merging, never reported as errors.
//
// Build is deterministic: an unchanged input always produces an identical
// plan, which keeps re-scheduling idempotent.
func Build(in Input) (*Plan, error) {
	nodes := make(map[string]*node, len(in.Items))
	order := make([]string, 0, len(in.Items))
	for _, item := range in.Items {
		if item == nil {
			continue
		}
		nodes[item.ID] = &node{item: item}
		order = append(order, item.ID)
	}

	frozen := make(map[string]struct{}, len(in.Frozen))
	for _, id := range in.Frozen {
		frozen[id] = struct{}{}
	}

	plan := &Plan{}

	for {
		adj, deferred, err := assemble(nodes, order, in.Edges, frozen)
		if err != nil {
			return nil, err
		}

		waves, remainder := layer(adj)
		if len(remainder) == 0 {
			plan.Waves = waves
			plan.Deferred = deferred
			return plan, nil
		}

		// The remainder contains at least one cycle. Fold its members into
		// a composite and relayer with the smaller graph.
		cyclic := findCycle(remainder, adj.edges)
		step, err := merge(nodes, &order, cyclic, len(plan.Merges)+1)
		if err != nil {
			return nil, err
		}
		plan.Merges = append(plan.Merges, step)
	}
}

// graph is the assembled scheduling subgraph: the items to layer and the
// edges between them.
type graph struct {
	ids   []string            // deterministic iteration order
	edges map[string][]string // from -> to, both schedulable
	indeg map[string]int
	items map[string]*work.WorkItem
}

// assemble resolves every dependency and conflict edge against the
// current node set and returns the subgraph of items that can be layered
// right now, plus the ids deferred behind unavailable dependencies.
func assemble(nodes map[string]*node, order []string, extra []conflict.Edge, frozen map[string]struct{}) (*graph, []string, error) {
	resolve := func(id string) string {
		for hops := 0; hops < len(nodes)+1; hops++ {
			n, ok := nodes[id]
			if !ok {
				return id
			}
			switch {
			case n.mergedInto != "":
				id = n.mergedInto
			case n.item.IsSuperseded():
				id = n.item.MergedInto
			default:
				return id
			}
		}
		return id
	}

	schedulable := func(id string) bool {
		n, ok := nodes[id]
		if !ok || n.mergedInto != "" || n.item.IsSuperseded() {
			return false
		}
		if _, held := frozen[id]; held {
			return false
		}
		s := n.item.Status
		return s == work.StatusPending || s == work.StatusReady
	}

	g := &graph{
		edges: make(map[string][]string),
		indeg: make(map[string]int),
		items: make(map[string]*work.WorkItem),
	}
	deferredSet := make(map[string]struct{})

	for _, id := range order {
		if !schedulable(id) {
			continue
		}
		g.ids = append(g.ids, id)
		g.indeg[id] = 0
		g.items[id] = nodes[id].item
	}

	addEdge := func(from, to string) {
		for _, existing := range g.edges[from] {
			if existing == to {
				return
			}
		}
		g.edges[from] = append(g.edges[from], to)
		g.indeg[to]++
	}

	// link resolves a dependency target and either records an edge,
	// accepts the dependency as satisfied, or defers the dependent.
	link := func(dependent, target string) error {
		target = resolve(target)
		n, ok := nodes[target]
		if !ok {
			return fmt.Errorf("%w: %s depends on unknown item %s",
				errors.ErrUnknownDependency, dependent, target)
		}
		if schedulable(target) {
			addEdge(target, dependent)
			return nil
		}
		if n.item.Status == work.StatusCompleted && !n.item.IsSuperseded() {
			return nil // satisfied
		}
		deferredSet[dependent] = struct{}{}
		return nil
	}

	for _, id := range g.ids {
		for _, dep := range g.items[id].DependsOn {
			if resolve(dep) == id {
				continue // dependency folded into this very item
			}
			if err := link(id, dep); err != nil {
				return nil, nil, err
			}
		}
	}

	for _, e := range extra {
		from, to := resolve(e.From), resolve(e.To)
		if from == to || !schedulable(to) {
			continue
		}
		if err := link(to, from); err != nil {
			return nil, nil, err
		}
	}

	// Deferral is transitive: anything downstream of a deferred item
	// cannot be placed either.
	queue := make([]string, 0, len(deferredSet))
	for id := range deferredSet {
		queue = append(queue, id)
	}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, next := range g.edges[id] {
			if _, seen := deferredSet[next]; !seen {
				deferredSet[next] = struct{}{}
				queue = append(queue, next)
			}
		}
	}

	if len(deferredSet) > 0 {
		g.prune(deferredSet)
	}

	deferred := make([]string, 0, len(deferredSet))
	for id := range deferredSet {
		deferred = append(deferred, id)
	}
	sort.Strings(deferred)
	return g, deferred, nil
}

// prune drops the given ids and their edges from the graph.
func (g *graph) prune(drop map[string]struct{}) {
	kept := g.ids[:0]
	for _, id := range g.ids {
		if _, gone := drop[id]; gone {
			delete(g.indeg, id)
			delete(g.items, id)
			delete(g.edges, id)
			continue
		}
		kept = append(kept, id)
	}
	g.ids = kept

	for from, tos := range g.edges {
		filtered := tos[:0]
		for _, to := range tos {
			if _, gone := drop[to]; gone {
				continue
			}
			filtered = append(filtered, to)
		}
		g.edges[from] = filtered
	}

	// Recompute in-degrees from the surviving edges.
	for id := range g.indeg {
		g.indeg[id] = 0
	}
	for _, tos := range g.edges {
		for _, to := range tos {
			g.indeg[to]++
		}
	}
}

// layer runs Kahn's algorithm, emitting one wave per zero in-degree
// layer. The shallowest valid layering falls out naturally, which is also
// the most parallel one. Any ids left over sit on a cycle.
func layer(g *graph) ([]*work.Wave, []string) {
	indeg := make(map[string]int, len(g.indeg))
	for id, d := range g.indeg {
		indeg[id] = d
	}

	var waves []*work.Wave
	placed := make(map[string]struct{}, len(g.ids))

	for len(placed) < len(g.ids) {
		var current []string
		for _, id := range g.ids {
			if _, done := placed[id]; done {
				continue
			}
			if indeg[id] == 0 {
				current = append(current, id)
			}
		}
		if len(current) == 0 {
			break
		}

		// Must-haves lead within a wave; ties fall to the id so the
		// output is stable.
		sort.SliceStable(current, func(i, j int) bool {
			wi := g.items[current[i]].Priority.Weight()
			wj := g.items[current[j]].Priority.Weight()
			if wi != wj {
				return wi > wj
			}
			return current[i] < current[j]
		})

		waves = append(waves, &work.Wave{
			Index:   len(waves) + 1,
			ItemIDs: current,
			Status:  work.WavePending,
		})

		for _, id := range current {
			placed[id] = struct{}{}
			for _, next := range g.edges[id] {
				indeg[next]--
			}
		}
	}

	var remainder []string
	for _, id := range g.ids {
		if _, done := placed[id]; !done {
			remainder = append(remainder, id)
		}
	}
	return waves, remainder
}

// findCycle walks the remainder and returns the unique ids of the first
// cycle it finds. The remainder always contains one: every node in it has
// a positive in-degree from other remainder nodes.
func findCycle(remainder []string, edges map[string][]string) []string {
	inRemainder := make(map[string]struct{}, len(remainder))
	for _, id := range remainder {
		inRemainder[id] = struct{}{}
	}

	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	parent := make(map[string]string)

	var dfs func(id string) []string
	dfs = func(id string) []string {
		visited[id] = true
		onStack[id] = true

		for _, next := range edges[id] {
			if _, ok := inRemainder[next]; !ok {
				continue
			}
			if !visited[next] {
				parent[next] = id
				if cycle := dfs(next); cycle != nil {
					return cycle
				}
			} else if onStack[next] {
				cycle := []string{next}
				for cur := id; cur != next; cur = parent[cur] {
					cycle = append(cycle, cur)
				}
				return cycle
			}
		}

		onStack[id] = false
		return nil
	}

	for _, id := range remainder {
		if !visited[id] {
			if cycle := dfs(id); cycle != nil {
				sort.Strings(cycle)
				return cycle
			}
		}
	}
	return nil
}

// merge folds the cyclic ids into a composite node and records the step.
func merge(nodes map[string]*node, order *[]string, cyclic []string, seq int) (MergeStep, error) {
	if len(cyclic) < 2 {
		return MergeStep{}, fmt.Errorf("%w: cycle of %d items cannot be merged",
			errors.ErrDependencyCycle, len(cyclic))
	}

	id := compositeID(nodes, seq)
	sources := make([]*work.WorkItem, 0, len(cyclic))
	for _, cid := range cyclic {
		sources = append(sources, nodes[cid].item)
	}

	composite := work.Merge(id, sources...)
	nodes[id] = &node{item: composite}
	*order = append(*order, id)
	for _, cid := range cyclic {
		nodes[cid].mergedInto = id
	}

	return MergeStep{
		Composite: composite,
		SourceIDs: append([]string(nil), cyclic...),
		Reason:    fmt.Sprintf("dependency cycle between %d items", len(cyclic)),
	}, nil
}

// compositeID picks the first free merged-N id.
func compositeID(nodes map[string]*node, seq int) string {
	for {
		id := fmt.Sprintf("merged-%d", seq)
		if _, taken := nodes[id]; !taken {
			return id
		}
		seq++
	}
}
