// Package conflict detects file ownership overlaps between work items and
// resolves them into ordering constraints before any wave is scheduled.
// Two items declaring operations on the same path is a conflict; every
// resolution becomes a dependency edge so the scheduler can never place
// the pair in the same wave.
package conflict

import (
	"fmt"
	"sort"

	"github.com/tidelab/swell/internal/config"
	"github.com/tidelab/swell/internal/errors"
	"github.com/tidelab/swell/internal/work"
)

// Resolution classifies how a conflict was settled.
type Resolution string

const (
	// ResolutionSequential orders two modifiers of the same file.
	ResolutionSequential Resolution = "sequential_order"

	// ResolutionCreation orders a file's creator before its consumer.
	ResolutionCreation Resolution = "creation_dependency"

	// ResolutionEscalate marks a create/create overlap that needs an
	// external decision. Both items are held out of scheduling.
	ResolutionEscalate Resolution = "escalate"

	// ResolutionMerge records that the contested items were folded into
	// one composite item.
	ResolutionMerge Resolution = "merge"
)

// String returns the resolution name.
func (r Resolution) String() string {
	return string(r)
}

// Record describes one conflict between two items on one file and how it
// was resolved. Records feed the coordination artifact, so every field is
// serializable.
type Record struct {
	File       string      `json:"file"`
	ItemA      string      `json:"item_a"`
	ItemB      string      `json:"item_b"`
	OpA        work.FileOp `json:"op_a"`
	OpB        work.FileOp `json:"op_b"`
	Resolution Resolution  `json:"resolution"`

	// First runs before Second when the resolution imposes an order.
	// Empty for escalations.
	First  string `json:"first,omitempty"`
	Second string `json:"second,omitempty"`

	Reason string `json:"reason"`
}

// Merged returns a copy of the record rewritten as a merge resolution,
// used when an escalation stayed unresolved and the items were folded
// into mergedID.
func (c Record) Merged(mergedID string) Record {
	c.Resolution = ResolutionMerge
	c.First = ""
	c.Second = ""
	c.Reason = fmt.Sprintf("escalation unresolved, folded into %s", mergedID)
	return c
}

// Edge is a dependency derived from a resolution: To must wait for From.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Result carries everything one resolution pass produced.
type Result struct {
	Records []Record `json:"records,omitempty"`
	Edges   []Edge   `json:"edges,omitempty"`

	// frozen holds every item touching a file whose creation is contested.
	// None of them may be scheduled until the escalation is decided.
	frozen map[string]struct{}
}

// HasEscalations reports whether any conflict needs an external decision.
func (r *Result) HasEscalations() bool {
	return len(r.frozen) > 0
}

// Escalations returns the records awaiting an external decision.
func (r *Result) Escalations() []Record {
	var out []Record
	for _, rec := range r.Records {
		if rec.Resolution == ResolutionEscalate {
			out = append(out, rec)
		}
	}
	return out
}

// FrozenItems returns the ids held out of scheduling by escalations,
// sorted for stable output.
func (r *Result) FrozenItems() []string {
	if len(r.frozen) == 0 {
		return nil
	}
	ids := make([]string, 0, len(r.frozen))
	for id := range r.frozen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// claim is one item's declared operation on one file.
type claim struct {
	item *work.WorkItem
	op   work.FileOp
}

// Resolver settles file conflicts between work items. The zero value is
// not usable; construct with NewResolver.
type Resolver struct {
	tieBreak string
}

// NewResolver builds a resolver using the configured tie-break policy.
func NewResolver(cfg config.ConflictConfig) *Resolver {
	tb := cfg.TieBreak
	if !config.IsValidTieBreak(tb) {
		tb = config.Default().Conflict.TieBreak
	}
	return &Resolver{tieBreak: tb}
}

// Resolve inspects every item's declared file operations and produces a
// conflict record plus a dependency edge for each overlap it can settle.
// Create/create overlaps cannot be settled here; they are reported as
// escalations and the involved items are frozen.
//
// Superseded items are ignored. The pass is deterministic: the same item
// set always yields the same records in the same order.
func (r *Resolver) Resolve(items []*work.WorkItem) *Result {
	active := make([]*work.WorkItem, 0, len(items))
	for _, item := range items {
		if item == nil || item.IsSuperseded() {
			continue
		}
		active = append(active, item)
	}

	claims := make(map[string][]claim)
	for _, item := range active {
		for _, f := range item.AllFiles() {
			op, _ := item.OpFor(f)
			claims[f] = append(claims[f], claim{item: item, op: op})
		}
	}

	files := make([]string, 0, len(claims))
	for f, cs := range claims {
		if len(cs) >= 2 {
			files = append(files, f)
		}
	}
	sort.Strings(files)

	dependents := dependentsCount(active)
	result := &Result{frozen: make(map[string]struct{})}
	seenEdges := make(map[Edge]struct{})

	addEdge := func(from, to string) {
		e := Edge{From: from, To: to}
		if _, dup := seenEdges[e]; dup || from == to {
			return
		}
		seenEdges[e] = struct{}{}
		result.Edges = append(result.Edges, e)
	}

	for _, file := range files {
		var creators, modifiers []claim
		for _, c := range claims[file] {
			if c.op == work.OpCreate {
				creators = append(creators, c)
			} else {
				modifiers = append(modifiers, c)
			}
		}

		if len(creators) >= 2 {
			// Contested creation. No automatic order exists; freeze the
			// whole subgraph touching this file.
			for i := 0; i+1 < len(creators); i++ {
				a, b := creators[i].item, creators[i+1].item
				result.Records = append(result.Records, Record{
					File:       file,
					ItemA:      a.ID,
					ItemB:      b.ID,
					OpA:        work.OpCreate,
					OpB:        work.OpCreate,
					Resolution: ResolutionEscalate,
					Reason:     fmt.Sprintf("%s and %s both create %s", a.ID, b.ID, file),
				})
			}
			for _, c := range claims[file] {
				result.frozen[c.item.ID] = struct{}{}
			}
			continue
		}

		if len(creators) == 1 {
			creator := creators[0].item
			for _, m := range modifiers {
				result.Records = append(result.Records, Record{
					File:       file,
					ItemA:      creator.ID,
					ItemB:      m.item.ID,
					OpA:        work.OpCreate,
					OpB:        work.OpModify,
					Resolution: ResolutionCreation,
					First:      creator.ID,
					Second:     m.item.ID,
					Reason:     fmt.Sprintf("%s creates %s before %s touches it", creator.ID, file, m.item.ID),
				})
				addEdge(creator.ID, m.item.ID)
			}
		}

		if len(modifiers) >= 2 {
			ordered := make([]claim, len(modifiers))
			copy(ordered, modifiers)
			sort.SliceStable(ordered, func(i, j int) bool {
				first, _ := r.orderPair(ordered[i].item, ordered[j].item, dependents)
				return first == ordered[i].item
			})

			for i := 0; i+1 < len(ordered); i++ {
				a, b := ordered[i].item, ordered[i+1].item
				_, reason := r.orderPair(a, b, dependents)
				result.Records = append(result.Records, Record{
					File:       file,
					ItemA:      a.ID,
					ItemB:      b.ID,
					OpA:        work.OpModify,
					OpB:        work.OpModify,
					Resolution: ResolutionSequential,
					First:      a.ID,
					Second:     b.ID,
					Reason:     reason,
				})
				addEdge(a.ID, b.ID)
			}
		}
	}

	return result
}

// ResolveEscalation applies an external decision to an escalated record:
// the winner keeps its creation, the other item is ordered after it. The
// caller is responsible for demoting the loser's declaration to a
// modification.
func (r *Resolver) ResolveEscalation(rec Record, winner string) (Record, Edge, error) {
	if rec.Resolution != ResolutionEscalate {
		return Record{}, Edge{}, fmt.Errorf("%w: record for %s is not an escalation", errors.ErrInvalidInput, rec.File)
	}

	var loser string
	switch winner {
	case rec.ItemA:
		loser = rec.ItemB
	case rec.ItemB:
		loser = rec.ItemA
	default:
		return Record{}, Edge{}, fmt.Errorf("%w: %s is not part of the conflict on %s",
			errors.ErrUnresolvedEscalation, winner, rec.File)
	}

	rec.Resolution = ResolutionCreation
	rec.First = winner
	rec.Second = loser
	rec.Reason = fmt.Sprintf("external decision: %s creates %s", winner, rec.File)
	return rec, Edge{From: winner, To: loser}, nil
}

// orderPair decides which of two modifiers runs first. Fewer transitive
// dependents wins so the item blocking less downstream work goes earlier;
// ties fall to the configured policy, then to the id for determinism.
func (r *Resolver) orderPair(a, b *work.WorkItem, dependents map[string]int) (*work.WorkItem, string) {
	da, db := dependents[a.ID], dependents[b.ID]
	if da != db {
		first, dFirst, dSecond := a, da, db
		if db < da {
			first, dFirst, dSecond = b, db, da
		}
		return first, fmt.Sprintf("%s blocks %d items downstream, the other blocks %d", first.ID, dFirst, dSecond)
	}

	if r.tieBreak == "priority" {
		if a.Priority.Weight() != b.Priority.Weight() {
			first := a
			if b.Priority.Weight() > a.Priority.Weight() {
				first = b
			}
			return first, fmt.Sprintf("equal dependents, %s runs first on priority %s", first.ID, first.Priority)
		}
	} else {
		if a.RiskTier != b.RiskTier {
			first := a
			if b.RiskTier < a.RiskTier {
				first = b
			}
			return first, fmt.Sprintf("equal dependents, %s runs first on risk tier %s", first.ID, first.RiskTier)
		}
	}

	first := a
	if b.ID < a.ID {
		first = b
	}
	return first, "equal dependents and tie-break, ordered by id"
}

// dependentsCount returns, for every item, how many items transitively
// depend on it through explicit dependencies.
func dependentsCount(items []*work.WorkItem) map[string]int {
	rev := make(map[string][]string)
	for _, item := range items {
		for _, dep := range item.DependsOn {
			rev[dep] = append(rev[dep], item.ID)
		}
	}

	counts := make(map[string]int, len(items))
	for _, item := range items {
		seen := make(map[string]struct{})
		queue := append([]string(nil), rev[item.ID]...)
		for len(queue) > 0 {
			id := queue[0]
			queue = queue[1:]
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			queue = append(queue, rev[id]...)
		}
		counts[item.ID] = len(seen)
	}
	return counts
}
