package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidelab/swell/internal/approval"
	"github.com/tidelab/swell/internal/conflict"
	"github.com/tidelab/swell/internal/errors"
	"github.com/tidelab/swell/internal/event"
	"github.com/tidelab/swell/internal/iterate"
	"github.com/tidelab/swell/internal/logging"
	"github.com/tidelab/swell/internal/risk"
	"github.com/tidelab/swell/internal/schedule"
	"github.com/tidelab/swell/internal/work"
)

// cycle performs one full iteration: replan the open work into waves, run
// the waves in order, and account for the outcome. A wave failure skips the
// waves behind it; the next cycle replans around the damage.
func (r *run) cycle(ctx context.Context, n int) (iterate.CycleResult, error) {
	r.newlyCompleted = nil
	r.regressed = nil
	r.added = nil
	r.prevRegressed = make(map[string]bool)
	if last, ok := r.eng.led.LastIteration(); ok {
		for _, id := range last.Regressed {
			r.prevRegressed[id] = true
		}
	}

	if err := ctx.Err(); err != nil {
		return iterate.CycleResult{}, err
	}

	log := r.log.With("iteration", n)
	scope := r.ctl.Scope()
	if !scope.Full {
		r.readmit(scope.Items, log)
	}

	waves, err := r.plan(ctx, scope, log)
	if err != nil {
		return iterate.CycleResult{}, err
	}

	for i, w := range waves {
		if cerr := ctx.Err(); cerr != nil {
			log.Warn("run aborted between waves", "next_wave", w.Index)
			r.skipWaves(waves, i, log)
			return iterate.CycleResult{}, cerr
		}
		passed, werr := r.wave(ctx, w)
		if werr != nil {
			return iterate.CycleResult{}, werr
		}
		if !passed {
			r.skipWaves(waves, i+1, log)
			break
		}
	}

	res := iterate.CycleResult{
		NewlyCompleted: r.newlyCompleted,
		Regressed:      r.regressed,
		Added:          r.added,
		ChecksPassing:  r.checksPassing(),
		OpenGaps:       r.eng.led.Status().Blocked,
	}

	if r.eng.artifactDir != "" {
		if err := r.eng.led.Save(r.eng.artifactDir); err != nil {
			log.Warn("save cycle snapshot", "error", err)
		}
	}
	return res, nil
}

// readmit returns blocked and failed items from earlier cycles to the pool.
// A re-admitted item keeps its fix-attempt count: the new cycle buys it a
// fresh primary worker, not a fresh fix budget.
func (r *run) readmit(ids []string, log *logging.Logger) {
	for _, id := range ids {
		item, err := r.eng.led.Get(id)
		if err != nil {
			continue
		}
		switch item.Status {
		case work.StatusBlocked, work.StatusFailed:
			if err := r.eng.led.UpdateStatus(id, work.StatusReady); err != nil {
				log.Warn("re-admit item", "item", id, "error", err)
				continue
			}
			log.Info("item re-admitted", "item", id, "was", item.Status.String())
		}
	}
}

// plan turns the cycle's scope into an ordered wave layout: classify what
// has no tier yet, resolve file conflicts (escalating the undecidable ones),
// layer the dependency graph, admit the planned items, and make sure every
// risky item carries a failure note before any worker sees it.
func (r *run) plan(ctx context.Context, scope iterate.Scope, log *logging.Logger) ([]*work.Wave, error) {
	e := r.eng

	// Schedulable work outside a delta scope is parked, not dropped: it
	// keeps its records but is frozen out of this cycle's waves.
	schedulable := e.led.Schedulable()
	planning := schedulable
	var heldOut []string
	if !scope.Full {
		inScope := make(map[string]bool, len(scope.Items))
		for _, id := range scope.Items {
			inScope[id] = true
		}
		planning = nil
		for _, item := range schedulable {
			if inScope[item.ID] {
				planning = append(planning, item)
			} else {
				heldOut = append(heldOut, item.ID)
			}
		}
	}

	r.classify(planning, log)

	records, edges, err := r.resolveConflicts(ctx, planning, log)
	if err != nil {
		return nil, err
	}

	e.led.ResetWaves()

	pl, err := schedule.Build(schedule.Input{
		Items:  e.led.List(),
		Edges:  edges,
		Frozen: heldOut,
	})
	if err != nil {
		return nil, errors.Wrap(err, "layer waves")
	}

	for _, step := range pl.Merges {
		if err := e.led.RecordMerge(step.Composite, step.SourceIDs); err != nil {
			return nil, errors.Wrap(err, "record scheduler merge")
		}
		e.publish(event.NewItemsMergedEvent(step.Composite.ID, step.SourceIDs, step.Reason))
		r.added = append(r.added, step.Composite.ID)
		log.Info("dependency cycle folded",
			"composite", step.Composite.ID,
			"sources", strings.Join(step.SourceIDs, ","),
		)
	}

	for _, w := range pl.Waves {
		for _, id := range w.ItemIDs {
			if err := e.led.AssignWave(id, w.Index); err != nil {
				return nil, errors.Wrapf(err, "assign %s to wave %d", id, w.Index)
			}
		}
	}
	e.led.SetWaves(pl.Waves)

	if err := r.admit(pl.Waves); err != nil {
		return nil, err
	}

	if len(pl.Deferred) > 0 {
		log.Info("items deferred from this cycle",
			"count", len(pl.Deferred),
			"items", strings.Join(pl.Deferred, ","),
		)
	}

	if e.planWriter != nil {
		for _, item := range e.led.List() {
			if item.IsSuperseded() {
				continue
			}
			if err := e.planWriter.WriteItemPlan(item); err != nil {
				log.Warn("write item plan", "item", item.ID, "error", err)
			}
		}
		view := &conflict.Result{Records: records, Edges: edges}
		if err := e.planWriter.WriteCoordination(pl.Waves, view); err != nil {
			log.Warn("write coordination view", "error", err)
		}
	}

	log.Info("cycle planned",
		"waves", len(pl.Waves),
		"conflicts", len(records),
		"deferred", len(pl.Deferred),
	)
	return pl.Waves, nil
}

// classify assigns a tier to every planning item that has none. Tiers are
// sticky: an item classified in an earlier cycle keeps its tier, so the
// verification bar never silently drops between cycles.
func (r *run) classify(planning []*work.WorkItem, log *logging.Logger) {
	e := r.eng
	dependents := make(map[string]int)
	for _, item := range e.led.List() {
		if item.IsSuperseded() {
			continue
		}
		for _, dep := range item.DependsOn {
			dependents[dep]++
		}
	}

	for _, item := range planning {
		if item.RiskTier.IsValid() {
			continue
		}
		a := e.classifier.Classify(item, dependents[item.ID])
		if err := e.led.SetRisk(item.ID, a.Tier, a.Rationale); err != nil {
			log.Warn("record risk tier", "item", item.ID, "error", err)
			continue
		}
		// The local clone feeds the conflict resolver next; keep it current.
		item.RiskTier = a.Tier
		item.RiskRationale = a.Rationale
		log.Debug("item classified",
			"item", item.ID,
			"tier", a.Tier.String(),
			"rationale", a.Rationale,
		)
	}
}

// resolveConflicts runs the resolver over the planning set and then clears
// its escalations one by one: each gets a single round at the decision
// boundary, and an unanswered escalation folds both items into a composite
// so the cycle never stalls waiting on input.
func (r *run) resolveConflicts(ctx context.Context, planning []*work.WorkItem, log *logging.Logger) ([]conflict.Record, []conflict.Edge, error) {
	e := r.eng
	res := e.resolver.Resolve(planning)
	records := append([]conflict.Record(nil), res.Records...)
	edges := append([]conflict.Edge(nil), res.Edges...)

	for i, rec := range records {
		if rec.Resolution != conflict.ResolutionEscalate {
			continue
		}
		e.publish(event.NewConflictEscalatedEvent(rec.File, rec.ItemA, rec.ItemB))
		log.Warn("conflict escalated",
			"file", rec.File, "item_a", rec.ItemA, "item_b", rec.ItemB)

		winner, err := r.askCreator(ctx, rec)
		if err != nil {
			return nil, nil, err
		}
		if winner == "" {
			settled, err := r.mergeEscalated(rec, log)
			if err != nil {
				return nil, nil, err
			}
			records[i] = settled
			continue
		}

		settled, edge, err := e.resolver.ResolveEscalation(rec, winner)
		if err != nil {
			return nil, nil, err
		}
		loser, err := r.chase(edge.To)
		if err != nil {
			return nil, nil, err
		}
		if err := e.led.DemoteCreation(loser.ID, rec.File); err != nil {
			return nil, nil, errors.Wrapf(err, "demote %s on %s", loser.ID, rec.File)
		}
		records[i] = settled
		edges = append(edges, edge)
		log.Info("escalation decided",
			"file", rec.File, "creator", winner, "modifier", loser.ID)
	}
	return records, edges, nil
}

// askCreator puts one escalated create/create conflict to the decision
// boundary. An empty winner means no usable answer came back.
func (r *run) askCreator(ctx context.Context, rec conflict.Record) (string, error) {
	descA := r.describe(rec.ItemA)
	descB := r.describe(rec.ItemB)
	q := approval.Question{
		Subject: fmt.Sprintf("conflict on %s", rec.File),
		Detail: fmt.Sprintf(
			"Two items both plan to create %s.\n  %s: %s\n  %s: %s\nPick the item that creates the file; the other is demoted to modifying it.",
			rec.File, rec.ItemA, descA, rec.ItemB, descB),
		Options: []approval.Option{
			{ID: rec.ItemA, Label: descA},
			{ID: rec.ItemB, Label: descB},
		},
	}

	d, err := r.eng.decider.Decide(ctx, q)
	if err != nil {
		if errors.Is(err, errors.ErrNoDecision) {
			return "", nil
		}
		return "", errors.Wrap(err, "escalation decision")
	}
	if !q.Accepts(d) {
		return "", nil
	}
	return d.OptionID, nil
}

// mergeEscalated folds both sides of an undecided escalation into one
// composite item and returns the record rewritten accordingly.
func (r *run) mergeEscalated(rec conflict.Record, log *logging.Logger) (conflict.Record, error) {
	e := r.eng
	a, err := r.chase(rec.ItemA)
	if err != nil {
		return rec, err
	}
	b, err := r.chase(rec.ItemB)
	if err != nil {
		return rec, err
	}
	if a.ID == b.ID {
		// An earlier escalation already folded both sides together.
		return rec.Merged(a.ID), nil
	}

	id := r.nextCompositeID()
	composite := work.Merge(id, a, b)
	if err := e.led.RecordMerge(composite, []string{a.ID, b.ID}); err != nil {
		return rec, errors.Wrap(err, "record escalation merge")
	}
	e.publish(event.NewItemsMergedEvent(id, []string{a.ID, b.ID},
		fmt.Sprintf("unresolved escalation on %s", rec.File)))
	r.added = append(r.added, id)
	log.Info("escalation merged",
		"file", rec.File, "composite", id, "sources", a.ID+","+b.ID)
	return rec.Merged(id), nil
}

// admit readies every planned item and backfills failure notes so the wave
// vet never trips on a freshly built composite or an unannotated seed.
func (r *run) admit(waves []*work.Wave) error {
	e := r.eng
	for _, w := range waves {
		for _, id := range w.ItemIDs {
			item, err := e.led.Get(id)
			if err != nil {
				return err
			}
			if item.Status == work.StatusPending {
				if err := e.led.UpdateStatus(id, work.StatusReady); err != nil {
					return errors.Wrapf(err, "admit %s", id)
				}
			}
			if item.RiskTier.RequiresFailureNote() && !item.FailureNote.IsComplete() {
				if err := e.led.SetFailureNote(id, risk.DraftNote(item)); err != nil {
					return errors.Wrapf(err, "draft failure note for %s", id)
				}
			}
			item, err = e.led.Get(id)
			if err != nil {
				return err
			}
			if err := risk.VetForWave(item); err != nil {
				return errors.Wrapf(err, "vet %s for wave %d", id, w.Index)
			}
		}
	}
	return nil
}

// chase follows merge chains to the item currently carrying the given id's
// work.
func (r *run) chase(id string) (*work.WorkItem, error) {
	for {
		item, err := r.eng.led.Get(id)
		if err != nil {
			return nil, err
		}
		if item.MergedInto == "" {
			return item, nil
		}
		id = item.MergedInto
	}
}

// nextCompositeID picks the first free merged-N id, matching the naming the
// scheduler uses for its own cycle composites.
func (r *run) nextCompositeID() string {
	used := make(map[string]struct{})
	for _, item := range r.eng.led.List() {
		used[item.ID] = struct{}{}
	}
	for n := 1; ; n++ {
		id := fmt.Sprintf("merged-%d", n)
		if _, ok := used[id]; !ok {
			return id
		}
	}
}

func (r *run) describe(id string) string {
	item, err := r.eng.led.Get(id)
	if err != nil {
		return id
	}
	return item.Description
}

// skipWaves marks the still-pending waves from index on as skipped.
func (r *run) skipWaves(waves []*work.Wave, from int, log *logging.Logger) {
	for _, w := range waves[from:] {
		cur, err := r.eng.led.Wave(w.Index)
		if err != nil || cur.Status != work.WavePending {
			continue
		}
		if err := r.eng.led.SetWaveStatus(w.Index, work.WaveSkipped); err != nil {
			log.Warn("skip wave", "wave", w.Index, "error", err)
			continue
		}
		log.Info("wave skipped", "wave", w.Index)
	}
}

// checksPassing reports whether every wave the cycle planned ended passed.
// A cycle that planned no waves has nothing failing.
func (r *run) checksPassing() bool {
	for _, w := range r.eng.led.Waves() {
		if w.Status != work.WavePassed {
			return false
		}
	}
	return true
}
