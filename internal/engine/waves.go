package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidelab/swell/internal/approval"
	"github.com/tidelab/swell/internal/dispatch"
	"github.com/tidelab/swell/internal/errors"
	"github.com/tidelab/swell/internal/event"
	"github.com/tidelab/swell/internal/logging"
	"github.com/tidelab/swell/internal/verify"
	"github.com/tidelab/swell/internal/work"
)

const (
	recoverFix      = "fix"
	recoverRollback = "rollback"
)

// wave runs one wave start to finish: claim exclusive file ownership,
// dispatch the workers, then hold the wave at the verification gate until it
// settles. The returned bool reports whether the wave passed with every
// member completed.
//
// The wave runs on a context detached from the run's: an abort takes effect
// between waves, never mid-wave, so in-flight workers always finish and
// their results are recorded.
func (r *run) wave(ctx context.Context, w *work.Wave) (bool, error) {
	e := r.eng
	log := r.log.WithWave(w.Index)
	waveCtx := context.WithoutCancel(ctx)

	if err := e.led.SetWaveStatus(w.Index, work.WaveRunning); err != nil {
		return false, err
	}

	items, err := r.members(w)
	if err != nil {
		return false, err
	}

	// Every member claims its whole file set or the wave is unsound: the
	// scheduler must never co-schedule overlapping owners.
	claimed := make([]string, 0, len(items))
	defer func() {
		for _, id := range claimed {
			e.registry.ReleaseAll(id)
		}
	}()
	for _, item := range items {
		if err := e.registry.ClaimAll(item.ID, item.AllFiles()); err != nil {
			return false, errors.NewDispatchError("wave ownership overlap", err).
				WithWave(w.Index).WithItemID(item.ID)
		}
		claimed = append(claimed, item.ID)
	}

	if r.watcher != nil {
		r.watcher.Reset()
	}

	reqs := make([]dispatch.Request, 0, len(items))
	for _, item := range items {
		reqs = append(reqs, dispatch.Request{
			WorkItemID:     item.ID,
			Description:    item.Description,
			ExclusiveFiles: item.AllFiles(),
			ContextSummary: r.contextFor(item),
		})
	}

	summaries := make(map[string]string, len(items))
	failDetail := make(map[string]string)
	rep, err := e.dispatcher.Run(waveCtx, w.Index, reqs)
	if err != nil {
		return false, err
	}
	r.recordOutcomes(rep, summaries, failDetail)

	passed, verdict, err := r.holdAtGate(waveCtx, w, summaries, failDetail, log)
	if err != nil {
		return false, err
	}

	if findings := r.collectFindings(log); findings > 0 && passed && verdict == work.VerdictPass {
		verdict = work.VerdictPassWithWarnings
		log.Warn("wave passed with out-of-lane writes", "findings", findings)
	}

	if err := e.led.SetWaveVerdict(w.Index, verdict); err != nil {
		return false, err
	}
	status := work.WaveFailed
	if passed {
		status = work.WavePassed
	}
	if err := e.led.SetWaveStatus(w.Index, status); err != nil {
		return false, err
	}
	log.Info("wave settled", "status", status.String(), "verdict", verdict.String())
	return passed, nil
}

// holdAtGate cycles the wave between verification and recovery until it
// settles: either a passing ruling ends it, or every failing member is
// fixed, blocked, or rolled back and nothing dispatchable remains.
func (r *run) holdAtGate(ctx context.Context, w *work.Wave, summaries, failDetail map[string]string, log *logging.Logger) (bool, work.Verdict, error) {
	e := r.eng
	var verifFailed map[string]bool
	var issues []verify.Issue

	// Every round either completes the wave or consumes fix budget, so a
	// wave that never settles inside this bound is an engine defect.
	maxRounds := len(w.ItemIDs)*(e.settings.Verify.MaxFixAttempts+2) + 2
	for round := 0; ; round++ {
		if round > maxRounds {
			return false, work.VerdictFail,
				errors.NewVerificationError("wave never settled at the gate", nil).WithWave(w.Index)
		}

		members, err := r.members(w)
		if err != nil {
			return false, work.VerdictFail, err
		}

		var failed []*work.WorkItem
		for _, item := range members {
			if item.Status == work.StatusFailed {
				failed = append(failed, item)
			}
		}
		if len(failed) > 0 {
			fixReqs, rerr := r.recover(ctx, w, failed, verifFailed, issues, failDetail)
			if rerr != nil {
				return false, work.VerdictFail, rerr
			}
			if len(fixReqs) > 0 {
				rep, derr := e.dispatcher.Run(ctx, w.Index, fixReqs)
				if derr != nil {
					return false, work.VerdictFail, derr
				}
				r.recordOutcomes(rep, summaries, failDetail)
				continue
			}
			// Every failed member settled as blocked or rolled back; the
			// survivors still face the gate.
		}

		var landed []*work.WorkItem
		for _, item := range members {
			if item.Status == work.StatusInProgress || item.Status == work.StatusCompleted {
				landed = append(landed, item)
			}
		}
		if len(landed) == 0 {
			log.Warn("nothing landed; the wave fails without verification")
			return false, work.VerdictFail, nil
		}

		if err := e.led.SetWaveStatus(w.Index, work.WaveVerifying); err != nil {
			return false, work.VerdictFail, err
		}
		ruling, verr := e.gate.Verify(ctx, verify.NewReview(w.Index, landed, summaries))
		if verr != nil {
			return false, work.VerdictFail, verr
		}
		if err := r.settle(w, landed, ruling, log); err != nil {
			return false, work.VerdictFail, err
		}

		if ruling.Verdict.IsPassing() {
			passed, perr := r.allCompleted(w)
			if perr != nil {
				return false, ruling.Verdict, perr
			}
			return passed, ruling.Verdict, nil
		}

		verifFailed = make(map[string]bool, len(ruling.FailedItems))
		for _, id := range ruling.FailedItems {
			verifFailed[id] = true
		}
		issues = ruling.Issues
		if err := e.led.SetWaveStatus(w.Index, work.WaveRunning); err != nil {
			return false, work.VerdictFail, err
		}
	}
}

// settle applies a ruling to the items it reviewed. Partial rollback rule:
// only the failing items lose their landed work; wave-mates that passed
// keep theirs.
func (r *run) settle(w *work.Wave, landed []*work.WorkItem, ruling *verify.Ruling, log *logging.Logger) error {
	e := r.eng
	failed := make(map[string]bool, len(ruling.FailedItems))
	for _, id := range ruling.FailedItems {
		failed[id] = true
	}

	for _, item := range landed {
		switch {
		case !failed[item.ID] && item.Status == work.StatusInProgress:
			if err := e.led.UpdateStatus(item.ID, work.StatusCompleted); err != nil {
				return err
			}
			r.newlyCompleted = append(r.newlyCompleted, item.ID)

		case failed[item.ID] && item.Status == work.StatusInProgress:
			if err := e.led.UpdateStatus(item.ID, work.StatusFailed); err != nil {
				return err
			}
			log.Warn("verification rejected item",
				"item", item.ID, "reason", issueFor(item.ID, ruling.Issues))

		case failed[item.ID] && item.Status == work.StatusCompleted:
			// A wave-mate that settled in an earlier round regressed under
			// the latest one; it re-runs in the next cycle.
			if err := e.led.UpdateStatus(item.ID, work.StatusReady); err != nil {
				return err
			}
			r.newlyCompleted = removeID(r.newlyCompleted, item.ID)
			r.regressed = append(r.regressed, item.ID)
			log.Warn("settled wave-mate regressed",
				"item", item.ID, "reason", issueFor(item.ID, ruling.Issues))
		}
	}
	return nil
}

// recover decides the fate of each failed member: out of budget means
// blocked, a failing tier 3 item goes to the decision boundary (and rolls
// back by default), and everything else gets a targeted fix worker.
func (r *run) recover(ctx context.Context, w *work.Wave, failed []*work.WorkItem, verifFailed map[string]bool, issues []verify.Issue, failDetail map[string]string) ([]dispatch.Request, error) {
	e := r.eng
	log := r.log.WithWave(w.Index)
	budget := e.settings.Verify.MaxFixAttempts

	var fixReqs []dispatch.Request
	for _, item := range failed {
		if item.FixAttempts >= budget {
			if err := e.led.UpdateStatus(item.ID, work.StatusBlocked); err != nil {
				return nil, err
			}
			log.Warn("fix budget exhausted; item blocked",
				"item", item.ID, "attempts", item.FixAttempts)
			continue
		}

		if verifFailed[item.ID] && item.RiskTier >= work.Tier3 {
			choice, err := r.askRecovery(ctx, item, issues)
			if err != nil {
				return nil, err
			}
			if choice == recoverRollback {
				reason := issueFor(item.ID, issues)
				if err := e.led.UpdateStatus(item.ID, work.StatusRolledBack); err != nil {
					return nil, err
				}
				e.publish(event.NewItemRolledBackEvent(item.ID, w.Index, reason))
				log.Warn("item rolled back", "item", item.ID, "reason", reason)
				continue
			}
		}

		n, err := e.led.IncrementFixAttempts(item.ID)
		if err != nil {
			return nil, err
		}
		fixReqs = append(fixReqs, r.fixRequest(item, n, budget, verifFailed[item.ID], issues, failDetail))
		log.Info("dispatching fix worker", "item", item.ID, "attempt", n)
	}
	return fixReqs, nil
}

// askRecovery puts a failing tier 3 item to the decision boundary. With no
// usable answer the item rolls back: for irreversible work, backing out
// beats guessing.
func (r *run) askRecovery(ctx context.Context, item *work.WorkItem, issues []verify.Issue) (string, error) {
	rollbackPlan := "none recorded"
	if item.FailureNote != nil && item.FailureNote.FastestRollback != "" {
		rollbackPlan = item.FailureNote.FastestRollback
	}
	q := approval.Question{
		Subject: fmt.Sprintf("recover %s", item.ID),
		Detail: fmt.Sprintf("%s item %s failed verification: %s\nRollback plan: %s",
			item.RiskTier.String(), item.ID, issueFor(item.ID, issues), rollbackPlan),
		Options: []approval.Option{
			{ID: recoverFix, Label: "Dispatch a targeted fix worker"},
			{ID: recoverRollback, Label: "Revert the item's work and roll it back"},
		},
	}

	d, err := r.eng.decider.Decide(ctx, q)
	if err != nil {
		if errors.Is(err, errors.ErrNoDecision) {
			return recoverRollback, nil
		}
		return "", errors.Wrap(err, "recovery decision")
	}
	if !q.Accepts(d) {
		return recoverRollback, nil
	}
	return d.OptionID, nil
}

// fixRequest builds the request for a targeted fix worker: same item, same
// ownership, plus the reason the previous result was rejected.
func (r *run) fixRequest(item *work.WorkItem, attempt, budget int, fromVerification bool, issues []verify.Issue, failDetail map[string]string) dispatch.Request {
	detail := failDetail[item.ID]
	if fromVerification {
		detail = issueFor(item.ID, issues)
	}
	if detail == "" {
		detail = "the previous worker did not deliver a usable result"
	}
	return dispatch.Request{
		WorkItemID:     item.ID,
		Description:    item.Description,
		ExclusiveFiles: item.AllFiles(),
		ContextSummary: fmt.Sprintf(
			"Fix attempt %d of %d. The previous result was rejected: %s. Correct this without reworking what already passed.",
			attempt, budget, detail),
	}
}

// contextFor summarizes for a worker whatever history its item carries into
// the wave.
func (r *run) contextFor(item *work.WorkItem) string {
	var parts []string
	if len(item.MergedFrom) > 0 {
		parts = append(parts, fmt.Sprintf(
			"This item folds the formerly separate items %s; reconcile their intents in one coherent change.",
			strings.Join(item.MergedFrom, ", ")))
	}
	if r.prevRegressed[item.ID] {
		parts = append(parts,
			"An earlier iteration completed this item but verification later found it broken; restore it without disturbing settled work.")
	}
	return strings.Join(parts, " ")
}

// recordOutcomes folds a dispatch report into the wave's summary and
// failure-detail maps.
func (r *run) recordOutcomes(rep *dispatch.Report, summaries, failDetail map[string]string) {
	for _, out := range rep.Outcomes {
		if out.Succeeded() {
			summaries[out.ItemID] = out.Result.Summary
			delete(failDetail, out.ItemID)
			continue
		}
		detail := out.Result.ErrorDetail
		if detail == "" && out.Err != nil {
			detail = out.Err.Error()
		}
		failDetail[out.ItemID] = detail
	}
}

// members returns fresh clones of the wave's items.
func (r *run) members(w *work.Wave) ([]*work.WorkItem, error) {
	items := make([]*work.WorkItem, 0, len(w.ItemIDs))
	for _, id := range w.ItemIDs {
		item, err := r.eng.led.Get(id)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// allCompleted reports whether every member of the wave is completed.
func (r *run) allCompleted(w *work.Wave) (bool, error) {
	members, err := r.members(w)
	if err != nil {
		return false, err
	}
	for _, item := range members {
		if item.Status != work.StatusCompleted {
			return false, nil
		}
	}
	return true, nil
}

// collectFindings drains the drift watcher into the report and returns how
// many findings the wave produced.
func (r *run) collectFindings(log *logging.Logger) int {
	if r.watcher == nil {
		return 0
	}
	findings := r.watcher.Findings()
	for _, f := range findings {
		log.Warn("out-of-lane write", "path", f.Path, "op", f.Op)
	}
	r.report.Findings = append(r.report.Findings, findings...)
	return len(findings)
}

// issueFor picks the most specific issue for an item: its own first, then a
// wave-wide one.
func issueFor(itemID string, issues []verify.Issue) string {
	var waveWide string
	for _, issue := range issues {
		if issue.ItemID == itemID {
			return issue.Description
		}
		if issue.ItemID == "" && waveWide == "" {
			waveWide = issue.Description
		}
	}
	if waveWide != "" {
		return waveWide
	}
	return "verification failed"
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, cur := range ids {
		if cur != id {
			out = append(out, cur)
		}
	}
	return out
}
