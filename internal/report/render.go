// Package report renders run state for the terminal: the wave diagram, the
// task table, conflict resolutions, and the end-of-run summary. Everything
// returns a string; callers decide where it goes.
package report

import (
	"fmt"
	"strings"

	"github.com/tidelab/swell/internal/conflict"
	"github.com/tidelab/swell/internal/engine"
	"github.com/tidelab/swell/internal/ledger"
	"github.com/tidelab/swell/internal/work"
)

// RunSummary renders the terminal banner for a finished (or aborted) run.
func RunSummary(rep *engine.RunReport) string {
	var b strings.Builder

	state := runStateStyle(rep.State).Render(stateLabel(rep.State))
	if rep.Aborted {
		b.WriteString(fmt.Sprintf("run %s %s after %s (aborted)\n",
			titleStyle.Render(rep.RunID), state, plural(rep.Iterations, "iteration")))
	} else {
		b.WriteString(fmt.Sprintf("run %s %s after %s\n",
			titleStyle.Render(rep.RunID), state, plural(rep.Iterations, "iteration")))
	}

	s := rep.Summary
	b.WriteString(mutedStyle.Render(fmt.Sprintf(
		"  completed %d of %d · blocked %d · rolled back %d",
		s.Completed, s.Total-s.Superseded, s.Blocked, s.RolledBack)))
	b.WriteString("\n")

	if len(rep.Blocked) > 0 {
		b.WriteString(errStyle.Render("  blocked: " + strings.Join(rep.Blocked, ", ")))
		b.WriteString("\n")
	}
	if n := len(rep.Findings); n > 0 {
		b.WriteString(warnStyle.Render(fmt.Sprintf("  out-of-lane writes: %d", n)))
		b.WriteString("\n")
	}
	return b.String()
}

// WaveDiagram renders one line per wave: status glyph, verdict, members.
func WaveDiagram(waves []*work.Wave) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("waves"))
	b.WriteString("\n")
	if len(waves) == 0 {
		b.WriteString(mutedStyle.Render("  none scheduled"))
		b.WriteString("\n")
		return b.String()
	}
	for _, w := range waves {
		if w == nil {
			continue
		}
		verdict := "-"
		if w.Verdict != "" {
			verdict = w.Verdict.String()
		}
		line := fmt.Sprintf("  %s wave %-2d %-18s %s",
			waveGlyph(w.Status), w.Index, verdict, strings.Join(w.ItemIDs, ", "))
		b.WriteString(waveStyle(w.Status).Render(line))
		b.WriteString("\n")
	}
	return b.String()
}

// TaskTable renders every item with its status, priority, tier, wave, and
// fix-attempt count. Superseded items point at their composite.
func TaskTable(items []*work.WorkItem) string {
	var b strings.Builder
	idW := len("item")
	for _, item := range items {
		if len(item.ID) > idW {
			idW = len(item.ID)
		}
	}

	b.WriteString(headerStyle.Render(fmt.Sprintf(
		"  %-*s  %-12s  %-4s  %-12s  %-5s  %-4s  %s",
		idW, "item", "status", "pri", "tier", "wave", "fix", "files")))
	b.WriteString("\n")

	for _, item := range items {
		if item.IsSuperseded() {
			b.WriteString(mutedStyle.Render(fmt.Sprintf(
				"  %-*s  folded into %s", idW, item.ID, item.MergedInto)))
			b.WriteString("\n")
			continue
		}
		wave := "-"
		if item.Wave > 0 {
			wave = fmt.Sprintf("%d", item.Wave)
		}
		line := fmt.Sprintf("  %-*s  %-12s  %-4s  %-12s  %-5s  %-4d  %d",
			idW, item.ID, item.Status.String(), item.Priority.String(),
			item.RiskTier.String(), wave, item.FixAttempts, len(item.AllFiles()))
		b.WriteString(statusStyle(item.Status).Render(line))
		b.WriteString("\n")
	}
	return b.String()
}

// ConflictTable renders the resolver's records: which files collided, who
// claims them, and how the collision was settled.
func ConflictTable(records []conflict.Record) string {
	if len(records) == 0 {
		return mutedStyle.Render("no overlapping files") + "\n"
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render("conflicts"))
	b.WriteString("\n")
	for _, rec := range records {
		order := ""
		if rec.First != "" && rec.Second != "" {
			order = fmt.Sprintf(" (%s before %s)", rec.First, rec.Second)
		}
		style := mutedStyle
		if rec.Resolution == conflict.ResolutionEscalate {
			style = warnStyle
		}
		b.WriteString(style.Render(fmt.Sprintf("  %s: %s vs %s → %s%s",
			rec.File, rec.ItemA, rec.ItemB, rec.Resolution, order)))
		b.WriteString("\n")
		if rec.Reason != "" {
			b.WriteString(mutedStyle.Render("      " + rec.Reason))
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Escalations renders the unresolved escalations and the items frozen
// behind them. Empty when nothing awaits a decision.
func Escalations(res *conflict.Result) string {
	if res == nil || !res.HasEscalations() {
		return ""
	}
	var b strings.Builder
	b.WriteString(warnStyle.Render("awaiting decision"))
	b.WriteString("\n")
	for _, rec := range res.Escalations() {
		b.WriteString(warnStyle.Render(fmt.Sprintf(
			"  %s: %s vs %s both create this file", rec.File, rec.ItemA, rec.ItemB)))
		b.WriteString("\n")
	}
	if frozen := res.FrozenItems(); len(frozen) > 0 {
		b.WriteString(mutedStyle.Render("  frozen until decided: " + strings.Join(frozen, ", ")))
		b.WriteString("\n")
	}
	return b.String()
}

// StoreSummary renders the record store's bucket counts on one line.
func StoreSummary(s ledger.Summary) string {
	parts := []string{}
	for _, bucket := range []struct {
		label string
		n     int
	}{
		{"pending", s.Pending},
		{"ready", s.Ready},
		{"in progress", s.InProgress},
		{"completed", s.Completed},
		{"failed", s.Failed},
		{"blocked", s.Blocked},
		{"rolled back", s.RolledBack},
		{"superseded", s.Superseded},
	} {
		if bucket.n > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", bucket.label, bucket.n))
		}
	}
	if len(parts) == 0 {
		return mutedStyle.Render("no items") + "\n"
	}
	return fmt.Sprintf("%d items: %s\n", s.Total, strings.Join(parts, " · "))
}

func stateLabel(s work.RunState) string {
	switch s {
	case work.RunComplete:
		return "complete"
	case work.RunStalled:
		return "stalled"
	case work.RunMaxIterations:
		return "out of iterations"
	default:
		return "still running"
	}
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
