package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/tidelab/swell/internal/event"
)

// Progress returns a bus handler that narrates a run as one line per
// noteworthy event. It is the plain-terminal counterpart of the live
// dashboard; the final summary is rendered separately once the run ends.
func Progress(out io.Writer) event.Handler {
	return func(ev event.Event) {
		switch ev := ev.(type) {
		case event.RunStartedEvent:
			fmt.Fprintf(out, "run %s started with %s\n",
				ev.RunID, plural(ev.ItemCount, "item"))

		case event.WaveStartedEvent:
			fmt.Fprintf(out, "wave %d: %s, ceiling %d\n",
				ev.Index, plural(len(ev.ItemIDs), "item"), ev.Parallelism)

		case event.WaveVerifiedEvent:
			style := okStyle
			if !ev.Verdict.IsPassing() {
				style = errStyle
			}
			fmt.Fprintf(out, "wave %d verdict: %s\n",
				ev.Index, style.Render(fmt.Sprintf("%s (%s)", ev.Verdict, plural(ev.Issues, "issue"))))

		case event.ItemDispatchedEvent:
			fmt.Fprintln(out, mutedStyle.Render(
				fmt.Sprintf("  → %s on %s", ev.ItemID, ev.WorkerID)))

		case event.ItemFinishedEvent:
			if ev.Success {
				fmt.Fprintf(out, "  %s %s\n", okStyle.Render("✓"), ev.ItemID)
			} else {
				fmt.Fprintf(out, "  %s %s\n", errStyle.Render("✗"), ev.ItemID)
			}

		case event.ItemRolledBackEvent:
			fmt.Fprintln(out, warnStyle.Render(
				fmt.Sprintf("  ↩ %s rolled back: %s", ev.ItemID, ev.Reason)))

		case event.WorkerStuckEvent:
			fmt.Fprintln(out, warnStyle.Render(
				fmt.Sprintf("  worker %s stuck on %s, %s takes over",
					ev.WorkerID, ev.ItemID, ev.ReplacementID)))

		case event.ConflictEscalatedEvent:
			fmt.Fprintln(out, warnStyle.Render(
				fmt.Sprintf("conflict on %s: %s vs %s", ev.File, ev.ItemA, ev.ItemB)))

		case event.ItemsMergedEvent:
			fmt.Fprintln(out, warnStyle.Render(
				fmt.Sprintf("%s folded into %s",
					strings.Join(ev.SourceIDs, ", "), ev.CompositeID)))

		case event.IterationFinishedEvent:
			fmt.Fprintf(out, "cycle %d finished, completed weight %d\n",
				ev.Iteration, ev.CompletedWeight)
		}
	}
}
