package report

import (
	"strings"
	"testing"

	"github.com/tidelab/swell/internal/event"
	"github.com/tidelab/swell/internal/work"
)

func TestProgress_NarratesTheRun(t *testing.T) {
	var buf strings.Builder
	narrate := Progress(&buf)

	narrate(event.NewRunStartedEvent("ab12cd34", 2, false))
	narrate(event.NewWaveStartedEvent(1, []string{"item-a", "item-b"}, 2))
	narrate(event.NewItemDispatchedEvent("item-a", 1, "worker-1"))
	narrate(event.NewItemFinishedEvent("item-a", 1, true, "done"))
	narrate(event.NewItemFinishedEvent("item-b", 1, false, ""))
	narrate(event.NewWaveVerifiedEvent(1, work.VerdictFail, 1))
	narrate(event.NewItemRolledBackEvent("item-b", 1, "verification failed"))

	out := buf.String()
	for _, want := range []string{
		"run ab12cd34 started with 2 items",
		"wave 1: 2 items, ceiling 2",
		"item-a on worker-1",
		"item-a",
		"item-b rolled back: verification failed",
		"wave 1 verdict:",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("narration is missing %q:\n%s", want, out)
		}
	}
}

func TestProgress_StaysQuietOnRunFinished(t *testing.T) {
	var buf strings.Builder
	Progress(&buf)(event.NewRunFinishedEvent("ab12cd34", work.RunComplete, 1, 2, 0))
	if buf.Len() != 0 {
		t.Errorf("run.finished printed %q; the summary renders it instead", buf.String())
	}
}
