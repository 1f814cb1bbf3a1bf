package engine

import (
	"sort"

	"github.com/tidelab/swell/internal/drift"
	"github.com/tidelab/swell/internal/ledger"
	"github.com/tidelab/swell/internal/work"
)

// RunReport is the engine's account of a finished run.
type RunReport struct {
	// RunID is the short identifier the run's events were published under.
	RunID string

	// State is the controller's final ruling. An aborted run never reaches
	// a ruling and keeps RunRunning with Aborted set.
	State work.RunState

	// Iterations counts the cycles the run performed.
	Iterations int

	// Aborted reports that the run stopped on a cancelled context. The wave
	// in flight at the time still finished and its results were recorded;
	// later waves were skipped.
	Aborted bool

	// Summary is the record store's status census at the end of the run.
	Summary ledger.Summary

	// Waves is the last cycle's wave layout with per-wave status and
	// verdict.
	Waves []*work.Wave

	// Blocked lists items still blocked when the run ended, sorted by id.
	// These exhausted their fix budget and need outside help.
	Blocked []string

	// Findings lists writes the drift watcher saw land outside any worker's
	// owned file set.
	Findings []drift.Finding
}

// blockedIDs returns the ids of blocked items, sorted.
func blockedIDs(led *ledger.Ledger) []string {
	var ids []string
	for _, item := range led.List() {
		if item.Status == work.StatusBlocked && !item.IsSuperseded() {
			ids = append(ids, item.ID)
		}
	}
	sort.Strings(ids)
	return ids
}
