package engine

import (
	"github.com/tidelab/swell/internal/dispatch"
	"github.com/tidelab/swell/internal/ledger"
	"github.com/tidelab/swell/internal/logging"
	"github.com/tidelab/swell/internal/work"
)

// recorder is the engine's half of the single-writer contract. The
// dispatcher's worker goroutines call it; every transition a worker causes
// lands in the record store through these two callbacks and nowhere else.
// The store's own lock serializes them.
type recorder struct {
	led *ledger.Ledger
	log *logging.Logger
}

var _ dispatch.Observer = (*recorder)(nil)

// OnWorkerStarted moves the item to in_progress. The replacement for a stuck
// worker finds the item already in_progress and leaves it alone.
func (r *recorder) OnWorkerStarted(itemID, workerID string) {
	item, err := r.led.Get(itemID)
	if err != nil {
		r.log.Error("worker started for unknown item",
			"item", itemID, "worker", workerID, "error", err)
		return
	}

	switch item.Status {
	case work.StatusInProgress:
		// Replacement takeover; the first worker already recorded the start.
	case work.StatusReady, work.StatusFailed:
		if err := r.led.UpdateStatus(itemID, work.StatusInProgress); err != nil {
			r.log.Error("record dispatch", "item", itemID, "error", err)
		}
	default:
		r.log.Error("worker started for item outside the dispatchable states",
			"item", itemID, "status", item.Status.String(), "worker", workerID)
	}
}

// OnWorkerFinished records a failed delivery. Success is deliberately not
// recorded here: an item only completes once its whole wave passes
// verification, and that ruling belongs to the coordinating goroutine.
func (r *recorder) OnWorkerFinished(out *dispatch.Outcome) {
	if out.Succeeded() {
		return
	}

	item, err := r.led.Get(out.ItemID)
	if err != nil {
		r.log.Error("worker finished for unknown item", "item", out.ItemID, "error", err)
		return
	}
	if item.Status != work.StatusInProgress {
		// A wave cancelled before this item's worker ran leaves it ready;
		// nothing was attempted, so nothing is recorded.
		return
	}
	if err := r.led.UpdateStatus(out.ItemID, work.StatusFailed); err != nil {
		r.log.Error("record worker failure", "item", out.ItemID, "error", err)
	}
}
