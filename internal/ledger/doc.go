// Package ledger provides the single-writer record store backing a run.
//
// The ledger holds every work item, the current wave plan, and the
// append-only iteration log. It is owned by the coordinator: workers never
// write to it directly, they report results back to the coordinator, which
// performs the one write. All cross-component coordination flows through
// that single writer, so readers only ever see consistent snapshots.
//
// The core type is [Ledger]. Mutating methods enforce the item lifecycle
// (no shortcut from pending to completed, superseded items are frozen) and
// wave-assignment immutability. Accessors hand out deep copies so a caller
// can never reach the internal state.
//
// Ledger state can be persisted to a run directory and restored, enabling
// crash recovery and post-run audit. Records are never deleted: superseded
// and rolled-back items stay in the store.
//
// Usage:
//
//	led := ledger.New()
//	_ = led.Add(work.NewItem("item-1", "add login handler"))
//
//	// Coordinator drives all mutations.
//	_ = led.UpdateStatus("item-1", work.StatusReady)
//	_ = led.UpdateStatus("item-1", work.StatusInProgress)
//	_ = led.UpdateStatus("item-1", work.StatusCompleted)
//
//	_ = led.Save(runDir)
package ledger
