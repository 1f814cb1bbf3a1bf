package work

import "fmt"

// allowedTransitions defines the permitted item lifecycle changes.
//
// There is deliberately no path from pending straight to completed: an item
// has to be admitted (ready) and dispatched (in_progress) first. Completed
// items may only move back to ready, which happens when a later iteration
// detects a regression. Failed items are retried in place by a fix worker,
// re-admitted as ready by a later iteration, or rolled back for good.
// Rolled-back items stay where they are.
var allowedTransitions = map[Status]map[Status]struct{}{
	StatusPending: {
		StatusReady:   {},
		StatusBlocked: {},
	},
	StatusBlocked: {
		StatusReady:   {},
		StatusPending: {},
	},
	StatusReady: {
		StatusInProgress: {},
		StatusBlocked:    {},
	},
	StatusInProgress: {
		StatusCompleted: {},
		StatusFailed:    {},
	},
	StatusCompleted: {
		StatusReady: {},
	},
	StatusFailed: {
		StatusInProgress: {},
		StatusReady:      {},
		StatusBlocked:    {},
		StatusRolledBack: {},
	},
	StatusRolledBack: {},
}

// IsValidTransition reports whether the lifecycle allows the requested change.
func IsValidTransition(from Status, to Status) bool {
	if from == "" || to == "" {
		return false
	}
	allowed, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	_, ok = allowed[to]
	return ok
}

// ValidateTransition returns an error when a lifecycle change is not allowed.
func ValidateTransition(from Status, to Status) error {
	if !IsValidTransition(from, to) {
		return fmt.Errorf("invalid work item status transition from %q to %q", from, to)
	}
	return nil
}
