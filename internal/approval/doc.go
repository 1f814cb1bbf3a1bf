// Package approval is the human decision boundary for a run.
//
// Two situations need an answer from outside the pipeline: a create/create
// conflict that automated resolution escalated, and a wave whose riskiest
// change demands explicit confirmation before it may pass verification.
// Both are phrased as a [Question] with a fixed set of [Option] answers and
// put to a [Decider].
//
// The package ships three deciders:
//
//   - [Prompt] asks on a terminal and reads the answer back.
//   - [Scripted] answers from a fixed table, for non-interactive runs.
//   - [DeciderFunc] adapts any function, for tests and embedding.
//
// A decider that cannot produce a usable answer returns an error wrapping
// ErrNoDecision; callers fall back to their own conservative default
// (escalated conflicts merge, tier 3 confirmations are withheld).
package approval
