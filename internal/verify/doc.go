// Package verify rules on completed waves.
//
// After a wave's workers report back, the [Gate] assembles a [Review] of
// what changed, hands it to the configured [Checker], and turns the
// checker's [Report] into a final [Ruling]. The depth of checking scales
// with the riskiest item in the wave, captured as the review's [Rigor]:
//
//   - tier 0: checks relevant to the changed files
//   - tier 1: plus a regression pass across affected modules
//   - tier 2: plus access-control and data-handling validation
//   - tier 3: plus an external rollback plan and an explicit confirmation
//     decision before the wave may pass
//
// A failing ruling names the items to recover so that passing wave-mates
// stay untouched. The gate never writes item state itself; the caller
// applies rulings to the ledger.
package verify
