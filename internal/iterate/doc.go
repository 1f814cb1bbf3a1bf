// Package iterate drives the convergence loop of an iterative run.
//
// A [Controller] tracks one run through the state machine
//
//	running -> complete | stalled | max_iterations_reached
//
// and never leaves it anywhere else: every run ends in exactly one of the
// three terminal states.
//
// # Usage
//
// The coordinator opens each cycle with [Controller.Begin], consults
// [Controller.Scope] for what to replan, runs the pipeline, and reports
// back through [Controller.Finish]:
//
//	ctl := iterate.New(cfg.Iteration, led)
//	for {
//	    if _, err := ctl.Begin(); err != nil {
//	        break
//	    }
//	    res := runCycle(ctx, ctl.Scope())
//	    if ctl.Finish(res).IsTerminal() {
//	        break
//	    }
//	}
//
// The first cycle replans everything. Later cycles get a delta scope
// covering only regressed items, open must-have work, and gaps discovered
// after the initial plan; the rest of the record store is left alone.
//
// # Circuit Breaker
//
// Finish computes the priority-weighted completion count from the ledger
// and compares it to the previous cycle's. When the count holds still for
// the configured number of consecutive cycles the run halts as stalled,
// whatever iteration budget remains. This is a hard stop, not a heuristic;
// it is what keeps a non-converging task set from burning workers forever.
package iterate
