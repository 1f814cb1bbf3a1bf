// Package engine drives a full run end to end. Each cycle it plans the open
// work into waves: classifying risk, resolving file conflicts, escalating
// the undecidable ones, and layering the dependency graph. It then dispatches
// the waves to parallel workers, gates every wave through verification with
// tier-scaled rigor, recovers failures with targeted fix workers, and hands
// the cycle's outcome to the iteration controller until the run converges or
// halts.
//
// The engine owns the single write path to the record store. Workers run
// concurrently but only report outcomes; every status transition they cause
// funnels through the engine's recorder, so no two goroutines ever race on
// an item.
package engine
