// Package event provides a pub-sub bus for decoupled communication
// between the run coordinator, the dashboard, and the run log.
//
// Components publish what happened without knowing who listens, and
// observers subscribe without knowing who produces. The coordinator is
// the main publisher; the dashboard and log writer are the usual
// subscribers.
//
// # Main Types
//
//   - [Event]: interface all events implement, providing EventType() and Timestamp()
//   - [Bus]: synchronous pub-sub dispatcher, safe for concurrent use
//   - [Handler]: function type for event handlers (func(Event))
//
// # Event Categories
//
// Run lifecycle:
//   - [RunStartedEvent], [RunFinishedEvent]
//
// Waves:
//   - [WaveStartedEvent]: the dispatcher picked up a wave
//   - [WaveVerifiedEvent]: the verification gate ruled on a wave
//
// Items and workers:
//   - [ItemDispatchedEvent], [ItemFinishedEvent], [ItemRolledBackEvent]
//   - [WorkerStuckEvent]: a timed-out worker was replaced
//
// Conflicts:
//   - [ConflictEscalatedEvent]: a create/create overlap awaits a decision
//   - [ItemsMergedEvent]: items folded into a composite
//
// Iterations:
//   - [IterationFinishedEvent]: one convergence cycle ended
//
// # Thread Safety
//
// The [Bus] is safe for concurrent use. Handlers run synchronously on
// the publisher's goroutine and are protected against panics: a
// panicking handler never prevents delivery to the others.
//
// # Basic Usage
//
//	bus := event.NewBus()
//
//	bus.Subscribe("wave.verified", func(e event.Event) {
//	    verified := e.(event.WaveVerifiedEvent)
//	    fmt.Printf("wave %d: %s\n", verified.Index, verified.Verdict)
//	})
//
//	// Subscribe to all events (useful for logging)
//	bus.SubscribeAll(func(e event.Event) {
//	    fmt.Printf("%s at %v\n", e.EventType(), e.Timestamp())
//	})
//
//	bus.Publish(event.NewWaveVerifiedEvent(1, work.VerdictPass, 0))
//
// # Event Type Naming Convention
//
// Event types follow the pattern "category.action":
//   - run.started, run.finished
//   - wave.started, wave.verified
//   - item.dispatched, item.finished, item.rolled_back
//   - worker.stuck
//   - conflict.escalated, items.merged
//   - iteration.finished
package event
