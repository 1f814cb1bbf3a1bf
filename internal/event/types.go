package event

import (
	"time"

	"github.com/tidelab/swell/internal/work"
)

// Event is implemented by every notification on the bus.
type Event interface {
	// EventType returns the event's identifier, by convention
	// "category.action" (e.g. "item.dispatched", "wave.verified").
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// baseEvent carries the fields shared by all events. Embed it in concrete
// event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Run Lifecycle Events
// -----------------------------------------------------------------------------

// RunStartedEvent is emitted once when a run begins.
type RunStartedEvent struct {
	baseEvent
	RunID     string // Short unique identifier of this run
	ItemCount int    // Seed items in the record store
	Iterative bool   // Whether the run loops until convergence
}

// NewRunStartedEvent creates a RunStartedEvent.
func NewRunStartedEvent(runID string, itemCount int, iterative bool) RunStartedEvent {
	return RunStartedEvent{
		baseEvent: newBaseEvent("run.started"),
		RunID:     runID,
		ItemCount: itemCount,
		Iterative: iterative,
	}
}

// RunFinishedEvent is emitted once when a run reaches a terminal state.
type RunFinishedEvent struct {
	baseEvent
	RunID     string
	Verdict   work.RunState // complete, stalled, or max_iterations_reached
	Iteration int           // Last iteration that ran
	Completed int           // Items completed over the whole run
	Blocked   int           // Items left blocked
}

// NewRunFinishedEvent creates a RunFinishedEvent.
func NewRunFinishedEvent(runID string, verdict work.RunState, iteration, completed, blocked int) RunFinishedEvent {
	return RunFinishedEvent{
		baseEvent: newBaseEvent("run.finished"),
		RunID:     runID,
		Verdict:   verdict,
		Iteration: iteration,
		Completed: completed,
		Blocked:   blocked,
	}
}

// -----------------------------------------------------------------------------
// Wave Events
// -----------------------------------------------------------------------------

// WaveStartedEvent is emitted when the dispatcher picks up a wave.
type WaveStartedEvent struct {
	baseEvent
	Index       int      // 1-based wave number
	ItemIDs     []string // Items running in this wave
	Parallelism int      // Concurrency ceiling applied
}

// NewWaveStartedEvent creates a WaveStartedEvent.
func NewWaveStartedEvent(index int, itemIDs []string, parallelism int) WaveStartedEvent {
	return WaveStartedEvent{
		baseEvent:   newBaseEvent("wave.started"),
		Index:       index,
		ItemIDs:     itemIDs,
		Parallelism: parallelism,
	}
}

// WaveVerifiedEvent is emitted when the verification gate rules on a wave.
type WaveVerifiedEvent struct {
	baseEvent
	Index   int
	Verdict work.Verdict
	Issues  int // Number of issues the gate reported
}

// NewWaveVerifiedEvent creates a WaveVerifiedEvent.
func NewWaveVerifiedEvent(index int, verdict work.Verdict, issues int) WaveVerifiedEvent {
	return WaveVerifiedEvent{
		baseEvent: newBaseEvent("wave.verified"),
		Index:     index,
		Verdict:   verdict,
		Issues:    issues,
	}
}

// -----------------------------------------------------------------------------
// Item Events
// -----------------------------------------------------------------------------

// ItemDispatchedEvent is emitted when a work item is handed to a worker.
type ItemDispatchedEvent struct {
	baseEvent
	ItemID   string
	Wave     int
	WorkerID string
}

// NewItemDispatchedEvent creates an ItemDispatchedEvent.
func NewItemDispatchedEvent(itemID string, wave int, workerID string) ItemDispatchedEvent {
	return ItemDispatchedEvent{
		baseEvent: newBaseEvent("item.dispatched"),
		ItemID:    itemID,
		Wave:      wave,
		WorkerID:  workerID,
	}
}

// ItemFinishedEvent is emitted when a worker reports back for an item.
type ItemFinishedEvent struct {
	baseEvent
	ItemID  string
	Wave    int
	Success bool
	Summary string // Worker's own account of what it did
}

// NewItemFinishedEvent creates an ItemFinishedEvent.
func NewItemFinishedEvent(itemID string, wave int, success bool, summary string) ItemFinishedEvent {
	return ItemFinishedEvent{
		baseEvent: newBaseEvent("item.finished"),
		ItemID:    itemID,
		Wave:      wave,
		Success:   success,
		Summary:   summary,
	}
}

// ItemRolledBackEvent is emitted when a failing item is reverted.
type ItemRolledBackEvent struct {
	baseEvent
	ItemID string
	Wave   int
	Reason string
}

// NewItemRolledBackEvent creates an ItemRolledBackEvent.
func NewItemRolledBackEvent(itemID string, wave int, reason string) ItemRolledBackEvent {
	return ItemRolledBackEvent{
		baseEvent: newBaseEvent("item.rolled_back"),
		ItemID:    itemID,
		Wave:      wave,
		Reason:    reason,
	}
}

// WorkerStuckEvent is emitted when a worker misses its deadline and a
// replacement takes over its context and file ownership.
type WorkerStuckEvent struct {
	baseEvent
	ItemID        string
	WorkerID      string // The stuck worker
	ReplacementID string // The single replacement spawned for it
}

// NewWorkerStuckEvent creates a WorkerStuckEvent.
func NewWorkerStuckEvent(itemID, workerID, replacementID string) WorkerStuckEvent {
	return WorkerStuckEvent{
		baseEvent:     newBaseEvent("worker.stuck"),
		ItemID:        itemID,
		WorkerID:      workerID,
		ReplacementID: replacementID,
	}
}

// -----------------------------------------------------------------------------
// Conflict Events
// -----------------------------------------------------------------------------

// ConflictEscalatedEvent is emitted when a create/create overlap needs an
// external decision before the affected items can be scheduled.
type ConflictEscalatedEvent struct {
	baseEvent
	File  string
	ItemA string
	ItemB string
}

// NewConflictEscalatedEvent creates a ConflictEscalatedEvent.
func NewConflictEscalatedEvent(file, itemA, itemB string) ConflictEscalatedEvent {
	return ConflictEscalatedEvent{
		baseEvent: newBaseEvent("conflict.escalated"),
		File:      file,
		ItemA:     itemA,
		ItemB:     itemB,
	}
}

// ItemsMergedEvent is emitted when items are folded into a composite,
// either by cycle recovery or by an unresolved escalation.
type ItemsMergedEvent struct {
	baseEvent
	CompositeID string
	SourceIDs   []string
	Reason      string
}

// NewItemsMergedEvent creates an ItemsMergedEvent.
func NewItemsMergedEvent(compositeID string, sourceIDs []string, reason string) ItemsMergedEvent {
	return ItemsMergedEvent{
		baseEvent:   newBaseEvent("items.merged"),
		CompositeID: compositeID,
		SourceIDs:   sourceIDs,
		Reason:      reason,
	}
}

// -----------------------------------------------------------------------------
// Iteration Events
// -----------------------------------------------------------------------------

// IterationFinishedEvent is emitted at the end of each convergence cycle.
type IterationFinishedEvent struct {
	baseEvent
	Iteration       int
	CompletedWeight int  // Priority-weighted completion count
	Progressed      bool // Whether the weight moved since last cycle
}

// NewIterationFinishedEvent creates an IterationFinishedEvent.
func NewIterationFinishedEvent(iteration, completedWeight int, progressed bool) IterationFinishedEvent {
	return IterationFinishedEvent{
		baseEvent:       newBaseEvent("iteration.finished"),
		Iteration:       iteration,
		CompletedWeight: completedWeight,
		Progressed:      progressed,
	}
}
