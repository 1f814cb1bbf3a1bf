// Package work defines the core data types for wave-scheduled runs.
//
// A run starts from a batch of work items with declared file effects. The
// pipeline annotates conflicts between them, layers them into waves, executes
// each wave with bounded parallelism, and verifies the result before the next
// wave may start. In convergence mode the whole cycle repeats until the run
// completes, stalls, or exhausts its iteration budget.
//
// This package holds the vocabulary shared by every stage:
//   - Items: WorkItem, Status, Priority, RiskTier, FileOp, FailureNote
//   - Scheduling: Wave, WaveStatus
//   - Verification: Verdict
//   - Convergence: RunState, IterationRecord
//
// These are pure data types; the components that act on them live in their
// own packages.
package work

import (
	"sort"
	"strings"
	"time"
)

// -----------------------------------------------------------------------------
// Item Status
// -----------------------------------------------------------------------------

// Status represents the lifecycle state of a WorkItem.
//
// Items are created Pending and must pass through Ready and InProgress before
// they can complete; there is no shortcut from Pending to Completed. Failed
// items are retried via fix workers or explicitly rolled back; they are never
// deleted, so the record survives for audit.
type Status string

const (
	// StatusPending indicates the item exists but has not been admitted to a
	// wave yet (missing classification, unresolved conflict, or simply not
	// scheduled).
	StatusPending Status = "pending"

	// StatusBlocked indicates the item cannot proceed without intervention:
	// an unresolved escalation, or a fix budget that ran out.
	StatusBlocked Status = "blocked"

	// StatusReady indicates the item is admitted to a wave and waiting for a
	// worker.
	StatusReady Status = "ready"

	// StatusInProgress indicates a worker currently owns the item.
	StatusInProgress Status = "in_progress"

	// StatusCompleted indicates the item's worker finished successfully and
	// the containing wave verified.
	StatusCompleted Status = "completed"

	// StatusFailed indicates the worker failed or verification rejected the
	// item's work.
	StatusFailed Status = "failed"

	// StatusRolledBack indicates the item's work was reverted during partial
	// rollback. Terminal.
	StatusRolledBack Status = "rolled_back"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true if no further work is scheduled for this status.
// A completed item can still be re-queued when a later iteration detects a
// regression, which is the one deliberate exception.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusRolledBack
}

// IsActive returns true if the item is admitted to, or running in, a wave.
func (s Status) IsActive() bool {
	return s == StatusReady || s == StatusInProgress
}

// IsValid returns true if this is a recognized status value.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusBlocked, StatusReady, StatusInProgress,
		StatusCompleted, StatusFailed, StatusRolledBack:
		return true
	default:
		return false
	}
}

// -----------------------------------------------------------------------------
// Priority
// -----------------------------------------------------------------------------

// Priority represents how much an item matters for run completion.
//
// Completion requires every P1 item to be done; P2 and P3 items improve the
// result but do not hold the run open. Progress accounting weights items by
// priority so that finishing must-have work counts for more than polish.
type Priority string

const (
	// PriorityMust (P1) marks must-have work. A run cannot complete while any
	// P1 item is unfinished.
	PriorityMust Priority = "P1"

	// PriorityShould (P2) marks should-have work.
	PriorityShould Priority = "P2"

	// PriorityNice (P3) marks nice-to-have work.
	PriorityNice Priority = "P3"
)

// String returns the string representation of the priority.
func (p Priority) String() string {
	return string(p)
}

// IsValid returns true if this is a recognized priority value.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityMust, PriorityShould, PriorityNice:
		return true
	default:
		return false
	}
}

// Weight returns the progress weight for this priority. Unrecognized
// priorities weigh nothing.
func (p Priority) Weight() int {
	switch p {
	case PriorityMust:
		return 3
	case PriorityShould:
		return 2
	case PriorityNice:
		return 1
	default:
		return 0
	}
}

// ParsePriority converts a string such as "P1" or "p2" into a Priority.
// Returns false if the string is not a recognized priority.
func ParsePriority(s string) (Priority, bool) {
	p := Priority(strings.ToUpper(strings.TrimSpace(s)))
	if p.IsValid() {
		return p, true
	}
	return "", false
}

// -----------------------------------------------------------------------------
// Risk Tier
// -----------------------------------------------------------------------------

// RiskTier classifies how dangerous an item's changes are, from 0 (trivially
// reversible) to 3 (irreversible or compliance-sensitive). The tier scales
// verification depth and rollback requirements.
//
// Every item must carry exactly one tier before it may enter a wave; items
// start out unclassified.
type RiskTier int

const (
	// TierUnclassified means the risk classifier has not run for this item.
	// Unclassified items are not admissible to a wave.
	TierUnclassified RiskTier = -1

	// Tier0 covers low-stakes, easily reversible changes.
	Tier0 RiskTier = 0

	// Tier1 covers user-visible surfaces or tightly coupled modules.
	Tier1 RiskTier = 1

	// Tier2 covers security, privacy, or persisted-data paths.
	Tier2 RiskTier = 2

	// Tier3 covers irreversible changes and regulated or compliance paths.
	Tier3 RiskTier = 3
)

// String returns a compact label such as "T2".
func (t RiskTier) String() string {
	switch t {
	case Tier0:
		return "T0"
	case Tier1:
		return "T1"
	case Tier2:
		return "T2"
	case Tier3:
		return "T3"
	default:
		return "unclassified"
	}
}

// Description returns a short explanation of what the tier covers.
func (t RiskTier) Description() string {
	switch t {
	case Tier0:
		return "low stakes, easily reversible"
	case Tier1:
		return "user-visible surface or tightly coupled module"
	case Tier2:
		return "security, privacy, or persisted data"
	case Tier3:
		return "irreversible or compliance-sensitive"
	default:
		return "not yet classified"
	}
}

// IsValid returns true if the tier is an assigned value (0 through 3).
func (t RiskTier) IsValid() bool {
	return t >= Tier0 && t <= Tier3
}

// RequiresFailureNote returns true if items of this tier must carry a
// completed failure-mode note before entering a wave.
func (t RiskTier) RequiresFailureNote() bool {
	return t >= Tier1
}

// RequiresRollbackPlan returns true if verification at this tier demands an
// externally supplied rollback plan and explicit confirmation.
func (t RiskTier) RequiresRollbackPlan() bool {
	return t >= Tier3
}

// -----------------------------------------------------------------------------
// File Operations
// -----------------------------------------------------------------------------

// FileOp is the kind of effect an item declares on a file.
type FileOp string

const (
	// OpCreate means the item brings the file into existence.
	OpCreate FileOp = "create"

	// OpModify means the item changes an existing file.
	OpModify FileOp = "modify"
)

// String returns the string representation of the operation.
func (o FileOp) String() string {
	return string(o)
}

// -----------------------------------------------------------------------------
// Failure-Mode Note
// -----------------------------------------------------------------------------

// FailureNote answers the four questions every tier 1+ item must address
// before it is allowed into a wave. Incomplete notes keep the item out of
// scheduling.
type FailureNote struct {
	// WhatCouldFail describes the most likely failure of this change.
	WhatCouldFail string `json:"what_could_fail"`

	// HowDetected describes how that failure would be noticed.
	HowDetected string `json:"how_detected"`

	// FastestRollback describes the quickest way to undo the change.
	FastestRollback string `json:"fastest_rollback"`

	// WeakestAssumption names the assumption most likely to be wrong.
	WeakestAssumption string `json:"weakest_assumption"`
}

// IsComplete returns true if all four questions have non-empty answers.
func (n *FailureNote) IsComplete() bool {
	if n == nil {
		return false
	}
	return strings.TrimSpace(n.WhatCouldFail) != "" &&
		strings.TrimSpace(n.HowDetected) != "" &&
		strings.TrimSpace(n.FastestRollback) != "" &&
		strings.TrimSpace(n.WeakestAssumption) != ""
}

// -----------------------------------------------------------------------------
// Work Item
// -----------------------------------------------------------------------------

// WorkItem is a single schedulable unit of work with declared file effects.
//
// Items are created by the external planner (or by the convergence loop when
// new work is discovered) and then annotated by the pipeline: the conflict
// resolver adds dependencies, the scheduler assigns the wave, the dispatcher
// and verification gate drive status transitions. Items are never deleted;
// superseded and rolled-back records persist for audit.
type WorkItem struct {
	// ID uniquely identifies the item and is stable across iterations.
	ID string `json:"id"`

	// Description is the instruction passed verbatim to the executor.
	Description string `json:"description"`

	// Status is the current lifecycle state.
	Status Status `json:"status"`

	// Priority is the completion weight class (P1 must-have through P3
	// nice-to-have).
	Priority Priority `json:"priority"`

	// RiskTier scales verification depth for this item.
	// TierUnclassified until the risk classifier runs.
	RiskTier RiskTier `json:"risk_tier"`

	// RiskRationale records why the classifier picked the tier.
	RiskRationale string `json:"risk_rationale,omitempty"`

	// FilesCreated lists paths this item brings into existence.
	FilesCreated []string `json:"files_created,omitempty"`

	// FilesModified lists existing paths this item changes.
	FilesModified []string `json:"files_modified,omitempty"`

	// DependsOn lists item IDs that must complete first. Contains both
	// planner-declared dependencies and edges added by conflict resolution.
	DependsOn []string `json:"depends_on,omitempty"`

	// Wave is the 1-based wave assignment, 0 while unscheduled. Immutable
	// once assigned within a run.
	Wave int `json:"wave,omitempty"`

	// IterationIntroduced is the convergence cycle that created or last
	// reshaped this item.
	IterationIntroduced int `json:"iteration_introduced,omitempty"`

	// FailureNote holds the four-question failure-mode note required for
	// tier 1 and above.
	FailureNote *FailureNote `json:"failure_note,omitempty"`

	// FixAttempts counts targeted fix workers dispatched after verification
	// failures. Two failed attempts block the item.
	FixAttempts int `json:"fix_attempts,omitempty"`

	// MergedFrom lists the IDs of items folded into this one by cycle or
	// escalation merging.
	MergedFrom []string `json:"merged_from,omitempty"`

	// MergedInto names the composite item that superseded this one. A
	// superseded item keeps its record but is never scheduled.
	MergedInto string `json:"merged_into,omitempty"`

	// CreatedAt is when the item entered the ledger.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt is when the item last changed.
	UpdatedAt time.Time `json:"updated_at"`
}

// NewItem creates a pending, unclassified work item.
func NewItem(id, description string) *WorkItem {
	now := time.Now()
	return &WorkItem{
		ID:          id,
		Description: description,
		Status:      StatusPending,
		Priority:    PriorityShould,
		RiskTier:    TierUnclassified,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// HasDependencies returns true if this item depends on other items.
func (w *WorkItem) HasDependencies() bool {
	return len(w.DependsOn) > 0
}

// DependsOnItem returns true if the given ID is among this item's
// dependencies.
func (w *WorkItem) DependsOnItem(id string) bool {
	for _, dep := range w.DependsOn {
		if dep == id {
			return true
		}
	}
	return false
}

// AddDependency records a dependency edge unless it is already present or
// would point at the item itself.
func (w *WorkItem) AddDependency(id string) {
	if id == w.ID || w.DependsOnItem(id) {
		return
	}
	w.DependsOn = append(w.DependsOn, id)
}

// AllFiles returns the item's full ownership set: every file it creates or
// modifies, deduplicated and sorted.
func (w *WorkItem) AllFiles() []string {
	seen := make(map[string]bool, len(w.FilesCreated)+len(w.FilesModified))
	var files []string
	for _, f := range w.FilesCreated {
		if !seen[f] {
			seen[f] = true
			files = append(files, f)
		}
	}
	for _, f := range w.FilesModified {
		if !seen[f] {
			seen[f] = true
			files = append(files, f)
		}
	}
	sort.Strings(files)
	return files
}

// OpFor returns the operation this item declares on the given file. Creation
// wins when a file somehow appears in both sets.
func (w *WorkItem) OpFor(path string) (FileOp, bool) {
	for _, f := range w.FilesCreated {
		if f == path {
			return OpCreate, true
		}
	}
	for _, f := range w.FilesModified {
		if f == path {
			return OpModify, true
		}
	}
	return "", false
}

// IsSuperseded returns true if this item was folded into a composite item
// and must not be scheduled.
func (w *WorkItem) IsSuperseded() bool {
	return w.MergedInto != ""
}

// ReadyForWave reports whether the item satisfies the admission rules:
// a valid risk tier, and a complete failure-mode note when the tier
// requires one.
func (w *WorkItem) ReadyForWave() bool {
	if !w.RiskTier.IsValid() {
		return false
	}
	if w.RiskTier.RequiresFailureNote() && !w.FailureNote.IsComplete() {
		return false
	}
	return true
}

// Clone returns a deep copy of the item. The ledger hands out clones so that
// readers can never mutate shared state.
func (w *WorkItem) Clone() *WorkItem {
	if w == nil {
		return nil
	}
	cp := *w
	cp.FilesCreated = append([]string(nil), w.FilesCreated...)
	cp.FilesModified = append([]string(nil), w.FilesModified...)
	cp.DependsOn = append([]string(nil), w.DependsOn...)
	cp.MergedFrom = append([]string(nil), w.MergedFrom...)
	if w.FailureNote != nil {
		note := *w.FailureNote
		cp.FailureNote = &note
	}
	return &cp
}

// -----------------------------------------------------------------------------
// Waves
// -----------------------------------------------------------------------------

// WaveStatus represents the execution state of a wave.
type WaveStatus string

const (
	// WavePending indicates the wave is scheduled but not yet dispatched.
	WavePending WaveStatus = "pending"

	// WaveRunning indicates workers for this wave are in flight.
	WaveRunning WaveStatus = "running"

	// WaveVerifying indicates all workers reported and the verification gate
	// is checking the result.
	WaveVerifying WaveStatus = "verifying"

	// WavePassed indicates the wave verified (possibly with warnings).
	WavePassed WaveStatus = "passed"

	// WaveFailed indicates verification failed and recovery ran out of
	// options for at least one item.
	WaveFailed WaveStatus = "failed"

	// WaveSkipped indicates the wave was never dispatched because the run
	// was aborted or halted earlier.
	WaveSkipped WaveStatus = "skipped"
)

// String returns the string representation of the wave status.
func (s WaveStatus) String() string {
	return string(s)
}

// IsTerminal returns true if the wave has finished one way or another.
func (s WaveStatus) IsTerminal() bool {
	return s == WavePassed || s == WaveFailed || s == WaveSkipped
}

// Wave is one ordered execution stage: a batch of items whose file ownership
// sets are disjoint and which may therefore run fully in parallel.
type Wave struct {
	// Index is the 1-based position of the wave in the run.
	Index int `json:"index"`

	// ItemIDs lists the items scheduled in this wave.
	ItemIDs []string `json:"item_ids"`

	// Status is the wave's execution state.
	Status WaveStatus `json:"status"`

	// Verdict is the verification outcome, set once the wave reaches the
	// gate.
	Verdict Verdict `json:"verdict,omitempty"`
}

// Size returns the number of items in the wave.
func (w *Wave) Size() int {
	return len(w.ItemIDs)
}

// Contains returns true if the wave includes the given item.
func (w *Wave) Contains(itemID string) bool {
	for _, id := range w.ItemIDs {
		if id == itemID {
			return true
		}
	}
	return false
}

// -----------------------------------------------------------------------------
// Verification Verdicts
// -----------------------------------------------------------------------------

// Verdict is the outcome of verifying a wave.
type Verdict string

const (
	// VerdictPass indicates every check succeeded.
	VerdictPass Verdict = "pass"

	// VerdictPassWithWarnings indicates the wave may proceed but produced
	// findings worth reviewing.
	VerdictPassWithWarnings Verdict = "pass_with_warnings"

	// VerdictFail indicates at least one check failed and recovery is
	// required.
	VerdictFail Verdict = "fail"
)

// String returns the string representation of the verdict.
func (v Verdict) String() string {
	return string(v)
}

// IsPassing returns true if the wave may be treated as done.
func (v Verdict) IsPassing() bool {
	return v == VerdictPass || v == VerdictPassWithWarnings
}

// IsValid returns true for a recognized verdict.
func (v Verdict) IsValid() bool {
	return v == VerdictPass || v == VerdictPassWithWarnings || v == VerdictFail
}

// -----------------------------------------------------------------------------
// Convergence
// -----------------------------------------------------------------------------

// RunState is the state machine of a convergence-mode run.
//
// A run is Running until it reaches exactly one of the three terminal
// states; it never ends ambiguously.
type RunState string

const (
	// RunRunning indicates the convergence loop is still cycling.
	RunRunning RunState = "running"

	// RunComplete indicates all completion criteria hold: every P1 item
	// completed, checks passing, no unresolved gaps.
	RunComplete RunState = "complete"

	// RunStalled indicates the circuit breaker fired: no priority-weighted
	// progress for the configured number of consecutive cycles.
	RunStalled RunState = "stalled"

	// RunMaxIterations indicates the iteration budget ran out before the
	// run could complete or stall.
	RunMaxIterations RunState = "max_iterations_reached"
)

// String returns the string representation of the run state.
func (s RunState) String() string {
	return string(s)
}

// IsTerminal returns true if the run has halted.
func (s RunState) IsTerminal() bool {
	return s == RunComplete || s == RunStalled || s == RunMaxIterations
}

// IterationRecord captures the outcome of one convergence cycle. Records are
// immutable once written and form an append-only log across the run.
type IterationRecord struct {
	// Iteration is the 1-based cycle number.
	Iteration int `json:"iteration"`

	// CompletedCount is the priority-weighted sum of completed items at the
	// end of the cycle.
	CompletedCount int `json:"completed_count"`

	// NewlyCompleted lists items that completed during this cycle.
	NewlyCompleted []string `json:"newly_completed,omitempty"`

	// Regressed lists previously completed items that verification found
	// broken again.
	Regressed []string `json:"regressed,omitempty"`

	// Added lists items discovered and added during this cycle.
	Added []string `json:"added,omitempty"`

	// Verdict is the run state after the cycle finished.
	Verdict RunState `json:"verdict"`
}
