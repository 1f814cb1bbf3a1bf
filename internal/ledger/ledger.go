package ledger

import (
	"fmt"
	"sync"
	"time"

	"github.com/tidelab/swell/internal/errors"
	"github.com/tidelab/swell/internal/work"
)

// Ledger is the run's record store: all work items, the wave plan, and the
// iteration log. All methods are safe for concurrent use via an internal
// mutex, but only the coordinator may call the mutating ones.
type Ledger struct {
	mu         sync.Mutex
	items      map[string]*work.WorkItem // itemID -> item
	order      []string                  // item IDs in insertion order
	waves      []*work.Wave
	iterations []work.IterationRecord
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{
		items: make(map[string]*work.WorkItem),
	}
}

// newFromState creates a Ledger from pre-built state.
// Used internally for loading persisted state.
func newFromState(items map[string]*work.WorkItem, order []string, waves []*work.Wave, iterations []work.IterationRecord) *Ledger {
	return &Ledger{
		items:      items,
		order:      order,
		waves:      waves,
		iterations: iterations,
	}
}

// -----------------------------------------------------------------------------
// Items
// -----------------------------------------------------------------------------

// Add inserts a new work item. The ledger stores its own copy.
func (l *Ledger) Add(item *work.WorkItem) error {
	if item == nil || item.ID == "" {
		return fmt.Errorf("%w: item must have an id", errors.ErrInvalidInput)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.items[item.ID]; exists {
		return fmt.Errorf("%w: %s", errors.ErrItemExists, item.ID)
	}

	cp := item.Clone()
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = time.Now()
	}
	l.items[cp.ID] = cp
	l.order = append(l.order, cp.ID)
	return nil
}

// Get returns a copy of the item with the given ID.
func (l *Ledger) Get(id string) (*work.WorkItem, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	item, ok := l.items[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errors.ErrItemNotFound, id)
	}
	return item.Clone(), nil
}

// List returns copies of all items in insertion order, superseded and
// terminal records included.
func (l *Ledger) List() []*work.WorkItem {
	l.mu.Lock()
	defer l.mu.Unlock()

	result := make([]*work.WorkItem, 0, len(l.order))
	for _, id := range l.order {
		result = append(result, l.items[id].Clone())
	}
	return result
}

// Schedulable returns copies of the items the scheduler should consider:
// pending or ready, and not folded into a composite item.
func (l *Ledger) Schedulable() []*work.WorkItem {
	l.mu.Lock()
	defer l.mu.Unlock()

	var result []*work.WorkItem
	for _, id := range l.order {
		item := l.items[id]
		if item.IsSuperseded() {
			continue
		}
		if item.Status == work.StatusPending || item.Status == work.StatusReady {
			result = append(result, item.Clone())
		}
	}
	return result
}

// Len returns the total number of item records, superseded ones included.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// UpdateStatus transitions an item to a new lifecycle state, enforcing the
// allowed-transition rules. Superseded items are frozen and cannot move.
func (l *Ledger) UpdateStatus(id string, to work.Status) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	item, ok := l.items[id]
	if !ok {
		return fmt.Errorf("%w: %s", errors.ErrItemNotFound, id)
	}
	if item.IsSuperseded() {
		return fmt.Errorf("%w: %s is superseded by %s", errors.ErrInvalidTransition, id, item.MergedInto)
	}
	if !work.IsValidTransition(item.Status, to) {
		return fmt.Errorf("%w: cannot move %s from %s to %s", errors.ErrInvalidTransition, id, item.Status, to)
	}

	item.Status = to
	item.UpdatedAt = time.Now()
	return nil
}

// SetRisk assigns the item's risk tier and the classifier's rationale.
func (l *Ledger) SetRisk(id string, tier work.RiskTier, rationale string) error {
	if !tier.IsValid() {
		return fmt.Errorf("%w: risk tier %d out of range", errors.ErrInvalidInput, int(tier))
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	item, ok := l.items[id]
	if !ok {
		return fmt.Errorf("%w: %s", errors.ErrItemNotFound, id)
	}
	item.RiskTier = tier
	item.RiskRationale = rationale
	item.UpdatedAt = time.Now()
	return nil
}

// SetFailureNote attaches the four-question failure-mode note to an item.
func (l *Ledger) SetFailureNote(id string, note work.FailureNote) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	item, ok := l.items[id]
	if !ok {
		return fmt.Errorf("%w: %s", errors.ErrItemNotFound, id)
	}
	item.FailureNote = &note
	item.UpdatedAt = time.Now()
	return nil
}

// AddDependency records that item id must wait for dependsOn. Both items
// must exist; duplicate and self edges are ignored.
func (l *Ledger) AddDependency(id, dependsOn string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	item, ok := l.items[id]
	if !ok {
		return fmt.Errorf("%w: %s", errors.ErrItemNotFound, id)
	}
	if _, ok := l.items[dependsOn]; !ok {
		return fmt.Errorf("%w: %s", errors.ErrItemNotFound, dependsOn)
	}

	item.AddDependency(dependsOn)
	item.UpdatedAt = time.Now()
	return nil
}

// AssignWave records the item's wave. Assignment is immutable: re-assigning
// the same wave is a no-op (re-scheduling an unchanged store must be
// idempotent), a different wave is an error until the assignment is reset
// for a new cycle.
func (l *Ledger) AssignWave(id string, wave int) error {
	if wave < 1 {
		return fmt.Errorf("%w: wave must be >= 1, got %d", errors.ErrInvalidInput, wave)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	item, ok := l.items[id]
	if !ok {
		return fmt.Errorf("%w: %s", errors.ErrItemNotFound, id)
	}
	if item.IsSuperseded() {
		return fmt.Errorf("%w: cannot schedule superseded item %s", errors.ErrInvalidInput, id)
	}
	if item.Wave == wave {
		return nil
	}
	if item.Wave != 0 {
		return fmt.Errorf("%w: %s already assigned to wave %d", errors.ErrInvalidInput, id, item.Wave)
	}

	item.Wave = wave
	item.UpdatedAt = time.Now()
	return nil
}

// ResetWaves clears wave assignments on every item that is still in play,
// making room for a new scheduling cycle. Completed, rolled-back, and
// superseded items keep their historical assignment. Returns the IDs whose
// assignment was cleared.
func (l *Ledger) ResetWaves() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	var cleared []string
	for _, id := range l.order {
		item := l.items[id]
		if item.IsSuperseded() || item.Status.IsTerminal() {
			continue
		}
		if item.Wave != 0 {
			item.Wave = 0
			item.UpdatedAt = time.Now()
			cleared = append(cleared, id)
		}
	}
	l.waves = nil
	return cleared
}

// IncrementFixAttempts bumps the item's fix-worker counter and returns the
// new count.
func (l *Ledger) IncrementFixAttempts(id string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	item, ok := l.items[id]
	if !ok {
		return 0, fmt.Errorf("%w: %s", errors.ErrItemNotFound, id)
	}
	item.FixAttempts++
	item.UpdatedAt = time.Now()
	return item.FixAttempts, nil
}

// DemoteCreation turns an item's declared creation of file into a
// modification. Applied after an external decision awards a contested
// file to the other claimant.
func (l *Ledger) DemoteCreation(id, file string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	item, ok := l.items[id]
	if !ok {
		return fmt.Errorf("%w: %s", errors.ErrItemNotFound, id)
	}

	idx := -1
	for i, f := range item.FilesCreated {
		if f == file {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %s does not declare a creation of %s", errors.ErrInvalidInput, id, file)
	}
	item.FilesCreated = append(item.FilesCreated[:idx], item.FilesCreated[idx+1:]...)

	alreadyModified := false
	for _, f := range item.FilesModified {
		if f == file {
			alreadyModified = true
			break
		}
	}
	if !alreadyModified {
		item.FilesModified = append(item.FilesModified, file)
	}
	item.UpdatedAt = time.Now()
	return nil
}

// RecordMerge folds the source items into a new composite item. The sources
// stay in the ledger for audit but are marked superseded and never
// scheduled again.
func (l *Ledger) RecordMerge(merged *work.WorkItem, sourceIDs []string) error {
	if merged == nil || merged.ID == "" {
		return fmt.Errorf("%w: merged item must have an id", errors.ErrInvalidInput)
	}
	if len(sourceIDs) < 2 {
		return fmt.Errorf("%w: a merge needs at least two source items", errors.ErrInvalidInput)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.items[merged.ID]; exists {
		return fmt.Errorf("%w: %s", errors.ErrItemExists, merged.ID)
	}
	for _, src := range sourceIDs {
		item, ok := l.items[src]
		if !ok {
			return fmt.Errorf("%w: %s", errors.ErrItemNotFound, src)
		}
		if item.IsSuperseded() {
			return fmt.Errorf("%w: %s is already superseded by %s", errors.ErrInvalidInput, src, item.MergedInto)
		}
	}

	now := time.Now()
	cp := merged.Clone()
	cp.MergedFrom = append([]string(nil), sourceIDs...)
	cp.UpdatedAt = now
	l.items[cp.ID] = cp
	l.order = append(l.order, cp.ID)

	for _, src := range sourceIDs {
		item := l.items[src]
		item.MergedInto = cp.ID
		item.UpdatedAt = now
	}
	return nil
}

// -----------------------------------------------------------------------------
// Progress accounting
// -----------------------------------------------------------------------------

// Summary is a snapshot of item counts by lifecycle state.
type Summary struct {
	Total      int
	Pending    int
	Blocked    int
	Ready      int
	InProgress int
	Completed  int
	Failed     int
	RolledBack int
	Superseded int
}

// Status returns a snapshot of the current item counts. Superseded items are
// counted separately, not under their frozen lifecycle state.
func (l *Ledger) Status() Summary {
	l.mu.Lock()
	defer l.mu.Unlock()

	var s Summary
	s.Total = len(l.items)
	for _, item := range l.items {
		if item.IsSuperseded() {
			s.Superseded++
			continue
		}
		switch item.Status {
		case work.StatusPending:
			s.Pending++
		case work.StatusBlocked:
			s.Blocked++
		case work.StatusReady:
			s.Ready++
		case work.StatusInProgress:
			s.InProgress++
		case work.StatusCompleted:
			s.Completed++
		case work.StatusFailed:
			s.Failed++
		case work.StatusRolledBack:
			s.RolledBack++
		}
	}
	return s
}

// CompletedWeight returns the priority-weighted completion count: the sum of
// priority weights over all completed, non-superseded items. This is the
// number the stall circuit breaker watches.
func (l *Ledger) CompletedWeight() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	total := 0
	for _, item := range l.items {
		if item.IsSuperseded() {
			continue
		}
		if item.Status == work.StatusCompleted {
			total += item.Priority.Weight()
		}
	}
	return total
}

// AllMustHaveDone returns true when every non-superseded P1 item has
// completed. Vacuously true when there are no P1 items.
func (l *Ledger) AllMustHaveDone() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, item := range l.items {
		if item.IsSuperseded() {
			continue
		}
		if item.Priority == work.PriorityMust && item.Status != work.StatusCompleted {
			return false
		}
	}
	return true
}

// -----------------------------------------------------------------------------
// Waves
// -----------------------------------------------------------------------------

// SetWaves replaces the current wave plan. The ledger stores its own copies.
func (l *Ledger) SetWaves(waves []*work.Wave) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.waves = make([]*work.Wave, 0, len(waves))
	for _, w := range waves {
		l.waves = append(l.waves, cloneWave(w))
	}
}

// Waves returns copies of the current wave plan in order.
func (l *Ledger) Waves() []*work.Wave {
	l.mu.Lock()
	defer l.mu.Unlock()

	result := make([]*work.Wave, 0, len(l.waves))
	for _, w := range l.waves {
		result = append(result, cloneWave(w))
	}
	return result
}

// Wave returns a copy of the wave with the given 1-based index.
func (l *Ledger) Wave(index int) (*work.Wave, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.findWave(index)
	if w == nil {
		return nil, fmt.Errorf("wave %d not found", index)
	}
	return cloneWave(w), nil
}

// SetWaveStatus updates the execution state of a wave.
func (l *Ledger) SetWaveStatus(index int, status work.WaveStatus) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.findWave(index)
	if w == nil {
		return fmt.Errorf("wave %d not found", index)
	}
	w.Status = status
	return nil
}

// SetWaveVerdict records the verification outcome of a wave.
func (l *Ledger) SetWaveVerdict(index int, verdict work.Verdict) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	w := l.findWave(index)
	if w == nil {
		return fmt.Errorf("wave %d not found", index)
	}
	w.Verdict = verdict
	return nil
}

// findWave returns the stored wave with the given index. Caller holds mu.
func (l *Ledger) findWave(index int) *work.Wave {
	for _, w := range l.waves {
		if w.Index == index {
			return w
		}
	}
	return nil
}

func cloneWave(w *work.Wave) *work.Wave {
	if w == nil {
		return nil
	}
	cp := *w
	cp.ItemIDs = append([]string(nil), w.ItemIDs...)
	return &cp
}

// -----------------------------------------------------------------------------
// Iteration log
// -----------------------------------------------------------------------------

// AppendIteration adds a record to the append-only iteration log.
func (l *Ledger) AppendIteration(rec work.IterationRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.iterations = append(l.iterations, rec)
}

// Iterations returns a copy of the iteration log in order.
func (l *Ledger) Iterations() []work.IterationRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]work.IterationRecord(nil), l.iterations...)
}

// LastIteration returns the most recent iteration record, if any.
func (l *Ledger) LastIteration() (work.IterationRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.iterations) == 0 {
		return work.IterationRecord{}, false
	}
	return l.iterations[len(l.iterations)-1], true
}
