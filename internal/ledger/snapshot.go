package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tidelab/swell/internal/errors"
	"github.com/tidelab/swell/internal/filelock"
	"github.com/tidelab/swell/internal/work"
)

const (
	snapshotFileName = "ledger.json"
	snapshotLockName = "ledger.lock"
)

// snapshotState is the serializable representation of the ledger. Items are
// stored in insertion order so a reloaded ledger lists them the same way.
type snapshotState struct {
	Items      []*work.WorkItem       `json:"items"`
	Waves      []*work.Wave           `json:"waves,omitempty"`
	Iterations []work.IterationRecord `json:"iterations,omitempty"`
	SavedAt    time.Time              `json:"saved_at"`
}

// Save writes the ledger to dir as JSON. The write is atomic, temp file
// then rename, and a file lock is held so another process reading the run
// directory never sees a partial snapshot. The directory is created if
// needed.
func (l *Ledger) Save(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}

	fl := filelock.NewFileLock(filepath.Join(dir, snapshotLockName))
	if err := fl.Lock(); err != nil {
		return fmt.Errorf("acquire snapshot lock: %w", err)
	}
	defer func() { _ = fl.Unlock() }()

	l.mu.Lock()
	state := snapshotState{
		Items:      make([]*work.WorkItem, 0, len(l.order)),
		Waves:      make([]*work.Wave, 0, len(l.waves)),
		Iterations: append([]work.IterationRecord(nil), l.iterations...),
		SavedAt:    time.Now(),
	}
	for _, id := range l.order {
		state.Items = append(state.Items, l.items[id].Clone())
	}
	for _, w := range l.waves {
		state.Waves = append(state.Waves, cloneWave(w))
	}
	l.mu.Unlock()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	target := filepath.Join(dir, snapshotFileName)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp) // best-effort cleanup
		return fmt.Errorf("rename snapshot: %w", err)
	}
	return nil
}

// Load restores a Ledger from a snapshot previously saved in dir. The file
// lock is held during the read for cross-process safety. A missing
// snapshot surfaces as an fs.ErrNotExist wrapped error; a snapshot that
// does not decode, or decodes to inconsistent records, wraps
// ErrLedgerCorrupted.
func Load(dir string) (*Ledger, error) {
	fl := filelock.NewFileLock(filepath.Join(dir, snapshotLockName))
	if err := fl.Lock(); err != nil {
		return nil, fmt.Errorf("acquire snapshot lock: %w", err)
	}
	defer func() { _ = fl.Unlock() }()

	data, err := os.ReadFile(filepath.Join(dir, snapshotFileName))
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var state snapshotState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("%w: decode snapshot: %v", errors.ErrLedgerCorrupted, err)
	}

	items := make(map[string]*work.WorkItem, len(state.Items))
	order := make([]string, 0, len(state.Items))
	for _, item := range state.Items {
		if item == nil || item.ID == "" {
			return nil, fmt.Errorf("%w: snapshot contains an item without an id", errors.ErrLedgerCorrupted)
		}
		if _, exists := items[item.ID]; exists {
			return nil, fmt.Errorf("%w: snapshot repeats item %s", errors.ErrLedgerCorrupted, item.ID)
		}
		items[item.ID] = item
		order = append(order, item.ID)
	}

	return newFromState(items, order, state.Waves, state.Iterations), nil
}

// SnapshotExists reports whether dir holds a saved ledger.
func SnapshotExists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, snapshotFileName))
	return err == nil
}
