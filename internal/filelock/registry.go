package filelock

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/tidelab/swell/internal/errors"
)

// Sentinel errors returned by registry operations.
var (
	// ErrAlreadyClaimed is returned when a file is owned by another item.
	ErrAlreadyClaimed = errors.New("file already claimed by another item")

	// ErrNotOwner is returned when an item releases a file it does not own.
	ErrNotOwner = errors.New("item does not own this file")

	// ErrNotClaimed is returned when releasing a file nobody owns.
	ErrNotClaimed = errors.New("file is not claimed")
)

// Claim records one item's exclusive ownership of one file path.
type Claim struct {
	ItemID    string    // Item that owns the file for the current wave
	Path      string    // Normalized file path
	ClaimedAt time.Time // When the claim was established
}

// Registry tracks which item owns which file during wave execution.
type Registry struct {
	mu     sync.RWMutex
	claims map[string]Claim // normalized path -> claim
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		claims: make(map[string]Claim),
	}
}

// normalize canonicalizes a path so equivalent spellings share one claim.
func normalize(path string) string {
	return filepath.ToSlash(filepath.Clean(path))
}

// Claim registers ownership of a file for the given item. Claiming a file
// the item already owns is a no-op; a file owned by another item returns
// ErrAlreadyClaimed.
func (r *Registry) Claim(itemID, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.claimLocked(itemID, path)
}

func (r *Registry) claimLocked(itemID, path string) error {
	key := normalize(path)
	if existing, ok := r.claims[key]; ok {
		if existing.ItemID == itemID {
			return nil
		}
		return fmt.Errorf("%w: %s owns %s", ErrAlreadyClaimed, existing.ItemID, key)
	}
	r.claims[key] = Claim{
		ItemID:    itemID,
		Path:      key,
		ClaimedAt: time.Now(),
	}
	return nil
}

// ClaimAll registers ownership of every path for the given item. The batch
// is atomic: if any claim fails, claims made by this call are rolled back
// and the error is returned.
func (r *Registry) ClaimAll(itemID string, paths []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	claimed := make([]string, 0, len(paths))
	for _, path := range paths {
		if err := r.claimLocked(itemID, path); err != nil {
			for _, key := range claimed {
				delete(r.claims, key)
			}
			return err
		}
		claimed = append(claimed, normalize(path))
	}
	return nil
}

// Release gives up the item's claim on one file.
func (r *Registry) Release(itemID, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := normalize(path)
	existing, ok := r.claims[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotClaimed, key)
	}
	if existing.ItemID != itemID {
		return fmt.Errorf("%w: %s owns %s", ErrNotOwner, existing.ItemID, key)
	}
	delete(r.claims, key)
	return nil
}

// ReleaseAll gives up every claim held by the item and returns how many
// files were released.
func (r *Registry) ReleaseAll(itemID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	released := 0
	for key, claim := range r.claims {
		if claim.ItemID == itemID {
			delete(r.claims, key)
			released++
		}
	}
	return released
}

// Owner returns the item owning the given path, if any.
func (r *Registry) Owner(path string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	claim, ok := r.claims[normalize(path)]
	if !ok {
		return "", false
	}
	return claim.ItemID, true
}

// Claims returns a snapshot of all current claims, sorted by path.
func (r *Registry) Claims() []Claim {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Claim, 0, len(r.claims))
	for _, claim := range r.claims {
		out = append(out, claim)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Len returns the number of active claims.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.claims)
}

// Clear drops every claim. Used between waves.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.claims = make(map[string]Claim)
}
