package filelock

import (
	"fmt"
	"sync"
	"testing"

	"github.com/tidelab/swell/internal/errors"
)

func TestRegistry_ClaimAndOwner(t *testing.T) {
	reg := NewRegistry()

	if err := reg.Claim("item-1", "internal/api/handler.go"); err != nil {
		t.Fatalf("Claim: %v", err)
	}

	owner, ok := reg.Owner("internal/api/handler.go")
	if !ok || owner != "item-1" {
		t.Errorf("Owner = %q, %v, want item-1, true", owner, ok)
	}
	if _, ok := reg.Owner("internal/api/other.go"); ok {
		t.Error("unclaimed file should have no owner")
	}
}

func TestRegistry_ClaimIsIdempotentForOwner(t *testing.T) {
	reg := NewRegistry()

	if err := reg.Claim("item-1", "a.go"); err != nil {
		t.Fatalf("first Claim: %v", err)
	}
	if err := reg.Claim("item-1", "a.go"); err != nil {
		t.Fatalf("re-Claim by owner should be a no-op: %v", err)
	}
	if reg.Len() != 1 {
		t.Errorf("Len = %d, want 1", reg.Len())
	}
}

func TestRegistry_ClaimConflict(t *testing.T) {
	reg := NewRegistry()

	if err := reg.Claim("item-1", "a.go"); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	err := reg.Claim("item-2", "a.go")
	if !errors.Is(err, ErrAlreadyClaimed) {
		t.Fatalf("expected ErrAlreadyClaimed, got %v", err)
	}
}

func TestRegistry_NormalizesPaths(t *testing.T) {
	reg := NewRegistry()

	if err := reg.Claim("item-1", "./pkg/../internal/api/handler.go"); err != nil {
		t.Fatalf("Claim: %v", err)
	}
	owner, ok := reg.Owner("internal/api/handler.go")
	if !ok || owner != "item-1" {
		t.Errorf("equivalent spellings should share a claim, got %q, %v", owner, ok)
	}
}

func TestRegistry_ClaimAllRollsBackOnConflict(t *testing.T) {
	reg := NewRegistry()

	if err := reg.Claim("item-1", "b.go"); err != nil {
		t.Fatalf("Claim: %v", err)
	}

	err := reg.ClaimAll("item-2", []string{"a.go", "b.go", "c.go"})
	if !errors.Is(err, ErrAlreadyClaimed) {
		t.Fatalf("expected ErrAlreadyClaimed, got %v", err)
	}

	// The batch must leave nothing behind.
	if _, ok := reg.Owner("a.go"); ok {
		t.Error("a.go should have been rolled back")
	}
	if _, ok := reg.Owner("c.go"); ok {
		t.Error("c.go should have been rolled back")
	}
	if owner, _ := reg.Owner("b.go"); owner != "item-1" {
		t.Errorf("b.go owner = %q, want item-1", owner)
	}
}

func TestRegistry_Release(t *testing.T) {
	reg := NewRegistry()

	if err := reg.Claim("item-1", "a.go"); err != nil {
		t.Fatalf("Claim: %v", err)
	}

	if err := reg.Release("item-2", "a.go"); !errors.Is(err, ErrNotOwner) {
		t.Errorf("release by non-owner = %v, want ErrNotOwner", err)
	}
	if err := reg.Release("item-1", "a.go"); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := reg.Release("item-1", "a.go"); !errors.Is(err, ErrNotClaimed) {
		t.Errorf("double release = %v, want ErrNotClaimed", err)
	}
}

func TestRegistry_ReleaseAll(t *testing.T) {
	reg := NewRegistry()

	if err := reg.ClaimAll("item-1", []string{"a.go", "b.go"}); err != nil {
		t.Fatalf("ClaimAll: %v", err)
	}
	if err := reg.Claim("item-2", "c.go"); err != nil {
		t.Fatalf("Claim: %v", err)
	}

	if released := reg.ReleaseAll("item-1"); released != 2 {
		t.Errorf("ReleaseAll = %d, want 2", released)
	}
	if reg.Len() != 1 {
		t.Errorf("Len = %d, want 1", reg.Len())
	}
	if owner, _ := reg.Owner("c.go"); owner != "item-2" {
		t.Errorf("c.go owner = %q, want item-2", owner)
	}
}

func TestRegistry_ClaimsSnapshotSorted(t *testing.T) {
	reg := NewRegistry()

	for _, path := range []string{"c.go", "a.go", "b.go"} {
		if err := reg.Claim("item-1", path); err != nil {
			t.Fatalf("Claim(%s): %v", path, err)
		}
	}

	claims := reg.Claims()
	if len(claims) != 3 {
		t.Fatalf("expected 3 claims, got %d", len(claims))
	}
	for i, want := range []string{"a.go", "b.go", "c.go"} {
		if claims[i].Path != want {
			t.Errorf("claims[%d].Path = %q, want %q", i, claims[i].Path, want)
		}
	}
}

func TestRegistry_Clear(t *testing.T) {
	reg := NewRegistry()
	if err := reg.ClaimAll("item-1", []string{"a.go", "b.go"}); err != nil {
		t.Fatalf("ClaimAll: %v", err)
	}

	reg.Clear()
	if reg.Len() != 0 {
		t.Errorf("Len after Clear = %d, want 0", reg.Len())
	}
}

func TestRegistry_ConcurrentClaims(t *testing.T) {
	reg := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			item := fmt.Sprintf("item-%d", n)
			for j := 0; j < 20; j++ {
				path := fmt.Sprintf("pkg%d/file%d.go", n, j)
				if err := reg.Claim(item, path); err != nil {
					t.Errorf("Claim(%s, %s): %v", item, path, err)
				}
			}
			reg.ReleaseAll(item)
		}(i)
	}
	wg.Wait()

	if reg.Len() != 0 {
		t.Errorf("Len = %d, want 0 after all releases", reg.Len())
	}
}
