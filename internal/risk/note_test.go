package risk

import (
	"strings"
	"testing"

	"github.com/tidelab/swell/internal/work"
)

func TestDraftNote_CompleteForTieredItems(t *testing.T) {
	item := &work.WorkItem{
		ID:            "item-1",
		Description:   "add users table",
		RiskTier:      work.Tier3,
		RiskRationale: "db/schema.sql matches a tier 3 path rule",
		FilesCreated:  []string{"db/schema.sql"},
		FilesModified: []string{"db/bootstrap.go"},
	}

	note := DraftNote(item)
	if !note.IsComplete() {
		t.Fatal("drafted note must satisfy the completeness check")
	}
	if err := VetForWave(&work.WorkItem{
		ID:          item.ID,
		RiskTier:    item.RiskTier,
		FailureNote: &note,
	}); err != nil {
		t.Fatalf("vetting with a drafted note: %v", err)
	}
}

func TestDraftNote_UsesRationaleAndFiles(t *testing.T) {
	item := &work.WorkItem{
		ID:            "item-2",
		Description:   "rotate session tokens",
		RiskTier:      work.Tier2,
		RiskRationale: `description signals a security surface ("token")`,
		FilesModified: []string{"internal/auth/session.go"},
	}

	note := DraftNote(item)
	if !strings.Contains(note.WhatCouldFail, item.RiskRationale) {
		t.Errorf("WhatCouldFail should carry the rationale, got %q", note.WhatCouldFail)
	}
	if !strings.Contains(note.FastestRollback, "internal/auth/session.go") {
		t.Errorf("FastestRollback should name the modified file, got %q", note.FastestRollback)
	}
	if !strings.Contains(note.FastestRollback, "revert") {
		t.Errorf("modified-only items roll back by revert, got %q", note.FastestRollback)
	}
	if !strings.Contains(note.HowDetected, "data-handling") {
		t.Errorf("tier 2 detection should mention the data-handling review, got %q", note.HowDetected)
	}
}

func TestDraftNote_CreatedFilesAreDeleted(t *testing.T) {
	note := DraftNote(&work.WorkItem{
		ID:           "item-3",
		Description:  "new api handler",
		RiskTier:     work.Tier1,
		FilesCreated: []string{"api/widgets.go"},
	})
	if !strings.Contains(note.FastestRollback, "delete") {
		t.Errorf("created-only items roll back by deletion, got %q", note.FastestRollback)
	}
	if !strings.Contains(note.WhatCouldFail, "new api handler") {
		t.Errorf("WhatCouldFail should fall back to the description, got %q", note.WhatCouldFail)
	}
}

func TestDraftNote_NoDeclaredFiles(t *testing.T) {
	note := DraftNote(&work.WorkItem{ID: "item-4", RiskTier: work.Tier1})
	if !strings.Contains(note.FastestRollback, "declares no files") {
		t.Errorf("file-less items should say so, got %q", note.FastestRollback)
	}
	if !note.IsComplete() {
		t.Error("note must still be complete without declared files")
	}
}
