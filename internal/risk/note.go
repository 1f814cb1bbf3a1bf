package risk

import (
	"fmt"
	"strings"

	"github.com/tidelab/swell/internal/work"
)

// DraftNote fills in a failure-mode note for an item that arrived without
// one. The four answers are derived mechanically from the declared file set,
// the assigned tier, and the classification rationale, so they are
// conservative rather than insightful; a planner-authored note always wins
// over a draft.
func DraftNote(item *work.WorkItem) work.FailureNote {
	subject := item.Description
	if subject == "" {
		subject = item.ID
	}

	whatCouldFail := fmt.Sprintf("%q lands incomplete or breaks a consumer of its files", subject)
	if item.RiskRationale != "" {
		whatCouldFail = fmt.Sprintf("%q fails along the axis its classification flagged: %s",
			subject, item.RiskRationale)
	}

	detected := "wave verification reports a failing check against this item"
	switch {
	case item.RiskTier >= work.Tier2:
		detected = "wave verification fails its regression or data-handling review of this item"
	case item.RiskTier >= work.Tier1:
		detected = "wave verification fails its regression review of this item"
	}

	var rollback string
	switch {
	case len(item.FilesCreated) > 0 && len(item.FilesModified) > 0:
		rollback = fmt.Sprintf("delete %s and revert %s",
			strings.Join(item.FilesCreated, ", "), strings.Join(item.FilesModified, ", "))
	case len(item.FilesCreated) > 0:
		rollback = fmt.Sprintf("delete the created files (%s)", strings.Join(item.FilesCreated, ", "))
	case len(item.FilesModified) > 0:
		rollback = fmt.Sprintf("revert the modified files (%s)", strings.Join(item.FilesModified, ", "))
	default:
		rollback = "nothing to undo; the item declares no files"
	}

	return work.FailureNote{
		WhatCouldFail:     whatCouldFail,
		HowDetected:       detected,
		FastestRollback:   rollback,
		WeakestAssumption: "the declared file set covers the full blast radius of the change",
	}
}
