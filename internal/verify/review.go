package verify

import (
	"strings"

	"github.com/tidelab/swell/internal/work"
)

// Rigor describes the depth of checking a wave demands, derived from the
// riskiest item in it. Each flag includes everything below it.
type Rigor struct {
	// MaxTier is the highest risk tier present in the wave.
	MaxTier work.RiskTier

	// Regression requires a regression pass across affected modules.
	Regression bool

	// DataHandling requires access-control and data-handling validation.
	DataHandling bool

	// RollbackPlan requires an externally recorded rollback plan for every
	// tier 3 item before the wave may pass.
	RollbackPlan bool

	// Confirmation requires an explicit confirmation decision before the
	// wave may pass.
	Confirmation bool
}

// RigorFor returns the rigor demanded by the given maximum tier.
func RigorFor(maxTier work.RiskTier) Rigor {
	return Rigor{
		MaxTier:      maxTier,
		Regression:   maxTier >= work.Tier1,
		DataHandling: maxTier >= work.Tier2,
		RollbackPlan: maxTier.RequiresRollbackPlan(),
		Confirmation: maxTier.RequiresRollbackPlan(),
	}
}

// ItemReview is one wave item as presented to the checker.
type ItemReview struct {
	ItemID   string
	Tier     work.RiskTier
	Priority work.Priority

	// Files is the item's declared ownership set.
	Files []string

	// Summary is what the worker reported doing.
	Summary string

	// FailureNote is the item's failure-mode note, when it has one.
	FailureNote *work.FailureNote

	// RollbackPlan is the recorded way to undo this item. Sourced from the
	// failure-mode note and surfaced in the coordination artifact; tier 3
	// verification refuses to pass without it.
	RollbackPlan string
}

// Review is everything the checker sees about a completed wave.
type Review struct {
	Wave  int
	Rigor Rigor
	Items []ItemReview
}

// NewReview assembles a review from the wave's items and the summaries
// their workers reported. Items keep their given order.
func NewReview(wave int, items []*work.WorkItem, summaries map[string]string) Review {
	review := Review{Wave: wave}
	maxTier := work.Tier0
	for _, item := range items {
		if item == nil {
			continue
		}
		if item.RiskTier > maxTier {
			maxTier = item.RiskTier
		}
		ir := ItemReview{
			ItemID:      item.ID,
			Tier:        item.RiskTier,
			Priority:    item.Priority,
			Files:       item.AllFiles(),
			Summary:     summaries[item.ID],
			FailureNote: item.FailureNote,
		}
		if item.FailureNote != nil {
			ir.RollbackPlan = strings.TrimSpace(item.FailureNote.FastestRollback)
		}
		review.Items = append(review.Items, ir)
	}
	review.Rigor = RigorFor(maxTier)
	return review
}

// ItemIDs returns the reviewed item ids in order.
func (r Review) ItemIDs() []string {
	ids := make([]string, len(r.Items))
	for i, item := range r.Items {
		ids[i] = item.ItemID
	}
	return ids
}

// Tier3Items returns the ids of items at tier 3.
func (r Review) Tier3Items() []string {
	var ids []string
	for _, item := range r.Items {
		if item.Tier >= work.Tier3 {
			ids = append(ids, item.ItemID)
		}
	}
	return ids
}

// missingRollbackPlans returns tier 3 items with no recorded rollback plan.
func (r Review) missingRollbackPlans() []string {
	var ids []string
	for _, item := range r.Items {
		if item.Tier >= work.Tier3 && item.RollbackPlan == "" {
			ids = append(ids, item.ItemID)
		}
	}
	return ids
}
