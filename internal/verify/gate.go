package verify

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidelab/swell/internal/approval"
	"github.com/tidelab/swell/internal/config"
	"github.com/tidelab/swell/internal/errors"
	"github.com/tidelab/swell/internal/event"
	"github.com/tidelab/swell/internal/logging"
	"github.com/tidelab/swell/internal/work"
)

// Option ids for the tier 3 confirmation question.
const (
	OptionConfirm  = "confirm"
	OptionWithhold = "withhold"
)

// Ruling is the gate's final word on a wave.
type Ruling struct {
	Verdict work.Verdict

	// Issues collects checker findings plus anything the gate added, such
	// as a withheld confirmation.
	Issues []Issue

	// FailedItems names the items to recover. Set only on a Fail verdict;
	// wave-mates not listed here keep their work.
	FailedItems []string

	// Confirmed reports that the tier 3 confirmation was granted. Only
	// meaningful when the review's rigor demanded one.
	Confirmed bool
}

// Gate drives verification for one wave at a time.
type Gate struct {
	cfg     config.VerifyConfig
	checker Checker
	decider approval.Decider
	bus     *event.Bus
	log     *logging.Logger
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithDecider sets the decision boundary used for tier 3 confirmations.
func WithDecider(d approval.Decider) GateOption {
	return func(g *Gate) { g.decider = d }
}

// WithBus publishes wave.verified events to the given bus.
func WithBus(bus *event.Bus) GateOption {
	return func(g *Gate) { g.bus = bus }
}

// WithLogger sets the gate's logger.
func WithLogger(log *logging.Logger) GateOption {
	return func(g *Gate) {
		if log != nil {
			g.log = log
		}
	}
}

// NewGate creates a verification gate around the given checker.
func NewGate(cfg config.VerifyConfig, checker Checker, opts ...GateOption) *Gate {
	g := &Gate{
		cfg:     cfg,
		checker: checker,
		log:     logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Verify runs the checker over the review and applies the tier-scaled gate
// rules on top of its report.
//
// The returned error is reserved for verification infrastructure problems:
// a missing checker, a checker that did not complete, a tier 3 wave with no
// recorded rollback plan, or cancellation. Domain outcomes, including a
// withheld confirmation, come back as a Fail ruling instead.
func (g *Gate) Verify(ctx context.Context, review Review) (*Ruling, error) {
	if g.checker == nil {
		return nil, errors.NewVerificationError("no checker configured", nil).WithWave(review.Wave)
	}
	log := g.log.WithWave(review.Wave)

	if len(review.Items) == 0 {
		ruling := &Ruling{Verdict: work.VerdictPass}
		g.publish(review.Wave, ruling)
		return ruling, nil
	}

	// Tier 3 work is vetted for complete failure notes before scheduling,
	// so an absent rollback plan here means the pipeline skipped a step.
	if review.Rigor.RollbackPlan {
		if missing := review.missingRollbackPlans(); len(missing) > 0 {
			return nil, errors.NewVerificationError(
				fmt.Sprintf("no rollback plan recorded for %s", strings.Join(missing, ", ")),
				errors.ErrRollbackPlanRequired,
			).WithWave(review.Wave).WithTier(int(review.Rigor.MaxTier))
		}
	}

	log.Debug("checking wave",
		"items", len(review.Items),
		"max_tier", review.Rigor.MaxTier.String(),
		"regression", review.Rigor.Regression,
		"data_handling", review.Rigor.DataHandling,
	)
	report, err := g.checker.Check(ctx, review)
	if err != nil {
		return nil, errors.NewVerificationError("checker did not complete", err).WithWave(review.Wave)
	}
	if !report.Verdict.IsValid() {
		return nil, errors.NewVerificationError(
			fmt.Sprintf("checker returned unknown verdict %q", report.Verdict), nil,
		).WithWave(review.Wave)
	}

	ruling := &Ruling{Verdict: report.Verdict, Issues: report.Issues}
	switch {
	case report.Verdict == work.VerdictFail:
		ruling.FailedItems = failingItems(review, report.Issues)
	case review.Rigor.Confirmation && g.cfg.ConfirmTier3:
		if err := g.confirm(ctx, review, ruling); err != nil {
			return nil, err
		}
	}

	g.publish(review.Wave, ruling)
	if ruling.Verdict.IsPassing() {
		log.Info("wave verified", "verdict", ruling.Verdict.String(), "issues", len(ruling.Issues))
	} else {
		log.Warn("wave failed verification",
			"issues", len(ruling.Issues),
			"failed_items", strings.Join(ruling.FailedItems, ","),
		)
	}
	return ruling, nil
}

// confirm puts the tier 3 confirmation question to the decider and applies
// the answer. Anything short of an explicit confirmation withholds the
// pass; only cancellation propagates as an error.
func (g *Gate) confirm(ctx context.Context, review Review, ruling *Ruling) error {
	if g.decider == nil {
		withhold(ruling, review, "tier 3 confirmation required but no decider is configured")
		return nil
	}

	decision, err := g.decider.Decide(ctx, confirmationQuestion(review, ruling.Issues))
	switch {
	case err != nil && errors.Is(err, errors.ErrNoDecision):
		withhold(ruling, review, "tier 3 confirmation unavailable")
		return nil
	case err != nil:
		return errors.NewVerificationError("confirmation decision failed", err).WithWave(review.Wave)
	case decision.OptionID == OptionConfirm:
		ruling.Confirmed = true
		return nil
	default:
		withhold(ruling, review, "tier 3 confirmation withheld")
		return nil
	}
}

func withhold(ruling *Ruling, review Review, reason string) {
	ruling.Verdict = work.VerdictFail
	ruling.Confirmed = false
	ruling.Issues = append(ruling.Issues, Issue{Description: reason})
	ruling.FailedItems = review.Tier3Items()
}

// confirmationQuestion lays out the tier 3 items, their rollback plans, and
// any checker warnings for the decider.
func confirmationQuestion(review Review, issues []Issue) approval.Question {
	var detail strings.Builder
	for _, item := range review.Items {
		if item.Tier >= work.Tier3 {
			fmt.Fprintf(&detail, "%s (%s): rollback: %s\n", item.ItemID, item.Tier, item.RollbackPlan)
		}
	}
	for _, issue := range issues {
		fmt.Fprintf(&detail, "warning: %s\n", issue.Description)
	}
	return approval.Question{
		Subject: fmt.Sprintf("confirm wave %d", review.Wave),
		Detail:  strings.TrimRight(detail.String(), "\n"),
		Options: []approval.Option{
			{ID: OptionConfirm, Label: "confirm: rollback plans reviewed, let the wave pass"},
			{ID: OptionWithhold, Label: "withhold: fail the wave and recover its tier 3 items"},
		},
	}
}

// failingItems resolves a Fail report to the items that must recover.
// Issues attributed to wave items narrow the failure; a report with no
// attributable issues implicates the whole wave.
func failingItems(review Review, issues []Issue) []string {
	inWave := make(map[string]bool, len(review.Items))
	for _, item := range review.Items {
		inWave[item.ItemID] = true
	}

	seen := make(map[string]bool)
	var failed []string
	for _, issue := range issues {
		if issue.ItemID == "" || !inWave[issue.ItemID] || seen[issue.ItemID] {
			continue
		}
		seen[issue.ItemID] = true
		failed = append(failed, issue.ItemID)
	}
	if len(failed) == 0 {
		return review.ItemIDs()
	}
	return failed
}

func (g *Gate) publish(wave int, ruling *Ruling) {
	if g.bus != nil {
		g.bus.Publish(event.NewWaveVerifiedEvent(wave, ruling.Verdict, len(ruling.Issues)))
	}
}
