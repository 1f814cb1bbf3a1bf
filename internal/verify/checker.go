package verify

import (
	"context"

	"github.com/tidelab/swell/internal/work"
)

// Issue is one finding from checking a wave. Issues that concern a single
// item carry its id; wave-wide findings leave it empty.
type Issue struct {
	ItemID      string `json:"item_id,omitempty"`
	Description string `json:"description"`
}

// Report is a checker's ruling on a wave. A Fail verdict should attribute
// issues to items where possible; unattributed failures implicate the whole
// wave.
type Report struct {
	Verdict work.Verdict `json:"verdict"`
	Issues  []Issue      `json:"issues,omitempty"`
}

// Checker performs the actual verification of a wave. Implementations wrap
// whatever checks apply in a deployment: test suites, linters, review
// agents, or a human sign-off.
//
// Check must honor ctx cancellation.
type Checker interface {
	Check(ctx context.Context, review Review) (Report, error)
}

// CheckerFunc adapts a function to the Checker interface.
type CheckerFunc func(ctx context.Context, review Review) (Report, error)

// Check calls f.
func (f CheckerFunc) Check(ctx context.Context, review Review) (Report, error) {
	return f(ctx, review)
}

var _ Checker = (CheckerFunc)(nil)
