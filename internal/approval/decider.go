package approval

import (
	"context"
	"fmt"

	"github.com/tidelab/swell/internal/errors"
)

// Question is a structured decision put to the operator.
type Question struct {
	// Subject is a short, stable statement of what is being decided, such
	// as "conflict on config/schema.sql" or "confirm wave 2".
	Subject string

	// Detail carries the context a human needs to answer: the competing
	// items, the rollback plan, the issues found so far.
	Detail string

	// Options are the allowed answers, in presentation order.
	Options []Option
}

// Option is one allowed answer to a question.
type Option struct {
	// ID is the stable answer identifier, such as a work item id,
	// "confirm" or "withhold".
	ID string

	// Label describes the choice to a human.
	Label string
}

// Decision names the chosen option.
type Decision struct {
	OptionID string
	Note     string
}

// Accepts reports whether the decision picks one of the question's options.
func (q Question) Accepts(d Decision) bool {
	for _, opt := range q.Options {
		if opt.ID == d.OptionID {
			return true
		}
	}
	return false
}

// Decider answers questions the pipeline cannot settle on its own.
// Implementations may block while a human responds; they must honor ctx
// cancellation.
type Decider interface {
	Decide(ctx context.Context, q Question) (Decision, error)
}

// DeciderFunc adapts a function to the Decider interface.
type DeciderFunc func(ctx context.Context, q Question) (Decision, error)

// Decide calls f.
func (f DeciderFunc) Decide(ctx context.Context, q Question) (Decision, error) {
	return f(ctx, q)
}

// Scripted answers from a fixed table keyed by question subject. Subjects
// without an entry fall back to the default option id; with no default set
// they report ErrNoDecision. Used for non-interactive runs where the
// operator settles known questions up front.
type Scripted struct {
	answers  map[string]string
	fallback string
}

// NewScripted creates a scripted decider. The fallback option id may be
// empty, in which case unanswered subjects are errors.
func NewScripted(answers map[string]string, fallback string) *Scripted {
	if answers == nil {
		answers = make(map[string]string)
	}
	return &Scripted{answers: answers, fallback: fallback}
}

// Decide looks the subject up in the answer table.
func (s *Scripted) Decide(ctx context.Context, q Question) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}
	id, ok := s.answers[q.Subject]
	if !ok {
		if s.fallback == "" {
			return Decision{}, fmt.Errorf("%w: no scripted answer for %q", errors.ErrNoDecision, q.Subject)
		}
		id = s.fallback
	}
	d := Decision{OptionID: id, Note: "scripted answer"}
	if !q.Accepts(d) {
		return Decision{}, fmt.Errorf("%w: scripted answer %q is not an option for %q",
			errors.ErrNoDecision, id, q.Subject)
	}
	return d, nil
}

var (
	_ Decider = (DeciderFunc)(nil)
	_ Decider = (*Scripted)(nil)
)
