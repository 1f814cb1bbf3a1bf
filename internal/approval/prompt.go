package approval

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/tidelab/swell/internal/errors"
)

// promptAttempts is how many malformed answers the prompt tolerates before
// giving up on a question.
const promptAttempts = 3

// Prompt asks questions on a terminal, one numbered option per line, and
// reads the answer back. Answers may be the option number or its id.
type Prompt struct {
	in  *bufio.Scanner
	out io.Writer
}

// NewPrompt creates a terminal decider reading answers from in.
func NewPrompt(in io.Reader, out io.Writer) *Prompt {
	return &Prompt{in: bufio.NewScanner(in), out: out}
}

// Decide prints the question and blocks until an answer arrives, the input
// closes, or ctx is cancelled.
func (p *Prompt) Decide(ctx context.Context, q Question) (Decision, error) {
	fmt.Fprintf(p.out, "\n%s\n", q.Subject)
	if q.Detail != "" {
		fmt.Fprintln(p.out, q.Detail)
	}
	for i, opt := range q.Options {
		fmt.Fprintf(p.out, "  %d) %s [%s]\n", i+1, opt.Label, opt.ID)
	}

	for attempt := 0; attempt < promptAttempts; attempt++ {
		fmt.Fprint(p.out, "> ")
		line, err := p.readLine(ctx)
		if err != nil {
			return Decision{}, err
		}
		if d, ok := matchAnswer(q, line); ok {
			return d, nil
		}
		fmt.Fprintf(p.out, "unrecognized answer %q\n", line)
	}
	return Decision{}, fmt.Errorf("%w: no usable answer after %d attempts", errors.ErrNoDecision, promptAttempts)
}

func (p *Prompt) readLine(ctx context.Context) (string, error) {
	type scanResult struct {
		line string
		err  error
	}
	ch := make(chan scanResult, 1)
	go func() {
		if p.in.Scan() {
			ch <- scanResult{line: strings.TrimSpace(p.in.Text())}
			return
		}
		err := p.in.Err()
		if err == nil {
			err = fmt.Errorf("%w: input closed", errors.ErrNoDecision)
		}
		ch <- scanResult{err: err}
	}()

	select {
	case r := <-ch:
		return r.line, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// matchAnswer resolves a typed answer to an option, by 1-based number or by
// case-insensitive id.
func matchAnswer(q Question, line string) (Decision, bool) {
	if line == "" {
		return Decision{}, false
	}
	if n, err := strconv.Atoi(line); err == nil {
		if n >= 1 && n <= len(q.Options) {
			return Decision{OptionID: q.Options[n-1].ID}, true
		}
		return Decision{}, false
	}
	for _, opt := range q.Options {
		if strings.EqualFold(opt.ID, line) {
			return Decision{OptionID: opt.ID}, true
		}
	}
	return Decision{}, false
}

var _ Decider = (*Prompt)(nil)
