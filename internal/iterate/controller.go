package iterate

import (
	"fmt"
	"sort"

	"github.com/tidelab/swell/internal/config"
	"github.com/tidelab/swell/internal/errors"
	"github.com/tidelab/swell/internal/event"
	"github.com/tidelab/swell/internal/ledger"
	"github.com/tidelab/swell/internal/logging"
	"github.com/tidelab/swell/internal/work"
)

// Scope names the records the coming cycle replans.
type Scope struct {
	// Full is set on the first cycle: everything in the store is planned.
	Full bool

	// Items is the delta set for later cycles, sorted by id.
	Items []string
}

// CycleResult is the coordinator's account of one finished cycle. The
// controller computes the completion weight itself; the lists here feed the
// iteration record and the next cycle's scope.
type CycleResult struct {
	// NewlyCompleted lists items that completed during the cycle.
	NewlyCompleted []string

	// Regressed lists previously completed items this cycle's verification
	// found broken again.
	Regressed []string

	// Added lists items discovered and recorded during the cycle.
	Added []string

	// ChecksPassing reports that every wave in the cycle verified as
	// passing.
	ChecksPassing bool

	// OpenGaps counts unresolved integration gaps, such as escalations
	// still waiting on a decision.
	OpenGaps int
}

// Controller applies the convergence rules for one run. It is driven by the
// coordinating goroutine and is not safe for concurrent use.
type Controller struct {
	cfg    config.IterationConfig
	ledger *ledger.Ledger
	bus    *event.Bus
	log    *logging.Logger

	iteration  int
	state      work.RunState
	lastWeight int
	stalledFor int
}

// Option configures a Controller.
type Option func(*Controller)

// WithBus sets the event bus iteration events are published on.
func WithBus(bus *event.Bus) Option {
	return func(c *Controller) { c.bus = bus }
}

// WithLogger sets the run logger.
func WithLogger(log *logging.Logger) Option {
	return func(c *Controller) { c.log = log }
}

// New creates a Controller over the given record store. The store's current
// completion weight becomes the baseline the first cycle is measured
// against.
func New(cfg config.IterationConfig, led *ledger.Ledger, opts ...Option) *Controller {
	c := &Controller{
		cfg:        cfg,
		ledger:     led,
		log:        logging.NopLogger(),
		state:      work.RunRunning,
		lastWeight: led.CompletedWeight(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the run state.
func (c *Controller) State() work.RunState {
	return c.state
}

// Iteration returns the current 1-based cycle number, 0 before the first
// Begin.
func (c *Controller) Iteration() int {
	return c.iteration
}

// Begin opens the next cycle and returns its number. It fails with
// ErrRunHalted once the run has reached a terminal state.
func (c *Controller) Begin() (int, error) {
	if c.state.IsTerminal() {
		return 0, fmt.Errorf("%w: run is %s", errors.ErrRunHalted, c.state)
	}
	c.iteration++
	c.log.Debug("cycle started",
		"iteration", c.iteration,
		"full_discovery", c.iteration == 1,
	)
	return c.iteration, nil
}

// Scope returns what the current cycle should replan. The first cycle
// covers the whole store. Later cycles are limited to work that can still
// move the run forward:
//
//   - items the previous cycle reported regressed
//   - open must-have items, whatever their state
//   - admitted items that never completed (ready, failed, or rolled back)
//   - items discovered after the initial plan that are still open
//
// Anything else, typically lower-priority leftovers from the first full
// plan, is deliberately left out of the delta.
func (c *Controller) Scope() Scope {
	if c.iteration <= 1 {
		return Scope{Full: true}
	}

	ids := make(map[string]struct{})
	if last, ok := c.ledger.LastIteration(); ok {
		for _, id := range last.Regressed {
			ids[id] = struct{}{}
		}
	}
	for _, item := range c.ledger.List() {
		if item.IsSuperseded() || item.Status == work.StatusCompleted {
			continue
		}
		switch {
		case item.Priority == work.PriorityMust:
			ids[item.ID] = struct{}{}
		case item.Status == work.StatusReady,
			item.Status == work.StatusFailed,
			item.Status == work.StatusRolledBack:
			ids[item.ID] = struct{}{}
		case item.IterationIntroduced > 1:
			ids[item.ID] = struct{}{}
		}
	}

	items := make([]string, 0, len(ids))
	for id := range ids {
		items = append(items, id)
	}
	sort.Strings(items)
	return Scope{Items: items}
}

// Finish closes the current cycle: it computes the priority-weighted
// completion count, applies the circuit breaker and the budget, appends the
// cycle's record to the ledger, and returns the resulting run state.
//
// Completion is checked first, so a run that converges on its last allowed
// cycle ends Complete, not MaxIterationsReached, and a final cycle that
// closes the last gap without moving the weight still wins over the
// breaker. Calling Finish on a halted run returns the terminal state and
// records nothing.
func (c *Controller) Finish(res CycleResult) work.RunState {
	if c.state != work.RunRunning {
		return c.state
	}

	weight := c.ledger.CompletedWeight()
	progressed := weight != c.lastWeight
	if progressed {
		c.stalledFor = 0
	} else {
		c.stalledFor++
	}
	c.lastWeight = weight

	next := work.RunRunning
	switch {
	case res.ChecksPassing && res.OpenGaps == 0 && c.ledger.AllMustHaveDone():
		next = work.RunComplete
	case c.stalledFor >= c.cfg.StallLimit():
		next = work.RunStalled
	case c.iteration >= c.cfg.Budget():
		next = work.RunMaxIterations
	}
	c.state = next

	c.ledger.AppendIteration(work.IterationRecord{
		Iteration:      c.iteration,
		CompletedCount: weight,
		NewlyCompleted: res.NewlyCompleted,
		Regressed:      res.Regressed,
		Added:          res.Added,
		Verdict:        next,
	})

	c.log.Info("iteration finished",
		"iteration", c.iteration,
		"completed_weight", weight,
		"progressed", progressed,
		"state", next.String(),
	)
	if next == work.RunStalled {
		c.log.Warn("circuit breaker tripped",
			"stalled_cycles", c.stalledFor,
			"completed_weight", weight,
		)
	}
	if c.bus != nil {
		c.bus.Publish(event.NewIterationFinishedEvent(c.iteration, weight, progressed))
	}
	return next
}
