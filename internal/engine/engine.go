package engine

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/tidelab/swell/internal/approval"
	"github.com/tidelab/swell/internal/config"
	"github.com/tidelab/swell/internal/conflict"
	"github.com/tidelab/swell/internal/dispatch"
	"github.com/tidelab/swell/internal/drift"
	"github.com/tidelab/swell/internal/errors"
	"github.com/tidelab/swell/internal/event"
	"github.com/tidelab/swell/internal/filelock"
	"github.com/tidelab/swell/internal/iterate"
	"github.com/tidelab/swell/internal/ledger"
	"github.com/tidelab/swell/internal/logging"
	"github.com/tidelab/swell/internal/plan"
	"github.com/tidelab/swell/internal/risk"
	"github.com/tidelab/swell/internal/verify"
	"github.com/tidelab/swell/internal/work"
)

// Config assembles an Engine. Ledger is the only required field; every other
// collaborator has a working default so tests and the simulated mode need no
// ceremony.
type Config struct {
	// Settings supplies tuning for every stage. Nil means config.Default().
	Settings *config.Config

	// Ledger is the record store the run operates on. Required.
	Ledger *ledger.Ledger

	// Executor runs work items. Nil selects the configured worker command,
	// or the simulated executor when none is configured.
	Executor dispatch.Executor

	// Checker verifies waves. Nil passes every wave, which suits simulated
	// runs; production wires the real check suite here.
	Checker verify.Checker

	// Decider answers escalations, tier 3 confirmations, and recovery
	// choices. Nil means nobody answers: escalated conflicts merge and
	// failing tier 3 items roll back.
	Decider approval.Decider

	// Bus receives run, wave, item, conflict, and iteration events. Optional.
	Bus *event.Bus

	// Logger is the run logger. Nil discards logs.
	Logger *logging.Logger

	// Workspace, when set, is watched during waves for writes outside any
	// worker's owned file set.
	Workspace string

	// ArtifactDir, when set, receives item plans, the coordination view,
	// and record store snapshots.
	ArtifactDir string

	// Iterative keeps cycling until convergence instead of stopping after
	// one planning and execution pass.
	Iterative bool
}

// Engine coordinates planning, dispatch, verification, and iteration for one
// record store. Build it with New; a single Engine runs one run at a time.
type Engine struct {
	settings    *config.Config
	led         *ledger.Ledger
	classifier  *risk.Classifier
	resolver    *conflict.Resolver
	gate        *verify.Gate
	dispatcher  *dispatch.Dispatcher
	decider     approval.Decider
	registry    *filelock.Registry
	bus         *event.Bus
	log         *logging.Logger
	planWriter  *plan.Writer
	workspace   string
	artifactDir string
	iterative   bool

	running atomic.Bool
}

// New validates the configuration and wires the engine's collaborators.
func New(cfg Config) (*Engine, error) {
	if cfg.Ledger == nil {
		return nil, errors.NewValidationError("engine needs a record store")
	}

	settings := cfg.Settings
	if settings == nil {
		settings = config.Default()
	}

	log := cfg.Logger
	if log == nil {
		log = logging.NopLogger()
	}

	classifier, err := risk.NewClassifier(settings.Risk)
	if err != nil {
		return nil, errors.Wrap(err, "build risk classifier")
	}

	executor := cfg.Executor
	if executor == nil {
		if settings.Executor.Command != "" {
			executor, err = dispatch.NewScriptExecutor(settings.Executor)
			if err != nil {
				return nil, errors.Wrap(err, "build script executor")
			}
		} else {
			executor = dispatch.NewSimulatedExecutor(0)
		}
	}

	checker := cfg.Checker
	if checker == nil {
		checker = verify.CheckerFunc(func(ctx context.Context, review verify.Review) (verify.Report, error) {
			return verify.Report{Verdict: work.VerdictPass}, nil
		})
	}

	decider := cfg.Decider
	if decider == nil {
		// No answers scripted: every question falls back to its
		// conservative default.
		decider = approval.NewScripted(nil, "")
	}

	eng := &Engine{
		settings:    settings,
		led:         cfg.Ledger,
		classifier:  classifier,
		resolver:    conflict.NewResolver(settings.Conflict),
		decider:     decider,
		registry:    filelock.NewRegistry(),
		bus:         cfg.Bus,
		log:         log.WithComponent("engine"),
		workspace:   cfg.Workspace,
		artifactDir: cfg.ArtifactDir,
		iterative:   cfg.Iterative,
	}
	eng.gate = verify.NewGate(settings.Verify, checker,
		verify.WithDecider(decider),
		verify.WithBus(cfg.Bus),
		verify.WithLogger(cfg.Logger),
	)
	eng.dispatcher = dispatch.New(settings.Dispatch, executor,
		dispatch.WithBus(cfg.Bus),
		dispatch.WithLogger(cfg.Logger),
		dispatch.WithObserver(&recorder{led: cfg.Ledger, log: eng.log}),
	)
	if cfg.ArtifactDir != "" {
		eng.planWriter = plan.NewWriter(cfg.ArtifactDir, cfg.Logger)
	}
	return eng, nil
}

// run carries the state of one Run call: its id, controller, watcher, the
// report under construction, and the per-cycle accumulators the iteration
// record is built from.
type run struct {
	eng *Engine
	id  string
	log *logging.Logger

	ctl     *iterate.Controller
	watcher *drift.Watcher
	report  *RunReport

	// Reset at the start of every cycle.
	newlyCompleted []string
	regressed      []string
	added          []string
	prevRegressed  map[string]bool
}

// Run executes the full run and blocks until it converges, halts, fails, or
// the context is cancelled. Cancellation is honored between waves only: the
// wave in flight finishes, its results are recorded, and no further waves
// are dispatched.
//
// The report is returned even alongside an error so callers can render what
// the run managed before stopping.
func (e *Engine) Run(ctx context.Context) (*RunReport, error) {
	if !e.running.CompareAndSwap(false, true) {
		return nil, errors.New("a run is already in progress")
	}
	defer e.running.Store(false)

	if e.led.Len() == 0 {
		return nil, errors.NewPlanningError("the record store is empty; load a plan first", nil)
	}

	iterCfg := e.settings.Iteration
	if !e.iterative {
		iterCfg.MaxIterations = 1
	}

	r := &run{
		eng:    e,
		id:     uuid.New().String()[:8],
		ctl:    iterate.New(iterCfg, e.led, iterate.WithBus(e.bus), iterate.WithLogger(e.log)),
		report: &RunReport{},
	}
	r.log = e.log.WithRun(r.id)
	r.report.RunID = r.id

	if e.workspace != "" {
		watcher, err := drift.NewWatcher(e.workspace, e.registry, drift.WithLogger(r.log))
		if err != nil {
			return nil, errors.Wrap(err, "build drift watcher")
		}
		if err := watcher.Start(); err != nil {
			return nil, errors.Wrap(err, "start drift watcher")
		}
		r.watcher = watcher
		defer watcher.Stop()
	}

	summary := e.led.Status()
	e.publish(event.NewRunStartedEvent(r.id, summary.Total-summary.Superseded, e.iterative))
	r.log.Info("run started",
		"items", summary.Total-summary.Superseded,
		"iterative", e.iterative,
		"max_iterations", iterCfg.Budget(),
	)

	for {
		n, err := r.ctl.Begin()
		if err != nil {
			break
		}
		res, cerr := r.cycle(ctx, n)
		if cerr != nil {
			r.report.Aborted = errors.Is(cerr, context.Canceled) ||
				errors.Is(cerr, context.DeadlineExceeded)
			r.finalize()
			return r.report, cerr
		}
		if r.ctl.Finish(res) != work.RunRunning {
			break
		}
	}

	r.finalize()
	return r.report, nil
}

// finalize fills the report from the record store, publishes run.finished,
// and snapshots the store when an artifact directory is configured.
func (r *run) finalize() {
	e := r.eng
	rep := r.report
	rep.State = r.ctl.State()
	rep.Iterations = r.ctl.Iteration()
	rep.Summary = e.led.Status()
	rep.Waves = e.led.Waves()
	rep.Blocked = blockedIDs(e.led)

	e.publish(event.NewRunFinishedEvent(r.id, rep.State, rep.Iterations,
		rep.Summary.Completed, rep.Summary.Blocked))
	r.log.Info("run finished",
		"state", rep.State.String(),
		"iterations", rep.Iterations,
		"completed", rep.Summary.Completed,
		"blocked", rep.Summary.Blocked,
		"aborted", rep.Aborted,
	)

	if e.planWriter != nil {
		for _, item := range e.led.List() {
			if item.IsSuperseded() {
				continue
			}
			if err := e.planWriter.WriteItemPlan(item); err != nil {
				r.log.Warn("write final item plan", "item", item.ID, "error", err)
			}
		}
	}
	if e.artifactDir != "" {
		if err := e.led.Save(e.artifactDir); err != nil {
			r.log.Warn("save final snapshot", "error", err)
		}
	}
}

func (e *Engine) publish(ev event.Event) {
	if e.bus != nil {
		e.bus.Publish(ev)
	}
}
