// Package dispatch runs the workers for one wave of scheduled work items.
//
// The dispatcher receives the wave as a slice of executor requests, runs them
// through a bounded worker pool, and reports one outcome per item. It owns
// worker lifecycle concerns only: the concurrency ceiling, the per-worker
// deadline, and the single-replacement policy for stuck workers. It never
// writes item state itself; the caller translates outcomes into status
// transitions so that all bookkeeping stays on the coordinating side.
//
// Parallel items in a wave have disjoint file ownership by construction, so
// the dispatcher takes no runtime locks around worker execution.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/tidelab/swell/internal/config"
	"github.com/tidelab/swell/internal/errors"
	"github.com/tidelab/swell/internal/event"
	"github.com/tidelab/swell/internal/logging"
)

// Observer receives worker lifecycle notifications as a wave runs.
// Notifications are delivered from worker goroutines, so implementations
// must be safe for concurrent use.
type Observer interface {
	// OnWorkerStarted fires just before a worker begins executing an item,
	// including the replacement for a stuck worker.
	OnWorkerStarted(itemID, workerID string)

	// OnWorkerFinished fires exactly once per item with its final outcome.
	// A replaced worker's discarded result is never reported.
	OnWorkerFinished(outcome *Outcome)
}

// Outcome is the final word on one dispatched item.
type Outcome struct {
	// ItemID identifies the work item.
	ItemID string

	// WorkerID names the worker that delivered (or last attempted) the item.
	WorkerID string

	// Stuck reports that the first worker hit its deadline and a replacement
	// took over.
	Stuck bool

	// Result is the worker's report. Zero when Err is set.
	Result Result

	// Err is set when no usable result was produced: the worker errored,
	// every attempt timed out, or the run was cancelled.
	Err error

	// Started and Ended bound the item's total execution time across all
	// attempts.
	Started time.Time
	Ended   time.Time
}

// Succeeded returns true if the item produced a successful result.
func (o *Outcome) Succeeded() bool {
	return o.Err == nil && o.Result.Succeeded()
}

// Duration returns the item's total execution time.
func (o *Outcome) Duration() time.Duration {
	return o.Ended.Sub(o.Started)
}

// Report collects the outcomes of one dispatched wave, in the wave's item
// order.
type Report struct {
	Wave     int
	Outcomes []*Outcome
}

// AllSucceeded returns true if every item in the wave succeeded.
func (r *Report) AllSucceeded() bool {
	for _, o := range r.Outcomes {
		if !o.Succeeded() {
			return false
		}
	}
	return true
}

// Failures returns the outcomes that did not succeed.
func (r *Report) Failures() []*Outcome {
	var failed []*Outcome
	for _, o := range r.Outcomes {
		if !o.Succeeded() {
			failed = append(failed, o)
		}
	}
	return failed
}

// Outcome returns the outcome for the given item, if the wave included it.
func (r *Report) Outcome(itemID string) (*Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.ItemID == itemID {
			return o, true
		}
	}
	return nil, false
}

// Dispatcher executes waves of work items against a configured executor.
type Dispatcher struct {
	cfg      config.DispatchConfig
	executor Executor
	timeout  time.Duration
	bus      *event.Bus
	log      *logging.Logger
	observer Observer
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithBus publishes wave and worker events to the given bus.
func WithBus(bus *event.Bus) Option {
	return func(d *Dispatcher) { d.bus = bus }
}

// WithLogger sets the dispatcher's logger.
func WithLogger(log *logging.Logger) Option {
	return func(d *Dispatcher) {
		if log != nil {
			d.log = log
		}
	}
}

// WithObserver registers a lifecycle observer.
func WithObserver(obs Observer) Option {
	return func(d *Dispatcher) { d.observer = obs }
}

// WithTimeout overrides the configured worker deadline. Zero disables the
// deadline entirely, leaving workers bounded only by the run context.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) { d.timeout = timeout }
}

// New creates a dispatcher that runs items through the given executor.
func New(cfg config.DispatchConfig, executor Executor, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		cfg:      cfg,
		executor: executor,
		timeout:  cfg.WorkerTimeout(),
		log:      logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run dispatches one wave and blocks until every item has an outcome. The
// concurrency ceiling comes from the configuration, scaled to the wave size
// unless pinned. Outcomes are returned in request order.
//
// A cancelled ctx stops the wave early: in-flight workers are cancelled and
// remaining items fail immediately with the context error. The report is
// still returned alongside that error so the caller can record any results
// that beat the cancellation.
func (d *Dispatcher) Run(ctx context.Context, wave int, reqs []Request) (*Report, error) {
	report := &Report{Wave: wave}
	if d.executor == nil {
		return report, errors.NewDispatchError("no executor configured", nil).WithWave(wave)
	}
	if len(reqs) == 0 {
		return report, nil
	}

	limit := d.cfg.ParallelForWave(len(reqs))
	ids := make([]string, len(reqs))
	for i, req := range reqs {
		ids[i] = req.WorkItemID
	}
	d.publish(event.NewWaveStartedEvent(wave, ids, limit))
	d.log.WithWave(wave).Info("dispatching wave",
		"items", len(reqs),
		"parallelism", limit,
		"worker_timeout", d.timeout,
	)

	outcomes := make([]*Outcome, len(reqs))
	workers := pool.New().WithMaxGoroutines(limit)
	for i, req := range reqs {
		i, req := i, req
		workers.Go(func() {
			outcomes[i] = d.runItem(ctx, wave, req)
		})
	}
	workers.Wait()

	report.Outcomes = outcomes
	if err := ctx.Err(); err != nil {
		d.log.WithWave(wave).Warn("wave cancelled before completion")
		return report, err
	}
	return report, nil
}

// runItem executes one item, replacing its worker at most once if the first
// attempt hits the deadline.
func (d *Dispatcher) runItem(ctx context.Context, wave int, req Request) *Outcome {
	out := &Outcome{
		ItemID:   req.WorkItemID,
		WorkerID: workerName(req.WorkItemID, 1),
		Started:  time.Now(),
	}
	log := d.log.WithWave(wave).WithItem(req.WorkItemID)

	d.publish(event.NewItemDispatchedEvent(req.WorkItemID, wave, out.WorkerID))
	d.notifyStarted(req.WorkItemID, out.WorkerID)
	log.Info("worker started", "worker", out.WorkerID, "owned_files", len(req.ExclusiveFiles))

	res, err := d.attempt(ctx, wave, 1, req)
	if err != nil && errors.Is(err, errors.ErrWorkerTimeout) && ctx.Err() == nil {
		stuck := out.WorkerID
		out.Stuck = true
		out.WorkerID = workerName(req.WorkItemID, 2)

		d.publish(event.NewWorkerStuckEvent(req.WorkItemID, stuck, out.WorkerID))
		d.notifyStarted(req.WorkItemID, out.WorkerID)
		log.Warn("worker stuck, replacement taking over",
			"worker", stuck,
			"replacement", out.WorkerID,
			"deadline", d.timeout,
		)

		res, err = d.attempt(ctx, wave, 2, takeoverRequest(req))
	}

	out.Result = res
	out.Err = err
	out.Ended = time.Now()

	summary := res.Summary
	if err != nil {
		summary = err.Error()
	} else if !res.Succeeded() && res.ErrorDetail != "" {
		summary = res.ErrorDetail
	}
	d.publish(event.NewItemFinishedEvent(req.WorkItemID, wave, out.Succeeded(), summary))
	d.notifyFinished(out)

	if out.Succeeded() {
		log.Info("worker finished",
			"worker", out.WorkerID,
			"files_touched", len(res.FilesTouched),
			"duration", out.Duration(),
		)
	} else {
		log.Warn("worker did not succeed", "worker", out.WorkerID, "reason", summary)
	}
	return out
}

// attempt runs the executor once under the worker deadline. A deadline hit is
// reported as ErrWorkerTimeout, but only after the cancelled worker has
// acknowledged and returned, so a follow-up attempt never overlaps it. Any
// late result from a timed-out worker is discarded.
func (d *Dispatcher) attempt(ctx context.Context, wave, n int, req Request) (Result, error) {
	actx := ctx
	var cancel context.CancelFunc
	if d.timeout > 0 {
		actx, cancel = context.WithTimeout(ctx, d.timeout)
	} else {
		actx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	type reply struct {
		res Result
		err error
	}
	done := make(chan reply, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- reply{err: d.wrap(fmt.Sprintf("worker panic: %v", r), nil, req, wave, n)}
			}
		}()
		res, err := d.executor.Execute(actx, req)
		done <- reply{res: res, err: err}
	}()

	select {
	case r := <-done:
		switch {
		case r.err != nil && ctx.Err() != nil:
			// The run was cancelled; a worker error here is not its fault.
			// A real result that beat the cancellation is still kept.
			return Result{}, ctx.Err()
		case r.err != nil && errors.Is(r.err, context.DeadlineExceeded):
			// The worker noticed the deadline before we did.
			return Result{}, d.timeoutError(req, wave, n)
		case r.err != nil:
			return Result{}, d.wrap("worker error", r.err, req, wave, n)
		case !r.res.Status.IsValid():
			return Result{}, d.wrap(fmt.Sprintf("executor reported unknown status %q", r.res.Status), nil, req, wave, n)
		default:
			return r.res, nil
		}
	case <-actx.Done():
		if err := ctx.Err(); err != nil {
			// Run-level cancellation, not a worker fault.
			return Result{}, err
		}
		// Deadline hit. Cancellation has already propagated through actx;
		// wait for the worker to return before reporting it stuck.
		<-done
		return Result{}, d.timeoutError(req, wave, n)
	}
}

func (d *Dispatcher) timeoutError(req Request, wave, n int) error {
	msg := fmt.Sprintf("no result within %s", d.timeout)
	return errors.NewDispatchError(msg, errors.ErrWorkerTimeout).
		WithItemID(req.WorkItemID).
		WithWave(wave).
		WithAttempt(n)
}

func (d *Dispatcher) wrap(msg string, cause error, req Request, wave, n int) error {
	return errors.NewDispatchError(msg, cause).
		WithItemID(req.WorkItemID).
		WithWave(wave).
		WithAttempt(n)
}

func (d *Dispatcher) publish(ev event.Event) {
	if d.bus != nil {
		d.bus.Publish(ev)
	}
}

func (d *Dispatcher) notifyStarted(itemID, workerID string) {
	if d.observer != nil {
		d.observer.OnWorkerStarted(itemID, workerID)
	}
}

func (d *Dispatcher) notifyFinished(out *Outcome) {
	if d.observer != nil {
		d.observer.OnWorkerFinished(out)
	}
}

// takeoverRequest builds the request for a replacement worker. It inherits
// the stuck worker's full context plus a note that partial work may exist.
func takeoverRequest(req Request) Request {
	const note = "A previous worker stalled on this item and was cancelled. " +
		"Reconcile any partial work before continuing."
	if req.ContextSummary == "" {
		req.ContextSummary = note
	} else {
		req.ContextSummary += "\n\n" + note
	}
	return req
}

func workerName(itemID string, attempt int) string {
	return fmt.Sprintf("%s-w%d", itemID, attempt)
}
