package dispatch

import (
	"context"
	"fmt"
	"time"
)

// SimulatedExecutor reports success for every item after a fixed delay
// without touching any files. It backs dry runs and demos when no executor
// command is configured.
type SimulatedExecutor struct {
	delay time.Duration
}

// NewSimulatedExecutor creates a simulated executor with the given per-item
// delay. Zero means items complete immediately.
func NewSimulatedExecutor(delay time.Duration) *SimulatedExecutor {
	return &SimulatedExecutor{delay: delay}
}

// Execute pretends to complete the item.
func (e *SimulatedExecutor) Execute(ctx context.Context, req Request) (Result, error) {
	if e.delay > 0 {
		timer := time.NewTimer(e.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}
	return Result{
		Status:       StatusSuccess,
		FilesTouched: append([]string(nil), req.ExclusiveFiles...),
		Summary:      fmt.Sprintf("simulated completion of %s", req.WorkItemID),
	}, nil
}

var _ Executor = (*SimulatedExecutor)(nil)
