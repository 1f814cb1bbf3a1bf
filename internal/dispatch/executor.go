package dispatch

import "context"

// ResultStatus is the outcome an executor reports for a single work item.
type ResultStatus string

const (
	// StatusSuccess means the worker completed the item.
	StatusSuccess ResultStatus = "success"
	// StatusFailure means the worker gave up on the item.
	StatusFailure ResultStatus = "failure"
)

// IsValid returns true for a recognized result status.
func (s ResultStatus) IsValid() bool {
	return s == StatusSuccess || s == StatusFailure
}

// Request is the payload handed to a worker for one work item. ExclusiveFiles
// is the item's full ownership set; a worker must not touch paths outside it.
type Request struct {
	WorkItemID     string   `json:"work_item_id"`
	Description    string   `json:"description"`
	ExclusiveFiles []string `json:"exclusive_files,omitempty"`
	ContextSummary string   `json:"context_summary,omitempty"`
}

// Result is what a worker reports back after executing a request.
// FilesTouched lists the paths the worker actually changed, which may differ
// from the declared ownership set and feeds the drift check.
type Result struct {
	Status       ResultStatus `json:"status"`
	FilesTouched []string     `json:"files_touched,omitempty"`
	Summary      string       `json:"summary,omitempty"`
	ErrorDetail  string       `json:"error_detail,omitempty"`
}

// Succeeded returns true if the worker reported success.
func (r Result) Succeeded() bool {
	return r.Status == StatusSuccess
}

// Executor runs work items. Implementations wrap whatever actually performs
// the work: a local script, a remote agent, or a test fake.
//
// Execute must honor ctx cancellation and return promptly once it fires. The
// dispatcher relies on this to guarantee that a stuck worker and its
// replacement never run at the same time.
type Executor interface {
	Execute(ctx context.Context, req Request) (Result, error)
}
