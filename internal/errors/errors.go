// Package errors provides centralized error definitions and error handling
// utilities for the swell codebase. It defines domain-specific errors, semantic
// error types, error constructors with context wrapping, and classification
// helpers.
//
// # Error Types
//
// The package provides two categories of errors:
//
// Domain-specific errors represent errors from specific subsystems:
//   - PlanningError: malformed or ambiguous seed work items
//   - ConflictError: resource-overlap conflicts that could not be resolved
//   - ScheduleError: dependency graph and wave layering failures
//   - DispatchError: worker execution failures and timeouts
//   - VerificationError: wave verification failures
//
// Semantic errors represent common error conditions:
//   - NotFoundError: resource not found
//   - AlreadyExistsError: resource already exists
//   - ValidationError: invalid input or state
//   - TimeoutError: operation timed out
//
// # Usage
//
// Creating errors:
//
//	// Domain-specific error
//	err := errors.NewDispatchError("worker returned failure", errors.ErrWorkerFailed)
//
//	// Semantic error
//	err := errors.NewNotFoundError("work item", "item-3")
//
//	// With context wrapping
//	err := errors.NewDispatchError("no result before deadline", errors.ErrWorkerTimeout).
//		WithItemID("item-3").WithWave(2)
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrWorkerTimeout) { ... }
//
//	var dispatchErr *errors.DispatchError
//	if errors.As(err, &dispatchErr) { ... }
//
//	if errors.IsRetryable(err) { ... }
//	if errors.IsUserFacing(err) { ... }
//
// # Error Classification
//
// Errors can be classified by severity and behavior:
//   - Retryable: transient errors that may succeed on retry
//   - UserFacing: errors safe to display to users (vs internal errors)
//   - Severity: Debug, Info, Warning, Error, Critical
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Ledger-related sentinel errors
var (
	// ErrItemNotFound indicates that a work item could not be found.
	ErrItemNotFound = New("work item not found")
	// ErrItemExists indicates that a work item with the same id is already recorded.
	ErrItemExists = New("work item already exists")
	// ErrInvalidTransition indicates a disallowed work item status transition.
	ErrInvalidTransition = New("invalid status transition")
	// ErrLedgerCorrupted indicates that persisted ledger state could not be decoded.
	ErrLedgerCorrupted = New("ledger state corrupted")
)

// Scheduling-related sentinel errors
var (
	// ErrDependencyCycle indicates a circular dependency among work items.
	ErrDependencyCycle = New("dependency cycle detected")
	// ErrUnknownDependency indicates a dependsOn reference to a missing item.
	ErrUnknownDependency = New("dependency references unknown work item")
	// ErrMissingRiskTier indicates an item reached scheduling without a tier.
	ErrMissingRiskTier = New("work item has no risk tier")
	// ErrMissingFailureNote indicates a tier 1+ item without a failure-mode note.
	ErrMissingFailureNote = New("work item missing failure-mode note")
)

// Conflict-related sentinel errors
var (
	// ErrUnresolvedEscalation indicates a create/create conflict awaiting a decision.
	ErrUnresolvedEscalation = New("conflict escalation unresolved")
	// ErrConflictUndecidable indicates the resolver could not classify a conflict.
	ErrConflictUndecidable = New("conflict cannot be resolved automatically")
)

// Dispatch-related sentinel errors
var (
	// ErrWorkerFailed indicates that a worker reported failure.
	ErrWorkerFailed = New("worker failed")
	// ErrWorkerTimeout indicates that a worker produced no result before its deadline.
	ErrWorkerTimeout = New("worker timed out")
	// ErrRunAborted indicates that an operator requested a between-waves abort.
	ErrRunAborted = New("run aborted")
)

// Verification-related sentinel errors
var (
	// ErrVerificationFailed indicates that a wave failed its verification check.
	ErrVerificationFailed = New("wave verification failed")
	// ErrRollbackPlanRequired indicates a tier 3 wave lacks an external rollback plan.
	ErrRollbackPlanRequired = New("rollback plan required")
	// ErrFixAttemptsExhausted indicates an item exhausted its fix-and-retry budget.
	ErrFixAttemptsExhausted = New("fix attempts exhausted")
)

// Decision-boundary sentinel errors
var (
	// ErrNoDecision indicates the decider could not produce an answer.
	ErrNoDecision = New("no decision available")
)

// Convergence-related sentinel errors
var (
	// ErrRunHalted indicates the convergence loop already reached a terminal state.
	ErrRunHalted = New("run already halted")
)

// General sentinel errors
var (
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = New("operation canceled")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// SwellError is the base interface for all swell errors.
// It extends the standard error interface with additional methods for
// error handling and classification.
type SwellError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// PlanningError represents a malformed or ambiguous seed work item. These
// surface before any wave is dispatched.
//
// Example:
//
//	err := errors.NewPlanningError("duplicate work item id", errors.ErrItemExists).
//		WithItemID("item-2")
type PlanningError struct {
	baseError
	ItemID string
}

// NewPlanningError creates a new PlanningError.
func NewPlanningError(message string, cause error) *PlanningError {
	return &PlanningError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithItemID adds a work item id to the error context.
func (e *PlanningError) WithItemID(id string) *PlanningError {
	e.ItemID = id
	return e
}

// WithSeverity sets the error severity.
func (e *PlanningError) WithSeverity(s Severity) *PlanningError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *PlanningError) Error() string {
	prefix := "planning error"
	if e.ItemID != "" {
		prefix = fmt.Sprintf("planning error [item=%s]", e.ItemID)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *PlanningError) Is(target error) bool {
	if _, ok := target.(*PlanningError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ConflictError represents a resource-overlap conflict that could not be
// resolved automatically.
//
// Example:
//
//	err := errors.NewConflictError("both items create the file", errors.ErrUnresolvedEscalation).
//		WithFile("schema.sql").WithItems("item-1", "item-4")
type ConflictError struct {
	baseError
	File  string
	Items []string
}

// NewConflictError creates a new ConflictError.
func NewConflictError(message string, cause error) *ConflictError {
	return &ConflictError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithFile adds the contested file to the error context.
func (e *ConflictError) WithFile(file string) *ConflictError {
	e.File = file
	return e
}

// WithItems adds the conflicting work item ids to the error context.
func (e *ConflictError) WithItems(ids ...string) *ConflictError {
	e.Items = append(e.Items, ids...)
	return e
}

// Error returns the formatted error message.
func (e *ConflictError) Error() string {
	var parts []string
	if e.File != "" {
		parts = append(parts, fmt.Sprintf("file=%s", e.File))
	}
	if len(e.Items) > 0 {
		parts = append(parts, fmt.Sprintf("items=%s", strings.Join(e.Items, "+")))
	}

	prefix := "conflict error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("conflict error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ConflictError) Is(target error) bool {
	if _, ok := target.(*ConflictError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ScheduleError represents a dependency graph or wave layering failure.
//
// Example:
//
//	err := errors.NewScheduleError("layering did not consume all items", errors.ErrDependencyCycle).
//		WithCycle([]string{"a", "b", "a"})
type ScheduleError struct {
	baseError
	Cycle []string
}

// NewScheduleError creates a new ScheduleError.
func NewScheduleError(message string, cause error) *ScheduleError {
	return &ScheduleError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithCycle records the detected cycle path on the error.
func (e *ScheduleError) WithCycle(cycle []string) *ScheduleError {
	e.Cycle = cycle
	return e
}

// Error returns the formatted error message.
func (e *ScheduleError) Error() string {
	prefix := "schedule error"
	if len(e.Cycle) > 0 {
		prefix = fmt.Sprintf("schedule error [cycle=%s]", strings.Join(e.Cycle, "->"))
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ScheduleError) Is(target error) bool {
	if _, ok := target.(*ScheduleError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// DispatchError represents a worker execution failure or timeout.
//
// Example:
//
//	err := errors.NewDispatchError("no result before deadline", errors.ErrWorkerTimeout).
//		WithItemID("item-3").WithWave(2).WithAttempt(1)
type DispatchError struct {
	baseError
	ItemID  string
	Wave    int
	Attempt int
}

// NewDispatchError creates a new DispatchError.
func NewDispatchError(message string, cause error) *DispatchError {
	return &DispatchError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
		Wave: -1, // -1 indicates not set
	}
}

// WithItemID adds a work item id to the error context.
func (e *DispatchError) WithItemID(id string) *DispatchError {
	e.ItemID = id
	return e
}

// WithWave adds a wave index to the error context.
func (e *DispatchError) WithWave(idx int) *DispatchError {
	e.Wave = idx
	return e
}

// WithAttempt adds the attempt number to the error context.
func (e *DispatchError) WithAttempt(n int) *DispatchError {
	e.Attempt = n
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *DispatchError) WithRetryable(r bool) *DispatchError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *DispatchError) Error() string {
	var parts []string
	if e.ItemID != "" {
		parts = append(parts, fmt.Sprintf("item=%s", e.ItemID))
	}
	if e.Wave >= 0 {
		parts = append(parts, fmt.Sprintf("wave=%d", e.Wave))
	}
	if e.Attempt > 0 {
		parts = append(parts, fmt.Sprintf("attempt=%d", e.Attempt))
	}

	prefix := "dispatch error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("dispatch error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *DispatchError) Is(target error) bool {
	if _, ok := target.(*DispatchError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// VerificationError represents a wave verification failure.
//
// Example:
//
//	err := errors.NewVerificationError("regression check failed", errors.ErrVerificationFailed).
//		WithWave(1).WithTier(2)
type VerificationError struct {
	baseError
	Wave int
	Tier int
}

// NewVerificationError creates a new VerificationError.
func NewVerificationError(message string, cause error) *VerificationError {
	return &VerificationError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
		Wave: -1,
		Tier: -1,
	}
}

// WithWave adds a wave index to the error context.
func (e *VerificationError) WithWave(idx int) *VerificationError {
	e.Wave = idx
	return e
}

// WithTier adds the governing risk tier to the error context.
func (e *VerificationError) WithTier(tier int) *VerificationError {
	e.Tier = tier
	return e
}

// WithSeverity sets the error severity.
func (e *VerificationError) WithSeverity(s Severity) *VerificationError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *VerificationError) Error() string {
	var parts []string
	if e.Wave >= 0 {
		parts = append(parts, fmt.Sprintf("wave=%d", e.Wave))
	}
	if e.Tier >= 0 {
		parts = append(parts, fmt.Sprintf("tier=%d", e.Tier))
	}

	prefix := "verification error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("verification error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *VerificationError) Is(target error) bool {
	if _, ok := target.(*VerificationError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("work item", "item-3")
//	fmt.Println(err) // "work item 'item-3' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' not found: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	if errors.Is(target, ErrItemNotFound) {
		return true
	}
	return e.baseError.Is(target)
}

// AlreadyExistsError represents a resource that already exists.
type AlreadyExistsError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewAlreadyExistsError creates a new AlreadyExistsError.
func NewAlreadyExistsError(resourceType, resourceID string) *AlreadyExistsError {
	return &AlreadyExistsError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' already exists", resourceType, resourceID),
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *AlreadyExistsError) WithCause(cause error) *AlreadyExistsError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *AlreadyExistsError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' already exists: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' already exists", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *AlreadyExistsError) Is(target error) bool {
	if _, ok := target.(*AlreadyExistsError); ok {
		return true
	}
	if errors.Is(target, ErrItemExists) {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("work item id cannot be empty").
//		WithField("id")
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}

	prefix := "validation error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("validation error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	return e.baseError.Is(target)
}

// TimeoutError represents an operation that timed out.
//
// Example:
//
//	err := errors.NewTimeoutError("waiting for worker result", 5*time.Minute)
//	fmt.Println(err) // "timeout error: waiting for worker result (timeout: 5m0s)"
type TimeoutError struct {
	baseError
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{
			message:    operation,
			severity:   SeverityWarning,
			retryable:  true, // timeouts are generally retryable
			userFacing: true,
		},
		Operation: operation,
		Duration:  duration,
	}
}

// WithCause adds a cause to the error.
func (e *TimeoutError) WithCause(cause error) *TimeoutError {
	e.cause = cause
	return e
}

// WithRetryable sets whether the error is retryable (default true for timeouts).
func (e *TimeoutError) WithRetryable(r bool) *TimeoutError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *TimeoutError) Error() string {
	base := fmt.Sprintf("timeout error: %s (timeout: %s)", e.Operation, e.Duration)
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", base, e.cause)
	}
	return base
}

// Is checks if this error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if _, ok := target.(*TimeoutError); ok {
		return true
	}
	if errors.Is(target, ErrTimeout) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry. This checks for:
//   - Errors implementing SwellError with IsRetryable() returning true
//   - TimeoutError instances
//   - Errors wrapping ErrTimeout or ErrWorkerTimeout
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var swellErr SwellError
	if As(err, &swellErr) {
		return swellErr.IsRetryable()
	}

	if Is(err, ErrTimeout) || Is(err, ErrWorkerTimeout) {
		return true
	}

	return false
}

// IsUserFacing returns true if the error message is safe to display to end
// users. Semantic errors are always user-facing; everything else defers to
// the SwellError interface when implemented.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var swellErr SwellError
	if As(err, &swellErr) {
		return swellErr.IsUserFacing()
	}

	var notFound *NotFoundError
	var alreadyExists *AlreadyExistsError
	var validation *ValidationError
	var timeout *TimeoutError

	if As(err, &notFound) || As(err, &alreadyExists) ||
		As(err, &validation) || As(err, &timeout) {
		return true
	}

	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement SwellError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var swellErr SwellError
	if As(err, &swellErr) {
		return swellErr.Severity()
	}

	return SeverityError
}

// IsDomainError returns true if the error is a domain-specific error
// (PlanningError, ConflictError, ScheduleError, DispatchError, or
// VerificationError).
func IsDomainError(err error) bool {
	if err == nil {
		return false
	}

	var planningErr *PlanningError
	var conflictErr *ConflictError
	var scheduleErr *ScheduleError
	var dispatchErr *DispatchError
	var verifyErr *VerificationError

	return As(err, &planningErr) || As(err, &conflictErr) ||
		As(err, &scheduleErr) || As(err, &dispatchErr) || As(err, &verifyErr)
}

// IsSemanticError returns true if the error is a semantic error
// (NotFoundError, AlreadyExistsError, ValidationError, or TimeoutError).
func IsSemanticError(err error) bool {
	if err == nil {
		return false
	}

	var notFound *NotFoundError
	var alreadyExists *AlreadyExistsError
	var validation *ValidationError
	var timeout *TimeoutError

	return As(err, &notFound) || As(err, &alreadyExists) ||
		As(err, &validation) || As(err, &timeout)
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
//
// Example:
//
//	err := errors.Wrap(baseErr, "failed to schedule wave")
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
//
// Example:
//
//	err := errors.Wrapf(baseErr, "failed to dispatch item %s", itemID)
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
