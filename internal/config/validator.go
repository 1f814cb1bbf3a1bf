package config

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/gobwas/glob"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "dispatch.max_parallel")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate Dispatch config
	errors = append(errors, c.validateDispatch()...)

	// Validate Conflict config
	errors = append(errors, c.validateConflict()...)

	// Validate Risk config
	errors = append(errors, c.validateRisk()...)

	// Validate Verify config
	errors = append(errors, c.validateVerify()...)

	// Validate Iteration config
	errors = append(errors, c.validateIteration()...)

	// Validate Executor config
	errors = append(errors, c.validateExecutor()...)

	// Validate Logging config
	errors = append(errors, c.validateLogging()...)

	// Validate Paths config
	errors = append(errors, c.validatePaths()...)

	return errors
}

// validateDispatch validates the DispatchConfig
func (c *Config) validateDispatch() []ValidationError {
	var errors []ValidationError

	// 0 means auto-scale with wave size; negatives are invalid
	const maxMaxParallel = 16
	if c.Dispatch.MaxParallel < 0 {
		errors = append(errors, ValidationError{
			Field:   "dispatch.max_parallel",
			Value:   c.Dispatch.MaxParallel,
			Message: "must be non-negative (0 scales with wave size)",
		})
	}
	if c.Dispatch.MaxParallel > maxMaxParallel {
		errors = append(errors, ValidationError{
			Field:   "dispatch.max_parallel",
			Value:   c.Dispatch.MaxParallel,
			Message: fmt.Sprintf("exceeds maximum of %d", maxMaxParallel),
		})
	}

	// Worker timeout bounds
	const minWorkerTimeout = 1    // 1 second minimum
	const maxWorkerTimeout = 7200 // 2 hours maximum

	if c.Dispatch.WorkerTimeoutSeconds < minWorkerTimeout {
		errors = append(errors, ValidationError{
			Field:   "dispatch.worker_timeout_seconds",
			Value:   c.Dispatch.WorkerTimeoutSeconds,
			Message: fmt.Sprintf("must be at least %d second", minWorkerTimeout),
		})
	}
	if c.Dispatch.WorkerTimeoutSeconds > maxWorkerTimeout {
		errors = append(errors, ValidationError{
			Field:   "dispatch.worker_timeout_seconds",
			Value:   c.Dispatch.WorkerTimeoutSeconds,
			Message: fmt.Sprintf("exceeds maximum of %d seconds (2 hours)", maxWorkerTimeout),
		})
	}

	return errors
}

// validateConflict validates the ConflictConfig
func (c *Config) validateConflict() []ValidationError {
	var errors []ValidationError

	if c.Conflict.TieBreak != "" && !IsValidTieBreak(c.Conflict.TieBreak) {
		errors = append(errors, ValidationError{
			Field:   "conflict.tie_break",
			Value:   c.Conflict.TieBreak,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidTieBreaks(), ", ")),
		})
	}

	return errors
}

// validateRisk validates the RiskConfig
func (c *Config) validateRisk() []ValidationError {
	var errors []ValidationError

	errors = append(errors, validatePatternList(c.Risk.Tier3Patterns, "risk.tier3_patterns")...)
	errors = append(errors, validatePatternList(c.Risk.Tier2Patterns, "risk.tier2_patterns")...)
	errors = append(errors, validatePatternList(c.Risk.Tier1Patterns, "risk.tier1_patterns")...)

	return errors
}

// validatePatternList checks that every entry in a tier pattern list is a
// compilable glob
func validatePatternList(patterns []string, fieldPrefix string) []ValidationError {
	var errors []ValidationError

	seen := make(map[string]bool)

	for i, pattern := range patterns {
		fieldName := fmt.Sprintf("%s[%d]", fieldPrefix, i)

		if strings.TrimSpace(pattern) == "" {
			errors = append(errors, ValidationError{
				Field:   fieldName,
				Value:   pattern,
				Message: "pattern cannot be empty",
			})
			continue
		}

		if strings.ContainsRune(pattern, '\x00') {
			errors = append(errors, ValidationError{
				Field:   fieldName,
				Value:   pattern,
				Message: "pattern contains invalid null character",
			})
			continue
		}

		if _, err := glob.Compile(pattern, '/'); err != nil {
			errors = append(errors, ValidationError{
				Field:   fieldName,
				Value:   pattern,
				Message: fmt.Sprintf("invalid glob pattern: %v", err),
			})
		}

		if seen[pattern] {
			errors = append(errors, ValidationError{
				Field:   fieldName,
				Value:   pattern,
				Message: "duplicate pattern",
			})
		}
		seen[pattern] = true
	}

	return errors
}

// validateVerify validates the VerifyConfig
func (c *Config) validateVerify() []ValidationError {
	var errors []ValidationError

	const minFixAttempts = 1
	const maxFixAttempts = 10

	if c.Verify.MaxFixAttempts < minFixAttempts {
		errors = append(errors, ValidationError{
			Field:   "verify.max_fix_attempts",
			Value:   c.Verify.MaxFixAttempts,
			Message: fmt.Sprintf("must be at least %d", minFixAttempts),
		})
	}
	if c.Verify.MaxFixAttempts > maxFixAttempts {
		errors = append(errors, ValidationError{
			Field:   "verify.max_fix_attempts",
			Value:   c.Verify.MaxFixAttempts,
			Message: fmt.Sprintf("exceeds maximum of %d", maxFixAttempts),
		})
	}

	return errors
}

// validateIteration validates the IterationConfig
func (c *Config) validateIteration() []ValidationError {
	var errors []ValidationError

	const minIterations = 1
	const maxIterations = 100

	if c.Iteration.MaxIterations < minIterations {
		errors = append(errors, ValidationError{
			Field:   "iteration.max_iterations",
			Value:   c.Iteration.MaxIterations,
			Message: fmt.Sprintf("must be at least %d", minIterations),
		})
	}
	if c.Iteration.MaxIterations > maxIterations {
		errors = append(errors, ValidationError{
			Field:   "iteration.max_iterations",
			Value:   c.Iteration.MaxIterations,
			Message: fmt.Sprintf("exceeds maximum of %d", maxIterations),
		})
	}

	// The stall detector needs two consecutive flat iterations before it
	// may halt a run, so anything lower would fire spuriously.
	const minStallThreshold = 2
	const maxStallThreshold = 10

	if c.Iteration.StallThreshold < minStallThreshold {
		errors = append(errors, ValidationError{
			Field:   "iteration.stall_threshold",
			Value:   c.Iteration.StallThreshold,
			Message: fmt.Sprintf("must be at least %d", minStallThreshold),
		})
	}
	if c.Iteration.StallThreshold > maxStallThreshold {
		errors = append(errors, ValidationError{
			Field:   "iteration.stall_threshold",
			Value:   c.Iteration.StallThreshold,
			Message: fmt.Sprintf("exceeds maximum of %d", maxStallThreshold),
		})
	}

	return errors
}

// validateExecutor validates the ExecutorConfig
func (c *Config) validateExecutor() []ValidationError {
	var errors []ValidationError

	// Validate work dir if specified
	if c.Executor.WorkDir != "" {
		info, err := os.Stat(c.Executor.WorkDir)
		if err != nil {
			errors = append(errors, ValidationError{
				Field:   "executor.work_dir",
				Value:   c.Executor.WorkDir,
				Message: "directory does not exist",
			})
		} else if !info.IsDir() {
			errors = append(errors, ValidationError{
				Field:   "executor.work_dir",
				Value:   c.Executor.WorkDir,
				Message: "is not a directory",
			})
		}
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	// Validate log level
	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}

// validatePaths validates the PathsConfig
func (c *Config) validatePaths() []ValidationError {
	var errors []ValidationError

	// ArtifactDir validation - if set, check for invalid characters
	if c.Paths.ArtifactDir != "" {
		path := c.Paths.ArtifactDir

		// Check for null bytes which are invalid in paths
		if strings.ContainsRune(path, '\x00') {
			errors = append(errors, ValidationError{
				Field:   "paths.artifact_dir",
				Value:   path,
				Message: "path contains invalid null character",
			})
		}

		// Reasonable path length limit (most filesystems have limits around 4096)
		const maxPathLength = 4096
		if len(path) > maxPathLength {
			errors = append(errors, ValidationError{
				Field:   "paths.artifact_dir",
				Value:   path,
				Message: fmt.Sprintf("path exceeds maximum length of %d characters", maxPathLength),
			})
		}
	}

	return errors
}
