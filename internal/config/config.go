package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete Swell configuration
type Config struct {
	Dispatch  DispatchConfig  `mapstructure:"dispatch"`
	Conflict  ConflictConfig  `mapstructure:"conflict"`
	Risk      RiskConfig      `mapstructure:"risk"`
	Verify    VerifyConfig    `mapstructure:"verify"`
	Iteration IterationConfig `mapstructure:"iteration"`
	Executor  ExecutorConfig  `mapstructure:"executor"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Paths     PathsConfig     `mapstructure:"paths"`
}

// DispatchConfig controls how waves of work items are dispatched to workers
type DispatchConfig struct {
	// MaxParallel is the concurrency ceiling for a wave (default: 0)
	// When 0, the ceiling scales with the wave size, clamped between 2 and 6.
	MaxParallel int `mapstructure:"max_parallel"`
	// WorkerTimeoutSeconds is how long a worker may run on a single item
	// before it is marked stuck and replaced (default: 300)
	WorkerTimeoutSeconds int `mapstructure:"worker_timeout_seconds"`
}

// ConflictConfig controls how file conflicts between work items are resolved
type ConflictConfig struct {
	// TieBreak picks the ordering when two modifiers of the same file have an
	// equal number of dependents (default: "tier")
	// Options: "tier" orders the lower risk tier first, "priority" orders the
	// higher priority item first
	TieBreak string `mapstructure:"tie_break"`
}

// RiskConfig maps file path patterns to risk tiers.
// Patterns use glob syntax with '/' as the separator; a work item whose
// declared files match a pattern is raised to at least that tier.
type RiskConfig struct {
	// Tier3Patterns match files whose changes are hard or impossible to
	// reverse, such as schema migrations
	Tier3Patterns []string `mapstructure:"tier3_patterns"`
	// Tier2Patterns match security-sensitive or persistence-adjacent files
	Tier2Patterns []string `mapstructure:"tier2_patterns"`
	// Tier1Patterns match user-visible surfaces and tightly coupled modules
	Tier1Patterns []string `mapstructure:"tier1_patterns"`
}

// VerifyConfig controls wave verification behavior
type VerifyConfig struct {
	// MaxFixAttempts is how many fix workers are dispatched for a failed
	// verification before the affected items are marked blocked (default: 2)
	MaxFixAttempts int `mapstructure:"max_fix_attempts"`
	// ConfirmTier3 requires an explicit confirmation decision before a wave
	// containing tier 3 work may pass verification (default: true)
	ConfirmTier3 bool `mapstructure:"confirm_tier3"`
}

// IterationConfig controls the outer convergence loop
type IterationConfig struct {
	// MaxIterations is the iteration budget for a run (default: 5)
	MaxIterations int `mapstructure:"max_iterations"`
	// StallThreshold is how many consecutive iterations may pass with zero
	// priority-weighted progress before the run halts as stalled (default: 2)
	StallThreshold int `mapstructure:"stall_threshold"`
}

// ExecutorConfig controls how work items are executed
type ExecutorConfig struct {
	// Command is a shell command run once per work item; the item payload is
	// written to its stdin as JSON and the result is read from its stdout.
	// When empty, the built-in simulated executor is used.
	Command string `mapstructure:"command"`
	// WorkDir is the working directory for executor commands.
	// If empty, the current directory is used.
	WorkDir string `mapstructure:"work_dir"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled controls whether run logging is enabled (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
}

// PathsConfig controls where Swell stores run data
type PathsConfig struct {
	// ArtifactDir is the directory where run artifacts are written.
	// If empty, defaults to ".swell" relative to the working directory.
	// Can be an absolute path to keep artifacts outside the project.
	// Supports ~ for home directory expansion.
	ArtifactDir string `mapstructure:"artifact_dir"`
}

// Bounds for the auto-scaled concurrency ceiling when dispatch.max_parallel
// is left at 0.
const (
	minAutoParallel = 2
	maxAutoParallel = 6
)

// ParallelForWave returns the concurrency ceiling to use for a wave of the
// given size. An explicit MaxParallel wins; otherwise the ceiling follows the
// wave size, clamped between 2 and 6.
func (d *DispatchConfig) ParallelForWave(waveSize int) int {
	if d.MaxParallel > 0 {
		return d.MaxParallel
	}
	c := waveSize
	if c < minAutoParallel {
		c = minAutoParallel
	}
	if c > maxAutoParallel {
		c = maxAutoParallel
	}
	return c
}

// WorkerTimeout returns the worker timeout as a time.Duration
func (d *DispatchConfig) WorkerTimeout() time.Duration {
	return time.Duration(d.WorkerTimeoutSeconds) * time.Second
}

// Fallbacks for the convergence loop when the configured values are not
// positive.
const (
	defaultMaxIterations  = 5
	defaultStallThreshold = 2
)

// Budget returns the iteration budget for a run.
func (i *IterationConfig) Budget() int {
	if i.MaxIterations > 0 {
		return i.MaxIterations
	}
	return defaultMaxIterations
}

// StallLimit returns how many consecutive zero-progress cycles trip the
// stall circuit breaker.
func (i *IterationConfig) StallLimit() int {
	if i.StallThreshold > 0 {
		return i.StallThreshold
	}
	return defaultStallThreshold
}

// ResolveArtifactDir returns the resolved artifact directory path.
// If ArtifactDir is empty, it returns the default path relative to baseDir.
// If ArtifactDir starts with ~, it expands to the user's home directory.
// If ArtifactDir is a relative path, it's resolved relative to baseDir.
func (p *PathsConfig) ResolveArtifactDir(baseDir string) string {
	if p.ArtifactDir == "" {
		return filepath.Join(baseDir, ".swell")
	}

	path := p.ArtifactDir

	// Expand ~ to home directory
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = home
		}
	}

	// If relative path, resolve relative to baseDir
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}

	return path
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Dispatch: DispatchConfig{
			MaxParallel:          0, // Scale with wave size
			WorkerTimeoutSeconds: 300,
		},
		Conflict: ConflictConfig{
			TieBreak: "tier",
		},
		Risk: RiskConfig{
			Tier3Patterns: []string{
				"migrations/**",
				"**/migrations/**",
				"**.sql",
			},
			Tier2Patterns: []string{
				"auth/**",
				"**/auth/**",
				"**/security/**",
				"**/*secret*",
				"**/*token*",
			},
			Tier1Patterns: []string{
				"api/**",
				"**/api/**",
				"**/handlers/**",
			},
		},
		Verify: VerifyConfig{
			MaxFixAttempts: 2,
			ConfirmTier3:   true,
		},
		Iteration: IterationConfig{
			MaxIterations:  defaultMaxIterations,
			StallThreshold: defaultStallThreshold,
		},
		Executor: ExecutorConfig{
			Command: "", // Empty means use the simulated executor
			WorkDir: "",
		},
		Logging: LoggingConfig{
			Enabled: true,
			Level:   "info",
		},
		Paths: PathsConfig{
			ArtifactDir: "", // Empty means use default: .swell
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	defaults := Default()

	// Dispatch defaults
	viper.SetDefault("dispatch.max_parallel", defaults.Dispatch.MaxParallel)
	viper.SetDefault("dispatch.worker_timeout_seconds", defaults.Dispatch.WorkerTimeoutSeconds)

	// Conflict defaults
	viper.SetDefault("conflict.tie_break", defaults.Conflict.TieBreak)

	// Risk defaults
	viper.SetDefault("risk.tier3_patterns", defaults.Risk.Tier3Patterns)
	viper.SetDefault("risk.tier2_patterns", defaults.Risk.Tier2Patterns)
	viper.SetDefault("risk.tier1_patterns", defaults.Risk.Tier1Patterns)

	// Verify defaults
	viper.SetDefault("verify.max_fix_attempts", defaults.Verify.MaxFixAttempts)
	viper.SetDefault("verify.confirm_tier3", defaults.Verify.ConfirmTier3)

	// Iteration defaults
	viper.SetDefault("iteration.max_iterations", defaults.Iteration.MaxIterations)
	viper.SetDefault("iteration.stall_threshold", defaults.Iteration.StallThreshold)

	// Executor defaults
	viper.SetDefault("executor.command", defaults.Executor.Command)
	viper.SetDefault("executor.work_dir", defaults.Executor.WorkDir)

	// Logging defaults
	viper.SetDefault("logging.enabled", defaults.Logging.Enabled)
	viper.SetDefault("logging.level", defaults.Logging.Level)

	// Paths defaults
	viper.SetDefault("paths.artifact_dir", defaults.Paths.ArtifactDir)
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Validate the configuration
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration (convenience function)
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		// Fall back to defaults if unmarshaling fails
		return Default()
	}
	return cfg
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "swell")
	}
	// Fall back to ~/.config/swell
	home, err := os.UserHomeDir()
	if err != nil {
		return ".swell"
	}
	return filepath.Join(home, ".config", "swell")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// ValidTieBreaks returns the list of valid conflict tie-break policies
func ValidTieBreaks() []string {
	return []string{"tier", "priority"}
}

// IsValidTieBreak checks if the given tie-break policy is valid
func IsValidTieBreak(policy string) bool {
	for _, valid := range ValidTieBreaks() {
		if policy == valid {
			return true
		}
	}
	return false
}
