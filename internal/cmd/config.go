package cmd

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tidelab/swell/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify swell configuration",
	Long: `View or modify swell configuration.

Without arguments, displays the current configuration.
Use subcommands to modify settings or create a config file.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the user's config file.

Keys use dot notation, e.g.:
  swell config set dispatch.max_parallel 4
  swell config set conflict.tie_break priority
  swell config set iteration.max_iterations 8

Valid keys:
  dispatch.max_parallel           - Concurrency ceiling (0 scales with wave size)
  dispatch.worker_timeout_seconds - Per-item worker timeout in seconds
  conflict.tie_break              - How sequential conflicts pick who goes first
                                    Options: tier, priority
  verify.max_fix_attempts         - Fix workers per item before it blocks
  verify.confirm_tier3            - Require confirmation for tier 3 waves (true/false)
  iteration.max_iterations        - Cycle budget for iterative runs
  iteration.stall_threshold       - Cycles without progress before a stall
  executor.command                - Worker command (empty uses the simulated executor)
  executor.work_dir               - Working directory for worker commands
  logging.enabled                 - Write a run log (true/false)
  logging.level                   - Log level: debug, info, warn, error
  paths.artifact_dir              - Where run artifacts land`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at ~/.config/swell/config.yaml with all available options.`,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg := config.Get()

	fmt.Println("Current configuration:")
	fmt.Println()

	// Show where config is being read from
	if viper.ConfigFileUsed() != "" {
		fmt.Printf("Config file: %s\n", viper.ConfigFileUsed())
	} else {
		fmt.Printf("Config file: (none - using defaults)\n")
	}
	fmt.Println()

	// Dispatch settings
	fmt.Println("dispatch:")
	fmt.Printf("  max_parallel: %d\n", cfg.Dispatch.MaxParallel)
	fmt.Printf("  worker_timeout_seconds: %d\n", cfg.Dispatch.WorkerTimeoutSeconds)

	// Conflict settings
	fmt.Println("conflict:")
	fmt.Printf("  tie_break: %s\n", cfg.Conflict.TieBreak)

	// Risk settings
	fmt.Println("risk:")
	fmt.Printf("  tier3_patterns: %s\n", strings.Join(cfg.Risk.Tier3Patterns, ", "))
	fmt.Printf("  tier2_patterns: %s\n", strings.Join(cfg.Risk.Tier2Patterns, ", "))
	fmt.Printf("  tier1_patterns: %s\n", strings.Join(cfg.Risk.Tier1Patterns, ", "))

	// Verify settings
	fmt.Println("verify:")
	fmt.Printf("  max_fix_attempts: %d\n", cfg.Verify.MaxFixAttempts)
	fmt.Printf("  confirm_tier3: %v\n", cfg.Verify.ConfirmTier3)

	// Iteration settings
	fmt.Println("iteration:")
	fmt.Printf("  max_iterations: %d\n", cfg.Iteration.MaxIterations)
	fmt.Printf("  stall_threshold: %d\n", cfg.Iteration.StallThreshold)

	// Executor settings
	fmt.Println("executor:")
	fmt.Printf("  command: %s\n", cfg.Executor.Command)
	fmt.Printf("  work_dir: %s\n", cfg.Executor.WorkDir)

	// Logging settings
	fmt.Println("logging:")
	fmt.Printf("  enabled: %v\n", cfg.Logging.Enabled)
	fmt.Printf("  level: %s\n", cfg.Logging.Level)

	// Paths settings
	fmt.Println("paths:")
	fmt.Printf("  artifact_dir: %s\n", cfg.Paths.ArtifactDir)

	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	value := args[1]

	// Validate the key exists
	validKeys := map[string]string{
		"dispatch.max_parallel":           "int",
		"dispatch.worker_timeout_seconds": "int",
		"conflict.tie_break":              "string",
		"verify.max_fix_attempts":         "int",
		"verify.confirm_tier3":            "bool",
		"iteration.max_iterations":        "int",
		"iteration.stall_threshold":       "int",
		"executor.command":                "string",
		"executor.work_dir":               "string",
		"logging.enabled":                 "bool",
		"logging.level":                   "string",
		"paths.artifact_dir":              "string",
	}

	keyType, ok := validKeys[key]
	if !ok {
		return fmt.Errorf("unknown configuration key: %s\nRun 'swell config set --help' to see valid keys", key)
	}

	// Validate the value based on type
	var typedValue interface{}
	switch keyType {
	case "string":
		if key == "conflict.tie_break" && !config.IsValidTieBreak(value) {
			return fmt.Errorf("invalid value for %s: %s\nValid options: %s",
				key, value, strings.Join(config.ValidTieBreaks(), ", "))
		}
		if key == "logging.level" && !slices.Contains(config.ValidLogLevels(), value) {
			return fmt.Errorf("invalid value for %s: %s\nValid options: %s",
				key, value, strings.Join(config.ValidLogLevels(), ", "))
		}
		typedValue = value
	case "bool":
		if value != "true" && value != "false" {
			return fmt.Errorf("invalid value for %s: expected true or false", key)
		}
		typedValue = value == "true"
	case "int":
		intVal, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for %s: expected integer", key)
		}
		if intVal < 0 {
			return fmt.Errorf("invalid value for %s: must be non-negative", key)
		}
		typedValue = intVal
	}

	// Ensure config directory exists
	configDir := config.ConfigDir()
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Set the value in viper
	viper.Set(key, typedValue)

	// Write to config file
	configFile := config.ConfigFile()
	if err := viper.WriteConfigAs(configFile); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Printf("Set %s = %v\n", key, typedValue)
	fmt.Printf("Config saved to %s\n", configFile)

	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	configDir := config.ConfigDir()
	configFile := config.ConfigFile()

	// Check if config file already exists
	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s\nUse 'swell config set' to modify values", configFile)
	}

	// Create config directory
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Generate a commented config file
	configContent := `# Swell configuration

# Wave dispatch
dispatch:
  # Concurrency ceiling. 0 scales with the wave size (2 to 6 workers).
  max_parallel: 0
  # Per-item worker timeout in seconds
  worker_timeout_seconds: 300

# Conflict resolution
conflict:
  # How sequential conflicts pick who goes first: tier or priority
  tie_break: tier

# Risk classification path rules (glob patterns)
risk:
  tier3_patterns:
    - "migrations/**"
    - "**/migrations/**"
    - "**.sql"
  tier2_patterns:
    - "auth/**"
    - "**/auth/**"
    - "**/security/**"
    - "**/*secret*"
    - "**/*token*"
  tier1_patterns:
    - "api/**"
    - "**/api/**"
    - "**/handlers/**"

# Wave verification
verify:
  # Fix workers per item before it blocks
  max_fix_attempts: 2
  # Ask before accepting a wave that touches tier 3 items
  confirm_tier3: true

# Iterative convergence
iteration:
  # Cycle budget for --iterative runs
  max_iterations: 5
  # Cycles without progress before the run is ruled stalled
  stall_threshold: 2

# Worker executor
executor:
  # Worker command. Empty runs items against the simulated executor.
  command: ""
  # Working directory for worker commands (empty uses the current directory)
  work_dir: ""

# Run logging
logging:
  enabled: true
  # debug, info, warn, or error
  level: info

# Artifact locations
paths:
  # Where item plans, the coordination view, and snapshots land.
  # Empty means ./.swell next to where the run starts.
  artifact_dir: ""
`

	if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Printf("Created config file at %s\n", configFile)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	configFile := config.ConfigFile()

	if _, err := os.Stat(configFile); err == nil {
		fmt.Println(configFile)
	} else {
		fmt.Printf("%s (does not exist)\n", configFile)
	}

	return nil
}
