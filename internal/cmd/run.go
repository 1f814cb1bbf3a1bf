package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tidelab/swell/internal/approval"
	"github.com/tidelab/swell/internal/config"
	"github.com/tidelab/swell/internal/engine"
	"github.com/tidelab/swell/internal/errors"
	"github.com/tidelab/swell/internal/event"
	"github.com/tidelab/swell/internal/ledger"
	"github.com/tidelab/swell/internal/logging"
	"github.com/tidelab/swell/internal/plan"
	"github.com/tidelab/swell/internal/report"
	"github.com/tidelab/swell/internal/tui"
	"github.com/tidelab/swell/internal/work"
)

var runCmd = &cobra.Command{
	Use:   "run <seed-file>",
	Short: "Run seeded work items through waves to completion",
	Long: `Run every item in a seed file: classify risk, resolve file conflicts,
lay the items out in waves, dispatch each wave to parallel workers, and
gate every wave on verification before the next starts.

Escalated conflicts and tier 3 confirmations are asked on the terminal.
Use --answer to script decisions instead, e.g.:
  swell run plan.yaml --answer "conflict on pkg/app.go=item-b"

Without a configured executor command, items run against the simulated
executor and succeed per their seed hints.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

var (
	runIterative   bool
	runWatch       bool
	runWorkspace   string
	runArtifactDir string
	runAnswers     []string
)

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVar(&runIterative, "iterative", false, "Keep cycling until the work converges or stalls")
	runCmd.Flags().BoolVar(&runWatch, "watch", false, "Render a live dashboard while the run executes")
	runCmd.Flags().StringVar(&runWorkspace, "workspace", "", "Directory watched for writes outside any worker's owned files")
	runCmd.Flags().StringVar(&runArtifactDir, "artifact-dir", "", "Where item plans, the coordination view, and snapshots land (default ./.swell)")
	runCmd.Flags().StringArrayVar(&runAnswers, "answer", nil, "Scripted decision as subject=option (repeatable)")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	if errs := cfg.Validate(); len(errs) > 0 {
		return config.ValidationErrors(errs)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}
	artifactDir := runArtifactDir
	if artifactDir == "" {
		artifactDir = cfg.Paths.ResolveArtifactDir(cwd)
	}

	items, err := plan.Load(args[0])
	if err != nil {
		return fmt.Errorf("failed to load seed file: %w", err)
	}
	led := ledger.New()
	for _, item := range items {
		if err := led.Add(item); err != nil {
			return fmt.Errorf("failed to seed record store: %w", err)
		}
	}

	log := logging.NopLogger()
	if cfg.Logging.Enabled {
		log, err = logging.NewLogger(artifactDir, cfg.Logging.Level)
		if err != nil {
			return fmt.Errorf("failed to open run log: %w", err)
		}
		defer log.Close()
	}

	decider, err := buildDecider(cmd)
	if err != nil {
		return err
	}

	bus := event.NewBus()
	eng, err := engine.New(engine.Config{
		Settings:    cfg,
		Ledger:      led,
		Decider:     decider,
		Bus:         bus,
		Logger:      log,
		Workspace:   runWorkspace,
		ArtifactDir: artifactDir,
		Iterative:   runIterative,
	})
	if err != nil {
		return fmt.Errorf("failed to assemble engine: %w", err)
	}

	rep, runErr := executeRun(cmd, eng, bus)
	if rep != nil {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out)
		fmt.Fprintln(out, report.RunSummary(rep))
		fmt.Fprintln(out)
		fmt.Fprintln(out, report.WaveDiagram(rep.Waves))
		fmt.Fprintln(out)
		fmt.Fprintln(out, report.TaskTable(led.List()))
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	switch {
	case rep == nil:
		return runErr
	case rep.Aborted:
		return fmt.Errorf("run %s aborted", rep.RunID)
	case rep.State != work.RunComplete:
		return fmt.Errorf("run %s ended %s", rep.RunID, rep.State)
	}
	return nil
}

// executeRun drives the engine either under the live dashboard or with
// line-by-line progress on the command's output. In both modes an interrupt
// stops the run between waves; the wave in flight always finishes.
func executeRun(cmd *cobra.Command, eng *engine.Engine, bus *event.Bus) (*engine.RunReport, error) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	if runWatch {
		// The dashboard owns the terminal and maps q/ctrl+c to cancel.
		return tui.Run(ctx, eng, bus)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			fmt.Fprintln(cmd.OutOrStdout(), "stopping: the wave in flight finishes first")
			cancel()
		case <-ctx.Done():
		}
	}()

	sub := bus.SubscribeAll(report.Progress(cmd.OutOrStdout()))
	defer bus.Unsubscribe(sub)

	return eng.Run(ctx)
}

// buildDecider picks who answers escalations and tier 3 confirmations:
// scripted answers when --answer is given, the terminal otherwise. Under
// --watch the dashboard owns the terminal, so unscripted questions fall back
// to their conservative defaults.
func buildDecider(cmd *cobra.Command) (approval.Decider, error) {
	if len(runAnswers) > 0 {
		answers := make(map[string]string, len(runAnswers))
		for _, raw := range runAnswers {
			subject, option, ok := strings.Cut(raw, "=")
			if !ok || subject == "" || option == "" {
				return nil, fmt.Errorf("malformed --answer %q: want subject=option", raw)
			}
			answers[subject] = option
		}
		return approval.NewScripted(answers, ""), nil
	}
	if runWatch {
		return nil, nil
	}
	return approval.NewPrompt(cmd.InOrStdin(), cmd.OutOrStdout()), nil
}
