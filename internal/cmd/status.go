package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tidelab/swell/internal/config"
	"github.com/tidelab/swell/internal/ledger"
	"github.com/tidelab/swell/internal/report"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Render the latest run's record store",
	Long: `Render the record store snapshot of the latest run: the status census,
the wave layout, and every item's state. Works on finished, stalled, and
aborted runs alike.`,
	RunE: runStatus,
}

var statusArtifactDir string

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVar(&statusArtifactDir, "artifact-dir", "", "Artifact directory to read (default ./.swell)")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}
	dir := statusArtifactDir
	if dir == "" {
		dir = cfg.Paths.ResolveArtifactDir(cwd)
	}

	if !ledger.SnapshotExists(dir) {
		return fmt.Errorf("no run snapshot under %s; start one with 'swell run'", dir)
	}
	led, err := ledger.Load(dir)
	if err != nil {
		return fmt.Errorf("failed to load run snapshot: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, report.StoreSummary(led.Status()))
	fmt.Fprintln(out)
	fmt.Fprintln(out, report.WaveDiagram(led.Waves()))
	fmt.Fprintln(out)
	fmt.Fprintln(out, report.TaskTable(led.List()))

	if rec, ok := led.LastIteration(); ok {
		fmt.Fprintln(out)
		fmt.Fprintf(out, "cycle %d ended %s, completed weight %d\n",
			rec.Iteration, rec.Verdict, rec.CompletedCount)
		if len(rec.NewlyCompleted) > 0 {
			fmt.Fprintf(out, "  newly completed: %s\n", strings.Join(rec.NewlyCompleted, ", "))
		}
		if len(rec.Regressed) > 0 {
			fmt.Fprintf(out, "  regressed: %s\n", strings.Join(rec.Regressed, ", "))
		}
		if len(rec.Added) > 0 {
			fmt.Fprintf(out, "  added: %s\n", strings.Join(rec.Added, ", "))
		}
	}
	return nil
}
