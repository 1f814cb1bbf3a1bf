package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tidelab/swell/internal/config"
	"github.com/tidelab/swell/internal/conflict"
	"github.com/tidelab/swell/internal/logging"
	"github.com/tidelab/swell/internal/plan"
	"github.com/tidelab/swell/internal/report"
	"github.com/tidelab/swell/internal/risk"
	"github.com/tidelab/swell/internal/schedule"
	"github.com/tidelab/swell/internal/work"
)

var planCmd = &cobra.Command{
	Use:   "plan <seed-file>",
	Short: "Resolve conflicts and print the wave layout without executing",
	Long: `Plan a run without executing it: classify every item's risk, resolve
file conflicts into orderings, and lay the items out in waves.

Escalated conflicts are not decided here. The items they touch are held
out of the waves and listed as awaiting a decision; a run decides them.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

var planWrite bool

func init() {
	rootCmd.AddCommand(planCmd)
	planCmd.Flags().BoolVar(&planWrite, "write", false, "Write item plans and the coordination view to the artifact directory")
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg := config.Get()
	if errs := cfg.Validate(); len(errs) > 0 {
		return config.ValidationErrors(errs)
	}

	items, err := plan.Load(args[0])
	if err != nil {
		return fmt.Errorf("failed to load seed file: %w", err)
	}

	classifier, err := risk.NewClassifier(cfg.Risk)
	if err != nil {
		return fmt.Errorf("failed to build risk classifier: %w", err)
	}
	dependents := make(map[string]int)
	for _, item := range items {
		for _, dep := range item.DependsOn {
			dependents[dep]++
		}
	}
	for _, item := range items {
		a := classifier.Classify(item, dependents[item.ID])
		item.RiskTier = a.Tier
		item.RiskRationale = a.Rationale
	}

	res := conflict.NewResolver(cfg.Conflict).Resolve(items)

	pl, err := schedule.Build(schedule.Input{
		Items:  items,
		Edges:  res.Edges,
		Frozen: res.FrozenItems(),
	})
	if err != nil {
		return fmt.Errorf("failed to layer waves: %w", err)
	}

	// Fold cycle recoveries into the printed set the way a run records them.
	byID := make(map[string]*work.WorkItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}
	for _, step := range pl.Merges {
		items = append(items, step.Composite)
		byID[step.Composite.ID] = step.Composite
		for _, src := range step.SourceIDs {
			if item, ok := byID[src]; ok {
				item.MergedInto = step.Composite.ID
			}
		}
	}
	for _, w := range pl.Waves {
		for _, id := range w.ItemIDs {
			if item, ok := byID[id]; ok {
				item.Wave = w.Index
			}
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, report.WaveDiagram(pl.Waves))
	if len(res.Records) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, report.ConflictTable(res.Records))
	}
	if res.HasEscalations() {
		fmt.Fprintln(out)
		fmt.Fprintln(out, report.Escalations(res))
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, report.TaskTable(items))
	if len(pl.Deferred) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintf(out, "deferred: %s\n", strings.Join(pl.Deferred, ", "))
	}

	if planWrite {
		return writePlanArtifacts(cmd, cfg, items, pl, res)
	}
	return nil
}

func writePlanArtifacts(cmd *cobra.Command, cfg *config.Config, items []*work.WorkItem, pl *schedule.Plan, res *conflict.Result) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}
	writer := plan.NewWriter(cfg.Paths.ResolveArtifactDir(cwd), logging.NopLogger())
	for _, item := range items {
		if item.IsSuperseded() {
			continue
		}
		if err := writer.WriteItemPlan(item); err != nil {
			return fmt.Errorf("failed to write plan for %s: %w", item.ID, err)
		}
	}
	if err := writer.WriteCoordination(pl.Waves, res); err != nil {
		return fmt.Errorf("failed to write coordination view: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "\nplan written to %s\n", writer.Dir())
	return nil
}
