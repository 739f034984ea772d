package cli

import (
	"fmt"
	"os"

	"github.com/me/armada/internal/domain"
	"github.com/me/armada/internal/portfolio"
	"github.com/me/armada/internal/rundata"
	"github.com/me/armada/internal/validation"
	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	var tasksRoot string
	var patterns []string
	var variants []string
	var splits int
	var budget float64
	var seed int64

	cmd := &cobra.Command{
		Use:   "validate <csv-out>",
		Short: "Evaluate portfolio variants over train/test splits",
		Long: `Trains each variant on shuffled train/test splits of the recorded runs,
replays it against the held-out tasks, and writes the resulting
cost/success-rate curves as CSV.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outPath := args[0]
			if tasksRoot == "" {
				tasksRoot = cfg.TasksRoot
			}
			if tasksRoot == "" {
				return fmt.Errorf("--tasks-root is required")
			}

			_, data, err := rundata.LoadDir(tasksRoot, patterns, logger)
			if err != nil {
				return err
			}
			names := data.SolverNames()
			if len(names) == 0 {
				return fmt.Errorf("no recorded runs under %s", tasksRoot)
			}
			if len(variants) == 0 {
				variants = portfolio.Names()
			}

			opts := validation.DefaultOptions()
			opts.Splits = splits
			opts.Seed = seed
			opts.Config.Interval = cfg.Interval
			opts.Config.RunsLimit = cfg.RunsLimit
			if budget > 0 {
				opts.Budget = budget
			}
			opts.Budget *= cfg.TimeRatio

			rows, err := validation.Run(cmd.Context(), domain.SAT{}, names, data, variants, opts, logger)
			if err != nil {
				return err
			}

			file, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("create output: %w", err)
			}
			if err := validation.WriteCSV(file, rows); err != nil {
				file.Close()
				return err
			}
			if err := file.Close(); err != nil {
				return err
			}
			logger.Info("validation curves written", "path", outPath, "rows", len(rows))
			return nil
		},
	}

	cmd.Flags().StringVar(&tasksRoot, "tasks-root", "", "Root directory of instances with sidecar run data")
	cmd.Flags().StringSliceVar(&patterns, "pattern", []string{"*.cnf"}, "Instance filename patterns")
	cmd.Flags().StringSliceVar(&variants, "variants", nil, "Portfolio variants to evaluate (default: all)")
	cmd.Flags().IntVar(&splits, "splits", 8, "Number of independent train/test splits")
	cmd.Flags().Float64Var(&budget, "budget", 0, "Per-task CPU-seconds budget (default 5000)")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Seed for split shuffles and replayed runs")

	return cmd
}
