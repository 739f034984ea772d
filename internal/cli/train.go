package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/me/armada/internal/domain"
	"github.com/me/armada/internal/planner"
	"github.com/me/armada/internal/portfolio"
	"github.com/me/armada/internal/rundata"
	"github.com/me/armada/internal/store"
	"github.com/me/armada/internal/training"
	"github.com/spf13/cobra"
)

func newTrainCmd() *cobra.Command {
	var variant string
	var interval float64
	var runsLimit int
	var seed int64
	var tasksRoot string
	var patterns []string
	var dbPath string
	var trialFlag string
	var collection string

	cmd := &cobra.Command{
		Use:   "train <snapshot-out>",
		Short: "Train a portfolio and write its snapshot",
		Long: `Builds the requested portfolio variant from recorded solver runs and
writes the result as a JSON snapshot.

Training data comes either from sidecar CSVs under --tasks-root or from
a run archive database via --database.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			outPath := args[0]
			if variant == "" {
				variant = cfg.Portfolio
			}
			if interval <= 0 {
				interval = cfg.Interval
			}
			if runsLimit <= 0 {
				runsLimit = cfg.RunsLimit
			}
			if collection == "" {
				collection = cfg.Collection
			}
			if dbPath == "" {
				dbPath = cfg.DBPath
			}
			if tasksRoot == "" {
				tasksRoot = cfg.TasksRoot
			}

			var data *rundata.Dataset
			switch {
			case dbPath != "":
				st, err := store.NewSQLiteStore(dbPath, logger)
				if err != nil {
					return err
				}
				defer st.Close()

				trial := store.RecyclableTrialUUID
				if trialFlag != "" {
					trial, err = uuid.Parse(trialFlag)
					if err != nil {
						return fmt.Errorf("bad trial uuid: %w", err)
					}
				}
				data, err = st.TrainingData(cmd.Context(), trial, collection)
				if err != nil {
					return err
				}
			case tasksRoot != "":
				_, loaded, err := rundata.LoadDir(tasksRoot, patterns, logger)
				if err != nil {
					return err
				}
				data = loaded
			default:
				return fmt.Errorf("either --tasks-root or --database is required")
			}

			names := data.SolverNames()
			if len(names) == 0 {
				return fmt.Errorf("no recorded runs to train on")
			}

			trainCfg := portfolio.Config{
				Interval:  interval,
				RunsLimit: runsLimit,
				Planner:   planner.NewKnapsackPlanner(),
			}
			_, snap, err := training.Train(variant, domain.SAT{}.Name(), names, data, trainCfg, seed, logger)
			if err != nil {
				return err
			}
			if err := training.Save(outPath, snap); err != nil {
				return err
			}
			logger.Info("snapshot written", "path", outPath, "portfolio", variant, "solvers", len(names))
			return nil
		},
	}

	cmd.Flags().StringVar(&variant, "portfolio", "", "Portfolio variant (default from config)")
	cmd.Flags().Float64Var(&interval, "interval", 0, "Planning bin width in CPU-seconds (default from config)")
	cmd.Flags().IntVar(&runsLimit, "runs-limit", 0, "Invocation cap per episode (default from config)")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Seed for stochastic variants")
	cmd.Flags().StringVar(&tasksRoot, "tasks-root", "", "Root directory of instances with sidecar run data")
	cmd.Flags().StringSliceVar(&patterns, "pattern", []string{"*.cnf"}, "Instance filename patterns")
	cmd.Flags().StringVar(&dbPath, "database", "", "Run archive database to train from")
	cmd.Flags().StringVar(&trialFlag, "trial", "", "Trial UUID in the run archive (default: the recyclable trial)")
	cmd.Flags().StringVar(&collection, "collection", "", "Task name collection in the run archive")

	return cmd
}
