package cli

import (
	"fmt"
	"path/filepath"

	"github.com/me/armada/internal/domain"
	"github.com/me/armada/internal/portfolio"
	"github.com/me/armada/internal/rundata"
	"github.com/me/armada/internal/solver"
	"github.com/me/armada/internal/training"
	"github.com/me/armada/pkg/model"
	"github.com/spf13/cobra"
)

func newSolveCmd() *cobra.Command {
	var snapshotPath string
	var solversPath string
	var recycle bool
	var budget float64
	var seed int64
	var objective bool

	cmd := &cobra.Command{
		Use:   "solve <instance>",
		Short: "Solve one instance with a trained portfolio",
		Long: `Runs a trained portfolio against a single instance within a CPU-seconds
budget and prints the answer in competition format.

With --recycle the solvers replay the instance's recorded runs from its
sidecar CSV instead of executing external processes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if budget <= 0 {
				budget = cfg.Budget
			}
			budget *= cfg.TimeRatio

			snap, err := training.Load(snapshotPath)
			if err != nil {
				return err
			}
			p, err := snap.Rebuild(logger)
			if err != nil {
				return err
			}

			var task *model.Task
			env := solver.NewEnvironment(logger)
			data := rundata.New()

			if recycle {
				tasks, loaded, err := rundata.LoadDir(filepath.Dir(path), []string{filepath.Base(path)}, logger)
				if err != nil {
					return err
				}
				if len(tasks) == 0 {
					return fmt.Errorf("no instance at %s", path)
				}
				task = tasks[0]
				data = loaded
				for i, name := range snap.SolverNames {
					env.RegisterSolver(solver.NewRecycledSolver(name, data, seed+int64(i)))
				}
			} else {
				if solversPath == "" {
					solversPath = cfg.Solvers
				}
				if solversPath == "" {
					return fmt.Errorf("--solvers is required unless --recycle is set")
				}
				env, err = solver.LoadSolversFile(solversPath, logger)
				if err != nil {
					return err
				}
				task = model.NewTask(filepath.Base(path), path)
			}
			task.Objective = objective

			suite := &portfolio.Suite{Domain: domain.SAT{}, Environment: env, RunData: data}
			answer, err := p.Solve(cmd.Context(), task, suite, model.Budget{CPUSeconds: budget})
			if err != nil {
				return err
			}

			suite.Domain.ShowAnswer(cmd.OutOrStdout(), task, answer)
			if answer == nil {
				return fmt.Errorf("no definitive answer within %g CPU-seconds", budget)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&snapshotPath, "snapshot", "", "Trained portfolio snapshot (JSON)")
	cmd.Flags().StringVar(&solversPath, "solvers", "", "Solvers description file (YAML)")
	cmd.Flags().BoolVar(&recycle, "recycle", false, "Replay recorded runs instead of executing solvers")
	cmd.Flags().Float64Var(&budget, "budget", 0, "CPU-seconds budget (default from config)")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Seed for replayed runs")
	cmd.Flags().BoolVar(&objective, "objective", false, "Treat the instance as an optimization problem")
	cmd.MarkFlagRequired("snapshot")

	return cmd
}
