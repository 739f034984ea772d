// Package portfolio turns plans into bounded solver invocations: it
// schedules which solver runs, for how long, against a task with a
// fixed CPU-seconds budget, and adapts to observed failures as time
// elapses.
package portfolio

import (
	"context"

	"github.com/me/armada/internal/domain"
	"github.com/me/armada/internal/planner"
	"github.com/me/armada/internal/rundata"
	"github.com/me/armada/internal/solver"
	"github.com/me/armada/pkg/model"
)

// OverrunTolerance is the rounding slack, in CPU-seconds, allowed when
// a plan segment's discretized duration overshoots the remaining
// budget. Bin boundaries are discretized with ceiling rounding, so a
// plan can nominally exceed the budget by less than one rounding step;
// anything beyond this tolerance is treated as an inconsistent budget.
const OverrunTolerance = 0.1

// uniformSliceFactor sets the round-robin granularity of the uniform
// portfolio: the budget is cut into solvers*uniformSliceFactor slices.
const uniformSliceFactor = 100

// Suite bundles the external collaborators a portfolio consults while
// solving: the problem domain, the solver registry, and historical run
// data.
type Suite struct {
	Domain      domain.Domain
	Environment *solver.Environment
	RunData     *rundata.Dataset
}

// SolverNames returns the suite's solver names in their canonical
// (sorted) index order.
func (s *Suite) SolverNames() []string {
	return s.Environment.SolverNames()
}

// Portfolio is the common contract of every variant: run against one
// task within a budget, returning the first definitive answer or nil
// if the budget is exhausted without one.
type Portfolio interface {
	Solve(ctx context.Context, task *model.Task, suite *Suite, budget model.Budget) (*model.Answer, error)
}

// WeightPredictor predicts per-solver mixture log-weights from a
// task's feature vector, replacing the model's trained weights.
type WeightPredictor interface {
	PredictWeights(task *model.Task, featureNames []string, featureValues []float64) ([]float64, error)
}

// Config carries the tunable parts of a model-based portfolio. No
// global defaults: callers pass the configuration explicitly.
type Config struct {
	// Interval is the planning bin width in CPU-seconds.
	Interval float64

	// RunsLimit is the circuit breaker against pathological
	// repeated-zero-length plans: an episode never issues more than
	// this many invocations.
	RunsLimit int

	// Planner produces run schedules from survival curves.
	Planner planner.Planner

	// Regress, when set, predicts mixture weights from task features
	// before each episode.
	Regress WeightPredictor
}

// DefaultConfig returns sensible defaults: 50-second bins, the knapsack
// planner, a 256-run circuit breaker, no feature regression.
func DefaultConfig() Config {
	return Config{
		Interval:  50,
		RunsLimit: 256,
		Planner:   planner.NewKnapsackPlanner(),
	}
}

// accountant accumulates the CPU-seconds consumed by an episode's
// bounded invocations. Budget enforcement is accounting-based: once the
// total meets the budget no further invocation is issued.
type accountant struct {
	elapsed float64
}

func (a *accountant) add(seconds float64) { a.elapsed += seconds }

func (a *accountant) remaining(budget model.Budget) float64 {
	return budget.CPUSeconds - a.elapsed
}
