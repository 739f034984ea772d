package portfolio

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/me/armada/internal/logging"
	"github.com/me/armada/internal/rundata"
	"github.com/me/armada/internal/solver"
	"github.com/me/armada/pkg/model"
)

// RandomPortfolio picks one solver uniformly at random and gives it the
// whole budget.
type RandomPortfolio struct {
	rng *rand.Rand
}

// NewRandomPortfolio creates a seeded random portfolio.
func NewRandomPortfolio(seed int64) *RandomPortfolio {
	return &RandomPortfolio{rng: rand.New(rand.NewSource(seed))}
}

// Solve runs one randomly chosen solver for the full budget.
func (p *RandomPortfolio) Solve(ctx context.Context, task *model.Task, suite *Suite, budget model.Budget) (*model.Answer, error) {
	names := suite.SolverNames()
	if len(names) == 0 {
		return nil, nil
	}

	name := names[p.rng.Intn(len(names))]
	s, err := suite.Environment.Solver(name)
	if err != nil {
		return nil, err
	}

	process, err := s.Start(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("start %q: %w", name, err)
	}
	return process.RunThenStop(ctx, budget.CPUSeconds)
}

// UniformPortfolio starts every solver and round-robins small slices of
// the budget among them, pausing between turns, until a solver returns
// a definitive answer or the budget runs out.
type UniformPortfolio struct {
	logger *slog.Logger
}

// NewUniformPortfolio creates a uniform round-robin portfolio.
func NewUniformPortfolio(logger *slog.Logger) *UniformPortfolio {
	return &UniformPortfolio{logger: logging.Component(logger, "portfolio", "variant", "uniform")}
}

// Solve cycles the solvers in slices of budget/(solvers*100) seconds.
func (p *UniformPortfolio) Solve(ctx context.Context, task *model.Task, suite *Suite, budget model.Budget) (*model.Answer, error) {
	names := suite.SolverNames()
	if len(names) == 0 {
		return nil, nil
	}

	budgetEach := budget.CPUSeconds / float64(len(names)*uniformSliceFactor)

	processes := make([]solver.Process, len(names))
	for i, name := range names {
		s, err := suite.Environment.Solver(name)
		if err != nil {
			return nil, err
		}
		process, err := s.Start(ctx, task)
		if err != nil {
			return nil, fmt.Errorf("start %q: %w", name, err)
		}
		processes[i] = process
	}

	finished := func() bool {
		total := 0.0
		allDone := true
		for _, process := range processes {
			total += process.Elapsed()
			if !process.Terminated() {
				allDone = false
			}
		}
		return budget.CPUSeconds-total < budgetEach || allDone
	}

	for next := 0; !finished(); next = (next + 1) % len(processes) {
		process := processes[next]
		if process.Terminated() {
			continue
		}

		answer, err := process.RunThenPause(ctx, budgetEach)
		if err != nil {
			return nil, fmt.Errorf("run %q: %w", names[next], err)
		}
		if suite.Domain.IsFinal(task, answer) {
			p.logger.Debug("definitive answer", "solver", names[next], "answer", answer.Text)
			return answer, nil
		}
	}

	return nil, nil
}

// BaselinePortfolio runs the single solver with the best mean success
// rate on the training set for the whole budget.
type BaselinePortfolio struct {
	solverName string
}

// NewBaselinePortfolio picks the best train-set solver by mean per-task
// success rate over single-bin outcome counts.
func NewBaselinePortfolio(names []string, training *rundata.Dataset) (*BaselinePortfolio, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("baseline portfolio needs at least one solver")
	}

	tasks := training.TaskNames()
	meanRates := make([]float64, len(names))
	for _, task := range tasks {
		bins := training.Filter(task).ToBinsArray(names, 1)
		for s := range names {
			total := bins[s][0] + bins[s][1]
			if total > 0 {
				meanRates[s] += bins[s][0] / total / float64(len(tasks))
			}
		}
	}

	best := 0
	for s := 1; s < len(names); s++ {
		if meanRates[s] > meanRates[best] {
			best = s
		}
	}
	return &BaselinePortfolio{solverName: names[best]}, nil
}

// NewBaselineWithSolver recreates a baseline portfolio around an
// already chosen solver, as stored in a training snapshot.
func NewBaselineWithSolver(name string) *BaselinePortfolio {
	return &BaselinePortfolio{solverName: name}
}

// SolverName returns the chosen solver.
func (p *BaselinePortfolio) SolverName() string { return p.solverName }

// Solve runs the chosen solver for the full budget.
func (p *BaselinePortfolio) Solve(ctx context.Context, task *model.Task, suite *Suite, budget model.Budget) (*model.Answer, error) {
	s, err := suite.Environment.Solver(p.solverName)
	if err != nil {
		return nil, err
	}
	process, err := s.Start(ctx, task)
	if err != nil {
		return nil, fmt.Errorf("start %q: %w", p.solverName, err)
	}
	return process.RunThenStop(ctx, budget.CPUSeconds)
}
