package portfolio

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/me/armada/internal/logging"
	"github.com/me/armada/internal/planner"
	"github.com/me/armada/internal/survival"
	"github.com/me/armada/pkg/model"
)

// oracleBinCount is the curve resolution the oracle plans at.
const oracleBinCount = 100

// OraclePortfolio is the prescient benchmark: it builds survival curves
// from the task's own recorded runs, so its plan has full look-ahead.
// Useful only for measuring how far a trained portfolio is from optimal.
type OraclePortfolio struct {
	logger *slog.Logger
}

// NewOraclePortfolio creates the prescient portfolio.
func NewOraclePortfolio(logger *slog.Logger) *OraclePortfolio {
	return &OraclePortfolio{logger: logging.Component(logger, "portfolio", "variant", "oracle")}
}

// Solve plans against the task's own run data, then follows the plan.
func (p *OraclePortfolio) Solve(ctx context.Context, task *model.Task, suite *Suite, budget model.Budget) (*model.Answer, error) {
	names := suite.SolverNames()
	data := suite.RunData.Filter(task.Name)

	bins := data.ToBinsArray(names, oracleBinCount)
	interval := data.CommonBudget() / oracleBinCount
	m, err := survival.Build(bins, interval)
	if err != nil {
		return nil, fmt.Errorf("build oracle model: %w", err)
	}

	plan, err := planner.NewKnapsackPlanner().Plan(m.LogSurvival(), nil)
	if err != nil {
		return nil, err
	}
	p.logger.Debug("oracle plan", "task", task.Name, "plan", plan)

	return followPlan(ctx, task, suite, budget, plan, interval, names)
}

// PreplanningPortfolio computes one fixed plan from a trained model at
// construction time and executes it unchanged for every task.
type PreplanningPortfolio struct {
	model  *survival.Model
	plan   model.Plan
	logger *slog.Logger
}

// NewPreplanningPortfolio plans once from the model's curves, dropping
// the terminal bin (a full-length allocation would leave no room for
// the discretization slack).
func NewPreplanningPortfolio(m *survival.Model, pln planner.Planner, logger *slog.Logger) (*PreplanningPortfolio, error) {
	plan, err := pln.Plan(m.TruncatedLogSurvival(m.BinCount()-1), m.LogWeights())
	if err != nil {
		return nil, err
	}

	logger = logging.Component(logger, "portfolio", "variant", "preplanning")
	logger.Info("preplanned plan", "plan", plan)

	return &PreplanningPortfolio{model: m, plan: plan, logger: logger}, nil
}

// Plan returns the fixed plan, for inspection.
func (p *PreplanningPortfolio) Plan() model.Plan { return p.plan }

// Solve follows the fixed plan until an answer is definitive or the
// plan is spent.
func (p *PreplanningPortfolio) Solve(ctx context.Context, task *model.Task, suite *Suite, budget model.Budget) (*model.Answer, error) {
	return followPlan(ctx, task, suite, budget, p.plan, p.model.Interval(), suite.SolverNames())
}

// followPlan executes plan segments in order with run-then-stop
// invocations, stopping at the first definitive answer.
func followPlan(ctx context.Context, task *model.Task, suite *Suite, budget model.Budget, plan model.Plan, interval float64, names []string) (*model.Answer, error) {
	remaining := budget.CPUSeconds

	for _, alloc := range plan {
		thisBudget := float64(alloc.Bin+1) * interval
		if remaining-thisBudget < -OverrunTolerance {
			return nil, model.NewInvalidBudgetError(
				"plan segment needs %.2fs with %.2fs remaining", thisBudget, remaining)
		}
		if alloc.Solver < 0 || alloc.Solver >= len(names) {
			return nil, model.NewInvalidBudgetError("plan names solver index %d of %d", alloc.Solver, len(names))
		}

		s, err := suite.Environment.Solver(names[alloc.Solver])
		if err != nil {
			return nil, err
		}
		process, err := s.Start(ctx, task)
		if err != nil {
			return nil, fmt.Errorf("start %q: %w", names[alloc.Solver], err)
		}

		answer, err := process.RunThenStop(ctx, thisBudget)
		if err != nil {
			return nil, fmt.Errorf("run %q: %w", names[alloc.Solver], err)
		}
		remaining -= thisBudget

		if suite.Domain.IsFinal(task, answer) {
			return answer, nil
		}
	}

	return nil, nil
}
