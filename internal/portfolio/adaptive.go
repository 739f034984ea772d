package portfolio

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/me/armada/internal/logging"
	"github.com/me/armada/internal/solver"
	"github.com/me/armada/internal/survival"
	"github.com/me/armada/pkg/model"
)

// PureModelPortfolio is the adaptive mixture-model portfolio: it plans
// from a trained survival model, executes one bounded invocation at a
// time, and replans after every non-definitive outcome by conditioning
// the model on the accumulated failure set.
type PureModelPortfolio struct {
	model  *survival.Model
	config Config
	logger *slog.Logger
}

// NewPureModelPortfolio creates the adaptive portfolio around a trained
// model. Config zero-values fall back to defaults, except Interval,
// which always follows the model.
func NewPureModelPortfolio(m *survival.Model, cfg Config, logger *slog.Logger) *PureModelPortfolio {
	if cfg.RunsLimit <= 0 {
		cfg.RunsLimit = DefaultConfig().RunsLimit
	}
	if cfg.Planner == nil {
		cfg.Planner = DefaultConfig().Planner
	}
	return &PureModelPortfolio{
		model:  m,
		config: cfg,
		logger: logging.Component(logger, "portfolio", "variant", "pure-model"),
	}
}

// Solve runs the episode state machine: plan, run one bounded
// invocation, fold a non-definitive outcome into the failure set,
// replan from the conditioned model, until a definitive answer arrives
// or the budget (or the runs-limit circuit breaker) is exhausted.
func (p *PureModelPortfolio) Solve(ctx context.Context, task *model.Task, suite *Suite, budget model.Budget) (*model.Answer, error) {
	names := suite.SolverNames()

	initial, err := p.predictWeights(task, suite)
	if err != nil {
		return nil, err
	}

	var (
		acct     accountant
		plan     model.Plan
		failures []model.Allocation
		current  = initial
	)

	for i := 0; i < p.config.RunsLimit; i++ {
		if acct.remaining(budget) <= 0 {
			return nil, nil
		}

		if len(plan) == 0 {
			current = initial.Condition(failures)
			remainingBins := int(math.Ceil(acct.remaining(budget) / current.Interval()))
			plan, err = p.config.Planner.Plan(
				current.TruncatedLogSurvival(remainingBins),
				current.LogWeights(),
			)
			if err != nil {
				return nil, err
			}
			p.logger.Debug("replanned", "task", task.Name, "plan", plan, "failures", len(failures))
			if len(plan) == 0 {
				// Nothing plannable in the remaining bins; burn an
				// iteration so the circuit breaker can trip.
				continue
			}
		}

		alloc := plan[0]
		plan = plan[1:]

		if alloc.Solver < 0 || alloc.Solver >= len(names) {
			return nil, model.NewInvalidBudgetError("plan names solver index %d of %d", alloc.Solver, len(names))
		}
		duration := math.Min(acct.remaining(budget), float64(alloc.Bin+1)*current.Interval())

		s, err := suite.Environment.Solver(names[alloc.Solver])
		if err != nil {
			return nil, err
		}

		answer, cost, runErr := runBounded(ctx, s, task, duration)
		if runErr != nil {
			if ctx.Err() != nil {
				return nil, runErr
			}
			// A crashing solver is a non-definitive outcome, not an
			// episode failure: plan around it.
			p.logger.Warn("solver run failed", "solver", names[alloc.Solver], "error", runErr)
			answer, cost = nil, duration
		}
		acct.add(cost)

		if suite.Domain.IsFinal(task, answer) {
			p.logger.Info("definitive answer", "task", task.Name,
				"solver", names[alloc.Solver], "elapsed", acct.elapsed)
			return answer, nil
		}
		failures = append(failures, alloc)
	}

	p.logger.Warn("runs limit reached without an answer", "task", task.Name, "limit", p.config.RunsLimit)
	return nil, nil
}

// predictWeights applies the configured feature regression, if any.
func (p *PureModelPortfolio) predictWeights(task *model.Task, suite *Suite) (*survival.Model, error) {
	if p.config.Regress == nil {
		return p.model, nil
	}

	names, values, err := suite.Domain.ComputeFeatures(task)
	if err != nil {
		return nil, fmt.Errorf("compute features: %w", err)
	}
	sortFeatures(names, values)

	logWeights, err := p.config.Regress.PredictWeights(task, names, values)
	if err != nil {
		return nil, fmt.Errorf("predict weights: %w", err)
	}
	return p.model.WithWeights(logWeights)
}

// runBounded issues one run-then-stop invocation and reports its cost.
func runBounded(ctx context.Context, s solver.Solver, task *model.Task, duration float64) (*model.Answer, float64, error) {
	proc, err := s.Start(ctx, task)
	if err != nil {
		return nil, 0, err
	}
	answer, err := proc.RunThenStop(ctx, duration)
	if err != nil {
		return nil, proc.Elapsed(), err
	}
	return answer, proc.Elapsed(), nil
}

// sortFeatures orders feature values by feature name, so predictors see
// a stable column order.
func sortFeatures(names []string, values []float64) {
	order := make([]int, len(names))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return names[order[a]] < names[order[b]] })

	sortedNames := make([]string, len(names))
	sortedValues := make([]float64, len(values))
	for i, idx := range order {
		sortedNames[i] = names[idx]
		sortedValues[i] = values[idx]
	}
	copy(names, sortedNames)
	copy(values, sortedValues)
}
