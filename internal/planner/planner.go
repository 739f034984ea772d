// Package planner turns a survival model into a discrete run schedule:
// an ordered list of (solver, duration-bin) allocations whose total
// duration never exceeds the available budget.
package planner

import (
	"math"

	"github.com/me/armada/pkg/model"
)

// Planner produces a Plan from per-solver log-survival curves and
// mixture log-weights.
//
// logSurvival is indexed [solver][bin]; its bin length is the capacity
// in bins. logWeights may be nil for a uniform mixture. Implementations
// must be deterministic and must never exceed capacity.
type Planner interface {
	Plan(logSurvival [][]float64, logWeights []float64) (model.Plan, error)
}

// allocationValue is the expected success mass earned by running solver
// s for b+1 bins: weight(s) * (1 - exp(logSurvival[s][b])).
func allocationValue(logSurvival [][]float64, weights []float64, s, b int) float64 {
	return weights[s] * (1 - math.Exp(logSurvival[s][b]))
}

// probabilityWeights converts log-weights to probability space, filling
// in a uniform mixture when none are given.
func probabilityWeights(logWeights []float64, solvers int) ([]float64, error) {
	if logWeights == nil {
		w := make([]float64, solvers)
		for i := range w {
			w[i] = 1 / float64(solvers)
		}
		return w, nil
	}
	if len(logWeights) != solvers {
		return nil, &model.DimensionError{Want: solvers, Got: len(logWeights)}
	}
	w := make([]float64, solvers)
	for i, lw := range logWeights {
		w[i] = math.Exp(lw)
	}
	return w, nil
}

// curveCapacity returns the common bin length of the curves, or an
// InvalidBudgetError if they are ragged.
func curveCapacity(logSurvival [][]float64) (int, error) {
	if len(logSurvival) == 0 {
		return 0, nil
	}
	capacity := len(logSurvival[0])
	for s, curve := range logSurvival[1:] {
		if len(curve) != capacity {
			return 0, model.NewInvalidBudgetError(
				"ragged survival curves: solver %d has %d bins, solver 0 has %d", s+1, len(curve), capacity)
		}
	}
	return capacity, nil
}
