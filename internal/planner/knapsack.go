package planner

import (
	"sort"

	"github.com/me/armada/pkg/model"
)

// KnapsackPlanner maximizes expected success probability with a
// multiple-choice knapsack: each solver contributes at most one
// allocation, an allocation of bin b costs b+1 capacity units, and total
// cost is bounded by the curve length. Dynamic programming over
// capacity; O(solvers x bins x bins).
//
// Ties are broken toward the earlier-indexed solver, then the smaller
// bin, so plans are reproducible.
type KnapsackPlanner struct {
	// MaxBins, when positive, caps any single allocation at MaxBins
	// bins of time.
	MaxBins int
}

// NewKnapsackPlanner creates a planner with unbounded allocation length.
func NewKnapsackPlanner() *KnapsackPlanner {
	return &KnapsackPlanner{}
}

// NewMaxLengthKnapsackPlanner creates a planner whose individual
// allocations never exceed maxBins bins.
func NewMaxLengthKnapsackPlanner(maxBins int) *KnapsackPlanner {
	return &KnapsackPlanner{MaxBins: maxBins}
}

// Plan chooses allocations for the full capacity implied by the curves.
func (p *KnapsackPlanner) Plan(logSurvival [][]float64, logWeights []float64) (model.Plan, error) {
	capacity, err := curveCapacity(logSurvival)
	if err != nil {
		return nil, err
	}
	return p.PlanWithCapacity(logSurvival, logWeights, capacity)
}

// PlanWithCapacity chooses allocations subject to an explicit capacity.
// Asking for more capacity than the curves carry is an
// InvalidBudgetError; an empty solver set or zero capacity yields an
// empty plan.
func (p *KnapsackPlanner) PlanWithCapacity(logSurvival [][]float64, logWeights []float64, capacity int) (model.Plan, error) {
	bins, err := curveCapacity(logSurvival)
	if err != nil {
		return nil, err
	}
	if capacity > bins {
		return nil, model.NewInvalidBudgetError("capacity %d bins requested but curves carry only %d", capacity, bins)
	}
	if len(logSurvival) == 0 || capacity <= 0 {
		return model.Plan{}, nil
	}

	weights, err := probabilityWeights(logWeights, len(logSurvival))
	if err != nil {
		return nil, err
	}

	maxBin := capacity
	if p.MaxBins > 0 && p.MaxBins < maxBin {
		maxBin = p.MaxBins
	}

	// value[c] is the best achievable value at capacity c considering
	// solvers processed so far; choice[s][c] records solver s's chosen
	// bin at capacity c (-1 for none).
	value := make([]float64, capacity+1)
	choice := make([][]int, len(logSurvival))

	for s := range logSurvival {
		choice[s] = make([]int, capacity+1)
		prev := append([]float64(nil), value...)

		for c := 0; c <= capacity; c++ {
			choice[s][c] = -1
			for b := 0; b < maxBin && b+1 <= c; b++ {
				candidate := prev[c-b-1] + allocationValue(logSurvival, weights, s, b)
				// Strict improvement only: on ties the earlier
				// solver and smaller bin, considered first, win.
				if candidate > value[c] {
					value[c] = candidate
					choice[s][c] = b
				}
			}
		}
	}

	// Walk choices back from full capacity.
	var plan model.Plan
	c := capacity
	for s := len(logSurvival) - 1; s >= 0; s-- {
		if b := choice[s][c]; b >= 0 {
			plan = append(plan, model.Allocation{Solver: s, Bin: b})
			c -= b + 1
		}
	}

	sortByPayoffDensity(plan, logSurvival, weights)
	return plan, nil
}

// sortByPayoffDensity orders allocations by expected success per bin,
// descending, so the executor runs the most promising segments first.
// Deterministic: ties fall back to solver index, then bin.
func sortByPayoffDensity(plan model.Plan, logSurvival [][]float64, weights []float64) {
	sort.SliceStable(plan, func(i, j int) bool {
		a, b := plan[i], plan[j]
		da := allocationValue(logSurvival, weights, a.Solver, a.Bin) / float64(a.Bin+1)
		db := allocationValue(logSurvival, weights, b.Solver, b.Bin) / float64(b.Bin+1)
		if da != db {
			return da > db
		}
		if a.Solver != b.Solver {
			return a.Solver < b.Solver
		}
		return a.Bin < b.Bin
	})
}

// ReorderingPlanner wraps another planner and reorders its allocations
// by marginal success probability per unit time. The capacity invariant
// of the inner plan is preserved untouched.
type ReorderingPlanner struct {
	Inner Planner
}

// NewReorderingPlanner wraps inner with payoff-density reordering.
func NewReorderingPlanner(inner Planner) *ReorderingPlanner {
	return &ReorderingPlanner{Inner: inner}
}

// Plan delegates to the inner planner and reorders the result.
func (p *ReorderingPlanner) Plan(logSurvival [][]float64, logWeights []float64) (model.Plan, error) {
	plan, err := p.Inner.Plan(logSurvival, logWeights)
	if err != nil {
		return nil, err
	}
	weights, err := probabilityWeights(logWeights, len(logSurvival))
	if err != nil {
		return nil, err
	}
	sortByPayoffDensity(plan, logSurvival, weights)
	return plan, nil
}
