package survival

import (
	"fmt"
	"math"

	"github.com/me/armada/pkg/model"
)

const (
	// smoothing is added to every outcome count so that empty history
	// never produces a zero-probability bin.
	smoothing = 1e-16

	// terminalCorrection is added to the final success bin so that no
	// curve claims a solver can never succeed, which would imply an
	// infinite expected remaining time.
	terminalCorrection = 1e-2
)

// Model holds one discretized log-survival curve per solver, plus a
// mixture log-weight per solver. A Model is an immutable value: every
// transformation returns a new Model.
type Model struct {
	logSurvival [][]float64
	logWeights  []float64
	interval    float64
}

// Build derives a Model from historical outcome counts.
//
// counts is indexed [solver][bin] with binCount+1 entries per solver;
// the last bin counts runs that did not finish within the common budget.
// interval is the width of each bin in CPU-seconds.
//
// All probability computation happens in log-space.
func Build(counts [][]float64, interval float64) (*Model, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("non-positive bin interval %v", interval)
	}

	binCount := 0
	if len(counts) > 0 {
		binCount = len(counts[0]) - 1
		if binCount < 1 {
			return nil, fmt.Errorf("need at least 2 outcome bins, got %d", len(counts[0]))
		}
	}

	logSurvival := make([][]float64, len(counts))
	for s, row := range counts {
		if len(row) != binCount+1 {
			return nil, fmt.Errorf("ragged outcome counts: solver %d has %d bins, want %d", s, len(row), binCount+1)
		}

		smoothed := make([]float64, binCount+1)
		total := 0.0
		for b, c := range row {
			if c < 0 {
				return nil, fmt.Errorf("negative outcome count %v for solver %d bin %d", c, s, b)
			}
			smoothed[b] = c + smoothing
			total += smoothed[b]
		}
		smoothed[binCount-1] += terminalCorrection
		total += terminalCorrection

		curve := make([]float64, binCount)
		cumulative := 0.0
		for b := 0; b < binCount; b++ {
			cumulative += smoothed[b] / total
			// The failure bin plus smoothing keeps this argument
			// strictly positive.
			curve[b] = math.Log(1 - cumulative)
		}
		logSurvival[s] = curve
	}

	return &Model{
		logSurvival: logSurvival,
		logWeights:  uniformLogWeights(len(counts)),
		interval:    interval,
	}, nil
}

// New creates a Model directly from log-survival curves with uniform
// weights. Curves are copied; callers keep ownership of their slices.
func New(logSurvival [][]float64, interval float64) *Model {
	return &Model{
		logSurvival: copyCurves(logSurvival),
		logWeights:  uniformLogWeights(len(logSurvival)),
		interval:    interval,
	}
}

// Interval returns the bin width in CPU-seconds.
func (m *Model) Interval() float64 { return m.interval }

// SolverCount returns the number of solvers in the model.
func (m *Model) SolverCount() int { return len(m.logSurvival) }

// BinCount returns the number of planning bins per curve.
func (m *Model) BinCount() int {
	if len(m.logSurvival) == 0 {
		return 0
	}
	return len(m.logSurvival[0])
}

// LogSurvival returns a copy of the per-solver log-survival curves.
func (m *Model) LogSurvival() [][]float64 {
	return copyCurves(m.logSurvival)
}

// TruncatedLogSurvival returns copies of the curves restricted to the
// first bins entries, for replanning against a reduced budget. bins
// larger than the curve length is clamped to the full curve.
func (m *Model) TruncatedLogSurvival(bins int) [][]float64 {
	if bins > m.BinCount() {
		bins = m.BinCount()
	}
	if bins < 0 {
		bins = 0
	}
	out := make([][]float64, len(m.logSurvival))
	for s, curve := range m.logSurvival {
		out[s] = append([]float64(nil), curve[:bins]...)
	}
	return out
}

// LogWeights returns a copy of the per-solver mixture log-weights.
func (m *Model) LogWeights() []float64 {
	return append([]float64(nil), m.logWeights...)
}

// SuccessProbability returns P(solver s succeeds in bin <= b), derived
// from the log-survival curve.
func (m *Model) SuccessProbability(s, b int) float64 {
	return 1 - math.Exp(m.logSurvival[s][b])
}

// WithWeights returns a copy of the model with replaced mixture weights,
// normalized so the probability-space weights sum to 1. Returns a
// DimensionError if the vector length does not match the solver count.
func (m *Model) WithWeights(logWeights []float64) (*Model, error) {
	if len(logWeights) != len(m.logSurvival) {
		return nil, &model.DimensionError{Want: len(m.logSurvival), Got: len(logWeights)}
	}
	return &Model{
		logSurvival: m.logSurvival,
		logWeights:  normalizeLog(logWeights),
		interval:    m.interval,
	}, nil
}

// Condition returns a new Model given that the listed allocations are
// known to have failed: for each solver, probability mass at or below
// its deepest observed failure bin is excluded and the remaining curve
// renormalized, and mixture weights are scaled by how consistent the
// observed failure is with each solver's prior curve.
//
// Conditioning is deterministic, does not mutate the receiver, and is
// idempotent: repeating a failure adds no information.
func (m *Model) Condition(failures []model.Allocation) *Model {
	if len(failures) == 0 {
		return m
	}

	// Deepest observed failure bin per solver.
	deepest := make(map[int]int)
	for _, f := range failures {
		if f.Solver < 0 || f.Solver >= len(m.logSurvival) {
			continue
		}
		if bin, ok := deepest[f.Solver]; !ok || f.Bin > bin {
			deepest[f.Solver] = f.Bin
		}
	}

	logSurvival := make([][]float64, len(m.logSurvival))
	logWeights := append([]float64(nil), m.logWeights...)

	for s, curve := range m.logSurvival {
		bin, failed := deepest[s]
		if !failed {
			logSurvival[s] = curve
			continue
		}
		if bin >= len(curve) {
			bin = len(curve) - 1
		}

		observed := curve[bin]
		conditioned := make([]float64, len(curve))
		for b := range curve {
			if b <= bin {
				conditioned[b] = 0 // survival is certain below the failure point
			} else {
				conditioned[b] = curve[b] - observed
			}
		}
		logSurvival[s] = conditioned

		// A solver whose prior curve found this failure unlikely loses
		// weight proportionally to its residual survival mass.
		logWeights[s] += observed
	}

	return &Model{
		logSurvival: logSurvival,
		logWeights:  normalizeLog(logWeights),
		interval:    m.interval,
	}
}

func uniformLogWeights(n int) []float64 {
	if n == 0 {
		return nil
	}
	w := make([]float64, n)
	lw := -math.Log(float64(n))
	for i := range w {
		w[i] = lw
	}
	return w
}

// normalizeLog shifts log-weights so they sum to 1 in probability space.
func normalizeLog(logWeights []float64) []float64 {
	out := append([]float64(nil), logWeights...)
	lse := logSumExp(out)
	if math.IsInf(lse, -1) {
		// Degenerate all-zero mixture; fall back to uniform.
		return uniformLogWeights(len(out))
	}
	for i := range out {
		out[i] -= lse
	}
	return out
}

// logSumExp computes log(sum(exp(xs))) stably.
func logSumExp(xs []float64) float64 {
	if len(xs) == 0 {
		return math.Inf(-1)
	}
	max := xs[0]
	for _, x := range xs[1:] {
		if x > max {
			max = x
		}
	}
	if math.IsInf(max, -1) {
		return max
	}
	sum := 0.0
	for _, x := range xs {
		sum += math.Exp(x - max)
	}
	return max + math.Log(sum)
}

func copyCurves(curves [][]float64) [][]float64 {
	out := make([][]float64, len(curves))
	for i, c := range curves {
		out[i] = append([]float64(nil), c...)
	}
	return out
}
