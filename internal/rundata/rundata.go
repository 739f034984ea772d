// Package rundata holds historical solver-run outcomes: the read-mostly
// dataset that survival models are trained on and that recycled solvers
// replay. A dataset is never mutated mid-episode.
package rundata

import (
	"math"
	"sort"
)

// Outcome is one recorded solver run on a task.
type Outcome struct {
	Solver    string
	Seed      int64
	Budget    float64 // the cutoff the run was recorded under
	Cost      float64 // CPU-seconds actually consumed
	Succeeded bool
	Answer    string
}

// Dataset maps task names to their recorded outcomes.
type Dataset struct {
	byTask       map[string][]Outcome
	commonBudget float64
}

// New creates an empty dataset.
func New() *Dataset {
	return &Dataset{byTask: make(map[string][]Outcome)}
}

// Add records an outcome for a task.
func (d *Dataset) Add(task string, o Outcome) {
	d.byTask[task] = append(d.byTask[task], o)
	if o.Budget > d.commonBudget {
		d.commonBudget = o.Budget
	}
}

// Filter returns the dataset restricted to a single task's outcomes.
// The common budget is preserved so bin widths stay comparable.
func (d *Dataset) Filter(task string) *Dataset {
	out := New()
	out.commonBudget = d.commonBudget
	for _, o := range d.byTask[task] {
		out.byTask[task] = append(out.byTask[task], o)
	}
	return out
}

// Subset returns the dataset restricted to the named tasks, preserving
// the common budget.
func (d *Dataset) Subset(tasks []string) *Dataset {
	out := New()
	out.commonBudget = d.commonBudget
	for _, task := range tasks {
		for _, o := range d.byTask[task] {
			out.byTask[task] = append(out.byTask[task], o)
		}
	}
	return out
}

// Runs returns the recorded outcomes of one solver on one task.
func (d *Dataset) Runs(task, solver string) []Outcome {
	var runs []Outcome
	for _, o := range d.byTask[task] {
		if o.Solver == solver {
			runs = append(runs, o)
		}
	}
	return runs
}

// TaskNames returns the tasks with recorded outcomes, sorted.
func (d *Dataset) TaskNames() []string {
	names := make([]string, 0, len(d.byTask))
	for name := range d.byTask {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SolverNames returns the solvers with recorded outcomes, sorted.
func (d *Dataset) SolverNames() []string {
	seen := make(map[string]bool)
	for _, outcomes := range d.byTask {
		for _, o := range outcomes {
			seen[o.Solver] = true
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CommonBudget returns the shared cutoff under which outcomes were
// recorded: the widest budget seen in the data.
func (d *Dataset) CommonBudget() float64 {
	return d.commonBudget
}

// ToBinsArray buckets outcomes into binCount+1 bins per solver: bin b
// counts successes with cost in bin b of the common budget, and the
// final bin counts runs that did not succeed within it.
func (d *Dataset) ToBinsArray(solverNames []string, binCount int) [][]float64 {
	index := make(map[string]int, len(solverNames))
	for i, name := range solverNames {
		index[name] = i
	}

	bins := make([][]float64, len(solverNames))
	for i := range bins {
		bins[i] = make([]float64, binCount+1)
	}

	interval := d.commonBudget / float64(binCount)
	for _, outcomes := range d.byTask {
		for _, o := range outcomes {
			s, ok := index[o.Solver]
			if !ok {
				continue
			}
			if !o.Succeeded {
				bins[s][binCount]++
				continue
			}
			b := binCount - 1
			if interval > 0 {
				b = int(math.Floor(o.Cost / interval))
				if b > binCount-1 {
					b = binCount - 1
				}
				if b < 0 {
					b = 0
				}
			}
			bins[s][b]++
		}
	}

	return bins
}
