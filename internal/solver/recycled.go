package solver

import (
	"context"
	"fmt"
	"math/rand"
	"sync"

	"github.com/me/armada/internal/rundata"
	"github.com/me/armada/pkg/model"
)

// RecycledSolver replays recorded runs instead of invoking a binary:
// each Start picks a recorded run of this solver on the task (at
// random, seeded for reproducibility) and serves its cost and answer
// back through the normal Process contract. Used by offline validation
// experiments, where real solver runs would be wasteful.
type RecycledSolver struct {
	name string
	data *rundata.Dataset

	mu  sync.Mutex
	rng *rand.Rand
}

// NewRecycledSolver creates a replaying solver over recorded runs.
func NewRecycledSolver(name string, data *rundata.Dataset, seed int64) *RecycledSolver {
	return &RecycledSolver{
		name: name,
		data: data,
		rng:  rand.New(rand.NewSource(seed)),
	}
}

// Name returns the solver's stable name.
func (s *RecycledSolver) Name() string { return s.name }

// Start picks a recorded run for the task. The run's recorded cutoff
// travels with the process: requests past it fail as inapplicable.
func (s *RecycledSolver) Start(ctx context.Context, task *model.Task) (Process, error) {
	return s.pick(task, s.data.Runs(task.Name, s.name))
}

func (s *RecycledSolver) pick(task *model.Task, runs []rundata.Outcome) (Process, error) {
	if len(runs) == 0 {
		return nil, fmt.Errorf("no recorded runs of %q on %q", s.name, task.Name)
	}

	s.mu.Lock()
	picked := runs[s.rng.Intn(len(runs))]
	s.mu.Unlock()

	answer := (*model.Answer)(nil)
	if picked.Succeeded {
		answer = &model.Answer{Text: picked.Answer}
	}
	return &recycledProcess{cost: picked.Cost, cutoff: picked.Budget, answer: answer}, nil
}

// Solve replays one bounded attempt, picking only among runs whose
// recorded cutoff covers the requested budget.
func (s *RecycledSolver) Solve(ctx context.Context, task *model.Task, budget float64) (model.Attempt, error) {
	var applicable []rundata.Outcome
	for _, run := range s.data.Runs(task.Name, s.name) {
		if run.Budget >= budget {
			applicable = append(applicable, run)
		}
	}
	if len(applicable) == 0 {
		return nil, fmt.Errorf("no recorded runs of %q on %q cover a %gs budget", s.name, task.Name, budget)
	}

	process, err := s.pick(task, applicable)
	if err != nil {
		return nil, err
	}
	answer, err := process.RunThenStop(ctx, budget)
	if err != nil {
		return nil, err
	}
	return &model.DirectAttempt{
		Ref:      model.SolverRef{Name: s.name},
		Allotted: budget,
		Consumed: process.Elapsed(),
		Task:     task.UUID,
		Result:   answer,
	}, nil
}

// recycledProcess serves one recorded run back through the Process
// contract: the answer appears once the recorded cost has been paid.
type recycledProcess struct {
	cost   float64
	cutoff float64
	answer *model.Answer

	consumed   float64
	terminated bool
}

func (p *recycledProcess) RunThenStop(ctx context.Context, seconds float64) (*model.Answer, error) {
	answer, err := p.run(seconds)
	p.terminated = true
	return answer, err
}

func (p *recycledProcess) RunThenPause(ctx context.Context, seconds float64) (*model.Answer, error) {
	return p.run(seconds)
}

func (p *recycledProcess) run(seconds float64) (*model.Answer, error) {
	if p.terminated {
		return nil, fmt.Errorf("process already terminated")
	}

	// A run that ended before its cutoff terminated on its own and
	// replays as a real termination. A run that hit its cutoff is
	// censored: the recording says nothing about time past it, so a
	// request reaching beyond the cutoff has no applicable data.
	if p.answer == nil && p.cost >= p.cutoff {
		if seconds > p.cutoff-p.consumed {
			return nil, fmt.Errorf("recorded run censored at %gs cutoff, %gs requested", p.cutoff, p.consumed+seconds)
		}
		p.consumed += seconds
		return nil, nil
	}

	remaining := p.cost - p.consumed
	if remaining <= seconds {
		p.consumed = p.cost
		p.terminated = true
		return p.answer, nil
	}
	p.consumed += seconds
	return nil, nil
}

func (p *recycledProcess) Elapsed() float64 { return p.consumed }

func (p *recycledProcess) Terminated() bool { return p.terminated }
