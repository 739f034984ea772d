package solver

import (
	"context"
	"fmt"

	"github.com/me/armada/pkg/model"
)

// LookupSolver is a solver handle that resolves a stable name to a
// concrete implementation at call time, so plans and persisted records
// can reference solvers symbolically while the implementation behind a
// name is swapped or versioned independently.
//
// Attempts produced through a LookupSolver record the handle as their
// solver, never the resolved implementation.
type LookupSolver struct {
	name string
	env  *Environment
}

// NewLookupSolver creates a handle for name resolving through env.
func NewLookupSolver(name string, env *Environment) *LookupSolver {
	return &LookupSolver{name: name, env: env}
}

// Name returns the lookup name.
func (l *LookupSolver) Name() string { return l.name }

// Ref returns the handle's solver reference.
func (l *LookupSolver) Ref() model.SolverRef { return model.SolverRef{Name: l.name} }

// Resolve looks the name up in the environment.
func (l *LookupSolver) Resolve() (Solver, error) {
	return l.env.Solver(l.name)
}

// Start resolves the name and starts the underlying solver.
func (l *LookupSolver) Start(ctx context.Context, task *model.Task) (Process, error) {
	resolved, err := l.Resolve()
	if err != nil {
		return nil, err
	}
	return resolved.Start(ctx, task)
}

// Solve runs one bounded attempt through the resolved solver and
// rebinds the returned attempt's provenance to this handle.
func (l *LookupSolver) Solve(ctx context.Context, task *model.Task, budget float64) (model.Attempt, error) {
	resolved, err := l.Resolve()
	if err != nil {
		return nil, err
	}

	inner, err := solveWith(ctx, resolved, task, budget)
	if err != nil {
		return nil, fmt.Errorf("solve through %q: %w", l.name, err)
	}

	return &model.WrappedAttempt{Ref: l.Ref(), Inner: inner}, nil
}

// LookupPreprocessor is the preprocessing variant of LookupSolver: it
// additionally re-tags any produced task with the handle as its owning
// preprocessor.
type LookupPreprocessor struct {
	LookupSolver
}

// NewLookupPreprocessor creates a preprocessor handle for name.
func NewLookupPreprocessor(name string, env *Environment) *LookupPreprocessor {
	return &LookupPreprocessor{LookupSolver{name: name, env: env}}
}

// Preprocess resolves the name and delegates, wrapping the attempt and
// re-tagging the produced task.
func (l *LookupPreprocessor) Preprocess(ctx context.Context, task *model.Task, budget float64, outputPath string) (model.Attempt, *model.Task, error) {
	resolved, err := l.env.Preprocessor(l.name)
	if err != nil {
		return nil, nil, err
	}

	inner, produced, err := resolved.Preprocess(ctx, task, budget, outputPath)
	if err != nil {
		return nil, nil, fmt.Errorf("preprocess through %q: %w", l.name, err)
	}

	if produced != nil {
		retagged := *produced
		retagged.Preprocessor = l.name
		produced = &retagged
	}

	return &model.WrappedAttempt{Ref: l.Ref(), Inner: inner}, produced, nil
}

// solveWith runs one bounded attempt against a solver, preferring its
// own Solve implementation and falling back to start-then-stop.
func solveWith(ctx context.Context, s Solver, task *model.Task, budget float64) (model.Attempt, error) {
	if attempter, ok := s.(Attempter); ok {
		return attempter.Solve(ctx, task, budget)
	}

	process, err := s.Start(ctx, task)
	if err != nil {
		return nil, err
	}
	answer, err := process.RunThenStop(ctx, budget)
	if err != nil {
		return nil, err
	}

	return &model.DirectAttempt{
		Ref:      model.SolverRef{Name: s.Name()},
		Allotted: budget,
		Consumed: process.Elapsed(),
		Task:     task.UUID,
		Result:   answer,
	}, nil
}
