// Package solver defines the runnable-solver contracts and the
// environment that resolves stable solver names to implementations.
package solver

import (
	"context"
	"log/slog"
	"sort"

	"github.com/me/armada/internal/logging"
	"github.com/me/armada/pkg/model"
)

// Process is one in-flight bounded invocation of a solver on a task.
// At most one bounded run may be outstanding per process at a time.
type Process interface {
	// RunThenStop runs for up to seconds of CPU time, then stops the
	// process permanently. Returns the answer found, or nil.
	RunThenStop(ctx context.Context, seconds float64) (*model.Answer, error)

	// RunThenPause runs for up to seconds of CPU time, then suspends
	// the process so it can be resumed by a later call.
	RunThenPause(ctx context.Context, seconds float64) (*model.Answer, error)

	// Elapsed is the CPU time consumed so far, in seconds.
	Elapsed() float64

	// Terminated reports whether the process has stopped for good.
	Terminated() bool
}

// Solver is a runnable solver implementation.
type Solver interface {
	// Name returns the solver's stable name.
	Name() string

	// Start begins an episode against the task and returns its process.
	Start(ctx context.Context, task *model.Task) (Process, error)
}

// Attempter is a solver that can run one complete bounded attempt and
// report it as an immutable record.
type Attempter interface {
	Solver

	// Solve runs the solver for up to budget CPU-seconds.
	Solve(ctx context.Context, task *model.Task, budget float64) (model.Attempt, error)
}

// Preprocessor is a solver that can also rewrite a task into a
// (hopefully easier) derived task.
type Preprocessor interface {
	Solver

	// Preprocess runs against the task, producing either an answer
	// (attempt carries it) or a derived task, or neither.
	Preprocess(ctx context.Context, task *model.Task, budget float64, outputPath string) (model.Attempt, *model.Task, error)
}

// Environment is the live registry mapping solver and preprocessor
// names to implementations. Registration happens at startup before
// concurrent access, so no mutex is needed.
type Environment struct {
	// TimeRatio scales requested budgets to account for hardware speed
	// differences between the training machines and this one.
	TimeRatio float64

	solvers       map[string]Solver
	preprocessors map[string]Preprocessor
	logger        *slog.Logger
}

// NewEnvironment creates an empty Environment with TimeRatio 1.
func NewEnvironment(logger *slog.Logger) *Environment {
	return &Environment{
		TimeRatio:     1.0,
		solvers:       make(map[string]Solver),
		preprocessors: make(map[string]Preprocessor),
		logger:        logging.Component(logger, "environment"),
	}
}

// RegisterSolver adds a solver to the registry, keyed by its Name().
func (e *Environment) RegisterSolver(s Solver) {
	e.solvers[s.Name()] = s
	e.logger.Info("solver registered", "name", s.Name())
}

// RegisterPreprocessor adds a preprocessor to the registry.
func (e *Environment) RegisterPreprocessor(p Preprocessor) {
	e.preprocessors[p.Name()] = p
	e.logger.Info("preprocessor registered", "name", p.Name())
}

// Solver resolves a name to its registered solver, or returns an
// UnknownSolverError.
func (e *Environment) Solver(name string) (Solver, error) {
	s, ok := e.solvers[name]
	if !ok {
		return nil, &model.UnknownSolverError{Name: name}
	}
	return s, nil
}

// Preprocessor resolves a name to its registered preprocessor.
func (e *Environment) Preprocessor(name string) (Preprocessor, error) {
	p, ok := e.preprocessors[name]
	if !ok {
		return nil, &model.UnknownSolverError{Name: name}
	}
	return p, nil
}

// SolverNames returns the registered solver names, sorted, so every
// component sees the same solver index order.
func (e *Environment) SolverNames() []string {
	names := make([]string, 0, len(e.solvers))
	for name := range e.solvers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
