// Package validation measures portfolio variants by replaying recorded
// runs over repeated random train/test splits of a task collection.
package validation

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"strconv"

	"github.com/google/uuid"

	"github.com/me/armada/internal/domain"
	"github.com/me/armada/internal/logging"
	"github.com/me/armada/internal/portfolio"
	"github.com/me/armada/internal/rundata"
	"github.com/me/armada/internal/solver"
	"github.com/me/armada/pkg/model"
)

// Options tunes a validation experiment.
type Options struct {
	// Splits is the number of independent train/test splits.
	Splits int

	// MaxExamples caps how many tasks contribute to a split.
	MaxExamples int

	// Fraction of the (capped) task count used for training.
	Fraction float64

	// Budget is the per-task CPU-seconds budget during evaluation.
	Budget float64

	// Config configures the trainable portfolio variants.
	Config portfolio.Config

	// Seed drives the split shuffles and the replayed runs.
	Seed int64
}

// DefaultOptions mirrors the standard experiment: 8 half/half splits
// over at most 500 tasks with a 5000-second budget.
func DefaultOptions() Options {
	return Options{
		Splits:      8,
		MaxExamples: 500,
		Fraction:    0.5,
		Budget:      5000,
		Config:      portfolio.DefaultConfig(),
	}
}

// Row is one point on a variant's cost/success-rate curve within a
// split.
type Row struct {
	Name   string
	Budget float64
	Cost   float64
	Rate   float64
	Split  uuid.UUID
}

// Run trains every named variant on each split's training half and
// replays it against the test half, returning the accumulated curve
// rows.
func Run(ctx context.Context, dom domain.Domain, names []string, data *rundata.Dataset, variants []string, opts Options, logger *slog.Logger) ([]Row, error) {
	tasks := data.TaskNames()
	if len(tasks) < 2 {
		return nil, fmt.Errorf("validation needs at least 2 tasks, have %d", len(tasks))
	}

	capped := len(tasks)
	if opts.MaxExamples > 0 && capped > opts.MaxExamples {
		capped = opts.MaxExamples
	}
	examples := int(math.Round(float64(capped) * opts.Fraction))
	if examples < 1 || examples >= len(tasks) {
		return nil, fmt.Errorf("degenerate split: %d training tasks of %d", examples, len(tasks))
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	logger = logging.Component(logger, "validation")

	var rows []Row
	for i := 0; i < opts.Splits; i++ {
		shuffled := append([]string(nil), tasks...)
		rng.Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})
		trainTasks := shuffled[:examples]
		testTasks := shuffled[examples:]
		split := uuid.New()

		training := data.Subset(trainTasks)

		for _, variant := range variants {
			built, err := portfolio.Train(variant, names, training, opts.Config, rng.Int63(), logger)
			if err != nil {
				return nil, fmt.Errorf("train %q: %w", variant, err)
			}

			curve, err := evaluate(ctx, built, dom, names, data, testTasks, opts.Budget, rng.Int63(), logger)
			if err != nil {
				return nil, fmt.Errorf("evaluate %q: %w", variant, err)
			}

			logger.Info("variant evaluated", "variant", variant, "split", split,
				"rate", float64(len(curve))/float64(len(testTasks)))

			for j, cost := range curve {
				rows = append(rows, Row{
					Name:   variant,
					Budget: opts.Budget,
					Cost:   cost,
					Rate:   float64(j) / float64(len(testTasks)),
					Split:  split,
				})
			}
		}
	}

	return rows, nil
}

// evaluate replays one trained portfolio over the test tasks and
// returns the sorted costs of its successful episodes.
func evaluate(ctx context.Context, p portfolio.Portfolio, dom domain.Domain, names []string, data *rundata.Dataset, testTasks []string, budget float64, seed int64, logger *slog.Logger) ([]float64, error) {
	recorder := &costRecorder{}
	env := solver.NewEnvironment(logger)
	for i, name := range names {
		env.RegisterSolver(recorder.wrap(solver.NewRecycledSolver(name, data, seed+int64(i))))
	}
	suite := &portfolio.Suite{Domain: dom, Environment: env, RunData: data}

	var successes []float64
	for _, name := range testTasks {
		recorder.reset()

		answer, err := p.Solve(ctx, model.NewTask(name, name), suite, model.Budget{CPUSeconds: budget})
		if err != nil {
			return nil, fmt.Errorf("task %q: %w", name, err)
		}
		if answer != nil {
			successes = append(successes, recorder.total())
		}
	}

	sort.Float64s(successes)
	return successes, nil
}

// costRecorder tracks every process started during one episode so the
// episode's consumed CPU time can be read back afterwards.
type costRecorder struct {
	processes []solver.Process
}

func (r *costRecorder) wrap(s solver.Solver) solver.Solver {
	return &countedSolver{inner: s, recorder: r}
}

func (r *costRecorder) reset() { r.processes = nil }

func (r *costRecorder) total() float64 {
	sum := 0.0
	for _, p := range r.processes {
		sum += p.Elapsed()
	}
	return sum
}

type countedSolver struct {
	inner    solver.Solver
	recorder *costRecorder
}

func (c *countedSolver) Name() string { return c.inner.Name() }

func (c *countedSolver) Start(ctx context.Context, task *model.Task) (solver.Process, error) {
	process, err := c.inner.Start(ctx, task)
	if err != nil {
		return nil, err
	}
	c.recorder.processes = append(c.recorder.processes, process)
	return process, nil
}

// WriteCSV writes rows in the standard results layout.
func WriteCSV(w io.Writer, rows []Row) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"name", "budget", "cost", "rate", "split"}); err != nil {
		return err
	}
	for _, row := range rows {
		record := []string{
			row.Name,
			strconv.FormatFloat(row.Budget, 'f', -1, 64),
			strconv.FormatFloat(row.Cost, 'f', -1, 64),
			strconv.FormatFloat(row.Rate, 'f', -1, 64),
			row.Split.String(),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
