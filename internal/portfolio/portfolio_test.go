package portfolio

import (
	"context"
	"errors"
	"testing"

	"github.com/me/armada/internal/domain"
	"github.com/me/armada/internal/logging"
	"github.com/me/armada/internal/planner"
	"github.com/me/armada/internal/rundata"
	"github.com/me/armada/internal/solver"
	"github.com/me/armada/pkg/model"
)

// newSuite builds a suite of recycled solvers over the dataset, one per
// name, with distinct deterministic seeds.
func newSuite(t *testing.T, data *rundata.Dataset, names ...string) *Suite {
	t.Helper()

	env := solver.NewEnvironment(logging.Discard())
	for i, name := range names {
		env.RegisterSolver(solver.NewRecycledSolver(name, data, int64(i+1)))
	}
	return &Suite{Domain: domain.SAT{}, Environment: env, RunData: data}
}

// contrastData records a solver that always answers quickly ("alpha")
// and one that always times out ("beta"), under a shared 100s cutoff.
func contrastData(tasks ...string) *rundata.Dataset {
	data := rundata.New()
	for _, task := range tasks {
		data.Add(task, rundata.Outcome{
			Solver: "alpha", Budget: 100, Cost: 10,
			Succeeded: true, Answer: "SATISFIABLE",
		})
		data.Add(task, rundata.Outcome{
			Solver: "beta", Budget: 100, Cost: 100,
			Succeeded: false,
		})
	}
	return data
}

func TestRandomPortfolioRunsTheOnlySolver(t *testing.T) {
	data := contrastData("t1")
	suite := newSuite(t, data, "alpha")
	task := model.NewTask("t1", "/tmp/t1.cnf")

	answer, err := NewRandomPortfolio(7).Solve(context.Background(), task, suite, model.Budget{CPUSeconds: 100})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if answer == nil || answer.Text != "SATISFIABLE" {
		t.Fatalf("answer = %v, want SATISFIABLE", answer)
	}
}

func TestUniformPortfolioStopsAtFirstDefinitiveAnswer(t *testing.T) {
	data := contrastData("t1")
	suite := newSuite(t, data, "alpha", "beta")
	task := model.NewTask("t1", "/tmp/t1.cnf")

	// 200s over 2 solvers gives 1s slices; alpha's recorded 10s run
	// should finish on its tenth turn, long before the budget runs out.
	answer, err := NewUniformPortfolio(logging.Discard()).Solve(
		context.Background(), task, suite, model.Budget{CPUSeconds: 200})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if answer == nil || answer.Text != "SATISFIABLE" {
		t.Fatalf("answer = %v, want SATISFIABLE", answer)
	}
}

func TestUniformPortfolioExhaustsBudgetWithoutAnswer(t *testing.T) {
	data := rundata.New()
	data.Add("t1", rundata.Outcome{Solver: "beta", Budget: 100, Cost: 100, Succeeded: false})
	suite := newSuite(t, data, "beta")
	task := model.NewTask("t1", "/tmp/t1.cnf")

	answer, err := NewUniformPortfolio(logging.Discard()).Solve(
		context.Background(), task, suite, model.Budget{CPUSeconds: 10})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if answer != nil {
		t.Fatalf("answer = %v, want nil on exhausted budget", answer)
	}
}

func TestBaselinePicksBestTrainSetSolver(t *testing.T) {
	data := contrastData("t1", "t2", "t3")
	names := []string{"alpha", "beta"}

	p, err := NewBaselinePortfolio(names, data)
	if err != nil {
		t.Fatalf("NewBaselinePortfolio: %v", err)
	}
	if p.SolverName() != "alpha" {
		t.Fatalf("SolverName() = %q, want alpha", p.SolverName())
	}

	suite := newSuite(t, data, "alpha", "beta")
	answer, err := p.Solve(context.Background(), model.NewTask("t1", "/tmp/t1.cnf"), suite, model.Budget{CPUSeconds: 100})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if answer == nil || answer.Text != "SATISFIABLE" {
		t.Fatalf("answer = %v, want SATISFIABLE", answer)
	}
}

func TestBaselineRejectsEmptySolverList(t *testing.T) {
	if _, err := NewBaselinePortfolio(nil, rundata.New()); err == nil {
		t.Fatal("expected an error for an empty solver list")
	}
}

func TestPreplanningFavorsTheReliableSolver(t *testing.T) {
	data := contrastData("t1", "t2")
	names := []string{"alpha", "beta"}

	m, err := TrainModel(data, names, 25)
	if err != nil {
		t.Fatalf("TrainModel: %v", err)
	}
	p, err := NewPreplanningPortfolio(m, planner.NewKnapsackPlanner(), logging.Discard())
	if err != nil {
		t.Fatalf("NewPreplanningPortfolio: %v", err)
	}

	plan := p.Plan()
	if len(plan) == 0 {
		t.Fatal("expected a non-empty plan")
	}
	if plan[0].Solver != 0 {
		t.Fatalf("plan[0].Solver = %d, want 0 (alpha)", plan[0].Solver)
	}

	suite := newSuite(t, data, "alpha", "beta")
	answer, err := p.Solve(context.Background(), model.NewTask("t1", "/tmp/t1.cnf"), suite, model.Budget{CPUSeconds: 100})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if answer == nil || answer.Text != "SATISFIABLE" {
		t.Fatalf("answer = %v, want SATISFIABLE", answer)
	}
}

func TestPreplanningIsDeterministic(t *testing.T) {
	data := contrastData("t1", "t2")
	names := []string{"alpha", "beta"}

	m, err := TrainModel(data, names, 25)
	if err != nil {
		t.Fatalf("TrainModel: %v", err)
	}

	first, err := NewPreplanningPortfolio(m, planner.NewKnapsackPlanner(), logging.Discard())
	if err != nil {
		t.Fatalf("NewPreplanningPortfolio: %v", err)
	}
	second, err := NewPreplanningPortfolio(m, planner.NewKnapsackPlanner(), logging.Discard())
	if err != nil {
		t.Fatalf("NewPreplanningPortfolio: %v", err)
	}

	a, b := first.Plan(), second.Plan()
	if len(a) != len(b) {
		t.Fatalf("plan lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("plans diverge at %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestFollowPlanRejectsBudgetOverrun(t *testing.T) {
	data := contrastData("t1")
	names := []string{"alpha", "beta"}

	m, err := TrainModel(data, names, 25)
	if err != nil {
		t.Fatalf("TrainModel: %v", err)
	}
	p, err := NewPreplanningPortfolio(m, planner.NewKnapsackPlanner(), logging.Discard())
	if err != nil {
		t.Fatalf("NewPreplanningPortfolio: %v", err)
	}

	suite := newSuite(t, data, "alpha", "beta")
	// The first segment needs at least one 25s bin; 5s of budget is an
	// overrun far past the tolerance.
	_, err = p.Solve(context.Background(), model.NewTask("t1", "/tmp/t1.cnf"), suite, model.Budget{CPUSeconds: 5})
	var budgetErr *model.InvalidBudgetError
	if !errors.As(err, &budgetErr) {
		t.Fatalf("err = %v, want InvalidBudgetError", err)
	}
}

func TestOraclePlansFromTheTaskOwnRuns(t *testing.T) {
	data := contrastData("t1")
	suite := newSuite(t, data, "alpha", "beta")

	answer, err := NewOraclePortfolio(logging.Discard()).Solve(
		context.Background(), model.NewTask("t1", "/tmp/t1.cnf"), suite, model.Budget{CPUSeconds: 100})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if answer == nil || answer.Text != "SATISFIABLE" {
		t.Fatalf("answer = %v, want SATISFIABLE", answer)
	}
}

func TestPureModelSolvesWithinBudget(t *testing.T) {
	data := contrastData("t1", "t2")
	names := []string{"alpha", "beta"}

	m, err := TrainModel(data, names, 25)
	if err != nil {
		t.Fatalf("TrainModel: %v", err)
	}

	cfg := DefaultConfig()
	cfg.Interval = 25
	p := NewPureModelPortfolio(m, cfg, logging.Discard())

	suite := newSuite(t, data, "alpha", "beta")
	answer, err := p.Solve(context.Background(), model.NewTask("t1", "/tmp/t1.cnf"), suite, model.Budget{CPUSeconds: 100})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if answer == nil || answer.Text != "SATISFIABLE" {
		t.Fatalf("answer = %v, want SATISFIABLE", answer)
	}
}

func TestPureModelReplansAroundFailures(t *testing.T) {
	// Training favors alpha, but on the solve task only gamma answers.
	// The adaptive loop must condition away alpha's failures and reach
	// gamma.
	training := rundata.New()
	for _, task := range []string{"t1", "t2"} {
		training.Add(task, rundata.Outcome{
			Solver: "alpha", Budget: 100, Cost: 10,
			Succeeded: true, Answer: "SATISFIABLE",
		})
	}
	training.Add("t1", rundata.Outcome{Solver: "gamma", Budget: 100, Cost: 100, Succeeded: false})
	training.Add("t2", rundata.Outcome{Solver: "gamma", Budget: 100, Cost: 90, Succeeded: true, Answer: "SATISFIABLE"})
	names := []string{"alpha", "gamma"}

	m, err := TrainModel(training, names, 25)
	if err != nil {
		t.Fatalf("TrainModel: %v", err)
	}

	live := rundata.New()
	live.Add("hard", rundata.Outcome{Solver: "alpha", Budget: 100, Cost: 100, Succeeded: false})
	live.Add("hard", rundata.Outcome{Solver: "gamma", Budget: 100, Cost: 10, Succeeded: true, Answer: "UNSATISFIABLE"})

	cfg := DefaultConfig()
	cfg.Interval = 25
	p := NewPureModelPortfolio(m, cfg, logging.Discard())

	suite := newSuite(t, live, "alpha", "gamma")
	answer, err := p.Solve(context.Background(), model.NewTask("hard", "/tmp/hard.cnf"), suite, model.Budget{CPUSeconds: 500})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if answer == nil || answer.Text != "UNSATISFIABLE" {
		t.Fatalf("answer = %v, want UNSATISFIABLE from gamma", answer)
	}
}

func TestPureModelRunsLimitTrips(t *testing.T) {
	training := contrastData("t1")
	names := []string{"alpha", "beta"}

	m, err := TrainModel(training, names, 25)
	if err != nil {
		t.Fatalf("TrainModel: %v", err)
	}

	// On the solve task every run fails cheaply, so the budget never
	// runs out; the runs limit has to end the episode instead.
	live := rundata.New()
	live.Add("hard", rundata.Outcome{Solver: "alpha", Budget: 100, Cost: 1, Succeeded: false})
	live.Add("hard", rundata.Outcome{Solver: "beta", Budget: 100, Cost: 1, Succeeded: false})

	cfg := DefaultConfig()
	cfg.Interval = 25
	cfg.RunsLimit = 5
	p := NewPureModelPortfolio(m, cfg, logging.Discard())

	suite := newSuite(t, live, "alpha", "beta")
	answer, err := p.Solve(context.Background(), model.NewTask("hard", "/tmp/hard.cnf"), suite, model.Budget{CPUSeconds: 1e6})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if answer != nil {
		t.Fatalf("answer = %v, want nil once the runs limit trips", answer)
	}
}

func TestTrainBuildsEveryNamedVariant(t *testing.T) {
	data := contrastData("t1", "t2")
	names := []string{"alpha", "beta"}
	cfg := DefaultConfig()
	cfg.Interval = 25

	for _, variant := range Names() {
		p, err := Train(variant, names, data, cfg, 11, logging.Discard())
		if err != nil {
			t.Fatalf("Train(%q): %v", variant, err)
		}
		if p == nil {
			t.Fatalf("Train(%q) returned nil portfolio", variant)
		}
	}

	if _, err := Train("bogus", names, data, cfg, 11, logging.Discard()); err == nil {
		t.Fatal("expected an error for an unknown variant")
	}
}

func TestTrainModelRejectsBadInterval(t *testing.T) {
	if _, err := TrainModel(contrastData("t1"), []string{"alpha", "beta"}, 0); err == nil {
		t.Fatal("expected an error for a zero interval")
	}
}
