package training

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"github.com/me/armada/internal/domain"
	"github.com/me/armada/internal/logging"
	"github.com/me/armada/internal/portfolio"
	"github.com/me/armada/internal/rundata"
	"github.com/me/armada/internal/solver"
	"github.com/me/armada/pkg/model"
)

func trainingData() *rundata.Dataset {
	data := rundata.New()
	for _, task := range []string{"t1", "t2"} {
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

func TestSnapshotRoundTrip(t *testing.T) {
	cfg := portfolio.DefaultConfig()
	cfg.Interval = 25

	_, snap, err := Train("pure-model", "sat", []string{"alpha", "beta"}, trainingData(), cfg, 42, logging.Discard())
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if len(snap.LogSurvival) != 2 {
		t.Fatalf("snapshot has %d curves, want 2", len(snap.LogSurvival))
	}

	path := filepath.Join(t.TempDir(), "portfolio.json")
	if err := Save(path, snap); err != nil {
		t.Fatalf("Save: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if loaded.Portfolio != "pure-model" || loaded.Domain != "sat" || loaded.Seed != 42 {
		t.Fatalf("snapshot metadata did not round-trip: %+v", loaded)
	}
	for s := range snap.LogSurvival {
		for b := range snap.LogSurvival[s] {
			if math.Abs(loaded.LogSurvival[s][b]-snap.LogSurvival[s][b]) > 1e-12 {
				t.Fatalf("curve %d bin %d did not round-trip", s, b)
			}
		}
	}

	m, err := loaded.Model()
	if err != nil {
		t.Fatalf("Model: %v", err)
	}
	if m.SolverCount() != 2 || m.Interval() != 25 {
		t.Fatalf("rebuilt model is %d solvers at %v interval", m.SolverCount(), m.Interval())
	}
}

func TestRebuiltPortfolioSolves(t *testing.T) {
	data := trainingData()
	cfg := portfolio.DefaultConfig()
	cfg.Interval = 25

	_, snap, err := Train("preplanning", "sat", []string{"alpha", "beta"}, data, cfg, 7, logging.Discard())
	if err != nil {
		t.Fatalf("Train: %v", err)
	}

	rebuilt, err := snap.Rebuild(logging.Discard())
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	env := solver.NewEnvironment(logging.Discard())
	env.RegisterSolver(solver.NewRecycledSolver("alpha", data, 1))
	env.RegisterSolver(solver.NewRecycledSolver("beta", data, 2))
	suite := &portfolio.Suite{Domain: domain.SAT{}, Environment: env, RunData: data}

	answer, err := rebuilt.Solve(context.Background(), model.NewTask("t1", "/tmp/t1.cnf"), suite, model.Budget{CPUSeconds: 100})
	if err != nil {
		t.Fatalf("Solve: %v", err)
	}
	if answer == nil || answer.Text != "SATISFIABLE" {
		t.Fatalf("answer = %v, want SATISFIABLE", answer)
	}
}

func TestRebuildBaseline(t *testing.T) {
	cfg := portfolio.DefaultConfig()
	cfg.Interval = 25

	_, snap, err := Train("baseline", "sat", []string{"alpha", "beta"}, trainingData(), cfg, 7, logging.Discard())
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if snap.Baseline != "alpha" {
		t.Fatalf("snapshot baseline = %q, want alpha", snap.Baseline)
	}

	rebuilt, err := snap.Rebuild(logging.Discard())
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if rebuilt.(*portfolio.BaselinePortfolio).SolverName() != "alpha" {
		t.Fatal("rebuilt baseline lost its solver choice")
	}
}

func TestRebuildUnknownVariant(t *testing.T) {
	snap := &Snapshot{Portfolio: "bogus"}
	if _, err := snap.Rebuild(logging.Discard()); err == nil {
		t.Fatal("expected an error for an unknown variant")
	}
}

func TestModelRequiresCurves(t *testing.T) {
	snap := &Snapshot{Portfolio: "uniform"}
	if _, err := snap.Model(); err == nil {
		t.Fatal("expected an error for a model-free snapshot")
	}
}
