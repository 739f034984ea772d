package store

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/me/armada/internal/logging"
	"github.com/me/armada/pkg/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := NewSQLiteStore(":memory:", logging.Discard())
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return s
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
}

func TestEnsureRecyclableTrial(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.EnsureRecyclableTrial(ctx); err != nil {
		t.Fatalf("EnsureRecyclableTrial: %v", err)
	}
	if err := s.EnsureRecyclableTrial(ctx); err != nil {
		t.Fatalf("second EnsureRecyclableTrial: %v", err)
	}

	attempts, err := s.AttemptsForTrial(ctx, RecyclableTrialUUID)
	if err != nil {
		t.Fatalf("AttemptsForTrial: %v", err)
	}
	if len(attempts) != 0 {
		t.Fatalf("fresh recyclable trial has %d attempts", len(attempts))
	}
}

func TestSaveAndListSolvers(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"march", "kissat", "march"} {
		if err := s.SaveSolver(ctx, name, "sat"); err != nil {
			t.Fatalf("SaveSolver(%q): %v", name, err)
		}
	}

	refs, err := s.ListSolvers(ctx)
	if err != nil {
		t.Fatalf("ListSolvers: %v", err)
	}
	if len(refs) != 2 || refs[0].Name != "kissat" || refs[1].Name != "march" {
		t.Fatalf("ListSolvers() = %v, want [kissat march]", refs)
	}
}

func TestSolversWithPrefix(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"kissat", "kissat-sc2021", "march"} {
		if err := s.SaveSolver(ctx, name, "sat"); err != nil {
			t.Fatalf("SaveSolver(%q): %v", name, err)
		}
	}

	refs, err := s.SolversWithPrefix(ctx, "kissat")
	if err != nil {
		t.Fatalf("SolversWithPrefix: %v", err)
	}
	if len(refs) != 2 || refs[0].Name != "kissat" || refs[1].Name != "kissat-sc2021" {
		t.Fatalf("SolversWithPrefix() = %v, want [kissat kissat-sc2021]", refs)
	}
}

func TestTasksWithPrefix(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	names := []string{"sat/industrial/a.cnf", "sat/industrial/b.cnf", "sat/random/c.cnf"}
	for _, name := range names {
		task := model.NewTask(name, "/data/"+name)
		if err := s.SaveTask(ctx, task); err != nil {
			t.Fatalf("SaveTask: %v", err)
		}
		if err := s.NameTask(ctx, task.UUID, name, "default"); err != nil {
			t.Fatalf("NameTask: %v", err)
		}
	}

	records, err := s.TasksWithPrefix(ctx, "sat/industrial/", "default")
	if err != nil {
		t.Fatalf("TasksWithPrefix: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d tasks, want 2: %v", len(records), records)
	}
	if records[0].Name != "sat/industrial/a.cnf" || records[1].Name != "sat/industrial/b.cnf" {
		t.Fatalf("unexpected names: %v", records)
	}

	records, err = s.TasksWithPrefix(ctx, "sat/industrial/", "other")
	if err != nil {
		t.Fatalf("TasksWithPrefix: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("collection filter leaked %d tasks", len(records))
	}
}

func TestTasksWithPrefixEscapesWildcards(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	task := model.NewTask("odd_name.cnf", "/data/odd_name.cnf")
	if err := s.SaveTask(ctx, task); err != nil {
		t.Fatalf("SaveTask: %v", err)
	}
	if err := s.NameTask(ctx, task.UUID, "odd_name.cnf", "default"); err != nil {
		t.Fatalf("NameTask: %v", err)
	}

	// "odd%name" must not match "odd_name" through LIKE wildcards.
	records, err := s.TasksWithPrefix(ctx, "odd%", "default")
	if err != nil {
		t.Fatalf("TasksWithPrefix: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("unescaped LIKE pattern matched %d tasks", len(records))
	}
}

func TestRunRoundTripCompressesOutput(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	status := 10
	run := model.NewRun(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), 50*time.Second)
	run.UsageElapsed = 12 * time.Second
	run.ProcElapsed = 13 * time.Second
	run.ExitStatus = &status
	run.Stdout = bytes.Repeat([]byte("s SATISFIABLE\n"), 200)
	run.Stderr = []byte("c warning\n")

	if err := s.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun: %v", err)
	}

	loaded, err := s.GetRun(ctx, run.UUID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if loaded == nil {
		t.Fatal("GetRun returned nil for a saved run")
	}
	if !bytes.Equal(loaded.Stdout, run.Stdout) || !bytes.Equal(loaded.Stderr, run.Stderr) {
		t.Fatal("output did not round-trip")
	}
	if loaded.UsageElapsed != run.UsageElapsed || loaded.Cutoff != run.Cutoff {
		t.Fatalf("durations did not round-trip: %v vs %v", loaded, run)
	}
	if loaded.ExitStatus == nil || *loaded.ExitStatus != 10 {
		t.Fatalf("ExitStatus = %v, want 10", loaded.ExitStatus)
	}
	if loaded.ExitSignal != nil {
		t.Fatalf("ExitSignal = %v, want nil", loaded.ExitSignal)
	}

	var stored []byte
	if err := s.db.QueryRowContext(ctx,
		`SELECT stdout FROM cpu_limited_runs WHERE uuid = ?`, run.UUID.String(),
	).Scan(&stored); err != nil {
		t.Fatalf("select stored stdout: %v", err)
	}
	if len(stored) >= len(run.Stdout) {
		t.Fatalf("stored stdout is %d bytes, raw is %d; expected compression", len(stored), len(run.Stdout))
	}
}

func TestGetRunMissing(t *testing.T) {
	s := newTestStore(t)

	run, err := s.GetRun(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run != nil {
		t.Fatalf("GetRun = %v, want nil for a missing run", run)
	}
}

func TestSaveAttemptAndTrainingData(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.SaveSolver(ctx, "kissat", "sat"); err != nil {
		t.Fatalf("SaveSolver: %v", err)
	}
	task := model.NewTask("sat/a.cnf", "/data/sat/a.cnf")
	if err := s.SaveTask(ctx, task); err != nil {
		t.Fatalf("SaveTask: %v", err)
	}
	if err := s.NameTask(ctx, task.UUID, task.Name, "default"); err != nil {
		t.Fatalf("NameTask: %v", err)
	}

	trial, err := s.CreateTrial(ctx, nil, "training")
	if err != nil {
		t.Fatalf("CreateTrial: %v", err)
	}

	record := model.NewRun(time.Now().UTC(), 100*time.Second)
	record.Stdout = []byte("s SATISFIABLE\nv 1 -2 0\n")

	seed := int64(42)
	attempt := &model.DirectAttempt{
		Ref:       model.SolverRef{Name: "kissat"},
		Allotted:  100,
		Consumed:  12.5,
		Task:      task.UUID,
		Result:    &model.Answer{Text: "SATISFIABLE", Certificate: []string{"1", "-2", "0"}},
		RunRecord: record,
	}

	if _, err := s.SaveAttempt(ctx, attempt, &seed, trial); err != nil {
		t.Fatalf("SaveAttempt: %v", err)
	}

	failed := &model.DirectAttempt{
		Ref:      model.SolverRef{Name: "kissat"},
		Allotted: 100,
		Consumed: 100,
		Task:     task.UUID,
	}
	if _, err := s.SaveAttempt(ctx, failed, nil, trial); err != nil {
		t.Fatalf("SaveAttempt (failed): %v", err)
	}

	records, err := s.AttemptsForTrial(ctx, trial)
	if err != nil {
		t.Fatalf("AttemptsForTrial: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d attempts, want 2", len(records))
	}

	var answered *AttemptRecord
	for i := range records {
		if records[i].Answer != nil {
			answered = &records[i]
		}
	}
	if answered == nil {
		t.Fatal("no attempt with an answer")
	}
	if answered.Answer.Text != "SATISFIABLE" || len(answered.Answer.Certificate) != 3 {
		t.Fatalf("answer did not round-trip: %v", answered.Answer)
	}
	if answered.Seed == nil || *answered.Seed != 42 {
		t.Fatalf("seed = %v, want 42", answered.Seed)
	}
	if answered.RunUUID != record.UUID {
		t.Fatalf("run uuid = %v, want %v", answered.RunUUID, record.UUID)
	}

	loadedRun, err := s.GetRun(ctx, record.UUID)
	if err != nil || loadedRun == nil {
		t.Fatalf("GetRun(%v): %v, %v", record.UUID, loadedRun, err)
	}
	if !bytes.Equal(loadedRun.Stdout, record.Stdout) {
		t.Fatal("attempt run record stdout did not round-trip")
	}

	data, err := s.TrainingData(ctx, trial, "default")
	if err != nil {
		t.Fatalf("TrainingData: %v", err)
	}
	runs := data.Runs("sat/a.cnf", "kissat")
	if len(runs) != 2 {
		t.Fatalf("got %d dataset runs, want 2", len(runs))
	}
	succeeded := 0
	for _, run := range runs {
		if run.Succeeded {
			succeeded++
			if run.Answer != "SATISFIABLE" {
				t.Fatalf("run answer = %q", run.Answer)
			}
		}
	}
	if succeeded != 1 {
		t.Fatalf("got %d succeeded runs, want 1", succeeded)
	}
	if data.CommonBudget() != 100 {
		t.Fatalf("CommonBudget() = %v, want 100", data.CommonBudget())
	}
}
