// Package store persists the run archive: solvers, tasks and their
// names, CPU-limited run records, attempts, and the trials that group
// attempts into experiments. Solver output is zstd-compressed at rest.
package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/me/armada/internal/rundata"
	"github.com/me/armada/pkg/model"
)

// RecyclableTrialUUID is the well-known trial that collects attempts
// eligible for replay by recycled solvers.
var RecyclableTrialUUID = uuid.MustParse("777d15f0-b1cd-4c89-9bf9-814d0974c748")

// TaskRecord is a stored task together with one of its names.
type TaskRecord struct {
	UUID       uuid.UUID
	Name       string
	Collection string
}

// AttemptRecord is a stored run attempt, flattened for reads.
type AttemptRecord struct {
	UUID       uuid.UUID
	SolverName string
	TaskUUID   uuid.UUID
	Budget     float64
	Cost       float64
	Seed       *int64
	Answer     *model.Answer
	RunUUID    uuid.UUID
}

// Store defines the persistence layer for the run archive.
type Store interface {
	// Solver and task registration
	SaveSolver(ctx context.Context, name, solverType string) error
	ListSolvers(ctx context.Context) ([]model.SolverRef, error)
	SolversWithPrefix(ctx context.Context, prefix string) ([]model.SolverRef, error)
	SaveTask(ctx context.Context, task *model.Task) error
	NameTask(ctx context.Context, taskUUID uuid.UUID, name, collection string) error
	TasksWithPrefix(ctx context.Context, prefix, collection string) ([]TaskRecord, error)

	// Run records
	SaveRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, id uuid.UUID) (*model.Run, error)

	// Attempts and trials
	CreateTrial(ctx context.Context, parent *uuid.UUID, label string) (uuid.UUID, error)
	EnsureRecyclableTrial(ctx context.Context) error
	SaveAttempt(ctx context.Context, attempt model.Attempt, seed *int64, trial uuid.UUID) (uuid.UUID, error)
	AttemptsForTrial(ctx context.Context, trial uuid.UUID) ([]AttemptRecord, error)
	TrainingData(ctx context.Context, trial uuid.UUID, collection string) (*rundata.Dataset, error)

	// Lifecycle
	Close() error
	Migrate(ctx context.Context) error
}
