package model

import (
	"math"

	"github.com/google/uuid"
)

// SolverRef is the minimal identity of a solver: a stable name, plus an
// optional UUID assigned when the solver is first persisted. Plans and
// historical records refer to solvers by name only; the name resolves to
// a concrete implementation at call time.
type SolverRef struct {
	Name string    `json:"name"`
	UUID uuid.UUID `json:"uuid,omitempty"`
}

// Task is a problem instance to be solved, backed by a file.
type Task struct {
	UUID uuid.UUID `json:"uuid"`
	Name string    `json:"name"`
	Path string    `json:"path"`

	// Objective is set for optimization instances, where only
	// OPTIMUM FOUND (or UNSATISFIABLE) is a definitive answer.
	Objective bool `json:"objective,omitempty"`

	// Preprocessor names the preprocessor that produced this task, or
	// is empty for a raw instance. For tasks produced through a lookup
	// handle this is the handle's name, not the resolved implementation.
	Preprocessor string `json:"preprocessor,omitempty"`
}

// NewTask creates a Task for an instance file with a fresh UUID.
func NewTask(name, path string) *Task {
	return &Task{UUID: uuid.New(), Name: name, Path: path}
}

// Answer is a solver's claimed result on a task. A nil *Answer means the
// solver produced no result (timeout, crash, or "unknown").
type Answer struct {
	Text        string   `json:"text"`
	Certificate []string `json:"certificate,omitempty"`
}

// Budget is a quantity of CPU-seconds available to a solving episode.
type Budget struct {
	CPUSeconds float64 `json:"cpu_seconds"`
}

// BinCount returns the number of planning bins of the given width needed
// to cover the budget: ceil(budget / interval).
func (b Budget) BinCount(interval float64) int {
	if interval <= 0 || b.CPUSeconds <= 0 {
		return 0
	}
	return int(math.Ceil(b.CPUSeconds / interval))
}
