package model

import "github.com/google/uuid"

// Attempt is the outcome of one bounded solver invocation on a task.
// It is a two-variant value: a DirectAttempt produced by a concrete
// solver run, or a WrappedAttempt produced by a lookup (or preprocessing)
// layer that rebinds provenance to itself while delegating everything
// else to the inner attempt. Attempts are immutable once created.
type Attempt interface {
	// Solver is the reference recorded as having produced this attempt.
	// For wrapped attempts this is the wrapping handle, not the
	// resolved implementation.
	Solver() SolverRef

	// Budget is the CPU-seconds the solver was allotted.
	Budget() float64

	// Cost is the CPU-seconds actually consumed.
	Cost() float64

	// TaskUUID identifies the task the attempt ran against.
	TaskUUID() uuid.UUID

	// Answer is the result obtained, or nil for none.
	Answer() *Answer
}

// DirectAttempt is the innermost attempt: the record of a concrete
// solver process run.
type DirectAttempt struct {
	Ref       SolverRef
	Allotted  float64
	Consumed  float64
	Task      uuid.UUID
	Result    *Answer
	Seed      int64
	RunRecord *Run
}

func (a *DirectAttempt) Solver() SolverRef   { return a.Ref }
func (a *DirectAttempt) Budget() float64     { return a.Allotted }
func (a *DirectAttempt) Cost() float64       { return a.Consumed }
func (a *DirectAttempt) TaskUUID() uuid.UUID { return a.Task }
func (a *DirectAttempt) Answer() *Answer     { return a.Result }

// WrappedAttempt rebinds an inner attempt's provenance to a wrapping
// solver handle, so the record names "the lookup, not the resolved
// implementation".
type WrappedAttempt struct {
	Ref   SolverRef
	Inner Attempt
}

func (a *WrappedAttempt) Solver() SolverRef   { return a.Ref }
func (a *WrappedAttempt) Budget() float64     { return a.Inner.Budget() }
func (a *WrappedAttempt) Cost() float64       { return a.Inner.Cost() }
func (a *WrappedAttempt) TaskUUID() uuid.UUID { return a.Inner.TaskUUID() }
func (a *WrappedAttempt) Answer() *Answer     { return a.Inner.Answer() }

// Innermost unwraps an attempt down to its DirectAttempt, or nil if the
// chain has no direct record (should not happen for well-formed chains).
func Innermost(a Attempt) *DirectAttempt {
	for a != nil {
		switch v := a.(type) {
		case *DirectAttempt:
			return v
		case *WrappedAttempt:
			a = v.Inner
		default:
			return nil
		}
	}
	return nil
}
