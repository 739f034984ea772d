package model

import (
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestBudgetBinCount(t *testing.T) {
	tests := []struct {
		name     string
		budget   float64
		interval float64
		want     int
	}{
		{"exact multiple", 30, 10, 3},
		{"rounds up", 25, 10, 3},
		{"single partial bin", 1, 10, 1},
		{"zero budget", 0, 10, 0},
		{"zero interval", 30, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Budget{CPUSeconds: tt.budget}.BinCount(tt.interval)
			if got != tt.want {
				t.Errorf("BinCount(%v/%v) = %d, want %d", tt.budget, tt.interval, got, tt.want)
			}
		})
	}
}

func TestWrappedAttemptDelegation(t *testing.T) {
	taskID := uuid.New()
	direct := &DirectAttempt{
		Ref:      SolverRef{Name: "concrete"},
		Allotted: 100,
		Consumed: 42.5,
		Task:     taskID,
		Result:   &Answer{Text: "SATISFIABLE"},
	}
	wrapped := &WrappedAttempt{Ref: SolverRef{Name: "lookup"}, Inner: direct}

	if wrapped.Solver().Name != "lookup" {
		t.Errorf("wrapped solver = %q, want the wrapping ref", wrapped.Solver().Name)
	}
	if wrapped.Budget() != 100 || wrapped.Cost() != 42.5 {
		t.Errorf("wrapped budget/cost = %v/%v, want inner values", wrapped.Budget(), wrapped.Cost())
	}
	if wrapped.TaskUUID() != taskID {
		t.Error("wrapped task UUID should come from the inner attempt")
	}
	if wrapped.Answer().Text != "SATISFIABLE" {
		t.Error("wrapped answer should come from the inner attempt")
	}
}

func TestInnermost(t *testing.T) {
	direct := &DirectAttempt{Ref: SolverRef{Name: "base"}}
	twice := &WrappedAttempt{
		Ref:   SolverRef{Name: "outer"},
		Inner: &WrappedAttempt{Ref: SolverRef{Name: "middle"}, Inner: direct},
	}

	if got := Innermost(twice); got != direct {
		t.Errorf("Innermost = %+v, want the direct attempt", got)
	}
	if got := Innermost(nil); got != nil {
		t.Errorf("Innermost(nil) = %+v, want nil", got)
	}
}

func TestTypedErrors(t *testing.T) {
	var unknown *UnknownSolverError
	err := error(&UnknownSolverError{Name: "minisat"})
	if !errors.As(err, &unknown) || unknown.Name != "minisat" {
		t.Errorf("UnknownSolverError round-trip failed: %v", err)
	}

	var dim *DimensionError
	err = error(&DimensionError{Want: 3, Got: 2})
	if !errors.As(err, &dim) {
		t.Errorf("DimensionError round-trip failed: %v", err)
	}

	budgetErr := NewInvalidBudgetError("capacity %d exceeds %d bins", 5, 3)
	var invalid *InvalidBudgetError
	if !errors.As(error(budgetErr), &invalid) {
		t.Errorf("InvalidBudgetError round-trip failed: %v", budgetErr)
	}
}
