package model

import "fmt"

// UnknownSolverError is returned when a solver name has no entry in the
// environment's registry. Fatal to the episode.
type UnknownSolverError struct {
	Name string
}

func (e *UnknownSolverError) Error() string {
	return fmt.Sprintf("no solver registered under name %q", e.Name)
}

// InvalidBudgetError is returned when a planner or portfolio is handed a
// capacity inconsistent with its survival curves. Fatal to the episode.
type InvalidBudgetError struct {
	Message string
}

func (e *InvalidBudgetError) Error() string {
	return fmt.Sprintf("invalid budget: %s", e.Message)
}

// NewInvalidBudgetError creates an InvalidBudgetError with a formatted message.
func NewInvalidBudgetError(format string, args ...any) *InvalidBudgetError {
	return &InvalidBudgetError{Message: fmt.Sprintf(format, args...)}
}

// DimensionError is returned when a weight vector does not match the
// model's solver count.
type DimensionError struct {
	Want int
	Got  int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("dimension mismatch: want %d, got %d", e.Want, e.Got)
}
