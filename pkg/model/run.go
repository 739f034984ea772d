package model

import (
	"time"

	"github.com/google/uuid"
)

// Run records one CPU-limited execution of an external solver process.
// Stdout and Stderr are plain bytes in memory; the store compresses them
// at rest.
type Run struct {
	UUID         uuid.UUID     `json:"uuid"`
	Started      time.Time     `json:"started"`
	UsageElapsed time.Duration `json:"usage_elapsed"`
	ProcElapsed  time.Duration `json:"proc_elapsed"`
	Cutoff       time.Duration `json:"cutoff"`
	ExitStatus   *int          `json:"exit_status,omitempty"`
	ExitSignal   *int          `json:"exit_signal,omitempty"`
	Stdout       []byte        `json:"-"`
	Stderr       []byte        `json:"-"`
}

// NewRun creates a Run record with a fresh UUID and the given start time.
func NewRun(started time.Time, cutoff time.Duration) *Run {
	return &Run{UUID: uuid.New(), Started: started, Cutoff: cutoff}
}
