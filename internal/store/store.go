// Package store persists stabilization run history. Each run is recorded
// with its parameters, outcome, and per-activation trace so past runs can be
// listed, inspected, and exported.
package store

import (
	"context"
	"time"

	"github.com/stabsim/stabsim/internal/trace"
)

// Run is one recorded stabilization run.
type Run struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`

	// Parameters.
	Size     int   `json:"size"`
	Seed     int64 `json:"seed"`
	Margin   int   `json:"margin"`
	MaxSteps int   `json:"max_steps"`
	Faults   int   `json:"faults"`

	// Outcome.
	Converged bool          `json:"converged"`
	Steps     int           `json:"steps"`
	Elapsed   time.Duration `json:"elapsed_ns"`

	// Initial and Final are compact primary snapshots, e.g. "0110".
	Initial string `json:"initial"`
	Final   string `json:"final"`
}

// Store defines the interface for persisting and querying run history.
type Store interface {
	// SaveRun records a completed run and its trace. The run ID must be
	// unique.
	SaveRun(ctx context.Context, run Run, steps []trace.Step) error

	// GetRun retrieves a run by ID. Returns nil if not found.
	GetRun(ctx context.Context, id string) (*Run, error)

	// ListRuns returns runs newest first. A non-positive limit means all.
	ListRuns(ctx context.Context, limit int) ([]Run, error)

	// Steps returns a run's trace in activation order.
	Steps(ctx context.Context, runID string) ([]trace.Step, error)

	// Close releases the store's resources.
	Close() error
}
