package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/stabsim/stabsim/internal/trace"
)

// MemoryStore implements Store for testing and development.
type MemoryStore struct {
	mu    sync.RWMutex
	runs  map[string]Run
	steps map[string][]trace.Step
	order []string // insertion order, oldest first
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:  make(map[string]Run),
		steps: make(map[string][]trace.Step),
	}
}

// SaveRun records a completed run and its trace.
func (s *MemoryStore) SaveRun(ctx context.Context, run Run, steps []trace.Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == "" {
		return fmt.Errorf("run ID is required")
	}
	if _, exists := s.runs[run.ID]; exists {
		return fmt.Errorf("run already exists: %s", run.ID)
	}

	s.runs[run.ID] = run
	s.steps[run.ID] = append([]trace.Step(nil), steps...)
	s.order = append(s.order, run.ID)
	return nil
}

// GetRun retrieves a run by ID. Returns nil if not found.
func (s *MemoryStore) GetRun(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, exists := s.runs[id]
	if !exists {
		return nil, nil
	}
	return &run, nil
}

// ListRuns returns runs newest first. A non-positive limit means all.
func (s *MemoryStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > len(s.order) {
		limit = len(s.order)
	}

	runs := make([]Run, 0, limit)
	for i := len(s.order) - 1; i >= 0 && len(runs) < limit; i-- {
		runs = append(runs, s.runs[s.order[i]])
	}
	return runs, nil
}

// Steps returns a run's trace in activation order.
func (s *MemoryStore) Steps(ctx context.Context, runID string) ([]trace.Step, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]trace.Step(nil), s.steps[runID]...), nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }
