// Package schedule picks which node activates next. Selection is uniform
// over the chain and memoryless: the same node may be picked arbitrarily
// often, and nothing is guaranteed beyond uniformity in expectation.
package schedule

import "math/rand"

// Source yields random integers in [0, n). *math/rand.Rand satisfies it;
// tests substitute scripted sources for deterministic activation orders.
type Source interface {
	Intn(n int) int
}

// Scheduler draws uniformly random node indices for a chain of fixed size.
type Scheduler struct {
	size int
	src  Source
}

// New returns a scheduler over [0, size) drawing from src.
func New(size int, src Source) *Scheduler {
	return &Scheduler{size: size, src: src}
}

// NewSeeded returns a scheduler backed by a math/rand source with the given
// seed. Runs with the same seed replay the same activation order.
func NewSeeded(size int, seed int64) *Scheduler {
	return New(size, rand.New(rand.NewSource(seed)))
}

// Pick returns the next node index to activate.
func (s *Scheduler) Pick() int {
	return s.src.Intn(s.size)
}

// Size returns the selection range.
func (s *Scheduler) Size() int { return s.size }
