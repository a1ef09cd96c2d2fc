// Package fault injects transient faults: instantaneous corruption of a
// single node's primary value. Injection is the only way a primary changes
// outside rule application, and it never touches secondary priorities.
package fault

import (
	"fmt"

	"github.com/stabsim/stabsim/internal/chain"
	"github.com/stabsim/stabsim/internal/schedule"
)

// Injector corrupts the primary of scheduler-selected or caller-chosen
// nodes. It is used before a stabilization run, never during one.
type Injector struct {
	chain *chain.Chain
	sched *schedule.Scheduler
}

// New returns an injector flipping primaries on c, selecting nodes via s.
func New(c *chain.Chain, s *schedule.Scheduler) *Injector {
	return &Injector{chain: c, sched: s}
}

// Inject corrupts a uniformly selected node and returns its index and new
// primary value.
func (in *Injector) Inject() (int, chain.Value, error) {
	i := in.sched.Pick()
	v, err := in.InjectAt(i)
	return i, v, err
}

// InjectAt corrupts the node at index i and returns its new primary value.
// Targeted injection is how scenarios set up specific corruption patterns.
func (in *Injector) InjectAt(i int) (chain.Value, error) {
	if err := in.chain.FlipPrimary(i); err != nil {
		return 0, fmt.Errorf("inject fault: %w", err)
	}
	n, err := in.chain.At(i)
	if err != nil {
		return 0, fmt.Errorf("inject fault: %w", err)
	}
	return n.Primary(), nil
}
