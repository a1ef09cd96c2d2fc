package simulation

import (
	"github.com/stabsim/stabsim/internal/chain"
)

// Scenario defines a complete stabilization experiment.
type Scenario struct {
	Name string

	// Size is the number of nodes in the chain. Required.
	Size int

	// Corruptions lists node indices whose primary is flipped before the
	// run starts. Use this for precise fault placement.
	Corruptions []int

	// RandomFaults injects that many scheduler-selected corruptions on top
	// of Corruptions. Repeated hits on the same node cancel out.
	RandomFaults int

	// Seed drives fault selection and activation order. The same seed
	// replays the same run exactly.
	Seed int64

	// MaxSteps caps rule applications; 0 means the package default.
	MaxSteps int

	// Margin overrides the leader promotion margin; 0 means the protocol
	// default.
	Margin int

	// Script, when non-nil, pins the activation order and bypasses the
	// seeded scheduler. Once the script is exhausted the final pick
	// repeats. Use this for scenarios that need deterministic step control.
	Script []int

	// BeforeRun, when non-nil, is called with the chain after fault
	// injection and before the first activation. Use this to shape
	// secondary priorities for leadership scenarios.
	BeforeRun func(c *chain.Chain)
}
