package simulation_test

import (
	"testing"

	"github.com/stabsim/stabsim/internal/converge"
	"github.com/stabsim/stabsim/internal/simulation"
)

// TestScriptedFaultStaysLocal validates spatial containment in the best
// case: when the corrupted node itself is activated first, the repair is a
// single flip and no other node ever changes its primary.
func TestScriptedFaultStaysLocal(t *testing.T) {
	r := simulation.NewRunner(t)

	result := r.Run(simulation.Scenario{
		Name:        "scripted-fault-local",
		Size:        5,
		Corruptions: []int{2},
		Script:      []int{2},
	})

	simulation.AssertConverged(t, result)
	simulation.AssertFlipsWithin(t, result, 2)

	if got := simulation.NodesFlipped(result); len(got) != 1 || got[0] != 2 {
		t.Errorf("expected only node 2 to flip, got %v", got)
	}
}

// TestBoundariesNeverMultiply validates the structural containment
// invariant across randomized runs: activations resolve or shift
// disagreement boundaries but never split a region in two, so the boundary
// count is non-increasing from the faulted initial state down to zero.
//
// Setup: 12 nodes, 3 random faults, several seeds.
// Expected: every run converges, the replayed trace matches the observed
// final state, and no intermediate state has more boundaries than its
// predecessor.
func TestBoundariesNeverMultiply(t *testing.T) {
	for _, seed := range simulation.Seeds(100, 8) {
		r := simulation.NewRunner(t)

		result := r.Run(simulation.Scenario{
			Name:         "boundaries-never-multiply",
			Size:         12,
			RandomFaults: 3,
			Seed:         seed,
		})

		simulation.AssertConverged(t, result)
		simulation.AssertTraceReplaysToFinal(t, result)
		simulation.AssertBoundariesNonIncreasing(t, result)
		simulation.AssertSecondariesMonotonic(t, result)

		// Spot-check the replay against the raw boundary trajectory.
		snapshots := simulation.ReplaySnapshots(result)
		first := converge.CountBoundaries(snapshots[0])
		last := converge.CountBoundaries(snapshots[len(snapshots)-1])
		if last != 0 {
			t.Errorf("seed %d: converged run replays to %d boundaries", seed, last)
		}
		if first < last {
			t.Errorf("seed %d: boundary count grew from %d to %d", seed, first, last)
		}
	}
}
