package simulation_test

import (
	"testing"

	"github.com/stabsim/stabsim/internal/chain"
	"github.com/stabsim/stabsim/internal/simulation"
)

// TestBoundaryLeaderTieAdvancesBoundary validates leader arbitration at a
// fresh region boundary. Both sides sit at the baseline secondary, and ties
// lead, so the activated node wins, adopts its disagreeing neighbor's value,
// and jumps its secondary a full margin above the neighborhood.
//
// Setup: [0 0 1 1], node 1 activated once.
// Expected: node 1 flips to 1 with secondary 5+20=25; the boundary moves
// left and the run is deliberately stopped before resolution.
func TestBoundaryLeaderTieAdvancesBoundary(t *testing.T) {
	r := simulation.NewRunner(t)

	result := r.Run(simulation.Scenario{
		Name:        "boundary-leader-tie",
		Size:        4,
		Corruptions: []int{2, 3},
		Script:      []int{1},
		MaxSteps:    1,
	})

	simulation.AssertNotConverged(t, result)
	simulation.AssertSteps(t, result, 1)
	simulation.AssertFinal(t, result, "0111")

	step := result.Trace[0]
	if !step.Leader || !step.Flipped {
		t.Fatalf("expected a leader flip, got %+v", step)
	}
	if step.SecondaryBefore != 5 || step.SecondaryAfter != 25 {
		t.Errorf("expected promotion 5 -> 25, got %d -> %d", step.SecondaryBefore, step.SecondaryAfter)
	}
	if max := simulation.MaxSecondary(result); max != 25 {
		t.Errorf("expected max secondary 25, got %d", max)
	}
}

// TestWiderMarginRaisesPromotionCeiling validates that the configured margin
// controls how far a promoted leader lands above its neighborhood maximum.
func TestWiderMarginRaisesPromotionCeiling(t *testing.T) {
	r := simulation.NewRunner(t)

	result := r.Run(simulation.Scenario{
		Name:        "wide-margin-promotion",
		Size:        4,
		Corruptions: []int{2, 3},
		Script:      []int{1},
		MaxSteps:    1,
		Margin:      50,
	})

	simulation.AssertSteps(t, result, 1)
	if got := result.Trace[0].SecondaryAfter; got != 55 {
		t.Errorf("expected promotion to 5+50=55, got %d", got)
	}
}

// TestFollowerAccumulatesThenLeads validates the follower path: a node at a
// boundary whose neighbor outranks it cannot flip. It raises its own
// secondary one unit per activation until it matches the neighborhood
// maximum, then wins the tie and flips.
//
// Setup: [0 0 1 1] with node 2's secondary raised to 9 before the run, node
// 1 activated five times.
// Expected: four follower increments (5..9), then a leader flip landing at
// 9+20=29.
func TestFollowerAccumulatesThenLeads(t *testing.T) {
	r := simulation.NewRunner(t)

	result := r.Run(simulation.Scenario{
		Name:        "follower-accumulates",
		Size:        4,
		Corruptions: []int{2, 3},
		Script:      []int{1, 1, 1, 1, 1},
		MaxSteps:    5,
		BeforeRun: func(c *chain.Chain) {
			if err := c.SetSecondary(2, 9); err != nil {
				t.Fatalf("SetSecondary: %v", err)
			}
		},
	})

	simulation.AssertSteps(t, result, 5)
	simulation.AssertFinal(t, result, "0111")
	simulation.AssertSecondariesMonotonic(t, result)

	// Four increments before the tie, then the promotion.
	for i, want := range []int{6, 7, 8, 9} {
		step := result.Trace[i]
		if step.Flipped || step.SecondaryAfter != want {
			t.Errorf("step %d: expected follower increment to %d, got %+v", i+1, want, step)
		}
	}
	last := result.Trace[4]
	if !last.Leader || last.SecondaryAfter != 29 {
		t.Errorf("expected leader flip to secondary 29, got %+v", last)
	}
	if result.Stats.FollowerIncrements != 4 || result.Stats.LeaderPromotions != 1 {
		t.Errorf("unexpected stats %+v", result.Stats)
	}
}

// TestTwoRegionStandoffResolves validates that two agreeing regions facing
// each other across one boundary still converge under random scheduling:
// leader arbitration keeps exactly one side advancing until a single region
// remains.
func TestTwoRegionStandoffResolves(t *testing.T) {
	for _, seed := range simulation.Seeds(1, 5) {
		r := simulation.NewRunner(t)

		result := r.Run(simulation.Scenario{
			Name:        "two-region-standoff",
			Size:        8,
			Corruptions: []int{4, 5, 6, 7},
			Seed:        seed,
		})

		simulation.AssertConverged(t, result)
		simulation.AssertLegal(t, result)
		simulation.AssertSecondariesMonotonic(t, result)
	}
}
