package simulation

import (
	"context"
	"sort"
	"testing"

	"github.com/stabsim/stabsim/internal/chain"
	"github.com/stabsim/stabsim/internal/converge"
	"github.com/stabsim/stabsim/internal/report"
)

// AssertConverged asserts that the run reached a legal configuration within
// its step budget.
func AssertConverged(t *testing.T, result RunResult) {
	t.Helper()
	if !result.Converged {
		t.Errorf("AssertConverged: run %q did not converge after %d steps (final %s)",
			result.Scenario.Name, result.Steps, report.Compact(result.Final))
	}
}

// AssertNotConverged asserts that the run exhausted its budget without
// reaching a legal configuration.
func AssertNotConverged(t *testing.T, result RunResult) {
	t.Helper()
	if result.Converged {
		t.Errorf("AssertNotConverged: run %q converged in %d steps", result.Scenario.Name, result.Steps)
	}
}

// AssertLegal asserts that the final configuration has no boundaries: every
// primary agrees with node 0's.
func AssertLegal(t *testing.T, result RunResult) {
	t.Helper()
	if n := converge.CountBoundaries(result.Final); n != 0 {
		t.Errorf("AssertLegal: final %s has %d boundaries", report.Compact(result.Final), n)
	}
}

// AssertFinal asserts that the final primaries match the given compact
// snapshot, e.g. "0110".
func AssertFinal(t *testing.T, result RunResult, want string) {
	t.Helper()
	if got := report.Compact(result.Final); got != want {
		t.Errorf("AssertFinal: final %s, want %s", got, want)
	}
}

// AssertSteps asserts the exact number of activations consumed.
func AssertSteps(t *testing.T, result RunResult, want int) {
	t.Helper()
	if result.Steps != want {
		t.Errorf("AssertSteps: run %q took %d steps, want %d", result.Scenario.Name, result.Steps, want)
	}
}

// AssertStepsAtMost asserts that the run finished within max activations.
func AssertStepsAtMost(t *testing.T, result RunResult, max int) {
	t.Helper()
	if result.Steps > max {
		t.Errorf("AssertStepsAtMost: run %q took %d steps, want at most %d", result.Scenario.Name, result.Steps, max)
	}
}

// AssertSecondariesMonotonic asserts that no activation lowered a secondary
// priority, and that each node's secondary carries over intact between its
// activations.
func AssertSecondariesMonotonic(t *testing.T, result RunResult) {
	t.Helper()
	lastSeen := make(map[int]int)
	for _, s := range result.Trace {
		if s.SecondaryAfter < s.SecondaryBefore {
			t.Errorf("AssertSecondariesMonotonic: step %d: node %d secondary %d -> %d decreased",
				s.Step, s.Node, s.SecondaryBefore, s.SecondaryAfter)
		}
		if prev, ok := lastSeen[s.Node]; ok && s.SecondaryBefore != prev {
			t.Errorf("AssertSecondariesMonotonic: step %d: node %d secondary before=%d, last observed=%d",
				s.Step, s.Node, s.SecondaryBefore, prev)
		}
		lastSeen[s.Node] = s.SecondaryAfter
	}
}

// AssertBoundariesNonIncreasing asserts that no activation created a new
// boundary. Flips resolve or shift boundaries; they never split a region.
func AssertBoundariesNonIncreasing(t *testing.T, result RunResult) {
	t.Helper()
	snapshots := ReplaySnapshots(result)
	prev := converge.CountBoundaries(snapshots[0])
	for i := 1; i < len(snapshots); i++ {
		cur := converge.CountBoundaries(snapshots[i])
		if cur > prev {
			t.Errorf("AssertBoundariesNonIncreasing: step %d: boundaries grew %d -> %d (state %s)",
				result.Trace[i-1].Step, prev, cur, report.Compact(snapshots[i]))
		}
		prev = cur
	}
}

// AssertTraceReplaysToFinal asserts that the recorded trace is a faithful
// account of the run: each step's before-value matches the replayed state,
// and replaying every flip over the initial snapshot reproduces the final
// one.
func AssertTraceReplaysToFinal(t *testing.T, result RunResult) {
	t.Helper()
	state := append([]chain.Value(nil), result.Initial...)
	for _, s := range result.Trace {
		if got := uint8(state[s.Node]); got != s.PrimaryBefore {
			t.Errorf("AssertTraceReplaysToFinal: step %d: node %d primary before=%d, replayed state has %d",
				s.Step, s.Node, s.PrimaryBefore, got)
		}
		state[s.Node] = chain.Value(s.PrimaryAfter)
	}
	if got, want := report.Compact(state), report.Compact(result.Final); got != want {
		t.Errorf("AssertTraceReplaysToFinal: replayed final %s, want %s", got, want)
	}
}

// AssertEndpointsNeverMixed asserts that no activation classified an
// endpoint as mixed. With a single neighbor the cases are agree or disagree;
// a mixed endpoint would mean the engine consulted a neighbor that does not
// exist.
func AssertEndpointsNeverMixed(t *testing.T, result RunResult) {
	t.Helper()
	last := result.Scenario.Size - 1
	for _, s := range result.Trace {
		if (s.Node == 0 || s.Node == last) && s.Case == "mixed" {
			t.Errorf("AssertEndpointsNeverMixed: step %d: endpoint %d classified as mixed", s.Step, s.Node)
		}
	}
}

// AssertFlipsWithin asserts that only the given nodes ever flipped their
// primary during the run.
func AssertFlipsWithin(t *testing.T, result RunResult, nodes ...int) {
	t.Helper()
	allowed := make(map[int]bool, len(nodes))
	for _, n := range nodes {
		allowed[n] = true
	}
	for _, s := range result.Trace {
		if s.Flipped && !allowed[s.Node] {
			t.Errorf("AssertFlipsWithin: step %d: node %d flipped outside allowed set %v", s.Step, s.Node, nodes)
		}
	}
}

// AssertRunPersisted asserts that the run record and its steps landed in the
// runner's store exactly as observed.
func AssertRunPersisted(t *testing.T, result RunResult) {
	t.Helper()
	ctx := context.Background()

	run, err := result.Store.GetRun(ctx, result.RunID)
	if err != nil {
		t.Fatalf("AssertRunPersisted: GetRun(%s): %v", result.RunID, err)
	}
	if run == nil {
		t.Fatalf("AssertRunPersisted: run %s not found in store", result.RunID)
	}
	if run.Converged != result.Converged {
		t.Errorf("AssertRunPersisted: stored converged=%v, want %v", run.Converged, result.Converged)
	}
	if run.Steps != result.Steps {
		t.Errorf("AssertRunPersisted: stored steps=%d, want %d", run.Steps, result.Steps)
	}
	if want := report.Compact(result.Final); run.Final != want {
		t.Errorf("AssertRunPersisted: stored final=%s, want %s", run.Final, want)
	}

	steps, err := result.Store.Steps(ctx, result.RunID)
	if err != nil {
		t.Fatalf("AssertRunPersisted: Steps(%s): %v", result.RunID, err)
	}
	if len(steps) != len(result.Trace) {
		t.Errorf("AssertRunPersisted: stored %d steps, want %d", len(steps), len(result.Trace))
	}
}

// ReplaySnapshots reconstructs the primary configuration after every
// activation by applying the trace over the initial snapshot. The returned
// slice has one entry per trace step plus the initial state at index 0.
func ReplaySnapshots(result RunResult) [][]chain.Value {
	snapshots := make([][]chain.Value, 0, len(result.Trace)+1)
	state := append([]chain.Value(nil), result.Initial...)
	snapshots = append(snapshots, append([]chain.Value(nil), state...))
	for _, s := range result.Trace {
		state[s.Node] = chain.Value(s.PrimaryAfter)
		snapshots = append(snapshots, append([]chain.Value(nil), state...))
	}
	return snapshots
}

// NodesFlipped returns the sorted distinct indices of nodes that flipped at
// least once during the run.
func NodesFlipped(result RunResult) []int {
	seen := make(map[int]bool)
	for _, s := range result.Trace {
		if s.Flipped {
			seen[s.Node] = true
		}
	}
	out := make([]int, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// MaxSecondary returns the highest final secondary priority in the chain.
func MaxSecondary(result RunResult) int {
	max := 0
	for _, v := range result.Secondaries {
		if v > max {
			max = v
		}
	}
	return max
}
