// Package simulation provides a scenario test harness for validating
// stabilization dynamics of the rule engine.
//
// The simulation exercises the real Engine, Driver, fault Injector, and
// SQLiteStore, no mocks. Scenarios are plain structs describing a chain
// size, fault placement, and scheduling, either seeded random or scripted
// step by step. The runner records a full activation trace and persists the
// run record the same way the CLI does, so store round-trips are covered by
// every scenario.
//
// Each test gets an isolated SQLite database via t.TempDir() and a sandboxed
// HOME to prevent touching user data.
//
// Usage:
//
//	func TestMiddleFaultRecovers(t *testing.T) {
//	    r := simulation.NewRunner(t)
//	    result := r.Run(simulation.Scenario{
//	        Name:        "middle-fault",
//	        Size:        5,
//	        Corruptions: []int{2},
//	        Seed:        42,
//	    })
//	    simulation.AssertConverged(t, result)
//	    simulation.AssertLegal(t, result)
//	}
package simulation
