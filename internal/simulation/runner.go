package simulation

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/stabsim/stabsim/internal/chain"
	"github.com/stabsim/stabsim/internal/constants"
	"github.com/stabsim/stabsim/internal/driver"
	"github.com/stabsim/stabsim/internal/fault"
	"github.com/stabsim/stabsim/internal/report"
	"github.com/stabsim/stabsim/internal/rules"
	"github.com/stabsim/stabsim/internal/schedule"
	"github.com/stabsim/stabsim/internal/store"
	"github.com/stabsim/stabsim/internal/trace"
)

// Runner orchestrates stabilization experiments against a real rule engine,
// driver, and run store.
type Runner struct {
	t     *testing.T
	store *store.SQLiteStore
}

// RunResult captures everything observed during a scenario run.
type RunResult struct {
	RunID     string
	Scenario  Scenario
	Converged bool
	Steps     int
	Elapsed   time.Duration

	// Initial and Final are primary snapshots taken after fault injection
	// and after the last activation.
	Initial []chain.Value
	Final   []chain.Value

	// Secondaries holds the final secondary priorities.
	Secondaries []int

	Trace []trace.Step
	Stats trace.Stats

	Chain *chain.Chain
	Store *store.SQLiteStore
}

// NewRunner creates a simulation runner with an isolated SQLite run store
// and sandboxed HOME directory.
func NewRunner(t *testing.T) *Runner {
	t.Helper()
	tmpDir := t.TempDir()
	t.Setenv("HOME", tmpDir)

	s, err := store.Open(filepath.Join(tmpDir, constants.DataDirName))
	if err != nil {
		t.Fatalf("NewRunner: failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return &Runner{t: t, store: s}
}

// Run executes the scenario and returns the collected results. The run is
// persisted to the runner's store under a fresh ID, the same way the CLI
// records runs.
func (r *Runner) Run(scenario Scenario) RunResult {
	r.t.Helper()
	ctx := context.Background()

	// Phase 1: Build the chain and inject faults.
	c, err := chain.New(scenario.Size)
	if err != nil {
		r.t.Fatalf("scenario %q: chain.New(%d): %v", scenario.Name, scenario.Size, err)
	}
	sched := schedule.NewSeeded(scenario.Size, scenario.Seed)
	r.injectFaults(scenario, c, sched)

	if scenario.BeforeRun != nil {
		scenario.BeforeRun(c)
	}
	initial := c.Snapshot()

	// Phase 2: Configure the engine and driver.
	rulesCfg := rules.DefaultConfig()
	if scenario.Margin > 0 {
		rulesCfg.Margin = scenario.Margin
	}
	engine := rules.NewEngine(c, rulesCfg)

	drvSched := sched
	if scenario.Script != nil {
		drvSched = schedule.New(scenario.Size, &scriptSource{picks: scenario.Script})
	}

	rec := trace.NewRecorder()
	d := driver.New(c, drvSched, engine, driver.Config{
		MaxSteps: scenario.MaxSteps,
		OnStep:   rec.Observe,
	})

	// Phase 3: Run to convergence or budget exhaustion.
	res, err := d.Run(ctx)
	if err != nil {
		r.t.Fatalf("scenario %q: driver run: %v", scenario.Name, err)
	}
	final := c.Snapshot()

	// Phase 4: Persist the run record.
	budget := scenario.MaxSteps
	if budget <= 0 {
		budget = constants.DefaultMaxSteps
	}
	run := store.Run{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Size:      scenario.Size,
		Seed:      scenario.Seed,
		Margin:    rulesCfg.Margin,
		MaxSteps:  budget,
		Faults:    len(scenario.Corruptions) + scenario.RandomFaults,
		Converged: res.Converged,
		Steps:     res.Steps,
		Elapsed:   res.Elapsed,
		Initial:   report.Compact(initial),
		Final:     report.Compact(final),
	}
	if err := r.store.SaveRun(ctx, run, rec.Steps()); err != nil {
		r.t.Fatalf("scenario %q: SaveRun: %v", scenario.Name, err)
	}

	return RunResult{
		RunID:       run.ID,
		Scenario:    scenario,
		Converged:   res.Converged,
		Steps:       res.Steps,
		Elapsed:     res.Elapsed,
		Initial:     initial,
		Final:       final,
		Secondaries: c.Secondaries(),
		Trace:       rec.Steps(),
		Stats:       trace.Summarize(rec.Steps()),
		Chain:       c,
		Store:       r.store,
	}
}

// injectFaults applies the scenario's explicit corruptions, then the
// scheduler-selected random ones.
func (r *Runner) injectFaults(scenario Scenario, c *chain.Chain, sched *schedule.Scheduler) {
	r.t.Helper()

	inj := fault.New(c, sched)
	for _, i := range scenario.Corruptions {
		if _, err := inj.InjectAt(i); err != nil {
			r.t.Fatalf("scenario %q: InjectAt(%d): %v", scenario.Name, i, err)
		}
	}
	for j := 0; j < scenario.RandomFaults; j++ {
		if _, _, err := inj.Inject(); err != nil {
			r.t.Fatalf("scenario %q: Inject: %v", scenario.Name, err)
		}
	}
}

// FormatRunDebug returns a debug string for a run result.
func FormatRunDebug(res RunResult) string {
	s := fmt.Sprintf("Run %s: converged=%v steps=%d initial=%s final=%s\n",
		res.Scenario.Name, res.Converged, res.Steps,
		report.Compact(res.Initial), report.Compact(res.Final))
	s += fmt.Sprintf("  flips=%d promotions=%d increments=%d no-ops=%d\n",
		res.Stats.Flips, res.Stats.LeaderPromotions, res.Stats.FollowerIncrements, res.Stats.NoOps)
	return s
}
