// Package driver runs the stabilization loop: pick a node, apply the rules,
// stop when the configuration is legal. The protocol guarantees termination
// only probabilistically, so every run carries a step budget and honors
// context cancellation; exhausting the budget is an observable outcome, not
// an error.
package driver

import (
	"context"
	"time"

	"github.com/stabsim/stabsim/internal/chain"
	"github.com/stabsim/stabsim/internal/constants"
	"github.com/stabsim/stabsim/internal/converge"
	"github.com/stabsim/stabsim/internal/rules"
	"github.com/stabsim/stabsim/internal/schedule"
)

// Config holds run parameters for the stabilization driver.
type Config struct {
	// MaxSteps caps the number of rule applications. Zero or negative means
	// the package default.
	MaxSteps int

	// OnStep, when non-nil, observes every rule application in order.
	// step is 1-based.
	OnStep func(step int, out rules.Outcome)
}

// DefaultConfig returns the default driver configuration.
func DefaultConfig() Config {
	return Config{MaxSteps: constants.DefaultMaxSteps}
}

// Result reports how a stabilization run ended.
type Result struct {
	// Converged is true when the run stopped on a legal configuration.
	Converged bool

	// Steps is the number of rule applications performed.
	Steps int

	// Elapsed is the wall-clock duration of the loop. Instrumentation only;
	// it has no effect on protocol behavior.
	Elapsed time.Duration
}

// Driver repeatedly activates scheduler-selected nodes until the chain
// reaches a legal configuration or the step budget runs out.
type Driver struct {
	chain  *chain.Chain
	sched  *schedule.Scheduler
	engine *rules.Engine
	cfg    Config
}

// New creates a driver over the given chain, scheduler, and rule engine.
func New(c *chain.Chain, s *schedule.Scheduler, e *rules.Engine, cfg Config) *Driver {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = constants.DefaultMaxSteps
	}
	return &Driver{chain: c, sched: s, engine: e, cfg: cfg}
}

// Run drives the loop until legality, budget exhaustion, or cancellation.
// Convergence is checked before every activation, so an already-legal chain
// returns immediately with zero steps. Cancellation surfaces as ctx.Err()
// with the steps performed so far.
func (d *Driver) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	steps := 0
	for steps < d.cfg.MaxSteps {
		if err := ctx.Err(); err != nil {
			return Result{Steps: steps, Elapsed: time.Since(start)}, err
		}
		if converge.Legal(d.chain) {
			return Result{Converged: true, Steps: steps, Elapsed: time.Since(start)}, nil
		}

		out, err := d.engine.Apply(d.sched.Pick())
		if err != nil {
			return Result{Steps: steps, Elapsed: time.Since(start)}, err
		}
		steps++
		if d.cfg.OnStep != nil {
			d.cfg.OnStep(steps, out)
		}
	}

	// Budget exhausted. Check once more so a run that converged on its
	// final application still reports success.
	return Result{
		Converged: converge.Legal(d.chain),
		Steps:     steps,
		Elapsed:   time.Since(start),
	}, nil
}
