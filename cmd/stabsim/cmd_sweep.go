package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/stabsim/stabsim/internal/chain"
	"github.com/stabsim/stabsim/internal/config"
	"github.com/stabsim/stabsim/internal/constants"
	"github.com/stabsim/stabsim/internal/driver"
	"github.com/stabsim/stabsim/internal/fault"
	"github.com/stabsim/stabsim/internal/logging"
	"github.com/stabsim/stabsim/internal/report"
	"github.com/stabsim/stabsim/internal/rules"
	"github.com/stabsim/stabsim/internal/schedule"
)

// sweepBlock pairs one chain size's parameters with its trial outcomes.
type sweepBlock struct {
	Params report.SweepParams   `json:"params"`
	Trials []report.SweepResult `json:"trials"`
}

// newSweepCmd creates the 'sweep' command.
// It repeats one experiment shape across sequential seeds, for one or more
// chain sizes, and summarizes how often and how fast the chain stabilized.
func newSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run repeated trials and summarize convergence",
		Long: `Runs the same fault scenario across sequential seeds and reports the
convergence rate plus step count spread. With multiple sizes, every
size gets its own block of trials over the same seeds.

Sweeps are exploratory and are not recorded in run history; use 'run'
with a chosen seed to capture an interesting trial.

Examples:
  stabsim sweep --sizes 16 --faults 2
  stabsim sweep --sizes 8,16,32 --trials 50 --seed 1000
  stabsim sweep --sizes 64 --max-steps 500000 --json`,
		RunE: runSweep,
	}

	cmd.Flags().IntSlice("sizes", []int{constants.DefaultChainSize}, "Chain sizes to sweep, comma separated")
	cmd.Flags().Int("faults", 1, "Number of random faults per trial")
	cmd.Flags().Int("trials", config.Default().Sweep.Trials, "Number of trials per size")
	cmd.Flags().Int64("seed", 0, "Base seed; trial n uses seed+n (0 picks a time-based seed)")
	cmd.Flags().Int("max-steps", config.Default().Run.MaxSteps, "Step budget per trial")
	cmd.Flags().Int("margin", config.Default().Protocol.Margin, "Secondary priority margin for promoted leaders")

	return cmd
}

// runSweep executes the sweep command logic.
func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	sizes, _ := cmd.Flags().GetIntSlice("sizes")
	faults, _ := cmd.Flags().GetInt("faults")
	trials, _ := cmd.Flags().GetInt("trials")
	seed, _ := cmd.Flags().GetInt64("seed")
	maxSteps, _ := cmd.Flags().GetInt("max-steps")
	margin, _ := cmd.Flags().GetInt("margin")
	jsonOut, _ := cmd.Flags().GetBool("json")

	if !cmd.Flags().Changed("trials") {
		trials = cfg.Sweep.Trials
	}
	if !cmd.Flags().Changed("max-steps") {
		maxSteps = cfg.Run.MaxSteps
	}
	if !cmd.Flags().Changed("margin") {
		margin = cfg.Protocol.Margin
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	logger := logging.NewLogger(cfg.Logging.Level, os.Stderr)
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	blocks := make([]sweepBlock, 0, len(sizes))
	completed := 0

sweep:
	for _, size := range sizes {
		params := report.SweepParams{Size: size, Faults: faults, Margin: margin, Budget: maxSteps}
		results := make([]report.SweepResult, 0, trials)

		for n := 0; n < trials; n++ {
			trialSeed := seed + int64(n)

			c, err := chain.New(size)
			if err != nil {
				return fmt.Errorf("invalid chain size: %w", err)
			}
			sched := schedule.NewSeeded(size, trialSeed)
			inj := fault.New(c, sched)
			for j := 0; j < faults; j++ {
				if _, _, err := inj.Inject(); err != nil {
					return err
				}
			}

			engine := rules.NewEngine(c, rules.Config{Margin: margin})
			d := driver.New(c, sched, engine, driver.Config{MaxSteps: maxSteps})
			res, err := d.Run(ctx)
			if err != nil {
				logger.Warn("sweep interrupted", "size", size, "completed_trials", completed)
				blocks = append(blocks, sweepBlock{Params: params, Trials: results})
				break sweep
			}

			logger.Debug("trial finished",
				"size", size, "trial", n, "seed", trialSeed, "converged", res.Converged, "steps", res.Steps)
			results = append(results, report.SweepResult{
				Seed:      trialSeed,
				Converged: res.Converged,
				Steps:     res.Steps,
			})
			completed++
		}

		blocks = append(blocks, sweepBlock{Params: params, Trials: results})
	}

	if jsonOut {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if err := enc.Encode(map[string]any{"sweeps": blocks}); err != nil {
			return err
		}
	} else {
		for i, blk := range blocks {
			if i > 0 {
				fmt.Fprintln(cmd.OutOrStdout())
			}
			if err := report.WriteSweep(cmd.OutOrStdout(), blk.Params, blk.Trials); err != nil {
				return err
			}
		}
	}

	if ctx.Err() != nil {
		return fmt.Errorf("interrupted after %d trials: %w", completed, ctx.Err())
	}
	return nil
}
