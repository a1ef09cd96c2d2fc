package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
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
	"github.com/stabsim/stabsim/internal/store"
	"github.com/stabsim/stabsim/internal/trace"
)

// newRunCmd creates the 'run' command.
// It corrupts a fresh chain, drives randomized activations until the
// configuration is legal again or the budget runs out, and records the run.
func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one stabilization experiment",
		Long: `Builds a chain, injects faults, and applies repair rules under uniform
random scheduling until every primary agrees with node 0 or the step
budget is exhausted.

The full activation trace is saved to the run store so it can be shown
and exported later.

With --interactive the command prompts for parameters not given as
flags, prints the chain after each injected fault, and waits for Enter
before stabilization starts.

Examples:
  stabsim run --size 16
  stabsim run --size 8 --corrupt 3 --corrupt 4 --seed 42
  stabsim run --faults 3 --max-steps 50000 --json
  stabsim run --interactive`,
		RunE: runRun,
	}

	cmd.Flags().Int("size", constants.DefaultChainSize, "Number of nodes in the chain")
	cmd.Flags().IntSlice("corrupt", nil, "Node index to corrupt (repeatable)")
	cmd.Flags().Int("faults", 1, "Number of random faults to inject (default skipped when --corrupt is given)")
	cmd.Flags().Int64("seed", 0, "Seed for fault placement and scheduling (0 picks a time-based seed)")
	cmd.Flags().Int("max-steps", config.Default().Run.MaxSteps, "Step budget before giving up")
	cmd.Flags().Int("margin", config.Default().Protocol.Margin, "Secondary priority margin for promoted leaders")
	cmd.Flags().Bool("no-save", false, "Skip recording the run")
	cmd.Flags().Bool("interactive", false, "Prompt for unset parameters and pause before stabilizing")

	return cmd
}

// runRun executes the run command logic.
func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	size, _ := cmd.Flags().GetInt("size")
	corrupt, _ := cmd.Flags().GetIntSlice("corrupt")
	faults, _ := cmd.Flags().GetInt("faults")
	seed, _ := cmd.Flags().GetInt64("seed")
	maxSteps, _ := cmd.Flags().GetInt("max-steps")
	margin, _ := cmd.Flags().GetInt("margin")
	noSave, _ := cmd.Flags().GetBool("no-save")
	interactive, _ := cmd.Flags().GetBool("interactive")
	jsonOut, _ := cmd.Flags().GetBool("json")

	// Flags beat the config file only when actually set.
	if !cmd.Flags().Changed("max-steps") {
		maxSteps = cfg.Run.MaxSteps
	}
	if !cmd.Flags().Changed("margin") {
		margin = cfg.Protocol.Margin
	}
	// Explicit corruption replaces the default single random fault.
	if !cmd.Flags().Changed("faults") && len(corrupt) > 0 {
		faults = 0
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	out := cmd.OutOrStdout()
	var prompt *bufio.Reader
	if interactive {
		prompt = bufio.NewReader(cmd.InOrStdin())
		if !cmd.Flags().Changed("size") {
			if size, err = promptInt(out, prompt, "Chain size", size); err != nil {
				return err
			}
		}
		if !cmd.Flags().Changed("faults") && len(corrupt) == 0 {
			if faults, err = promptInt(out, prompt, "Random faults", faults); err != nil {
				return err
			}
		}
	}

	logger := logging.NewLogger(cfg.Logging.Level, os.Stderr)
	activations := logging.NewActivationLogger(cfg.Store.Dir, cfg.Logging.Level)
	defer activations.Close()

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	// Build the chain and inject faults.
	c, err := chain.New(size)
	if err != nil {
		return fmt.Errorf("invalid chain size: %w", err)
	}
	sched := schedule.NewSeeded(size, seed)
	inj := fault.New(c, sched)
	for _, i := range corrupt {
		v, err := inj.InjectAt(i)
		if err != nil {
			return err
		}
		logger.Debug("fault injected", "node", i, "primary", v.String())
		if interactive {
			fmt.Fprintf(out, "fault at node %d: %s\n", i, report.FormatSnapshot(c.Snapshot()))
		}
	}
	for j := 0; j < faults; j++ {
		i, v, err := inj.Inject()
		if err != nil {
			return err
		}
		logger.Debug("fault injected", "node", i, "primary", v.String())
		if interactive {
			fmt.Fprintf(out, "fault at node %d: %s\n", i, report.FormatSnapshot(c.Snapshot()))
		}
	}
	initial := c.Snapshot()

	if interactive {
		fmt.Fprint(out, "Press Enter to stabilize: ")
		_, _ = prompt.ReadString('\n')
	}

	runID := uuid.NewString()
	startedAt := time.Now().UTC()
	logger.Info("run starting",
		"run_id", runID, "size", size, "seed", seed,
		"faults", len(corrupt)+faults, "initial", report.Compact(initial))

	engine := rules.NewEngine(c, rules.Config{Margin: margin})
	rec := trace.NewRecorder()
	onStep := func(step int, out rules.Outcome) {
		rec.Observe(step, out)
		activations.Log(map[string]any{
			"event":   "activation",
			"run_id":  runID,
			"step":    step,
			"node":    out.Node,
			"case":    out.Case.String(),
			"flipped": out.Flipped,
			"leader":  out.Leader,
		})
		logger.Log(ctx, logging.LevelTrace, "chain state",
			"step", step, "snapshot", report.Compact(c.Snapshot()))
	}

	d := driver.New(c, sched, engine, driver.Config{MaxSteps: maxSteps, OnStep: onStep})
	res, runErr := d.Run(ctx)
	if runErr != nil {
		logger.Warn("run interrupted", "run_id", runID, "steps", res.Steps)
	}

	run := store.Run{
		ID:        runID,
		StartedAt: startedAt,
		Size:      size,
		Seed:      seed,
		Margin:    margin,
		MaxSteps:  maxSteps,
		Faults:    len(corrupt) + faults,
		Converged: res.Converged,
		Steps:     res.Steps,
		Elapsed:   res.Elapsed,
		Initial:   report.Compact(initial),
		Final:     report.Compact(c.Snapshot()),
	}
	stats := trace.Summarize(rec.Steps())

	if !noSave {
		s, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer s.Close()
		// Persist even when the run was cancelled, so partial traces are
		// inspectable. The run context is already dead at this point.
		if err := s.SaveRun(context.Background(), run, rec.Steps()); err != nil {
			return fmt.Errorf("failed to record run: %w", err)
		}
	}

	if jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(map[string]any{"run": run, "stats": stats}); err != nil {
			return err
		}
	} else {
		if err := report.WriteRun(out, run, stats); err != nil {
			return err
		}
	}

	if runErr != nil {
		return fmt.Errorf("interrupted after %d steps: %w", res.Steps, runErr)
	}
	return nil
}

// promptInt asks for an integer on stdin, keeping def when the line is
// empty.
func promptInt(out io.Writer, in *bufio.Reader, label string, def int) (int, error) {
	fmt.Fprintf(out, "%s [%d]: ", label, def)
	line, _ := in.ReadString('\n')
	line = strings.TrimSpace(line)
	if line == "" {
		return def, nil
	}
	n, err := strconv.Atoi(line)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", strings.ToLower(label), line)
	}
	return n, nil
}
