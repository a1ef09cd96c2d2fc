// Package report renders human-readable summaries of stabilization runs and
// sweeps. Output is deterministic for a given input so reports can be golden
// tested and diffed across runs.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/stabsim/stabsim/internal/chain"
	"github.com/stabsim/stabsim/internal/store"
	"github.com/stabsim/stabsim/internal/trace"
)

const rule = "------------------------------------------------------------"

// Compact renders a primary snapshot as a digit string, e.g. "0110".
func Compact(values []chain.Value) string {
	var b strings.Builder
	b.Grow(len(values))
	for _, v := range values {
		b.WriteString(v.String())
	}
	return b.String()
}

// FormatSnapshot renders a primary snapshot with spaces, e.g. "0 1 1 0".
func FormatSnapshot(values []chain.Value) string {
	return spaced(Compact(values))
}

// spaced inserts a space between the characters of a compact snapshot.
func spaced(compact string) string {
	parts := make([]string, len(compact))
	for i, c := range compact {
		parts[i] = string(c)
	}
	return strings.Join(parts, " ")
}

// countBoundaries counts adjacent disagreements in a compact snapshot.
// Reports work from persisted snapshot strings, so this operates on the
// string form directly rather than rebuilding a chain.
func countBoundaries(compact string) int {
	n := 0
	for i := 0; i+1 < len(compact); i++ {
		if compact[i] != compact[i+1] {
			n++
		}
	}
	return n
}

// WriteRun writes a single-run report.
func WriteRun(w io.Writer, run store.Run, stats trace.Stats) error {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s\n", run.ID)
	fmt.Fprintln(&b, rule)

	kv(&b, "size", run.Size)
	kv(&b, "seed", run.Seed)
	kv(&b, "margin", run.Margin)
	kv(&b, "budget", run.MaxSteps)
	kv(&b, "faults", run.Faults)
	fmt.Fprintln(&b)

	kv(&b, "initial", spaced(run.Initial))
	kv(&b, "final", spaced(run.Final))
	kv(&b, "boundaries", fmt.Sprintf("%d -> %d", countBoundaries(run.Initial), countBoundaries(run.Final)))
	fmt.Fprintln(&b)

	kv(&b, "converged", yesNo(run.Converged))
	kv(&b, "steps", run.Steps)
	kv(&b, "flips", stats.Flips)
	kv(&b, "promotions", stats.LeaderPromotions)
	kv(&b, "increments", stats.FollowerIncrements)
	kv(&b, "no-ops", stats.NoOps)
	kv(&b, "elapsed", run.Elapsed)

	_, err := io.WriteString(w, b.String())
	return err
}

// SweepParams describes the configuration a sweep ran under.
type SweepParams struct {
	Size   int
	Faults int
	Margin int
	Budget int
}

// SweepResult holds the outcome of one sweep trial.
type SweepResult struct {
	Seed      int64
	Converged bool
	Steps     int
}

// WriteSweep writes a sweep report: per-trial outcomes plus aggregate
// convergence statistics. Step statistics cover converged trials only;
// unconverged trials merely spent their whole budget.
func WriteSweep(w io.Writer, p SweepParams, results []SweepResult) error {
	var b strings.Builder
	fmt.Fprintln(&b, "sweep")
	fmt.Fprintln(&b, rule)

	kv(&b, "size", p.Size)
	kv(&b, "faults", p.Faults)
	kv(&b, "margin", p.Margin)
	kv(&b, "budget", p.Budget)
	kv(&b, "trials", len(results))
	fmt.Fprintln(&b)

	fmt.Fprintf(&b, "%-6s %-11s %-10s %s\n", "trial", "seed", "converged", "steps")
	for i, r := range results {
		fmt.Fprintf(&b, "%-6d %-11d %-10s %d\n", i+1, r.Seed, yesNo(r.Converged), r.Steps)
	}
	fmt.Fprintln(&b)

	converged := 0
	minSteps, maxSteps, sumSteps := 0, 0, 0
	for _, r := range results {
		if !r.Converged {
			continue
		}
		if converged == 0 || r.Steps < minSteps {
			minSteps = r.Steps
		}
		if r.Steps > maxSteps {
			maxSteps = r.Steps
		}
		sumSteps += r.Steps
		converged++
	}

	pct := 0.0
	if len(results) > 0 {
		pct = float64(converged) / float64(len(results)) * 100
	}
	fmt.Fprintf(&b, "%-11s %d/%d (%.1f%%)\n", "converged", converged, len(results), pct)
	if converged > 0 {
		mean := float64(sumSteps) / float64(converged)
		fmt.Fprintf(&b, "%-11s min %d  mean %.1f  max %d\n", "steps", minSteps, mean, maxSteps)
	} else {
		fmt.Fprintf(&b, "%-11s n/a\n", "steps")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func kv(b *strings.Builder, key string, value any) {
	fmt.Fprintf(b, "%-11s %v\n", key, value)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
