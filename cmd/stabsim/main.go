package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/stabsim/stabsim/internal/config"
	"github.com/stabsim/stabsim/internal/store"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "stabsim",
		Short: "Self-stabilization simulator for chains of binary nodes",
		Long: `stabsim simulates a self-stabilizing protocol on a chain of nodes
holding binary primary values.

Transient faults corrupt individual primaries; randomized activations then
apply local repair rules until every node agrees with node 0 again. Runs
are recorded step by step so convergence behavior can be inspected,
replayed, and exported.`,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default ~/.stabsim/config.yaml)")
	rootCmd.PersistentFlags().String("data-dir", "", "Data directory (default ~/.stabsim)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: info, debug, trace")

	// Add subcommands
	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newSweepCmd(),
		newHistoryCmd(),
		newShowCmd(),
		newExportCmd(),
		newConfigCmd(),
		newValidateCmd(),
		newBackupCmd(),
		newRestoreCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// signalContext returns a context cancelled on the first interrupt or
// terminate signal, so a long run stops at a step boundary instead of dying
// mid-write.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	ch := make(chan os.Signal, 1)
	notifySignals(ch)
	go func() {
		select {
		case <-ch:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(ch)
	}()
	return ctx, cancel
}

// loadConfig resolves the effective configuration for a command: the config
// file (explicit or default), then environment overrides, then global flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	var cfg *config.Config
	var err error
	if path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if dataDir, _ := cmd.Flags().GetString("data-dir"); dataDir != "" {
		cfg.Store.Dir = dataDir
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if cfg.Store.Dir == "" {
		cfg.Store.Dir, err = config.DefaultDataDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve data directory: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// openStore opens the run store in the configured data directory.
func openStore(cfg *config.Config) (*store.SQLiteStore, error) {
	s, err := store.Open(cfg.Store.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return s, nil
}

// resolveRunID expands a run ID prefix to the full recorded ID. An exact
// match wins; otherwise a unique prefix match is accepted.
func resolveRunID(cmd *cobra.Command, s *store.SQLiteStore, id string) (string, error) {
	ctx := cmd.Context()

	run, err := s.GetRun(ctx, id)
	if err != nil {
		return "", fmt.Errorf("failed to look up run: %w", err)
	}
	if run != nil {
		return run.ID, nil
	}

	runs, err := s.ListRuns(ctx, 0)
	if err != nil {
		return "", fmt.Errorf("failed to list runs: %w", err)
	}
	var matches []string
	for _, r := range runs {
		if strings.HasPrefix(r.ID, id) {
			matches = append(matches, r.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("run not found: %s", id)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("run ID prefix %q is ambiguous (%d matches)", id, len(matches))
	}
}
