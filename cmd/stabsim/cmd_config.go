package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Long: `Shows the configuration after merging defaults, ~/.stabsim/config.yaml,
environment overrides (STABSIM_*), and global flags.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(cfg)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Configuration (~/.stabsim/config.yaml):")
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Protocol:")
			fmt.Fprintf(out, "  protocol.margin:   %d\n", cfg.Protocol.Margin)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Run:")
			fmt.Fprintf(out, "  run.max_steps:     %d\n", cfg.Run.MaxSteps)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Sweep:")
			fmt.Fprintf(out, "  sweep.trials:      %d\n", cfg.Sweep.Trials)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Store:")
			fmt.Fprintf(out, "  store.dir:         %s\n", cfg.Store.Dir)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Backup:")
			fmt.Fprintf(out, "  backup.retention.max_count:      %d\n", cfg.Backup.Retention.MaxCount)
			fmt.Fprintf(out, "  backup.retention.max_age:        %s\n", valueOrDefault(cfg.Backup.Retention.MaxAge, "(off)"))
			fmt.Fprintf(out, "  backup.retention.max_total_size: %s\n", valueOrDefault(cfg.Backup.Retention.MaxTotalSize, "(off)"))
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Logging:")
			fmt.Fprintf(out, "  logging.level:     %s\n", valueOrDefault(cfg.Logging.Level, "info"))
			return nil
		},
	}
}

// valueOrDefault returns fallback when value is empty.
func valueOrDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
