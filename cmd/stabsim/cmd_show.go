package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/stabsim/stabsim/internal/report"
	"github.com/stabsim/stabsim/internal/trace"
)

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a recorded run",
		Long: `Shows the report for one recorded run, recomputed from its stored
activation trace. The run ID may be abbreviated to a unique prefix.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			s, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer s.Close()

			id, err := resolveRunID(cmd, s, args[0])
			if err != nil {
				return err
			}
			run, err := s.GetRun(cmd.Context(), id)
			if err != nil {
				return err
			}
			steps, err := s.Steps(cmd.Context(), id)
			if err != nil {
				return err
			}
			stats := trace.Summarize(steps)

			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{"run": run, "stats": stats})
			}
			return report.WriteRun(cmd.OutOrStdout(), *run, stats)
		},
	}
}
