package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/stabsim/stabsim/internal/constants"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
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

			runs, err := s.ListRuns(cmd.Context(), limit)
			if err != nil {
				return fmt.Errorf("failed to list runs: %w", err)
			}

			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(runs)
			}

			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded yet. Run 'stabsim run' first.")
				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Recorded runs (%d):\n\n", len(runs))
			fmt.Fprintf(cmd.OutOrStdout(), "%-36s  %-20s  %5s  %6s  %-9s  %s\n",
				"ID", "STARTED", "SIZE", "FAULTS", "CONVERGED", "STEPS")
			for _, r := range runs {
				converged := "no"
				if r.Converged {
					converged = "yes"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-36s  %-20s  %5d  %6d  %-9s  %d\n",
					r.ID, r.StartedAt.Format("2006-01-02 15:04:05"), r.Size, r.Faults, converged, r.Steps)
			}
			return nil
		},
	}

	cmd.Flags().Int("limit", constants.DefaultHistoryLimit, "Maximum runs to list (0 lists all)")

	return cmd
}
