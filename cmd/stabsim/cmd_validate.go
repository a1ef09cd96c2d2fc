package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the run store",
		Long: `Validates the run database for corruption and schema drift.

This command checks:
  - SQLite integrity (via PRAGMA integrity_check)
  - Foreign key consistency between runs and their steps
  - That the schema version matches this build`,
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

			if err := s.Validate(cmd.Context()); err != nil {
				if jsonOut {
					json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
						"status": "invalid",
						"path":   s.Path(),
						"error":  err.Error(),
					})
					return nil
				}
				return fmt.Errorf("store validation failed: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"status": "ok",
					"path":   s.Path(),
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Store OK: %s\n", s.Path())
			return nil
		},
	}
}
