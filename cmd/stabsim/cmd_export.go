package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/stabsim/stabsim/internal/trace"
)

// newExportCmd creates the 'export' command.
// It re-serializes a recorded activation trace for external analysis.
func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <run-id>",
		Short: "Export a run's activation trace",
		Long: `Exports the stored activation trace of a run as CSV, JSONL, or an
Arrow IPC file. The run ID may be abbreviated to a unique prefix.

Examples:
  stabsim export 4f1c --format csv
  stabsim export 4f1c --format arrow --out trace.arrow`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatStr, _ := cmd.Flags().GetString("format")
			outPath, _ := cmd.Flags().GetString("out")

			format, err := trace.ParseFormat(formatStr)
			if err != nil {
				return err
			}

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
			steps, err := s.Steps(cmd.Context(), id)
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer f.Close()
				w = f
			}

			if err := trace.Write(w, format, steps); err != nil {
				return fmt.Errorf("failed to export trace: %w", err)
			}
			if outPath != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Exported %d steps of run %s to %s\n", len(steps), id, outPath)
			}
			return nil
		},
	}

	cmd.Flags().String("format", "csv", "Export format: csv, jsonl, arrow")
	cmd.Flags().String("out", "", "Output file (default stdout)")

	return cmd
}
