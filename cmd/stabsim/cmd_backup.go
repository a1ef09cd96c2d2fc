package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/stabsim/stabsim/internal/backup"
	"github.com/stabsim/stabsim/internal/config"
	"github.com/stabsim/stabsim/internal/constants"
)

func newBackupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Archive run history to a backup file",
		Long: `Archives every recorded run with its full activation trace into a
checksummed, compressed backup file.

Default location: <data-dir>/backups/stabsim-backup-YYYYMMDD-HHMMSS.backup
Backups in that directory are pruned per the configured retention policy
(default: keep the last 10).

Examples:
  stabsim backup
  stabsim backup --out /mnt/archive/runs.backup
  stabsim backup list
  stabsim backup verify <file>`,
		RunE: runBackup,
	}

	cmd.Flags().String("out", "", "Backup file path (default: timestamped file under <data-dir>/backups)")

	cmd.AddCommand(
		newBackupListCmd(),
		newBackupVerifyCmd(),
	)

	return cmd
}

func runBackup(cmd *cobra.Command, args []string) error {
	outPath, _ := cmd.Flags().GetString("out")
	jsonOut, _ := cmd.Flags().GetBool("json")

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	backupDir := filepath.Join(cfg.Store.Dir, constants.BackupDirName)
	if outPath == "" {
		outPath = backup.GeneratePath(backupDir)
	}

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	header, err := backup.Backup(cmd.Context(), s, outPath)
	if err != nil {
		return fmt.Errorf("backup failed: %w", err)
	}

	// Retention manages only the backup directory; explicit --out
	// destinations elsewhere are left alone.
	var deleted []string
	if filepath.Dir(outPath) == backupDir {
		policy, err := retentionPolicy(cfg)
		if err != nil {
			return err
		}
		if policy != nil {
			var retErr error
			deleted, retErr = backup.ApplyRetention(backupDir, policy)
			if retErr != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: retention not applied: %v\n", retErr)
			}
		}
	}

	if jsonOut {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"path":    outPath,
			"header":  header,
			"deleted": deleted,
		})
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Backup created: %d runs, %d steps\n", header.RunCount, header.StepCount)
	fmt.Fprintf(cmd.OutOrStdout(), "  Path: %s\n", outPath)
	if len(deleted) > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "  Pruned %d old backups\n", len(deleted))
	}
	return nil
}

// retentionPolicy builds the configured backup retention policy. A nil
// policy means retention is disabled.
func retentionPolicy(cfg *config.Config) (backup.RetentionPolicy, error) {
	r := cfg.Backup.Retention

	var policies []backup.RetentionPolicy
	if r.MaxCount > 0 {
		policies = append(policies, &backup.CountPolicy{MaxCount: r.MaxCount})
	}
	if r.MaxAge != "" {
		d, err := backup.ParseDuration(r.MaxAge)
		if err != nil {
			return nil, fmt.Errorf("invalid backup max_age: %w", err)
		}
		policies = append(policies, &backup.AgePolicy{MaxAge: d})
	}
	if r.MaxTotalSize != "" {
		size, err := backup.ParseSize(r.MaxTotalSize)
		if err != nil {
			return nil, fmt.Errorf("invalid backup max_total_size: %w", err)
		}
		policies = append(policies, &backup.SizePolicy{MaxTotalBytes: size})
	}

	switch len(policies) {
	case 0:
		return nil, nil
	case 1:
		return policies[0], nil
	default:
		return &backup.CompositePolicy{Policies: policies}, nil
	}
}

func newBackupListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List backup files",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			dir := filepath.Join(cfg.Store.Dir, constants.BackupDirName)

			backups, err := backup.List(dir)
			if err != nil {
				return fmt.Errorf("failed to list backups: %w", err)
			}

			if jsonOut {
				type entry struct {
					Path      string    `json:"path"`
					SizeBytes int64     `json:"size_bytes"`
					CreatedAt time.Time `json:"created_at"`
					Runs      int       `json:"runs"`
				}
				entries := make([]entry, 0, len(backups))
				for _, b := range backups {
					entries = append(entries, entry{b.Path, b.Size, b.CreatedAt, b.Runs})
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(map[string]any{"directory": dir, "backups": entries})
			}

			if len(backups) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No backups found in %s\n", dir)
				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Backups in %s:\n", dir)
			var total int64
			for _, b := range backups {
				total += b.Size
				runs := "?"
				if b.Runs >= 0 {
					runs = strconv.Itoa(b.Runs)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "  %s  %8s  %s runs  %s\n",
					b.CreatedAt.Format("2006-01-02 15:04"), formatBytes(b.Size), runs, filepath.Base(b.Path))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Total: %d backups, %s\n", len(backups), formatBytes(total))
			return nil
		},
	}
}

func newBackupVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <file>",
		Short: "Verify a backup file's integrity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			jsonOut, _ := cmd.Flags().GetBool("json")

			header, err := backup.ReadHeader(path)
			if err == nil {
				err = backup.VerifyChecksum(path)
			}
			if err != nil {
				if jsonOut {
					return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
						"file":  path,
						"valid": false,
						"error": err.Error(),
					})
				}
				return fmt.Errorf("backup verification failed: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(map[string]any{
					"file":     path,
					"valid":    true,
					"runs":     header.RunCount,
					"checksum": header.Checksum,
				})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "OK: checksum verified (%d runs, created %s)\n",
				header.RunCount, header.CreatedAt.Format("2006-01-02 15:04:05"))
			fmt.Fprintf(cmd.OutOrStdout(), "  File: %s\n", path)
			return nil
		},
	}
}

func newRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <backup-file>",
		Short: "Restore run history from a backup file",
		Long: `Imports runs from a backup file into the run store. Runs already
present are skipped, so restoring is safe to repeat.

Examples:
  stabsim restore ~/.stabsim/backups/stabsim-backup-20260815-093000.backup
  stabsim restore runs.backup --data-dir /tmp/scratch`,
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

			result, err := backup.Restore(cmd.Context(), s, args[0])
			if err != nil {
				return fmt.Errorf("restore failed: %w", err)
			}

			if jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Restore complete: %d runs restored, %d skipped (%d steps)\n",
				result.RunsRestored, result.RunsSkipped, result.StepsRestored)
			return nil
		},
	}
}

// formatBytes renders a byte count for the backup listing.
func formatBytes(b int64) string {
	const (
		kb = 1024
		mb = kb * 1024
		gb = mb * 1024
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.1fGB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.1fMB", float64(b)/float64(mb))
	case b >= kb:
		return fmt.Sprintf("%.1fKB", float64(b)/float64(kb))
	default:
		return fmt.Sprintf("%dB", b)
	}
}
