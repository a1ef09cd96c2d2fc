package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stabsim/stabsim/internal/backup"
	"github.com/stabsim/stabsim/internal/config"
	"github.com/stabsim/stabsim/internal/constants"
)

func TestBackupCommandFlow(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	// Record a run, then carry it through backup, verify, list, restore.
	if _, err := execute(t, newRunCmd(),
		"run", "--data-dir", tmpDir, "--size", "4", "--corrupt", "1", "--seed", "3"); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	out, err := execute(t, newBackupCmd(), "backup", "--data-dir", tmpDir)
	if err != nil {
		t.Fatalf("backup failed: %v", err)
	}
	if !strings.Contains(out, "Backup created: 1 runs") {
		t.Errorf("unexpected backup output: %q", out)
	}

	matches, err := filepath.Glob(filepath.Join(tmpDir, constants.BackupDirName, "*.backup"))
	if err != nil || len(matches) != 1 {
		t.Fatalf("expected one backup file, got %v (%v)", matches, err)
	}
	backupPath := matches[0]

	out, err = execute(t, newBackupCmd(), "backup", "verify", backupPath)
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if !strings.Contains(out, "OK: checksum verified") {
		t.Errorf("unexpected verify output: %q", out)
	}

	out, err = execute(t, newBackupCmd(), "backup", "list", "--data-dir", tmpDir)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if !strings.Contains(out, filepath.Base(backupPath)) || !strings.Contains(out, "Total: 1 backups") {
		t.Errorf("unexpected list output: %q", out)
	}

	// Restore into an empty data directory, then again to hit the skip path.
	freshDir := t.TempDir()
	out, err = execute(t, newRestoreCmd(), "restore", backupPath, "--data-dir", freshDir)
	if err != nil {
		t.Fatalf("restore failed: %v", err)
	}
	if !strings.Contains(out, "1 runs restored, 0 skipped") {
		t.Errorf("unexpected restore output: %q", out)
	}

	out, err = execute(t, newRestoreCmd(), "restore", backupPath, "--data-dir", freshDir)
	if err != nil {
		t.Fatalf("second restore failed: %v", err)
	}
	if !strings.Contains(out, "0 runs restored, 1 skipped") {
		t.Errorf("expected existing run to be skipped: %q", out)
	}
}

func TestBackupCommandExplicitOut(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	if _, err := execute(t, newRunCmd(),
		"run", "--data-dir", tmpDir, "--size", "4", "--corrupt", "1", "--seed", "5"); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	outPath := filepath.Join(tmpDir, "archive", "runs.backup")
	out, err := execute(t, newBackupCmd(), "backup", "--data-dir", tmpDir, "--out", outPath)
	if err != nil {
		t.Fatalf("backup failed: %v", err)
	}
	if !strings.Contains(out, outPath) {
		t.Errorf("output does not mention %s: %q", outPath, out)
	}
	if _, err := os.Stat(outPath); err != nil {
		t.Errorf("backup file not written: %v", err)
	}
}

func TestBackupCommandJSON(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	if _, err := execute(t, newRunCmd(),
		"run", "--data-dir", tmpDir, "--size", "4", "--corrupt", "1", "--seed", "7"); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	out, err := execute(t, newBackupCmd(), "backup", "--data-dir", tmpDir, "--json")
	if err != nil {
		t.Fatalf("backup failed: %v", err)
	}

	var payload struct {
		Path   string        `json:"path"`
		Header backup.Header `json:"header"`
	}
	if err := json.Unmarshal([]byte(out), &payload); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, out)
	}
	if payload.Header.RunCount != 1 {
		t.Errorf("run_count = %d, want 1", payload.Header.RunCount)
	}
	if !strings.HasPrefix(payload.Header.Checksum, "sha256:") {
		t.Errorf("checksum = %q, want sha256 prefix", payload.Header.Checksum)
	}
	if _, err := os.Stat(payload.Path); err != nil {
		t.Errorf("backup file not written: %v", err)
	}
}

func TestRestoreCommandMissingFile(t *testing.T) {
	tmpDir := t.TempDir()
	isolateHome(t, tmpDir)

	if _, err := execute(t, newRestoreCmd(),
		"restore", filepath.Join(tmpDir, "nope.backup"), "--data-dir", tmpDir); err == nil {
		t.Error("restore of missing file succeeded, want error")
	}
}

func TestRetentionPolicy(t *testing.T) {
	cfg := config.Default()
	policy, err := retentionPolicy(cfg)
	if err != nil {
		t.Fatalf("retentionPolicy failed on defaults: %v", err)
	}
	if _, ok := policy.(*backup.CountPolicy); !ok {
		t.Errorf("default policy = %T, want *backup.CountPolicy", policy)
	}

	cfg.Backup.Retention = config.RetentionConfig{}
	policy, err = retentionPolicy(cfg)
	if err != nil || policy != nil {
		t.Errorf("empty retention = %v, %v, want nil policy", policy, err)
	}

	cfg.Backup.Retention = config.RetentionConfig{MaxCount: 5, MaxAge: "30d", MaxTotalSize: "1GB"}
	policy, err = retentionPolicy(cfg)
	if err != nil {
		t.Fatalf("retentionPolicy failed on combined config: %v", err)
	}
	composite, ok := policy.(*backup.CompositePolicy)
	if !ok {
		t.Fatalf("combined policy = %T, want *backup.CompositePolicy", policy)
	}
	if len(composite.Policies) != 3 {
		t.Errorf("combined policy has %d parts, want 3", len(composite.Policies))
	}

	cfg.Backup.Retention = config.RetentionConfig{MaxAge: "5y"}
	if _, err = retentionPolicy(cfg); err == nil || !strings.Contains(err.Error(), "max_age") {
		t.Errorf("bad max_age error = %v, want mention of max_age", err)
	}

	cfg.Backup.Retention = config.RetentionConfig{MaxTotalSize: "tenMB"}
	if _, err = retentionPolicy(cfg); err == nil || !strings.Contains(err.Error(), "max_total_size") {
		t.Errorf("bad max_total_size error = %v, want mention of max_total_size", err)
	}
}
