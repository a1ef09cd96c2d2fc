package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stabsim/stabsim/internal/store"
	"github.com/stabsim/stabsim/internal/trace"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedRuns(t *testing.T, s store.Store, count int) []store.Run {
	t.Helper()
	ctx := context.Background()

	runs := make([]store.Run, 0, count)
	for i := 0; i < count; i++ {
		run := store.Run{
			ID:        fmt.Sprintf("run-%d", i),
			StartedAt: time.Date(2026, 8, 1, 12, i, 0, 0, time.UTC),
			Size:      4,
			Seed:      int64(i),
			Margin:    20,
			MaxSteps:  1000,
			Faults:    1,
			Converged: true,
			Steps:     i + 1,
			Elapsed:   time.Millisecond,
			Initial:   "0100",
			Final:     "0000",
		}
		steps := make([]trace.Step, 0, run.Steps)
		for j := 0; j < run.Steps; j++ {
			steps = append(steps, trace.Step{
				Step: j, Node: 1, Case: "all-disagree", Flipped: j == run.Steps-1,
				PrimaryBefore: 1, PrimaryAfter: 0, SecondaryBefore: 5, SecondaryAfter: 5,
			})
		}
		if err := s.SaveRun(ctx, run, steps); err != nil {
			t.Fatalf("SaveRun(%s) error = %v", run.ID, err)
		}
		runs = append(runs, run)
	}
	return runs
}

func TestBackupRestore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	src := newTestStore(t)
	seedRuns(t, src, 3)

	path := filepath.Join(t.TempDir(), "roundtrip"+fileExt)
	header, err := Backup(ctx, src, path)
	if err != nil {
		t.Fatalf("Backup() error = %v", err)
	}
	if header.RunCount != 3 {
		t.Errorf("header.RunCount = %d, want 3", header.RunCount)
	}
	if header.StepCount != 1+2+3 {
		t.Errorf("header.StepCount = %d, want 6", header.StepCount)
	}

	dst := newTestStore(t)
	result, err := Restore(ctx, dst, path)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if result.RunsRestored != 3 || result.RunsSkipped != 0 {
		t.Errorf("RestoreResult = %+v, want 3 restored, 0 skipped", result)
	}
	if result.StepsRestored != 6 {
		t.Errorf("StepsRestored = %d, want 6", result.StepsRestored)
	}

	// Restored runs are queryable with their traces intact.
	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("run-%d", i)
		run, err := dst.GetRun(ctx, id)
		if err != nil || run == nil {
			t.Fatalf("GetRun(%s) = %v, %v", id, run, err)
		}
		if run.Final != "0000" {
			t.Errorf("restored run %s final = %q, want 0000", id, run.Final)
		}
		steps, err := dst.Steps(ctx, id)
		if err != nil {
			t.Fatalf("Steps(%s) error = %v", id, err)
		}
		if len(steps) != i+1 {
			t.Errorf("restored run %s has %d steps, want %d", id, len(steps), i+1)
		}
	}
}

func TestRestore_SkipsExistingRuns(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedRuns(t, s, 2)

	path := filepath.Join(t.TempDir(), "skip"+fileExt)
	if _, err := Backup(ctx, s, path); err != nil {
		t.Fatalf("Backup() error = %v", err)
	}

	// Restoring into the same store changes nothing.
	result, err := Restore(ctx, s, path)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if result.RunsRestored != 0 || result.RunsSkipped != 2 {
		t.Errorf("RestoreResult = %+v, want 0 restored, 2 skipped", result)
	}

	runs, err := s.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("store has %d runs after re-restore, want 2", len(runs))
	}
}

func TestBackup_EmptyStore(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	path := filepath.Join(t.TempDir(), "empty"+fileExt)
	header, err := Backup(ctx, s, path)
	if err != nil {
		t.Fatalf("Backup() error = %v", err)
	}
	if header.RunCount != 0 || header.StepCount != 0 {
		t.Errorf("header = %+v, want zero counts", header)
	}

	dst := newTestStore(t)
	result, err := Restore(ctx, dst, path)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if result.RunsRestored != 0 {
		t.Errorf("RunsRestored = %d, want 0", result.RunsRestored)
	}
}

func TestBackup_CreatesParentDirectory(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	seedRuns(t, s, 1)

	path := filepath.Join(t.TempDir(), "nested", "dir", "deep"+fileExt)
	if _, err := Backup(ctx, s, path); err != nil {
		t.Fatalf("Backup() error = %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("backup file not created: %v", err)
	}
}

func TestGeneratePath(t *testing.T) {
	dir := "/var/backups"
	path := GeneratePath(dir)

	if filepath.Dir(path) != dir {
		t.Errorf("GeneratePath dir = %q, want %q", filepath.Dir(path), dir)
	}
	base := filepath.Base(path)
	if !strings.HasPrefix(base, filePrefix) || !strings.HasSuffix(base, fileExt) {
		t.Errorf("GeneratePath base = %q, want %s*%s", base, filePrefix, fileExt)
	}
	if !isBackupFile(base) {
		t.Errorf("isBackupFile(%q) = false for generated name", base)
	}
}
