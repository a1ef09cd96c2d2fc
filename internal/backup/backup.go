// Package backup archives run history into checksummed files and restores
// it. An archive is self-contained: every run record plus its full
// activation trace, so a restored store supports show and export without
// the original database.
package backup

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/stabsim/stabsim/internal/store"
	"github.com/stabsim/stabsim/internal/trace"
)

// ArchivedRun pairs a run record with its activation trace.
type ArchivedRun struct {
	Run   store.Run    `json:"run"`
	Steps []trace.Step `json:"steps"`
}

// Archive is the payload of one backup file.
type Archive struct {
	Version   int           `json:"version"`
	CreatedAt time.Time     `json:"created_at"`
	Runs      []ArchivedRun `json:"runs"`
}

// Backup writes every recorded run and its trace to path and returns the
// written header.
func Backup(ctx context.Context, s store.Store, path string) (*Header, error) {
	runs, err := s.ListRuns(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	archive := &Archive{
		Version:   FormatVersion,
		CreatedAt: time.Now().UTC(),
		Runs:      make([]ArchivedRun, 0, len(runs)),
	}
	for _, run := range runs {
		steps, err := s.Steps(ctx, run.ID)
		if err != nil {
			return nil, fmt.Errorf("loading trace for %s: %w", run.ID, err)
		}
		archive.Runs = append(archive.Runs, ArchivedRun{Run: run, Steps: steps})
	}

	return WriteArchive(path, archive)
}

// RestoreResult reports what a restore changed.
type RestoreResult struct {
	RunsRestored  int `json:"runs_restored"`
	RunsSkipped   int `json:"runs_skipped"`
	StepsRestored int `json:"steps_restored"`
}

// Restore imports runs from a backup file. Runs already present in the
// store are skipped: recorded runs are immutable, so a restore only fills
// gaps.
func Restore(ctx context.Context, s store.Store, path string) (*RestoreResult, error) {
	archive, err := ReadArchive(path)
	if err != nil {
		return nil, err
	}

	result := &RestoreResult{}
	for _, ar := range archive.Runs {
		existing, err := s.GetRun(ctx, ar.Run.ID)
		if err != nil {
			return nil, fmt.Errorf("checking run %s: %w", ar.Run.ID, err)
		}
		if existing != nil {
			result.RunsSkipped++
			continue
		}
		if err := s.SaveRun(ctx, ar.Run, ar.Steps); err != nil {
			return nil, fmt.Errorf("restoring run %s: %w", ar.Run.ID, err)
		}
		result.RunsRestored++
		result.StepsRestored += len(ar.Steps)
	}

	return result, nil
}

// GeneratePath returns a timestamped backup filename in dir.
func GeneratePath(dir string) string {
	ts := time.Now().Format("20060102-150405")
	return filepath.Join(dir, filePrefix+ts+fileExt)
}
