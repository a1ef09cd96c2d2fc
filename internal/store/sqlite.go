package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/stabsim/stabsim/internal/constants"
	"github.com/stabsim/stabsim/internal/trace"
)

// SQLiteStore implements Store using SQLite for persistence.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	dir    string
	dbPath string
}

// Open opens the run store rooted at dir, creating the directory and
// database as needed.
func Open(dir string) (*SQLiteStore, error) {
	// Ensure data directory exists
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dir, constants.DatabaseFile)

	// Open database
	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite works best with single writer

	// Initialize schema
	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, dir: dir, dbPath: dbPath}, nil
}

// SaveRun records a completed run and its trace in one transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, run Run, steps []trace.Step) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == "" {
		return fmt.Errorf("run ID is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, size, seed, margin, max_steps, faults, converged, steps, elapsed_us, initial, final)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.StartedAt.UTC().Format(time.RFC3339Nano), run.Size, run.Seed, run.Margin,
		run.MaxSteps, run.Faults, boolToInt(run.Converged), run.Steps,
		run.Elapsed.Microseconds(), run.Initial, run.Final); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_steps (run_id, step, node, case_name, flipped, leader, primary_before, primary_after, secondary_before, secondary_after)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare step insert: %w", err)
	}
	defer stmt.Close()

	for _, st := range steps {
		if _, err := stmt.ExecContext(ctx, run.ID, st.Step, st.Node, st.Case,
			boolToInt(st.Flipped), boolToInt(st.Leader),
			st.PrimaryBefore, st.PrimaryAfter,
			st.SecondaryBefore, st.SecondaryAfter); err != nil {
			return fmt.Errorf("failed to insert step %d: %w", st.Step, err)
		}
	}

	return tx.Commit()
}

const runColumns = `id, started_at, size, seed, margin, max_steps, faults, converged, steps, elapsed_us, initial, final`

// GetRun retrieves a run by ID. Returns nil if not found.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &run, nil
}

// ListRuns returns runs newest first. A non-positive limit means all.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = -1 // SQLite treats a negative limit as unbounded
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Steps returns a run's trace in activation order.
func (s *SQLiteStore) Steps(ctx context.Context, runID string) ([]trace.Step, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT step, node, case_name, flipped, leader, primary_before, primary_after, secondary_before, secondary_after
		FROM run_steps WHERE run_id = ? ORDER BY step
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query steps: %w", err)
	}
	defer rows.Close()

	var steps []trace.Step
	for rows.Next() {
		var st trace.Step
		var flipped, leader, pb, pa int
		if err := rows.Scan(&st.Step, &st.Node, &st.Case, &flipped, &leader,
			&pb, &pa, &st.SecondaryBefore, &st.SecondaryAfter); err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}
		st.Flipped = flipped != 0
		st.Leader = leader != 0
		st.PrimaryBefore = uint8(pb)
		st.PrimaryAfter = uint8(pa)
		steps = append(steps, st)
	}
	return steps, rows.Err()
}

// Validate checks database integrity and schema consistency.
func (s *SQLiteStore) Validate(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return fmt.Errorf("store is closed")
	}
	return ValidateIntegrity(ctx, s.db)
}

// Path returns the database file location.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// rowScanner abstracts sql.Row and sql.Rows for scanRun.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var run Run
	var startedAt string
	var converged int
	var elapsedUS int64
	if err := row.Scan(&run.ID, &startedAt, &run.Size, &run.Seed, &run.Margin,
		&run.MaxSteps, &run.Faults, &converged, &run.Steps, &elapsedUS,
		&run.Initial, &run.Final); err != nil {
		return Run{}, err
	}
	run.Converged = converged != 0
	run.Elapsed = time.Duration(elapsedUS) * time.Microsecond
	if t, err := time.Parse(time.RFC3339Nano, startedAt); err == nil {
		run.StartedAt = t
	}
	return run, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
