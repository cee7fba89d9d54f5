// Package history records the outcome of each merge run to a SQLite-backed
// log, so a later `csvmerge3 history` invocation can show what ran, when,
// and with how many conflicts.
package history

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tablestream/csvmerge3/internal/db"
)

// Run is one recorded merge invocation.
type Run struct {
	ID            string
	StartedAt     time.Time
	FinishedAt    *time.Time
	PathLCA       string
	PathA         string
	PathB         string
	PathOutput    string
	KeyColumn     string
	ConflictCount int
	ExitCode      int
	Error         string
}

// ConflictSummary names one unresolved field conflict recorded against a run.
type ConflictSummary struct {
	RowKey string
	Column string
}

// Store persists and queries run history against a csvmerge3 history
// database.
type Store struct {
	db *db.DB
}

// New wraps database for history recording and lookup.
func New(database *db.DB) *Store {
	return &Store{db: database}
}

// Begin starts tracking a new run and returns its record, including the
// generated ID.
func (s *Store) Begin(pathLCA, pathA, pathB, keyColumn string) (*Run, error) {
	run := &Run{
		ID:        uuid.New().String(),
		StartedAt: time.Now().UTC(),
		PathLCA:   pathLCA,
		PathA:     pathA,
		PathB:     pathB,
		KeyColumn: keyColumn,
	}

	_, err := s.db.Exec(`
		INSERT INTO runs (id, started_at, path_lca, path_a, path_b, key_column)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.ID, run.StartedAt.Format(time.RFC3339), run.PathLCA, run.PathA, run.PathB, run.KeyColumn)
	if err != nil {
		return nil, fmt.Errorf("record run start: %w", err)
	}

	return run, nil
}

// Finish records the outcome of a run started with Begin, along with any
// conflicts encountered.
func (s *Store) Finish(runID, pathOutput string, conflictCount, exitCode int, runErr error, conflicts []ConflictSummary) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin finish transaction: %w", err)
	}
	defer tx.Rollback()

	var errText sql.NullString
	if runErr != nil {
		errText = sql.NullString{String: runErr.Error(), Valid: true}
	}

	_, err = tx.Exec(`
		UPDATE runs
		SET finished_at = ?, path_output = ?, conflict_count = ?, exit_code = ?, error = ?
		WHERE id = ?
	`, time.Now().UTC().Format(time.RFC3339), pathOutput, conflictCount, exitCode, errText, runID)
	if err != nil {
		return fmt.Errorf("record run finish: %w", err)
	}

	for _, c := range conflicts {
		if _, err := tx.Exec(`
			INSERT INTO run_conflicts (run_id, row_key, column_name) VALUES (?, ?, ?)
		`, runID, c.RowKey, c.Column); err != nil {
			return fmt.Errorf("record conflict: %w", err)
		}
	}

	return tx.Commit()
}

// List returns the most recent runs, newest first, up to limit (0 means no
// limit).
func (s *Store) List(limit int) ([]Run, error) {
	query := `
		SELECT id, started_at, finished_at, path_lca, path_a, path_b,
		       path_output, key_column, conflict_count, exit_code, error
		FROM runs
		ORDER BY started_at DESC
	`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var run Run
		var startedAt string
		var finishedAt, pathOutput, errText sql.NullString
		if err := rows.Scan(&run.ID, &startedAt, &finishedAt, &run.PathLCA, &run.PathA, &run.PathB,
			&pathOutput, &run.KeyColumn, &run.ConflictCount, &run.ExitCode, &errText); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if t, err := time.Parse(time.RFC3339, startedAt); err == nil {
			run.StartedAt = t
		}
		if finishedAt.Valid {
			if t, err := time.Parse(time.RFC3339, finishedAt.String); err == nil {
				run.FinishedAt = &t
			}
		}
		run.PathOutput = pathOutput.String
		run.Error = errText.String
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	return out, nil
}

// Conflicts returns the conflicting (key, column) pairs recorded for runID.
func (s *Store) Conflicts(runID string) ([]ConflictSummary, error) {
	rows, err := s.db.Query(`
		SELECT row_key, column_name FROM run_conflicts WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list conflicts: %w", err)
	}
	defer rows.Close()

	var out []ConflictSummary
	for rows.Next() {
		var c ConflictSummary
		if err := rows.Scan(&c.RowKey, &c.Column); err != nil {
			return nil, fmt.Errorf("scan conflict: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
