package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"copyflat/internal/domain"
)

// RunStore implements persistence for conversion run logs and their per-file results.
type RunStore struct {
	db *DB
}

// NewRunStore creates a new RunStore.
func NewRunStore(db *DB) *RunStore {
	return &RunStore{db: db}
}

// CreateRun inserts a run in the running state and assigns its ID.
func (s *RunStore) CreateRun(run *domain.RunLog) error {
	run.ID = uuid.New().String()
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	run.Status = domain.RunRunning
	_, err := s.db.conn.Exec(
		`INSERT INTO runs (id, trigger_type, started_at, status) VALUES (?, ?, ?, ?)`,
		run.ID, run.Trigger, run.StartedAt, run.Status,
	)
	return err
}

// FinishRun stores the final state of a run together with its file results.
func (s *RunStore) FinishRun(run *domain.RunLog, files []domain.FileResult) error {
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now()
	}

	tx, err := s.db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`UPDATE runs SET finished_at=?, status=?, files=?, skipped=?, row_count=?, error=? WHERE id=?`,
		run.FinishedAt, run.Status, run.Files, run.Skipped, run.Rows, run.Error, run.ID,
	); err != nil {
		return fmt.Errorf("update run: %w", err)
	}

	for i := range files {
		f := &files[i]
		f.ID = uuid.New().String()
		f.RunID = run.ID
		if _, err := tx.Exec(
			`INSERT INTO run_files (id, run_id, position, table_name, flat_file, output, layout, row_count, loaded, skip, error)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			f.ID, f.RunID, i, f.Table, f.FlatFile, f.Output, f.Layout, f.Rows, f.Loaded, f.Skip, f.Error,
		); err != nil {
			return fmt.Errorf("insert file result %d: %w", i, err)
		}
	}
	return tx.Commit()
}

const runColumns = `id, trigger_type, started_at, finished_at, status, files, skipped, row_count, error`

func scanRun(sc interface{ Scan(...any) error }) (domain.RunLog, error) {
	var r domain.RunLog
	var finished sql.NullTime
	err := sc.Scan(&r.ID, &r.Trigger, &r.StartedAt, &finished, &r.Status, &r.Files, &r.Skipped, &r.Rows, &r.Error)
	if finished.Valid {
		r.FinishedAt = finished.Time
	}
	return r, err
}

// GetRun returns one run by ID.
func (s *RunStore) GetRun(id string) (*domain.RunLog, error) {
	r, err := scanRun(s.db.conn.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRuns returns the most recent runs first.
func (s *RunStore) ListRuns(limit int) ([]domain.RunLog, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.conn.Query(`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.RunLog
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ListFileResults returns the file results of a run in mapping order.
func (s *RunStore) ListFileResults(runID string) ([]domain.FileResult, error) {
	rows, err := s.db.conn.Query(
		`SELECT id, run_id, table_name, flat_file, output, layout, row_count, loaded, skip, error
		 FROM run_files WHERE run_id = ? ORDER BY position ASC`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.FileResult
	for rows.Next() {
		var f domain.FileResult
		if err := rows.Scan(&f.ID, &f.RunID, &f.Table, &f.FlatFile, &f.Output, &f.Layout,
			&f.Rows, &f.Loaded, &f.Skip, &f.Error); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
