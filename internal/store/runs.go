// ABOUTME: SQLite run log: one row per submitted run with its outcome
// ABOUTME: Rows are inserted at submit and updated when the run ends

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// StartRun inserts a run in the running state.
func (s *SQLiteStore) StartRun(ctx context.Context, run *RunRecord) error {
	query := `
		INSERT INTO runs (id, run_id, target, session_id, input, outcome, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		run.ID,
		nullString(run.RunID),
		run.Target,
		nullString(run.SessionID),
		run.Input,
		string(RunOutcomeRunning),
		run.StartedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}
	return nil
}

// FinishRun records the outcome of a run started with StartRun.
func (s *SQLiteStore) FinishRun(ctx context.Context, run *RunRecord) error {
	finished := time.Now().UTC()
	if run.FinishedAt != nil {
		finished = run.FinishedAt.UTC()
	}
	query := `
		UPDATE runs
		SET run_id = ?, session_id = ?, outcome = ?, error = ?, finished_at = ?
		WHERE id = ?
	`
	result, err := s.db.ExecContext(ctx, query,
		nullString(run.RunID),
		nullString(run.SessionID),
		string(run.Outcome),
		nullString(run.Error),
		finished.Format(timeFormat),
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("updating run: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}

	s.logger.Debug("run finished",
		"id", run.ID,
		"run_id", run.RunID,
		"outcome", run.Outcome,
	)
	return nil
}

// ListRuns returns the most recent runs, newest first.
// If limit is 0 or negative, all runs are returned.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*RunRecord, error) {
	query := `
		SELECT id, run_id, target, session_id, input, outcome, error, started_at, finished_at
		FROM runs
		ORDER BY started_at DESC, rowid DESC
	`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var runs []*RunRecord
	for rows.Next() {
		var (
			run                       RunRecord
			runID, sessionID, errText sql.NullString
			outcome, startedAt        string
			finishedAt                sql.NullString
		)
		if err := rows.Scan(&run.ID, &runID, &run.Target, &sessionID, &run.Input,
			&outcome, &errText, &startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		run.RunID = runID.String
		run.SessionID = sessionID.String
		run.Error = errText.String
		run.Outcome = RunOutcome(outcome)
		run.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing started_at: %w", err)
		}
		if finishedAt.Valid {
			t, err := time.Parse(time.RFC3339Nano, finishedAt.String)
			if err != nil {
				return nil, fmt.Errorf("parsing finished_at: %w", err)
			}
			run.FinishedAt = &t
		}
		runs = append(runs, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return runs, nil
}
