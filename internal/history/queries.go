package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const runColumns = `id, guild_id, role_name, status, dry_run, started_at, finished_at,
	total, processed, succeeded, skipped, failed, remaining, elapsed_ms, error_message`

// RecordRun inserts a run and its failures in one transaction.
func (s *Store) RecordRun(ctx context.Context, run *Run) error {
	if run == nil || run.ID == "" {
		return errors.New("run id cannot be empty")
	}

	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning run insert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.GuildID, run.Role, string(run.Status), run.DryRun,
		run.StartedAt.UnixMilli(), run.FinishedAt.UnixMilli(),
		run.Total, run.Processed, run.Succeeded, run.Skipped, run.Failed, run.Remaining,
		run.Elapsed.Milliseconds(), run.Error,
	)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", run.ID, err)
	}

	for i, f := range run.Failures {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_failures (run_id, position, entity_id, entity_name)
			VALUES (?, ?, ?, ?)`,
			run.ID, i, f.EntityID, f.EntityName,
		)
		if err != nil {
			return fmt.Errorf("inserting failure %s for run %s: %w", f.EntityID, run.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing run %s: %w", run.ID, err)
	}
	return nil
}

// GetRun returns a run with its failures.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("reading run %s: %w", id, err)
	}

	rows, err := s.QueryContext(ctx, `
		SELECT entity_id, entity_name FROM run_failures
		WHERE run_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, fmt.Errorf("reading failures for run %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var f Failure
		if err = rows.Scan(&f.EntityID, &f.EntityName); err != nil {
			return nil, fmt.Errorf("scanning failure for run %s: %w", id, err)
		}
		run.Failures = append(run.Failures, f)
	}
	return run, rows.Err()
}

// ListRuns returns the most recent runs first. A limit <= 0 returns all runs.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.QueryContext(ctx, `
		SELECT `+runColumns+` FROM runs
		ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		r                   Run
		status              string
		started, finished   int64
		elapsedMilliseconds int64
	)
	err := row.Scan(
		&r.ID, &r.GuildID, &r.Role, &status, &r.DryRun, &started, &finished,
		&r.Total, &r.Processed, &r.Succeeded, &r.Skipped, &r.Failed, &r.Remaining,
		&elapsedMilliseconds, &r.Error,
	)
	if err != nil {
		return nil, err
	}
	r.Status = RunStatus(status)
	r.StartedAt = time.UnixMilli(started)
	r.FinishedAt = time.UnixMilli(finished)
	r.Elapsed = time.Duration(elapsedMilliseconds) * time.Millisecond
	return &r, nil
}
