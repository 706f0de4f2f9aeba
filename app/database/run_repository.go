package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type RunRepositoryImpl struct {
	db *DB
}

var _ RunRepository = (*RunRepositoryImpl)(nil)

func NewRunRepository(db *DB) *RunRepositoryImpl {
	return &RunRepositoryImpl{db: db}
}

const runColumns = `id, source_id, status, started_at, completed_at, days_range,
       posts_found, posts_added, skip_reasons, error`

func (r *RunRepositoryImpl) StartRun(sourceID string, daysRange int) (string, error) {
	id := uuid.NewString()

	_, err := r.db.Exec(`
		INSERT INTO parse_runs (id, source_id, status, days_range)
		VALUES (?, ?, ?, ?)
	`, id, sourceID, string(RunRunning), daysRange)
	if err != nil {
		return "", fmt.Errorf("failed to start parse run: %w", err)
	}

	return id, nil
}

func (r *RunRepositoryImpl) UpdateRunProgress(runID string, postsFound int) error {
	_, err := r.db.Exec(`
		UPDATE parse_runs
		SET posts_found = ?
		WHERE id = ? AND status = ?
	`, postsFound, runID, string(RunRunning))
	if err != nil {
		return fmt.Errorf("failed to update run progress: %w", err)
	}
	return nil
}

// CompleteRun finalizes a running run as succeeded. The status guard in
// the WHERE clause makes finalization a single one-way transition.
func (r *RunRepositoryImpl) CompleteRun(runID string, postsFound, postsAdded int, skipReasons map[string]int) error {
	reasons, err := json.Marshal(skipReasons)
	if err != nil {
		return fmt.Errorf("failed to marshal skip reasons: %w", err)
	}

	res, err := r.db.Exec(`
		UPDATE parse_runs
		SET status = ?, completed_at = CURRENT_TIMESTAMP,
		    posts_found = ?, posts_added = ?, skip_reasons = ?
		WHERE id = ? AND status = ?
	`, string(RunSucceeded), postsFound, postsAdded, string(reasons), runID, string(RunRunning))
	if err != nil {
		return fmt.Errorf("failed to complete parse run: %w", err)
	}

	return requireTransition(res, runID)
}

// FailRun finalizes a running run as failed with the captured message.
func (r *RunRepositoryImpl) FailRun(runID string, message string) error {
	res, err := r.db.Exec(`
		UPDATE parse_runs
		SET status = ?, completed_at = CURRENT_TIMESTAMP, error = ?
		WHERE id = ? AND status = ?
	`, string(RunFailed), message, runID, string(RunRunning))
	if err != nil {
		return fmt.Errorf("failed to fail parse run: %w", err)
	}

	return requireTransition(res, runID)
}

func requireTransition(res sql.Result, runID string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("parse run %s is not running, refusing double finalization", runID)
	}
	return nil
}

func (r *RunRepositoryImpl) GetRun(runID string) (*ParseRun, error) {
	row := r.db.QueryRow(`
		SELECT `+runColumns+`
		FROM parse_runs
		WHERE id = ?
	`, runID)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get parse run: %w", err)
	}

	return run, nil
}

func (r *RunRepositoryImpl) GetRunningRunForDataset(datasetID string) (*ParseRun, error) {
	row := r.db.QueryRow(`
		SELECT r.id, r.source_id, r.status, r.started_at, r.completed_at, r.days_range,
		       r.posts_found, r.posts_added, r.skip_reasons, r.error
		FROM parse_runs r
		JOIN sources s ON s.id = r.source_id
		WHERE s.dataset_id = ? AND r.status = ?
		ORDER BY r.started_at DESC
		LIMIT 1
	`, datasetID, string(RunRunning))

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get running run for dataset: %w", err)
	}

	return run, nil
}

func (r *RunRepositoryImpl) GetRecentFailedRunForDataset(datasetID string, since time.Time) (*ParseRun, error) {
	row := r.db.QueryRow(`
		SELECT r.id, r.source_id, r.status, r.started_at, r.completed_at, r.days_range,
		       r.posts_found, r.posts_added, r.skip_reasons, r.error
		FROM parse_runs r
		JOIN sources s ON s.id = r.source_id
		WHERE s.dataset_id = ? AND r.status = ? AND r.started_at > datetime(?, 'unixepoch')
		ORDER BY r.started_at DESC
		LIMIT 1
	`, datasetID, string(RunFailed), since.UTC().Unix())

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get recent failed run for dataset: %w", err)
	}

	return run, nil
}

func (r *RunRepositoryImpl) GetRunsForSource(sourceID string, limit int) ([]ParseRun, error) {
	rows, err := r.db.Query(`
		SELECT `+runColumns+`
		FROM parse_runs
		WHERE source_id = ?
		ORDER BY started_at DESC
		LIMIT ?
	`, sourceID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get runs for source: %w", err)
	}
	defer rows.Close()

	var runs []ParseRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		runs = append(runs, *run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run rows: %w", err)
	}

	return runs, nil
}

func scanRun(row rowScanner) (*ParseRun, error) {
	var run ParseRun
	var status string
	var reasons string

	err := row.Scan(
		&run.ID, &run.SourceID, &status, &run.StartedAt, &run.CompletedAt,
		&run.DaysRange, &run.PostsFound, &run.PostsAdded, &reasons, &run.Error,
	)
	if err != nil {
		return nil, err
	}

	run.Status = RunStatus(status)

	if reasons != "" {
		if err := json.Unmarshal([]byte(reasons), &run.SkipReasons); err != nil {
			return nil, fmt.Errorf("failed to unmarshal skip reasons: %w", err)
		}
	}

	return &run, nil
}
