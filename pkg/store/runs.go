package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/flowgrid/flowgrid/pkg/domain"
	"github.com/flowgrid/flowgrid/pkg/workflow"
)

// CreateRun inserts a new run record.
func (s *Store) CreateRun(ctx context.Context, run *workflow.Run) error {
	results, err := json.Marshal(run.Results)
	if err != nil {
		return fmt.Errorf("failed to marshal run results: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO workflow_runs (id, workflow_id, user_id, status, start_time, end_time, results, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.WorkflowID, run.UserID, string(run.Status), run.StartTime, run.EndTime, string(results), run.Error)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// UpdateRun rewrites the mutable fields of a run record.
func (s *Store) UpdateRun(ctx context.Context, run *workflow.Run) error {
	results, err := json.Marshal(run.Results)
	if err != nil {
		return fmt.Errorf("failed to marshal run results: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE workflow_runs
		SET status = ?, end_time = ?, results = ?, error_message = ?
		WHERE id = ?
	`, string(run.Status), run.EndTime, string(results), run.Error, run.ID)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("%w: %s", domain.ErrRunNotFound, run.ID)
	}
	return nil
}

// GetRun loads one run scoped to its owner.
func (s *Store) GetRun(ctx context.Context, userID, runID string) (*workflow.Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, workflow_id, user_id, status, start_time, end_time, results, error_message
		FROM workflow_runs WHERE id = ? AND user_id = ?
	`, runID, userID)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrRunNotFound, runID)
	}
	return run, err
}

// ListRuns returns the most recent runs of a workflow, newest first.
func (s *Store) ListRuns(ctx context.Context, userID, workflowID string, limit int) ([]*workflow.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, workflow_id, user_id, status, start_time, end_time, results, error_message
		FROM workflow_runs WHERE user_id = ? AND workflow_id = ?
		ORDER BY start_time DESC LIMIT ?
	`, userID, workflowID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []*workflow.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*workflow.Run, error) {
	var run workflow.Run
	var status string
	var endTime sql.NullTime
	var results sql.NullString
	var errMsg sql.NullString

	err := row.Scan(&run.ID, &run.WorkflowID, &run.UserID, &status,
		&run.StartTime, &endTime, &results, &errMsg)
	if err != nil {
		return nil, err
	}

	run.Status = workflow.RunStatus(status)
	if endTime.Valid {
		t := endTime.Time
		run.EndTime = &t
	}
	if results.Valid && results.String != "" && results.String != "null" {
		if err := json.Unmarshal([]byte(results.String), &run.Results); err != nil {
			return nil, fmt.Errorf("failed to decode run results: %w", err)
		}
	}
	run.Error = errMsg.String
	return &run, nil
}
