package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/flowgrid/flowgrid/pkg/domain"
	"github.com/flowgrid/flowgrid/pkg/workflow"
)

// SaveWorkflow inserts or replaces a workflow definition. The full graph is
// stored as one JSON document; the indexed columns exist for listing.
func (s *Store) SaveWorkflow(ctx context.Context, wf *workflow.Workflow) error {
	now := time.Now()
	if wf.CreatedAt.IsZero() {
		wf.CreatedAt = now
	}
	wf.UpdatedAt = now

	definition, err := json.Marshal(wf)
	if err != nil {
		return fmt.Errorf("failed to marshal workflow: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO workflows (id, user_id, name, definition, trigger_type, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			definition = excluded.definition,
			trigger_type = excluded.trigger_type,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at
	`, wf.ID, wf.UserID, wf.Name, string(definition), string(wf.TriggerType), wf.IsActive, wf.CreatedAt, wf.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save workflow: %w", err)
	}
	return nil
}

// GetWorkflow loads one workflow scoped to its owner.
func (s *Store) GetWorkflow(ctx context.Context, userID, workflowID string) (*workflow.Workflow, error) {
	var definition string
	err := s.db.QueryRowContext(ctx,
		`SELECT definition FROM workflows WHERE id = ? AND user_id = ?`,
		workflowID, userID).Scan(&definition)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrWorkflowNotFound, workflowID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow: %w", err)
	}

	var wf workflow.Workflow
	if err := json.Unmarshal([]byte(definition), &wf); err != nil {
		return nil, fmt.Errorf("failed to decode workflow %s: %w", workflowID, err)
	}
	return &wf, nil
}

// ListWorkflows returns all workflows owned by userID, newest first.
func (s *Store) ListWorkflows(ctx context.Context, userID string) ([]*workflow.Workflow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT definition FROM workflows WHERE user_id = ? ORDER BY updated_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workflows: %w", err)
	}
	defer rows.Close()

	var workflows []*workflow.Workflow
	for rows.Next() {
		var definition string
		if err := rows.Scan(&definition); err != nil {
			return nil, err
		}
		var wf workflow.Workflow
		if err := json.Unmarshal([]byte(definition), &wf); err != nil {
			return nil, fmt.Errorf("failed to decode workflow: %w", err)
		}
		workflows = append(workflows, &wf)
	}
	return workflows, rows.Err()
}

// ListScheduledWorkflows returns active workflows with a schedule trigger,
// across all users. The scheduler consumes this at startup.
func (s *Store) ListScheduledWorkflows(ctx context.Context) ([]*workflow.Workflow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT definition FROM workflows WHERE trigger_type = ? AND is_active = 1`,
		string(workflow.TriggerSchedule))
	if err != nil {
		return nil, fmt.Errorf("failed to list scheduled workflows: %w", err)
	}
	defer rows.Close()

	var workflows []*workflow.Workflow
	for rows.Next() {
		var definition string
		if err := rows.Scan(&definition); err != nil {
			return nil, err
		}
		var wf workflow.Workflow
		if err := json.Unmarshal([]byte(definition), &wf); err != nil {
			return nil, fmt.Errorf("failed to decode workflow: %w", err)
		}
		workflows = append(workflows, &wf)
	}
	return workflows, rows.Err()
}

// DeleteWorkflow removes a workflow definition. Run history is kept.
func (s *Store) DeleteWorkflow(ctx context.Context, userID, workflowID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM workflows WHERE id = ? AND user_id = ?`, workflowID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete workflow: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("%w: %s", domain.ErrWorkflowNotFound, workflowID)
	}
	return nil
}
