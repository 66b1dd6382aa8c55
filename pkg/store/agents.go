package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/flowgrid/flowgrid/pkg/domain"
)

// SaveAgent inserts or replaces an agent definition.
func (s *Store) SaveAgent(ctx context.Context, agent *domain.Agent) error {
	now := time.Now()
	if agent.CreatedAt.IsZero() {
		agent.CreatedAt = now
	}
	agent.UpdatedAt = now

	tools, err := json.Marshal(agent.Tools)
	if err != nil {
		return fmt.Errorf("failed to marshal agent tools: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO agents (id, user_id, name, system_prompt, model, temperature, max_tokens, tools, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			system_prompt = excluded.system_prompt,
			model = excluded.model,
			temperature = excluded.temperature,
			max_tokens = excluded.max_tokens,
			tools = excluded.tools,
			updated_at = excluded.updated_at
	`, agent.ID, agent.UserID, agent.Name, agent.SystemPrompt, agent.Model,
		agent.Temperature, agent.MaxTokens, string(tools), agent.CreatedAt, agent.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save agent: %w", err)
	}
	return nil
}

// GetAgent loads one agent scoped to its owner.
func (s *Store) GetAgent(ctx context.Context, userID, agentID string) (*domain.Agent, error) {
	var agent domain.Agent
	var tools string

	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, system_prompt, model, temperature, max_tokens, tools, created_at, updated_at
		FROM agents WHERE id = ? AND user_id = ?
	`, agentID, userID).Scan(&agent.ID, &agent.UserID, &agent.Name, &agent.SystemPrompt,
		&agent.Model, &agent.Temperature, &agent.MaxTokens, &tools,
		&agent.CreatedAt, &agent.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", domain.ErrAgentNotFound, agentID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load agent: %w", err)
	}

	if err := json.Unmarshal([]byte(tools), &agent.Tools); err != nil {
		return nil, fmt.Errorf("failed to decode agent tools: %w", err)
	}
	return &agent, nil
}

// ListAgents returns all agents owned by userID, newest first.
func (s *Store) ListAgents(ctx context.Context, userID string) ([]*domain.Agent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, system_prompt, model, temperature, max_tokens, tools, created_at, updated_at
		FROM agents WHERE user_id = ? ORDER BY updated_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	defer rows.Close()

	var agents []*domain.Agent
	for rows.Next() {
		var agent domain.Agent
		var tools string
		if err := rows.Scan(&agent.ID, &agent.UserID, &agent.Name, &agent.SystemPrompt,
			&agent.Model, &agent.Temperature, &agent.MaxTokens, &tools,
			&agent.CreatedAt, &agent.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(tools), &agent.Tools); err != nil {
			return nil, fmt.Errorf("failed to decode agent tools: %w", err)
		}
		agents = append(agents, &agent)
	}
	return agents, rows.Err()
}

// DeleteAgent removes an agent definition.
func (s *Store) DeleteAgent(ctx context.Context, userID, agentID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM agents WHERE id = ? AND user_id = ?`, agentID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete agent: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("%w: %s", domain.ErrAgentNotFound, agentID)
	}
	return nil
}
