package tools

import (
	"context"
	"encoding/json"

	"github.com/flowgrid/flowgrid/pkg/domain"
)

// Tool is a named callable the agent loop can dispatch to.
type Tool interface {
	// Name returns the unique identifier of the tool.
	Name() string
	// Description returns a human-readable description of what the tool does.
	Description() string
	// Parameters returns the JSON schema for the tool's parameters.
	Parameters() ToolParameters
	// Execute runs the tool with the given arguments.
	Execute(ctx context.Context, args map[string]any) (*ToolResult, error)
}

// ToolParameters defines the JSON schema for tool parameters.
type ToolParameters struct {
	Type       string                   `json:"type"`
	Properties map[string]ToolParameter `json:"properties"`
	Required   []string                 `json:"required,omitempty"`
}

// ToolParameter defines a single parameter in the tool schema.
type ToolParameter struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Enum        []string `json:"enum,omitempty"`
	Default     any      `json:"default,omitempty"`
}

// ToolResult is the outcome of one tool execution.
type ToolResult struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Definition converts a tool into the model-facing schema shape.
func Definition(t Tool) domain.ToolDefinition {
	return domain.ToolDefinition{
		Type: "function",
		Function: domain.ToolFunction{
			Name:        t.Name(),
			Description: t.Description(),
			Parameters:  schemaMap(t.Parameters()),
		},
	}
}

func schemaMap(params ToolParameters) map[string]any {
	data, err := json.Marshal(params)
	if err != nil {
		return map[string]any{"type": "object"}
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]any{"type": "object"}
	}
	return m
}
