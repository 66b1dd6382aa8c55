package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTool struct {
	name string
	fn   func(ctx context.Context, args map[string]any) (*ToolResult, error)
}

func (s *stubTool) Name() string        { return s.name }
func (s *stubTool) Description() string { return "stub tool" }

func (s *stubTool) Parameters() ToolParameters {
	return ToolParameters{Type: "object", Properties: map[string]ToolParameter{}}
}

func (s *stubTool) Execute(ctx context.Context, args map[string]any) (*ToolResult, error) {
	if s.fn != nil {
		return s.fn(ctx, args)
	}
	return &ToolResult{Success: true, Data: "ok"}, nil
}

func TestRegistryRegisterAndExecute(t *testing.T) {
	registry := NewRegistry(RegistryConfig{})
	require.NoError(t, registry.Register(&stubTool{name: "echo"}))

	result, err := registry.Execute(context.Background(), "echo", nil)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "ok", result.Data)
}

func TestRegistryDuplicateName(t *testing.T) {
	registry := NewRegistry(RegistryConfig{})
	require.NoError(t, registry.Register(&stubTool{name: "echo"}))
	assert.Error(t, registry.Register(&stubTool{name: "echo"}))
}

func TestRegistryToolNotFound(t *testing.T) {
	registry := NewRegistry(RegistryConfig{})
	_, err := registry.Execute(context.Background(), "missing", nil)
	assert.ErrorIs(t, err, ErrToolNotFound)
}

func TestRegistryPropagatesToolError(t *testing.T) {
	boom := errors.New("boom")
	registry := NewRegistry(RegistryConfig{})
	require.NoError(t, registry.Register(&stubTool{
		name: "broken",
		fn: func(ctx context.Context, args map[string]any) (*ToolResult, error) {
			return nil, boom
		},
	}))

	_, err := registry.Execute(context.Background(), "broken", nil)
	assert.ErrorIs(t, err, boom)
}

func TestRegistryDefinitionsFilter(t *testing.T) {
	registry := NewRegistry(RegistryConfig{})
	require.NoError(t, registry.Register(&stubTool{name: "a"}))
	require.NoError(t, registry.Register(&stubTool{name: "b"}))

	defs := registry.Definitions([]string{"b"})
	require.Len(t, defs, 1)
	assert.Equal(t, "b", defs[0].Function.Name)
	assert.Equal(t, "function", defs[0].Type)

	assert.Len(t, registry.Definitions(nil), 2)
}

func TestAnalyzeDispatch(t *testing.T) {
	rows := []map[string]any{
		{"date": "2024-01-01", "v": 1.0},
		{"date": "2024-02-01", "v": 2.0},
	}

	_, err := Analyze(rows, "summary", "")
	assert.NoError(t, err)
	_, err = Analyze(rows, "trends", "monthly")
	assert.NoError(t, err)
	_, err = Analyze(rows, "bogus", "")
	assert.Error(t, err)
}
