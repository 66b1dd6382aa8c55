package codegen

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgrid/flowgrid/pkg/domain"
)

type cannedProvider struct {
	reply    string
	lastReq  domain.ChatRequest
	requests int
}

func (p *cannedProvider) CreateChatCompletion(_ context.Context, req domain.ChatRequest) (*domain.ChatResult, error) {
	p.lastReq = req
	p.requests++
	return &domain.ChatResult{
		Content: p.reply,
		Usage:   domain.TokenUsage{TotalTokens: 42},
	}, nil
}

func TestGenerateExtractsCodeBlock(t *testing.T) {
	provider := &cannedProvider{reply: "Here you go:\n```python\nprint('hi')\n```\nIt prints a greeting."}
	svc := New(provider, "gpt-4o-mini")

	result, err := svc.Generate(context.Background(), "print a greeting", "python", "")
	require.NoError(t, err)

	assert.Equal(t, "print('hi')", result["code"])
	assert.Contains(t, result["explanation"], "prints a greeting")
	assert.Equal(t, "python", result["language"])
	assert.Equal(t, 42, result["tokens"])

	// The description must reach the model.
	require.Len(t, provider.lastReq.Messages, 2)
	assert.Contains(t, provider.lastReq.Messages[1].Content, "print a greeting")
}

func TestGenerateWithoutFenceKeepsWholeReply(t *testing.T) {
	provider := &cannedProvider{reply: "x = 1"}
	svc := New(provider, "gpt-4o-mini")

	result, err := svc.Generate(context.Background(), "assign x", "python", "")
	require.NoError(t, err)
	assert.Equal(t, "x = 1", result["code"])
	assert.Equal(t, "", result["explanation"])
}

func TestGenerateIncludesContextHint(t *testing.T) {
	provider := &cannedProvider{reply: "```go\npackage main\n```"}
	svc := New(provider, "gpt-4o-mini")

	_, err := svc.Generate(context.Background(), "a cli", "go", "previous step found 3 rows")
	require.NoError(t, err)
	assert.Contains(t, provider.lastReq.Messages[1].Content, "previous step found 3 rows")
}

func TestGenerateRequiresDescription(t *testing.T) {
	svc := New(&cannedProvider{}, "gpt-4o-mini")

	_, err := svc.Generate(context.Background(), "", "python", "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestReview(t *testing.T) {
	provider := &cannedProvider{reply: "Looks correct. Consider naming the loop variable."}
	svc := New(provider, "gpt-4o-mini")

	result, err := svc.Review(context.Background(), "for i in range(3): pass", "python")
	require.NoError(t, err)
	assert.Contains(t, result["review"], "Looks correct")
	assert.Contains(t, provider.lastReq.Messages[1].Content, "for i in range(3)")

	_, err = svc.Review(context.Background(), "", "python")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
