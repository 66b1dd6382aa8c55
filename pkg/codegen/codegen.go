// Package codegen produces and reviews code through a model provider.
package codegen

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/flowgrid/flowgrid/pkg/domain"
	"github.com/flowgrid/flowgrid/pkg/log"
)

const generateSystemPrompt = `You are a senior software engineer. Generate clean, working code for the request.
Return the code in a single fenced code block, followed by a short explanation.`

const reviewSystemPrompt = `You are a senior software engineer performing a code review.
Point out correctness issues, then style issues. Be specific and concise.`

// Service generates and reviews code with a chat model.
type Service struct {
	provider domain.ModelProvider
	model    string
	logger   *slog.Logger
}

// New creates a code generation service bound to one model.
func New(provider domain.ModelProvider, model string) *Service {
	return &Service{
		provider: provider,
		model:    model,
		logger:   log.WithModule("codegen"),
	}
}

// Generate produces code for a natural-language description. The context
// hint carries upstream step output into the prompt.
func (s *Service) Generate(ctx context.Context, description, language, contextHint string) (map[string]any, error) {
	if description == "" {
		return nil, fmt.Errorf("%w: description is required", domain.ErrInvalidInput)
	}
	if language == "" {
		language = "python"
	}

	var prompt strings.Builder
	fmt.Fprintf(&prompt, "Write %s code for the following task:\n\n%s\n", language, description)
	if contextHint != "" {
		fmt.Fprintf(&prompt, "\nRelevant context:\n%s\n", contextHint)
	}

	result, err := s.complete(ctx, generateSystemPrompt, prompt.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}

	code, explanation := splitCodeBlock(result.Content)
	s.logger.Debug("code generated", "language", language, "tokens", result.Usage.TotalTokens)
	return map[string]any{
		"operation":   "generate",
		"language":    language,
		"code":        code,
		"explanation": explanation,
		"tokens":      result.Usage.TotalTokens,
	}, nil
}

// Review asks the model to critique a piece of code.
func (s *Service) Review(ctx context.Context, code, language string) (map[string]any, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: code is required", domain.ErrInvalidInput)
	}

	prompt := fmt.Sprintf("Review this %s code:\n\n```%s\n%s\n```", language, language, code)
	result, err := s.complete(ctx, reviewSystemPrompt, prompt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGenerationFailed, err)
	}

	return map[string]any{
		"operation": "review",
		"language":  language,
		"review":    result.Content,
		"tokens":    result.Usage.TotalTokens,
	}, nil
}

func (s *Service) complete(ctx context.Context, system, user string) (*domain.ChatResult, error) {
	return s.provider.CreateChatCompletion(ctx, domain.ChatRequest{
		Model: s.model,
		Messages: []domain.Message{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0.2,
	})
}

var codeBlockPattern = regexp.MustCompile("(?s)```[a-zA-Z0-9_+-]*\n(.*?)```")

// splitCodeBlock pulls the first fenced block out of a model reply. Replies
// without a fence are treated as all code.
func splitCodeBlock(content string) (code, explanation string) {
	match := codeBlockPattern.FindStringSubmatchIndex(content)
	if match == nil {
		return strings.TrimSpace(content), ""
	}
	code = strings.TrimSpace(content[match[2]:match[3]])
	explanation = strings.TrimSpace(content[:match[0]] + content[match[1]:])
	return code, explanation
}
