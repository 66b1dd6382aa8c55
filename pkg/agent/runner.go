// Package agent implements the bounded tool-calling loop: call the model,
// execute any requested tools, feed their results back, repeat until the
// model stops asking for tools or the iteration limit is reached.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/flowgrid/flowgrid/pkg/domain"
	"github.com/flowgrid/flowgrid/pkg/log"
	"github.com/flowgrid/flowgrid/pkg/tools"
)

// Store resolves agent definitions for a user.
type Store interface {
	GetAgent(ctx context.Context, userID, agentID string) (*domain.Agent, error)
}

// Options bounds one agent execution.
type Options struct {
	MaxIterations int
	Timeout       time.Duration
	Verbose       bool
}

const (
	DefaultMaxIterations = 10
	DefaultTimeout       = 60 * time.Second

	defaultSystemPrompt = "You are a helpful assistant. Use the available tools when they help you answer accurately."

	// Sent as a trailing user message when the iteration limit is hit without a
	// natural stop, to force a best-effort final answer.
	finalAnswerPrompt = "You have reached the limit of tool calls for this task. Provide your final answer now using the information gathered so far."
)

// ToolCallRecord is one audited tool invocation.
type ToolCallRecord struct {
	Tool   string         `json:"tool"`
	Params map[string]any `json:"params"`
	Result any            `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// Result is the outcome of one agent execution.
type Result struct {
	AgentID       string            `json:"agentId"`
	FinalResponse string            `json:"finalResponse"`
	Iterations    int               `json:"iterations"`
	ToolCalls     []ToolCallRecord  `json:"toolCalls"`
	Tokens        domain.TokenUsage `json:"tokens"`
	ElapsedMs     int64             `json:"elapsedMs"`
}

// Runner executes agents against the model gateway and tool registry. The
// registry is injected at construction and read-only during execution.
type Runner struct {
	provider domain.ModelProvider
	registry *tools.Registry
	store    Store
	logger   interface {
		Debug(msg string, args ...any)
		Info(msg string, args ...any)
	}
}

// NewRunner creates an agent runner.
func NewRunner(provider domain.ModelProvider, registry *tools.Registry, store Store) *Runner {
	return &Runner{
		provider: provider,
		registry: registry,
		store:    store,
		logger:   log.WithModule("agent"),
	}
}

// Execute runs the agent loop for one user query.
//
// Tool execution failures and unknown tool names are absorbed: they become
// error payloads fed back to the model. A failed model call propagates to
// the caller unretried.
func (r *Runner) Execute(ctx context.Context, userID, agentID, query string, opts Options) (*Result, error) {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	agentDef, err := r.store.GetAgent(ctx, userID, agentID)
	if err != nil {
		return nil, err
	}

	systemPrompt := agentDef.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}
	messages := []domain.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: query},
	}
	toolDefs := r.registry.Definitions(agentDef.Tools)

	result := &Result{AgentID: agentID, ToolCalls: []ToolCallRecord{}}
	started := time.Now()
	naturalStop := false

	for result.Iterations < opts.MaxIterations && time.Since(started) < opts.Timeout {
		result.Iterations++

		reply, err := r.complete(ctx, agentDef, messages, toolDefs, result)
		if err != nil {
			return nil, err
		}

		assistant := domain.Message{
			Role:      "assistant",
			Content:   reply.Content,
			ToolCalls: reply.ToolCalls,
		}
		messages = append(messages, assistant)

		if len(reply.ToolCalls) == 0 {
			result.FinalResponse = reply.Content
			naturalStop = true
			break
		}

		for _, call := range reply.ToolCalls {
			messages = append(messages, r.runToolCall(ctx, call, result))
		}
	}

	if !naturalStop {
		r.logger.Debug("iteration limit reached, forcing final answer",
			"agent", agentID, "iterations", result.Iterations)
		messages = append(messages, domain.Message{Role: "user", Content: finalAnswerPrompt})
		reply, err := r.complete(ctx, agentDef, messages, nil, result)
		if err != nil {
			return nil, err
		}
		result.FinalResponse = reply.Content
	}

	result.ElapsedMs = time.Since(started).Milliseconds()
	if opts.Verbose {
		r.logger.Info("agent execution finished",
			"agent", agentID,
			"iterations", result.Iterations,
			"tool_calls", len(result.ToolCalls),
			"tokens", result.Tokens.TotalTokens,
			"elapsed_ms", result.ElapsedMs)
	}
	return result, nil
}

// complete issues one chat completion and folds its token usage into the
// running result, estimating when the provider does not report usage.
func (r *Runner) complete(ctx context.Context, agentDef *domain.Agent, messages []domain.Message, toolDefs []domain.ToolDefinition, result *Result) (*domain.ChatResult, error) {
	reply, err := r.provider.CreateChatCompletion(ctx, domain.ChatRequest{
		Model:       agentDef.Model,
		Messages:    messages,
		Temperature: agentDef.Temperature,
		MaxTokens:   agentDef.MaxTokens,
		Tools:       toolDefs,
	})
	if err != nil {
		return nil, err
	}

	usage := reply.Usage
	if usage.TotalTokens == 0 {
		usage = estimateUsage(messages, reply.Content)
	}
	result.Tokens.Add(usage)
	return reply, nil
}

// runToolCall executes one requested tool call and returns the tool-role
// message to append to the conversation. Failures become error payloads.
func (r *Runner) runToolCall(ctx context.Context, call domain.ToolCall, result *Result) domain.Message {
	record := ToolCallRecord{
		Tool:   call.Function.Name,
		Params: call.Function.Arguments,
	}

	toolResult, err := r.registry.Execute(ctx, call.Function.Name, call.Function.Arguments)
	var payload any
	switch {
	case errors.Is(err, tools.ErrToolNotFound):
		record.Error = fmt.Sprintf("tool not found: %s", call.Function.Name)
		payload = map[string]any{"error": record.Error}
	case err != nil:
		record.Error = err.Error()
		payload = map[string]any{"error": err.Error()}
	default:
		record.Result = toolResult.Data
		payload = toolResult.Data
	}
	result.ToolCalls = append(result.ToolCalls, record)

	content, merr := json.Marshal(payload)
	if merr != nil {
		content = []byte(fmt.Sprintf("%v", payload))
	}
	return domain.Message{
		Role:       "tool",
		Content:    string(content),
		ToolCallID: call.ID,
	}
}
