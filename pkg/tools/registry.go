package tools

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/flowgrid/flowgrid/pkg/domain"
	"github.com/flowgrid/flowgrid/pkg/log"
)

var ErrToolNotFound = errors.New("tool not found")

// Registry holds the named tools available to agents. It is populated before
// execution starts and treated as read-only while a run is in flight.
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	limiter *rate.Limiter
}

// RegistryConfig bounds tool call throughput across the registry.
type RegistryConfig struct {
	CallsPerMinute int `mapstructure:"calls_per_minute"`
	BurstSize      int `mapstructure:"burst_size"`
}

// DefaultRegistryConfig returns the standard throughput bounds.
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{CallsPerMinute: 60, BurstSize: 10}
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	var limiter *rate.Limiter
	if cfg.CallsPerMinute > 0 {
		burst := cfg.BurstSize
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.CallsPerMinute)), burst)
	}
	return &Registry{
		tools:   make(map[string]Tool),
		limiter: limiter,
	}
}

// Register adds a tool. Duplicate names are rejected.
func (r *Registry) Register(tool Tool) error {
	if tool == nil {
		return fmt.Errorf("tool cannot be nil")
	}
	name := tool.Name()
	if name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}
	r.tools[name] = tool
	log.Debug("registered tool", "tool", name)
	return nil
}

// Get returns the tool registered under name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Names lists registered tool names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// Definitions returns the model-facing schemas for the named tools. An empty
// filter returns every registered tool.
func (r *Registry) Definitions(filter []string) []domain.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var defs []domain.ToolDefinition
	if len(filter) == 0 {
		for _, tool := range r.tools {
			defs = append(defs, Definition(tool))
		}
		return defs
	}
	for _, name := range filter {
		if tool, ok := r.tools[name]; ok {
			defs = append(defs, Definition(tool))
		}
	}
	return defs
}

// Execute dispatches one named tool call, applying the registry rate limit.
// A missing tool returns ErrToolNotFound; a tool error is returned as-is so
// the caller can decide whether to absorb it.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (*ToolResult, error) {
	tool, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	started := time.Now()
	result, err := tool.Execute(ctx, args)
	if err != nil {
		log.Debug("tool execution failed", "tool", name, "elapsed", time.Since(started), "error", err)
		return nil, err
	}
	log.Debug("tool executed", "tool", name, "elapsed", time.Since(started))
	return result, nil
}
