// Package workflow implements the step-graph interpreter: definitions,
// graph validation, variable substitution, step dispatch, branch resolution
// and run persistence.
package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/flowgrid/flowgrid/pkg/domain"
)

// StepType selects which handler executes a step.
type StepType string

const (
	StepAgent        StepType = "agent"
	StepEmbedding    StepType = "embedding"
	StepSupplyChain  StepType = "supply_chain"
	StepCodeGen      StepType = "code_generation"
	StepDataAnalysis StepType = "data_analysis"
	StepCustom       StepType = "custom"
)

// TriggerType describes how a workflow is started.
type TriggerType string

const (
	TriggerManual   TriggerType = "manual"
	TriggerSchedule TriggerType = "schedule"
	TriggerWebhook  TriggerType = "webhook"
)

// Condition is a branch test evaluated against the step's own result.
type Condition struct {
	Field    string `json:"field" yaml:"field"`
	Operator string `json:"operator" yaml:"operator"`
	Value    any    `json:"value" yaml:"value"`
}

// Step is one unit of work in a workflow graph.
type Step struct {
	ID        string         `json:"id" yaml:"id"`
	Type      StepType       `json:"type" yaml:"type"`
	Name      string         `json:"name" yaml:"name"`
	Config    map[string]any `json:"config" yaml:"config"`
	NextSteps []string       `json:"next_steps" yaml:"next_steps"`
	Condition *Condition     `json:"condition,omitempty" yaml:"condition,omitempty"`
}

// Workflow is a validated, immutable-during-run step graph.
type Workflow struct {
	ID            string         `json:"id" yaml:"id"`
	UserID        string         `json:"user_id" yaml:"user_id"`
	Name          string         `json:"name" yaml:"name"`
	EntryStepID   string         `json:"entry_step_id" yaml:"entry_step_id"`
	Steps         []Step         `json:"steps" yaml:"steps"`
	TriggerType   TriggerType    `json:"trigger_type" yaml:"trigger_type"`
	TriggerConfig map[string]any `json:"trigger_config,omitempty" yaml:"trigger_config,omitempty"`
	IsActive      bool           `json:"is_active" yaml:"is_active"`
	CreatedAt     time.Time      `json:"created_at" yaml:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at" yaml:"updated_at"`
}

// Step returns the step with the given id.
func (w *Workflow) Step(id string) (*Step, bool) {
	for i := range w.Steps {
		if w.Steps[i].ID == id {
			return &w.Steps[i], true
		}
	}
	return nil, false
}

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Run is the durable audit record of one workflow execution.
type Run struct {
	ID         string         `json:"id"`
	WorkflowID string         `json:"workflow_id"`
	UserID     string         `json:"user_id"`
	Status     RunStatus      `json:"status"`
	StartTime  time.Time      `json:"start_time"`
	EndTime    *time.Time     `json:"end_time,omitempty"`
	Results    map[string]any `json:"results,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// RunContext is the per-run scratchpad threaded through step execution. It
// is exclusively owned by the single in-flight run.
type RunContext struct {
	WorkflowID     string         `json:"workflow_id"`
	RunID          string         `json:"run_id"`
	UserID         string         `json:"user_id"`
	Input          map[string]any `json:"input"`
	Results        map[string]any `json:"results"`
	CurrentStep    string         `json:"current_step"`
	CompletedSteps []string       `json:"completed_steps"`
	Error          string         `json:"error,omitempty"`
}

// ExecutionResult is what callers receive from Execute.
type ExecutionResult struct {
	WorkflowID    string         `json:"workflow_id"`
	RunID         string         `json:"run_id"`
	Status        RunStatus      `json:"status"`
	Results       map[string]any `json:"results"`
	Error         string         `json:"error,omitempty"`
	ExecutionTime time.Duration  `json:"execution_time"`
}

// Storage persists workflow definitions and run records.
type Storage interface {
	GetWorkflow(ctx context.Context, userID, workflowID string) (*Workflow, error)
	CreateRun(ctx context.Context, run *Run) error
	UpdateRun(ctx context.Context, run *Run) error
}

// Handler executes one step type against the live run context.
type Handler interface {
	Execute(ctx context.Context, config map[string]any, rc *RunContext) (any, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, config map[string]any, rc *RunContext) (any, error)

func (f HandlerFunc) Execute(ctx context.Context, config map[string]any, rc *RunContext) (any, error) {
	return f(ctx, config, rc)
}

var conditionOperators = map[string]struct{}{
	"==": {}, "!=": {}, ">": {}, "<": {}, ">=": {}, "<=": {},
	"contains": {}, "not_contains": {},
}

// Validate checks the graph shape: unique step ids, resolvable next_steps
// and entry step, known operators, and no unconditioned fan-out. A graph
// that fails validation is rejected before any run starts.
func Validate(w *Workflow) error {
	if w.Name == "" {
		return fmt.Errorf("%w: name is required", domain.ErrMalformedWorkflow)
	}
	if len(w.Steps) == 0 {
		return fmt.Errorf("%w: at least one step is required", domain.ErrMalformedWorkflow)
	}

	ids := make(map[string]struct{}, len(w.Steps))
	for _, step := range w.Steps {
		if step.ID == "" {
			return fmt.Errorf("%w: step with empty id", domain.ErrMalformedWorkflow)
		}
		if _, dup := ids[step.ID]; dup {
			return fmt.Errorf("%w: duplicate step id %q", domain.ErrMalformedWorkflow, step.ID)
		}
		ids[step.ID] = struct{}{}
	}

	for _, step := range w.Steps {
		for _, next := range step.NextSteps {
			if _, ok := ids[next]; !ok {
				return fmt.Errorf("%w: step %q references unknown step %q", domain.ErrMalformedWorkflow, step.ID, next)
			}
		}
		if len(step.NextSteps) > 1 && step.Condition == nil {
			return fmt.Errorf("%w: step %q has multiple next steps but no condition", domain.ErrMalformedWorkflow, step.ID)
		}
		if step.Condition != nil {
			if _, ok := conditionOperators[step.Condition.Operator]; !ok {
				return fmt.Errorf("%w: step %q uses unsupported operator %q", domain.ErrMalformedWorkflow, step.ID, step.Condition.Operator)
			}
		}
		switch step.Type {
		case StepAgent, StepEmbedding, StepSupplyChain, StepCodeGen, StepDataAnalysis, StepCustom:
		default:
			return fmt.Errorf("%w: step %q has unknown type %q", domain.ErrMalformedWorkflow, step.ID, step.Type)
		}
	}

	entry, err := resolveEntryStep(w)
	if err != nil {
		return err
	}

	// Every step must be reachable from the entry.
	reachable := make(map[string]struct{})
	var walk func(id string)
	walk = func(id string) {
		if _, seen := reachable[id]; seen {
			return
		}
		reachable[id] = struct{}{}
		if step, ok := w.Step(id); ok {
			for _, next := range step.NextSteps {
				walk(next)
			}
		}
	}
	walk(entry)
	for id := range ids {
		if _, ok := reachable[id]; !ok {
			return fmt.Errorf("%w: step %q is unreachable from entry %q", domain.ErrMalformedWorkflow, id, entry)
		}
	}

	return nil
}

// resolveEntryStep returns the explicit entry_step_id when set; otherwise it
// falls back to inferring the one step no other step points at.
func resolveEntryStep(w *Workflow) (string, error) {
	if w.EntryStepID != "" {
		if _, ok := w.Step(w.EntryStepID); !ok {
			return "", fmt.Errorf("%w: entry step %q does not exist", domain.ErrMalformedWorkflow, w.EntryStepID)
		}
		return w.EntryStepID, nil
	}

	referenced := make(map[string]struct{})
	for _, step := range w.Steps {
		for _, next := range step.NextSteps {
			referenced[next] = struct{}{}
		}
	}
	var candidates []string
	for _, step := range w.Steps {
		if _, ok := referenced[step.ID]; !ok {
			candidates = append(candidates, step.ID)
		}
	}
	switch len(candidates) {
	case 1:
		return candidates[0], nil
	case 0:
		return "", fmt.Errorf("%w: no entry step (every step is referenced)", domain.ErrMalformedWorkflow)
	default:
		return "", fmt.Errorf("%w: ambiguous entry step, set entry_step_id (candidates: %v)", domain.ErrMalformedWorkflow, candidates)
	}
}
