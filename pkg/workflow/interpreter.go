package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/flowgrid/flowgrid/pkg/domain"
	"github.com/flowgrid/flowgrid/pkg/log"
)

// Interpreter walks a workflow graph step by step, dispatching each step to
// the handler registered for its type. One run is one strictly sequential
// thread of control; the run context is owned exclusively by that run.
type Interpreter struct {
	storage  Storage
	handlers map[StepType]Handler
	logger   interface {
		Debug(msg string, args ...any)
		Info(msg string, args ...any)
		Error(msg string, args ...any)
	}
}

// NewInterpreter creates an interpreter over the given storage. Handlers are
// registered per step type before the first run.
func NewInterpreter(storage Storage) *Interpreter {
	return &Interpreter{
		storage:  storage,
		handlers: make(map[StepType]Handler),
		logger:   log.WithModule("workflow"),
	}
}

// RegisterHandler binds a handler to a step type.
func (in *Interpreter) RegisterHandler(stepType StepType, handler Handler) {
	in.handlers[stepType] = handler
}

// Execute runs one workflow to completion. It always returns a structured
// result; a step failure yields status "failed" with the partial results
// accumulated before the failing step.
func (in *Interpreter) Execute(ctx context.Context, userID, workflowID string, input map[string]any) (*ExecutionResult, error) {
	wf, err := in.storage.GetWorkflow(ctx, userID, workflowID)
	if err != nil {
		return nil, err
	}
	if err := Validate(wf); err != nil {
		return nil, err
	}
	entry, err := resolveEntryStep(wf)
	if err != nil {
		return nil, err
	}

	run := &Run{
		ID:         uuid.New().String(),
		WorkflowID: wf.ID,
		UserID:     userID,
		Status:     RunPending,
		StartTime:  time.Now(),
	}
	if err := in.storage.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}

	rc := &RunContext{
		WorkflowID:     wf.ID,
		RunID:          run.ID,
		UserID:         userID,
		Input:          input,
		Results:        make(map[string]any),
		CurrentStep:    entry,
		CompletedSteps: []string{},
	}

	run.Status = RunRunning
	if err := in.storage.UpdateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("mark run running: %w", err)
	}
	in.logger.Info("run started", "workflow", wf.ID, "run", run.ID, "entry", entry)

	started := time.Now()
	stepErr := in.walk(ctx, wf, rc)
	elapsed := time.Since(started)
	endTime := time.Now()
	run.EndTime = &endTime
	run.Results = rc.Results

	result := &ExecutionResult{
		WorkflowID:    wf.ID,
		RunID:         run.ID,
		Results:       rc.Results,
		ExecutionTime: elapsed,
	}

	if stepErr != nil {
		rc.Error = stepErr.Error()
		run.Status = RunFailed
		run.Error = rc.Error
		result.Status = RunFailed
		result.Error = rc.Error
		in.logger.Error("run failed", "workflow", wf.ID, "run", run.ID, "error", stepErr)
	} else {
		run.Status = RunCompleted
		result.Status = RunCompleted
		in.logger.Info("run completed", "workflow", wf.ID, "run", run.ID,
			"steps", len(rc.CompletedSteps), "elapsed", elapsed)
	}

	if err := in.storage.UpdateRun(ctx, run); err != nil {
		in.logger.Error("persist terminal run state", "run", run.ID, "error", err)
	}
	return result, nil
}

// walk executes steps from the current step until the chain terminates.
// A step id revisited within the same run is a cycle and fails the run.
func (in *Interpreter) walk(ctx context.Context, wf *Workflow, rc *RunContext) error {
	visited := make(map[string]struct{})

	for rc.CurrentStep != "" {
		stepID := rc.CurrentStep
		if _, seen := visited[stepID]; seen {
			return fmt.Errorf("%w: step %q revisited", domain.ErrCycleDetected, stepID)
		}
		visited[stepID] = struct{}{}

		step, ok := wf.Step(stepID)
		if !ok {
			return fmt.Errorf("%w: step %q not found", domain.ErrMalformedWorkflow, stepID)
		}

		handler, ok := in.handlers[step.Type]
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrUnsupportedStep, step.Type)
		}

		in.logger.Debug("executing step", "run", rc.RunID, "step", stepID, "type", step.Type)
		result, err := handler.Execute(ctx, step.Config, rc)
		if err != nil {
			return fmt.Errorf("%w: step %q: %v", domain.ErrStepFailed, stepID, err)
		}

		rc.Results[stepID] = result
		rc.CompletedSteps = append(rc.CompletedSteps, stepID)

		next, err := findNextStep(step, rc)
		if err != nil {
			return fmt.Errorf("%w: step %q: %v", domain.ErrStepFailed, stepID, err)
		}
		rc.CurrentStep = next
	}
	return nil
}

// findNextStep resolves the branch after a completed step. With a condition,
// true selects next_steps[0] and false selects next_steps[1] (or terminates
// when absent). A single unconditioned next step is taken as-is.
func findNextStep(step *Step, rc *RunContext) (string, error) {
	if len(step.NextSteps) == 0 {
		return "", nil
	}
	if step.Condition == nil {
		return step.NextSteps[0], nil
	}

	matched, err := evaluateCondition(step.Condition, rc.Results[step.ID])
	if err != nil {
		return "", err
	}
	if matched {
		return step.NextSteps[0], nil
	}
	if len(step.NextSteps) > 1 {
		return step.NextSteps[1], nil
	}
	return "", nil
}

// evaluateCondition tests the condition field of the step's own result.
func evaluateCondition(cond *Condition, result any) (bool, error) {
	m, ok := toMap(result)
	if !ok {
		return false, fmt.Errorf("step result is not inspectable for condition field %q", cond.Field)
	}
	actual := m[cond.Field]

	switch cond.Operator {
	case "==":
		return looseEqual(actual, cond.Value), nil
	case "!=":
		return !looseEqual(actual, cond.Value), nil
	case ">", "<", ">=", "<=":
		a, aok := toNumber(actual)
		b, bok := toNumber(cond.Value)
		if !aok || !bok {
			return false, fmt.Errorf("operator %q requires numeric operands", cond.Operator)
		}
		switch cond.Operator {
		case ">":
			return a > b, nil
		case "<":
			return a < b, nil
		case ">=":
			return a >= b, nil
		default:
			return a <= b, nil
		}
	case "contains":
		return contains(actual, cond.Value), nil
	case "not_contains":
		return !contains(actual, cond.Value), nil
	default:
		return false, fmt.Errorf("unsupported operator %q", cond.Operator)
	}
}

// looseEqual compares across the numeric types JSON decoding produces.
func looseEqual(a, b any) bool {
	if af, aok := toNumber(a); aok {
		if bf, bok := toNumber(b); bok {
			return af == bf
		}
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

// contains implements substring match for strings and membership for arrays.
func contains(haystack, needle any) bool {
	switch h := haystack.(type) {
	case string:
		return strings.Contains(h, fmt.Sprintf("%v", needle))
	case []any:
		for _, item := range h {
			if looseEqual(item, needle) {
				return true
			}
		}
		return false
	case []string:
		for _, item := range h {
			if item == fmt.Sprintf("%v", needle) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
