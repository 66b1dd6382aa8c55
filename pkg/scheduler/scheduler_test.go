package scheduler

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgrid/flowgrid/pkg/workflow"
)

type fakeSource struct {
	workflows []*workflow.Workflow
}

func (f *fakeSource) ListScheduledWorkflows(context.Context) ([]*workflow.Workflow, error) {
	return f.workflows, nil
}

type recordingRunner struct {
	mu       sync.Mutex
	executed []string
	inputs   []map[string]any
}

func (r *recordingRunner) Execute(_ context.Context, _, workflowID string, input map[string]any) (*workflow.ExecutionResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executed = append(r.executed, workflowID)
	r.inputs = append(r.inputs, input)
	return &workflow.ExecutionResult{WorkflowID: workflowID, Status: workflow.RunCompleted}, nil
}

func scheduledWorkflow(id, expr string) *workflow.Workflow {
	return &workflow.Workflow{
		ID: id, UserID: "u1", Name: id,
		TriggerType:   workflow.TriggerSchedule,
		TriggerConfig: map[string]any{"cron": expr},
	}
}

func TestRegisterAndUnregister(t *testing.T) {
	s := New(&fakeSource{}, &recordingRunner{})

	require.NoError(t, s.Register(scheduledWorkflow("wf-1", "@hourly")))
	assert.True(t, s.Scheduled("wf-1"))

	// Re-registering replaces the entry instead of stacking a second one.
	require.NoError(t, s.Register(scheduledWorkflow("wf-1", "*/5 * * * *")))
	assert.True(t, s.Scheduled("wf-1"))

	s.Unregister("wf-1")
	assert.False(t, s.Scheduled("wf-1"))
}

func TestRegisterRejectsBadExpression(t *testing.T) {
	s := New(&fakeSource{}, &recordingRunner{})

	err := s.Register(scheduledWorkflow("wf-1", "not a cron"))
	require.Error(t, err)
	assert.False(t, s.Scheduled("wf-1"))

	err = s.Register(&workflow.Workflow{ID: "wf-2", TriggerType: workflow.TriggerSchedule})
	assert.Error(t, err)
}

func TestStartRegistersStoredWorkflows(t *testing.T) {
	source := &fakeSource{workflows: []*workflow.Workflow{
		scheduledWorkflow("wf-a", "@daily"),
		scheduledWorkflow("wf-bad", "nope"),
	}}
	s := New(source, &recordingRunner{})

	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	assert.True(t, s.Scheduled("wf-a"))
	assert.False(t, s.Scheduled("wf-bad"))
}

func TestRunWorkflowPassesTriggerInput(t *testing.T) {
	runner := &recordingRunner{}
	s := New(&fakeSource{}, runner)

	wf := scheduledWorkflow("wf-1", "@hourly")
	wf.TriggerConfig["input"] = map[string]any{"source": "schedule"}
	s.runWorkflow(wf)

	require.Len(t, runner.executed, 1)
	assert.Equal(t, "wf-1", runner.executed[0])
	assert.Equal(t, "schedule", runner.inputs[0]["source"])
}

func TestScheduleExpression(t *testing.T) {
	assert.Equal(t, "", ScheduleExpression(&workflow.Workflow{}))
	assert.Equal(t, "@hourly", ScheduleExpression(scheduledWorkflow("x", "@hourly")))
}
