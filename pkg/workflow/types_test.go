package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgrid/flowgrid/pkg/domain"
)

func linearWorkflow() *Workflow {
	return &Workflow{
		ID:          "wf-1",
		Name:        "linear",
		EntryStepID: "a",
		Steps: []Step{
			{ID: "a", Type: StepCustom, NextSteps: []string{"b"}},
			{ID: "b", Type: StepCustom},
		},
	}
}

func TestValidateAcceptsLinearGraph(t *testing.T) {
	assert.NoError(t, Validate(linearWorkflow()))
}

func TestValidateRejectsBadGraphs(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(w *Workflow)
	}{
		{"missing name", func(w *Workflow) { w.Name = "" }},
		{"no steps", func(w *Workflow) { w.Steps = nil }},
		{"duplicate step id", func(w *Workflow) {
			w.Steps = append(w.Steps, Step{ID: "a", Type: StepCustom})
		}},
		{"empty step id", func(w *Workflow) { w.Steps[1].ID = "" }},
		{"dangling next step", func(w *Workflow) { w.Steps[0].NextSteps = []string{"ghost"} }},
		{"unknown step type", func(w *Workflow) { w.Steps[1].Type = "teleport" }},
		{"unknown operator", func(w *Workflow) {
			w.Steps[0].Condition = &Condition{Field: "x", Operator: "~="}
		}},
		{"fan-out without condition", func(w *Workflow) {
			w.Steps[0].NextSteps = []string{"b", "c"}
			w.Steps = append(w.Steps, Step{ID: "c", Type: StepCustom})
		}},
		{"entry step does not exist", func(w *Workflow) { w.EntryStepID = "ghost" }},
		{"unreachable step", func(w *Workflow) {
			w.Steps = append(w.Steps, Step{ID: "island", Type: StepCustom})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := linearWorkflow()
			tt.mutate(w)
			err := Validate(w)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrMalformedWorkflow)
		})
	}
}

func TestValidateAcceptsConditionalFanOut(t *testing.T) {
	w := linearWorkflow()
	w.Steps[0].NextSteps = []string{"b", "c"}
	w.Steps[0].Condition = &Condition{Field: "valid", Operator: "==", Value: true}
	w.Steps = append(w.Steps, Step{ID: "c", Type: StepCustom})

	assert.NoError(t, Validate(w))
}

func TestResolveEntryStepInference(t *testing.T) {
	w := linearWorkflow()
	w.EntryStepID = ""

	entry, err := resolveEntryStep(w)
	require.NoError(t, err)
	assert.Equal(t, "a", entry)
}

func TestResolveEntryStepAmbiguous(t *testing.T) {
	w := &Workflow{
		Name: "two roots",
		Steps: []Step{
			{ID: "a", Type: StepCustom, NextSteps: []string{"c"}},
			{ID: "b", Type: StepCustom, NextSteps: []string{"c"}},
			{ID: "c", Type: StepCustom},
		},
	}

	_, err := resolveEntryStep(w)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMalformedWorkflow)
}

func TestResolveEntryStepAllReferenced(t *testing.T) {
	w := &Workflow{
		Name: "ring",
		Steps: []Step{
			{ID: "a", Type: StepCustom, NextSteps: []string{"b"}},
			{ID: "b", Type: StepCustom, NextSteps: []string{"a"}},
		},
	}

	_, err := resolveEntryStep(w)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMalformedWorkflow)
}
