package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowgrid/flowgrid/pkg/domain"
	"github.com/flowgrid/flowgrid/pkg/workflow"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleWorkflow(id, userID string) *workflow.Workflow {
	return &workflow.Workflow{
		ID: id, UserID: userID, Name: "sample", EntryStepID: "a",
		TriggerType: workflow.TriggerManual, IsActive: true,
		Steps: []workflow.Step{
			{ID: "a", Type: workflow.StepCustom, NextSteps: []string{"b"}},
			{ID: "b", Type: workflow.StepCustom},
		},
	}
}

func TestWorkflowRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	wf := sampleWorkflow("wf-1", "u1")
	require.NoError(t, s.SaveWorkflow(ctx, wf))

	loaded, err := s.GetWorkflow(ctx, "u1", "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "sample", loaded.Name)
	assert.Equal(t, "a", loaded.EntryStepID)
	assert.Len(t, loaded.Steps, 2)

	// Save again with a changed name: must replace, not duplicate.
	wf.Name = "renamed"
	require.NoError(t, s.SaveWorkflow(ctx, wf))
	all, err := s.ListWorkflows(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "renamed", all[0].Name)
}

func TestWorkflowScopedToOwner(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SaveWorkflow(ctx, sampleWorkflow("wf-1", "u1")))

	_, err := s.GetWorkflow(ctx, "u2", "wf-1")
	assert.ErrorIs(t, err, domain.ErrWorkflowNotFound)
}

func TestListScheduledWorkflows(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	manual := sampleWorkflow("wf-m", "u1")
	require.NoError(t, s.SaveWorkflow(ctx, manual))

	scheduled := sampleWorkflow("wf-s", "u1")
	scheduled.TriggerType = workflow.TriggerSchedule
	scheduled.TriggerConfig = map[string]any{"cron": "0 * * * *"}
	require.NoError(t, s.SaveWorkflow(ctx, scheduled))

	inactive := sampleWorkflow("wf-i", "u1")
	inactive.TriggerType = workflow.TriggerSchedule
	inactive.IsActive = false
	require.NoError(t, s.SaveWorkflow(ctx, inactive))

	got, err := s.ListScheduledWorkflows(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "wf-s", got[0].ID)
}

func TestRunLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	run := &workflow.Run{
		ID: "run-1", WorkflowID: "wf-1", UserID: "u1",
		Status: workflow.RunPending, StartTime: time.Now(),
	}
	require.NoError(t, s.CreateRun(ctx, run))

	end := time.Now()
	run.Status = workflow.RunCompleted
	run.EndTime = &end
	run.Results = map[string]any{"step1": map[string]any{"count": float64(3)}}
	require.NoError(t, s.UpdateRun(ctx, run))

	loaded, err := s.GetRun(ctx, "u1", "run-1")
	require.NoError(t, err)
	assert.Equal(t, workflow.RunCompleted, loaded.Status)
	require.NotNil(t, loaded.EndTime)
	step1 := loaded.Results["step1"].(map[string]any)
	assert.Equal(t, float64(3), step1["count"])
}

func TestUpdateUnknownRun(t *testing.T) {
	s := openTestStore(t)

	err := s.UpdateRun(context.Background(), &workflow.Run{ID: "ghost", Status: workflow.RunFailed})
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
}

func TestListRunsNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Now()
	for i, id := range []string{"run-a", "run-b", "run-c"} {
		require.NoError(t, s.CreateRun(ctx, &workflow.Run{
			ID: id, WorkflowID: "wf-1", UserID: "u1",
			Status: workflow.RunCompleted, StartTime: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	runs, err := s.ListRuns(ctx, "u1", "wf-1", 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-c", runs[0].ID)
	assert.Equal(t, "run-b", runs[1].ID)
}

func TestAgentRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	agent := &domain.Agent{
		ID: "ag-1", UserID: "u1", Name: "analyst",
		SystemPrompt: "You analyze supply chains.",
		Model:        "gpt-4o-mini", Temperature: 0.2, MaxTokens: 2048,
		Tools: []string{"data_analysis", "supply_chain"},
	}
	require.NoError(t, s.SaveAgent(ctx, agent))

	loaded, err := s.GetAgent(ctx, "u1", "ag-1")
	require.NoError(t, err)
	assert.Equal(t, "analyst", loaded.Name)
	assert.Equal(t, []string{"data_analysis", "supply_chain"}, loaded.Tools)

	_, err = s.GetAgent(ctx, "u1", "ghost")
	assert.ErrorIs(t, err, domain.ErrAgentNotFound)

	require.NoError(t, s.DeleteAgent(ctx, "u1", "ag-1"))
	_, err = s.GetAgent(ctx, "u1", "ag-1")
	assert.ErrorIs(t, err, domain.ErrAgentNotFound)
}

func TestTableStoreFilters(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	n, err := s.InsertRows(ctx, "orders", []map[string]any{
		{"id": "1", "region": "east", "amount": float64(100)},
		{"id": "2", "region": "west", "amount": float64(40)},
		{"id": "3", "region": "eastern-eu", "amount": float64(250)},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	rows, err := s.QueryRows(ctx, "orders", []domain.Filter{
		{Field: "amount", Op: domain.OpGte, Value: float64(100)},
	})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = s.QueryRows(ctx, "orders", []domain.Filter{
		{Field: "region", Op: domain.OpLike, Value: "east%"},
	})
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = s.QueryRows(ctx, "orders", []domain.Filter{
		{Field: "id", Op: domain.OpIn, Value: []any{"1", "3"}},
		{Field: "amount", Op: domain.OpGt, Value: float64(200)},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "3", rows[0]["id"])

	// Unknown table yields no rows, not an error.
	rows, err = s.QueryRows(ctx, "ghost", nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestTableStoreUpdateUpsertDelete(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.InsertRows(ctx, "items", []map[string]any{
		{"id": "a", "qty": float64(1)},
	})
	require.NoError(t, err)

	n, err := s.UpdateRows(ctx, "items", []map[string]any{
		{"id": "a", "qty": float64(5)},
		{"id": "ghost", "qty": float64(9)},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.UpsertRows(ctx, "items", []map[string]any{
		{"id": "a", "qty": float64(7)},
		{"id": "b", "qty": float64(2)},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rows, err := s.QueryRows(ctx, "items", nil)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	for _, row := range rows {
		if row["id"] == "a" {
			assert.Equal(t, float64(7), row["qty"])
		}
	}

	n, err = s.DeleteRows(ctx, "items", []map[string]any{{"id": "a"}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rows, err = s.QueryRows(ctx, "items", nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "b", rows[0]["id"])
}

func TestEmbeddingSearchRankedByCosine(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	docs := []domain.EmbeddingDocument{
		{ID: "d1", UserID: "u1", Collection: "docs", Content: "alpha", Vector: []float64{1, 0, 0}},
		{ID: "d2", UserID: "u1", Collection: "docs", Content: "beta", Vector: []float64{0.9, 0.1, 0}, Metadata: map[string]any{"lang": "en"}},
		{ID: "d3", UserID: "u1", Collection: "docs", Content: "gamma", Vector: []float64{0, 1, 0}},
		{ID: "d4", UserID: "u2", Collection: "docs", Content: "other user", Vector: []float64{1, 0, 0}},
	}
	require.NoError(t, s.InsertEmbeddings(ctx, docs))

	matches, err := s.SearchEmbeddings(ctx, "u1", "docs", []float64{1, 0, 0}, 2, 0.5)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, "d1", matches[0].ID)
	assert.InDelta(t, 1.0, matches[0].Similarity, 1e-9)
	assert.Equal(t, "d2", matches[1].ID)
	assert.Equal(t, "en", matches[1].Metadata["lang"])

	// Threshold excludes the orthogonal document entirely.
	matches, err = s.SearchEmbeddings(ctx, "u1", "docs", []float64{1, 0, 0}, 10, 0.5)
	require.NoError(t, err)
	assert.Len(t, matches, 2)
}
