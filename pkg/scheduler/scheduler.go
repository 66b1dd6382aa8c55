// Package scheduler runs schedule-triggered workflows on their cron
// expressions.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/flowgrid/flowgrid/pkg/log"
	"github.com/flowgrid/flowgrid/pkg/workflow"
)

// Runner executes one workflow; implemented by workflow.Interpreter.
type Runner interface {
	Execute(ctx context.Context, userID, workflowID string, input map[string]any) (*workflow.ExecutionResult, error)
}

// Source lists the workflows that should be scheduled; implemented by
// store.Store.
type Source interface {
	ListScheduledWorkflows(ctx context.Context) ([]*workflow.Workflow, error)
}

// runTimeout bounds one scheduled execution.
const runTimeout = 10 * time.Minute

// Scheduler keeps one cron entry per active schedule-triggered workflow.
type Scheduler struct {
	cron   *cron.Cron
	source Source
	runner Runner
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

// New creates a stopped scheduler.
func New(source Source, runner Runner) *Scheduler {
	parser := cron.NewParser(
		cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
	)
	return &Scheduler{
		cron:    cron.New(cron.WithParser(parser)),
		source:  source,
		runner:  runner,
		logger:  log.WithModule("scheduler"),
		entries: make(map[string]cron.EntryID),
	}
}

// Start registers every stored schedule-triggered workflow and starts the
// cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	workflows, err := s.source.ListScheduledWorkflows(ctx)
	if err != nil {
		return fmt.Errorf("load scheduled workflows: %w", err)
	}
	for _, wf := range workflows {
		if err := s.Register(wf); err != nil {
			s.logger.Error("skip workflow with bad schedule", "workflow", wf.ID, "error", err)
		}
	}
	s.cron.Start()
	s.logger.Info("scheduler started", "workflows", len(s.entries))
	return nil
}

// Stop halts the cron loop and waits for in-flight jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// Register adds or replaces the cron entry for a workflow. The expression
// comes from trigger_config.cron.
func (s *Scheduler) Register(wf *workflow.Workflow) error {
	expr := ScheduleExpression(wf)
	if expr == "" {
		return fmt.Errorf("workflow %s has no cron expression", wf.ID)
	}

	job := func() { s.runWorkflow(wf) }
	entryID, err := s.cron.AddFunc(expr, job)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}

	s.mu.Lock()
	if old, ok := s.entries[wf.ID]; ok {
		s.cron.Remove(old)
	}
	s.entries[wf.ID] = entryID
	s.mu.Unlock()

	s.logger.Debug("workflow scheduled", "workflow", wf.ID, "cron", expr)
	return nil
}

// Unregister removes a workflow's cron entry if present.
func (s *Scheduler) Unregister(workflowID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entryID, ok := s.entries[workflowID]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, workflowID)
	}
}

// Scheduled reports whether a workflow currently has a cron entry.
func (s *Scheduler) Scheduled(workflowID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[workflowID]
	return ok
}

func (s *Scheduler) runWorkflow(wf *workflow.Workflow) {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	input, _ := wf.TriggerConfig["input"].(map[string]any)
	result, err := s.runner.Execute(ctx, wf.UserID, wf.ID, input)
	if err != nil {
		s.logger.Error("scheduled run failed to start", "workflow", wf.ID, "error", err)
		return
	}
	if result.Status == workflow.RunFailed {
		s.logger.Error("scheduled run failed", "workflow", wf.ID, "run", result.RunID, "error", result.Error)
		return
	}
	s.logger.Info("scheduled run completed", "workflow", wf.ID, "run", result.RunID)
}

// ScheduleExpression extracts the cron expression from a workflow's trigger
// configuration.
func ScheduleExpression(wf *workflow.Workflow) string {
	if wf.TriggerConfig == nil {
		return ""
	}
	expr, _ := wf.TriggerConfig["cron"].(string)
	return expr
}
