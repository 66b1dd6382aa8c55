package flowgrid

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/flowgrid/flowgrid/pkg/scheduler"
	"github.com/flowgrid/flowgrid/pkg/workflow"
)

var workflowCmd = &cobra.Command{
	Use:   "workflow",
	Short: "Manage and run workflows",
}

var workflowImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a workflow definition from a YAML or JSON file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}

		var wf workflow.Workflow
		if err := yaml.Unmarshal(data, &wf); err != nil {
			return fmt.Errorf("failed to parse workflow: %w", err)
		}
		if wf.ID == "" {
			wf.ID = uuid.New().String()
		}
		wf.UserID = userID

		if err := workflow.Validate(&wf); err != nil {
			return err
		}

		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.store.SaveWorkflow(cmd.Context(), &wf); err != nil {
			return err
		}
		fmt.Printf("Imported workflow %s (%s) with %d steps\n", wf.Name, wf.ID, len(wf.Steps))
		return nil
	},
}

var workflowListCmd = &cobra.Command{
	Use:   "list",
	Short: "List workflows",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		workflows, err := a.store.ListWorkflows(cmd.Context(), userID)
		if err != nil {
			return err
		}
		if len(workflows) == 0 {
			fmt.Println("No workflows found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tSTEPS\tTRIGGER\tACTIVE")
		for _, wf := range workflows {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%v\n", wf.ID, wf.Name, len(wf.Steps), wf.TriggerType, wf.IsActive)
		}
		return w.Flush()
	},
}

var workflowInput string

var workflowRunCmd = &cobra.Command{
	Use:   "run <workflow-id>",
	Short: "Execute a workflow",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var input map[string]any
		if workflowInput != "" {
			if err := json.Unmarshal([]byte(workflowInput), &input); err != nil {
				return fmt.Errorf("failed to parse --input: %w", err)
			}
		}

		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.interpreter.Execute(cmd.Context(), userID, args[0], input)
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		if result.Status == workflow.RunFailed {
			return fmt.Errorf("run %s failed: %s", result.RunID, result.Error)
		}
		return nil
	},
}

var runsLimit int

var workflowRunsCmd = &cobra.Command{
	Use:   "runs <workflow-id>",
	Short: "Show recent runs of a workflow",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		runs, err := a.store.ListRuns(cmd.Context(), userID, args[0], runsLimit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("No runs found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "RUN\tSTATUS\tSTARTED\tDURATION\tERROR")
		for _, run := range runs {
			duration := "-"
			if run.EndTime != nil {
				duration = run.EndTime.Sub(run.StartTime).Round(time.Millisecond).String()
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				run.ID, run.Status, run.StartTime.Format("2006-01-02 15:04:05"), duration, run.Error)
		}
		return w.Flush()
	},
}

var workflowDeleteCmd = &cobra.Command{
	Use:   "delete <workflow-id>",
	Short: "Delete a workflow",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.store.DeleteWorkflow(cmd.Context(), userID, args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted workflow %s\n", args[0])
		return nil
	},
}

var workflowScheduleCmd = &cobra.Command{
	Use:   "schedule <workflow-id>",
	Short: "Show the schedule of a workflow",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		wf, err := a.store.GetWorkflow(cmd.Context(), userID, args[0])
		if err != nil {
			return err
		}
		expr := scheduler.ScheduleExpression(wf)
		if wf.TriggerType != workflow.TriggerSchedule || expr == "" {
			fmt.Printf("Workflow %s is not schedule-triggered.\n", wf.ID)
			return nil
		}
		fmt.Printf("Workflow %s runs on cron %q (active: %v)\n", wf.ID, expr, wf.IsActive)
		return nil
	},
}

func init() {
	workflowRunCmd.Flags().StringVar(&workflowInput, "input", "", "workflow input as a JSON object")
	workflowRunsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum number of runs to show")

	workflowCmd.AddCommand(workflowImportCmd)
	workflowCmd.AddCommand(workflowListCmd)
	workflowCmd.AddCommand(workflowRunCmd)
	workflowCmd.AddCommand(workflowRunsCmd)
	workflowCmd.AddCommand(workflowDeleteCmd)
	workflowCmd.AddCommand(workflowScheduleCmd)
}
