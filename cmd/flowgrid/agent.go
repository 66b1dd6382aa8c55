package flowgrid

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/flowgrid/flowgrid/pkg/agent"
	"github.com/flowgrid/flowgrid/pkg/domain"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Manage and run agents",
}

var (
	agentName   string
	agentPrompt string
	agentModel  string
	agentTools  []string
	agentTemp   float64
)

var agentCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an agent definition",
	RunE: func(cmd *cobra.Command, args []string) error {
		if agentName == "" {
			return fmt.Errorf("--name is required")
		}

		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		model := agentModel
		if model == "" {
			model = cfg.Provider.Model
		}
		def := &domain.Agent{
			ID:           uuid.New().String(),
			UserID:       userID,
			Name:         agentName,
			SystemPrompt: agentPrompt,
			Model:        model,
			Temperature:  agentTemp,
			Tools:        agentTools,
		}
		if err := a.store.SaveAgent(cmd.Context(), def); err != nil {
			return err
		}
		fmt.Printf("Created agent %s (%s)\n", def.Name, def.ID)
		return nil
	},
}

var agentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List agents",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		agents, err := a.store.ListAgents(cmd.Context(), userID)
		if err != nil {
			return err
		}
		if len(agents) == 0 {
			fmt.Println("No agents found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tMODEL\tTOOLS")
		for _, ag := range agents {
			fmt.Fprintf(w, "%s\t%s\t%s\t%v\n", ag.ID, ag.Name, ag.Model, ag.Tools)
		}
		return w.Flush()
	},
}

var (
	agentMaxIterations int
	agentTimeoutSec    int
)

var agentRunCmd = &cobra.Command{
	Use:   "run <agent-id> <query>",
	Short: "Run an agent with a query",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		opts := agent.Options{
			MaxIterations: agentMaxIterations,
			Timeout:       time.Duration(agentTimeoutSec) * time.Second,
			Verbose:       verbose,
		}
		if opts.MaxIterations == 0 {
			opts.MaxIterations = cfg.Agent.MaxIterations
		}
		if agentTimeoutSec == 0 {
			opts.Timeout = time.Duration(cfg.Agent.TimeoutSec) * time.Second
		}

		result, err := a.runner.Execute(cmd.Context(), userID, args[0], args[1], opts)
		if err != nil {
			return err
		}

		fmt.Println(result.FinalResponse)
		if verbose {
			detail, _ := json.MarshalIndent(result, "", "  ")
			fmt.Fprintln(os.Stderr, string(detail))
		}
		return nil
	},
}

var agentDeleteCmd = &cobra.Command{
	Use:   "delete <agent-id>",
	Short: "Delete an agent",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.store.DeleteAgent(cmd.Context(), userID, args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted agent %s\n", args[0])
		return nil
	},
}

func init() {
	agentCreateCmd.Flags().StringVar(&agentName, "name", "", "agent name")
	agentCreateCmd.Flags().StringVar(&agentPrompt, "prompt", "", "system prompt")
	agentCreateCmd.Flags().StringVar(&agentModel, "model", "", "model override (default: provider.model)")
	agentCreateCmd.Flags().StringSliceVar(&agentTools, "tools", nil, "tools the agent may call (default: all)")
	agentCreateCmd.Flags().Float64Var(&agentTemp, "temperature", 0.7, "sampling temperature")

	agentRunCmd.Flags().IntVar(&agentMaxIterations, "max-iterations", 0, "tool-calling round budget")
	agentRunCmd.Flags().IntVar(&agentTimeoutSec, "timeout", 0, "execution timeout in seconds")

	agentCmd.AddCommand(agentCreateCmd)
	agentCmd.AddCommand(agentListCmd)
	agentCmd.AddCommand(agentRunCmd)
	agentCmd.AddCommand(agentDeleteCmd)
}
