// Package flowgrid implements the command line interface.
package flowgrid

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flowgrid/flowgrid/pkg/config"
	"github.com/flowgrid/flowgrid/pkg/log"
)

var (
	cfgFile string
	userID  string
	verbose bool
	cfg     *config.Config
	version = "dev"
)

var RootCmd = &cobra.Command{
	Use:   "flowgrid",
	Short: "FlowGrid - AI workflow execution engine",
	Long: `FlowGrid executes multi-step workflows that combine AI agents, embeddings,
supply chain optimization, data analysis and code generation into one
step graph with conditional branching and shared run context.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		log.SetDebug(verbose)
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return RootCmd.Execute()
}

// GetRootCmd returns the root cobra command.
func GetRootCmd() *cobra.Command {
	return RootCmd
}

// SetVersion sets the CLI version string.
func SetVersion(v string) {
	version = v
	RootCmd.Version = v
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("FlowGrid version %s\n", version)
	},
}

func init() {
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "configuration file path (default: ./flowgrid.toml or ~/.flowgrid/flowgrid.toml)")
	RootCmd.PersistentFlags().StringVar(&userID, "user", "default", "user scope for workflows and agents")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging output")

	RootCmd.AddCommand(versionCmd)
	RootCmd.AddCommand(initCmd)
	RootCmd.AddCommand(workflowCmd)
	RootCmd.AddCommand(agentCmd)
	RootCmd.AddCommand(serveCmd)
}
