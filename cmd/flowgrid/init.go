package flowgrid

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/flowgrid/flowgrid/pkg/config"
)

var initHome string

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.WriteDefault(initHome)
		if err != nil {
			return err
		}
		fmt.Printf("Configuration written to %s\n", path)
		fmt.Println("Set provider.api_key (or FLOWGRID_PROVIDER_API_KEY) before running workflows.")
		return nil
	},
}

func init() {
	initCmd.Flags().StringVar(&initHome, "home", "~/.flowgrid", "directory for configuration and data")
}
