package flowgrid

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run schedule-triggered workflows until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.scheduler.Start(cmd.Context()); err != nil {
			return err
		}
		defer a.scheduler.Stop()

		fmt.Println("Scheduler running. Press Ctrl+C to stop.")
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
		<-stop
		fmt.Println("Shutting down.")
		return nil
	},
}
