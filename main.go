package main

import (
	"fmt"
	"os"

	cmd "github.com/flowgrid/flowgrid/cmd/flowgrid"
)

var version = "dev"

func main() {
	cmd.SetVersion(version)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
