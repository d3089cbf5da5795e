package main

import (
	"fmt"
	"os"

	"github.com/emberforge/furnace/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "furnace: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
