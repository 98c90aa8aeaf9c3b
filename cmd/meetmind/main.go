package main

import (
	"fmt"
	"os"

	"github.com/cloo-solutions/meetmind/internal/cli"
	"github.com/cloo-solutions/meetmind/internal/cli/commands"
)

func main() {
	rootCmd := commands.RootCmd()

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	cli.CheckHelpJSON(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
