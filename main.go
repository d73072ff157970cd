// Package main provides the entry point for the digitprep command.
package main

import (
	"fmt"
	"os"

	"digitprep/internal/cli"
)

func main() {
	if err := cli.RootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "digitprep: %v\n", err)
		os.Exit(1)
	}
}
