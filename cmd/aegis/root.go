package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "aegis",
	Short: "Declarative conformance tester for MCP servers",
	Long: `Aegis drives an MCP (Model Context Protocol) server over stdio and
checks its responses against YAML-declared expectations.

Point it at a server's config file and one or more test-suite files; it
spawns the server, runs the handshake, fires each declared request, and
deep-matches the response against the expected shape.`,
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command, exiting 1 on any reported error so shell
// scripts and CI jobs can key off the process exit code alone.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	shutdown := initTracing()
	defer shutdown(context.Background())

	Execute()
}
