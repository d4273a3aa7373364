// Package main provides the entry point for the codegraph CLI.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/codegraph-dev/codegraph/cmd/codegraph/commands"
	"github.com/codegraph-dev/codegraph/internal/errs"
)

var (
	verbose bool
	quiet   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "codegraph",
		Short: "codegraph - incremental code intelligence indexing engine",
		Long: `codegraph builds and maintains an incremental code graph for a
repository: chunk storage, tiered caching, a stage DAG orchestrator, a
file watcher, and a query engine over the resulting index.

Commands:
  index     Run the stage DAG against a repository once
  watch     Watch a repository and run incremental jobs on change
  version   Show version information`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-error output")

	rootCmd.AddCommand(commands.NewIndexCommand())
	rootCmd.AddCommand(commands.NewWatchCommand())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(errs.ExitCode(errs.Classify(err)))
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Fprintln(os.Stdout, "codegraph dev")
		},
	}
}
