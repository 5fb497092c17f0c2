// Package cmd defines the CLI commands for the favharvester executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "favharvester",
		Short: "Batch favicon resolution for ranked domain lists",
		Long: `favharvester resolves favicon URLs for large domain lists. Each domain
is probed for /favicon.ico and falls back to HTML-based discovery of icon
link tags, across https and http. Results are written as CSV.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")

	cmd.AddCommand(newResolveCmd())
	cmd.AddCommand(newServeCmd())
	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
