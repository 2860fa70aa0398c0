// Package cmd defines the CLI commands for the discovery executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discovery",
		Short: "AI-assisted product discovery for sourcing projects",
		Long: `discovery turns natural-language sourcing requests into imported
marketplace products: it parses intent, searches for candidates with a
grounded language model, crawls Vietnamese marketplaces, filters and ranks
the listings, and imports the survivors into the target project.`,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (env vars with DISCOVERY_ prefix override)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newRunCmd())
	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
