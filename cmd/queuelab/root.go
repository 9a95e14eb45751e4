package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for queuelab.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queuelab",
		Short: "Visual verification and asset preprocessing for the QueueLab site",
		Long: `queuelab runs browser scenarios against a local dev server and captures
screenshots for review, and converts the source logo and social image into
the icon, favicon and Open Graph preview the site ships.

Scenarios come from a .queuelab file in the current or home directory, or
from the built-in set when no file exists. Use 'queuelab init' to create one.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs to stderr as JSON")

	cmd.AddCommand(NewVerifyCmd())
	cmd.AddCommand(NewAssetsCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
