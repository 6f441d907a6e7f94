package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sbx",
		Short: "Signalbox — live configuration sync and agent messaging",
		Long:  "Signalbox keeps an agent fleet's published configuration in lockstep with its database and carries messages and job updates between agents.",
	}

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newDBCmd())
	cmd.AddCommand(newSendCmd())
	cmd.AddCommand(newInboxCmd())
	cmd.AddCommand(newMarkCmd())
	cmd.AddCommand(newJobCmd())
	cmd.AddCommand(newAgentCmd())
	cmd.AddCommand(newDefaultCmd())
	cmd.AddCommand(newBuildCmd())
	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newConsumeCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newListenCmd())
	cmd.AddCommand(newDashboardCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sbx %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
