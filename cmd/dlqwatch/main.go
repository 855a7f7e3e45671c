package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/dlqwatch/internal/cli"
	"github.com/example/dlqwatch/internal/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "dlqwatch",
		Short:   "dlqwatch - DLQ monitoring and investigation coordinator",
		Version: version.String(),
		Long: `dlqwatch watches AWS SQS dead-letter queues and starts an automated
investigation when a queue's backlog crosses a threshold. Investigations
run as supervised child processes; cooldowns and a global concurrency
cap keep them from piling up.`,
	}

	// Add subcommands
	rootCmd.AddCommand(cli.InitCmd())
	rootCmd.AddCommand(cli.MonitorCmd())
	rootCmd.AddCommand(cli.StatusCmd())
	rootCmd.AddCommand(cli.SessionsCmd())
	rootCmd.AddCommand(cli.QueuesCmd())
	rootCmd.AddCommand(cli.InvestigateCmd())
	rootCmd.AddCommand(cli.EventsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
