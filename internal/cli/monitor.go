package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/dlqwatch/internal/wire"
)

// MonitorCmd returns the monitor command
func MonitorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Run the DLQ monitoring coordinator",
		Long: `Run the coordinator loop in the foreground: poll the configured
dead-letter queues, start an investigation when a queue's backlog crosses
the trigger threshold, and supervise running investigations.

Only one coordinator may run per state directory; a second instance
fails to acquire the store lock. Stop with Ctrl-C; running
investigations are terminated and recorded before exit.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			err := wire.Coordinator().Run(ctx)
			if err == context.Canceled {
				return nil
			}
			return err
		},
	}
}
