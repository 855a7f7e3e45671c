package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/dlqwatch/internal/wire"
)

// StatusCmd returns the status command
func StatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue backlogs and session states at a glance",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			svc := wire.MonitorService()

			queues, err := svc.ListQueueSnapshots(ctx)
			if err != nil {
				return fmt.Errorf("failed to fetch queue state: %w", err)
			}
			sessions, err := svc.ListSessions(ctx)
			if err != nil {
				return fmt.Errorf("failed to list sessions: %w", err)
			}

			states := make(map[string]string, len(sessions))
			for _, s := range sessions {
				states[s.Queue] = s.State
			}

			fmt.Println("DLQ Watch Status")
			fmt.Println()
			if len(queues) == 0 {
				fmt.Println("No queues configured. Run `dlqwatch init` to create a config.")
				return nil
			}
			for _, q := range queues {
				state := states[q.Queue]
				if state == "" {
					state = "idle"
				}
				if q.Err != "" {
					fmt.Printf("  %-40s  %s (read error: %s)\n", q.Queue, state, q.Err)
					continue
				}
				fmt.Printf("  %-40s  %s, %d message(s)\n", q.Queue, state, q.MessageCount)
			}
			return nil
		},
	}
}
