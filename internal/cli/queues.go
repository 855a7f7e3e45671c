package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/dlqwatch/internal/wire"
)

// QueuesCmd returns the queues command
func QueuesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "queues",
		Short: "Show live backlog counts for the monitored queues",
		RunE: func(cmd *cobra.Command, args []string) error {
			views, err := wire.MonitorService().ListQueueSnapshots(context.Background())
			if err != nil {
				return fmt.Errorf("failed to fetch queue state: %w", err)
			}

			if len(views) == 0 {
				fmt.Println("No queues configured. Run `dlqwatch init` to create a config.")
				return nil
			}

			for _, q := range views {
				if q.Err != "" {
					fmt.Printf("  %-40s  %s\n", q.Queue, color.New(color.FgRed).Sprintf("error: %s", q.Err))
					continue
				}
				count := fmt.Sprintf("%d message(s)", q.MessageCount)
				if q.MessageCount > 0 {
					count = color.New(color.FgYellow).Sprint(count)
				}
				fmt.Printf("  %-40s  %s\n", q.Queue, count)
			}
			return nil
		},
	}
}
