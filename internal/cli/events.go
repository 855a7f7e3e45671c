package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/dlqwatch/internal/wire"
)

// EventsCmd returns the events command
func EventsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Show the investigation audit log, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := wire.MonitorService().ListEvents(context.Background(), limit)
			if err != nil {
				return err
			}

			if len(events) == 0 {
				fmt.Println("No events recorded yet.")
				return nil
			}

			for _, e := range events {
				line := fmt.Sprintf("%s  %-10s  %s", e.CreatedAt, e.Kind, e.Queue)
				if e.MessageCount > 0 {
					line += fmt.Sprintf("  (%d messages)", e.MessageCount)
				}
				if e.Detail != "" {
					line += "  " + e.Detail
				}
				fmt.Println(line)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of events to show")

	return cmd
}
