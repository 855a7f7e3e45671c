package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/dlqwatch/internal/wire"
)

// InvestigateCmd returns the investigate command
func InvestigateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "investigate <queue>",
		Short: "Request an investigation for a queue regardless of backlog",
		Long: `Request an investigation for a queue even if its backlog is below
the trigger threshold. The request is picked up by the running
coordinator on its next poll cycle; cooldown and concurrency limits
still apply.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			queue := args[0]
			if err := wire.MonitorService().ForceInvestigate(context.Background(), queue); err != nil {
				return err
			}
			fmt.Printf("Investigation requested for %s. The coordinator will pick it up on its next cycle.\n", queue)
			return nil
		},
	}
}
