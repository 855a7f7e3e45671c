package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/dlqwatch/internal/wire"
)

// SessionsCmd returns the sessions command
func SessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List investigation sessions and their lifecycle state",
		RunE: func(cmd *cobra.Command, args []string) error {
			sessions, err := wire.MonitorService().ListSessions(context.Background())
			if err != nil {
				return fmt.Errorf("failed to list sessions: %w", err)
			}

			if len(sessions) == 0 {
				fmt.Println("No investigation sessions yet.")
				return nil
			}

			for _, s := range sessions {
				line := fmt.Sprintf("%-40s  %s", s.Queue, colorizeState(s.State))
				if s.PID != 0 {
					line += fmt.Sprintf("  pid %d", s.PID)
				}
				if s.Forced {
					line += color.New(color.FgHiMagenta).Sprint("  [forced]")
				}
				fmt.Println(line)

				if !s.StartedAt.IsZero() {
					fmt.Printf("    started:   %s\n", s.StartedAt.Local().Format(time.RFC3339))
				}
				if !s.CompletedAt.IsZero() {
					fmt.Printf("    completed: %s (%s)\n", s.CompletedAt.Local().Format(time.RFC3339), s.LastOutcome)
				}
				if s.TriggerCount > 0 {
					fmt.Printf("    trigger:   %d message(s)\n", s.TriggerCount)
				}
			}
			return nil
		},
	}
}

func colorizeState(state string) string {
	switch state {
	case "running":
		return color.New(color.FgGreen).Sprint(state)
	case "triggered":
		return color.New(color.FgYellow).Sprint(state)
	case "failed":
		return color.New(color.FgRed).Sprint(state)
	case "cooldown":
		return color.New(color.FgCyan).Sprint(state)
	default:
		return state
	}
}
