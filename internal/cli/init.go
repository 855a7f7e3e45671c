package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/example/dlqwatch/internal/config"
)

// InitCmd returns the init command
func InitCmd() *cobra.Command {
	var (
		region   string
		queues   []string
		discover bool
		force    bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the dlqwatch state directory and a default config",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := config.HomeDir()
			if err != nil {
				return err
			}

			path := filepath.Join(dir, "config.json")
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config already exists at %s (use --force to overwrite)", path)
			}

			cfg := config.Default()
			if region != "" {
				cfg.Region = region
			}
			cfg.Queues = queues
			cfg.DiscoverQueues = discover

			if err := config.Save(dir, cfg); err != nil {
				return err
			}

			fmt.Printf("Config written to %s\n", path)
			if len(queues) == 0 && !discover {
				fmt.Println("Add queue names to \"queues\" (or set \"discover_queues\": true) before running `dlqwatch monitor`.")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&region, "region", "", "AWS region (default us-east-1)")
	cmd.Flags().StringSliceVar(&queues, "queue", nil, "DLQ name to monitor (repeatable)")
	cmd.Flags().BoolVar(&discover, "discover", false, "Discover DLQs by name pattern at startup")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config")

	return cmd
}
