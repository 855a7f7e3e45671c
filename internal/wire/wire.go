// Package wire provides dependency injection for the dlqwatch application.
// It creates singleton services with lazy initialization.
package wire

import (
	"context"
	"log"
	"path/filepath"
	"sync"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/example/dlqwatch/internal/adapters/claude"
	"github.com/example/dlqwatch/internal/adapters/jsonstore"
	"github.com/example/dlqwatch/internal/adapters/notify"
	"github.com/example/dlqwatch/internal/adapters/sqlite"
	"github.com/example/dlqwatch/internal/adapters/sqs"
	"github.com/example/dlqwatch/internal/app"
	"github.com/example/dlqwatch/internal/config"
	"github.com/example/dlqwatch/internal/db"
	"github.com/example/dlqwatch/internal/ports/primary"
	"github.com/example/dlqwatch/internal/ports/secondary"
)

var (
	cfg     *config.Config
	homeDir string
	reader  secondary.QueueReader
	events  secondary.EventRepository

	monitorService primary.MonitorService
	coordinator    primary.Coordinator

	baseOnce        sync.Once
	monitorOnce     sync.Once
	coordinatorOnce sync.Once
)

// Config returns the loaded configuration.
func Config() *config.Config {
	baseOnce.Do(initBase)
	return cfg
}

// MonitorService returns the singleton MonitorService instance. The
// session store is opened read-only so query commands work while a
// coordinator holds the store lock.
func MonitorService() primary.MonitorService {
	baseOnce.Do(initBase)
	monitorOnce.Do(func() {
		store, err := jsonstore.Open(homeDir)
		if err != nil {
			log.Fatalf("failed to open session store: %v", err)
		}
		monitorService = app.NewMonitorService(store, reader, events, cfg.Queues)
	})
	return monitorService
}

// Coordinator returns the singleton Coordinator instance. The session
// store is opened exclusively; a second coordinator on the same state
// directory fails here.
func Coordinator() primary.Coordinator {
	baseOnce.Do(initBase)
	coordinatorOnce.Do(func() {
		store, err := jsonstore.OpenExclusive(homeDir)
		if err != nil {
			log.Fatalf("failed to open session store: %v", err)
		}

		runner := claude.NewRunner(cfg.ClaudeCommand, cfg.ClaudeArgs, cfg.WorkDir, filepath.Join(homeDir, "logs"))

		var notifier secondary.Notifier = notify.NopNotifier{}
		if cfg.Notifications {
			notifier = notify.New()
		}

		coordinator = app.NewCoordinator(store, reader, runner, events, notifier, app.CoordinatorOptions{
			Queues:               cfg.Queues,
			DiscoverQueues:       cfg.DiscoverQueues,
			Region:               cfg.Region,
			Policy:               cfg.Policy(),
			PollInterval:         cfg.PollInterval(),
			InvestigationTimeout: cfg.InvestigationTimeout(),
		})
	})
	return coordinator
}

// initBase initializes the dependencies shared by every entry point.
// This is called once via sync.Once.
func initBase() {
	dir, err := config.HomeDir()
	if err != nil {
		log.Fatalf("failed to resolve state directory: %v", err)
	}
	homeDir = dir

	cfg, err = config.Load(dir)
	if err != nil {
		log.Fatalf("failed to load config (run 'dlqwatch init' first): %v", err)
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.Profile != "" {
		opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Profile))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		log.Fatalf("failed to load AWS config: %v", err)
	}
	reader = sqs.NewReader(awssqs.NewFromConfig(awsCfg), cfg.Patterns())

	database, err := db.GetDB()
	if err != nil {
		log.Fatalf("failed to initialize database: %v", err)
	}
	events = sqlite.NewEventRepository(database)
}
