// Package config loads and saves the dlqwatch configuration.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/example/dlqwatch/internal/core/gate"
)

// Default policy values, mirroring the production monitor they replaced.
const (
	DefaultTriggerThreshold     = 1
	DefaultCooldownMinutes      = 60
	DefaultMaxConcurrent        = 3
	DefaultPollIntervalSeconds  = 30
	DefaultInvestigationMinutes = 30
	DefaultClaudeCommand        = "claude"
)

// DefaultDLQPatterns are the name fragments used to recognize dead-letter
// queues during discovery.
var DefaultDLQPatterns = []string{"-dlq", "-dead-letter", "-deadletter", "_dlq", "-dl"}

// Config is the flat dlqwatch configuration.
type Config struct {
	Region  string `json:"region"`
	Profile string `json:"profile,omitempty"`

	// Queues is the fixed set of DLQs to monitor.
	Queues []string `json:"queues"`
	// DiscoverQueues adds account queues matching DLQPatterns at startup.
	DiscoverQueues bool     `json:"discover_queues,omitempty"`
	DLQPatterns    []string `json:"dlq_patterns,omitempty"`

	TriggerThreshold            int `json:"trigger_threshold"`
	CooldownMinutes             int `json:"cooldown_minutes"`
	FailureCooldownMinutes      int `json:"failure_cooldown_minutes,omitempty"`
	MaxConcurrent               int `json:"max_concurrent"`
	PollIntervalSeconds         int `json:"poll_interval_seconds"`
	InvestigationTimeoutMinutes int `json:"investigation_timeout_minutes"`

	ClaudeCommand string   `json:"claude_command"`
	ClaudeArgs    []string `json:"claude_args,omitempty"`
	WorkDir       string   `json:"work_dir,omitempty"`

	Notifications bool `json:"notifications"`
}

// Default returns a config populated with defaults.
func Default() *Config {
	return &Config{
		Region:                      "us-east-1",
		Queues:                      []string{},
		DLQPatterns:                 append([]string(nil), DefaultDLQPatterns...),
		TriggerThreshold:            DefaultTriggerThreshold,
		CooldownMinutes:             DefaultCooldownMinutes,
		MaxConcurrent:               DefaultMaxConcurrent,
		PollIntervalSeconds:         DefaultPollIntervalSeconds,
		InvestigationTimeoutMinutes: DefaultInvestigationMinutes,
		ClaudeCommand:               DefaultClaudeCommand,
		ClaudeArgs:                  []string{"-p"},
		Notifications:               true,
	}
}

// HomeDir returns the dlqwatch state directory: $DLQWATCH_HOME if set,
// otherwise ~/.dlqwatch.
func HomeDir() (string, error) {
	if dir := os.Getenv("DLQWATCH_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".dlqwatch"), nil
}

// Load reads config.json from the given directory.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, "config.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes config.json to the given directory, creating it if needed.
func Save(dir string, cfg *Config) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks the config for values the coordinator cannot run with.
func (c *Config) Validate() error {
	if c.Region == "" {
		return fmt.Errorf("config: region is required")
	}
	if len(c.Queues) == 0 && !c.DiscoverQueues {
		return fmt.Errorf("config: no queues configured and discovery disabled")
	}
	if c.TriggerThreshold < 1 {
		return fmt.Errorf("config: trigger_threshold must be >= 1")
	}
	if c.MaxConcurrent < 1 {
		return fmt.Errorf("config: max_concurrent must be >= 1")
	}
	if c.PollIntervalSeconds < 1 {
		return fmt.Errorf("config: poll_interval_seconds must be >= 1")
	}
	if c.InvestigationTimeoutMinutes < 1 {
		return fmt.Errorf("config: investigation_timeout_minutes must be >= 1")
	}
	return nil
}

// PollInterval returns the poll cadence as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// InvestigationTimeout returns the per-investigation wall-clock limit.
func (c *Config) InvestigationTimeout() time.Duration {
	return time.Duration(c.InvestigationTimeoutMinutes) * time.Minute
}

// Policy returns the gate policy derived from the config. The failure
// cooldown defaults to the success cooldown when unset.
func (c *Config) Policy() gate.Policy {
	return gate.Policy{
		TriggerThreshold: c.TriggerThreshold,
		Cooldown:         time.Duration(c.CooldownMinutes) * time.Minute,
		FailureCooldown:  time.Duration(c.FailureCooldownMinutes) * time.Minute,
		MaxConcurrent:    c.MaxConcurrent,
	}
}

// Patterns returns the DLQ name patterns, falling back to the defaults.
func (c *Config) Patterns() []string {
	if len(c.DLQPatterns) > 0 {
		return c.DLQPatterns
	}
	return DefaultDLQPatterns
}
