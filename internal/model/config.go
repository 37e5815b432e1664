package model

import (
	"fmt"
	"path/filepath"
	"time"
)

// BotConfig is the configuration of the supervised bot and its host provisioning.
type BotConfig struct {
	Bot        BotSettings
	Control    ControlSettings
	Supervisor SupervisorSettings
	Install    InstallSettings
	Logs       LogSettings
	Relay      RelaySettings
}

// BotSettings describe the bot program.
type BotSettings struct {
	Dir     string
	Script  string
	Runtime string
	Env     map[string]string
}

// ControlSettings describe the bot local control endpoint.
type ControlSettings struct {
	URL     string
	Timeout time.Duration
}

// SupervisorSettings are the supervisor timings.
type SupervisorSettings struct {
	SettleDelay      time.Duration
	GracePeriod      time.Duration
	WatchdogInterval time.Duration
	HealthCheck      bool
}

// InstallSettings describe the host provisioning.
type InstallSettings struct {
	RuntimeVersion string
	RuntimeBaseURL string
	Packages       []string
}

// LogSettings describe the bot log file tailing.
type LogSettings struct {
	Path         string
	PollInterval time.Duration
	Watch        bool
}

// RelaySettings describe the chat message relay.
type RelaySettings struct {
	PollInterval time.Duration
}

// DefaultBotConfig returns the configuration used when no config file is present.
func DefaultBotConfig() BotConfig {
	return BotConfig{
		Bot: BotSettings{
			Dir:     "bot",
			Script:  "index.js",
			Runtime: "node",
		},
		Control: ControlSettings{
			URL:     "http://localhost:3000",
			Timeout: 5 * time.Second,
		},
		Supervisor: SupervisorSettings{
			SettleDelay:      1500 * time.Millisecond,
			GracePeriod:      3 * time.Second,
			WatchdogInterval: 500 * time.Millisecond,
		},
		Install: InstallSettings{
			RuntimeVersion: "v22.11.0",
			RuntimeBaseURL: "https://nodejs.org/dist",
			Packages:       []string{"discord.js", "express"},
		},
		Logs: LogSettings{
			Path:         filepath.Join("logs", "bot.log"),
			PollInterval: 2 * time.Second,
			Watch:        true,
		},
		Relay: RelaySettings{
			PollInterval: 2 * time.Second,
		},
	}
}

// Validate validates the configuration.
func (c BotConfig) Validate() error {
	if c.Bot.Dir == "" {
		return fmt.Errorf("bot dir is required: %w", ErrNotValid)
	}
	if c.Bot.Script == "" {
		return fmt.Errorf("bot script is required: %w", ErrNotValid)
	}
	if c.Bot.Runtime == "" {
		return fmt.Errorf("bot runtime is required: %w", ErrNotValid)
	}
	if c.Control.URL == "" {
		return fmt.Errorf("control url is required: %w", ErrNotValid)
	}
	if c.Supervisor.GracePeriod < 0 || c.Supervisor.SettleDelay < 0 {
		return fmt.Errorf("supervisor timings can't be negative: %w", ErrNotValid)
	}
	if c.Supervisor.WatchdogInterval <= 0 {
		return fmt.Errorf("watchdog interval must be positive: %w", ErrNotValid)
	}
	if c.Logs.PollInterval <= 0 || c.Relay.PollInterval <= 0 {
		return fmt.Errorf("poll intervals must be positive: %w", ErrNotValid)
	}
	return nil
}

// LogPath returns the bot log file path, relative log paths are resolved from the bot dir.
func (c BotConfig) LogPath() string {
	if filepath.IsAbs(c.Logs.Path) {
		return c.Logs.Path
	}
	return filepath.Join(c.Bot.Dir, c.Logs.Path)
}

// BotCommand returns the command that launches the bot.
func (c BotConfig) BotCommand() Command {
	return Command{
		Path: c.Bot.Runtime,
		Args: []string{c.Bot.Script},
		Dir:  c.Bot.Dir,
		Env:  c.Bot.Env,
	}
}
