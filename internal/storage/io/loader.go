package io

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/slok/botctl/internal/model"
)

// ConfigYAMLRepository loads the bot configuration from YAML files.
type ConfigYAMLRepository struct {
	fs fs.FS
}

// NewConfigYAMLRepository creates a new YAML config repository.
func NewConfigYAMLRepository(filesystem fs.FS) *ConfigYAMLRepository {
	return &ConfigYAMLRepository{fs: filesystem}
}

// GetConfig loads the bot configuration from a YAML file on top of the defaults and
// returns a validated domain model.
func (r *ConfigYAMLRepository) GetConfig(ctx context.Context, path string) (model.BotConfig, error) {
	data, err := fs.ReadFile(r.fs, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return model.BotConfig{}, fmt.Errorf("config file %q: %w", path, model.ErrNotFound)
		}
		return model.BotConfig{}, fmt.Errorf("reading config file: %w", err)
	}

	if ctx.Err() != nil {
		return model.BotConfig{}, ctx.Err()
	}

	cfg := fromModel(model.DefaultBotConfig())
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return model.BotConfig{}, fmt.Errorf("parsing YAML: %w", err)
	}

	m := cfg.toModel()
	if err := m.Validate(); err != nil {
		return model.BotConfig{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return m, nil
}

// GetConfigOrDefault is like GetConfig but returns the default configuration when the file
// does not exist.
func (r *ConfigYAMLRepository) GetConfigOrDefault(ctx context.Context, path string) (model.BotConfig, error) {
	cfg, err := r.GetConfig(ctx, path)
	if errors.Is(err, model.ErrNotFound) {
		return model.DefaultBotConfig(), nil
	}
	return cfg, err
}

// BotConfig represents the YAML structure of the bot configuration.
type BotConfig struct {
	Bot        BotYAML        `yaml:"bot"`
	Control    ControlYAML    `yaml:"control"`
	Supervisor SupervisorYAML `yaml:"supervisor"`
	Install    InstallYAML    `yaml:"install"`
	Logs       LogsYAML       `yaml:"logs"`
	Relay      RelayYAML      `yaml:"relay"`
}

type BotYAML struct {
	Dir     string            `yaml:"dir"`
	Script  string            `yaml:"script"`
	Runtime string            `yaml:"runtime"`
	Env     map[string]string `yaml:"env"`
}

type ControlYAML struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

type SupervisorYAML struct {
	SettleDelay      time.Duration `yaml:"settle_delay"`
	GracePeriod      time.Duration `yaml:"grace_period"`
	WatchdogInterval time.Duration `yaml:"watchdog_interval"`
	HealthCheck      bool          `yaml:"health_check"`
}

type InstallYAML struct {
	RuntimeVersion string   `yaml:"runtime_version"`
	RuntimeBaseURL string   `yaml:"runtime_base_url"`
	Packages       []string `yaml:"packages"`
}

type LogsYAML struct {
	Path         string        `yaml:"path"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Watch        bool          `yaml:"watch"`
}

type RelayYAML struct {
	PollInterval time.Duration `yaml:"poll_interval"`
}

func fromModel(m model.BotConfig) BotConfig {
	return BotConfig{
		Bot: BotYAML{
			Dir:     m.Bot.Dir,
			Script:  m.Bot.Script,
			Runtime: m.Bot.Runtime,
			Env:     m.Bot.Env,
		},
		Control: ControlYAML{
			URL:     m.Control.URL,
			Timeout: m.Control.Timeout,
		},
		Supervisor: SupervisorYAML{
			SettleDelay:      m.Supervisor.SettleDelay,
			GracePeriod:      m.Supervisor.GracePeriod,
			WatchdogInterval: m.Supervisor.WatchdogInterval,
			HealthCheck:      m.Supervisor.HealthCheck,
		},
		Install: InstallYAML{
			RuntimeVersion: m.Install.RuntimeVersion,
			RuntimeBaseURL: m.Install.RuntimeBaseURL,
			Packages:       m.Install.Packages,
		},
		Logs: LogsYAML{
			Path:         m.Logs.Path,
			PollInterval: m.Logs.PollInterval,
			Watch:        m.Logs.Watch,
		},
		Relay: RelayYAML{
			PollInterval: m.Relay.PollInterval,
		},
	}
}

func (c BotConfig) toModel() model.BotConfig {
	return model.BotConfig{
		Bot: model.BotSettings{
			Dir:     c.Bot.Dir,
			Script:  c.Bot.Script,
			Runtime: c.Bot.Runtime,
			Env:     c.Bot.Env,
		},
		Control: model.ControlSettings{
			URL:     c.Control.URL,
			Timeout: c.Control.Timeout,
		},
		Supervisor: model.SupervisorSettings{
			SettleDelay:      c.Supervisor.SettleDelay,
			GracePeriod:      c.Supervisor.GracePeriod,
			WatchdogInterval: c.Supervisor.WatchdogInterval,
			HealthCheck:      c.Supervisor.HealthCheck,
		},
		Install: model.InstallSettings{
			RuntimeVersion: c.Install.RuntimeVersion,
			RuntimeBaseURL: c.Install.RuntimeBaseURL,
			Packages:       c.Install.Packages,
		},
		Logs: model.LogSettings{
			Path:         c.Logs.Path,
			PollInterval: c.Logs.PollInterval,
			Watch:        c.Logs.Watch,
		},
		Relay: model.RelaySettings{
			PollInterval: c.Relay.PollInterval,
		},
	}
}
