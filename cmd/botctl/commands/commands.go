package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/alecthomas/kingpin/v2"
	"k8s.io/client-go/util/homedir"

	"github.com/slok/botctl/internal/app/chat"
	appinstall "github.com/slok/botctl/internal/app/install"
	"github.com/slok/botctl/internal/control"
	"github.com/slok/botctl/internal/conventions"
	"github.com/slok/botctl/internal/install"
	"github.com/slok/botctl/internal/log"
	"github.com/slok/botctl/internal/model"
	"github.com/slok/botctl/internal/printer"
	"github.com/slok/botctl/internal/probe"
	storageio "github.com/slok/botctl/internal/storage/io"
	"github.com/slok/botctl/internal/storage/sqlite"
	"github.com/slok/botctl/internal/utils/command"
	"github.com/slok/botctl/internal/utils/env"
)

const (
	// LoggerTypeDefault is the logger default type.
	LoggerTypeDefault = "default"
	// LoggerTypeJSON is the logger json type.
	LoggerTypeJSON = "json"

	formatTable = "table"
	formatJSON  = "json"
)

// Command represents an application command, all commands that want to be executed
// should implement and setup on main.
type Command interface {
	Name() string
	Run(ctx context.Context) error
}

// RootCommand represents the root command configuration and global configuration
// for all the commands.
type RootCommand struct {
	// Global flags.
	Debug      bool
	NoLog      bool
	NoColor    bool
	LoggerType string
	DataDir    string
	DBPath     string
	ConfigPath string
	EnvSpecs   []string

	// Global instances.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger log.Logger
}

// NewRootCommand initializes the main root configuration.
func NewRootCommand(app *kingpin.Application) *RootCommand {
	c := &RootCommand{}

	app.Flag("debug", "Log debug messages, also enables logs on the table/JSON commands.").BoolVar(&c.Debug)
	app.Flag("no-log", "Do not write botctl logs to stderr.").BoolVar(&c.NoLog)
	app.Flag("no-color", "Plain text logs without terminal colors.").BoolVar(&c.NoColor)
	app.Flag("logger", "Log format written to stderr.").Default(LoggerTypeDefault).EnumVar(&c.LoggerType, LoggerTypeDefault, LoggerTypeJSON)

	defaultDataDir := filepath.Join(homedir.HomeDir(), conventions.DefaultDataDir)
	app.Flag("data-dir", "Directory for botctl data (downloaded runtimes, database).").Envar("BOTCTL_DATA_DIR").Default(defaultDataDir).StringVar(&c.DataDir)
	app.Flag("db-path", "Path to the SQLite database file (defaults to the data dir one).").Envar("BOTCTL_DB_PATH").StringVar(&c.DBPath)
	app.Flag("config", "Path to the bot YAML config file (defaults to an optional "+conventions.DefaultConfigFile+" on the working dir).").Short('c').StringVar(&c.ConfigPath)
	app.Flag("env", "Bot environment variables (KEY=VALUE, or KEY to inherit from host), repeatable.").Short('e').StringsVar(&c.EnvSpecs)

	return c
}

// DatabasePath returns the SQLite database path.
func (c *RootCommand) DatabasePath() string {
	if c.DBPath != "" {
		return c.DBPath
	}
	return conventions.DBPath(c.DataDir)
}

// LoadConfig loads the bot configuration. The default config file is optional, an explicit
// one must exist. The --env specs override the file env.
func (c *RootCommand) LoadConfig(ctx context.Context) (model.BotConfig, error) {
	configPath, optional := c.ConfigPath, false
	if configPath == "" {
		configPath, optional = conventions.DefaultConfigFile, true
	}

	path, err := filepath.Abs(configPath)
	if err != nil {
		return model.BotConfig{}, fmt.Errorf("invalid config path: %w", err)
	}

	repo := storageio.NewConfigYAMLRepository(os.DirFS(filepath.Dir(path)))
	cfg, err := repo.GetConfig(ctx, filepath.Base(path))
	switch {
	case errors.Is(err, model.ErrNotFound) && optional:
		c.Logger.Debugf("Config file %s not found, using defaults", path)
		cfg = model.DefaultBotConfig()
	case err != nil:
		return model.BotConfig{}, fmt.Errorf("could not load config: %w", err)
	}

	envOverrides, err := env.ParseSpecs(c.EnvSpecs)
	if err != nil {
		return model.BotConfig{}, fmt.Errorf("invalid env: %w", err)
	}
	cfg.Bot.Env = env.Merge(cfg.Bot.Env, envOverrides)

	// Relative bot dirs are relative to the config file.
	if !filepath.IsAbs(cfg.Bot.Dir) {
		cfg.Bot.Dir = filepath.Join(filepath.Dir(path), cfg.Bot.Dir)
	}

	return cfg, nil
}

// NewProbe returns the host probe, the botctl installed runtime is part of the search path.
func (c *RootCommand) NewProbe(cfg model.BotConfig) (*probe.Probe, command.Runner, error) {
	runner, err := command.NewExecRunner(command.ExecRunnerConfig{Logger: c.Logger})
	if err != nil {
		return nil, nil, fmt.Errorf("could not create command runner: %w", err)
	}

	p, err := probe.NewProbe(probe.ProbeConfig{
		Runtime:    cfg.Bot.Runtime,
		SearchDirs: []string{filepath.Join(conventions.RuntimesPath(c.DataDir), "node-"+cfg.Install.RuntimeVersion, "bin")},
		Runner:     runner,
		Logger:     c.Logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("could not create probe: %w", err)
	}

	return p, runner, nil
}

// NewRuntimeInstaller returns the unattended Node.js installer.
func (c *RootCommand) NewRuntimeInstaller(cfg model.BotConfig, p *probe.Probe, runner command.Runner) (*install.NodeInstaller, error) {
	return install.NewNodeInstaller(install.NodeInstallerConfig{
		Version:    cfg.Install.RuntimeVersion,
		BaseURL:    cfg.Install.RuntimeBaseURL,
		InstallDir: conventions.RuntimesPath(c.DataDir),
		SearchDirs: p,
		Runner:     runner,
		HTTPClient: http.DefaultClient,
		Logger:     c.Logger,
	})
}

// NewInstallService returns the install service, withHistory records the runs on the database.
func (c *RootCommand) NewInstallService(ctx context.Context, cfg model.BotConfig, withHistory bool) (*appinstall.Service, error) {
	p, runner, err := c.NewProbe(cfg)
	if err != nil {
		return nil, err
	}

	inst, err := c.NewRuntimeInstaller(cfg, p, runner)
	if err != nil {
		return nil, fmt.Errorf("could not create runtime installer: %w", err)
	}

	svcCfg := appinstall.ServiceConfig{
		Probe:            p,
		Runner:           runner,
		RuntimeInstaller: install.NewLogInstaller("node", c.Logger, inst),
		Logger:           c.Logger,
	}
	if withHistory {
		repo, err := c.OpenTaskRepository(ctx)
		if err != nil {
			return nil, err
		}
		svcCfg.TaskRepository = repo
	}

	svc, err := appinstall.NewService(svcCfg)
	if err != nil {
		return nil, fmt.Errorf("could not create install service: %w", err)
	}

	return svc, nil
}

// NewControlClient returns the bot control endpoint client.
func (c *RootCommand) NewControlClient(cfg model.BotConfig) (*control.Client, error) {
	return control.NewClient(control.ClientConfig{
		BaseURL: cfg.Control.URL,
		Timeout: cfg.Control.Timeout,
		Logger:  c.Logger,
	})
}

// NewChatService returns the chat service talking to the bot control endpoint.
func (c *RootCommand) NewChatService(cfg model.BotConfig) (*chat.Service, error) {
	cli, err := c.NewControlClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("could not create control client: %w", err)
	}

	svc, err := chat.NewService(chat.ServiceConfig{Client: cli, Logger: c.Logger})
	if err != nil {
		return nil, fmt.Errorf("could not create chat service: %w", err)
	}

	return svc, nil
}

// OpenTaskRepository opens the install history storage.
func (c *RootCommand) OpenTaskRepository(ctx context.Context) (*sqlite.TaskRepository, error) {
	dbPath := c.DatabasePath()
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("could not create database directory: %w", err)
	}

	db, err := sqlite.Open(ctx, sqlite.OpenConfig{DBPath: dbPath, Logger: c.Logger})
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	return sqlite.NewTaskRepository(sqlite.TaskRepositoryConfig{DB: db, Logger: c.Logger})
}

// Printer returns the printer for a format.
func (c *RootCommand) Printer(format string) printer.Printer {
	if format == formatJSON {
		return printer.NewJSONPrinter(c.Stdout)
	}
	return printer.NewTablePrinter(c.Stdout)
}
