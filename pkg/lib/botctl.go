package lib

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/slok/botctl/internal/app/dashboard"
	"github.com/slok/botctl/internal/app/doctor"
	"github.com/slok/botctl/internal/app/history"
	appinstall "github.com/slok/botctl/internal/app/install"
	"github.com/slok/botctl/internal/control"
	"github.com/slok/botctl/internal/conventions"
	"github.com/slok/botctl/internal/install"
	"github.com/slok/botctl/internal/log"
	"github.com/slok/botctl/internal/model"
	"github.com/slok/botctl/internal/probe"
	storageio "github.com/slok/botctl/internal/storage/io"
	"github.com/slok/botctl/internal/storage/sqlite"
	"github.com/slok/botctl/internal/supervisor"
	"github.com/slok/botctl/internal/supervisor/fake"
	"github.com/slok/botctl/internal/utils/command"
	"github.com/slok/botctl/internal/utils/env"
)

// Config configures the SDK client.
//
// All fields are optional and have sensible defaults. At minimum, an empty
// Config{} will use the default bot configuration (a ./bot/index.js Node.js bot)
// and ~/.botctl for the installed runtimes and the install history.
type Config struct {
	// ConfigFile is the bot YAML configuration file.
	// Default: the built-in bot configuration. Relative bot dirs are resolved from the
	// config file dir, or from the working dir when there is no config file.
	ConfigFile string

	// BotDir overrides the configured bot directory.
	BotDir string

	// ControlURL overrides the configured bot control endpoint base URL.
	ControlURL string

	// Env is merged on top of the configured bot environment.
	Env map[string]string

	// DataDir is the base directory for botctl data (runtimes, downloads, database).
	// Default: ~/.botctl.
	DataDir string

	// DBPath is the SQLite install history database path.
	// Default: ~/.botctl/botctl.db.
	DBPath string

	// Logger receives structured log output from the SDK.
	// Default: noop (silent). See the log sub-package for the interface.
	Logger log.Logger

	// Spawner selects how the bot process is created.
	// Default: [SpawnerExec].
	//
	// Set this to [SpawnerFake] for testing without a bot.
	Spawner SpawnerType

	// BotOutput receives the bot stdout and stderr. Default: discarded.
	BotOutput io.Writer

	// OnStateChanged is called on every bot state transition.
	OnStateChanged func(BotState)

	// OnExitedExternally is called when the bot exits without being stopped.
	OnExitedExternally func(Process)
}

func (c *Config) defaults() error {
	if c.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("could not get user home dir: %w", err)
		}
		c.DataDir = filepath.Join(home, conventions.DefaultDataDir)
	}

	if c.DBPath == "" {
		c.DBPath = conventions.DBPath(c.DataDir)
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}

	if c.Spawner == "" {
		c.Spawner = SpawnerExec
	}

	if c.BotOutput == nil {
		c.BotOutput = io.Discard
	}

	if c.OnStateChanged == nil {
		c.OnStateChanged = func(BotState) {}
	}

	if c.OnExitedExternally == nil {
		c.OnExitedExternally = func(Process) {}
	}

	return nil
}

// Client is the main SDK entry point for supervising a bot programmatically.
//
// Create a Client with [New] and release its resources with [Client.Close].
// A Client is safe for concurrent use.
type Client struct {
	botCfg  model.BotConfig
	ctrl    *dashboard.Controller
	doctor  *doctor.Service
	history *history.Service
	logger  log.Logger
	closeFn func() error

	mu         sync.Mutex
	watch      *WatchOpts
	installing bool
	progress   func(InstallProgress)
	lastRunID  string
}

// New creates a new SDK client backed by a SQLite install history database.
//
// The caller must call [Client.Close] when done, it stops the bot if it's
// still running and releases the database connection:
//
//	client, err := lib.New(ctx, lib.Config{})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
func New(ctx context.Context, cfg Config) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	botCfg, err := loadBotConfig(ctx, cfg)
	if err != nil {
		return nil, mapError(err)
	}

	runner, err := command.NewExecRunner(command.ExecRunnerConfig{Logger: cfg.Logger})
	if err != nil {
		return nil, fmt.Errorf("could not create command runner: %w", err)
	}

	prb, err := probe.NewProbe(probe.ProbeConfig{
		Runtime:    botCfg.Bot.Runtime,
		SearchDirs: []string{filepath.Join(conventions.RuntimesPath(cfg.DataDir), "node-"+botCfg.Install.RuntimeVersion, "bin")},
		Runner:     runner,
		Logger:     cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create probe: %w", err)
	}

	spawner, err := newSpawner(cfg, prb)
	if err != nil {
		return nil, err
	}

	ctl, err := control.NewClient(control.ClientConfig{
		BaseURL: botCfg.Control.URL,
		Timeout: botCfg.Control.Timeout,
		Logger:  cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create control client: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0o755); err != nil {
		return nil, fmt.Errorf("could not create database directory: %w", err)
	}
	db, err := sqlite.Open(ctx, sqlite.OpenConfig{DBPath: cfg.DBPath, Logger: cfg.Logger})
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	c, err := newClient(cfg, botCfg, db, prb, runner, spawner, ctl)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return c, nil
}

func newClient(cfg Config, botCfg model.BotConfig, db *sql.DB, prb *probe.Probe, runner command.Runner, spawner supervisor.Spawner, ctl *control.Client) (*Client, error) {
	repo, err := sqlite.NewTaskRepository(sqlite.TaskRepositoryConfig{DB: db, Logger: cfg.Logger})
	if err != nil {
		return nil, fmt.Errorf("could not create task repository: %w", err)
	}

	nodeInstaller, err := install.NewNodeInstaller(install.NodeInstallerConfig{
		Version:    botCfg.Install.RuntimeVersion,
		BaseURL:    botCfg.Install.RuntimeBaseURL,
		InstallDir: conventions.RuntimesPath(cfg.DataDir),
		SearchDirs: prb,
		Runner:     runner,
		HTTPClient: http.DefaultClient,
		Logger:     cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create runtime installer: %w", err)
	}

	installSvc, err := appinstall.NewService(appinstall.ServiceConfig{
		Probe:            prb,
		Runner:           runner,
		RuntimeInstaller: nodeInstaller,
		TaskRepository:   repo,
		Logger:           cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create install service: %w", err)
	}

	doctorSvc, err := doctor.NewService(doctor.ServiceConfig{Probe: prb, Control: ctl, Logger: cfg.Logger})
	if err != nil {
		return nil, fmt.Errorf("could not create doctor service: %w", err)
	}

	historySvc, err := history.NewService(history.ServiceConfig{TaskRepository: repo, Logger: cfg.Logger})
	if err != nil {
		return nil, fmt.Errorf("could not create history service: %w", err)
	}

	c := &Client{
		botCfg:  botCfg,
		doctor:  doctorSvc,
		history: historySvc,
		logger:  cfg.Logger,
		closeFn: db.Close,
	}

	c.ctrl, err = dashboard.NewController(dashboard.ControllerConfig{
		BotConfig: botCfg,
		Spawner:   spawner,
		Control:   ctl,
		Install:   installSvc,
		Callbacks: c.callbacks(cfg),
		Logger:    cfg.Logger,
	})
	if err != nil {
		return nil, mapError(fmt.Errorf("could not create controller: %w", err))
	}

	return c, nil
}

// Close stops the bot if it's running and releases the client resources.
// After Close returns, the client must not be used.
func (c *Client) Close() error {
	if c.ctrl.Status() != model.SupervisorStateStopped {
		if err := c.StopBot(context.Background()); err != nil {
			c.logger.Warningf("Could not stop bot: %v", err)
		}
	}

	if c.closeFn != nil {
		return c.closeFn()
	}
	return nil
}

// BotDir returns the resolved bot directory.
func (c *Client) BotDir() string { return c.botCfg.Bot.Dir }

func (c *Client) callbacks(cfg Config) dashboard.Callbacks {
	return dashboard.Callbacks{
		OnStateChanged: func(s model.SupervisorState) {
			cfg.OnStateChanged(BotState(s))
		},
		OnExitedExternally: func(p model.ManagedProcess) {
			cfg.OnExitedExternally(fromInternalProcess(p))
		},
		OnProgress: func(s model.PipelineState) {
			c.mu.Lock()
			fn := c.progress
			c.mu.Unlock()
			if fn != nil {
				fn(fromInternalProgress(s))
			}
		},
		OnPipelineDone: func(runID string, _ error) {
			c.mu.Lock()
			c.lastRunID = runID
			c.mu.Unlock()
		},
		OnLogSnapshot: func(s model.LogSnapshot) {
			if w := c.currentWatch(); w != nil && w.OnLogs != nil {
				w.OnLogs(fromInternalLogSnapshot(s))
			}
		},
		OnMessages: func(msgs []model.ChatMessage) {
			if w := c.currentWatch(); w != nil && w.OnMessages != nil {
				w.OnMessages(fromInternalMessages(msgs))
			}
		},
		OnMessagesError: func(err error) {
			if w := c.currentWatch(); w != nil && w.OnMessagesError != nil {
				w.OnMessagesError(mapError(err))
			}
		},
	}
}

func (c *Client) currentWatch() *WatchOpts {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.watch
}

func loadBotConfig(ctx context.Context, cfg Config) (model.BotConfig, error) {
	botCfg := model.DefaultBotConfig()
	baseDir, err := os.Getwd()
	if err != nil {
		return model.BotConfig{}, fmt.Errorf("could not get working dir: %w", err)
	}

	if cfg.ConfigFile != "" {
		path, err := filepath.Abs(cfg.ConfigFile)
		if err != nil {
			return model.BotConfig{}, fmt.Errorf("invalid config file path: %w", err)
		}
		baseDir = filepath.Dir(path)

		botCfg, err = storageio.NewConfigYAMLRepository(os.DirFS(baseDir)).GetConfig(ctx, filepath.Base(path))
		if err != nil {
			return model.BotConfig{}, fmt.Errorf("could not load config: %w", err)
		}
	}

	if cfg.BotDir != "" {
		botCfg.Bot.Dir = cfg.BotDir
	}
	if cfg.ControlURL != "" {
		botCfg.Control.URL = cfg.ControlURL
	}
	botCfg.Bot.Env = env.Merge(botCfg.Bot.Env, cfg.Env)

	if !filepath.IsAbs(botCfg.Bot.Dir) {
		botCfg.Bot.Dir = filepath.Join(baseDir, botCfg.Bot.Dir)
	}

	if err := botCfg.Validate(); err != nil {
		return model.BotConfig{}, fmt.Errorf("invalid bot config: %w", err)
	}

	return botCfg, nil
}

// newSpawner returns the process spawner, the exec one resolves the runtime binary
// on every start, on the botctl installed runtimes before the PATH.
func newSpawner(cfg Config, prb *probe.Probe) (supervisor.Spawner, error) {
	switch cfg.Spawner {
	case SpawnerFake:
		return fake.NewSpawner(), nil
	case SpawnerExec:
		sp, err := supervisor.NewExecSpawner(supervisor.ExecSpawnerConfig{
			Stdout:   cfg.BotOutput,
			Stderr:   cfg.BotOutput,
			Resolver: prb,
			Logger:   cfg.Logger,
		})
		if err != nil {
			return nil, fmt.Errorf("could not create spawner: %w", err)
		}
		return sp, nil
	default:
		return nil, fmt.Errorf("unsupported spawner type: %s: %w", cfg.Spawner, ErrNotValid)
	}
}
