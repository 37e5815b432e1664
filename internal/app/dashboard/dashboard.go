// Package dashboard wires the supervisor, the installer, the log tailer and the message relay
// behind a single callback surface for front ends.
//
// Callbacks are called from background goroutines, front ends must hand them over to
// their own loop before touching any UI state.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/oklog/run"

	appinstall "github.com/slok/botctl/internal/app/install"
	"github.com/slok/botctl/internal/log"
	"github.com/slok/botctl/internal/logtail"
	"github.com/slok/botctl/internal/model"
	"github.com/slok/botctl/internal/relay"
	"github.com/slok/botctl/internal/supervisor"
)

// ControlClient is the bot control endpoint client.
type ControlClient interface {
	RequestShutdown(ctx context.Context) error
	FetchMessages(ctx context.Context) ([]model.ChatMessage, error)
	SendMessage(ctx context.Context, text string) error
	Healthy(ctx context.Context) error
}

// InstallService runs the install pipeline.
type InstallService interface {
	Run(ctx context.Context, req appinstall.Request) (*appinstall.Response, error)
}

// Callbacks are the events a front end renders.
type Callbacks struct {
	OnStateChanged     func(model.SupervisorState)
	OnExitedExternally func(model.ManagedProcess)
	OnProgress         func(model.PipelineState)
	OnPipelineDone     func(runID string, err error)
	OnLogSnapshot      func(model.LogSnapshot)
	OnMessages         func([]model.ChatMessage)
	OnMessagesError    func(error)
}

func (c *Callbacks) defaults() {
	if c.OnStateChanged == nil {
		c.OnStateChanged = func(model.SupervisorState) {}
	}
	if c.OnExitedExternally == nil {
		c.OnExitedExternally = func(model.ManagedProcess) {}
	}
	if c.OnProgress == nil {
		c.OnProgress = func(model.PipelineState) {}
	}
	if c.OnPipelineDone == nil {
		c.OnPipelineDone = func(string, error) {}
	}
	if c.OnLogSnapshot == nil {
		c.OnLogSnapshot = func(model.LogSnapshot) {}
	}
	if c.OnMessages == nil {
		c.OnMessages = func([]model.ChatMessage) {}
	}
	if c.OnMessagesError == nil {
		c.OnMessagesError = func(error) {}
	}
}

// ControllerConfig is the configuration of the dashboard controller.
type ControllerConfig struct {
	BotConfig model.BotConfig
	Spawner   supervisor.Spawner
	Control   ControlClient
	// Install is optional, without it installs are rejected.
	Install   InstallService
	Callbacks Callbacks
	Logger    log.Logger
}

func (c *ControllerConfig) defaults() error {
	if err := c.BotConfig.Validate(); err != nil {
		return err
	}
	if c.Spawner == nil {
		return fmt.Errorf("spawner is required")
	}
	if c.Control == nil {
		return fmt.Errorf("control client is required")
	}
	c.Callbacks.defaults()
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "dashboard.Controller"})
	return nil
}

// Controller is the core of a bot dashboard.
type Controller struct {
	botCfg  model.BotConfig
	sup     *supervisor.Supervisor
	control ControlClient
	install InstallService
	tailer  *logtail.Tailer
	poller  *relay.Poller
	cb      Callbacks
	logger  log.Logger

	mu         sync.Mutex
	installing bool
}

// NewController returns a new dashboard controller.
func NewController(cfg ControllerConfig) (*Controller, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	supCfg := supervisor.SupervisorConfig{
		Spawner:            cfg.Spawner,
		ShutdownRequester:  cfg.Control,
		SettleDelay:        cfg.BotConfig.Supervisor.SettleDelay,
		GracePeriod:        cfg.BotConfig.Supervisor.GracePeriod,
		WatchdogInterval:   cfg.BotConfig.Supervisor.WatchdogInterval,
		OnStateChanged:     cfg.Callbacks.OnStateChanged,
		OnExitedExternally: cfg.Callbacks.OnExitedExternally,
		Logger:             cfg.Logger,
	}
	if cfg.BotConfig.Supervisor.HealthCheck {
		supCfg.HealthCheck = cfg.Control.Healthy
	}
	sup, err := supervisor.NewSupervisor(supCfg)
	if err != nil {
		return nil, fmt.Errorf("could not create supervisor: %w", err)
	}

	tailer, err := logtail.NewTailer(logtail.TailerConfig{
		Path:     cfg.BotConfig.LogPath(),
		Interval: cfg.BotConfig.Logs.PollInterval,
		Watch:    cfg.BotConfig.Logs.Watch,
		Logger:   cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create log tailer: %w", err)
	}

	poller, err := relay.NewPoller(relay.PollerConfig{
		Fetcher:    cfg.Control,
		Interval:   cfg.BotConfig.Relay.PollInterval,
		OnMessages: cfg.Callbacks.OnMessages,
		OnError:    cfg.Callbacks.OnMessagesError,
		Logger:     cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create message poller: %w", err)
	}

	return &Controller{
		botCfg:  cfg.BotConfig,
		sup:     sup,
		control: cfg.Control,
		install: cfg.Install,
		tailer:  tailer,
		poller:  poller,
		cb:      cfg.Callbacks,
		logger:  cfg.Logger,
	}, nil
}

// StartBot launches the bot.
func (c *Controller) StartBot(ctx context.Context) (*model.ManagedProcess, error) {
	return c.sup.Start(ctx, c.botCfg.BotCommand())
}

// StopBot stops the bot gracefully, killing it if it doesn't exit in time.
func (c *Controller) StopBot(ctx context.Context) error {
	return c.sup.Stop(ctx)
}

// Status returns the bot supervisor state.
func (c *Controller) Status() model.SupervisorState {
	return c.sup.Status()
}

// Process returns the running bot process, if any.
func (c *Controller) Process() (*model.ManagedProcess, bool) {
	return c.sup.Process()
}

// Logs reads the bot log file right away.
func (c *Controller) Logs() model.LogSnapshot {
	return c.tailer.Poll()
}

// Messages fetches the bot chat messages right away.
func (c *Controller) Messages(ctx context.Context) ([]model.ChatMessage, error) {
	return c.control.FetchMessages(ctx)
}

// SendMessage sends a chat message through the bot.
func (c *Controller) SendMessage(ctx context.Context, text string) error {
	return c.control.SendMessage(ctx, text)
}

// Install runs the install pipeline in the background, progress goes to the callbacks. The
// returned channel receives the result and is closed. Only one install runs at a time.
func (c *Controller) Install(ctx context.Context) <-chan error {
	result := make(chan error, 1)

	if c.install == nil {
		result <- fmt.Errorf("installer not configured: %w", model.ErrNotValid)
		close(result)
		return result
	}

	c.mu.Lock()
	if c.installing {
		c.mu.Unlock()
		result <- fmt.Errorf("install in progress: %w", model.ErrAlreadyRunning)
		close(result)
		return result
	}
	c.installing = true
	c.mu.Unlock()

	go func() {
		defer close(result)
		defer func() {
			c.mu.Lock()
			c.installing = false
			c.mu.Unlock()
		}()

		resp, err := c.install.Run(ctx, appinstall.Request{
			BotDir:     c.botCfg.Bot.Dir,
			Script:     c.botCfg.Bot.Script,
			Packages:   c.botCfg.Install.Packages,
			OnProgress: c.cb.OnProgress,
		})
		runID := ""
		if resp != nil {
			runID = resp.RunID
		}
		if err != nil {
			c.logger.Errorf("Install failed: %v", err)
		}

		c.cb.OnPipelineDone(runID, err)
		result <- err
	}()

	return result
}

// Run runs the log tailer and the message relay until the context is done. On exit the bot is
// stopped if it's still owned by the controller.
func (c *Controller) Run(ctx context.Context) error {
	var g run.Group

	// Context.
	{
		ctx, cancel := context.WithCancel(ctx)
		g.Add(
			func() error {
				<-ctx.Done()
				return nil
			},
			func(_ error) {
				cancel()
			},
		)
	}

	// Logs.
	{
		ctx, cancel := context.WithCancel(ctx)
		g.Add(
			func() error {
				return c.tailer.Run(ctx, c.cb.OnLogSnapshot)
			},
			func(_ error) {
				cancel()
			},
		)
	}

	// Messages.
	{
		ctx, cancel := context.WithCancel(ctx)
		g.Add(
			func() error {
				return c.poller.Run(ctx)
			},
			func(_ error) {
				cancel()
			},
		)
	}

	err := g.Run()

	if c.sup.Status() != model.SupervisorStateStopped {
		c.logger.Infof("Stopping bot before exiting")
		if serr := c.sup.Stop(context.Background()); serr != nil && !errors.Is(serr, model.ErrNotRunning) && !errors.Is(serr, model.ErrStopInProgress) {
			c.logger.Warningf("Could not stop bot: %v", serr)
		}
	}

	return err
}
