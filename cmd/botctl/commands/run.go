package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/botctl/internal/app/dashboard"
	"github.com/slok/botctl/internal/model"
	"github.com/slok/botctl/internal/relay"
	"github.com/slok/botctl/internal/supervisor"
)

type RunCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	install    bool
	attach     bool
	noLogs     bool
	noMessages bool
	chat       bool
}

// NewRunCommand returns the run command.
func NewRunCommand(rootCmd *RootCommand, app *kingpin.Application) *RunCommand {
	c := &RunCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("run", "Run the bot in the foreground until a termination signal is received.")
	c.Cmd.Flag("install", "Run the install pipeline before starting the bot.").BoolVar(&c.install)
	c.Cmd.Flag("attach", "Attach the bot output to the terminal.").BoolVar(&c.attach)
	c.Cmd.Flag("no-logs", "Don't print the bot log file.").BoolVar(&c.noLogs)
	c.Cmd.Flag("no-messages", "Don't print the bot chat messages.").BoolVar(&c.noMessages)
	c.Cmd.Flag("chat", "Send every stdin line as a chat message.").BoolVar(&c.chat)

	return c
}

func (c RunCommand) Name() string { return c.Cmd.FullCommand() }

func (c RunCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	cfg, err := c.rootCmd.LoadConfig(ctx)
	if err != nil {
		return err
	}

	p, _, err := c.rootCmd.NewProbe(cfg)
	if err != nil {
		return err
	}
	if _, err := p.LookPath(cfg.Bot.Runtime); err != nil && !c.install {
		logger.Warningf("Runtime %q not found, install it with the install command", cfg.Bot.Runtime)
	}

	spawnerCfg := supervisor.ExecSpawnerConfig{
		Stdout:   io.Discard,
		Stderr:   io.Discard,
		Resolver: p,
		Logger:   logger,
	}
	if c.attach {
		spawnerCfg.Stdout = c.rootCmd.Stdout
		spawnerCfg.Stderr = c.rootCmd.Stderr
	}
	spawner, err := supervisor.NewExecSpawner(spawnerCfg)
	if err != nil {
		return fmt.Errorf("could not create spawner: %w", err)
	}

	cli, err := c.rootCmd.NewControlClient(cfg)
	if err != nil {
		return fmt.Errorf("could not create control client: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ctrlCfg := dashboard.ControllerConfig{
		BotConfig: cfg,
		Spawner:   spawner,
		Control:   cli,
		Callbacks: c.callbacks(cfg.LogPath(), cancel),
		Logger:    logger,
	}
	if c.install {
		svc, err := c.rootCmd.NewInstallService(ctx, cfg, true)
		if err != nil {
			return err
		}
		ctrlCfg.Install = svc
	}

	ctrl, err := dashboard.NewController(ctrlCfg)
	if err != nil {
		return fmt.Errorf("could not create controller: %w", err)
	}

	if c.install {
		if err := <-ctrl.Install(ctx); err != nil {
			return fmt.Errorf("install failed: %w", err)
		}
	}

	proc, err := ctrl.StartBot(ctx)
	if err != nil {
		return fmt.Errorf("could not start bot: %w", err)
	}
	logger.Infof("Bot started with PID %d", proc.PID)

	if c.chat {
		go c.relayStdin(ctx, ctrl)
	}

	return ctrl.Run(ctx)
}

// callbacks render the controller events on the terminal, exitFn is called when the
// bot exits on its own.
func (c RunCommand) callbacks(logPath string, exitFn func()) dashboard.Callbacks {
	logger := c.rootCmd.Logger
	out := c.rootCmd.Stdout
	pr := c.rootCmd.Printer(formatTable)

	var (
		mu       sync.Mutex
		lastLog  model.LogSnapshot
		seenMsgs int
	)

	cb := dashboard.Callbacks{
		OnStateChanged: func(s model.SupervisorState) {
			mu.Lock()
			defer mu.Unlock()
			fmt.Fprintf(out, "Bot is %s\n", s)
		},
		OnExitedExternally: func(p model.ManagedProcess) {
			logger.Warningf("Bot (PID %d) exited on its own", p.PID)
			exitFn()
		},
		OnProgress: func(s model.PipelineState) {
			mu.Lock()
			defer mu.Unlock()
			fmt.Fprintf(out, "[%3d%%] %s\n", s.Percent, s.Message)
		},
		OnPipelineDone: func(runID string, err error) {
			if err != nil {
				logger.Errorf("Install %s failed: %v", runID, err)
				return
			}
			logger.Infof("Install %s succeeded", runID)
		},
		OnMessagesError: func(err error) {
			logger.Debugf("%s: %v", relay.MessagesErrorText, err)
		},
	}

	if !c.noLogs {
		cb.OnLogSnapshot = func(snap model.LogSnapshot) {
			mu.Lock()
			defer mu.Unlock()
			if snap.Status == lastLog.Status && snap.Content == lastLog.Content {
				return
			}
			lastLog = snap
			if err := pr.PrintLogSnapshot(logPath, snap); err != nil {
				logger.Errorf("Could not print log snapshot: %v", err)
			}
		}
	}

	if !c.noMessages {
		cb.OnMessages = func(msgs []model.ChatMessage) {
			mu.Lock()
			defer mu.Unlock()
			if len(msgs) < seenMsgs {
				seenMsgs = 0
			}
			for _, m := range msgs[seenMsgs:] {
				fmt.Fprintln(out, relay.Format(m))
			}
			seenMsgs = len(msgs)
		}
	}

	return cb
}

func (c RunCommand) relayStdin(ctx context.Context, ctrl *dashboard.Controller) {
	logger := c.rootCmd.Logger

	sc := bufio.NewScanner(c.rootCmd.Stdin)
	for sc.Scan() {
		if ctx.Err() != nil {
			return
		}
		if err := ctrl.SendMessage(ctx, sc.Text()); err != nil {
			logger.Warningf("Could not send message: %v", err)
		}
	}
}
