package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kingpin/v2"
	"github.com/oklog/run"
	"github.com/sirupsen/logrus"

	"github.com/slok/botctl/cmd/botctl/commands"
	"github.com/slok/botctl/internal/log"
	loglogrus "github.com/slok/botctl/internal/log/logrus"
)

const (
	// Version is the application version (set via ldflags).
	Version = "dev"

	appName = "botctl"
	appHelp = `Runs a local chat bot as a supervised Node.js process.

Use "install" to download the runtime and the bot dependencies, "run" to start the
bot and keep it alive, and "send", "logs", "messages" or "shutdown" to talk to a bot
that is already running.`
)

// quietCommands print tables or JSON on stdout, their logs are only enabled with --debug.
var quietCommands = map[string]bool{
	"history":  true,
	"logs":     true,
	"messages": true,
}

// Run runs the botctl CLI.
func Run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	app := kingpin.New(appName, appHelp)
	app.Version(Version)
	app.HelpFlag.Short('h')
	app.DefaultEnvars()
	rootCmd := commands.NewRootCommand(app)

	cmds := map[string]commands.Command{}
	for _, cmd := range []commands.Command{
		commands.NewRunCommand(rootCmd, app),
		commands.NewInstallCommand(rootCmd, app),
		commands.NewDoctorCommand(rootCmd, app),
		commands.NewHistoryCommand(rootCmd, app),
		commands.NewLogsCommand(rootCmd, app),
		commands.NewMessagesCommand(rootCmd, app),
		commands.NewSendCommand(rootCmd, app),
		commands.NewShutdownCommand(rootCmd, app),
	} {
		cmds[cmd.Name()] = cmd
	}

	cmdName, err := app.Parse(args[1:])
	if err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	cmd, ok := cmds[cmdName]
	if !ok {
		return fmt.Errorf("unknown command %q", cmdName)
	}

	rootCmd.Stdin = stdin
	rootCmd.Stdout = stdout
	rootCmd.Stderr = stderr
	if quietCommands[cmdName] && !rootCmd.Debug {
		rootCmd.NoLog = true
	}
	rootCmd.Logger = newLogger(*rootCmd)

	var g run.Group

	// Termination signals end the command, "run" stops the bot gracefully on them.
	{
		sigC := make(chan os.Signal, 1)
		signal.Notify(sigC, syscall.SIGTERM, syscall.SIGINT)
		defer signal.Stop(sigC)
		done := make(chan struct{})

		g.Add(
			func() error {
				select {
				case sig := <-sigC:
					rootCmd.Logger.Infof("Received %s, shutting down", sig)
				case <-done:
				}
				return nil
			},
			func(_ error) {
				close(done)
			},
		)
	}

	{
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		g.Add(
			func() error {
				if err := cmd.Run(ctx); err != nil {
					return fmt.Errorf("%s: %w", cmdName, err)
				}
				return nil
			},
			func(_ error) {
				cancel()
			},
		)
	}

	return g.Run()
}

// newLogger logs to stderr so stdout only carries command output.
func newLogger(rootCmd commands.RootCommand) log.Logger {
	if rootCmd.NoLog {
		return log.Noop
	}

	l := logrus.New()
	l.Out = rootCmd.Stderr
	if rootCmd.Debug {
		l.SetLevel(logrus.DebugLevel)
	}

	switch rootCmd.LoggerType {
	case commands.LoggerTypeJSON:
		l.SetFormatter(&logrus.JSONFormatter{})
	default:
		l.SetFormatter(&logrus.TextFormatter{
			ForceColors:   !rootCmd.NoColor,
			DisableColors: rootCmd.NoColor,
			FullTimestamp: true,
		})
	}

	logger := loglogrus.NewLogrus(logrus.NewEntry(l)).WithValues(log.Kv{
		"app":     appName,
		"version": Version,
	})
	logger.Debugf("Debug logging enabled")

	return logger
}

func main() {
	if err := Run(context.Background(), os.Args, os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "botctl: %s\n", err)
		os.Exit(1)
	}
}
