package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"
)

type ShutdownCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand
}

// NewShutdownCommand returns the shutdown command.
func NewShutdownCommand(rootCmd *RootCommand, app *kingpin.Application) *ShutdownCommand {
	c := &ShutdownCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("shutdown", "Ask the running bot to shut down gracefully.")

	return c
}

func (c ShutdownCommand) Name() string { return c.Cmd.FullCommand() }

func (c ShutdownCommand) Run(ctx context.Context) error {
	cfg, err := c.rootCmd.LoadConfig(ctx)
	if err != nil {
		return err
	}

	svc, err := c.rootCmd.NewChatService(cfg)
	if err != nil {
		return err
	}

	if err := svc.Shutdown(ctx); err != nil {
		return fmt.Errorf("could not request shutdown: %w", err)
	}

	fmt.Fprintln(c.rootCmd.Stdout, "Shutdown requested")
	return nil
}
