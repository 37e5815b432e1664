package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/botctl/internal/app/history"
)

type HistoryCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	runID  string
	format string
}

// NewHistoryCommand returns the history command.
func NewHistoryCommand(rootCmd *RootCommand, app *kingpin.Application) *HistoryCommand {
	c := &HistoryCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("history", "List install runs, or the steps of one run.")
	c.Cmd.Arg("run-id", "Install run ID to show the steps of.").StringVar(&c.runID)
	c.Cmd.Flag("format", "Output format.").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)

	return c
}

func (c HistoryCommand) Name() string { return c.Cmd.FullCommand() }

func (c HistoryCommand) Run(ctx context.Context) error {
	repo, err := c.rootCmd.OpenTaskRepository(ctx)
	if err != nil {
		return err
	}

	svc, err := history.NewService(history.ServiceConfig{
		TaskRepository: repo,
		Logger:         c.rootCmd.Logger,
	})
	if err != nil {
		return fmt.Errorf("could not create history service: %w", err)
	}

	resp, err := svc.Run(ctx, history.Request{RunID: c.runID})
	if err != nil {
		return err
	}

	p := c.rootCmd.Printer(c.format)
	if c.runID != "" {
		return p.PrintTasks(resp.Tasks, resp.Progress)
	}
	return p.PrintRuns(resp.Runs)
}
