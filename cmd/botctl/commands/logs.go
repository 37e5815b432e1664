package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/botctl/internal/logtail"
	"github.com/slok/botctl/internal/model"
)

type LogsCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	follow bool
	format string
}

// NewLogsCommand returns the logs command.
func NewLogsCommand(rootCmd *RootCommand, app *kingpin.Application) *LogsCommand {
	c := &LogsCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("logs", "Show the bot log file.")
	c.Cmd.Flag("follow", "Keep printing the log file when it changes.").Short('f').BoolVar(&c.follow)
	c.Cmd.Flag("format", "Output format.").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)

	return c
}

func (c LogsCommand) Name() string { return c.Cmd.FullCommand() }

func (c LogsCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	cfg, err := c.rootCmd.LoadConfig(ctx)
	if err != nil {
		return err
	}

	tailer, err := logtail.NewTailer(logtail.TailerConfig{
		Path:     cfg.LogPath(),
		Interval: cfg.Logs.PollInterval,
		Watch:    cfg.Logs.Watch,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("could not create log tailer: %w", err)
	}

	p := c.rootCmd.Printer(c.format)

	if !c.follow {
		return p.PrintLogSnapshot(tailer.Path(), tailer.Poll())
	}

	var last *model.LogSnapshot
	return tailer.Run(ctx, func(snap model.LogSnapshot) {
		if last != nil && last.Status == snap.Status && last.Content == snap.Content {
			return
		}
		last = &snap
		if err := p.PrintLogSnapshot(tailer.Path(), snap); err != nil {
			logger.Errorf("Could not print log snapshot: %v", err)
		}
	})
}
