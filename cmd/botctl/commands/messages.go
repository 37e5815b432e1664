package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/botctl/internal/app/chat"
	"github.com/slok/botctl/internal/model"
	"github.com/slok/botctl/internal/relay"
)

type MessagesCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	follow bool
	format string
}

// NewMessagesCommand returns the messages command.
func NewMessagesCommand(rootCmd *RootCommand, app *kingpin.Application) *MessagesCommand {
	c := &MessagesCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("messages", "Show the chat messages relayed by the running bot.")
	c.Cmd.Alias("msgs")
	c.Cmd.Flag("follow", "Keep printing new messages.").Short('f').BoolVar(&c.follow)
	c.Cmd.Flag("format", "Output format.").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)

	return c
}

func (c MessagesCommand) Name() string { return c.Cmd.FullCommand() }

func (c MessagesCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	cfg, err := c.rootCmd.LoadConfig(ctx)
	if err != nil {
		return err
	}

	svc, err := c.rootCmd.NewChatService(cfg)
	if err != nil {
		return err
	}

	p := c.rootCmd.Printer(c.format)

	if !c.follow {
		msgs, err := svc.Messages(ctx)
		if err != nil {
			return fmt.Errorf("%s: %w", relay.MessagesErrorText, err)
		}
		return p.PrintMessages(msgs)
	}

	return svc.Follow(ctx, chat.FollowRequest{
		Interval: cfg.Relay.PollInterval,
		OnNew: func(msgs []model.ChatMessage) {
			if err := p.PrintMessages(msgs); err != nil {
				logger.Errorf("Could not print messages: %v", err)
			}
		},
		OnError: func(err error) {
			logger.Warningf("%s: %v", relay.MessagesErrorText, err)
		},
	})
}
