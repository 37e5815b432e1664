package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/alecthomas/kingpin/v2"
)

type SendCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	words []string
}

// NewSendCommand returns the send command.
func NewSendCommand(rootCmd *RootCommand, app *kingpin.Application) *SendCommand {
	c := &SendCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("send", "Send a chat message through the running bot.")
	c.Cmd.Arg("text", "Message text.").Required().StringsVar(&c.words)

	return c
}

func (c SendCommand) Name() string { return c.Cmd.FullCommand() }

func (c SendCommand) Run(ctx context.Context) error {
	cfg, err := c.rootCmd.LoadConfig(ctx)
	if err != nil {
		return err
	}

	svc, err := c.rootCmd.NewChatService(cfg)
	if err != nil {
		return err
	}

	if err := svc.Send(ctx, strings.Join(c.words, " ")); err != nil {
		return fmt.Errorf("could not send message: %w", err)
	}

	c.rootCmd.Logger.Infof("Message sent")
	return nil
}
