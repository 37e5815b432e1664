package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	appinstall "github.com/slok/botctl/internal/app/install"
	"github.com/slok/botctl/internal/model"
)

type InstallCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	packages  []string
	noHistory bool
}

// NewInstallCommand returns the install command.
func NewInstallCommand(rootCmd *RootCommand, app *kingpin.Application) *InstallCommand {
	c := &InstallCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("install", "Install the bot runtime and its npm packages.")
	c.Cmd.Flag("package", "npm package to install, repeatable (replaces the configured ones).").Short('p').StringsVar(&c.packages)
	c.Cmd.Flag("no-history", "Don't record the run in the install history.").BoolVar(&c.noHistory)

	return c
}

func (c InstallCommand) Name() string { return c.Cmd.FullCommand() }

func (c InstallCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger
	out := c.rootCmd.Stdout

	cfg, err := c.rootCmd.LoadConfig(ctx)
	if err != nil {
		return err
	}
	if len(c.packages) > 0 {
		cfg.Install.Packages = c.packages
	}

	svc, err := c.rootCmd.NewInstallService(ctx, cfg, !c.noHistory)
	if err != nil {
		return err
	}

	resp, err := svc.Run(ctx, appinstall.Request{
		BotDir:   cfg.Bot.Dir,
		Script:   cfg.Bot.Script,
		Packages: cfg.Install.Packages,
		OnProgress: func(s model.PipelineState) {
			fmt.Fprintf(out, "[%3d%%] %s\n", s.Percent, s.Message)
		},
	})
	if err != nil {
		return fmt.Errorf("install failed: %w", err)
	}

	logger.Infof("Install run %s finished with %d steps", resp.RunID, resp.Steps)
	fmt.Fprintf(out, "Install %s succeeded\n", resp.RunID)

	return nil
}
