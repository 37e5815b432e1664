package commands

import (
	"context"
	"fmt"

	"github.com/alecthomas/kingpin/v2"

	"github.com/slok/botctl/internal/app/doctor"
	"github.com/slok/botctl/internal/model"
)

type DoctorCommand struct {
	Cmd     *kingpin.CmdClause
	rootCmd *RootCommand

	format    string
	noControl bool
}

// NewDoctorCommand returns the doctor command.
func NewDoctorCommand(rootCmd *RootCommand, app *kingpin.Application) *DoctorCommand {
	c := &DoctorCommand{rootCmd: rootCmd}

	c.Cmd = app.Command("doctor", "Run host preflight checks for the bot.")
	c.Cmd.Flag("format", "Output format.").Default(formatTable).EnumVar(&c.format, formatTable, formatJSON)
	c.Cmd.Flag("no-control", "Skip the bot control endpoint check.").BoolVar(&c.noControl)

	return c
}

func (c DoctorCommand) Name() string { return c.Cmd.FullCommand() }

func (c DoctorCommand) Run(ctx context.Context) error {
	logger := c.rootCmd.Logger

	cfg, err := c.rootCmd.LoadConfig(ctx)
	if err != nil {
		return err
	}

	p, _, err := c.rootCmd.NewProbe(cfg)
	if err != nil {
		return err
	}

	svcCfg := doctor.ServiceConfig{
		Probe:  p,
		Logger: logger,
	}
	if !c.noControl {
		cli, err := c.rootCmd.NewControlClient(cfg)
		if err != nil {
			return fmt.Errorf("could not create control client: %w", err)
		}
		svcCfg.Control = cli
	}

	svc, err := doctor.NewService(svcCfg)
	if err != nil {
		return fmt.Errorf("could not create doctor service: %w", err)
	}

	results, err := svc.Run(ctx, doctor.Request{Config: cfg})
	if err != nil {
		return err
	}

	if err := c.rootCmd.Printer(c.format).PrintChecks(results); err != nil {
		return fmt.Errorf("could not print results: %w", err)
	}

	if model.HasErrors(results) {
		return fmt.Errorf("doctor checks failed with %d error(s)", model.SummarizeChecks(results).Errors)
	}

	return nil
}
