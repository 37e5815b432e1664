package install

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/slok/botctl/internal/model"
	"github.com/slok/botctl/internal/utils/command"
)

// Probe is the host environment detection the steps depend on.
type Probe interface {
	RuntimePresent(ctx context.Context) bool
	PackageManager() string
	LookPath(name string) (string, error)
	Env() []string
}

const (
	StepNamePreflight = "preflight"
	StepNameRuntime   = "runtime"

	stepWeightPreflight = 1
	stepWeightRuntime   = 3
	stepWeightPackage   = 1
)

// NewPreflightStep checks the bot directory and its entry script exist.
func NewPreflightStep(botDir, script string) Step {
	return Step{
		Name:        StepNamePreflight,
		Description: "Checking bot files",
		Weight:      stepWeightPreflight,
		Installer: InstallerFunc(func(ctx context.Context, report ReportFunc) error {
			info, err := os.Stat(botDir)
			if err != nil {
				return fmt.Errorf("bot dir %q: %w", botDir, model.ErrNotValid)
			}
			if !info.IsDir() {
				return fmt.Errorf("bot dir %q is not a directory: %w", botDir, model.ErrNotValid)
			}

			scriptPath := filepath.Join(botDir, script)
			if _, err := os.Stat(scriptPath); err != nil {
				return fmt.Errorf("bot script %q: %w", scriptPath, model.ErrNotValid)
			}

			report("Bot files present")
			return nil
		}),
	}
}

// NewRuntimeStep makes sure the runtime and the package manager are available, installing
// the runtime unattended when they are not. It is a no-op when both are present.
func NewRuntimeStep(probe Probe, runtimeInstaller Installer) Step {
	return Step{
		Name:        StepNameRuntime,
		Description: "Checking Node.js runtime",
		Weight:      stepWeightRuntime,
		Installer: InstallerFunc(func(ctx context.Context, report ReportFunc) error {
			if probe.RuntimePresent(ctx) {
				report("Node.js already installed")
				return nil
			}

			report("Node.js not found, installing")
			if err := runtimeInstaller.Install(ctx, report); err != nil {
				return fmt.Errorf("%w: %w", model.ErrRuntimeInstallFailed, err)
			}

			if !probe.RuntimePresent(ctx) {
				return fmt.Errorf("runtime still not available after install: %w", model.ErrRuntimeInstallFailed)
			}

			return nil
		}),
	}
}

// NewPackageStep installs a package into the bot dir with the package manager.
func NewPackageStep(runner command.Runner, probe Probe, pkg, prefix string) Step {
	return Step{
		Name:        "npm:" + pkg,
		Description: fmt.Sprintf("Installing %s", pkg),
		Weight:      stepWeightPackage,
		Installer: InstallerFunc(func(ctx context.Context, report ReportFunc) error {
			pm, err := probe.LookPath(probe.PackageManager())
			if err != nil {
				return fmt.Errorf("%w: %w", model.ErrPackageInstallFailed, err)
			}

			_, err = runner.Run(ctx, command.Spec{
				Name: pm,
				Args: []string{"install", pkg, "--prefix", prefix},
				Dir:  prefix,
				Env:  probe.Env(),
			})
			if err != nil {
				return fmt.Errorf("%w: %s: %w", model.ErrPackageInstallFailed, pkg, err)
			}

			report(fmt.Sprintf("%s installed", pkg))
			return nil
		}),
	}
}

// DefaultStepsConfig is the configuration of the default install steps.
type DefaultStepsConfig struct {
	BotDir           string
	Script           string
	Packages         []string
	Probe            Probe
	Runner           command.Runner
	RuntimeInstaller Installer
}

// DefaultSteps returns the bot host provisioning steps: preflight, runtime and one step per package.
func DefaultSteps(cfg DefaultStepsConfig) []Step {
	steps := []Step{
		NewPreflightStep(cfg.BotDir, cfg.Script),
		NewRuntimeStep(cfg.Probe, cfg.RuntimeInstaller),
	}
	for _, pkg := range cfg.Packages {
		steps = append(steps, NewPackageStep(cfg.Runner, cfg.Probe, pkg, cfg.BotDir))
	}

	return steps
}
