package command

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/slok/botctl/internal/log"
	"github.com/slok/botctl/internal/utils/env"
)

// Spec describes an external command execution.
type Spec struct {
	Name string
	Args []string
	Dir  string
	// Env replaces the process environment when set.
	Env []string
}

// String returns the command line.
func (s Spec) String() string {
	return strings.TrimSpace(s.Name + " " + strings.Join(s.Args, " "))
}

// Runner runs external commands and returns their combined output.
type Runner interface {
	Run(ctx context.Context, spec Spec) (output string, err error)
}

//go:generate mockery --case underscore --output commandmock --outpkg commandmock --name Runner

// RunnerFunc is a convenience adapter to allow the use of ordinary functions as Runners.
type RunnerFunc func(ctx context.Context, spec Spec) (string, error)

func (f RunnerFunc) Run(ctx context.Context, spec Spec) (string, error) { return f(ctx, spec) }

// ExecRunnerConfig is the configuration for the exec runner.
type ExecRunnerConfig struct {
	Logger log.Logger
}

func (c *ExecRunnerConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "command.ExecRunner"})
	return nil
}

type execRunner struct {
	logger log.Logger
}

// NewExecRunner returns a Runner backed by os/exec.
func NewExecRunner(cfg ExecRunnerConfig) (Runner, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return execRunner{logger: cfg.Logger}, nil
}

func (r execRunner) Run(ctx context.Context, spec Spec) (string, error) {
	if spec.Name == "" {
		return "", fmt.Errorf("command name is required")
	}

	r.logger.Debugf("Executing command: %s", spec)

	cmd := exec.CommandContext(ctx, spec.Name, spec.Args...)
	cmd.Dir = spec.Dir
	if spec.Env != nil {
		cmd.Env = spec.Env
	}

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			r.logger.Debugf("Command exited with code %d", exitErr.ExitCode())
			return out.String(), fmt.Errorf("%q exited with code %d: %s", spec.Name, exitErr.ExitCode(), strings.TrimSpace(out.String()))
		}
		return out.String(), fmt.Errorf("could not execute %q: %w", spec.Name, err)
	}

	return out.String(), nil
}

// EnvList converts an env map into a KEY=VALUE list merged on top of base.
func EnvList(base []string, overrides map[string]string) []string {
	if len(overrides) == 0 {
		return base
	}

	current := map[string]string{}
	for _, kv := range base {
		if k, v, ok := strings.Cut(kv, "="); ok {
			current[k] = v
		}
	}
	merged := env.Merge(current, overrides)

	return env.ToList(merged)
}
