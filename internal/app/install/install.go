package install

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/slok/botctl/internal/install"
	"github.com/slok/botctl/internal/log"
	"github.com/slok/botctl/internal/storage"
	"github.com/slok/botctl/internal/utils/command"
)

// ServiceConfig is the configuration for the install service.
type ServiceConfig struct {
	Probe            install.Probe
	Runner           command.Runner
	RuntimeInstaller install.Installer
	// TaskRepository records the install runs, optional.
	TaskRepository storage.TaskRepository
	Logger         log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Probe == nil {
		return fmt.Errorf("probe is required")
	}
	if c.Runner == nil {
		return fmt.Errorf("runner is required")
	}
	if c.RuntimeInstaller == nil {
		return fmt.Errorf("runtime installer is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Install"})
	return nil
}

// Service provisions the bot host: runtime and bot packages.
type Service struct {
	probe            install.Probe
	runner           command.Runner
	runtimeInstaller install.Installer
	pipeline         *install.Pipeline
	logger           log.Logger
}

// NewService creates a new install service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	p, err := install.NewPipeline(install.PipelineConfig{
		TaskRepo: cfg.TaskRepository,
		Logger:   cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create pipeline: %w", err)
	}

	return &Service{
		probe:            cfg.Probe,
		runner:           cfg.Runner,
		runtimeInstaller: cfg.RuntimeInstaller,
		pipeline:         p,
		logger:           cfg.Logger,
	}, nil
}

// Request represents the install request parameters.
type Request struct {
	BotDir   string
	Script   string
	Packages []string
	// OnProgress receives the pipeline progress, optional.
	OnProgress install.ProgressFunc
}

// Response is the result of an install.
type Response struct {
	// RunID identifies the run in the install history.
	RunID string
	Steps int
}

// Run runs the install pipeline. The response is returned even on failure so the run can be
// looked up in the history.
func (s *Service) Run(ctx context.Context, req Request) (*Response, error) {
	if req.BotDir == "" {
		return nil, fmt.Errorf("bot dir is required")
	}

	steps := install.DefaultSteps(install.DefaultStepsConfig{
		BotDir:           req.BotDir,
		Script:           req.Script,
		Packages:         req.Packages,
		Probe:            s.probe,
		Runner:           s.runner,
		RuntimeInstaller: s.runtimeInstaller,
	})

	runID := ulid.MustNew(ulid.Timestamp(time.Now().UTC()), rand.Reader).String()
	resp := &Response{RunID: runID, Steps: len(steps)}

	s.logger.Infof("Install run %s with %d steps", runID, len(steps))
	if err := s.pipeline.RunWithID(ctx, runID, steps, req.OnProgress); err != nil {
		return resp, err
	}

	return resp, nil
}
