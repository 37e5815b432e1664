package history

import (
	"context"
	"fmt"

	"github.com/slok/botctl/internal/install"
	"github.com/slok/botctl/internal/log"
	"github.com/slok/botctl/internal/model"
	"github.com/slok/botctl/internal/storage"
)

// ServiceConfig is the configuration for the history service.
type ServiceConfig struct {
	TaskRepository storage.TaskRepository
	Logger         log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.TaskRepository == nil {
		return fmt.Errorf("task repository is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.History"})
	return nil
}

// Service lists the install history.
type Service struct {
	repo   storage.TaskRepository
	logger log.Logger
}

// NewService creates a new history service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		repo:   cfg.TaskRepository,
		logger: cfg.Logger,
	}, nil
}

// Request represents the history request parameters.
type Request struct {
	// RunID selects a single run, when empty all the runs are listed.
	RunID string
}

// Response has the runs, or the tasks and progress of a run when a run was requested.
type Response struct {
	Runs     []model.InstallRun
	Tasks    []model.Task
	Progress *model.TaskProgress
}

// Run lists the install runs (newest first) or the steps of one run.
func (s *Service) Run(ctx context.Context, req Request) (*Response, error) {
	if req.RunID == "" {
		runs, err := s.repo.ListRuns(ctx, install.OperationInstall)
		if err != nil {
			return nil, fmt.Errorf("could not list install runs: %w", err)
		}
		return &Response{Runs: runs}, nil
	}

	tasks, err := s.repo.ListTasks(ctx, req.RunID)
	if err != nil {
		return nil, fmt.Errorf("could not list run tasks: %w", err)
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("install run %s: %w", req.RunID, model.ErrNotFound)
	}

	progress, err := s.repo.Progress(ctx, req.RunID, install.OperationInstall)
	if err != nil {
		return nil, fmt.Errorf("could not get run progress: %w", err)
	}

	return &Response{Tasks: tasks, Progress: progress}, nil
}
