package doctor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/slok/botctl/internal/conventions"
	"github.com/slok/botctl/internal/log"
	"github.com/slok/botctl/internal/model"
)

// Check IDs.
const (
	CheckIDBotDir          = "bot_dir"
	CheckIDBotScript       = "bot_script"
	CheckIDLogDir          = "log_dir"
	CheckIDControlEndpoint = "control_endpoint"
	checkIDPackagePrefix   = "package:"
)

// Checker runs host checks.
type Checker interface {
	Check(ctx context.Context) []model.CheckResult
}

// HealthChecker checks the bot control endpoint.
type HealthChecker interface {
	Healthy(ctx context.Context) error
}

// ServiceConfig is the configuration for the doctor service.
type ServiceConfig struct {
	Probe Checker
	// Control is optional, when missing the control endpoint is not checked.
	Control HealthChecker
	Logger  log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.Probe == nil {
		return fmt.Errorf("probe is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "app.Doctor"})
	return nil
}

// Service runs the preflight checks of the bot host.
type Service struct {
	probe   Checker
	control HealthChecker
	logger  log.Logger
}

// NewService creates a new doctor service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		probe:   cfg.Probe,
		control: cfg.Control,
		logger:  cfg.Logger,
	}, nil
}

// Request represents the doctor request parameters.
type Request struct {
	Config model.BotConfig
}

// Run runs all the checks, check failures are results, not errors.
func (s *Service) Run(ctx context.Context, req Request) ([]model.CheckResult, error) {
	cfg := req.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	results := s.probe.Check(ctx)
	results = append(results,
		checkDir(CheckIDBotDir, cfg.Bot.Dir, model.CheckStatusError),
		checkFile(CheckIDBotScript, filepath.Join(cfg.Bot.Dir, cfg.Bot.Script)),
	)

	for _, pkg := range cfg.Install.Packages {
		path := conventions.PackagePath(cfg.Bot.Dir, pkg)
		r := checkDir(checkIDPackagePrefix+pkg, path, model.CheckStatusWarning)
		if r.Status != model.CheckStatusOK {
			r.Message = fmt.Sprintf("%s is not installed, run the install", pkg)
		}
		results = append(results, r)
	}

	// The bot creates its log dir, a missing one only means it never ran.
	results = append(results, checkDir(CheckIDLogDir, filepath.Dir(cfg.LogPath()), model.CheckStatusWarning))

	if s.control != nil {
		r := model.CheckResult{ID: CheckIDControlEndpoint, Status: model.CheckStatusOK, Message: fmt.Sprintf("%s is answering", cfg.Control.URL)}
		if err := s.control.Healthy(ctx); err != nil {
			r.Status = model.CheckStatusWarning
			r.Message = fmt.Sprintf("%s is not answering, bot not running? (%v)", cfg.Control.URL, err)
		}
		results = append(results, r)
	}

	sum := model.SummarizeChecks(results)
	s.logger.Debugf("%d checks, %d warnings, %d errors", len(results), sum.Warnings, sum.Errors)

	return results, nil
}

func checkDir(id, path string, failStatus model.CheckStatus) model.CheckResult {
	info, err := os.Stat(path)
	switch {
	case err != nil:
		return model.CheckResult{ID: id, Status: failStatus, Message: fmt.Sprintf("%s not found", path)}
	case !info.IsDir():
		return model.CheckResult{ID: id, Status: failStatus, Message: fmt.Sprintf("%s is not a directory", path)}
	}
	return model.CheckResult{ID: id, Status: model.CheckStatusOK, Message: path}
}

func checkFile(id, path string) model.CheckResult {
	info, err := os.Stat(path)
	switch {
	case err != nil:
		return model.CheckResult{ID: id, Status: model.CheckStatusError, Message: fmt.Sprintf("%s not found", path)}
	case info.IsDir():
		return model.CheckResult{ID: id, Status: model.CheckStatusError, Message: fmt.Sprintf("%s is a directory", path)}
	}
	return model.CheckResult{ID: id, Status: model.CheckStatusOK, Message: path}
}
