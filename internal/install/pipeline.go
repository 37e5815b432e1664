package install

import (
	"context"
	"fmt"

	"github.com/oklog/ulid/v2"

	"github.com/slok/botctl/internal/log"
	"github.com/slok/botctl/internal/model"
	"github.com/slok/botctl/internal/storage"
)

// OperationInstall is the task operation name of install pipeline runs.
const OperationInstall = "install"

// ProgressFunc receives the pipeline progress events.
type ProgressFunc func(state model.PipelineState)

// Step is a named and weighted unit of work of the pipeline.
type Step struct {
	Name string
	// Description is the progress message shown when the step starts, defaults to the name.
	Description string
	// Weight is the share of the step in the overall percent, values <= 0 count as 1.
	Weight    int
	Installer Installer
}

func (s Step) weight() int {
	if s.Weight <= 0 {
		return 1
	}
	return s.Weight
}

func (s Step) description() string {
	if s.Description != "" {
		return s.Description
	}
	return s.Name
}

// PipelineConfig is the configuration of the install pipeline.
type PipelineConfig struct {
	// TaskRepo records every run as ordered tasks. Optional.
	TaskRepo storage.TaskRepository
	Logger   log.Logger
}

func (c *PipelineConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "install.Pipeline"})
	return nil
}

// Pipeline runs install steps in order, stopping on the first failure.
type Pipeline struct {
	taskRepo storage.TaskRepository
	logger   log.Logger
}

// NewPipeline returns a new install pipeline.
func NewPipeline(cfg PipelineConfig) (*Pipeline, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Pipeline{
		taskRepo: cfg.TaskRepo,
		logger:   cfg.Logger,
	}, nil
}

// RunAsync runs the pipeline on its own goroutine, the result is sent on the returned channel.
func (p *Pipeline) RunAsync(ctx context.Context, steps []Step, onProgress ProgressFunc) <-chan error {
	result := make(chan error, 1)
	go func() {
		defer close(result)
		result <- p.Run(ctx, steps, onProgress)
	}()

	return result
}

// Run runs the pipeline with a new run ID.
func (p *Pipeline) Run(ctx context.Context, steps []Step, onProgress ProgressFunc) error {
	return p.RunWithID(ctx, ulid.Make().String(), steps, onProgress)
}

// RunWithID runs the steps in declared order. Before each step a running event with the
// cumulative percent of the completed steps is emitted. The first failing step stops the
// run with a failed event, on success a succeeded event at 100 percent is emitted.
func (p *Pipeline) RunWithID(ctx context.Context, runID string, steps []Step, onProgress ProgressFunc) error {
	if onProgress == nil {
		onProgress = func(model.PipelineState) {}
	}
	logger := p.logger.WithValues(log.Kv{"run-id": runID})

	total := 0
	names := make([]string, 0, len(steps))
	for _, s := range steps {
		if s.Installer == nil {
			return fmt.Errorf("step %q has no installer: %w", s.Name, model.ErrNotValid)
		}
		total += s.weight()
		names = append(names, s.Name)
	}

	p.recordRun(ctx, logger, runID, names)

	done := 0
	percent := 0
	for i, step := range steps {
		if err := ctx.Err(); err != nil {
			err = fmt.Errorf("install cancelled at step %d (%s): %w", i, step.Name, err)
			p.recordStep(logger, runID, step.Name, err)
			onProgress(model.PipelineState{
				Phase:     model.PipelinePhaseFailed,
				StepIndex: i,
				StepName:  step.Name,
				Percent:   percent,
				Message:   err.Error(),
			})
			return err
		}

		logger.Infof("[%d/%d] %s", i+1, len(steps), step.description())
		running := model.PipelineState{
			Phase:     model.PipelinePhaseRunning,
			StepIndex: i,
			StepName:  step.Name,
			Percent:   percent,
			Message:   step.description(),
		}
		onProgress(running)

		report := func(msg string) {
			s := running
			s.Message = msg
			onProgress(s)
		}

		if err := step.Installer.Install(ctx, report); err != nil {
			err = fmt.Errorf("install failed at step %d (%s): %w", i, step.Name, err)
			p.recordStep(logger, runID, step.Name, err)
			onProgress(model.PipelineState{
				Phase:     model.PipelinePhaseFailed,
				StepIndex: i,
				StepName:  step.Name,
				Percent:   percent,
				Message:   err.Error(),
			})
			return err
		}
		p.recordStep(logger, runID, step.Name, nil)

		done += step.weight()
		percent = done * 100 / total
	}

	onProgress(model.PipelineState{
		Phase:     model.PipelinePhaseSucceeded,
		StepIndex: len(steps),
		Percent:   100,
		Message:   "Installation complete",
	})
	logger.Infof("Installation complete")

	return nil
}

func (p *Pipeline) recordRun(ctx context.Context, logger log.Logger, runID string, names []string) {
	if p.taskRepo == nil {
		return
	}

	if err := p.taskRepo.AddTasks(ctx, runID, OperationInstall, names); err != nil {
		logger.Warningf("Could not record install run: %s", err)
	}
}

// recordStep marks the step task as completed or failed. Recording never fails the run.
func (p *Pipeline) recordStep(logger log.Logger, runID, name string, stepErr error) {
	if p.taskRepo == nil {
		return
	}

	// Recording must happen even when the run context has been cancelled.
	ctx := context.Background()

	tsk, err := p.taskRepo.NextTask(ctx, runID, OperationInstall)
	if err != nil {
		logger.Warningf("Could not get next task: %s", err)
		return
	}
	if tsk == nil || tsk.Name != name {
		logger.Warningf("Expected pending task %q, not found", name)
		return
	}

	if stepErr != nil {
		err = p.taskRepo.FailTask(ctx, tsk.ID, stepErr)
	} else {
		err = p.taskRepo.CompleteTask(ctx, tsk.ID)
	}
	if err != nil {
		logger.Warningf("Could not record task %q: %s", name, err)
	}
}
