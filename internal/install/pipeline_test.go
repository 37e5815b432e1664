package install_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/slok/botctl/internal/install"
	"github.com/slok/botctl/internal/install/installmock"
	"github.com/slok/botctl/internal/log"
	"github.com/slok/botctl/internal/model"
	"github.com/slok/botctl/internal/storage/memory"
)

type progressRecorder struct {
	mu     sync.Mutex
	states []model.PipelineState
}

func (p *progressRecorder) record(s model.PipelineState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.states = append(p.states, s)
}

func (p *progressRecorder) all() []model.PipelineState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.PipelineState{}, p.states...)
}

func trackingStep(name string, weight int, calls *[]string, err error) install.Step {
	return install.Step{
		Name:   name,
		Weight: weight,
		Installer: install.InstallerFunc(func(ctx context.Context, report install.ReportFunc) error {
			*calls = append(*calls, name)
			return err
		}),
	}
}

func TestPipelineRun(t *testing.T) {
	tests := map[string]struct {
		steps     func(calls *[]string) []install.Step
		expCalls  []string
		expStates []model.PipelineState
		expErr    bool
	}{
		"Steps should run in order and report cumulative weighted percent.": {
			steps: func(calls *[]string) []install.Step {
				return []install.Step{
					trackingStep("a", 1, calls, nil),
					trackingStep("b", 2, calls, nil),
					trackingStep("c", 1, calls, nil),
				}
			},
			expCalls: []string{"a", "b", "c"},
			expStates: []model.PipelineState{
				{Phase: model.PipelinePhaseRunning, StepIndex: 0, StepName: "a", Percent: 0, Message: "a"},
				{Phase: model.PipelinePhaseRunning, StepIndex: 1, StepName: "b", Percent: 25, Message: "b"},
				{Phase: model.PipelinePhaseRunning, StepIndex: 2, StepName: "c", Percent: 75, Message: "c"},
				{Phase: model.PipelinePhaseSucceeded, StepIndex: 3, Percent: 100, Message: "Installation complete"},
			},
		},

		"A failing step should stop the pipeline and report the failure.": {
			steps: func(calls *[]string) []install.Step {
				return []install.Step{
					trackingStep("a", 1, calls, nil),
					trackingStep("b", 1, calls, fmt.Errorf("something")),
					trackingStep("c", 1, calls, nil),
				}
			},
			expCalls: []string{"a", "b"},
			expStates: []model.PipelineState{
				{Phase: model.PipelinePhaseRunning, StepIndex: 0, StepName: "a", Percent: 0, Message: "a"},
				{Phase: model.PipelinePhaseRunning, StepIndex: 1, StepName: "b", Percent: 33, Message: "b"},
				{Phase: model.PipelinePhaseFailed, StepIndex: 1, StepName: "b", Percent: 33, Message: "install failed at step 1 (b): something"},
			},
			expErr: true,
		},

		"Zero or negative weights should count as one.": {
			steps: func(calls *[]string) []install.Step {
				return []install.Step{
					trackingStep("a", 0, calls, nil),
					trackingStep("b", -5, calls, nil),
				}
			},
			expCalls: []string{"a", "b"},
			expStates: []model.PipelineState{
				{Phase: model.PipelinePhaseRunning, StepIndex: 0, StepName: "a", Percent: 0, Message: "a"},
				{Phase: model.PipelinePhaseRunning, StepIndex: 1, StepName: "b", Percent: 50, Message: "b"},
				{Phase: model.PipelinePhaseSucceeded, StepIndex: 2, Percent: 100, Message: "Installation complete"},
			},
		},

		"An empty pipeline should succeed at 100.": {
			steps: func(calls *[]string) []install.Step { return nil },
			expStates: []model.PipelineState{
				{Phase: model.PipelinePhaseSucceeded, StepIndex: 0, Percent: 100, Message: "Installation complete"},
			},
		},

		"Step reports should keep the current percent with a new message.": {
			steps: func(calls *[]string) []install.Step {
				return []install.Step{
					trackingStep("a", 1, calls, nil),
					{
						Name:        "b",
						Description: "Installing b",
						Installer: install.InstallerFunc(func(ctx context.Context, report install.ReportFunc) error {
							*calls = append(*calls, "b")
							report("half way")
							return nil
						}),
					},
				}
			},
			expCalls: []string{"a", "b"},
			expStates: []model.PipelineState{
				{Phase: model.PipelinePhaseRunning, StepIndex: 0, StepName: "a", Percent: 0, Message: "a"},
				{Phase: model.PipelinePhaseRunning, StepIndex: 1, StepName: "b", Percent: 50, Message: "Installing b"},
				{Phase: model.PipelinePhaseRunning, StepIndex: 1, StepName: "b", Percent: 50, Message: "half way"},
				{Phase: model.PipelinePhaseSucceeded, StepIndex: 2, Percent: 100, Message: "Installation complete"},
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			p, err := install.NewPipeline(install.PipelineConfig{Logger: log.Noop})
			require.NoError(err)

			var calls []string
			rec := &progressRecorder{}
			err = p.Run(context.Background(), test.steps(&calls), rec.record)

			if test.expErr {
				assert.Error(err)
			} else {
				assert.NoError(err)
			}
			assert.Equal(test.expCalls, calls)
			assert.Equal(test.expStates, rec.all())
		})
	}
}

func TestPipelineRunMissingInstaller(t *testing.T) {
	p, err := install.NewPipeline(install.PipelineConfig{})
	require.NoError(t, err)

	err = p.Run(context.Background(), []install.Step{{Name: "a"}}, nil)
	assert.ErrorIs(t, err, model.ErrNotValid)
}

func TestPipelineRunCancelled(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	p, err := install.NewPipeline(install.PipelineConfig{})
	require.NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	var calls []string
	steps := []install.Step{
		{
			Name: "a",
			Installer: install.InstallerFunc(func(ctx context.Context, report install.ReportFunc) error {
				calls = append(calls, "a")
				cancel()
				return nil
			}),
		},
		trackingStep("b", 1, &calls, nil),
	}

	rec := &progressRecorder{}
	err = p.Run(ctx, steps, rec.record)
	assert.ErrorIs(err, context.Canceled)
	assert.Equal([]string{"a"}, calls)

	states := rec.all()
	require.NotEmpty(states)
	last := states[len(states)-1]
	assert.Equal(model.PipelinePhaseFailed, last.Phase)
	assert.Equal("b", last.StepName)
	assert.Equal(50, last.Percent)
}

func TestPipelineRunWithMockInstaller(t *testing.T) {
	require := require.New(t)

	m := installmock.NewInstaller(t)
	m.On("Install", mock.Anything, mock.Anything).Once().Return(nil)

	p, err := install.NewPipeline(install.PipelineConfig{})
	require.NoError(err)

	err = p.Run(context.Background(), []install.Step{{Name: "mocked", Installer: m}}, nil)
	require.NoError(err)
}

func TestPipelineRunAsync(t *testing.T) {
	p, err := install.NewPipeline(install.PipelineConfig{})
	require.NoError(t, err)

	release := make(chan struct{})
	steps := []install.Step{{
		Name: "blocking",
		Installer: install.InstallerFunc(func(ctx context.Context, report install.ReportFunc) error {
			<-release
			return fmt.Errorf("something")
		}),
	}}

	result := p.RunAsync(context.Background(), steps, nil)
	close(release)

	err = <-result
	assert.Error(t, err)

	_, open := <-result
	assert.False(t, open)
}

func TestPipelineRecordsRun(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	repo, err := memory.NewTaskRepository(memory.TaskRepositoryConfig{})
	require.NoError(err)
	p, err := install.NewPipeline(install.PipelineConfig{TaskRepo: repo})
	require.NoError(err)

	var calls []string
	steps := []install.Step{
		trackingStep("a", 1, &calls, nil),
		trackingStep("b", 1, &calls, fmt.Errorf("download failed")),
		trackingStep("c", 1, &calls, nil),
	}

	err = p.RunWithID(context.Background(), "run-1", steps, nil)
	require.Error(err)

	tasks, err := repo.ListTasks(context.Background(), "run-1")
	require.NoError(err)
	require.Len(tasks, 3)
	assert.Equal(model.TaskStatusDone, tasks[0].Status)
	assert.Equal(model.TaskStatusFailed, tasks[1].Status)
	assert.Contains(tasks[1].Error, "download failed")
	assert.Equal(model.TaskStatusPending, tasks[2].Status)

	runs, err := repo.ListRuns(context.Background(), install.OperationInstall)
	require.NoError(err)
	require.Len(runs, 1)
	assert.Equal(model.InstallRunStatusFailed, runs[0].Status)
}

func TestPipelinePercentProperties(t *testing.T) {
	p, err := install.NewPipeline(install.PipelineConfig{})
	require.NoError(t, err)

	rapid.Check(t, func(rt *rapid.T) {
		weights := rapid.SliceOfN(rapid.IntRange(-2, 20), 1, 12).Draw(rt, "weights")
		failAt := rapid.IntRange(-1, len(weights)-1).Draw(rt, "failAt")

		steps := make([]install.Step, 0, len(weights))
		ran := 0
		for i, w := range weights {
			var stepErr error
			if i == failAt {
				stepErr = fmt.Errorf("step %d failed", i)
			}
			steps = append(steps, install.Step{
				Name:   fmt.Sprintf("step-%d", i),
				Weight: w,
				Installer: install.InstallerFunc(func(ctx context.Context, report install.ReportFunc) error {
					ran++
					report("working")
					return stepErr
				}),
			})
		}

		rec := &progressRecorder{}
		err := p.Run(context.Background(), steps, rec.record)
		states := rec.all()

		// Percent never regresses.
		last := 0
		for _, s := range states {
			if s.Percent < last {
				rt.Fatalf("percent regressed from %d to %d", last, s.Percent)
			}
			last = s.Percent
		}

		final := states[len(states)-1]
		if failAt < 0 {
			if err != nil || final.Phase != model.PipelinePhaseSucceeded || final.Percent != 100 {
				rt.Fatalf("expected success at 100, got %+v (err: %v)", final, err)
			}
			if ran != len(weights) {
				rt.Fatalf("expected %d steps to run, got %d", len(weights), ran)
			}
			return
		}

		// Fail fast: no step after the failing one runs.
		if err == nil || final.Phase != model.PipelinePhaseFailed || final.Percent >= 100 {
			rt.Fatalf("expected failure below 100, got %+v (err: %v)", final, err)
		}
		if ran != failAt+1 {
			rt.Fatalf("expected %d steps to run, got %d", failAt+1, ran)
		}
	})
}
