package storage

import (
	"context"

	"github.com/slok/botctl/internal/model"
)

// TaskRepository persists multi-step operations as ordered tasks grouped by run.
type TaskRepository interface {
	// AddTasks adds multiple tasks to a run operation in order.
	AddTasks(ctx context.Context, runID, operation string, names []string) error
	// NextTask returns the next pending task of a run operation, or nil if all done.
	NextTask(ctx context.Context, runID, operation string) (*model.Task, error)
	// CompleteTask marks a task as completed.
	CompleteTask(ctx context.Context, taskID string) error
	// FailTask marks a task as failed with an error message.
	FailTask(ctx context.Context, taskID string, err error) error
	// Progress returns the completion progress of a run operation.
	Progress(ctx context.Context, runID, operation string) (*model.TaskProgress, error)
	// ListTasks returns the tasks of a run ordered by sequence.
	ListTasks(ctx context.Context, runID string) ([]model.Task, error)
	// ListRuns returns the run summaries of an operation, newest first.
	ListRuns(ctx context.Context, operation string) ([]model.InstallRun, error)
}

//go:generate mockery --case underscore --output storagemock --outpkg storagemock --name TaskRepository

// RunStatus aggregates the status of a run from its task counts.
func RunStatus(total, done, failed int) model.InstallRunStatus {
	switch {
	case failed > 0:
		return model.InstallRunStatusFailed
	case total > 0 && done == total:
		return model.InstallRunStatusSucceeded
	default:
		return model.InstallRunStatusPending
	}
}
