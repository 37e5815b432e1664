package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/slok/botctl/internal/log"
	"github.com/slok/botctl/internal/model"
	"github.com/slok/botctl/internal/storage"
)

// TaskRepositoryConfig is the configuration for the memory task repository.
type TaskRepositoryConfig struct {
	Logger log.Logger
}

func (c *TaskRepositoryConfig) defaults() error {
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.Memory"})
	return nil
}

// TaskRepository is an in-memory implementation of storage.TaskRepository.
type TaskRepository struct {
	tasks []model.Task
	mu    sync.RWMutex
	// runOrder keeps the insertion order of runs, timestamps can collide.
	runOrder map[string]int
	logger   log.Logger
}

var _ storage.TaskRepository = &TaskRepository{}

// NewTaskRepository creates a new memory task repository.
func NewTaskRepository(cfg TaskRepositoryConfig) (*TaskRepository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &TaskRepository{
		runOrder: map[string]int{},
		logger:   cfg.Logger,
	}, nil
}

// AddTasks adds multiple tasks to a run operation in order.
func (r *TaskRepository) AddTasks(ctx context.Context, runID, operation string, names []string) error {
	if runID == "" || operation == "" {
		return fmt.Errorf("run id and operation are required: %w", model.ErrNotValid)
	}
	if len(names) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	maxSeq := 0
	for _, t := range r.tasks {
		if t.RunID == runID && t.Operation == operation && t.Sequence > maxSeq {
			maxSeq = t.Sequence
		}
	}
	if _, ok := r.runOrder[runID]; !ok {
		r.runOrder[runID] = len(r.runOrder)
	}

	now := time.Now().UTC()
	for i, name := range names {
		r.tasks = append(r.tasks, model.Task{
			ID:        ulid.Make().String(),
			RunID:     runID,
			Operation: operation,
			Sequence:  maxSeq + i + 1,
			Name:      name,
			Status:    model.TaskStatusPending,
			CreatedAt: now,
		})
	}

	r.logger.Debugf("Added %d tasks for run %s operation %s", len(names), runID, operation)
	return nil
}

// NextTask returns the next pending task of a run operation, or nil if all done.
func (r *TaskRepository) NextTask(ctx context.Context, runID, operation string) (*model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var next *model.Task
	for _, t := range r.tasks {
		if t.RunID != runID || t.Operation != operation || t.Status != model.TaskStatusPending {
			continue
		}
		if next == nil || t.Sequence < next.Sequence {
			tc := t
			next = &tc
		}
	}

	return next, nil
}

// CompleteTask marks a task as completed.
func (r *TaskRepository) CompleteTask(ctx context.Context, taskID string) error {
	return r.setStatus(taskID, model.TaskStatusDone, "")
}

// FailTask marks a task as failed with an error message.
func (r *TaskRepository) FailTask(ctx context.Context, taskID string, taskErr error) error {
	errMsg := ""
	if taskErr != nil {
		errMsg = taskErr.Error()
	}
	return r.setStatus(taskID, model.TaskStatusFailed, errMsg)
}

func (r *TaskRepository) setStatus(taskID string, status model.TaskStatus, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range r.tasks {
		if r.tasks[i].ID == taskID {
			r.tasks[i].Status = status
			r.tasks[i].Error = errMsg
			return nil
		}
	}

	return fmt.Errorf("task %s: %w", taskID, model.ErrNotFound)
}

// Progress returns the completion progress of a run operation.
func (r *TaskRepository) Progress(ctx context.Context, runID, operation string) (*model.TaskProgress, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p := &model.TaskProgress{}
	for _, t := range r.tasks {
		if t.RunID != runID || t.Operation != operation {
			continue
		}
		p.Total++
		if t.Status == model.TaskStatusDone {
			p.Done++
		}
	}

	return p, nil
}

// ListTasks returns the tasks of a run ordered by sequence.
func (r *TaskRepository) ListTasks(ctx context.Context, runID string) ([]model.Task, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tasks := []model.Task{}
	for _, t := range r.tasks {
		if t.RunID == runID {
			tasks = append(tasks, t)
		}
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("run %s: %w", runID, model.ErrNotFound)
	}

	sort.SliceStable(tasks, func(i, j int) bool {
		if tasks[i].Operation != tasks[j].Operation {
			return tasks[i].Operation < tasks[j].Operation
		}
		return tasks[i].Sequence < tasks[j].Sequence
	})

	return tasks, nil
}

// ListRuns returns the run summaries of an operation, newest first.
func (r *TaskRepository) ListRuns(ctx context.Context, operation string) ([]model.InstallRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	byID := map[string]*model.InstallRun{}
	for _, t := range r.tasks {
		if t.Operation != operation {
			continue
		}
		run, ok := byID[t.RunID]
		if !ok {
			run = &model.InstallRun{ID: t.RunID, CreatedAt: t.CreatedAt}
			byID[t.RunID] = run
		}
		run.Total++
		switch t.Status {
		case model.TaskStatusDone:
			run.Done++
		case model.TaskStatusFailed:
			run.Failed++
		}
	}

	runs := make([]model.InstallRun, 0, len(byID))
	for _, run := range byID {
		run.Status = storage.RunStatus(run.Total, run.Done, run.Failed)
		runs = append(runs, *run)
	}
	sort.Slice(runs, func(i, j int) bool {
		return r.runOrder[runs[i].ID] > r.runOrder[runs[j].ID]
	})

	return runs, nil
}
