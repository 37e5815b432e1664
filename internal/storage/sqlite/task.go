package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/slok/botctl/internal/log"
	"github.com/slok/botctl/internal/model"
	"github.com/slok/botctl/internal/storage"
)

// TaskRepositoryConfig is the configuration for the SQLite task repository.
type TaskRepositoryConfig struct {
	DB     *sql.DB
	Logger log.Logger
}

func (c *TaskRepositoryConfig) defaults() error {
	if c.DB == nil {
		return fmt.Errorf("db is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "storage.TaskRepository"})
	return nil
}

// TaskRepository is a SQLite implementation of storage.TaskRepository.
type TaskRepository struct {
	db     *sql.DB
	logger log.Logger
}

var _ storage.TaskRepository = &TaskRepository{}

// NewTaskRepository creates a new SQLite task repository.
func NewTaskRepository(cfg TaskRepositoryConfig) (*TaskRepository, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &TaskRepository{
		db:     cfg.DB,
		logger: cfg.Logger,
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

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var maxSeq int
	query := `SELECT COALESCE(MAX(sequence), 0) FROM tasks WHERE run_id = ? AND operation = ?`
	if err := tx.QueryRowContext(ctx, query, runID, operation).Scan(&maxSeq); err != nil {
		return fmt.Errorf("could not get max sequence: %w", err)
	}

	insertQuery := `
		INSERT INTO tasks (id, run_id, operation, sequence, name, status, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, '', ?)
	`
	stmt, err := tx.PrepareContext(ctx, insertQuery)
	if err != nil {
		return fmt.Errorf("could not prepare statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for i, name := range names {
		taskID := ulid.Make().String()
		sequence := maxSeq + i + 1
		_, err := stmt.ExecContext(ctx, taskID, runID, operation, sequence, name, model.TaskStatusPending, now.UnixMilli())
		if err != nil {
			return fmt.Errorf("could not insert task: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}

	r.logger.Debugf("Added %d tasks for run %s operation %s", len(names), runID, operation)
	return nil
}

const taskColumns = `id, run_id, operation, sequence, name, status, error, created_at`

// NextTask returns the next pending task of a run operation, or nil if all done.
func (r *TaskRepository) NextTask(ctx context.Context, runID, operation string) (*model.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE run_id = ? AND operation = ? AND status = ?
		ORDER BY sequence ASC
		LIMIT 1
	`

	t, err := scanTask(r.db.QueryRowContext(ctx, query, runID, operation, model.TaskStatusPending))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("could not query next task: %w", err)
	}

	return &t, nil
}

// CompleteTask marks a task as completed.
func (r *TaskRepository) CompleteTask(ctx context.Context, taskID string) error {
	if err := r.setStatus(ctx, taskID, model.TaskStatusDone, ""); err != nil {
		return err
	}

	r.logger.Debugf("Completed task: %s", taskID)
	return nil
}

// FailTask marks a task as failed with an error message.
func (r *TaskRepository) FailTask(ctx context.Context, taskID string, taskErr error) error {
	errMsg := ""
	if taskErr != nil {
		errMsg = taskErr.Error()
	}

	if err := r.setStatus(ctx, taskID, model.TaskStatusFailed, errMsg); err != nil {
		return err
	}

	r.logger.Debugf("Failed task: %s (error: %s)", taskID, errMsg)
	return nil
}

func (r *TaskRepository) setStatus(ctx context.Context, taskID string, status model.TaskStatus, errMsg string) error {
	query := `UPDATE tasks SET status = ?, error = ? WHERE id = ?`

	result, err := r.db.ExecContext(ctx, query, status, errMsg, taskID)
	if err != nil {
		return fmt.Errorf("could not update task: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("could not get rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("task %s: %w", taskID, model.ErrNotFound)
	}

	return nil
}

// Progress returns the completion progress of a run operation.
func (r *TaskRepository) Progress(ctx context.Context, runID, operation string) (*model.TaskProgress, error) {
	query := `
		SELECT
			COUNT(*) as total,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) as done
		FROM tasks
		WHERE run_id = ? AND operation = ?
	`

	var total, done int
	err := r.db.QueryRowContext(ctx, query, model.TaskStatusDone, runID, operation).Scan(&total, &done)
	if err != nil {
		return nil, fmt.Errorf("could not query progress: %w", err)
	}

	return &model.TaskProgress{
		Done:  done,
		Total: total,
	}, nil
}

// ListTasks returns the tasks of a run ordered by sequence.
func (r *TaskRepository) ListTasks(ctx context.Context, runID string) ([]model.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE run_id = ?
		ORDER BY operation ASC, sequence ASC
	`

	rows, err := r.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("could not query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []model.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("could not scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("could not iterate tasks: %w", err)
	}

	if len(tasks) == 0 {
		return nil, fmt.Errorf("run %s: %w", runID, model.ErrNotFound)
	}

	return tasks, nil
}

// ListRuns returns the run summaries of an operation, newest first.
func (r *TaskRepository) ListRuns(ctx context.Context, operation string) ([]model.InstallRun, error) {
	query := `
		SELECT
			run_id,
			MIN(created_at) as created_at,
			COUNT(*) as total,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) as done,
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0) as failed
		FROM tasks
		WHERE operation = ?
		GROUP BY run_id
		ORDER BY created_at DESC, run_id DESC
	`

	rows, err := r.db.QueryContext(ctx, query, model.TaskStatusDone, model.TaskStatusFailed, operation)
	if err != nil {
		return nil, fmt.Errorf("could not query runs: %w", err)
	}
	defer rows.Close()

	runs := []model.InstallRun{}
	for rows.Next() {
		var run model.InstallRun
		var createdAt int64
		if err := rows.Scan(&run.ID, &createdAt, &run.Total, &run.Done, &run.Failed); err != nil {
			return nil, fmt.Errorf("could not scan run: %w", err)
		}
		run.CreatedAt = time.UnixMilli(createdAt).UTC()
		run.Status = storage.RunStatus(run.Total, run.Done, run.Failed)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("could not iterate runs: %w", err)
	}

	return runs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (model.Task, error) {
	var t model.Task
	var createdAt int64

	err := s.Scan(
		&t.ID,
		&t.RunID,
		&t.Operation,
		&t.Sequence,
		&t.Name,
		&t.Status,
		&t.Error,
		&createdAt,
	)
	if err != nil {
		return model.Task{}, err
	}

	t.CreatedAt = time.UnixMilli(createdAt).UTC()
	return t, nil
}
