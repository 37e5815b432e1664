package sqlite_test

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/botctl/internal/log"
	"github.com/slok/botctl/internal/model"
	"github.com/slok/botctl/internal/storage"
	"github.com/slok/botctl/internal/storage/sqlite"
)

func getTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sqlite.Open(context.Background(), sqlite.OpenConfig{
		DBPath: filepath.Join(t.TempDir(), "botctl-test.db"),
		Logger: log.Noop,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db
}

func getTestRepo(t *testing.T) *sqlite.TaskRepository {
	t.Helper()

	repo, err := sqlite.NewTaskRepository(sqlite.TaskRepositoryConfig{DB: getTestDB(t), Logger: log.Noop})
	require.NoError(t, err)

	return repo
}

func TestNewTaskRepository(t *testing.T) {
	_, err := sqlite.NewTaskRepository(sqlite.TaskRepositoryConfig{})
	assert.Error(t, err)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := sqlite.Open(context.Background(), sqlite.OpenConfig{})
	assert.Error(t, err)
}

func TestOpenIsIdempotent(t *testing.T) {
	require := require.New(t)

	path := filepath.Join(t.TempDir(), "nested", "botctl.db")
	db1, err := sqlite.Open(context.Background(), sqlite.OpenConfig{DBPath: path})
	require.NoError(err)
	require.NoError(db1.Close())

	db2, err := sqlite.Open(context.Background(), sqlite.OpenConfig{DBPath: path})
	require.NoError(err)
	require.NoError(db2.Close())
}

func TestAddTasks(t *testing.T) {
	tests := map[string]struct {
		runID     string
		operation string
		initial   []string
		names     []string
		expSeqs   []int
		expErr    bool
	}{
		"Adding multiple tasks should assign sequential numbers": {
			runID:     "run-1",
			operation: "install",
			names:     []string{"preflight", "runtime", "npm:express"},
			expSeqs:   []int{1, 2, 3},
		},
		"Adding tasks to existing operation should continue sequence": {
			runID:     "run-1",
			operation: "install",
			initial:   []string{"task1", "task2", "task3"},
			names:     []string{"task4", "task5"},
			expSeqs:   []int{1, 2, 3, 4, 5},
		},
		"Adding empty task list should not fail": {
			runID:     "run-1",
			operation: "install",
			names:     []string{},
		},
		"Missing run ID should fail": {
			operation: "install",
			names:     []string{"task1"},
			expErr:    true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			repo := getTestRepo(t)

			if len(test.initial) > 0 {
				require.NoError(repo.AddTasks(context.Background(), test.runID, test.operation, test.initial))
			}

			err := repo.AddTasks(context.Background(), test.runID, test.operation, test.names)

			if test.expErr {
				assert.ErrorIs(err, model.ErrNotValid)
				return
			}
			assert.NoError(err)

			for _, expSeq := range test.expSeqs {
				tsk, err := repo.NextTask(context.Background(), test.runID, test.operation)
				require.NoError(err)
				require.NotNil(tsk)
				assert.Equal(expSeq, tsk.Sequence)
				assert.Equal(test.runID, tsk.RunID)
				require.NoError(repo.CompleteTask(context.Background(), tsk.ID))
			}
		})
	}
}

func TestNextTask(t *testing.T) {
	tests := map[string]struct {
		setup     func(repo storage.TaskRepository)
		runID     string
		operation string
		expName   string
		expNil    bool
	}{
		"NextTask should return tasks in sequence order": {
			setup: func(repo storage.TaskRepository) {
				_ = repo.AddTasks(context.Background(), "run-1", "install", []string{"task1", "task2", "task3"})
			},
			runID:     "run-1",
			operation: "install",
			expName:   "task1",
		},
		"NextTask should return nil when no pending tasks": {
			setup: func(repo storage.TaskRepository) {
				_ = repo.AddTasks(context.Background(), "run-1", "install", []string{"task1"})
				tsk, _ := repo.NextTask(context.Background(), "run-1", "install")
				_ = repo.CompleteTask(context.Background(), tsk.ID)
			},
			runID:     "run-1",
			operation: "install",
			expNil:    true,
		},
		"NextTask should skip failed tasks and return next pending": {
			setup: func(repo storage.TaskRepository) {
				_ = repo.AddTasks(context.Background(), "run-1", "install", []string{"task1", "task2", "task3"})
				tsk, _ := repo.NextTask(context.Background(), "run-1", "install")
				_ = repo.FailTask(context.Background(), tsk.ID, fmt.Errorf("test error"))
			},
			runID:     "run-1",
			operation: "install",
			expName:   "task2",
		},
		"NextTask should not mix runs": {
			setup: func(repo storage.TaskRepository) {
				_ = repo.AddTasks(context.Background(), "run-1", "install", []string{"task1"})
				_ = repo.AddTasks(context.Background(), "run-2", "install", []string{"other"})
			},
			runID:     "run-2",
			operation: "install",
			expName:   "other",
		},
		"NextTask for non-existent operation should return nil": {
			setup:     func(repo storage.TaskRepository) {},
			runID:     "run-1",
			operation: "nonexistent",
			expNil:    true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert := assert.New(t)
			require := require.New(t)

			repo := getTestRepo(t)
			test.setup(repo)

			tsk, err := repo.NextTask(context.Background(), test.runID, test.operation)
			require.NoError(err)
			if test.expNil {
				assert.Nil(tsk)
				return
			}
			require.NotNil(tsk)
			assert.Equal(test.expName, tsk.Name)
			assert.Equal(model.TaskStatusPending, tsk.Status)
		})
	}
}

func TestCompleteAndFailMissingTask(t *testing.T) {
	repo := getTestRepo(t)

	err := repo.CompleteTask(context.Background(), "non-existent-id")
	assert.ErrorIs(t, err, model.ErrNotFound)

	err = repo.FailTask(context.Background(), "non-existent-id", fmt.Errorf("test"))
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestListTasks(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	repo := getTestRepo(t)
	ctx := context.Background()

	require.NoError(repo.AddTasks(ctx, "run-1", "install", []string{"preflight", "runtime", "npm:express"}))
	tsk, err := repo.NextTask(ctx, "run-1", "install")
	require.NoError(err)
	require.NoError(repo.CompleteTask(ctx, tsk.ID))
	tsk, err = repo.NextTask(ctx, "run-1", "install")
	require.NoError(err)
	require.NoError(repo.FailTask(ctx, tsk.ID, fmt.Errorf("download failed")))

	tasks, err := repo.ListTasks(ctx, "run-1")
	require.NoError(err)
	require.Len(tasks, 3)
	assert.Equal(model.TaskStatusDone, tasks[0].Status)
	assert.Equal(model.TaskStatusFailed, tasks[1].Status)
	assert.Equal("download failed", tasks[1].Error)
	assert.Equal(model.TaskStatusPending, tasks[2].Status)

	_, err = repo.ListTasks(ctx, "missing")
	assert.ErrorIs(err, model.ErrNotFound)
}

func TestListRunsAndProgress(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)

	repo := getTestRepo(t)
	ctx := context.Background()

	complete := func(runID string) {
		tsk, err := repo.NextTask(ctx, runID, "install")
		require.NoError(err)
		require.NoError(repo.CompleteTask(ctx, tsk.ID))
	}

	require.NoError(repo.AddTasks(ctx, "run-a", "install", []string{"t1", "t2"}))
	complete("run-a")
	complete("run-a")
	require.NoError(repo.AddTasks(ctx, "run-b", "install", []string{"t1", "t2"}))
	tsk, err := repo.NextTask(ctx, "run-b", "install")
	require.NoError(err)
	require.NoError(repo.FailTask(ctx, tsk.ID, fmt.Errorf("boom")))
	require.NoError(repo.AddTasks(ctx, "run-c", "install", []string{"t1", "t2"}))
	complete("run-c")

	progress, err := repo.Progress(ctx, "run-c", "install")
	require.NoError(err)
	assert.Equal(&model.TaskProgress{Done: 1, Total: 2}, progress)

	runs, err := repo.ListRuns(ctx, "install")
	require.NoError(err)
	require.Len(runs, 3)

	got := map[string]model.InstallRunStatus{}
	for _, r := range runs {
		got[r.ID] = r.Status
		assert.Equal(2, r.Total)
	}
	assert.Equal(map[string]model.InstallRunStatus{
		"run-a": model.InstallRunStatusSucceeded,
		"run-b": model.InstallRunStatusFailed,
		"run-c": model.InstallRunStatusPending,
	}, got)

	runs, err = repo.ListRuns(ctx, "other")
	require.NoError(err)
	assert.Empty(runs)
}
