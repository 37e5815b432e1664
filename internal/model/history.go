package model

import "time"

// TaskStatus is the state of a recorded install step.
type TaskStatus string

const (
	TaskStatusPending TaskStatus = "pending"
	TaskStatusDone    TaskStatus = "done"
	TaskStatusFailed  TaskStatus = "failed"
)

// Task is one recorded step of an install run, Sequence follows the step order.
type Task struct {
	ID        string
	RunID     string
	Operation string
	Sequence  int
	Name      string
	Status    TaskStatus
	Error     string
	CreatedAt time.Time
}

// TaskProgress counts the finished steps of a run.
type TaskProgress struct {
	Done  int
	Total int
}

// InstallRunStatus is the aggregated status of a recorded install run.
type InstallRunStatus string

const (
	InstallRunStatusPending   InstallRunStatus = "pending"
	InstallRunStatusSucceeded InstallRunStatus = "succeeded"
	InstallRunStatusFailed    InstallRunStatus = "failed"
)

// InstallRun summarizes the tasks of a recorded install run.
type InstallRun struct {
	ID        string
	Status    InstallRunStatus
	Total     int
	Done      int
	Failed    int
	CreatedAt time.Time
}
