package model

import (
	"fmt"
	"time"
)

// SupervisorState represents the lifecycle state of a supervised process.
type SupervisorState string

const (
	// SupervisorStateStopped indicates there is no process owned by the supervisor.
	SupervisorStateStopped SupervisorState = "stopped"
	// SupervisorStateStarting indicates the process was spawned and is settling.
	SupervisorStateStarting SupervisorState = "starting"
	// SupervisorStateRunning indicates the process is considered healthy.
	SupervisorStateRunning SupervisorState = "running"
	// SupervisorStateStopping indicates a stop is in progress.
	SupervisorStateStopping SupervisorState = "stopping"
)

// Command describes how to launch the supervised process.
type Command struct {
	Path string
	Args []string
	// Dir is the working directory, the child resolves its relative paths from here.
	Dir string
	Env map[string]string
}

// Validate validates the command.
func (c Command) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("command path is required: %w", ErrNotValid)
	}
	return nil
}

// String returns the command line.
func (c Command) String() string {
	s := c.Path
	for _, a := range c.Args {
		s += " " + a
	}
	return s
}

// ManagedProcess is the process currently owned by a supervisor.
type ManagedProcess struct {
	PID        int
	LaunchTime time.Time
	WorkingDir string
	Command    Command
}
