package model

import "errors"

var (
	// ErrNotFound is returned when a config file, run or task does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNotValid is returned on invalid configuration or missing bot files.
	ErrNotValid = errors.New("not valid")

	// ErrAlreadyRunning is returned when starting a supervisor that already owns a process.
	ErrAlreadyRunning = errors.New("already running")
	// ErrNotRunning is returned when stopping a supervisor that owns no process.
	ErrNotRunning = errors.New("not running")
	// ErrStopInProgress is returned when a stop is requested while another one is ongoing.
	ErrStopInProgress = errors.New("stop in progress")
	// ErrSpawnFailed is returned when the OS could not create the process.
	ErrSpawnFailed = errors.New("spawn failed")

	// ErrRuntimeInstallFailed is returned when the runtime could not be installed.
	ErrRuntimeInstallFailed = errors.New("runtime install failed")
	// ErrPackageInstallFailed is returned when a package could not be installed.
	ErrPackageInstallFailed = errors.New("package install failed")

	// ErrNet is returned when a control endpoint call fails.
	ErrNet = errors.New("control endpoint error")
	// ErrLogRead is returned when the log file exists but could not be read.
	ErrLogRead = errors.New("log read error")
)
