package lib

import (
	"errors"

	"github.com/slok/botctl/internal/model"
)

var (
	// ErrNotFound is returned when a resource does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNotValid is returned on invalid input or configuration.
	ErrNotValid = errors.New("not valid")
	// ErrAlreadyRunning is returned when starting a bot (or an install) that is already running.
	ErrAlreadyRunning = errors.New("already running")
	// ErrNotRunning is returned when stopping a bot that is not running.
	ErrNotRunning = errors.New("not running")
	// ErrStopInProgress is returned when stopping a bot that is already being stopped.
	ErrStopInProgress = errors.New("stop in progress")
	// ErrSpawnFailed is returned when the bot process could not be created.
	ErrSpawnFailed = errors.New("spawn failed")
	// ErrRuntimeInstallFailed is returned when the runtime could not be installed.
	ErrRuntimeInstallFailed = errors.New("runtime install failed")
	// ErrPackageInstallFailed is returned when an npm package could not be installed.
	ErrPackageInstallFailed = errors.New("package install failed")
	// ErrNet is returned when the bot control endpoint could not be reached or answered with an error.
	ErrNet = errors.New("control endpoint error")
)

var errorMappings = []struct {
	internal error
	public   error
}{
	{model.ErrNotFound, ErrNotFound},
	{model.ErrNotValid, ErrNotValid},
	{model.ErrAlreadyRunning, ErrAlreadyRunning},
	{model.ErrNotRunning, ErrNotRunning},
	{model.ErrStopInProgress, ErrStopInProgress},
	{model.ErrSpawnFailed, ErrSpawnFailed},
	{model.ErrRuntimeInstallFailed, ErrRuntimeInstallFailed},
	{model.ErrPackageInstallFailed, ErrPackageInstallFailed},
	{model.ErrNet, ErrNet},
}

func mapError(err error) error {
	if err == nil {
		return nil
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.internal) {
			return &mappedError{original: err, sentinel: m.public}
		}
	}

	return err
}

type mappedError struct {
	original error
	sentinel error
}

func (e *mappedError) Error() string { return e.original.Error() }

func (e *mappedError) Is(target error) bool {
	return target == e.sentinel
}

func (e *mappedError) Unwrap() error { return e.original }
