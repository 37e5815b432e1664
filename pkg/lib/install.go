package lib

import (
	"context"
	"fmt"

	"github.com/slok/botctl/internal/app/doctor"
	"github.com/slok/botctl/internal/app/history"
)

// InstallOpts are the options of [Client.Install].
type InstallOpts struct {
	// OnProgress receives the install progress events.
	OnProgress func(InstallProgress)
}

// Install makes sure the bot can run: it checks the bot files, installs the
// Node.js runtime unattended when missing and installs the configured npm
// packages. Every run is recorded in the install history, failed ones too.
//
// Returns [ErrAlreadyRunning] if another install is running, [ErrNotValid] if the
// bot files are missing, [ErrRuntimeInstallFailed] or [ErrPackageInstallFailed].
func (c *Client) Install(ctx context.Context, opts *InstallOpts) (*InstallResult, error) {
	var onProgress func(InstallProgress)
	if opts != nil {
		onProgress = opts.OnProgress
	}

	c.mu.Lock()
	if c.installing {
		c.mu.Unlock()
		return nil, fmt.Errorf("install in progress: %w", ErrAlreadyRunning)
	}
	c.installing = true
	c.progress = onProgress
	c.lastRunID = ""
	c.mu.Unlock()

	err := <-c.ctrl.Install(ctx)

	c.mu.Lock()
	runID := c.lastRunID
	c.installing = false
	c.progress = nil
	c.mu.Unlock()

	if err != nil {
		return &InstallResult{RunID: runID}, mapError(err)
	}

	return &InstallResult{RunID: runID}, nil
}

// InstallHistory returns the recorded install runs, newest first.
func (c *Client) InstallHistory(ctx context.Context) ([]InstallRun, error) {
	resp, err := c.history.Run(ctx, history.Request{})
	if err != nil {
		return nil, mapError(err)
	}
	return fromInternalRuns(resp.Runs), nil
}

// Doctor runs the host preflight checks: bot files, runtime, package manager,
// configured packages and control endpoint.
func (c *Client) Doctor(ctx context.Context) ([]CheckResult, error) {
	results, err := c.doctor.Run(ctx, doctor.Request{Config: c.botCfg})
	if err != nil {
		return nil, mapError(err)
	}
	return fromInternalCheckResults(results), nil
}
