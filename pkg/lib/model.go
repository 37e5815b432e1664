package lib

import (
	"strings"
	"time"

	"github.com/slok/botctl/internal/model"
)

// SpawnerType identifies how the bot process is created.
type SpawnerType string

const (
	// SpawnerExec runs the bot as a real OS process.
	SpawnerExec SpawnerType = "exec"

	// SpawnerFake uses in-memory processes that only exit when killed.
	// Use this for unit testing without a bot or a runtime.
	SpawnerFake SpawnerType = "fake"
)

// BotState is the lifecycle state of the supervised bot.
//
// The lifecycle is:
//
//	stopped -> starting -> running -> stopping -> stopped
//
// A bot that exits on its own goes back to stopped from any state.
type BotState string

const (
	BotStateStopped  BotState = "stopped"
	BotStateStarting BotState = "starting"
	BotStateRunning  BotState = "running"
	BotStateStopping BotState = "stopping"
)

// Process is the bot process owned by the client.
type Process struct {
	PID        int
	LaunchTime time.Time
	WorkingDir string
	// Command is the command line used to launch the bot.
	Command string
}

// ChatMessage is a chat message relayed by the bot.
type ChatMessage struct {
	Author  string
	Content string
}

// String returns the message as the bot chat shows it.
func (m ChatMessage) String() string { return "[" + m.Author + "] " + m.Content }

// LogStatus is the status of a log file read.
type LogStatus string

const (
	LogStatusOK      LogStatus = "ok"
	LogStatusMissing LogStatus = "missing"
	LogStatusError   LogStatus = "error"
)

// LogSnapshot is the whole content of the bot log file at read time.
type LogSnapshot struct {
	Status  LogStatus
	Content string
	// Text is the content to show, it has a placeholder when the file is missing or unreadable.
	Text   string
	ReadAt time.Time
}

// InstallPhase is the phase of an install run.
type InstallPhase string

const (
	InstallPhaseRunning   InstallPhase = "running"
	InstallPhaseSucceeded InstallPhase = "succeeded"
	InstallPhaseFailed    InstallPhase = "failed"
)

// InstallProgress is a progress event of an install run.
type InstallProgress struct {
	Phase     InstallPhase
	StepIndex int
	StepName  string
	// Percent never goes backwards inside a run.
	Percent int
	Message string
}

// InstallResult is the result of an install run.
type InstallResult struct {
	// RunID identifies the run in the install history.
	RunID string
}

// InstallRun is an install run of the history.
type InstallRun struct {
	ID        string
	Status    string
	Total     int
	Done      int
	Failed    int
	CreatedAt time.Time
}

// CheckStatus represents the status of a preflight check.
type CheckStatus string

const (
	// CheckStatusOK indicates the check passed.
	CheckStatusOK CheckStatus = "ok"
	// CheckStatusWarning indicates the check passed with a warning.
	CheckStatusWarning CheckStatus = "warning"
	// CheckStatusError indicates the check failed.
	CheckStatusError CheckStatus = "error"
)

// CheckResult represents the result of a single preflight check.
type CheckResult struct {
	// ID is a unique identifier for the check (e.g. "runtime_available").
	ID string
	// Message is a human-readable description of the result.
	Message string
	// Status is the check status.
	Status CheckStatus
}

// --- Internal conversion helpers ---

func fromInternalProcess(p model.ManagedProcess) Process {
	return Process{
		PID:        p.PID,
		LaunchTime: p.LaunchTime,
		WorkingDir: p.WorkingDir,
		Command:    strings.TrimSpace(p.Command.String()),
	}
}

func fromInternalMessages(msgs []model.ChatMessage) []ChatMessage {
	out := make([]ChatMessage, len(msgs))
	for i, m := range msgs {
		out[i] = ChatMessage{Author: m.Author, Content: m.Content}
	}
	return out
}

func fromInternalLogSnapshot(s model.LogSnapshot) LogSnapshot {
	return LogSnapshot{
		Status:  LogStatus(s.Status),
		Content: s.Content,
		Text:    s.Text(),
		ReadAt:  s.ReadAt,
	}
}

func fromInternalProgress(s model.PipelineState) InstallProgress {
	return InstallProgress{
		Phase:     InstallPhase(s.Phase),
		StepIndex: s.StepIndex,
		StepName:  s.StepName,
		Percent:   s.Percent,
		Message:   s.Message,
	}
}

func fromInternalRuns(runs []model.InstallRun) []InstallRun {
	out := make([]InstallRun, len(runs))
	for i, r := range runs {
		out[i] = InstallRun{
			ID:        r.ID,
			Status:    string(r.Status),
			Total:     r.Total,
			Done:      r.Done,
			Failed:    r.Failed,
			CreatedAt: r.CreatedAt,
		}
	}
	return out
}

func fromInternalCheckResults(results []model.CheckResult) []CheckResult {
	out := make([]CheckResult, len(results))
	for i, r := range results {
		out[i] = CheckResult{
			ID:      r.ID,
			Message: r.Message,
			Status:  CheckStatus(r.Status),
		}
	}
	return out
}
