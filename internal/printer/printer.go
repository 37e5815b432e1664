package printer

import "github.com/slok/botctl/internal/model"

// Printer knows how to print bot information in different formats.
type Printer interface {
	PrintChecks(results []model.CheckResult) error
	PrintRuns(runs []model.InstallRun) error
	PrintTasks(tasks []model.Task, progress *model.TaskProgress) error
	PrintMessages(msgs []model.ChatMessage) error
	PrintLogSnapshot(path string, snap model.LogSnapshot) error
	PrintProcess(state model.SupervisorState, proc *model.ManagedProcess) error
	PrintMessage(msg string) error
}

var (
	_ Printer = &TablePrinter{}
	_ Printer = &JSONPrinter{}
)
