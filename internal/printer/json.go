package printer

import (
	"encoding/json"
	"io"
	"time"

	"github.com/slok/botctl/internal/model"
)

// JSONPrinter prints bot information in JSON format.
type JSONPrinter struct {
	writer io.Writer
}

// NewJSONPrinter creates a new JSON printer.
func NewJSONPrinter(w io.Writer) *JSONPrinter {
	return &JSONPrinter{writer: w}
}

type checkOutput struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type runOutput struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Total     int       `json:"total"`
	Done      int       `json:"done"`
	Failed    int       `json:"failed"`
	CreatedAt time.Time `json:"created_at"`
}

type taskOutput struct {
	ID       string `json:"id"`
	Sequence int    `json:"sequence"`
	Name     string `json:"name"`
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
}

type runTasksOutput struct {
	Done  int          `json:"done"`
	Total int          `json:"total"`
	Tasks []taskOutput `json:"tasks"`
}

type chatMessageOutput struct {
	Author  string `json:"author"`
	Content string `json:"content"`
}

type logSnapshotOutput struct {
	Path    string    `json:"path"`
	Status  string    `json:"status"`
	Content string    `json:"content"`
	Size    int       `json:"size"`
	ReadAt  time.Time `json:"read_at"`
}

type processOutput struct {
	State      string     `json:"state"`
	PID        int        `json:"pid,omitempty"`
	Command    string     `json:"command,omitempty"`
	WorkingDir string     `json:"working_dir,omitempty"`
	LaunchTime *time.Time `json:"launch_time,omitempty"`
}

// messageOutput represents a simple message output.
type messageOutput struct {
	Message string `json:"message"`
}

// PrintChecks prints host check results in JSON format.
func (j *JSONPrinter) PrintChecks(results []model.CheckResult) error {
	items := make([]checkOutput, len(results))
	for i, r := range results {
		items[i] = checkOutput{ID: r.ID, Status: string(r.Status), Message: r.Message}
	}
	return j.encode(items)
}

// PrintRuns prints install runs in JSON format.
func (j *JSONPrinter) PrintRuns(runs []model.InstallRun) error {
	items := make([]runOutput, len(runs))
	for i, r := range runs {
		items[i] = runOutput{
			ID:        r.ID,
			Status:    string(r.Status),
			Total:     r.Total,
			Done:      r.Done,
			Failed:    r.Failed,
			CreatedAt: r.CreatedAt.UTC(),
		}
	}
	return j.encode(items)
}

// PrintTasks prints install run steps in JSON format, with the progress when known.
func (j *JSONPrinter) PrintTasks(tasks []model.Task, progress *model.TaskProgress) error {
	items := make([]taskOutput, len(tasks))
	for i, t := range tasks {
		items[i] = taskOutput{
			ID:       t.ID,
			Sequence: t.Sequence,
			Name:     t.Name,
			Status:   string(t.Status),
			Error:    t.Error,
		}
	}

	out := runTasksOutput{Tasks: items}
	if progress != nil {
		out.Done = progress.Done
		out.Total = progress.Total
	}
	return j.encode(out)
}

// PrintMessages prints chat messages in JSON format, the same shape the bot serves them.
func (j *JSONPrinter) PrintMessages(msgs []model.ChatMessage) error {
	items := make([]chatMessageOutput, len(msgs))
	for i, m := range msgs {
		items[i] = chatMessageOutput{Author: m.Author, Content: m.Content}
	}
	return j.encode(items)
}

// PrintLogSnapshot prints a log snapshot in JSON format.
func (j *JSONPrinter) PrintLogSnapshot(path string, snap model.LogSnapshot) error {
	return j.encode(logSnapshotOutput{
		Path:    path,
		Status:  string(snap.Status),
		Content: snap.Text(),
		Size:    len(snap.Content),
		ReadAt:  snap.ReadAt.UTC(),
	})
}

// PrintProcess prints the bot supervisor state in JSON format.
func (j *JSONPrinter) PrintProcess(state model.SupervisorState, proc *model.ManagedProcess) error {
	out := processOutput{State: string(state)}
	if proc != nil {
		launched := proc.LaunchTime.UTC()
		out.PID = proc.PID
		out.Command = proc.Command.String()
		out.WorkingDir = proc.WorkingDir
		out.LaunchTime = &launched
	}
	return j.encode(out)
}

// PrintMessage prints a simple message in JSON format.
func (j *JSONPrinter) PrintMessage(msg string) error {
	return j.encode(messageOutput{Message: msg})
}

func (j *JSONPrinter) encode(v any) error {
	enc := json.NewEncoder(j.writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
