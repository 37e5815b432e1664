package printer

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/slok/botctl/internal/model"
)

// TablePrinter prints bot information in a table format.
type TablePrinter struct {
	writer io.Writer
}

// NewTablePrinter creates a new table printer.
func NewTablePrinter(w io.Writer) *TablePrinter {
	return &TablePrinter{writer: w}
}

// PrintChecks prints host check results with a summary line.
func (t *TablePrinter) PrintChecks(results []model.CheckResult) error {
	for _, r := range results {
		fmt.Fprintf(t.writer, "  %s %-26s %s\n", statusIcon(r.Status), r.ID, r.Message)
	}

	fmt.Fprintln(t.writer)
	sum := model.SummarizeChecks(results)
	if sum.Warnings == 0 && sum.Errors == 0 {
		fmt.Fprintln(t.writer, "All checks passed!")
		return nil
	}

	var summary []string
	if sum.Errors > 0 {
		summary = append(summary, fmt.Sprintf("%d error(s)", sum.Errors))
	}
	if sum.Warnings > 0 {
		summary = append(summary, fmt.Sprintf("%d warning(s)", sum.Warnings))
	}
	fmt.Fprintln(t.writer, strings.Join(summary, ", "))

	return nil
}

// PrintRuns prints install runs in a table format.
func (t *TablePrinter) PrintRuns(runs []model.InstallRun) error {
	if len(runs) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer tw.Flush()

	// Print header.
	fmt.Fprintln(tw, "RUN ID\tSTATUS\tSTEPS\tCREATED")

	// Print rows.
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%s\n", r.ID, r.Status, r.Done, r.Total, TimeAgo(r.CreatedAt))
	}

	return nil
}

// PrintTasks prints the steps of an install run in a table format, followed by the run progress.
func (t *TablePrinter) PrintTasks(tasks []model.Task, progress *model.TaskProgress) error {
	if len(tasks) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(t.writer, 0, 0, 2, ' ', 0)
	defer func() {
		tw.Flush()
		if progress != nil {
			fmt.Fprintf(t.writer, "\n%d/%d steps done\n", progress.Done, progress.Total)
		}
	}()

	fmt.Fprintln(tw, "#\tSTEP\tSTATUS\tERROR")
	for _, tk := range tasks {
		errMsg := tk.Error
		if errMsg == "" {
			errMsg = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", tk.Sequence, tk.Name, tk.Status, errMsg)
	}

	return nil
}

// PrintMessages prints chat messages one per line.
func (t *TablePrinter) PrintMessages(msgs []model.ChatMessage) error {
	for _, m := range msgs {
		fmt.Fprintf(t.writer, "[%s] %s\n", m.Author, m.Content)
	}
	return nil
}

// PrintLogSnapshot prints a header followed by the whole log content.
func (t *TablePrinter) PrintLogSnapshot(path string, snap model.LogSnapshot) error {
	fmt.Fprintf(t.writer, "==> %s (%s, %s) <==\n", path, FormatBytes(int64(len(snap.Content))), FormatTimestamp(snap.ReadAt))

	text := snap.Text()
	fmt.Fprint(t.writer, text)
	if !strings.HasSuffix(text, "\n") {
		fmt.Fprintln(t.writer)
	}

	return nil
}

// PrintProcess prints the bot supervisor state.
func (t *TablePrinter) PrintProcess(state model.SupervisorState, proc *model.ManagedProcess) error {
	fmt.Fprintf(t.writer, "State:      %s\n", state)
	if proc == nil {
		return nil
	}

	fmt.Fprintf(t.writer, "PID:        %d\n", proc.PID)
	fmt.Fprintf(t.writer, "Command:    %s\n", proc.Command)
	fmt.Fprintf(t.writer, "Directory:  %s\n", proc.WorkingDir)
	fmt.Fprintf(t.writer, "Launched:   %s\n", FormatTimestamp(proc.LaunchTime))

	return nil
}

// PrintMessage prints a simple text message.
func (t *TablePrinter) PrintMessage(msg string) error {
	fmt.Fprintln(t.writer, msg)
	return nil
}

func statusIcon(status model.CheckStatus) string {
	switch status {
	case model.CheckStatusOK:
		return "OK"
	case model.CheckStatusWarning:
		return "!!"
	case model.CheckStatusError:
		return "XX"
	default:
		return "??"
	}
}
