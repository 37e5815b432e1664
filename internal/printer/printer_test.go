package printer_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slok/botctl/internal/model"
	"github.com/slok/botctl/internal/printer"
)

var readAt = time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)

func TestTablePrinterPrintChecks(t *testing.T) {
	tests := map[string]struct {
		results    []model.CheckResult
		expContain []string
	}{
		"All ok checks should print the passed summary.": {
			results: []model.CheckResult{
				{ID: "runtime_available", Status: model.CheckStatusOK, Message: "node v22.11.0"},
			},
			expContain: []string{"OK runtime_available", "node v22.11.0", "All checks passed!"},
		},
		"Failed checks should print the counters.": {
			results: []model.CheckResult{
				{ID: "runtime_available", Status: model.CheckStatusError, Message: "node not found"},
				{ID: "log_dir", Status: model.CheckStatusWarning, Message: "bot/logs not found"},
			},
			expContain: []string{"XX runtime_available", "!! log_dir", "1 error(s), 1 warning(s)"},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			p := printer.NewTablePrinter(&buf)

			require.NoError(t, p.PrintChecks(test.results))
			for _, exp := range test.expContain {
				assert.Contains(t, buf.String(), exp)
			}
		})
	}
}

func TestTablePrinterPrintRunsAndTasks(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	require.NoError(t, p.PrintRuns([]model.InstallRun{
		{ID: "01JRUN", Status: model.InstallRunStatusFailed, Total: 4, Done: 2, Failed: 1, CreatedAt: readAt},
	}))
	require.NoError(t, p.PrintTasks([]model.Task{
		{Sequence: 0, Name: "preflight", Status: model.TaskStatusDone},
		{Sequence: 1, Name: "runtime", Status: model.TaskStatusFailed, Error: "HTTP 404"},
	}, &model.TaskProgress{Done: 1, Total: 2}))

	out := buf.String()
	assert.Contains(t, out, "RUN ID")
	assert.Contains(t, out, "01JRUN")
	assert.Contains(t, out, "2/4")
	assert.Contains(t, out, "preflight")
	assert.Contains(t, out, "HTTP 404")
	assert.True(t, strings.HasSuffix(out, "\n1/2 steps done\n"))
}

func TestTablePrinterPrintEmptyLists(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	require.NoError(t, p.PrintRuns(nil))
	require.NoError(t, p.PrintTasks(nil, nil))
	require.NoError(t, p.PrintMessages(nil))
	assert.Empty(t, buf.String())
}

func TestTablePrinterPrintMessages(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	require.NoError(t, p.PrintMessages([]model.ChatMessage{
		{Author: "alice", Content: "hi"},
		{Author: "bob", Content: "hello"},
	}))
	assert.Equal(t, "[alice] hi\n[bob] hello\n", buf.String())
}

func TestTablePrinterPrintLogSnapshot(t *testing.T) {
	tests := map[string]struct {
		snap   model.LogSnapshot
		expOut string
	}{
		"A log should be printed with its header.": {
			snap:   model.LogSnapshot{Status: model.LogSnapshotStatusOK, Content: "Bot online\n", ReadAt: readAt},
			expOut: "==> bot/logs/bot.log (11 B, 2026-10-19 10:00:00 UTC) <==\nBot online\n",
		},
		"A missing log should print the missing text.": {
			snap:   model.LogSnapshot{Status: model.LogSnapshotStatusMissing, ReadAt: readAt},
			expOut: "==> bot/logs/bot.log (0 B, 2026-10-19 10:00:00 UTC) <==\nNo logs available.\n",
		},
		"A read error should print the error text.": {
			snap:   model.LogSnapshot{Status: model.LogSnapshotStatusError, ReadAt: readAt},
			expOut: "==> bot/logs/bot.log (0 B, 2026-10-19 10:00:00 UTC) <==\nError while reading log file.\n",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			p := printer.NewTablePrinter(&buf)

			require.NoError(t, p.PrintLogSnapshot("bot/logs/bot.log", test.snap))
			assert.Equal(t, test.expOut, buf.String())
		})
	}
}

func TestTablePrinterPrintProcess(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	require.NoError(t, p.PrintProcess(model.SupervisorStateRunning, &model.ManagedProcess{
		PID:        4242,
		LaunchTime: readAt,
		WorkingDir: "bot",
		Command:    model.Command{Path: "node", Args: []string{"index.js"}},
	}))

	out := buf.String()
	assert.Contains(t, out, "State:      running")
	assert.Contains(t, out, "PID:        4242")
	assert.Contains(t, out, "Command:    node index.js")
}

func TestJSONPrinterPrintMessages(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewJSONPrinter(&buf)

	require.NoError(t, p.PrintMessages([]model.ChatMessage{{Author: "alice", Content: "hi"}}))

	var got []map[string]string
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, []map[string]string{{"author": "alice", "content": "hi"}}, got)
}

func TestJSONPrinterPrintProcess(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewJSONPrinter(&buf)

	require.NoError(t, p.PrintProcess(model.SupervisorStateStopped, nil))
	assert.Equal(t, "{\n  \"state\": \"stopped\"\n}\n", buf.String())
}

func TestJSONPrinterPrintTasks(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewJSONPrinter(&buf)

	require.NoError(t, p.PrintTasks(
		[]model.Task{{ID: "t1", Sequence: 1, Name: "runtime", Status: model.TaskStatusFailed, Error: "HTTP 404"}},
		&model.TaskProgress{Done: 0, Total: 1},
	))

	out := buf.String()
	assert.Contains(t, out, `"done": 0`)
	assert.Contains(t, out, `"total": 1`)
	assert.Contains(t, out, `"status": "failed"`)
	assert.Contains(t, out, `"error": "HTTP 404"`)
}

func TestTablePrinterPrintMessage(t *testing.T) {
	var buf bytes.Buffer
	p := printer.NewTablePrinter(&buf)

	err := p.PrintMessage("ok")
	require.NoError(t, err)
	assert.Equal(t, "ok", strings.TrimSpace(buf.String()))
}
