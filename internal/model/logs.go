package model

import "time"

const (
	// LogTextMissing is shown when the log file does not exist yet.
	LogTextMissing = "No logs available."
	// LogTextReadError is shown when the log file could not be read.
	LogTextReadError = "Error while reading log file."
)

// LogSnapshotStatus is the result kind of a log poll.
type LogSnapshotStatus string

const (
	LogSnapshotStatusOK      LogSnapshotStatus = "ok"
	LogSnapshotStatusMissing LogSnapshotStatus = "missing"
	LogSnapshotStatusError   LogSnapshotStatus = "error"
)

// LogSnapshot is the whole content of the log file at a poll tick.
// A new snapshot replaces the previous one, it never appends to it.
type LogSnapshot struct {
	Status  LogSnapshotStatus
	Content string
	ReadAt  time.Time
	// Err is set on read errors and wraps ErrLogRead.
	Err error
}

// Text returns the content to render for the snapshot.
func (l LogSnapshot) Text() string {
	switch l.Status {
	case LogSnapshotStatusMissing:
		return LogTextMissing
	case LogSnapshotStatusError:
		return LogTextReadError
	default:
		return l.Content
	}
}

// ChatMessage is a chat message relayed by the bot control endpoint.
type ChatMessage struct {
	Author  string
	Content string
}
