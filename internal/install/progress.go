package install

import (
	"fmt"
	"io"
	"sync"
)

// ProgressFn receives the bytes written and the expected total (<= 0 when unknown).
type ProgressFn func(written, total int64)

// ProgressWriter wraps an io.Writer to track download progress.
type ProgressWriter struct {
	dst        io.Writer
	onProgress ProgressFn
	total      int64
	written    int64
	lastMark   int64
	mu         sync.Mutex
}

// NewProgressWriter creates a new progress writer.
// dst receives the actual data, onProgress is called every time a whole percent is
// crossed or, when total is 0 or negative, every MiB.
func NewProgressWriter(dst io.Writer, total int64, onProgress ProgressFn) *ProgressWriter {
	return &ProgressWriter{
		dst:        dst,
		onProgress: onProgress,
		total:      total,
		lastMark:   -1,
	}
}

func (pw *ProgressWriter) Write(p []byte) (int, error) {
	n, err := pw.dst.Write(p)

	pw.mu.Lock()
	pw.written += int64(n)
	mark := pw.mark()
	notify := mark != pw.lastMark
	pw.lastMark = mark
	written, total := pw.written, pw.total
	pw.mu.Unlock()

	if notify && pw.onProgress != nil {
		pw.onProgress(written, total)
	}

	return n, err
}

func (pw *ProgressWriter) mark() int64 {
	if pw.total > 0 {
		return pw.written * 100 / pw.total
	}
	return pw.written / (1 << 20)
}

// FormatProgress returns a human readable download progress line.
func FormatProgress(name string, written, total int64) string {
	if total > 0 {
		pct := float64(written) / float64(total) * 100
		return fmt.Sprintf("Downloading %s: %3.0f%% (%s / %s)", name, pct, formatSize(written), formatSize(total))
	}
	return fmt.Sprintf("Downloading %s: %s downloaded", name, formatSize(written))
}

func formatSize(bytes int64) string {
	switch {
	case bytes >= 1<<30:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(1<<30))
	case bytes >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(1<<20))
	case bytes >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
