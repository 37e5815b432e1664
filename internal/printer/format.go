package printer

import (
	"fmt"
	"time"
)

var byteUnits = []string{"KB", "MB", "GB", "TB"}

// FormatBytes returns a short human size, e.g. "512 B" or "1.5 KB".
func FormatBytes(bytes int64) string {
	if bytes < 1024 {
		return fmt.Sprintf("%d B", max(bytes, 0))
	}

	size := float64(bytes) / 1024
	unit := 0
	for size >= 1024 && unit < len(byteUnits)-1 {
		size /= 1024
		unit++
	}

	return fmt.Sprintf("%.1f %s", size, byteUnits[unit])
}

var ageUnits = []struct {
	size   time.Duration
	suffix string
}{
	{24 * time.Hour, "d"},
	{time.Hour, "h"},
	{time.Minute, "m"},
	{time.Second, "s"},
}

// TimeAgo returns the compact age of t relative to now, e.g. "45s ago" or "3d ago".
func TimeAgo(t time.Time) string {
	return age(time.Since(t))
}

func age(d time.Duration) string {
	if d < time.Second {
		return "just now"
	}

	for _, u := range ageUnits {
		if d >= u.size {
			return fmt.Sprintf("%d%s ago", d/u.size, u.suffix)
		}
	}

	return "just now"
}

// FormatTimestamp returns t in UTC with second precision.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05 UTC")
}
