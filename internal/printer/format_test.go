package printer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatBytes(t *testing.T) {
	tests := map[string]struct {
		bytes int64
		exp   string
	}{
		"Negative sizes should be zero":   {bytes: -5, exp: "0 B"},
		"Small sizes should be in bytes":  {bytes: 512, exp: "512 B"},
		"Kilobytes should have a decimal": {bytes: 1536, exp: "1.5 KB"},
		"Megabytes should be scaled":      {bytes: 700 * 1024 * 1024, exp: "700.0 MB"},
		"Huge sizes should stop at TB":    {bytes: 2048 * 1024 * 1024 * 1024 * 1024, exp: "2048.0 TB"},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.exp, FormatBytes(test.bytes))
		})
	}
}

func TestAge(t *testing.T) {
	tests := map[string]struct {
		d   time.Duration
		exp string
	}{
		"Future times should be now":      {d: -time.Minute, exp: "just now"},
		"Sub second should be now":        {d: 300 * time.Millisecond, exp: "just now"},
		"Seconds should be truncated":     {d: 45*time.Second + 900*time.Millisecond, exp: "45s ago"},
		"Minutes should use the top unit": {d: 3*time.Minute + 20*time.Second, exp: "3m ago"},
		"Hours should use the top unit":   {d: 5 * time.Hour, exp: "5h ago"},
		"Days should be the biggest unit": {d: 40 * 24 * time.Hour, exp: "40d ago"},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.exp, age(test.d))
		})
	}
}

func TestFormatTimestamp(t *testing.T) {
	ts := time.Date(2024, 3, 9, 18, 4, 5, 0, time.FixedZone("CET", 3600))
	assert.Equal(t, "2024-03-09 17:04:05 UTC", FormatTimestamp(ts))
}
