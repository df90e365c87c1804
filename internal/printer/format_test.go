package printer_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/slok/opstrack/internal/printer"
)

func TestTimeAgo(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	tests := map[string]struct {
		t   time.Time
		exp string
	}{
		"zero time":     {t: time.Time{}, exp: "-"},
		"seconds":       {t: now.Add(-42 * time.Second), exp: "42s ago"},
		"minutes":       {t: now.Add(-5 * time.Minute), exp: "5m ago"},
		"hours":         {t: now.Add(-3 * time.Hour), exp: "3h ago"},
		"days":          {t: now.Add(-50 * time.Hour), exp: "2d ago"},
		"future times":  {t: now.Add(time.Hour), exp: "in the future"},
		"exactly a day": {t: now.Add(-24 * time.Hour), exp: "1d ago"},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.exp, printer.TimeAgo(now, test.t))
		})
	}
}

func TestFormatDuration(t *testing.T) {
	start := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, "1m30s", printer.FormatDuration(start, start.Add(90*time.Second+300*time.Millisecond)))
	assert.Equal(t, "-", printer.FormatDuration(start, time.Time{}))
	assert.Equal(t, "-", printer.FormatDuration(start, start.Add(-time.Second)))
}

func TestFormatBytes(t *testing.T) {
	tests := map[string]struct {
		bytes int64
		exp   string
	}{
		"negative": {bytes: -5, exp: "0 B"},
		"bytes":    {bytes: 512, exp: "512 B"},
		"kib":      {bytes: 1536, exp: "1.5 KB"},
		"mib":      {bytes: 700 * 1024 * 1024, exp: "700.0 MB"},
		"gib":      {bytes: 10 * 1024 * 1024 * 1024, exp: "10.0 GB"},
		"tib":      {bytes: 2 * 1024 * 1024 * 1024 * 1024, exp: "2.0 TB"},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.exp, printer.FormatBytes(test.bytes))
		})
	}
}
