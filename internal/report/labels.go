package report

import (
	"strings"
	"time"

	"github.com/ngoiyaeric/queuelab/internal/model"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// stepLabel turns a step name such as "wait_selector" into "Wait Selector".
func stepLabel(name string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(name, "_", " "))
}

// statusLabel returns a title-cased status, e.g. "Timed Out".
func statusLabel(s model.Status) string {
	return cases.Title(language.English).String(strings.ReplaceAll(strings.ToLower(s.String()), "_", " "))
}

// formatDuration rounds durations for display.
func formatDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "0s"
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	default:
		return d.Round(10 * time.Millisecond).String()
	}
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// orDash returns "-" for empty strings.
func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
