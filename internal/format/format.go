// Package format renders timer state, event logs, and timelines in the
// formats the CLI exposes: go-pretty tables, tab-separated plain text,
// JSON, and JSONL.
package format

import (
	"fmt"
	"strings"
	"time"
)

// FormatDuration renders a second count as [-]hh:mm:ss.
func FormatDuration(seconds int64) string {
	sign := ""
	if seconds < 0 {
		sign = "-"
		seconds = -seconds
	}
	return fmt.Sprintf("%s%02d:%02d:%02d", sign, seconds/3600, (seconds%3600)/60, seconds%60)
}

// FormatTimestamp renders a Unix timestamp in the given zone, without the
// offset suffix the log file carries.
func FormatTimestamp(ts int64, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return time.Unix(ts, 0).In(loc).Format("2006-01-02 15:04:05")
}

func escapeText(text string) string {
	return strings.NewReplacer("\t", " ", "\n", "\\n").Replace(text)
}
