package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var statusTitler = cases.Title(language.English)

// displayStatus renders a queue status value for human-facing output.
func displayStatus(status string) string {
	status = strings.TrimSpace(status)
	if status == "" {
		return "-"
	}
	return statusTitler.String(strings.ReplaceAll(status, "_", " "))
}

func formatBytes(size int64) string {
	if size <= 0 {
		return "-"
	}
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(size)/float64(div), "KMGTPE"[exp])
}

func formatSeconds(seconds float64) string {
	if seconds <= 0 {
		return "-"
	}
	d := time.Duration(seconds * float64(time.Second)).Round(time.Second)
	if d < time.Second {
		d = time.Second
	}
	return d.String()
}

// formatTimestamp converts an RFC3339 wire timestamp into local display time.
// Unparseable values pass through untouched.
func formatTimestamp(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return value
	}
	return ts.Local().Format("2006-01-02 15:04")
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func formatPercent(percent float64) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	return fmt.Sprintf("%.0f%%", percent)
}

// resolveTitle prefers the explicit flag and otherwise derives a title from
// the first document's file name.
func resolveTitle(flagValue, firstPath string) string {
	title := strings.TrimSpace(flagValue)
	if title != "" {
		return title
	}
	base := filepath.Base(firstPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func dashIfEmpty(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}
