package main

import (
	"testing"

	"loom/internal/ipc"
)

func TestDisplayStatus(t *testing.T) {
	cases := map[string]string{
		"pending":    "Pending",
		"processing": "Processing",
		"":           "-",
	}
	for input, want := range cases {
		if got := displayStatus(input); got != want {
			t.Errorf("displayStatus(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	cases := []struct {
		size int64
		want string
	}{
		{0, "-"},
		{512, "512 B"},
		{2048, "2.0 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
	}
	for _, tc := range cases {
		if got := formatBytes(tc.size); got != tc.want {
			t.Errorf("formatBytes(%d) = %q, want %q", tc.size, got, tc.want)
		}
	}
}

func TestFormatSeconds(t *testing.T) {
	if got := formatSeconds(0); got != "-" {
		t.Errorf("formatSeconds(0) = %q", got)
	}
	if got := formatSeconds(93); got != "1m33s" {
		t.Errorf("formatSeconds(93) = %q", got)
	}
}

func TestResolveTitle(t *testing.T) {
	if got := resolveTitle("  Explicit  ", "doc.pdf"); got != "Explicit" {
		t.Errorf("explicit title: got %q", got)
	}
	if got := resolveTitle("", "/tmp/quarterly-report.pdf"); got != "quarterly-report" {
		t.Errorf("derived title: got %q", got)
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("0123456789abcdef"); got != "01234567" {
		t.Errorf("shortID long: got %q", got)
	}
	if got := shortID("abc"); got != "abc" {
		t.Errorf("shortID short: got %q", got)
	}
}

func TestBuildQueueStatusRowsOrder(t *testing.T) {
	rows := buildQueueStatusRows(map[string]int{
		"failed":  2,
		"pending": 5,
	})
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0][0] != "Pending" || rows[0][1] != "5" {
		t.Errorf("unexpected first row: %v", rows[0])
	}
	if rows[1][0] != "Failed" || rows[1][1] != "2" {
		t.Errorf("unexpected second row: %v", rows[1])
	}
}

func TestJobDetailLines(t *testing.T) {
	job := ipc.Job{
		ID:             "job-1",
		Title:          "Launch Brief",
		ChannelProfile: "educational",
		Status:         "failed",
		SourceCount:    2,
		ErrorMessage:   "tts binary missing",
	}
	lines := jobDetailLines(job)

	joined := ""
	for _, line := range lines {
		joined += line + "\n"
	}
	requireContains(t, joined, "Launch Brief")
	requireContains(t, joined, "Failed")
	requireContains(t, joined, "tts binary missing")
}

func TestBuildActiveJobRows(t *testing.T) {
	rows := buildActiveJobRows([]ipc.ActiveJob{
		{ID: "0123456789", Title: "Alpha", Stage: "Audio synthesis", Percent: 50, Stale: true},
	})
	if len(rows) != 1 {
		t.Fatalf("expected one row, got %d", len(rows))
	}
	row := rows[0]
	if row[0] != "01234567" || row[3] != "50%" || row[4] != "stale" {
		t.Errorf("unexpected row: %v", row)
	}
}
