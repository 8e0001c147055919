package queue_test

import (
	"testing"
	"time"

	"loom/internal/queue"
)

func TestMarkProcessingFloorsProgress(t *testing.T) {
	job := &queue.Job{Status: queue.StatusPending}
	job.MarkProcessing()
	if job.Status != queue.StatusProcessing {
		t.Fatalf("expected processing status, got %s", job.Status)
	}
	if job.ProgressPercent != 10 {
		t.Fatalf("expected progress floored at 10, got %f", job.ProgressPercent)
	}
	if job.StartedAt == nil {
		t.Fatal("expected started timestamp to be set")
	}

	started := *job.StartedAt
	job.ProgressPercent = 50
	job.MarkProcessing()
	if job.ProgressPercent != 50 {
		t.Fatalf("expected progress untouched above floor, got %f", job.ProgressPercent)
	}
	if !job.StartedAt.Equal(started) {
		t.Fatal("expected started timestamp preserved on repeat call")
	}
}

func TestSetStageProgressIsMonotonic(t *testing.T) {
	job := &queue.Job{Status: queue.StatusProcessing}

	job.SetStageProgress(1, "Extraction", "Reading sources")
	if job.ProgressPercent != 10 || job.StageIndex != 1 {
		t.Fatalf("unexpected progress after stage 1: %f/%d", job.ProgressPercent, job.StageIndex)
	}
	job.SetStageProgress(3, "Script generation", "")
	if job.ProgressPercent != 30 {
		t.Fatalf("expected 30 after stage 3, got %f", job.ProgressPercent)
	}

	// A repeated or lower index never moves the percentage backward.
	job.SetStageProgress(2, "Key points", "")
	if job.ProgressPercent != 30 {
		t.Fatalf("expected progress to hold at 30, got %f", job.ProgressPercent)
	}
	job.ProgressPercent = 35
	job.SetStageProgress(3, "Script generation", "")
	if job.ProgressPercent != 35 {
		t.Fatalf("expected progress to hold at 35, got %f", job.ProgressPercent)
	}
}

func TestBeginStageKeepsPercent(t *testing.T) {
	job := &queue.Job{Status: queue.StatusProcessing, StageIndex: 2, ProgressPercent: 20}
	job.BeginStage(3, "Script generation", "Drafting narrative")
	if job.StageIndex != 3 {
		t.Fatalf("expected stage index 3, got %d", job.StageIndex)
	}
	if job.ProgressPercent != 20 {
		t.Fatalf("expected percent unchanged at 20, got %f", job.ProgressPercent)
	}
	if job.ProgressStage != "Script generation" || job.ProgressMessage != "Drafting narrative" {
		t.Fatalf("unexpected labels: %q / %q", job.ProgressStage, job.ProgressMessage)
	}

	done := &queue.Job{Status: queue.StatusFailed, ProgressStage: "Failed"}
	done.BeginStage(4, "Narration", "ignored")
	if done.ProgressStage != "Failed" {
		t.Fatal("expected terminal job untouched by BeginStage")
	}
}

func TestTerminalStateIsWrittenExactlyOnce(t *testing.T) {
	job := &queue.Job{Status: queue.StatusProcessing}
	job.MarkCompleted("/out/video.mp4", 2048, 33.3, 0.95)
	if job.Status != queue.StatusCompleted || job.ProgressPercent != 100 {
		t.Fatalf("unexpected completed state: %#v", job)
	}
	if job.CompletedAt == nil {
		t.Fatal("expected completion timestamp")
	}

	job.MarkFailed("late failure")
	if job.Status != queue.StatusCompleted {
		t.Fatalf("expected completed state preserved, got %s", job.Status)
	}
	if job.ErrorMessage != "" {
		t.Fatalf("expected no error message on completed job, got %q", job.ErrorMessage)
	}

	failed := &queue.Job{Status: queue.StatusProcessing, ProgressPercent: 40}
	failed.MarkFailed("boom")
	failed.MarkCompleted("/out/video.mp4", 2048, 33.3, 0.95)
	if failed.Status != queue.StatusFailed {
		t.Fatalf("expected failed state preserved, got %s", failed.Status)
	}
	if failed.OutputPath != "" {
		t.Fatalf("expected no output on failed job, got %q", failed.OutputPath)
	}

	failed.MarkProcessing()
	if failed.Status != queue.StatusFailed {
		t.Fatalf("expected terminal job to resist reprocessing, got %s", failed.Status)
	}
}

func TestMarkFailedLeavesProgressInPlace(t *testing.T) {
	now := time.Now().UTC()
	job := &queue.Job{
		Status:          queue.StatusProcessing,
		StageIndex:      4,
		ProgressPercent: 40,
		LastHeartbeat:   &now,
	}
	job.MarkFailed("synthesis engine exited 1")
	if job.ProgressPercent != 40 || job.StageIndex != 4 {
		t.Fatalf("expected progress left at failure point, got %f/%d", job.ProgressPercent, job.StageIndex)
	}
	if job.ProgressStage != "Failed" {
		t.Fatalf("expected Failed stage label, got %q", job.ProgressStage)
	}
	if job.ErrorMessage != "synthesis engine exited 1" {
		t.Fatalf("expected verbatim error message, got %q", job.ErrorMessage)
	}
	if job.LastHeartbeat != nil {
		t.Fatal("expected heartbeat cleared on failure")
	}
	if job.CompletedAt != nil {
		t.Fatal("expected no completion timestamp on failure")
	}
}

func TestMarkCompletedDefaultsQualityScore(t *testing.T) {
	job := &queue.Job{Status: queue.StatusProcessing}
	job.MarkCompleted("/out/video.mp4", 100, 5, 0)
	if job.QualityScore != 0.9 {
		t.Fatalf("expected default quality score 0.9, got %f", job.QualityScore)
	}
}

func TestParseStatus(t *testing.T) {
	cases := []struct {
		input string
		want  queue.Status
		ok    bool
	}{
		{"pending", queue.StatusPending, true},
		{" Processing ", queue.StatusProcessing, true},
		{"COMPLETED", queue.StatusCompleted, true},
		{"failed", queue.StatusFailed, true},
		{"", "", false},
		{"rendering", "", false},
	}
	for _, tc := range cases {
		got, ok := queue.ParseStatus(tc.input)
		if ok != tc.ok {
			t.Fatalf("ParseStatus(%q) ok=%v, want %v", tc.input, ok, tc.ok)
		}
		if ok && got != tc.want {
			t.Fatalf("ParseStatus(%q)=%s, want %s", tc.input, got, tc.want)
		}
	}
}
