package queue_test

import (
	"context"
	"testing"

	"loom/internal/queue"
	"loom/internal/testsupport"
)

func TestHandoffPostFirstWriteWins(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	board := queue.NewHandoffBoard()

	ctx := context.Background()
	job := testsupport.NewJob(t, store, "Raced")
	job.MarkProcessing()
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update: %v", err)
	}

	board.Post(job.ID, queue.Completion{
		Status:                queue.StatusCompleted,
		OutputPath:            "/out/raced.mp4",
		FileSizeBytes:         4096,
		GenerationTimeSeconds: 21.5,
		QualityScore:          0.9,
	})
	board.Post(job.ID, queue.Completion{Status: queue.StatusFailed, ErrorMessage: "late loser"})

	if err := board.Merge(ctx, store, job.ID); err != nil {
		t.Fatalf("Merge: %v", err)
	}

	merged, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if merged.Status != queue.StatusCompleted {
		t.Fatalf("expected first posted completion to win, got %s", merged.Status)
	}
	if merged.OutputPath != "/out/raced.mp4" || merged.FileSizeBytes != 4096 {
		t.Fatalf("expected completion fields persisted, got %#v", merged)
	}
	if merged.CompletedAt == nil {
		t.Fatal("expected completion timestamp persisted")
	}
}

func TestHandoffMergeRespectsTerminalRecord(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	board := queue.NewHandoffBoard()

	ctx := context.Background()
	job := testsupport.NewJob(t, store, "Cancelled")
	job.MarkProcessing()
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update: %v", err)
	}

	// User cancels while the worker is still running.
	cancelled, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	cancelled.MarkFailed(queue.CancelledReason)
	if err := store.Update(ctx, cancelled); err != nil {
		t.Fatalf("Update: %v", err)
	}

	// The worker's late success must not resurrect the record.
	board.Post(job.ID, queue.Completion{Status: queue.StatusCompleted, OutputPath: "/out/late.mp4"})
	if err := board.Merge(ctx, store, job.ID); err != nil {
		t.Fatalf("Merge: %v", err)
	}

	final, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if final.Status != queue.StatusFailed {
		t.Fatalf("expected cancelled job to stay failed, got %s", final.Status)
	}
	if final.ErrorMessage != queue.CancelledReason {
		t.Fatalf("expected cancellation reason preserved, got %q", final.ErrorMessage)
	}
	if len(board.Pending()) != 0 {
		t.Fatal("expected stale completion discarded from board")
	}
}

func TestHandoffMergeIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	board := queue.NewHandoffBoard()

	ctx := context.Background()
	job := testsupport.NewJob(t, store, "Once")
	job.MarkProcessing()
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update: %v", err)
	}

	board.Post(job.ID, queue.Completion{Status: queue.StatusFailed, ErrorMessage: "boom"})
	if err := board.Merge(ctx, store, job.ID); err != nil {
		t.Fatalf("first Merge: %v", err)
	}
	if err := board.Merge(ctx, store, job.ID); err != nil {
		t.Fatalf("second Merge: %v", err)
	}

	final, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if final.Status != queue.StatusFailed || final.ErrorMessage != "boom" {
		t.Fatalf("unexpected final state: %#v", final)
	}
}

func TestHandoffMergeKeepsCompletionAcrossWriteFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}

	ctx := context.Background()
	job := testsupport.NewJob(t, store, "Flaky Disk")
	job.MarkProcessing()
	if err := store.Update(ctx, job); err != nil {
		t.Fatalf("Update: %v", err)
	}

	board := queue.NewHandoffBoard()
	board.Post(job.ID, queue.Completion{
		Status:        queue.StatusCompleted,
		OutputPath:    "/out/flaky.mp4",
		FileSizeBytes: 1024,
	})

	// Simulate a transient database outage during the merge.
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := board.Merge(ctx, store, job.ID); err == nil {
		t.Fatal("expected Merge to fail against a closed store")
	}
	if got := board.Pending(); len(got) != 1 || got[0] != job.ID {
		t.Fatalf("expected completion to stay posted after failed write, got %v", got)
	}

	reopened, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	if err := board.Merge(ctx, reopened, job.ID); err != nil {
		t.Fatalf("Merge after recovery: %v", err)
	}
	if len(board.Pending()) != 0 {
		t.Fatal("expected board drained after successful merge")
	}
	final, err := reopened.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if final.Status != queue.StatusCompleted || final.OutputPath != "/out/flaky.mp4" {
		t.Fatalf("expected recovered completion persisted, got %#v", final)
	}
}

func TestHandoffMergeAll(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	board := queue.NewHandoffBoard()

	ctx := context.Background()
	first := testsupport.NewJob(t, store, "First")
	first.MarkProcessing()
	if err := store.Update(ctx, first); err != nil {
		t.Fatalf("Update: %v", err)
	}
	second := testsupport.NewJob(t, store, "Second")
	second.MarkProcessing()
	if err := store.Update(ctx, second); err != nil {
		t.Fatalf("Update: %v", err)
	}

	board.Post(first.ID, queue.Completion{Status: queue.StatusCompleted, OutputPath: "/out/first.mp4"})
	board.Post(second.ID, queue.Completion{Status: queue.StatusFailed, ErrorMessage: "boom"})
	if got := len(board.Pending()); got != 2 {
		t.Fatalf("expected 2 pending completions, got %d", got)
	}

	if err := board.MergeAll(ctx, store); err != nil {
		t.Fatalf("MergeAll: %v", err)
	}
	if got := len(board.Pending()); got != 0 {
		t.Fatalf("expected board drained, got %d", got)
	}

	mergedFirst, err := store.GetByID(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if mergedFirst.Status != queue.StatusCompleted {
		t.Fatalf("expected first job completed, got %s", mergedFirst.Status)
	}
	mergedSecond, err := store.GetByID(ctx, second.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if mergedSecond.Status != queue.StatusFailed {
		t.Fatalf("expected second job failed, got %s", mergedSecond.Status)
	}
}
