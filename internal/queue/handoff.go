package queue

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Completion is the terminal result a worker posts when a job finishes. It
// carries everything needed to finalize the persisted record without the
// poller having to touch worker state.
type Completion struct {
	Status                Status
	OutputPath            string
	FileSizeBytes         int64
	GenerationTimeSeconds float64
	QualityScore          float64
	ErrorMessage          string
	FinishedAt            time.Time
}

// HandoffBoard is a mutex-guarded exchange between workers and the status
// polling path. Workers Post their terminal result; pollers Merge it into the
// persisted job record before reading. Post is first-write-wins per job so a
// cancellation and a late worker result cannot fight over the outcome, and
// Merge refuses to touch a record that already reached a terminal state.
type HandoffBoard struct {
	mu          sync.Mutex
	completions map[string]Completion
}

// NewHandoffBoard returns an empty board.
func NewHandoffBoard() *HandoffBoard {
	return &HandoffBoard{completions: make(map[string]Completion)}
}

// Post records a completion for a job. The first completion posted for a job
// wins; later posts for the same job are ignored. A zero FinishedAt is
// stamped with the current time.
func (b *HandoffBoard) Post(jobID string, completion Completion) {
	if b == nil || jobID == "" {
		return
	}
	if completion.FinishedAt.IsZero() {
		completion.FinishedAt = time.Now().UTC()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.completions[jobID]; exists {
		return
	}
	b.completions[jobID] = completion
}

// Merge folds a posted completion into the persisted job record. The record
// is only written when it is not already terminal; a stale completion for a
// cancelled or finished job is discarded. The board entry is removed only
// once the merge resolves — after a successful write or a deliberate discard
// — so a transient database failure leaves the completion posted for the
// next poll. Calling Merge without a posted completion is a no-op.
func (b *HandoffBoard) Merge(ctx context.Context, store *Store, jobID string) error {
	if b == nil || store == nil || jobID == "" {
		return nil
	}
	b.mu.Lock()
	completion, ok := b.completions[jobID]
	b.mu.Unlock()
	if !ok {
		return nil
	}

	job, err := store.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("merge completion: %w", err)
	}
	if job == nil || job.IsTerminal() {
		b.discard(jobID)
		return nil
	}

	switch completion.Status {
	case StatusCompleted:
		job.MarkCompleted(completion.OutputPath, completion.FileSizeBytes, completion.GenerationTimeSeconds, completion.QualityScore)
		if !completion.FinishedAt.IsZero() {
			finished := completion.FinishedAt.UTC()
			job.CompletedAt = &finished
		}
	case StatusFailed:
		job.MarkFailed(completion.ErrorMessage)
	default:
		b.discard(jobID)
		return nil
	}

	if err := store.Update(ctx, job); err != nil {
		return fmt.Errorf("merge completion: %w", err)
	}
	b.discard(jobID)
	return nil
}

func (b *HandoffBoard) discard(jobID string) {
	b.mu.Lock()
	delete(b.completions, jobID)
	b.mu.Unlock()
}

// MergeAll merges every posted completion. Used by list-style reads that
// should observe terminal results without knowing job IDs up front.
func (b *HandoffBoard) MergeAll(ctx context.Context, store *Store) error {
	for _, jobID := range b.Pending() {
		if err := b.Merge(ctx, store, jobID); err != nil {
			return err
		}
	}
	return nil
}

// Pending returns the job IDs with unmerged completions, sorted for stable
// output.
func (b *HandoffBoard) Pending() []string {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := make([]string, 0, len(b.completions))
	for id := range b.completions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
