package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"loom/internal/logging"
	"loom/internal/queue"
	"loom/internal/services"
)

var (
	// ErrNotRunning reports a dispatch attempted before Start or after Stop.
	ErrNotRunning = errors.New("workflow not running")
	// ErrAlreadyDispatched reports a job that already has a worker.
	ErrAlreadyDispatched = errors.New("job already dispatched")
)

// Outcome is the terminal result of a dispatched job.
type Outcome struct {
	JobID      string
	Status     queue.Status
	OutputPath string
	Err        error
}

// Dispatch hands the job to its own worker goroutine and returns a buffered
// channel that delivers the terminal Outcome. The worker runs under a per-job
// context derived from the manager's run context so both Stop and Cancel can
// interrupt it.
func (m *Manager) Dispatch(job *queue.Job) (<-chan Outcome, error) {
	if job == nil {
		return nil, errors.New("job is nil")
	}
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil, ErrNotRunning
	}
	if _, busy := m.active[job.ID]; busy {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrAlreadyDispatched, job.ID)
	}
	jobCtx, cancel := context.WithCancel(m.runCtx)
	m.active[job.ID] = cancel
	workers := m.workers
	m.wg.Add(1)
	m.mu.Unlock()

	outcome := make(chan Outcome, 1)
	go m.runJob(jobCtx, cancel, workers, job, outcome)
	return outcome, nil
}

func (m *Manager) runJob(ctx context.Context, cancel context.CancelFunc, workers chan struct{}, job *queue.Job, outcome chan<- Outcome) {
	defer m.wg.Done()
	defer cancel()
	defer m.release(job.ID)

	if workers != nil {
		select {
		case workers <- struct{}{}:
		case <-ctx.Done():
			outcome <- Outcome{JobID: job.ID, Status: job.Status, Err: ctx.Err()}
			return
		}
		defer func() { <-workers }()
	}

	outcome <- m.process(ctx, job)
}

// Cancel aborts a pending or processing job. The terminal state is written
// first (the store refuses to touch a job that already finished) and the
// worker's context is cancelled after, so the worker observes the
// cancellation and exits without persisting anything further.
func (m *Manager) Cancel(ctx context.Context, jobID string) error {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return services.Wrap(services.ErrValidation, "workflow", "cancel", "job id is required", nil)
	}

	cancelled, err := m.store.Cancel(ctx, jobID)
	if err != nil {
		return fmt.Errorf("cancel job: %w", err)
	}
	m.cancelActive(jobID)

	if !cancelled {
		job, err := m.store.GetByID(ctx, jobID)
		if err != nil {
			return fmt.Errorf("cancel job: %w", err)
		}
		if job == nil {
			return services.Wrap(services.ErrNotFound, "workflow", "cancel", fmt.Sprintf("job %s not found", jobID), nil)
		}
		return services.Wrap(services.ErrValidation, "workflow", "cancel", fmt.Sprintf("job is already %s", job.Status), nil)
	}

	if job, err := m.store.GetByID(ctx, jobID); err == nil && job != nil {
		m.publishProgress(ctx, m.logger, job)
	}
	m.logger.Info("job cancelled",
		logging.String(logging.FieldJobID, jobID),
		logging.String(logging.FieldEventType, "job_cancelled"),
	)
	return nil
}
