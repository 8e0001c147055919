package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"loom/internal/logging"
	"loom/internal/queue"
)

// Start reconciles jobs interrupted by the previous run and begins polling
// for pending work.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if len(m.stages) == 0 {
		m.mu.Unlock()
		return errors.New("workflow stages not configured")
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.runCtx = runCtx
	m.cancel = cancel
	m.running = true
	if n := m.cfg.Workers.MaxConcurrent; n > 0 {
		m.workers = make(chan struct{}, n)
	} else {
		m.workers = nil
	}
	m.mu.Unlock()

	interrupted, err := m.store.FailStuckProcessing(runCtx, queue.DaemonStopReason)
	if err != nil {
		m.mu.Lock()
		m.running = false
		m.runCtx = nil
		m.cancel = nil
		m.mu.Unlock()
		cancel()
		return fmt.Errorf("fail interrupted jobs: %w", err)
	}
	if interrupted > 0 {
		m.logger.Warn("failed jobs interrupted by previous shutdown",
			logging.Int64("count", interrupted),
			logging.String(logging.FieldEventType, "startup_reconcile"),
		)
	}

	m.wg.Add(1)
	go m.schedule(runCtx)

	m.logger.Info("workflow started",
		logging.Int("stages", len(m.stages)),
		logging.Int("max_concurrent", m.cfg.Workers.MaxConcurrent),
	)
	return nil
}

// Stop cancels all workers and waits for them to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.runCtx = nil
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("workflow stopped")
}

func (m *Manager) schedule(ctx context.Context) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := m.board.MergeAll(ctx, m.store); err != nil && !errors.Is(err, context.Canceled) {
			m.logger.Warn("merging worker completions failed", logging.Error(err))
		}

		pending, err := m.store.List(ctx, queue.StatusPending)
		if err != nil {
			m.handleFetchError(ctx, err)
			continue
		}
		for _, job := range pending {
			if m.isActive(job.ID) {
				continue
			}
			if _, err := m.Dispatch(job); err != nil {
				m.logger.Debug("dispatch skipped",
					logging.String(logging.FieldJobID, job.ID),
					logging.Error(err),
				)
			}
		}

		m.waitForWorkOrShutdown(ctx)
	}
}

func (m *Manager) handleFetchError(ctx context.Context, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	m.setLastError(err)
	m.logger.Error("failed to list pending jobs",
		logging.Error(err),
		logging.String(logging.FieldEventType, "queue_fetch_failed"),
	)
	m.waitForWorkOrShutdown(ctx)
}

func (m *Manager) waitForWorkOrShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(m.pollInterval):
	}
}
