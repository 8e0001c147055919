package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"loom/internal/logging"
	"loom/internal/queue"
)

// HeartbeatMonitor keeps liveness timestamps fresh for processing jobs and
// judges staleness for status reporting.
type HeartbeatMonitor struct {
	store    *queue.Store
	logger   *slog.Logger
	interval time.Duration
	timeout  time.Duration
}

// NewHeartbeatMonitor creates a new monitor. A non-positive interval disables
// the per-job heartbeat loop; a non-positive timeout disables staleness checks.
func NewHeartbeatMonitor(store *queue.Store, logger *slog.Logger, interval, timeout time.Duration) *HeartbeatMonitor {
	return &HeartbeatMonitor{
		store:    store,
		logger:   logger,
		interval: interval,
		timeout:  timeout,
	}
}

// Enabled reports whether the monitor should run heartbeat loops at all.
func (h *HeartbeatMonitor) Enabled() bool {
	return h != nil && h.interval > 0
}

// StartLoop updates the job's heartbeat on every tick until the context ends.
func (h *HeartbeatMonitor) StartLoop(ctx context.Context, wg *sync.WaitGroup, jobID string) {
	defer wg.Done()
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	logger := logging.WithContext(ctx, logging.NewComponentLogger(h.logger, "workflow-heartbeat"))

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.store.UpdateHeartbeat(ctx, jobID); err != nil {
				if errors.Is(err, context.Canceled) {
					logger.Info("daemon shutting down, heartbeat update cancelled")
				} else {
					logger.Warn("heartbeat update failed", logging.Error(err))
				}
			}
		}
	}
}

// IsStale reports whether the job's last heartbeat is older than the
// configured timeout. Jobs without a heartbeat yet are never stale.
func (h *HeartbeatMonitor) IsStale(job *queue.Job) bool {
	if h == nil || h.timeout <= 0 || job == nil || job.LastHeartbeat == nil {
		return false
	}
	return time.Since(*job.LastHeartbeat) > h.timeout
}
