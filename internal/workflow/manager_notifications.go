package workflow

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"loom/internal/events"
	"loom/internal/logging"
	"loom/internal/notifications"
	"loom/internal/queue"
)

func (m *Manager) notifyCompleted(ctx context.Context, logger *slog.Logger, job *queue.Job, duration time.Duration) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Publish(ctx, notifications.EventJobCompleted, notifications.Payload{
		"title":      job.Title,
		"outputPath": job.OutputPath,
		"duration":   duration,
	}); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, could not send completion notification")
		} else {
			logger.Debug("completion notification failed", logging.Error(err))
		}
	}
}

func (m *Manager) notifyFailed(ctx context.Context, logger *slog.Logger, job *queue.Job) {
	if m.notifier == nil {
		return
	}
	if err := m.notifier.Publish(ctx, notifications.EventJobFailed, notifications.Payload{
		"title": job.Title,
		"error": job.ErrorMessage,
	}); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, could not send failure notification")
		} else {
			logger.Debug("failure notification failed", logging.Error(err))
		}
	}
}

// publishProgress snapshots the job onto its Redis channel. Publish failures
// never affect the job; subscribers are best-effort observers.
func (m *Manager) publishProgress(ctx context.Context, logger *slog.Logger, job *queue.Job) {
	if m.events == nil {
		return
	}
	if err := m.events.Publish(ctx, events.FromJob(job)); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		logger.Debug("job event publish failed", logging.Error(err))
	}
}
