package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"loom/internal/logging"
	"loom/internal/pipeline"
	"loom/internal/queue"
	"loom/internal/services"
)

// failJob records a stage failure: the job row carries the error verbatim,
// the handoff board gets the terminal result, and subscribers are told.
func (m *Manager) failJob(ctx context.Context, logger *slog.Logger, def pipeline.Definition, job *queue.Job, stageErr error) Outcome {
	message := failureMessage(def.Name, stageErr)
	job.MarkFailed(message)

	logger.Error("stage failed",
		logging.Error(stageErr),
		logging.Int("stage_index", def.Index),
		logging.String("error_kind", services.Kind(stageErr)),
		logging.String("error_message", message),
		logging.String(logging.FieldEventType, "stage_failure"),
	)

	if err := m.store.Update(ctx, job); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, could not persist failure", logging.Error(err))
		} else {
			m.setLastError(err)
			logger.Error("failed to persist job failure", logging.Error(err))
		}
	}
	m.board.Post(job.ID, queue.Completion{
		Status:       queue.StatusFailed,
		ErrorMessage: message,
	})
	m.publishProgress(ctx, logger, job)
	m.notifyFailed(ctx, logger, job)
	m.setLastError(stageErr)

	return Outcome{JobID: job.ID, Status: queue.StatusFailed, Err: stageErr}
}

// failureMessage renders the stored error text. The error is kept verbatim so
// operators see exactly what the stage reported.
func failureMessage(stageName string, err error) string {
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			return msg
		}
	}
	if stageName != "" {
		return fmt.Sprintf("%s failed", stageName)
	}
	return "pipeline failed"
}
