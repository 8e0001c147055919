package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"loom/internal/logging"
	"loom/internal/pipeline"
	"loom/internal/queue"
	"loom/internal/services"
	"loom/internal/stage"
)

// process drives one job through every configured stage in order. It owns all
// persistence for the job: claiming it, recording per-stage progress, and
// writing the terminal row. Interruption via ctx leaves the row untouched so
// startup reconciliation can fail it with DaemonStopReason.
func (m *Manager) process(ctx context.Context, job *queue.Job) Outcome {
	jobCtx := services.WithJobID(ctx, job.ID)
	logger := logging.WithContext(jobCtx, m.logger)
	started := time.Now()

	job.MarkProcessing()
	if err := m.store.Update(jobCtx, job); err != nil {
		if !errors.Is(err, context.Canceled) {
			m.setLastError(err)
			logger.Error("failed to claim job",
				logging.Error(err),
				logging.String(logging.FieldEventType, "job_claim_failed"),
			)
		}
		return Outcome{JobID: job.ID, Status: job.Status, Err: fmt.Errorf("claim job: %w", err)}
	}
	logger.Info("job started",
		logging.String("title", job.Title),
		logging.String("channel_profile", job.ChannelProfile),
		logging.Int("sources", job.SourceCount),
		logging.String(logging.FieldEventType, "job_start"),
	)
	m.publishProgress(jobCtx, logger, job)

	stages := m.stageDefinitions()
	for _, def := range stages {
		if err := ctx.Err(); err != nil {
			return m.interrupted(logger, job, err)
		}

		stageCtx := services.WithStage(jobCtx, def.Name)
		stageLogger := logging.WithContext(stageCtx, m.logger)
		stageStarted := time.Now()
		stageLogger.Info("stage started",
			logging.Int("stage_index", def.Index),
			logging.String(logging.FieldEventType, "stage_start"),
		)

		if err := def.Handler.Prepare(stageCtx, job); err != nil {
			if errors.Is(err, context.Canceled) {
				return m.interrupted(stageLogger, job, err)
			}
			return m.failJob(stageCtx, stageLogger, def, job, err)
		}
		job.BeginStage(def.Index, def.Name, fmt.Sprintf("Running %s", def.Name))
		if err := m.store.UpdateProgress(stageCtx, job); err != nil {
			stageLogger.Warn("failed to persist stage label", logging.Error(err))
		}
		m.publishProgress(stageCtx, stageLogger, job)

		if err := m.executeWithHeartbeat(stageCtx, def.Handler, job); err != nil {
			if errors.Is(err, context.Canceled) {
				return m.interrupted(stageLogger, job, err)
			}
			return m.failJob(stageCtx, stageLogger, def, job, err)
		}

		if job.Status == queue.StatusCompleted {
			if err := m.store.Update(stageCtx, job); err != nil {
				if !errors.Is(err, context.Canceled) {
					m.setLastError(err)
					stageLogger.Error("failed to persist job completion", logging.Error(err))
				}
			}
		} else {
			job.SetStageProgress(def.Index, def.Name, fmt.Sprintf("%s finished", def.Name))
			if err := m.store.UpdateProgress(stageCtx, job); err != nil {
				stageLogger.Warn("failed to persist stage progress", logging.Error(err))
			}
		}
		m.publishProgress(stageCtx, stageLogger, job)

		stageLogger.Info("stage completed",
			logging.Int("stage_index", def.Index),
			logging.String("progress_stage", job.ProgressStage),
			logging.Duration("stage_duration", time.Since(stageStarted)),
			logging.String(logging.FieldEventType, "stage_complete"),
		)
	}

	if job.Status != queue.StatusCompleted {
		var last pipeline.Definition
		if len(stages) > 0 {
			last = stages[len(stages)-1]
		}
		return m.failJob(jobCtx, logger, last, job, errors.New("pipeline finished without completing the job"))
	}

	m.board.Post(job.ID, queue.Completion{
		Status:                queue.StatusCompleted,
		OutputPath:            job.OutputPath,
		FileSizeBytes:         job.FileSizeBytes,
		GenerationTimeSeconds: job.GenerationTimeSeconds,
		QualityScore:          job.QualityScore,
	})
	logger.Info("job completed",
		logging.String("output_path", job.OutputPath),
		logging.Duration("job_duration", time.Since(started)),
		logging.String(logging.FieldEventType, "job_complete"),
	)
	m.notifyCompleted(jobCtx, logger, job, time.Since(started))

	return Outcome{JobID: job.ID, Status: queue.StatusCompleted, OutputPath: job.OutputPath}
}

// executeWithHeartbeat runs the handler's Execute while a background loop
// refreshes the job's heartbeat, so status output and stale detection see the
// job as live during long stages.
func (m *Manager) executeWithHeartbeat(ctx context.Context, handler stage.Handler, job *queue.Job) error {
	if m.heartbeat == nil || !m.heartbeat.Enabled() {
		return handler.Execute(ctx, job)
	}

	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go m.heartbeat.StartLoop(hbCtx, &hbWG, job.ID)

	err := handler.Execute(ctx, job)

	hbCancel()
	hbWG.Wait()
	return err
}

// interrupted handles a worker cut short by shutdown or cancellation. Nothing
// is persisted or published: either Cancel already wrote the terminal row, or
// the next Start reconciles the job as interrupted.
func (m *Manager) interrupted(logger *slog.Logger, job *queue.Job, err error) Outcome {
	logger.Debug("job interrupted",
		logging.Error(err),
		logging.String(logging.FieldEventType, "job_interrupted"),
	)
	return Outcome{JobID: job.ID, Status: job.Status, Err: err}
}

func (m *Manager) stageDefinitions() []pipeline.Definition {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stages
}
