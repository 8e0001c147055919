package workflow

import (
	"context"

	"loom/internal/logging"
	"loom/internal/queue"
	"loom/internal/ratelimit"
	"loom/internal/stage"
)

// ActiveJob is a processing job as seen by status output.
type ActiveJob struct {
	ID      string
	Title   string
	Stage   string
	Percent float64
	Stale   bool
}

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running     bool
	LastError   string
	QueueStats  map[queue.Status]int
	ActiveJobs  []ActiveJob
	StageHealth map[string]stage.Health
	Budget      *ratelimit.Usage
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	running := m.running
	lastErr := m.lastErr
	stages := m.stages
	m.mu.RUnlock()

	summary := StatusSummary{Running: running}
	if lastErr != nil {
		summary.LastError = lastErr.Error()
	}

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read queue stats", logging.Error(err))
	} else {
		summary.QueueStats = stats
	}

	health := make(map[string]stage.Health, len(stages))
	for _, def := range stages {
		health[def.Name] = def.Handler.HealthCheck(ctx)
	}
	summary.StageHealth = health

	processing, err := m.store.List(ctx, queue.StatusProcessing)
	if err != nil {
		m.logger.Warn("failed to list processing jobs", logging.Error(err))
	} else {
		for _, job := range processing {
			summary.ActiveJobs = append(summary.ActiveJobs, ActiveJob{
				ID:      job.ID,
				Title:   job.Title,
				Stage:   job.ProgressStage,
				Percent: job.ProgressPercent,
				Stale:   m.heartbeat.IsStale(job),
			})
		}
	}

	if m.budget != nil {
		usage := m.budget.Snapshot()
		summary.Budget = &usage
	}
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}
