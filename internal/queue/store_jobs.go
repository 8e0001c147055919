package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewJob inserts a pending job together with its source documents. The job
// and its sources commit atomically; a failed insert leaves no partial row.
func (s *Store) NewJob(ctx context.Context, title, channelProfile string, targetDurationSeconds int, customPrompt string, sources []SourceText) (*Job, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, errors.New("job title is required")
	}
	if len(sources) == 0 {
		return nil, errors.New("at least one source document is required")
	}

	ctx = ensureContext(ctx)
	id := uuid.NewString()
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin insert tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO jobs (
            id, title, channel_profile, target_duration_seconds, custom_prompt,
            source_count, status, stage_index, progress_percent, quality_score,
            created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		title,
		channelProfile,
		targetDurationSeconds,
		customPrompt,
		len(sources),
		StatusPending,
		0,
		0.0,
		0.0,
		timestamp,
		timestamp,
	); err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	for i, source := range sources {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO job_sources (job_id, position, name, content) VALUES (?, ?, ?, ?)`,
			id,
			i,
			source.Name,
			source.Content,
		); err != nil {
			return nil, fmt.Errorf("insert job source %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit insert: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a job by identifier. Returns nil without error when the job
// does not exist.
func (s *Store) GetByID(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// Sources returns the job's source documents in submission order.
func (s *Store) Sources(ctx context.Context, jobID string) ([]SourceText, error) {
	rows, err := s.db.QueryContext(
		ensureContext(ctx),
		`SELECT name, content FROM job_sources WHERE job_id = ? ORDER BY position`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("query job sources: %w", err)
	}
	defer rows.Close()

	var sources []SourceText
	for rows.Next() {
		var source SourceText
		if err := rows.Scan(&source.Name, &source.Content); err != nil {
			return nil, fmt.Errorf("scan job source: %w", err)
		}
		sources = append(sources, source)
	}
	return sources, rows.Err()
}

// Update persists changes to an existing job.
func (s *Store) Update(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	job.UpdatedAt = time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE jobs
         SET title = ?, channel_profile = ?, target_duration_seconds = ?, custom_prompt = ?,
             source_count = ?, status = ?, stage_index = ?, progress_stage = ?,
             progress_percent = ?, progress_message = ?, error_message = ?, output_path = ?,
             file_size_bytes = ?, generation_time_seconds = ?, quality_score = ?,
             updated_at = ?, started_at = ?, completed_at = ?, last_heartbeat = ?
         WHERE id = ?`,
		job.Title,
		job.ChannelProfile,
		job.TargetDurationSeconds,
		job.CustomPrompt,
		job.SourceCount,
		job.Status,
		job.StageIndex,
		nullableString(job.ProgressStage),
		job.ProgressPercent,
		nullableString(job.ProgressMessage),
		nullableString(job.ErrorMessage),
		nullableString(job.OutputPath),
		job.FileSizeBytes,
		job.GenerationTimeSeconds,
		job.QualityScore,
		job.UpdatedAt.Format(time.RFC3339Nano),
		nullableTime(job.StartedAt),
		nullableTime(job.CompletedAt),
		nullableTime(job.LastHeartbeat),
		job.ID,
	); err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

// UpdateProgress persists only the progress fields. Status, heartbeat, and
// timestamps other than updated_at are left untouched so a concurrent
// heartbeat write cannot be clobbered by a stage progress report.
func (s *Store) UpdateProgress(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job is nil")
	}
	job.UpdatedAt = time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE jobs
         SET stage_index = ?, progress_stage = ?, progress_percent = ?, progress_message = ?, updated_at = ?
         WHERE id = ?`,
		job.StageIndex,
		nullableString(job.ProgressStage),
		job.ProgressPercent,
		nullableString(job.ProgressMessage),
		job.UpdatedAt.Format(time.RFC3339Nano),
		job.ID,
	); err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}
	return nil
}

// List returns jobs filtered by status set (or all jobs when no status is
// provided), oldest first.
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	var (
		rows *sql.Rows
		err  error
	)

	ctx = ensureContext(ctx)
	baseQuery := `SELECT ` + jobColumns + ` FROM jobs`
	orderClause := ` ORDER BY created_at, id`

	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = status
		}
		query := baseQuery + ` WHERE status IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Cancel marks a pending or processing job failed with CancelledReason. The
// status check happens inside the UPDATE so a cancellation racing a worker's
// terminal write can never overwrite a finished job. Returns whether a row
// was updated; false means the job is absent or already terminal.
func (s *Store) Cancel(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE jobs
         SET status = ?, error_message = ?, progress_stage = 'Failed',
             progress_message = ?, last_heartbeat = NULL, updated_at = ?
         WHERE id = ? AND status IN (?, ?)`,
		StatusFailed,
		CancelledReason,
		CancelledReason,
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
		StatusPending,
		StatusProcessing,
	)
	if err != nil {
		return false, fmt.Errorf("cancel job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Remove deletes a job (and its sources, via cascade) by identifier.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// ClearCompleted removes only completed jobs.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE status = ?`, StatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("clear completed: %w", err)
	}
	return res.RowsAffected()
}

// ClearFailed removes only failed jobs.
func (s *Store) ClearFailed(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM jobs WHERE status = ?`, StatusFailed)
	if err != nil {
		return 0, fmt.Errorf("clear failed: %w", err)
	}
	return res.RowsAffected()
}
