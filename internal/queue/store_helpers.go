package queue

import (
	"database/sql"
	"errors"
	"time"
)

const jobColumns = "id, title, channel_profile, target_duration_seconds, custom_prompt, source_count, status, stage_index, progress_stage, progress_percent, progress_message, error_message, output_path, file_size_bytes, generation_time_seconds, quality_score, created_at, updated_at, started_at, completed_at, last_heartbeat"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id               string
		title            sql.NullString
		channelProfile   sql.NullString
		targetDuration   sql.NullInt64
		customPrompt     sql.NullString
		sourceCount      sql.NullInt64
		statusStr        string
		stageIndex       sql.NullInt64
		progressStage    sql.NullString
		progressPercent  sql.NullFloat64
		progressMessage  sql.NullString
		errorMessage     sql.NullString
		outputPath       sql.NullString
		fileSizeBytes    sql.NullInt64
		generationTime   sql.NullFloat64
		qualityScore     sql.NullFloat64
		createdRaw       sql.NullString
		updatedRaw       sql.NullString
		startedRaw       sql.NullString
		completedRaw     sql.NullString
		lastHeartbeatRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&title,
		&channelProfile,
		&targetDuration,
		&customPrompt,
		&sourceCount,
		&statusStr,
		&stageIndex,
		&progressStage,
		&progressPercent,
		&progressMessage,
		&errorMessage,
		&outputPath,
		&fileSizeBytes,
		&generationTime,
		&qualityScore,
		&createdRaw,
		&updatedRaw,
		&startedRaw,
		&completedRaw,
		&lastHeartbeatRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:                    id,
		Title:                 title.String,
		ChannelProfile:        channelProfile.String,
		TargetDurationSeconds: int(targetDuration.Int64),
		CustomPrompt:          customPrompt.String,
		SourceCount:           int(sourceCount.Int64),
		Status:                Status(statusStr),
		StageIndex:            int(stageIndex.Int64),
		ProgressStage:         progressStage.String,
		ProgressPercent:       progressPercent.Float64,
		ProgressMessage:       progressMessage.String,
		ErrorMessage:          errorMessage.String,
		OutputPath:            outputPath.String,
		FileSizeBytes:         fileSizeBytes.Int64,
		GenerationTimeSeconds: generationTime.Float64,
		QualityScore:          qualityScore.Float64,
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	if startedRaw.Valid {
		if started, err := parseTimeString(startedRaw.String); err == nil {
			job.StartedAt = &started
		}
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			job.CompletedAt = &completed
		}
	}
	if lastHeartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(lastHeartbeatRaw.String); err == nil {
			job.LastHeartbeat = &heartbeat
		}
	}
	return job, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	v := value.UTC().Format(time.RFC3339Nano)
	return v
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
