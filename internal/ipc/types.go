package ipc

import (
	"sort"
	"time"

	"loom/internal/daemon"
	"loom/internal/queue"
	"loom/internal/workflow"
)

const dateTimeFormat = time.RFC3339

// Job is the wire representation of a queue job.
type Job struct {
	ID                    string      `json:"id"`
	Title                 string      `json:"title"`
	ChannelProfile        string      `json:"channelProfile"`
	TargetDurationSeconds int         `json:"targetDurationSeconds"`
	SourceCount           int         `json:"sourceCount"`
	Status                string      `json:"status"`
	StageIndex            int         `json:"stageIndex"`
	Progress              JobProgress `json:"progress"`
	ErrorMessage          string      `json:"errorMessage,omitempty"`
	OutputPath            string      `json:"outputPath,omitempty"`
	FileSizeBytes         int64       `json:"fileSizeBytes,omitempty"`
	GenerationTimeSeconds float64     `json:"generationTimeSeconds,omitempty"`
	QualityScore          float64     `json:"qualityScore,omitempty"`
	CreatedAt             string      `json:"createdAt,omitempty"`
	UpdatedAt             string      `json:"updatedAt,omitempty"`
	StartedAt             string      `json:"startedAt,omitempty"`
	CompletedAt           string      `json:"completedAt,omitempty"`
}

// JobProgress captures stage progress information for a job.
type JobProgress struct {
	Stage   string  `json:"stage"`
	Percent float64 `json:"percent"`
	Message string  `json:"message"`
}

// SourceText carries one extracted document over the wire.
type SourceText struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// FromJob converts a queue job into its wire representation.
func FromJob(job *queue.Job) Job {
	if job == nil {
		return Job{}
	}
	dto := Job{
		ID:                    job.ID,
		Title:                 job.Title,
		ChannelProfile:        job.ChannelProfile,
		TargetDurationSeconds: job.TargetDurationSeconds,
		SourceCount:           job.SourceCount,
		Status:                string(job.Status),
		StageIndex:            job.StageIndex,
		Progress: JobProgress{
			Stage:   job.ProgressStage,
			Percent: job.ProgressPercent,
			Message: job.ProgressMessage,
		},
		ErrorMessage:          job.ErrorMessage,
		OutputPath:            job.OutputPath,
		FileSizeBytes:         job.FileSizeBytes,
		GenerationTimeSeconds: job.GenerationTimeSeconds,
		QualityScore:          job.QualityScore,
	}
	if !job.CreatedAt.IsZero() {
		dto.CreatedAt = job.CreatedAt.UTC().Format(dateTimeFormat)
	}
	if !job.UpdatedAt.IsZero() {
		dto.UpdatedAt = job.UpdatedAt.UTC().Format(dateTimeFormat)
	}
	if job.StartedAt != nil {
		dto.StartedAt = job.StartedAt.UTC().Format(dateTimeFormat)
	}
	if job.CompletedAt != nil {
		dto.CompletedAt = job.CompletedAt.UTC().Format(dateTimeFormat)
	}
	return dto
}

// FromJobs converts queue jobs into wire representations.
func FromJobs(jobs []*queue.Job) []Job {
	if len(jobs) == 0 {
		return nil
	}
	out := make([]Job, 0, len(jobs))
	for _, job := range jobs {
		if job == nil {
			continue
		}
		out = append(out, FromJob(job))
	}
	return out
}

// SubmitRequest asks the daemon to queue a new generation job.
type SubmitRequest struct {
	Title                 string       `json:"title"`
	ChannelProfile        string       `json:"channelProfile,omitempty"`
	TargetDurationSeconds int          `json:"targetDurationSeconds,omitempty"`
	CustomPrompt          string       `json:"customPrompt,omitempty"`
	Sources               []SourceText `json:"sources"`
}

// SubmitResponse returns the queued job.
type SubmitResponse struct {
	Job Job `json:"job"`
}

// StartRequest triggers daemon workflow startup.
type StartRequest struct{}

// StartResponse indicates whether the daemon was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest stops daemon workflow.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StageHealth describes readiness of a pipeline stage.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// PreflightCheck mirrors a startup environment check.
type PreflightCheck struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// ActiveJob summarizes an in-flight job for status output.
type ActiveJob struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Stage   string  `json:"stage"`
	Percent float64 `json:"percent"`
	Stale   bool    `json:"stale"`
}

// BudgetUsage reports generation API budget counters.
type BudgetUsage struct {
	RequestCount    int64  `json:"requestCount"`
	TokensUsed      int64  `json:"tokensUsed"`
	DailyTokenLimit int64  `json:"dailyTokenLimit"`
	Day             string `json:"day"`
}

// StatusResponse represents combined daemon/workflow status information.
type StatusResponse struct {
	Running     bool             `json:"running"`
	PID         int              `json:"pid"`
	QueueStats  map[string]int   `json:"queueStats"`
	LastError   string           `json:"lastError,omitempty"`
	LockPath    string           `json:"lockPath"`
	QueueDBPath string           `json:"queueDbPath"`
	LogPath     string           `json:"logPath"`
	StageHealth []StageHealth    `json:"stageHealth,omitempty"`
	Checks      []PreflightCheck `json:"checks,omitempty"`
	ActiveJobs  []ActiveJob      `json:"activeJobs,omitempty"`
	Budget      *BudgetUsage     `json:"budget,omitempty"`
}

// JobStatusRequest fetches a single job by id.
type JobStatusRequest struct {
	ID string `json:"id"`
}

// JobStatusResponse contains a single job.
type JobStatusResponse struct {
	Job Job `json:"job"`
}

// JobListRequest filters job listing by status.
type JobListRequest struct {
	Statuses []string `json:"statuses"`
}

// JobListResponse contains queue entries.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// CancelRequest cancels a pending or processing job.
type CancelRequest struct {
	ID string `json:"id"`
}

// CancelResponse reports cancellation outcome.
type CancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

// ClearCompletedRequest removes completed jobs.
type ClearCompletedRequest struct{}

// ClearCompletedResponse reports number of removed entries.
type ClearCompletedResponse struct {
	Removed int64 `json:"removed"`
}

// ClearFailedRequest removes failed jobs.
type ClearFailedRequest struct{}

// ClearFailedResponse reports number of removed entries.
type ClearFailedResponse struct {
	Removed int64 `json:"removed"`
}

// LogTailRequest fetches log lines based on offset and follow semantics.
type LogTailRequest struct {
	Offset     int64 `json:"offset"`
	Limit      int   `json:"limit"`
	Follow     bool  `json:"follow"`
	WaitMillis int   `json:"wait_millis"`
}

// LogTailResponse returns log lines and the next offset.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// QueueHealthRequest fetches aggregate diagnostics.
type QueueHealthRequest struct{}

// QueueHealthResponse reports queue health information.
type QueueHealthResponse struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

// DatabaseHealthRequest fetches detailed database diagnostics.
type DatabaseHealthRequest struct{}

// DatabaseHealthResponse reports database health information.
type DatabaseHealthResponse struct {
	DBPath           string   `json:"db_path"`
	DatabaseExists   bool     `json:"database_exists"`
	DatabaseReadable bool     `json:"database_readable"`
	SchemaVersion    string   `json:"schema_version"`
	TableExists      bool     `json:"table_exists"`
	ColumnsPresent   []string `json:"columns_present"`
	MissingColumns   []string `json:"missing_columns"`
	IntegrityCheck   bool     `json:"integrity_check"`
	TotalJobs        int      `json:"total_jobs"`
	Error            string   `json:"error"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}

func fromStatus(status daemon.Status) StatusResponse {
	resp := StatusResponse{
		Running:     status.Running,
		PID:         status.PID,
		LastError:   status.Workflow.LastError,
		LockPath:    status.LockFilePath,
		QueueDBPath: status.QueueDBPath,
		LogPath:     status.LogPath,
	}
	resp.QueueStats = make(map[string]int, len(status.Workflow.QueueStats))
	for key, value := range status.Workflow.QueueStats {
		resp.QueueStats[string(key)] = value
	}
	for _, active := range status.Workflow.ActiveJobs {
		resp.ActiveJobs = append(resp.ActiveJobs, ActiveJob(active))
	}
	if usage := status.Workflow.Budget; usage != nil {
		resp.Budget = &BudgetUsage{
			RequestCount:    usage.RequestCount,
			TokensUsed:      usage.TokensUsed,
			DailyTokenLimit: usage.DailyTokenLimit,
			Day:             usage.Day,
		}
	}
	for _, check := range status.Checks {
		resp.Checks = append(resp.Checks, PreflightCheck(check))
	}
	return resp
}

func fromStageHealth(summary workflow.StatusSummary) []StageHealth {
	if len(summary.StageHealth) == 0 {
		return nil
	}
	names := make([]string, 0, len(summary.StageHealth))
	for name := range summary.StageHealth {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]StageHealth, 0, len(names))
	for _, name := range names {
		health := summary.StageHealth[name]
		out = append(out, StageHealth{Name: name, Ready: health.Ready, Detail: health.Detail})
	}
	return out
}
