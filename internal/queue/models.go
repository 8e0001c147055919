package queue

import (
	"strings"
	"time"
)

// Status represents the lifecycle of a generation job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// CancelledReason is the error message set when a user cancels a job.
const CancelledReason = "Cancelled by user"

// DaemonStopReason is the error message set when jobs are failed because the
// daemon restarted while they were mid-pipeline.
const DaemonStopReason = "Interrupted by daemon restart"

// StageCount is the number of pipeline stages a job passes through. Progress
// advances in steps of 100/StageCount as each stage completes.
const StageCount = 10

var allStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// SourceText is one normalized input document attached to a job. Name keeps
// the original file base name for metadata reporting; Content is the extracted
// plain text.
type SourceText struct {
	Name    string
	Content string
}

// DatabaseHealth captures diagnostic information about the job database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    string
	TableExists      bool
	ColumnsPresent   []string
	MissingColumns   []string
	IntegrityCheck   bool
	TotalJobs        int
	Error            string
}

// HealthSummary describes aggregated job counts per lifecycle state.
type HealthSummary struct {
	Total      int
	Pending    int
	Processing int
	Completed  int
	Failed     int
}

// Job represents a video generation job persisted in SQLite.
type Job struct {
	ID                    string
	Title                 string
	ChannelProfile        string
	TargetDurationSeconds int
	CustomPrompt          string
	SourceCount           int
	Status                Status
	StageIndex            int
	ProgressStage         string
	ProgressPercent       float64
	ProgressMessage       string
	ErrorMessage          string
	OutputPath            string
	FileSizeBytes         int64
	GenerationTimeSeconds float64
	QualityScore          float64
	CreatedAt             time.Time
	UpdatedAt             time.Time
	StartedAt             *time.Time
	CompletedAt           *time.Time
	LastHeartbeat         *time.Time
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status is final. Terminal jobs never change
// status again; every mutator checks this before writing.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// IsTerminal reports whether the job has reached a final state.
func (j Job) IsTerminal() bool {
	return j.Status.IsTerminal()
}

// IsProcessing reports whether the job is actively running the pipeline.
func (j Job) IsProcessing() bool {
	return j.Status == StatusProcessing
}

// MarkProcessing transitions the job into the active lane. Progress is floored
// at 10% so a freshly claimed job is visibly distinct from a queued one.
// Calling it on a terminal job is a no-op.
func (j *Job) MarkProcessing() {
	if j.IsTerminal() {
		return
	}
	j.Status = StatusProcessing
	if j.StartedAt == nil {
		now := time.Now().UTC()
		j.StartedAt = &now
	}
	if j.ProgressPercent < 10 {
		j.ProgressPercent = 10
	}
	if j.ProgressStage == "" {
		j.ProgressStage = "Starting"
	}
	j.ErrorMessage = ""
}

// BeginStage records that stage index (1-based) has started without advancing
// the completion percentage; pollers see the new label while progress stays at
// the last completed stage. Terminal jobs are left untouched.
func (j *Job) BeginStage(index int, stage, message string) {
	if j.IsTerminal() {
		return
	}
	if index > 0 {
		if index > StageCount {
			index = StageCount
		}
		j.StageIndex = index
	}
	if strings.TrimSpace(stage) != "" {
		j.ProgressStage = stage
	}
	j.ProgressMessage = message
}

// SetStageProgress records completion of pipeline stage index (1-based).
// Progress is index*10 but never moves backward; stage label and message are
// replaced. Terminal jobs are left untouched.
func (j *Job) SetStageProgress(index int, stage, message string) {
	if j.IsTerminal() {
		return
	}
	if index < 0 {
		index = 0
	}
	if index > StageCount {
		index = StageCount
	}
	j.StageIndex = index
	percent := float64(index * 10)
	if percent > j.ProgressPercent {
		j.ProgressPercent = percent
	}
	j.ProgressStage = stage
	j.ProgressMessage = message
}

// MarkCompleted finalizes the job with its output artifacts. A non-positive
// score falls back to the default 0.9. Refuses to overwrite a terminal state.
func (j *Job) MarkCompleted(outputPath string, sizeBytes int64, generationTime, score float64) {
	if j.IsTerminal() {
		return
	}
	if score <= 0 {
		score = 0.9
	}
	now := time.Now().UTC()
	j.Status = StatusCompleted
	j.StageIndex = StageCount
	j.ProgressPercent = 100
	j.ProgressStage = "Completed"
	j.ProgressMessage = "Video generated"
	j.OutputPath = outputPath
	j.FileSizeBytes = sizeBytes
	j.GenerationTimeSeconds = generationTime
	j.QualityScore = score
	j.CompletedAt = &now
	j.LastHeartbeat = nil
	j.ErrorMessage = ""
}

// MarkFailed records the failure message verbatim and clears the heartbeat.
// Progress is deliberately left where the pipeline stopped so the last
// successful stage remains visible. Refuses to overwrite a terminal state.
func (j *Job) MarkFailed(message string) {
	if j.IsTerminal() {
		return
	}
	j.Status = StatusFailed
	j.ErrorMessage = message
	j.ProgressStage = "Failed"
	j.ProgressMessage = message
	j.LastHeartbeat = nil
}
