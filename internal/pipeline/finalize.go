package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"loom/internal/artifacts"
	"loom/internal/config"
	"loom/internal/fileutil"
	"loom/internal/logging"
	"loom/internal/queue"
	"loom/internal/services"
	"loom/internal/stage"
	"loom/internal/textutil"
)

// videoMetadata is the sidecar summary written next to the workspace
// artifacts and shipped with the video on upload.
type videoMetadata struct {
	JobID                 string  `json:"job_id"`
	Title                 string  `json:"title"`
	ChannelProfile        string  `json:"channel_profile"`
	SourceCount           int     `json:"source_count"`
	SourceBytes           int64   `json:"source_bytes"`
	KeyPointCount         int     `json:"key_point_count"`
	ScriptBytes           int64   `json:"script_bytes"`
	NarrationBytes        int64   `json:"narration_bytes"`
	AudioDurationSeconds  float64 `json:"audio_duration_seconds"`
	AudioBytes            int64   `json:"audio_bytes"`
	ConceptCount          int     `json:"concept_count"`
	FrameCount            int     `json:"frame_count"`
	VideoBytes            int64   `json:"video_bytes"`
	OutputPath            string  `json:"output_path"`
	GenerationTimeSeconds float64 `json:"generation_time_seconds"`
	CompletedAt           string  `json:"completed_at"`
}

// Finalization moves the finished video into the output directory, writes the
// metadata sidecar, and marks the job completed. The optional artifact upload
// runs last and never fails the job: by then the video exists locally and
// re-running the whole pipeline to retry an upload would be absurd.
type Finalization struct {
	cfg      *config.Config
	uploader artifacts.Uploader
	logger   *slog.Logger
}

func NewFinalization(cfg *config.Config, uploader artifacts.Uploader, logger *slog.Logger) *Finalization {
	return &Finalization{cfg: cfg, uploader: uploader, logger: logging.NewComponentLogger(logger, "finalize")}
}

func (s *Finalization) Prepare(ctx context.Context, job *queue.Job) error {
	job.BeginStage(stageIndexFinalize, stageNameFinalize, "Publishing output")
	ws := WorkspaceFor(s.cfg, job)
	if _, err := os.Stat(ws.FinalVideoPath()); err != nil {
		return services.Wrap(
			services.ErrValidation,
			"finalization",
			"validate inputs",
			"Final video missing; compilation must complete first",
			err,
		)
	}
	return nil
}

func (s *Finalization) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, s.logger)
	ws := WorkspaceFor(s.cfg, job)

	if err := os.MkdirAll(s.cfg.Paths.OutputDir, 0o755); err != nil {
		return services.Wrap(
			services.ErrResource,
			"finalization",
			"prepare output dir",
			"Failed to create output_dir; check it is writable",
			err,
		)
	}
	outputPath := filepath.Join(s.cfg.Paths.OutputDir, outputFileName(job))
	if err := moveFile(ws.FinalVideoPath(), outputPath); err != nil {
		return services.Wrap(
			services.ErrResource,
			"finalization",
			"move video",
			"Failed to move final video into output_dir",
			err,
		)
	}
	info, err := os.Stat(outputPath)
	if err != nil {
		return services.Wrap(
			services.ErrResource,
			"finalization",
			"verify output",
			"Moved video is not readable at its output path",
			err,
		)
	}

	completedAt := time.Now().UTC()
	meta := s.collectMetadata(ws, job, outputPath, info.Size(), completedAt)
	if err := writeJSONArtifact(ws.MetadataPath(), meta); err != nil {
		return services.Wrap(
			services.ErrResource,
			"finalization",
			"write metadata",
			"Failed to write metadata sidecar",
			err,
		)
	}

	job.MarkCompleted(outputPath, info.Size(), meta.GenerationTimeSeconds, s.cfg.Video.QualityScore)

	if s.uploader != nil && s.uploader.Enabled() {
		if err := s.uploader.Upload(ctx, job.ID, outputPath, ws.MetadataPath()); err != nil {
			logger.Warn("artifact upload failed, video is still available locally", logging.Error(err))
		}
	}

	logger.Info("published video",
		logging.String("output_path", outputPath),
		logging.Int64("size_bytes", info.Size()),
		logging.Float64("generation_seconds", meta.GenerationTimeSeconds),
	)
	return nil
}

func (s *Finalization) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy(stageNameFinalize)
}

// collectMetadata gathers per-artifact sizes from the workspace. Any artifact
// that cannot be read reports zero rather than failing the job this late.
func (s *Finalization) collectMetadata(ws Workspace, job *queue.Job, outputPath string, videoBytes int64, completedAt time.Time) videoMetadata {
	meta := videoMetadata{
		JobID:                 job.ID,
		Title:                 job.Title,
		ChannelProfile:        job.ChannelProfile,
		SourceCount:           job.SourceCount,
		VideoBytes:            videoBytes,
		OutputPath:            outputPath,
		GenerationTimeSeconds: generationSeconds(job, completedAt),
		CompletedAt:           completedAt.Format(time.RFC3339),
	}
	meta.SourceBytes = fileSize(ws.SourcePath())
	meta.ScriptBytes = fileSize(ws.ScriptPath())
	meta.NarrationBytes = fileSize(ws.NarrationPath())
	if points, err := ws.loadKeyPoints(); err == nil {
		meta.KeyPointCount = len(points)
	}
	if measure, err := ws.loadAudioMeasure(); err == nil {
		meta.AudioDurationSeconds = measure.DurationSeconds
		meta.AudioBytes = measure.SizeBytes
	}
	if concepts, err := ws.loadConcepts(); err == nil {
		meta.ConceptCount = len(concepts)
	}
	if frames, err := ws.FrameCount(); err == nil {
		meta.FrameCount = frames
	}
	return meta
}

func generationSeconds(job *queue.Job, completedAt time.Time) float64 {
	start := job.CreatedAt
	if job.StartedAt != nil {
		start = *job.StartedAt
	}
	if start.IsZero() || completedAt.Before(start) {
		return 0
	}
	return completedAt.Sub(start).Seconds()
}

// outputFileName is the sanitized title plus a short job id suffix, so two
// jobs with the same title never clobber each other in output_dir.
func outputFileName(job *queue.Job) string {
	id := job.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("%s-%s.mp4", textutil.SanitizeToken(job.Title), id)
}

// moveFile renames when possible and falls back to a verified copy plus
// remove for cross-device moves, since staging_dir and output_dir may sit on
// different filesystems.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := fileutil.CopyFileVerified(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

func fileSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}
