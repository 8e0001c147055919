package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"

	"loom/internal/config"
	"loom/internal/logging"
	"loom/internal/queue"
	"loom/internal/services"
	"loom/internal/services/ffmpeg"
	"loom/internal/stage"
)

// Compilation runs the two encoder passes: frames to a silent H.264 video,
// then the narration muxed in. The silent intermediate is removed only after
// a successful mux; the frame sequence is kept so a failed job can be
// inspected or re-encoded by hand.
type Compilation struct {
	cfg     *config.Config
	encoder ffmpeg.Client
	logger  *slog.Logger
}

func NewCompilation(cfg *config.Config, encoder ffmpeg.Client, logger *slog.Logger) *Compilation {
	return &Compilation{cfg: cfg, encoder: encoder, logger: logging.NewComponentLogger(logger, "compile")}
}

func (s *Compilation) Prepare(ctx context.Context, job *queue.Job) error {
	job.BeginStage(stageIndexCompile, stageNameCompile, "Encoding video")
	ws := WorkspaceFor(s.cfg, job)
	if _, err := os.Stat(ws.FramePath(0)); err != nil {
		return services.Wrap(
			services.ErrValidation,
			"compilation",
			"validate inputs",
			"Frame sequence missing; frame rendering must complete first",
			err,
		)
	}
	if _, err := os.Stat(ws.AudioPath()); err != nil {
		return services.Wrap(
			services.ErrValidation,
			"compilation",
			"validate inputs",
			"Narration audio missing; audio synthesis must complete first",
			err,
		)
	}
	return nil
}

func (s *Compilation) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, s.logger)
	ws := WorkspaceFor(s.cfg, job)

	measure, err := ws.loadAudioMeasure()
	if err != nil {
		return services.Wrap(
			services.ErrResource,
			"compilation",
			"read measurement",
			"Failed to read audio measurement artifact",
			err,
		)
	}
	crf := crfForDuration(measure.DurationSeconds)

	err = s.encoder.CompileFrames(ctx, ffmpeg.CompileRequest{
		FramePattern: ws.FramePattern(),
		FPS:          s.cfg.Video.FPS,
		CRF:          crf,
		OutputPath:   ws.SilentVideoPath(),
	})
	if err != nil {
		return s.wrapEncodeError("compile frames", "Encoder failed on the frame sequence; check ffmpeg.binary and free disk space", err)
	}

	err = s.encoder.MuxAudio(ctx, ffmpeg.MuxRequest{
		VideoPath:  ws.SilentVideoPath(),
		AudioPath:  ws.AudioPath(),
		OutputPath: ws.FinalVideoPath(),
	})
	if err != nil {
		return s.wrapEncodeError("mux audio", "Encoder failed muxing narration into the video", err)
	}

	if err := os.Remove(ws.SilentVideoPath()); err != nil {
		logger.Warn("could not remove silent intermediate", logging.Error(err))
	}

	info, err := os.Stat(ws.FinalVideoPath())
	if err != nil || info.Size() == 0 {
		return services.Wrap(
			services.ErrResource,
			"compilation",
			"verify output",
			"Final video is missing or empty after encoding",
			err,
		)
	}

	logger.Info("compiled video",
		logging.Float64("duration_seconds", measure.DurationSeconds),
		logging.Int("crf", crf),
		logging.Int64("size_bytes", info.Size()),
	)
	return nil
}

func (s *Compilation) HealthCheck(ctx context.Context) stage.Health {
	if _, err := exec.LookPath(s.cfg.FFmpegBinary()); err != nil {
		return stage.Unhealthy(stageNameCompile, "ffmpeg binary not found in PATH")
	}
	return stage.Healthy(stageNameCompile)
}

func (s *Compilation) wrapEncodeError(operation, hint string, err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return services.Wrap(
			services.ErrTimeout,
			"compilation",
			operation,
			"Encoding timed out; raise ffmpeg.timeout_seconds",
			err,
		)
	default:
		// An ffmpeg exit or disk fault during encoding is a resource
		// problem on this host, not an upstream service failure.
		return services.Wrap(services.ErrResource, "compilation", operation, hint, err)
	}
}

// crfForDuration trades quality for size as videos get longer. Short clips
// keep near-transparent quality; long ones accept a visibly cheaper encode to
// hold file sizes down.
func crfForDuration(durationSeconds float64) int {
	switch {
	case durationSeconds <= 120:
		return 23
	case durationSeconds <= 300:
		return 26
	default:
		return 28
	}
}
