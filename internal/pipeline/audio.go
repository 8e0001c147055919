package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"loom/internal/config"
	"loom/internal/logging"
	"loom/internal/queue"
	"loom/internal/services"
	"loom/internal/services/tts"
	"loom/internal/stage"
)

// AudioSynthesis renders the narration to a waveform and measures it. The
// measured duration is the pipeline's clock from here on: concept counts,
// frame counts, and the final video length all derive from it rather than
// from the requested target.
type AudioSynthesis struct {
	cfg    *config.Config
	tts    tts.Client
	logger *slog.Logger
}

func NewAudioSynthesis(cfg *config.Config, client tts.Client, logger *slog.Logger) *AudioSynthesis {
	return &AudioSynthesis{cfg: cfg, tts: client, logger: logging.NewComponentLogger(logger, "audio")}
}

func (s *AudioSynthesis) Prepare(ctx context.Context, job *queue.Job) error {
	job.BeginStage(stageIndexAudio, stageNameAudio, "Synthesizing narration audio")
	ws := WorkspaceFor(s.cfg, job)
	if _, err := os.Stat(ws.NarrationPath()); err != nil {
		return services.Wrap(
			services.ErrValidation,
			"audio synthesis",
			"validate inputs",
			"Narration missing; narration adaptation must complete first",
			err,
		)
	}
	return nil
}

func (s *AudioSynthesis) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, s.logger)
	ws := WorkspaceFor(s.cfg, job)

	raw, err := os.ReadFile(ws.NarrationPath())
	if err != nil {
		return services.Wrap(
			services.ErrResource,
			"audio synthesis",
			"read narration",
			"Failed to read narration artifact",
			err,
		)
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return services.Wrap(
			services.ErrValidation,
			"audio synthesis",
			"validate inputs",
			"Narration artifact is empty",
			nil,
		)
	}

	if err := s.tts.Synthesize(ctx, text, ws.AudioPath()); err != nil {
		switch {
		case errors.Is(err, context.Canceled):
			return err
		case errors.Is(err, context.DeadlineExceeded):
			return services.Wrap(
				services.ErrTimeout,
				"audio synthesis",
				"synthesize narration",
				"Speech synthesis timed out; raise tts.timeout_seconds or shorten the target duration",
				err,
			)
		default:
			return services.Wrap(
				services.ErrExternal,
				"audio synthesis",
				"synthesize narration",
				"Speech engine failed; check tts.binary and the configured voice",
				err,
			)
		}
	}

	probe, err := audioProbe(ctx, s.cfg.FFprobeBinary(), ws.AudioPath())
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return services.Wrap(
			services.ErrExternal,
			"audio synthesis",
			"probe waveform",
			"Could not measure narration duration; the synthesized file may be corrupt",
			err,
		)
	}
	duration := probe.DurationSeconds()
	if duration <= 0 {
		return services.Wrap(
			services.ErrExternal,
			"audio synthesis",
			"probe waveform",
			"Synthesized audio reports zero duration",
			nil,
		)
	}
	info, err := os.Stat(ws.AudioPath())
	if err != nil {
		return services.Wrap(
			services.ErrResource,
			"audio synthesis",
			"stat waveform",
			"Synthesized audio file disappeared after probing",
			err,
		)
	}

	measure := audioMeasure{DurationSeconds: duration, SizeBytes: info.Size()}
	for _, stream := range probe.Streams {
		if stream.CodecType == "audio" {
			measure.SampleRate = stream.SampleRate
			measure.Channels = stream.Channels
			break
		}
	}
	if err := ws.saveAudioMeasure(measure); err != nil {
		return services.Wrap(
			services.ErrResource,
			"audio synthesis",
			"write measurement",
			"Failed to write audio measurement artifact",
			err,
		)
	}

	logger.Info("synthesized narration audio",
		logging.Float64("duration_seconds", duration),
		logging.Int64("size_bytes", info.Size()),
		logging.Int("target_seconds", targetSecondsFor(s.cfg, job)),
	)
	return nil
}

func (s *AudioSynthesis) HealthCheck(ctx context.Context) stage.Health {
	if _, err := exec.LookPath(s.cfg.TTSBinary()); err != nil {
		return stage.Unhealthy(stageNameAudio, "tts binary not found in PATH")
	}
	return stage.Healthy(stageNameAudio)
}
