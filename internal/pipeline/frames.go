package pipeline

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"math"
	"os"
	"time"

	"loom/internal/config"
	"loom/internal/logging"
	"loom/internal/queue"
	"loom/internal/render"
	"loom/internal/services"
	"loom/internal/stage"
)

const (
	// minFramesPerConcept keeps every segment on screen for at least one
	// second at 30fps even when the narration is much shorter than planned.
	minFramesPerConcept = 30

	framePersistInterval = 2 * time.Second
)

// FrameRendering draws the numbered PNG sequence the encoder consumes. Frame
// counts are derived, not guessed: fps times measured narration seconds,
// split evenly across concepts, floored at minFramesPerConcept. The stage
// holds the store so it can surface mid-render progress to pollers; a render
// of a ten minute video writes upward of twenty thousand frames.
type FrameRendering struct {
	cfg    *config.Config
	store  *queue.Store
	logger *slog.Logger
}

func NewFrameRendering(cfg *config.Config, store *queue.Store, logger *slog.Logger) *FrameRendering {
	return &FrameRendering{cfg: cfg, store: store, logger: logging.NewComponentLogger(logger, "frames")}
}

func (s *FrameRendering) Prepare(ctx context.Context, job *queue.Job) error {
	job.BeginStage(stageIndexFrames, stageNameFrames, "Rendering frames")
	ws := WorkspaceFor(s.cfg, job)
	if _, err := os.Stat(ws.ConceptsPath()); err != nil {
		return services.Wrap(
			services.ErrValidation,
			"frame rendering",
			"validate inputs",
			"Concepts missing; visual concept planning must complete first",
			err,
		)
	}
	if _, err := os.Stat(ws.AudioMeasurePath()); err != nil {
		return services.Wrap(
			services.ErrValidation,
			"frame rendering",
			"validate inputs",
			"Audio measurement missing; audio synthesis must complete first",
			err,
		)
	}
	return nil
}

func (s *FrameRendering) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, s.logger)
	ws := WorkspaceFor(s.cfg, job)

	concepts, err := ws.loadConcepts()
	if err != nil {
		return services.Wrap(
			services.ErrResource,
			"frame rendering",
			"read concepts",
			"Failed to read concepts artifact",
			err,
		)
	}
	if len(concepts) == 0 {
		return services.Wrap(
			services.ErrValidation,
			"frame rendering",
			"validate inputs",
			"Concepts artifact is empty",
			nil,
		)
	}
	measure, err := ws.loadAudioMeasure()
	if err != nil {
		return services.Wrap(
			services.ErrResource,
			"frame rendering",
			"read measurement",
			"Failed to read audio measurement artifact",
			err,
		)
	}

	width, height := s.cfg.Video.Width, s.cfg.Video.Height
	if width <= 0 {
		width = 1280
	}
	if height <= 0 {
		height = 720
	}
	fps := s.cfg.Video.FPS
	perConcept := frameCountPerConcept(measure.DurationSeconds, len(concepts), fps)
	total := perConcept * len(concepts)

	renderer := render.New(width, height)
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	written := 0
	lastPersist := time.Now()
	for i, c := range concepts {
		for f := 0; f < perConcept; f++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			progress := 0.0
			if perConcept > 1 {
				progress = float64(f) / float64(perConcept-1)
			}
			global := i*perConcept + f
			renderer.Draw(dst, render.FrameSpec{
				Title:        c.Title,
				ConceptIndex: i + 1,
				ConceptCount: len(concepts),
				Progress:     progress,
				GlobalIndex:  global,
				GlobalTotal:  total,
			})
			if err := render.WritePNG(ws.FramePath(global), dst); err != nil {
				return services.Wrap(
					services.ErrResource,
					"frame rendering",
					"write frame",
					"Failed to write frame image; check free space under staging_dir",
					err,
				)
			}
			written++
			if time.Since(lastPersist) >= framePersistInterval {
				lastPersist = time.Now()
				job.ProgressMessage = fmt.Sprintf("Rendered %d/%d frames", written, total)
				if err := s.store.UpdateProgress(ctx, job); err != nil {
					logger.Warn("progress update failed", logging.Error(err))
				}
			}
		}
	}

	logger.Info("rendered frame sequence",
		logging.Int("concepts", len(concepts)),
		logging.Int("frames_per_concept", perConcept),
		logging.Int("frames", written),
		logging.Int("fps", fps),
	)
	return nil
}

func (s *FrameRendering) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy(stageNameFrames)
}

// frameCountPerConcept divides the narration evenly across concepts at the
// configured frame rate, flooring at minFramesPerConcept per segment.
func frameCountPerConcept(durationSeconds float64, conceptCount, fps int) int {
	if conceptCount <= 0 {
		return minFramesPerConcept
	}
	frames := int(math.Floor(float64(fps) * durationSeconds / float64(conceptCount)))
	if frames < minFramesPerConcept {
		frames = minFramesPerConcept
	}
	return frames
}
