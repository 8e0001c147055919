package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"loom/internal/config"
	"loom/internal/logging"
	"loom/internal/profiles"
	"loom/internal/queue"
	"loom/internal/services"
	"loom/internal/services/generation"
	"loom/internal/stage"
)

const descriptionMaxRunes = 300

// VisualDescription fills in a short description for each concept. This is
// the only best-effort stage: a failed call degrades that one concept to its
// bare title instead of failing the job, because descriptions only feed the
// rendered slide text. Cancellation still aborts immediately.
type VisualDescription struct {
	cfg     *config.Config
	gen     Generator
	catalog *profiles.Catalog
	logger  *slog.Logger
}

func NewVisualDescription(cfg *config.Config, gen Generator, catalog *profiles.Catalog, logger *slog.Logger) *VisualDescription {
	return &VisualDescription{
		cfg:     cfg,
		gen:     gen,
		catalog: catalog,
		logger:  logging.NewComponentLogger(logger, "descriptions"),
	}
}

func (s *VisualDescription) Prepare(ctx context.Context, job *queue.Job) error {
	job.BeginStage(stageIndexDescriptions, stageNameDescriptions, "Describing visual concepts")
	ws := WorkspaceFor(s.cfg, job)
	if _, err := os.Stat(ws.ConceptsPath()); err != nil {
		return services.Wrap(
			services.ErrValidation,
			"visual descriptions",
			"validate inputs",
			"Concepts missing; visual concept planning must complete first",
			err,
		)
	}
	return nil
}

func (s *VisualDescription) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, s.logger)
	ws := WorkspaceFor(s.cfg, job)

	concepts, err := ws.loadConcepts()
	if err != nil {
		return services.Wrap(
			services.ErrResource,
			"visual descriptions",
			"read concepts",
			"Failed to read concepts artifact",
			err,
		)
	}

	profile := s.catalog.GetOrDefault(job.ChannelProfile)
	degraded := 0
	for i := range concepts {
		if err := ctx.Err(); err != nil {
			return err
		}
		prompt := generation.Prompt{
			System: fmt.Sprintf("You describe single still frames for a narrated video. Visual style: %s.", profile.VisualStyle),
			User: fmt.Sprintf(
				"The video is titled %q. Describe the slide for segment %d of %d, titled %q, in one or two plain sentences. Output the description only.",
				job.Title, i+1, len(concepts), concepts[i].Title,
			),
			Temperature: 0.6,
			MaxTokens:   256,
		}
		description, err := s.gen.Generate(ctx, prompt)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			logger.Warn("visual description failed, keeping bare title",
				logging.Int("concept", i+1),
				logging.Error(err),
			)
			concepts[i].Description = ""
			degraded++
			continue
		}
		concepts[i].Description = excerpt(strings.Join(strings.Fields(description), " "), descriptionMaxRunes)
	}

	if err := ws.saveConcepts(concepts); err != nil {
		return services.Wrap(
			services.ErrResource,
			"visual descriptions",
			"write artifact",
			"Failed to write concepts artifact",
			err,
		)
	}

	logger.Info("described visual concepts",
		logging.Int("described", len(concepts)-degraded),
		logging.Int("degraded", degraded),
	)
	return nil
}

func (s *VisualDescription) HealthCheck(ctx context.Context) stage.Health {
	return generatorHealth(stageNameDescriptions, s.cfg)
}
