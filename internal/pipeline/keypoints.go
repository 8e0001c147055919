package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"loom/internal/config"
	"loom/internal/logging"
	"loom/internal/queue"
	"loom/internal/services"
	"loom/internal/services/generation"
	"loom/internal/stage"
)

const (
	minKeyPoints         = 5
	maxKeyPoints         = 7
	keyPointMaxRunes     = 200
	keyPointExcerptRunes = 12_000
)

// KeyPointExtraction asks the generation endpoint for the five to seven
// points a narrator must cover and clamps whatever comes back into that range.
type KeyPointExtraction struct {
	cfg    *config.Config
	gen    Generator
	logger *slog.Logger
}

func NewKeyPointExtraction(cfg *config.Config, gen Generator, logger *slog.Logger) *KeyPointExtraction {
	return &KeyPointExtraction{cfg: cfg, gen: gen, logger: logging.NewComponentLogger(logger, "keypoints")}
}

func (s *KeyPointExtraction) Prepare(ctx context.Context, job *queue.Job) error {
	job.BeginStage(stageIndexKeyPoints, stageNameKeyPoints, "Identifying key points")
	ws := WorkspaceFor(s.cfg, job)
	if _, err := os.Stat(ws.SourcePath()); err != nil {
		return services.Wrap(
			services.ErrValidation,
			"key points",
			"validate inputs",
			"Source corpus missing; extraction must complete first",
			err,
		)
	}
	return nil
}

func (s *KeyPointExtraction) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, s.logger)
	ws := WorkspaceFor(s.cfg, job)

	raw, err := os.ReadFile(ws.SourcePath())
	if err != nil {
		return services.Wrap(
			services.ErrResource,
			"key points",
			"read corpus",
			"Failed to read normalized source text",
			err,
		)
	}
	corpus := strings.TrimSpace(string(raw))
	if corpus == "" {
		return services.Wrap(
			services.ErrValidation,
			"key points",
			"validate inputs",
			"Source corpus is empty",
			nil,
		)
	}

	prompt := generation.Prompt{
		System: "You distill documents into the handful of points a video narrator must cover. Respond with JSON only.",
		User: fmt.Sprintf(
			"Title: %s\n\nDocument:\n%s\n\nExtract the %d to %d most important points as short complete sentences.\nRespond with JSON: {\"key_points\": [\"point\", ...]}",
			job.Title,
			excerpt(corpus, keyPointExcerptRunes),
			minKeyPoints,
			maxKeyPoints,
		),
		Temperature: 0.3,
		MaxTokens:   1024,
	}

	var payload struct {
		KeyPoints []string `json:"key_points"`
	}
	if err := s.gen.GenerateStructured(ctx, prompt, &payload); err != nil {
		return fmt.Errorf("key point extraction: %w", err)
	}

	points := clampKeyPoints(payload.KeyPoints, corpus)
	if len(points) == 0 {
		return services.Wrap(
			services.ErrExternal,
			"key points",
			"normalize output",
			"Generation returned no usable key points",
			nil,
		)
	}
	if len(points) < minKeyPoints {
		logger.Warn("key point shortfall after padding", logging.Int("count", len(points)))
	}

	if err := ws.saveKeyPoints(points); err != nil {
		return services.Wrap(
			services.ErrResource,
			"key points",
			"write artifact",
			"Failed to write key points artifact",
			err,
		)
	}
	logger.Info("extracted key points", logging.Int("count", len(points)))
	return nil
}

func (s *KeyPointExtraction) HealthCheck(ctx context.Context) stage.Health {
	return generatorHealth(stageNameKeyPoints, s.cfg)
}

// clampKeyPoints bounds model output to the 5..7 contract: points beyond
// seven are dropped, and a shortfall is padded with leading corpus sentences
// not already covered. A starved corpus can still come up short; callers log
// that instead of failing the stage.
func clampKeyPoints(candidates []string, corpus string) []string {
	points := cleanGeneratedLines(candidates, keyPointMaxRunes)
	if len(points) > maxKeyPoints {
		return points[:maxKeyPoints]
	}
	if len(points) >= minKeyPoints {
		return points
	}

	seen := make(map[string]struct{}, len(points))
	for _, point := range points {
		seen[strings.ToLower(point)] = struct{}{}
	}
	for _, sentence := range splitSentences(corpus) {
		if len(points) >= minKeyPoints {
			break
		}
		cleaned := excerpt(strings.Join(strings.Fields(sentence), " "), keyPointMaxRunes)
		if cleaned == "" {
			continue
		}
		key := strings.ToLower(cleaned)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		points = append(points, cleaned)
	}
	return points
}
