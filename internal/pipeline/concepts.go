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
	conceptTitleMaxRunes     = 80
	conceptNarrationExcerpts = 4_000
)

// ConceptExtraction decides how many visual segments the video gets and what
// each one is titled. The count is a step function of the measured narration
// length, and the output is always exactly that count: model output is
// truncated or padded from the key points so downstream stages never have to
// handle a variable segment count.
type ConceptExtraction struct {
	cfg    *config.Config
	gen    Generator
	logger *slog.Logger
}

func NewConceptExtraction(cfg *config.Config, gen Generator, logger *slog.Logger) *ConceptExtraction {
	return &ConceptExtraction{cfg: cfg, gen: gen, logger: logging.NewComponentLogger(logger, "concepts")}
}

func (s *ConceptExtraction) Prepare(ctx context.Context, job *queue.Job) error {
	job.BeginStage(stageIndexConcepts, stageNameConcepts, "Planning visual concepts")
	ws := WorkspaceFor(s.cfg, job)
	if _, err := os.Stat(ws.AudioMeasurePath()); err != nil {
		return services.Wrap(
			services.ErrValidation,
			"visual concepts",
			"validate inputs",
			"Audio measurement missing; audio synthesis must complete first",
			err,
		)
	}
	return nil
}

func (s *ConceptExtraction) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, s.logger)
	ws := WorkspaceFor(s.cfg, job)

	measure, err := ws.loadAudioMeasure()
	if err != nil {
		return services.Wrap(
			services.ErrResource,
			"visual concepts",
			"read measurement",
			"Failed to read audio measurement artifact",
			err,
		)
	}
	keyPoints, err := ws.loadKeyPoints()
	if err != nil {
		return services.Wrap(
			services.ErrResource,
			"visual concepts",
			"read key points",
			"Failed to read key points artifact",
			err,
		)
	}
	narration, err := os.ReadFile(ws.NarrationPath())
	if err != nil {
		return services.Wrap(
			services.ErrResource,
			"visual concepts",
			"read narration",
			"Failed to read narration artifact",
			err,
		)
	}

	want := conceptCountFor(measure.DurationSeconds)
	prompt := generation.Prompt{
		System: "You plan the visual segments of a narrated video. Respond with JSON only.",
		User: fmt.Sprintf(
			"The video is titled %q and its narration runs %.0f seconds.\n\nKey points:\n%s\n\nNarration:\n%s\n\nName exactly %d visual segments that follow the narration in order. Each title is at most eight words.\nRespond with JSON: {\"titles\": [\"title\", ...]}",
			job.Title,
			measure.DurationSeconds,
			bulletList(keyPoints),
			excerpt(string(narration), conceptNarrationExcerpts),
			want,
		),
		Temperature: 0.5,
		MaxTokens:   1024,
	}
	var payload struct {
		Titles []string `json:"titles"`
	}
	if err := s.gen.GenerateStructured(ctx, prompt, &payload); err != nil {
		return fmt.Errorf("visual concepts: %w", err)
	}

	titles := normalizeConceptTitles(payload.Titles, keyPoints, job.Title, want)
	concepts := make([]concept, len(titles))
	for i, title := range titles {
		concepts[i] = concept{Title: title}
	}
	if err := ws.saveConcepts(concepts); err != nil {
		return services.Wrap(
			services.ErrResource,
			"visual concepts",
			"write artifact",
			"Failed to write concepts artifact",
			err,
		)
	}

	logger.Info("planned visual concepts",
		logging.Int("count", want),
		logging.Float64("audio_seconds", measure.DurationSeconds),
	)
	return nil
}

func (s *ConceptExtraction) HealthCheck(ctx context.Context) stage.Health {
	return generatorHealth(stageNameConcepts, s.cfg)
}

// conceptCountFor maps measured narration length to a segment count. The
// steps keep segments between roughly fifteen and thirty seconds each.
func conceptCountFor(durationSeconds float64) int {
	switch {
	case durationSeconds < 90:
		return 5
	case durationSeconds < 180:
		return 7
	case durationSeconds < 300:
		return 9
	default:
		return 12
	}
}

// normalizeConceptTitles forces the model output to exactly want titles:
// extras are dropped, shortfalls are padded first from unused key points and
// then with numbered fillers derived from the job title.
func normalizeConceptTitles(candidates, keyPoints []string, jobTitle string, want int) []string {
	titles := cleanGeneratedLines(candidates, conceptTitleMaxRunes)
	if len(titles) > want {
		return titles[:want]
	}

	seen := make(map[string]struct{}, len(titles))
	for _, title := range titles {
		seen[strings.ToLower(title)] = struct{}{}
	}
	for _, point := range keyPoints {
		if len(titles) >= want {
			break
		}
		cleaned := excerpt(strings.Join(strings.Fields(point), " "), conceptTitleMaxRunes)
		if cleaned == "" {
			continue
		}
		key := strings.ToLower(cleaned)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		titles = append(titles, cleaned)
	}
	for k := 1; len(titles) < want; k++ {
		titles = append(titles, fmt.Sprintf("%s (part %d)", jobTitle, k))
	}
	return titles
}
