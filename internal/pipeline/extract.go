package pipeline

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"loom/internal/config"
	"loom/internal/logging"
	"loom/internal/queue"
	"loom/internal/services"
	"loom/internal/stage"
)

// maxCorpusRunes caps the normalized corpus so downstream prompts stay within
// the generation endpoint's context budget.
const maxCorpusRunes = 100_000

// Extraction concatenates and normalizes the job's source documents into the
// single corpus the prompt stages read. It makes no external calls.
type Extraction struct {
	cfg    *config.Config
	store  *queue.Store
	logger *slog.Logger
}

func NewExtraction(cfg *config.Config, store *queue.Store, logger *slog.Logger) *Extraction {
	return &Extraction{cfg: cfg, store: store, logger: logging.NewComponentLogger(logger, "extraction")}
}

func (s *Extraction) Prepare(ctx context.Context, job *queue.Job) error {
	job.BeginStage(stageIndexExtraction, stageNameExtraction, "Collecting source text")
	ws := WorkspaceFor(s.cfg, job)
	if err := ws.Ensure(); err != nil {
		return services.Wrap(
			services.ErrResource,
			"extraction",
			"prepare workspace",
			"Failed to create staging directories; check staging_dir is writable",
			err,
		)
	}
	return nil
}

func (s *Extraction) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, s.logger)
	ws := WorkspaceFor(s.cfg, job)

	sources, err := s.store.Sources(ctx, job.ID)
	if err != nil {
		return services.Wrap(
			services.ErrResource,
			"extraction",
			"load sources",
			"Failed to read job sources from the queue database",
			err,
		)
	}
	if len(sources) == 0 {
		return services.Wrap(
			services.ErrValidation,
			"extraction",
			"validate inputs",
			"Job has no source documents",
			nil,
		)
	}

	sections := make([]string, 0, len(sources))
	for _, source := range sources {
		if normalized := normalizeSourceText(source.Content); normalized != "" {
			sections = append(sections, normalized)
		}
	}
	corpus := strings.Join(sections, "\n\n")
	if corpus == "" {
		return services.Wrap(
			services.ErrValidation,
			"extraction",
			"normalize corpus",
			"Source documents contain no usable text",
			nil,
		)
	}

	truncated := false
	if runes := []rune(corpus); len(runes) > maxCorpusRunes {
		corpus = strings.TrimSpace(string(runes[:maxCorpusRunes]))
		truncated = true
	}

	if err := os.WriteFile(ws.SourcePath(), []byte(corpus+"\n"), 0o644); err != nil {
		return services.Wrap(
			services.ErrResource,
			"extraction",
			"write corpus",
			"Failed to write normalized source text",
			err,
		)
	}

	logger.Info("extracted source corpus",
		logging.Int("sources", len(sources)),
		logging.Int("corpus_chars", len(corpus)),
		logging.Bool("truncated", truncated),
	)
	return nil
}

func (s *Extraction) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy(stageNameExtraction)
}

// normalizeSourceText collapses horizontal whitespace runs within lines and
// squeezes runs of blank lines down to a single paragraph break.
func normalizeSourceText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	var b strings.Builder
	blankRun := 0
	for _, line := range strings.Split(text, "\n") {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			blankRun++
			continue
		}
		if b.Len() > 0 {
			if blankRun > 0 {
				b.WriteString("\n\n")
			} else {
				b.WriteString("\n")
			}
		}
		blankRun = 0
		b.WriteString(line)
	}
	return b.String()
}
