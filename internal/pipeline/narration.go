package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"loom/internal/config"
	"loom/internal/logging"
	"loom/internal/queue"
	"loom/internal/services"
	"loom/internal/services/generation"
	"loom/internal/stage"
)

var (
	bracketNotePattern = regexp.MustCompile(`\[[^\]]*\]`)
	parenNotePattern   = regexp.MustCompile(`\([^)]*\)`)
	headingPattern     = regexp.MustCompile(`(?m)^#{1,6}\s*`)
	emphasisPattern    = regexp.MustCompile("[*_`]+")
)

// NarrationAdaptation rewrites the script for the ear and then strips anything
// a speech engine would read aloud by mistake. The mechanical cleanup runs
// unconditionally because models ignore formatting instructions often enough.
type NarrationAdaptation struct {
	cfg    *config.Config
	gen    Generator
	logger *slog.Logger
}

func NewNarrationAdaptation(cfg *config.Config, gen Generator, logger *slog.Logger) *NarrationAdaptation {
	return &NarrationAdaptation{cfg: cfg, gen: gen, logger: logging.NewComponentLogger(logger, "narration")}
}

func (s *NarrationAdaptation) Prepare(ctx context.Context, job *queue.Job) error {
	job.BeginStage(stageIndexNarration, stageNameNarration, "Adapting script for speech")
	ws := WorkspaceFor(s.cfg, job)
	if _, err := os.Stat(ws.ScriptPath()); err != nil {
		return services.Wrap(
			services.ErrValidation,
			"narration adaptation",
			"validate inputs",
			"Script missing; script generation must complete first",
			err,
		)
	}
	return nil
}

func (s *NarrationAdaptation) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, s.logger)
	ws := WorkspaceFor(s.cfg, job)

	raw, err := os.ReadFile(ws.ScriptPath())
	if err != nil {
		return services.Wrap(
			services.ErrResource,
			"narration adaptation",
			"read script",
			"Failed to read script artifact",
			err,
		)
	}
	script := strings.TrimSpace(string(raw))
	if script == "" {
		return services.Wrap(
			services.ErrValidation,
			"narration adaptation",
			"validate inputs",
			"Script artifact is empty",
			nil,
		)
	}

	prompt := generation.Prompt{
		System: "You adapt written scripts into text read aloud by a speech synthesizer. Spell out numbers and abbreviations, break up long sentences, and remove anything that is not spoken words.",
		User: fmt.Sprintf(
			"Rewrite this script as pure narration text. Output only the words to be spoken, with normal punctuation and paragraph breaks.\n\n%s",
			script,
		),
		Temperature: 0.4,
		MaxTokens:   maxTokensForWords(len(strings.Fields(script))),
	}
	adapted, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		return fmt.Errorf("narration adaptation: %w", err)
	}

	narration := sanitizeNarration(adapted)
	if narration == "" {
		return services.Wrap(
			services.ErrExternal,
			"narration adaptation",
			"sanitize narration",
			"Narration was empty after removing markup",
			nil,
		)
	}

	if err := os.WriteFile(ws.NarrationPath(), []byte(narration+"\n"), 0o644); err != nil {
		return services.Wrap(
			services.ErrResource,
			"narration adaptation",
			"write narration",
			"Failed to write narration; check staging_dir is writable",
			err,
		)
	}

	logger.Info("adapted narration",
		logging.Int("script_words", len(strings.Fields(script))),
		logging.Int("narration_words", len(strings.Fields(narration))),
	)
	return nil
}

func (s *NarrationAdaptation) HealthCheck(ctx context.Context) stage.Health {
	return generatorHealth(stageNameNarration, s.cfg)
}

// sanitizeNarration strips the markup a speech engine would otherwise
// vocalize: bracketed and parenthesized asides, markdown headings, list
// markers, and emphasis runs. Whitespace is collapsed and blank-line runs
// become single paragraph breaks.
func sanitizeNarration(text string) string {
	text = bracketNotePattern.ReplaceAllString(text, " ")
	text = parenNotePattern.ReplaceAllString(text, " ")
	text = headingPattern.ReplaceAllString(text, "")
	text = emphasisPattern.ReplaceAllString(text, "")

	var paragraphs []string
	var current []string
	flush := func() {
		if len(current) > 0 {
			paragraphs = append(paragraphs, strings.Join(current, " "))
			current = nil
		}
	}
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		line = stripListMarker(line)
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()
	return strings.Join(paragraphs, "\n\n")
}
