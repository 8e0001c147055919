package pipeline

import (
	"context"
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

const scriptExcerptRunes = 6_000

// ScriptGeneration turns the key points into a full narration script sized to
// the job's target duration. The word budget assumes the configured reading
// speed, so a 300 second target at 150 wpm asks for roughly 750 words.
type ScriptGeneration struct {
	cfg     *config.Config
	gen     Generator
	catalog *profiles.Catalog
	logger  *slog.Logger
}

func NewScriptGeneration(cfg *config.Config, gen Generator, catalog *profiles.Catalog, logger *slog.Logger) *ScriptGeneration {
	return &ScriptGeneration{
		cfg:     cfg,
		gen:     gen,
		catalog: catalog,
		logger:  logging.NewComponentLogger(logger, "script"),
	}
}

func (s *ScriptGeneration) Prepare(ctx context.Context, job *queue.Job) error {
	job.BeginStage(stageIndexScript, stageNameScript, "Drafting narration script")
	ws := WorkspaceFor(s.cfg, job)
	if _, err := os.Stat(ws.KeyPointsPath()); err != nil {
		return services.Wrap(
			services.ErrValidation,
			"script generation",
			"validate inputs",
			"Key points missing; key point extraction must complete first",
			err,
		)
	}
	return nil
}

func (s *ScriptGeneration) Execute(ctx context.Context, job *queue.Job) error {
	logger := logging.WithContext(ctx, s.logger)
	ws := WorkspaceFor(s.cfg, job)

	keyPoints, err := ws.loadKeyPoints()
	if err != nil {
		return services.Wrap(
			services.ErrResource,
			"script generation",
			"read key points",
			"Failed to read key points artifact",
			err,
		)
	}
	corpus, err := os.ReadFile(ws.SourcePath())
	if err != nil {
		return services.Wrap(
			services.ErrResource,
			"script generation",
			"read corpus",
			"Failed to read normalized source text",
			err,
		)
	}

	profile := s.catalog.GetOrDefault(job.ChannelProfile)
	target := targetSecondsFor(s.cfg, job)
	wordBudget := target * s.cfg.Video.ReadingSpeedWPM / 60

	prompt := generation.Prompt{
		System:      s.systemPrompt(profile),
		User:        s.userPrompt(job, profile, keyPoints, string(corpus), wordBudget, target),
		Temperature: 0.7,
		MaxTokens:   maxTokensForWords(wordBudget),
	}
	script, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		return fmt.Errorf("script generation: %w", err)
	}
	script = strings.TrimSpace(script)
	if script == "" {
		return services.Wrap(
			services.ErrExternal,
			"script generation",
			"generate script",
			"Generation returned an empty script",
			nil,
		)
	}

	if err := os.WriteFile(ws.ScriptPath(), []byte(script+"\n"), 0o644); err != nil {
		return services.Wrap(
			services.ErrResource,
			"script generation",
			"write script",
			"Failed to write script; check staging_dir is writable",
			err,
		)
	}

	words := len(strings.Fields(script))
	logger.Info("generated script",
		logging.String("profile", profile.ID),
		logging.Int("target_seconds", target),
		logging.Int("word_budget", wordBudget),
		logging.Int("word_count", words),
	)
	return nil
}

func (s *ScriptGeneration) HealthCheck(ctx context.Context) stage.Health {
	return generatorHealth(stageNameScript, s.cfg)
}

func (s *ScriptGeneration) systemPrompt(profile profiles.Profile) string {
	var b strings.Builder
	b.WriteString("You write scripts for narrated videos. ")
	b.WriteString(fmt.Sprintf("Tone: %s. Pacing: %s.", profile.Tone, profile.Pacing))
	if hints := strings.TrimSpace(profile.PromptHints); hints != "" {
		b.WriteString(" ")
		b.WriteString(hints)
	}
	return b.String()
}

func (s *ScriptGeneration) userPrompt(job *queue.Job, profile profiles.Profile, keyPoints []string, corpus string, wordBudget, targetSeconds int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write the narration script for a video titled %q.\n\n", job.Title)
	b.WriteString("Cover these key points in order:\n")
	b.WriteString(bulletList(keyPoints))
	b.WriteString("\n\nSource material for reference:\n")
	b.WriteString(excerpt(corpus, scriptExcerptRunes))
	fmt.Fprintf(&b, "\n\nThe video runs about %d seconds; aim for %d words, staying within ten percent of that.\n", targetSeconds, wordBudget)
	b.WriteString("Write plain spoken prose only: no headings, no stage directions, no markup.")
	if custom := strings.TrimSpace(job.CustomPrompt); custom != "" {
		b.WriteString("\n\nAdditional instructions from the requester:\n")
		b.WriteString(custom)
	}
	return b.String()
}

// maxTokensForWords gives the model generous headroom over the word budget;
// narration prose runs near one token per word but punctuation and stray
// markup push it higher.
func maxTokensForWords(words int) int {
	tokens := words * 2
	if tokens < 1024 {
		tokens = 1024
	}
	return tokens
}
