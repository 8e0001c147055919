package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"loom/internal/artifacts"
	"loom/internal/config"
	"loom/internal/profiles"
	"loom/internal/queue"
	"loom/internal/ratelimit"
	"loom/internal/services/ffmpeg"
	"loom/internal/services/generation"
	"loom/internal/services/tts"
	"loom/internal/stage"
)

// Stage positions in the fixed execution order. Progress percent is the
// completed stage index times ten.
const (
	stageIndexExtraction = iota + 1
	stageIndexKeyPoints
	stageIndexScript
	stageIndexNarration
	stageIndexAudio
	stageIndexConcepts
	stageIndexDescriptions
	stageIndexFrames
	stageIndexCompile
	stageIndexFinalize
)

// Progress labels shown to pollers while each stage runs.
const (
	stageNameExtraction   = "Extraction"
	stageNameKeyPoints    = "Key points"
	stageNameScript       = "Script generation"
	stageNameNarration    = "Narration adaptation"
	stageNameAudio        = "Audio synthesis"
	stageNameConcepts     = "Visual concepts"
	stageNameDescriptions = "Visual descriptions"
	stageNameFrames       = "Frame rendering"
	stageNameCompile      = "Compilation"
	stageNameFinalize     = "Finalization"
)

// Generator is the slice of the generation client the prompt-driven stages
// consume. The production implementation paces every call through the shared
// rate budget.
type Generator interface {
	Generate(ctx context.Context, prompt generation.Prompt) (string, error)
	GenerateStructured(ctx context.Context, prompt generation.Prompt, target any) error
}

// Dependencies bundles the external clients the stages are built around.
// Tests swap individual fields for fakes.
type Dependencies struct {
	Generator Generator
	TTS       tts.Client
	Encoder   ffmpeg.Client
	Catalog   *profiles.Catalog
	Uploader  artifacts.Uploader
	Budget    *ratelimit.Budget
}

// NewDependencies wires the production clients from configuration: one shared
// rate budget, the generation client paced through it, the speech and encoder
// CLIs, the profile catalog, and the artifact uploader.
func NewDependencies(cfg *config.Config, logger *slog.Logger) (Dependencies, error) {
	catalog, err := profiles.Load(cfg.Paths.ProfilesFile)
	if err != nil {
		return Dependencies{}, err
	}

	uploader, err := artifacts.NewUploader(cfg, logger)
	if err != nil {
		return Dependencies{}, err
	}

	budget := ratelimit.New(ratelimit.Config{
		RequestsPerMinute: cfg.Generation.RequestsPerMinute,
		DailyTokenLimit:   cfg.Generation.DailyTokenLimit,
		Policy:            cfg.Generation.TokenPolicy,
	}, ratelimit.WithLogger(logger))

	gen := generation.NewClient(generation.Config{
		APIKey:         cfg.Generation.APIKey,
		BaseURL:        cfg.Generation.BaseURL,
		Model:          cfg.Generation.Model,
		TimeoutSeconds: cfg.Generation.TimeoutSeconds,
	}, generation.WithBudget(budget))

	ttsOpts := []tts.Option{
		tts.WithBinary(cfg.TTSBinary()),
		tts.WithVoice(cfg.TTS.Voice),
		tts.WithSpeed(cfg.Video.ReadingSpeedWPM),
	}
	if cfg.TTS.TimeoutSeconds > 0 {
		ttsOpts = append(ttsOpts, tts.WithTimeout(time.Duration(cfg.TTS.TimeoutSeconds)*time.Second))
	}

	encoderOpts := []ffmpeg.Option{ffmpeg.WithBinary(cfg.FFmpegBinary())}
	if cfg.FFmpeg.TimeoutSeconds > 0 {
		encoderOpts = append(encoderOpts, ffmpeg.WithTimeout(time.Duration(cfg.FFmpeg.TimeoutSeconds)*time.Second))
	}

	return Dependencies{
		Generator: gen,
		TTS:       tts.NewCLI(ttsOpts...),
		Encoder:   ffmpeg.NewCLI(encoderOpts...),
		Catalog:   catalog,
		Uploader:  uploader,
		Budget:    budget,
	}, nil
}

// Definition pairs an ordered stage with the handler that runs it.
type Definition struct {
	Index   int
	Name    string
	Handler stage.Handler
}

// Stages assembles the ten pipeline stages in execution order.
func Stages(cfg *config.Config, store *queue.Store, logger *slog.Logger, deps Dependencies) []Definition {
	return []Definition{
		{stageIndexExtraction, stageNameExtraction, NewExtraction(cfg, store, logger)},
		{stageIndexKeyPoints, stageNameKeyPoints, NewKeyPointExtraction(cfg, deps.Generator, logger)},
		{stageIndexScript, stageNameScript, NewScriptGeneration(cfg, deps.Generator, deps.Catalog, logger)},
		{stageIndexNarration, stageNameNarration, NewNarrationAdaptation(cfg, deps.Generator, logger)},
		{stageIndexAudio, stageNameAudio, NewAudioSynthesis(cfg, deps.TTS, logger)},
		{stageIndexConcepts, stageNameConcepts, NewConceptExtraction(cfg, deps.Generator, logger)},
		{stageIndexDescriptions, stageNameDescriptions, NewVisualDescription(cfg, deps.Generator, deps.Catalog, logger)},
		{stageIndexFrames, stageNameFrames, NewFrameRendering(cfg, store, logger)},
		{stageIndexCompile, stageNameCompile, NewCompilation(cfg, deps.Encoder, logger)},
		{stageIndexFinalize, stageNameFinalize, NewFinalization(cfg, deps.Uploader, logger)},
	}
}

// generatorHealth is the shared health check for prompt-driven stages: they
// are usable exactly when an API key is configured.
func generatorHealth(name string, cfg *config.Config) stage.Health {
	if strings.TrimSpace(cfg.Generation.APIKey) == "" {
		return stage.Unhealthy(name, "generation api_key not configured")
	}
	return stage.Healthy(name)
}

// targetSecondsFor returns the requested runtime for a job, falling back to
// the configured default.
func targetSecondsFor(cfg *config.Config, job *queue.Job) int {
	if job.TargetDurationSeconds > 0 {
		return job.TargetDurationSeconds
	}
	return cfg.Video.DefaultDurationSeconds
}
