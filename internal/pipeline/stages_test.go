package pipeline

import (
	"context"
	"testing"

	"loom/internal/logging"
	"loom/internal/testsupport"
)

func TestStagesAssembleInPipelineOrder(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	deps := Dependencies{
		Generator: &fakeGenerator{},
		TTS:       &fakeTTS{},
		Encoder:   &fakeEncoder{},
		Catalog:   mustCatalog(t),
		Uploader:  &fakeUploader{},
	}

	defs := Stages(cfg, store, logging.NewNop(), deps)
	wantNames := []string{
		"Extraction",
		"Key points",
		"Script generation",
		"Narration adaptation",
		"Audio synthesis",
		"Visual concepts",
		"Visual descriptions",
		"Frame rendering",
		"Compilation",
		"Finalization",
	}
	if len(defs) != len(wantNames) {
		t.Fatalf("stage count = %d, want %d", len(defs), len(wantNames))
	}
	for i, def := range defs {
		if def.Index != i+1 {
			t.Errorf("stage %d has index %d", i, def.Index)
		}
		if def.Name != wantNames[i] {
			t.Errorf("stage %d name = %q, want %q", i, def.Name, wantNames[i])
		}
		if def.Handler == nil {
			t.Errorf("stage %d has no handler", i)
		}
	}
}

func TestGeneratorHealthRequiresAPIKey(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	if health := generatorHealth("Key points", cfg); !health.Ready {
		t.Fatalf("expected healthy with API key, got %+v", health)
	}

	cfg.Generation.APIKey = "   "
	health := generatorHealth("Key points", cfg)
	if health.Ready {
		t.Fatal("expected unhealthy without API key")
	}
	if health.Detail == "" {
		t.Fatal("unhealthy check should explain itself")
	}
}

func TestPromptStagesShareGeneratorHealth(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Generation.APIKey = ""

	keyPoints := NewKeyPointExtraction(cfg, &fakeGenerator{}, logging.NewNop())
	if health := keyPoints.HealthCheck(context.Background()); health.Ready {
		t.Fatal("key point stage should report unhealthy without API key")
	}
	script := NewScriptGeneration(cfg, &fakeGenerator{}, mustCatalog(t), logging.NewNop())
	if health := script.HealthCheck(context.Background()); health.Ready {
		t.Fatal("script stage should report unhealthy without API key")
	}
}
