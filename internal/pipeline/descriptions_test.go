package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"loom/internal/logging"
	"loom/internal/profiles"
	"loom/internal/services/generation"
	"loom/internal/testsupport"
)

func mustCatalog(t *testing.T) *profiles.Catalog {
	t.Helper()
	catalog, err := profiles.Default()
	if err != nil {
		t.Fatalf("profiles.Default: %v", err)
	}
	return catalog
}

func TestDescriptionsDegradePerConceptOnFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	job := testJob("Degraded")
	ws := newWorkspace(t, cfg, job)
	if err := ws.saveConcepts([]concept{{Title: "One"}, {Title: "Two"}, {Title: "Three"}}); err != nil {
		t.Fatalf("saveConcepts: %v", err)
	}

	calls := 0
	gen := &fakeGenerator{
		generateFn: func(ctx context.Context, prompt generation.Prompt) (string, error) {
			calls++
			if calls == 2 {
				return "", errors.New("model overloaded")
			}
			return "A  clean   description.", nil
		},
	}
	description := NewVisualDescription(cfg, gen, mustCatalog(t), logging.NewNop())
	if err := description.Prepare(context.Background(), job); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := description.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute should degrade, not fail: %v", err)
	}

	concepts, err := ws.loadConcepts()
	if err != nil {
		t.Fatalf("loadConcepts: %v", err)
	}
	if concepts[0].Description != "A clean description." {
		t.Fatalf("concept 0 description = %q", concepts[0].Description)
	}
	if concepts[1].Description != "" {
		t.Fatalf("failed concept kept a description: %q", concepts[1].Description)
	}
	if concepts[2].Description != "A clean description." {
		t.Fatalf("concept 2 description = %q", concepts[2].Description)
	}
}

func TestDescriptionsUseProfileVisualStyle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	job := testJob("Styled")
	job.ChannelProfile = "documentary"
	ws := newWorkspace(t, cfg, job)
	if err := ws.saveConcepts([]concept{{Title: "Only"}}); err != nil {
		t.Fatalf("saveConcepts: %v", err)
	}

	gen := &fakeGenerator{
		generateFn: func(ctx context.Context, prompt generation.Prompt) (string, error) {
			return "Description.", nil
		},
	}
	catalog := mustCatalog(t)
	description := NewVisualDescription(cfg, gen, catalog, logging.NewNop())
	if err := description.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	style := catalog.GetOrDefault("documentary").VisualStyle
	if prompt := gen.prompt(0); !strings.Contains(prompt.System, style) {
		t.Fatalf("system prompt %q missing profile style %q", prompt.System, style)
	}
}

func TestDescriptionsAbortOnCancellation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	job := testJob("Stopped")
	ws := newWorkspace(t, cfg, job)
	if err := ws.saveConcepts([]concept{{Title: "One"}, {Title: "Two"}}); err != nil {
		t.Fatalf("saveConcepts: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	description := NewVisualDescription(cfg, &fakeGenerator{}, mustCatalog(t), logging.NewNop())
	err := description.Execute(ctx, job)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Execute error = %v, want context.Canceled", err)
	}
}
