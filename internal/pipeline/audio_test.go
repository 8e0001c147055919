package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"loom/internal/logging"
	"loom/internal/media/ffprobe"
	"loom/internal/services"
	"loom/internal/testsupport"
)

func TestAudioSynthesisMeasuresWaveform(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	job := testJob("Measured")
	ws := newWorkspace(t, cfg, job)
	writeArtifact(t, ws.NarrationPath(), "Spoken narration text.\n")

	restore := SetProbeForTests(func(ctx context.Context, binary, path string) (ffprobe.Result, error) {
		return probeResult("42.5", "22050", 1), nil
	})
	defer restore()

	engine := &fakeTTS{}
	synthesis := NewAudioSynthesis(cfg, engine, logging.NewNop())
	if err := synthesis.Prepare(context.Background(), job); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := synthesis.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if engine.text != "Spoken narration text." {
		t.Fatalf("synthesized text = %q", engine.text)
	}
	if engine.outputPath != ws.AudioPath() {
		t.Fatalf("output path = %q, want %q", engine.outputPath, ws.AudioPath())
	}

	measure, err := ws.loadAudioMeasure()
	if err != nil {
		t.Fatalf("loadAudioMeasure: %v", err)
	}
	if measure.DurationSeconds != 42.5 {
		t.Fatalf("DurationSeconds = %v, want 42.5", measure.DurationSeconds)
	}
	if measure.SizeBytes == 0 {
		t.Fatal("SizeBytes = 0, want the on-disk waveform size")
	}
	if measure.SampleRate != "22050" || measure.Channels != 1 {
		t.Fatalf("stream info = %q/%d, want 22050/1", measure.SampleRate, measure.Channels)
	}
}

func TestAudioSynthesisClassifiesTimeout(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	job := testJob("Slow Engine")
	ws := newWorkspace(t, cfg, job)
	writeArtifact(t, ws.NarrationPath(), "Text.\n")

	engine := &fakeTTS{err: fmt.Errorf("synthesis timed out after 2m0s: %w", context.DeadlineExceeded)}
	synthesis := NewAudioSynthesis(cfg, engine, logging.NewNop())
	err := synthesis.Execute(context.Background(), job)
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("Execute error = %v, want services.ErrTimeout", err)
	}
}

func TestAudioSynthesisClassifiesEngineFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	job := testJob("Broken Engine")
	ws := newWorkspace(t, cfg, job)
	writeArtifact(t, ws.NarrationPath(), "Text.\n")

	engine := &fakeTTS{err: errors.New("espeak-ng failed: exit status 1")}
	synthesis := NewAudioSynthesis(cfg, engine, logging.NewNop())
	err := synthesis.Execute(context.Background(), job)
	if !errors.Is(err, services.ErrExternal) {
		t.Fatalf("Execute error = %v, want services.ErrExternal", err)
	}
}

func TestAudioSynthesisPassesThroughCancellation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	job := testJob("Cancelled")
	ws := newWorkspace(t, cfg, job)
	writeArtifact(t, ws.NarrationPath(), "Text.\n")

	engine := &fakeTTS{err: fmt.Errorf("interrupted: %w", context.Canceled)}
	synthesis := NewAudioSynthesis(cfg, engine, logging.NewNop())
	err := synthesis.Execute(context.Background(), job)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Execute error = %v, want context.Canceled preserved", err)
	}
	if errors.Is(err, services.ErrExternal) || errors.Is(err, services.ErrTimeout) {
		t.Fatalf("cancellation must not be reclassified, got %v", err)
	}
}

func TestAudioSynthesisRejectsZeroDuration(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	job := testJob("Silent File")
	ws := newWorkspace(t, cfg, job)
	writeArtifact(t, ws.NarrationPath(), "Text.\n")

	restore := SetProbeForTests(func(ctx context.Context, binary, path string) (ffprobe.Result, error) {
		return probeResult("0", "22050", 1), nil
	})
	defer restore()

	synthesis := NewAudioSynthesis(cfg, &fakeTTS{}, logging.NewNop())
	err := synthesis.Execute(context.Background(), job)
	if !errors.Is(err, services.ErrExternal) {
		t.Fatalf("Execute error = %v, want services.ErrExternal", err)
	}
}
