package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"loom/internal/logging"
	"loom/internal/services"
	"loom/internal/testsupport"
)

func TestCrfForDuration(t *testing.T) {
	cases := []struct {
		seconds float64
		want    int
	}{
		{60, 23},
		{120, 23},
		{121, 26},
		{300, 26},
		{301, 28},
		{600, 28},
	}
	for _, tc := range cases {
		if got := crfForDuration(tc.seconds); got != tc.want {
			t.Errorf("crfForDuration(%v) = %d, want %d", tc.seconds, got, tc.want)
		}
	}
}

func TestCompilationRunsBothEncoderPasses(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	job := testJob("Two Pass")
	ws := newWorkspace(t, cfg, job)
	writeArtifact(t, ws.FramePath(0), "png")
	writeArtifact(t, ws.AudioPath(), "wav")
	if err := ws.saveAudioMeasure(audioMeasure{DurationSeconds: 150, SizeBytes: 1}); err != nil {
		t.Fatalf("saveAudioMeasure: %v", err)
	}

	encoder := &fakeEncoder{}
	compilation := NewCompilation(cfg, encoder, logging.NewNop())
	if err := compilation.Prepare(context.Background(), job); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := compilation.Execute(context.Background(), job); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if encoder.compile.FramePattern != ws.FramePattern() {
		t.Fatalf("compile pattern = %q, want %q", encoder.compile.FramePattern, ws.FramePattern())
	}
	if encoder.compile.FPS != cfg.Video.FPS {
		t.Fatalf("compile fps = %d, want %d", encoder.compile.FPS, cfg.Video.FPS)
	}
	if encoder.compile.CRF != 26 {
		t.Fatalf("compile crf = %d, want 26 for a 150s narration", encoder.compile.CRF)
	}
	if encoder.mux.VideoPath != ws.SilentVideoPath() || encoder.mux.AudioPath != ws.AudioPath() {
		t.Fatalf("mux inputs = %+v", encoder.mux)
	}
	if encoder.mux.OutputPath != ws.FinalVideoPath() {
		t.Fatalf("mux output = %q, want %q", encoder.mux.OutputPath, ws.FinalVideoPath())
	}

	if _, err := os.Stat(ws.SilentVideoPath()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("silent intermediate should be removed after mux, stat err = %v", err)
	}
	if _, err := os.Stat(ws.FinalVideoPath()); err != nil {
		t.Fatalf("final video missing: %v", err)
	}
}

func TestCompilationKeepsArtifactsOnMuxFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	job := testJob("Mux Fails")
	ws := newWorkspace(t, cfg, job)
	writeArtifact(t, ws.FramePath(0), "png")
	writeArtifact(t, ws.AudioPath(), "wav")
	if err := ws.saveAudioMeasure(audioMeasure{DurationSeconds: 100, SizeBytes: 1}); err != nil {
		t.Fatalf("saveAudioMeasure: %v", err)
	}

	encoder := &fakeEncoder{muxErr: errors.New("mux audio: ffmpeg failed: exit status 1")}
	compilation := NewCompilation(cfg, encoder, logging.NewNop())
	err := compilation.Execute(context.Background(), job)
	if !errors.Is(err, services.ErrResource) {
		t.Fatalf("Execute error = %v, want services.ErrResource", err)
	}

	if _, err := os.Stat(ws.SilentVideoPath()); err != nil {
		t.Fatalf("silent intermediate should survive a mux failure: %v", err)
	}
	if _, err := os.Stat(ws.FramePath(0)); err != nil {
		t.Fatalf("frames should survive a mux failure: %v", err)
	}
}

func TestCompilationClassifiesSubprocessFailureAsResource(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	job := testJob("Encode Crash")
	ws := newWorkspace(t, cfg, job)
	writeArtifact(t, ws.FramePath(0), "png")
	writeArtifact(t, ws.AudioPath(), "wav")
	if err := ws.saveAudioMeasure(audioMeasure{DurationSeconds: 100, SizeBytes: 1}); err != nil {
		t.Fatalf("saveAudioMeasure: %v", err)
	}

	encoder := &fakeEncoder{compileErr: errors.New("compile frames: ffmpeg failed: exit status 1")}
	compilation := NewCompilation(cfg, encoder, logging.NewNop())
	err := compilation.Execute(context.Background(), job)
	if !errors.Is(err, services.ErrResource) {
		t.Fatalf("Execute error = %v, want services.ErrResource", err)
	}
	if errors.Is(err, services.ErrExternal) {
		t.Fatalf("Execute error = %v, must not classify as external service failure", err)
	}
}

func TestCompilationClassifiesTimeout(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	job := testJob("Encode Timeout")
	ws := newWorkspace(t, cfg, job)
	writeArtifact(t, ws.FramePath(0), "png")
	writeArtifact(t, ws.AudioPath(), "wav")
	if err := ws.saveAudioMeasure(audioMeasure{DurationSeconds: 100, SizeBytes: 1}); err != nil {
		t.Fatalf("saveAudioMeasure: %v", err)
	}

	encoder := &fakeEncoder{compileErr: fmt.Errorf("compile frames: timed out after 10m0s: %w", context.DeadlineExceeded)}
	compilation := NewCompilation(cfg, encoder, logging.NewNop())
	err := compilation.Execute(context.Background(), job)
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("Execute error = %v, want services.ErrTimeout", err)
	}
}
