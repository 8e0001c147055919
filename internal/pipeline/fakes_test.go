package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"loom/internal/config"
	"loom/internal/media/ffprobe"
	"loom/internal/queue"
	"loom/internal/services/ffmpeg"
	"loom/internal/services/generation"
)

// fakeGenerator records prompts and answers from canned responses. Generate
// and GenerateStructured delegate to the optional function fields; when unset
// they return empty output.
type fakeGenerator struct {
	mu           sync.Mutex
	prompts      []generation.Prompt
	generateFn   func(ctx context.Context, prompt generation.Prompt) (string, error)
	structuredFn func(ctx context.Context, prompt generation.Prompt, target any) error
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt generation.Prompt) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.generateFn == nil {
		return "", nil
	}
	return f.generateFn(ctx, prompt)
}

func (f *fakeGenerator) GenerateStructured(ctx context.Context, prompt generation.Prompt, target any) error {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.structuredFn == nil {
		return nil
	}
	return f.structuredFn(ctx, prompt, target)
}

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func (f *fakeGenerator) prompt(i int) generation.Prompt {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prompts[i]
}

// fakeTTS writes a canned payload to the output path unless primed with an
// error.
type fakeTTS struct {
	err        error
	text       string
	outputPath string
}

func (f *fakeTTS) Synthesize(ctx context.Context, text, outputPath string) error {
	f.text = text
	f.outputPath = outputPath
	if f.err != nil {
		return f.err
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(outputPath, []byte("RIFF fake waveform"), 0o644)
}

// fakeEncoder records requests and materializes output files so the stage's
// post-encode verification passes.
type fakeEncoder struct {
	compile    ffmpeg.CompileRequest
	mux        ffmpeg.MuxRequest
	compileErr error
	muxErr     error
}

func (f *fakeEncoder) CompileFrames(ctx context.Context, req ffmpeg.CompileRequest) error {
	f.compile = req
	if f.compileErr != nil {
		return f.compileErr
	}
	return writeFakeOutput(req.OutputPath, "fake silent video")
}

func (f *fakeEncoder) MuxAudio(ctx context.Context, req ffmpeg.MuxRequest) error {
	f.mux = req
	if f.muxErr != nil {
		return f.muxErr
	}
	return writeFakeOutput(req.OutputPath, "fake muxed video")
}

func writeFakeOutput(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

// fakeUploader records the single upload finalization attempts.
type fakeUploader struct {
	enabled      bool
	err          error
	calls        int
	jobID        string
	videoPath    string
	metadataPath string
}

func (f *fakeUploader) Upload(ctx context.Context, jobID, videoPath, metadataPath string) error {
	f.calls++
	f.jobID = jobID
	f.videoPath = videoPath
	f.metadataPath = metadataPath
	return f.err
}

func (f *fakeUploader) Enabled() bool {
	return f.enabled
}

// testJob builds a processing job without touching a store, for stages that
// only read workspace artifacts.
func testJob(title string) *queue.Job {
	now := time.Now().UTC()
	started := now.Add(-90 * time.Second)
	return &queue.Job{
		ID:                    "0123456789abcdef",
		Title:                 title,
		ChannelProfile:        "educational",
		TargetDurationSeconds: 300,
		SourceCount:           1,
		Status:                queue.StatusProcessing,
		CreatedAt:             now.Add(-2 * time.Minute),
		UpdatedAt:             now,
		StartedAt:             &started,
	}
}

// newWorkspace ensures the job's staging directories exist under the test
// config.
func newWorkspace(t *testing.T, cfg *config.Config, job *queue.Job) Workspace {
	t.Helper()
	ws := WorkspaceFor(cfg, job)
	if err := ws.Ensure(); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	return ws
}

func writeArtifact(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func probeResult(duration, sampleRate string, channels int) ffprobe.Result {
	return ffprobe.Result{
		Streams: []ffprobe.Stream{{CodecType: "audio", SampleRate: sampleRate, Channels: channels}},
		Format:  ffprobe.Format{Duration: duration, Size: "170000"},
	}
}
