package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

var commandContext = exec.CommandContext

const (
	defaultBinary  = "ffmpeg"
	defaultTimeout = 600 * time.Second

	// stderrTailBytes bounds how much encoder output is carried into errors.
	// ffmpeg is chatty; only the end of the log explains a failure.
	stderrTailBytes = 1024
)

// CompileRequest describes the frames-to-silent-video pass.
type CompileRequest struct {
	// FramePattern is a printf-style image sequence path such as
	// frames/frame_%06d.png.
	FramePattern string
	FPS          int
	CRF          int
	OutputPath   string
}

// MuxRequest describes the audio mux pass over an already-encoded video.
type MuxRequest struct {
	VideoPath  string
	AudioPath  string
	OutputPath string
}

// Client defines the video assembly behaviour the compilation stage needs.
type Client interface {
	CompileFrames(ctx context.Context, req CompileRequest) error
	MuxAudio(ctx context.Context, req MuxRequest) error
}

// Option configures the CLI client.
type Option func(*CLI)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if strings.TrimSpace(binary) != "" {
			c.binary = binary
		}
	}
}

// WithTimeout bounds a single ffmpeg run.
func WithTimeout(timeout time.Duration) Option {
	return func(c *CLI) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// CLI wraps the ffmpeg command-line encoder.
type CLI struct {
	binary  string
	timeout time.Duration
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: defaultBinary, timeout: defaultTimeout}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Binary returns the configured binary for health checks.
func (c *CLI) Binary() string {
	return c.binary
}

// CompileFrames encodes a PNG sequence into a silent H.264 video. yuv420p is
// required for broad player compatibility and demands even dimensions, which
// config validation guarantees.
func (c *CLI) CompileFrames(ctx context.Context, req CompileRequest) error {
	if strings.TrimSpace(req.FramePattern) == "" {
		return errors.New("frame pattern required")
	}
	if strings.TrimSpace(req.OutputPath) == "" {
		return errors.New("output path required")
	}
	fps := req.FPS
	if fps <= 0 {
		fps = 30
	}
	crf := req.CRF
	if crf <= 0 {
		crf = 23
	}

	args := []string{
		"-y",
		"-f", "image2",
		"-framerate", strconv.Itoa(fps),
		"-i", req.FramePattern,
		"-c:v", "libx264",
		"-preset", "medium",
		"-crf", strconv.Itoa(crf),
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		req.OutputPath,
	}
	if err := c.run(ctx, args); err != nil {
		return fmt.Errorf("compile frames: %w", err)
	}
	return verifyOutput(req.OutputPath)
}

// MuxAudio combines the silent video with the narration WAV. The video stream
// is copied untouched; audio is transcoded to AAC and the container ends with
// the shorter stream.
func (c *CLI) MuxAudio(ctx context.Context, req MuxRequest) error {
	if strings.TrimSpace(req.VideoPath) == "" {
		return errors.New("video path required")
	}
	if strings.TrimSpace(req.AudioPath) == "" {
		return errors.New("audio path required")
	}
	if strings.TrimSpace(req.OutputPath) == "" {
		return errors.New("output path required")
	}

	args := []string{
		"-y",
		"-i", req.VideoPath,
		"-i", req.AudioPath,
		"-c:v", "copy",
		"-c:a", "aac",
		"-b:a", "192k",
		"-shortest",
		req.OutputPath,
	}
	if err := c.run(ctx, args); err != nil {
		return fmt.Errorf("mux audio: %w", err)
	}
	return verifyOutput(req.OutputPath)
}

func (c *CLI) run(ctx context.Context, args []string) error {
	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	cmd := commandContext(runCtx, c.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if runCtx.Err() != nil {
			return fmt.Errorf("timed out after %s: %w", c.timeout, runCtx.Err())
		}
		return fmt.Errorf("%s failed: %w: %s", c.binary, err, tailOf(stderr.Bytes()))
	}
	return nil
}

func verifyOutput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("missing output %s: %w", filepath.Base(path), err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("empty output %s", filepath.Base(path))
	}
	return nil
}

func tailOf(output []byte) string {
	trimmed := strings.TrimSpace(string(output))
	if len(trimmed) <= stderrTailBytes {
		return trimmed
	}
	return "..." + trimmed[len(trimmed)-stderrTailBytes:]
}

var _ Client = (*CLI)(nil)
