package tts

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
	defaultBinary  = "espeak-ng"
	defaultVoice   = "en-US"
	defaultTimeout = 120 * time.Second

	// stderrTailBytes bounds how much engine output is carried into errors.
	stderrTailBytes = 512
)

// Client defines speech synthesis behaviour.
type Client interface {
	Synthesize(ctx context.Context, text, outputPath string) error
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

// WithVoice selects the synthesis voice.
func WithVoice(voice string) Option {
	return func(c *CLI) {
		if strings.TrimSpace(voice) != "" {
			c.voice = voice
		}
	}
}

// WithSpeed sets the speaking rate in words per minute. Zero leaves the
// engine default in place.
func WithSpeed(wpm int) Option {
	return func(c *CLI) {
		if wpm > 0 {
			c.speedWPM = wpm
		}
	}
}

// WithTimeout bounds a single synthesis run.
func WithTimeout(timeout time.Duration) Option {
	return func(c *CLI) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// CLI wraps the espeak-ng command-line synthesizer.
type CLI struct {
	binary   string
	voice    string
	speedWPM int
	timeout  time.Duration
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{
		binary:  defaultBinary,
		voice:   defaultVoice,
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

// Binary returns the configured engine binary for health checks.
func (c *CLI) Binary() string {
	return c.binary
}

// Synthesize renders text to a WAV file at outputPath. The narration is
// passed through a temp file rather than argv so long scripts survive the
// kernel argument limit.
func (c *CLI) Synthesize(ctx context.Context, text, outputPath string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.New("narration text required")
	}
	outputPath = strings.TrimSpace(outputPath)
	if outputPath == "" {
		return errors.New("output path required")
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	input, err := os.CreateTemp(filepath.Dir(outputPath), "narration-*.txt")
	if err != nil {
		return fmt.Errorf("create narration file: %w", err)
	}
	inputPath := input.Name()
	defer os.Remove(inputPath)
	if _, err := input.WriteString(text); err != nil {
		input.Close()
		return fmt.Errorf("write narration file: %w", err)
	}
	if err := input.Close(); err != nil {
		return fmt.Errorf("close narration file: %w", err)
	}

	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	args := []string{"-v", c.voice}
	if c.speedWPM > 0 {
		args = append(args, "-s", strconv.Itoa(c.speedWPM))
	}
	args = append(args, "-w", outputPath, "-f", inputPath)

	cmd := commandContext(runCtx, c.binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if runCtx.Err() != nil {
			return fmt.Errorf("synthesis timed out after %s: %w", c.timeout, runCtx.Err())
		}
		return fmt.Errorf("%s failed: %w: %s", c.binary, err, tailOf(stderr.Bytes()))
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return fmt.Errorf("synthesis produced no output: %w", err)
	}
	if info.Size() == 0 {
		return errors.New("synthesis produced an empty file")
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
