package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Token budget policies for the generation client. "warn" logs when the daily
// budget is exceeded but keeps serving; "stop" refuses further calls until the
// UTC day rolls over.
const (
	TokenPolicyWarn = "warn"
	TokenPolicyStop = "stop"
)

// Target duration bounds for a narrated video, in seconds.
const (
	MinTargetDurationSeconds = 60
	MaxTargetDurationSeconds = 600
)

// Paths contains directory configuration.
type Paths struct {
	StagingDir   string `toml:"staging_dir"`
	OutputDir    string `toml:"output_dir"`
	LogDir       string `toml:"log_dir"`
	ProfilesFile string `toml:"profiles_file"`
}

// Generation contains connection and budget settings for the external
// generation endpoint.
type Generation struct {
	APIKey            string `toml:"api_key"`
	BaseURL           string `toml:"base_url"`
	Model             string `toml:"model"`
	TimeoutSeconds    int    `toml:"timeout_seconds"`
	RequestsPerMinute int    `toml:"requests_per_minute"`
	DailyTokenLimit   int64  `toml:"daily_token_limit"`
	TokenPolicy       string `toml:"token_policy"`
}

// TTS contains configuration for the speech synthesis engine.
type TTS struct {
	Binary         string `toml:"binary"`
	Voice          string `toml:"voice"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// FFmpeg contains configuration for the video encoder binaries.
type FFmpeg struct {
	Binary         string `toml:"binary"`
	FFprobeBinary  string `toml:"ffprobe_binary"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Video contains output sizing and narration pacing settings.
type Video struct {
	Width                  int     `toml:"width"`
	Height                 int     `toml:"height"`
	FPS                    int     `toml:"fps"`
	ReadingSpeedWPM        int     `toml:"reading_speed_wpm"`
	DefaultDurationSeconds int     `toml:"default_duration_seconds"`
	QualityScore           float64 `toml:"quality_score"`
}

// Workers contains dispatcher concurrency and supervision settings.
// MaxConcurrent of zero leaves the worker pool unbounded.
type Workers struct {
	MaxConcurrent     int `toml:"max_concurrent"`
	QueuePollInterval int `toml:"queue_poll_interval"`
	HeartbeatInterval int `toml:"heartbeat_interval"`
	HeartbeatTimeout  int `toml:"heartbeat_timeout"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	JobQueued      bool   `toml:"job_queued"`
	JobCompleted   bool   `toml:"job_completed"`
	JobFailed      bool   `toml:"job_failed"`
}

// Events contains configuration for the Redis job-event publisher.
// Publishing is disabled when RedisAddr is empty.
type Events struct {
	RedisAddr     string `toml:"redis_addr"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
	ChannelPrefix string `toml:"channel_prefix"`
}

// Storage contains configuration for uploading finished artifacts to
// S3-compatible object storage. Uploads are disabled when S3Bucket is empty.
type Storage struct {
	S3Bucket    string `toml:"s3_bucket"`
	S3Region    string `toml:"s3_region"`
	S3Endpoint  string `toml:"s3_endpoint"`
	S3AccessKey string `toml:"s3_access_key"`
	S3SecretKey string `toml:"s3_secret_key"`
	S3KeyPrefix string `toml:"s3_key_prefix"`
	S3PathStyle bool   `toml:"s3_path_style"`
}

// Intake contains configuration for the AMQP submission consumer.
// The consumer is disabled when AMQPURL is empty.
type Intake struct {
	AMQPURL string `toml:"amqp_url"`
	Queue   string `toml:"queue"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for Loom.
//
// Configuration sections by subsystem:
//   - Paths: staging, output, and log directories
//   - Generation: external generation endpoint connection and budgets
//   - TTS: speech synthesis engine
//   - FFmpeg: encoder and probe binaries
//   - Video: output dimensions, frame rate, narration pacing
//   - Workers: dispatcher concurrency, polling, heartbeats
//   - Notifications: ntfy push notification settings
//   - Events: Redis job-event publishing
//   - Storage: S3 artifact upload
//   - Intake: AMQP submission consumer
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Generation    Generation    `toml:"generation"`
	TTS           TTS           `toml:"tts"`
	FFmpeg        FFmpeg        `toml:"ffmpeg"`
	Video         Video         `toml:"video"`
	Workers       Workers       `toml:"workers"`
	Notifications Notifications `toml:"notifications"`
	Events        Events        `toml:"events"`
	Storage       Storage       `toml:"storage"`
	Intake        Intake        `toml:"intake"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/loom/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/loom/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("loom.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// OutputDir is created on a best-effort basis so the daemon can run when
// external storage is temporarily unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StagingDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.OutputDir) != "" {
		// Best-effort to avoid failing config load when storage is offline.
		_ = os.MkdirAll(c.Paths.OutputDir, 0o755)
	}
	return nil
}

// FFmpegBinary returns the ffmpeg executable used for frame encoding and muxing.
func (c *Config) FFmpegBinary() string {
	if strings.TrimSpace(c.FFmpeg.Binary) != "" {
		return c.FFmpeg.Binary
	}
	return defaultFFmpegBinary
}

// FFprobeBinary returns the ffprobe executable used for media inspection.
func (c *Config) FFprobeBinary() string {
	if strings.TrimSpace(c.FFmpeg.FFprobeBinary) != "" {
		return c.FFmpeg.FFprobeBinary
	}
	return defaultFFprobeBinary
}

// TTSBinary returns the speech synthesis executable.
func (c *Config) TTSBinary() string {
	if strings.TrimSpace(c.TTS.Binary) != "" {
		return c.TTS.Binary
	}
	return defaultTTSBinary
}

// EventChannelPrefix returns the Redis channel prefix for job progress events.
func (c *Config) EventChannelPrefix() string {
	if strings.TrimSpace(c.Events.ChannelPrefix) != "" {
		return c.Events.ChannelPrefix
	}
	return defaultEventChannelPrefix
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	sample := sampleConfig

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// GenerationConfig contains the generation endpoint settings in the shape the
// client constructor consumes.
type GenerationConfig struct {
	APIKey            string
	BaseURL           string
	Model             string
	TimeoutSeconds    int
	RequestsPerMinute int
	DailyTokenLimit   int64
	TokenPolicy       string
}

// GetGeneration returns the external generation endpoint settings.
func (c *Config) GetGeneration() GenerationConfig {
	return GenerationConfig{
		APIKey:            strings.TrimSpace(c.Generation.APIKey),
		BaseURL:           strings.TrimSpace(c.Generation.BaseURL),
		Model:             strings.TrimSpace(c.Generation.Model),
		TimeoutSeconds:    c.Generation.TimeoutSeconds,
		RequestsPerMinute: c.Generation.RequestsPerMinute,
		DailyTokenLimit:   c.Generation.DailyTokenLimit,
		TokenPolicy:       c.Generation.TokenPolicy,
	}
}
